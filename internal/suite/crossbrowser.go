package suite

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/ethpandaops/sitecheck/internal/capture"
	"github.com/ethpandaops/sitecheck/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CrossBrowser checks functional behavior that must hold on every engine.
func CrossBrowser() *Suite {
	return &Suite{
		Name:  "cross-browser",
		Title: "Cross-Browser Compatibility Tests",
		Groups: []*Group{
			pageLoadGroup(),
			featureGroup(probe.Features),
			navigationGroup(),
			formGroup(),
			interactiveGroup(),
			mediaGroup(),
			accessibilityGroup(),
			jsErrorGroup(),
		},
	}
}

func gotoHome(t *T) { t.Goto("/") }

// attachCapture starts error capture and ties it to the case.
func attachCapture(t *T) *capture.Capture {
	c, err := capture.Attach(t.Page())
	if err != nil {
		if errors.Is(err, capture.ErrLateStart) {
			t.Fatalf("%serror capture started after navigation", harnessErrorPrefix)
		}
		t.Must(err, "attaching error capture")
	}
	t.Cleanup(c.Close)

	return c
}

func describeRecords(records []capture.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		if r.Type == capture.TypePageError {
			out = append(out, "Page error: "+r.Message)
			continue
		}
		out = append(out, "Console error: "+r.Text)
	}

	return out
}

func pageLoadGroup() *Group {
	g := &Group{Title: "Page Load Tests"}

	for _, route := range SiteRoutes {
		g.Cases = append(g.Cases, &Case{
			Title: route.Name + " page loads without errors",
			Run: func(t *T) {
				c := attachCapture(t)

				t.Goto(route.Path)

				assert.Empty(t, describeRecords(c.Records()), "errors while loading %s", route.Path)

				title, err := t.Page().Title(t.Context())
				t.Must(err, "reading title")
				assert.NotEmpty(t, title, "document title")
			},
		})
	}

	return g
}

func featureGroup(features probe.Registry) *Group {
	g := &Group{Title: "Browser Feature Support", BeforeEach: gotoHome}

	for _, p := range features {
		g.Cases = append(g.Cases, &Case{
			Title: p.Name + " is supported",
			Run: func(t *T) {
				assert.True(t, p.Run(t.Context(), t.Page()), "%s probe", p.Key)
			},
		})
	}

	return g
}

func navigationGroup() *Group {
	return &Group{
		Title:      "Navigation Tests",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Header navigation works across all pages",
				Run: func(t *T) {
					var hrefs []*string
					t.Eval(navHrefsScript, &hrefs)

					for i, href := range hrefs {
						if href == nil || *href == "" || strings.HasPrefix(*href, "http") || strings.HasPrefix(*href, "#") {
							continue
						}

						t.Must(t.Page().Click(t.Context(), selNavLinks, i), "clicking "+*href)
						t.Must(t.Page().WaitForLoadState(t.Context(), browser.NetworkIdle), "waiting for "+*href)

						assert.Eventually(t, func() bool {
							u, err := t.Page().URL(t.Context())
							return err == nil && strings.Contains(u, *href)
						}, 2*time.Second, 50*time.Millisecond, "url after clicking %s", *href)

						t.Goto("/")
					}
				},
			},
			{
				Title: "Browser back/forward navigation works",
				Run: func(t *T) {
					t.Goto("/")
					t.Goto("/work")
					t.Goto("/services")

					t.Must(t.Page().GoBack(t.Context()), "going back")
					assert.Contains(t, t.CurrentURL(), "/work")

					t.Must(t.Page().GoBack(t.Context()), "going back")
					assert.NotContains(t, t.CurrentURL(), "/work")

					t.Must(t.Page().GoForward(t.Context()), "going forward")
					assert.Contains(t, t.CurrentURL(), "/work")
				},
			},
			{
				Title: "Deep linking works correctly",
				Run: func(t *T) {
					t.Goto("/work")
					assert.Greater(t, len(t.BodyText()), 100, "body text length")
				},
			},
		},
	}
}

// nonTextInputs cannot be filled with text.
var nonTextInputs = map[string]bool{
	"submit": true, "button": true, "checkbox": true, "radio": true,
	"file": true, "hidden": true, "image": true, "reset": true,
	"range": true, "color": true,
}

func formGroup() *Group {
	const value = "Test input value"

	return &Group{
		Title:      "Form Interactions",
		BeforeEach: func(t *T) { t.Goto("/contact") },
		Cases: []*Case{
			{
				Title: "Form inputs accept text",
				Run: func(t *T) {
					var types []*string
					t.Eval(inputTypesScript, &types)

					for i, typ := range types {
						if typ != nil && nonTextInputs[*typ] {
							continue
						}

						t.Must(t.Page().Fill(t.Context(), selTextInputs, i, value), fmt.Sprintf("filling input %d", i))

						var got string
						t.Eval(inputValueScript(selTextInputs, i), &got)
						assert.Equal(t, value, got, "value of input %d", i)
					}
				},
			},
			{
				Title: "Form validation works",
				Run: func(t *T) {
					if t.Count(selSubmit) == 0 {
						return
					}

					required := t.Count(selRequired)
					for i := 0; i < required; i++ {
						t.Must(t.Page().Fill(t.Context(), selRequired, i, ""), "clearing required input")
					}

					t.Must(t.Page().Click(t.Context(), selSubmit, 0), "clicking submit")
					t.Wait(500 * time.Millisecond)

					var invalid []bool
					t.Eval(requiredInvalidScript, &invalid)
					for i, inv := range invalid {
						assert.True(t, inv, "required input %d accepted an empty value", i)
					}
				},
			},
		},
	}
}

func interactiveGroup() *Group {
	return &Group{
		Title:      "Interactive Elements",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Buttons are clickable",
				Run: func(t *T) {
					var clickable int
					t.Eval(clickableScript, &clickable)
					assert.Positive(t, clickable, "visible and enabled buttons among the first ten")
				},
			},
			{
				Title: "Hover states work",
				Run: func(t *T) {
					var visible []bool
					t.Eval(visibleAnchorsScript, &visible)

					for i, v := range visible {
						if !v {
							continue
						}
						t.Must(t.Page().Hover(t.Context(), selAnchorsBtn, i), "hovering element")
						t.Wait(100 * time.Millisecond)
					}
				},
			},
			{
				Title: "Scroll behavior works smoothly",
				Run: func(t *T) {
					t.Eval(scrollToBottomScript, nil)
					t.Wait(500 * time.Millisecond)

					var y float64
					t.Eval(scrollYScript, &y)
					assert.Positive(t, y, "scroll position after scrolling down")

					t.Eval(scrollToTopScript, nil)
					t.Eval(scrollYScript, &y)
					assert.Zero(t, y, "scroll position after scrolling up")
				},
			},
		},
	}
}

func mediaGroup() *Group {
	return &Group{
		Title:      "Media and Assets",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Images load successfully",
				Run: func(t *T) {
					var images struct {
						Total  int `json:"total"`
						Loaded int `json:"loaded"`
					}
					t.Eval(imagesLoadedScript, &images)

					if images.Total > 0 {
						assert.Positive(t, images.Loaded, "loaded images out of %d", images.Total)
					}
				},
			},
			{
				Title: "Videos load and play controls work",
				Run: func(t *T) {
					var states []int
					t.Eval(videoReadyScript, &states)

					for i, s := range states {
						assert.GreaterOrEqual(t, s, 2, "readyState of video %d", i)
					}
				},
			},
		},
	}
}

func accessibilityGroup() *Group {
	return &Group{
		Title:      "Accessibility",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Page has proper heading structure",
				Run: func(t *T) {
					assert.GreaterOrEqual(t, t.Count("h1"), 1, "h1 count")
					assert.Positive(t, t.Count(selHeadings), "heading count")
				},
			},
			{
				Title: "Images have alt text",
				Run: func(t *T) {
					var missing []string
					t.Eval(missingAltScript, &missing)
					assert.Empty(t, missing, "visible images without alt text")
				},
			},
			{
				Title: "Links have descriptive text",
				Run: func(t *T) {
					var unlabelled []string
					t.Eval(unlabelledLinksScript, &unlabelled)
					assert.Empty(t, unlabelled, "links without text or aria-label")
				},
			},
			{
				Title: "Keyboard navigation works",
				Run: func(t *T) {
					t.Must(t.Page().Press(t.Context(), "Tab"), "pressing Tab")
					require.Positive(t, t.Count(":focus"), "focused elements after Tab")
				},
			},
		},
	}
}

func jsErrorGroup() *Group {
	g := &Group{Title: "JavaScript Errors"}

	for _, route := range SiteRoutes {
		g.Cases = append(g.Cases, &Case{
			Title: route.Name + " page has no JavaScript errors",
			Run: func(t *T) {
				c := attachCapture(t)

				t.Goto(route.Path)
				t.Wait(2 * time.Second)

				assert.Empty(t, c.Records(), "errors on %s", route.Path)
			},
		})
	}

	return g
}
