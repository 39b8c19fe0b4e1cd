package suite

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pageSettle      = time.Second
	schemeSettle    = 500 * time.Millisecond
	stateSettle     = 300 * time.Millisecond
	breakpointDelay = 500 * time.Millisecond

	minReadableRatio = 0.9
)

const (
	selHeader = "header"
	selFooter = "footer"
	selHero   = `[class*="hero"], [class*="Hero"]`

	scrollOneScreenScript  = `window.scrollTo(0, window.innerHeight)`
	bodyScrollHeightScript = `document.body.scrollHeight`
	zoomScript             = `document.body.style.zoom = "200%"`

	bodyWidthScript = `({ body: document.body.scrollWidth, viewport: window.innerWidth })`

	imageWidthsScript = `({
  viewport: window.innerWidth,
  widths: Array.from(document.querySelectorAll("img")).map((img) => img.getBoundingClientRect().width),
})`
)

// Breakpoint is a viewport size the responsive groups render at.
type Breakpoint struct {
	Name   string
	Width  int
	Height int
}

// Slug is the breakpoint name as used in snapshot file names.
func (b Breakpoint) Slug() string {
	return strings.ReplaceAll(strings.ToLower(b.Name), " ", "-")
}

// Breakpoints are the responsive layouts every site route is captured at.
var Breakpoints = []Breakpoint{
	{Name: "Mobile Small", Width: 375, Height: 667},
	{Name: "Mobile Large", Width: 414, Height: 896},
	{Name: "Tablet Portrait", Width: 768, Height: 1024},
	{Name: "Tablet Landscape", Width: 1024, Height: 768},
	{Name: "Small Desktop", Width: 1280, Height: 720},
	{Name: "Desktop", Width: 1366, Height: 768},
	{Name: "Large Desktop", Width: 1920, Height: 1080},
	{Name: "4K", Width: 2560, Height: 1440},
}

// Visual compares screenshots against per-project baselines and checks the
// layout at each breakpoint.
func Visual() *Suite {
	s := &Suite{
		Name:  "visual",
		Title: "Visual Regression Tests",
		Groups: []*Group{
			fullPageGroup(),
			componentGroup(),
			colorSchemeGroup(),
			interactiveStateGroup(),
			scrollStateGroup(),
		},
	}

	for _, b := range Breakpoints {
		s.Groups = append(s.Groups, breakpointGroup(b))
	}

	s.Groups = append(s.Groups, orientationGroup(), zoomGroup())

	return s
}

func snapshotName(parts ...string) string {
	return strings.ToLower(strings.Join(parts, "-")) + ".png"
}

func fullShot(t *T) []byte {
	shot, err := t.Page().FullScreenshot(t.Context())
	t.Must(err, "capturing full page")

	return shot
}

func viewportShot(t *T) []byte {
	shot, err := t.Page().Screenshot(t.Context())
	t.Must(err, "capturing viewport")

	return shot
}

func fullPageGroup() *Group {
	g := &Group{Title: "Full Page Screenshots"}

	for _, route := range SiteRoutes {
		g.Cases = append(g.Cases, &Case{
			Title: route.Name + " matches snapshot",
			Run: func(t *T) {
				t.Goto(route.Path)
				t.Wait(pageSettle)

				t.MatchScreenshot(snapshotName(route.Name, "full"), fullShot(t), 100)
			},
		})
	}

	return g
}

func componentShot(t *T, selector, name string, maxDiff int, optional bool) {
	if t.Count(selector) == 0 {
		if optional {
			t.Logf("no %s on the page", selector)
			return
		}
		require.Failf(t, "component missing", "no element matches %s", selector)
	}

	shot, err := t.Page().ElementScreenshot(t.Context(), selector, 0)
	t.Must(err, "capturing "+selector)

	t.MatchScreenshot(name, shot, maxDiff)
}

func componentGroup() *Group {
	return &Group{
		Title:      "Component Screenshots",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Header matches snapshot",
				Run:   func(t *T) { componentShot(t, selHeader, "header.png", 50, false) },
			},
			{
				Title: "Hero section matches snapshot",
				Run:   func(t *T) { componentShot(t, selHero, "hero.png", 100, true) },
			},
			{
				Title: "Footer matches snapshot",
				Run:   func(t *T) { componentShot(t, selFooter, "footer.png", 50, false) },
			},
		},
	}
}

func colorSchemeCase(title string, scheme browser.ColorScheme) *Case {
	return &Case{
		Title: title,
		Run: func(t *T) {
			gotoHome(t)

			t.Must(t.Page().EmulateColorScheme(t.Context(), scheme), "emulating "+string(scheme)+" mode")
			t.Cleanup(func() { _ = t.Page().EmulateColorScheme(t.Context(), browser.ColorSchemeNone) })
			t.Wait(schemeSettle)

			t.MatchScreenshot(snapshotName("home", string(scheme), "mode"), fullShot(t), 200)
		},
	}
}

func colorSchemeGroup() *Group {
	return &Group{
		Title: "Dark Mode Screenshots",
		Cases: []*Case{
			colorSchemeCase("Dark mode renders correctly", browser.ColorSchemeDark),
			colorSchemeCase("Light mode renders correctly", browser.ColorSchemeLight),
		},
	}
}

func interactiveStateGroup() *Group {
	return &Group{
		Title:      "Interactive State Screenshots",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Hover states match snapshots",
				Run: func(t *T) {
					t.Must(t.Page().Hover(t.Context(), selButtonsA, 0), "hovering first control")
					t.Wait(stateSettle)

					t.MatchScreenshot("hover-state.png", viewportShot(t), 50)
				},
			},
			{
				Title: "Focused state matches snapshot",
				Run: func(t *T) {
					t.Must(t.Page().Press(t.Context(), "Tab"), "pressing Tab")
					t.Wait(stateSettle)

					t.MatchScreenshot("focused-state.png", viewportShot(t), 50)
				},
			},
			{
				Title: "Mobile menu open state",
				Run: func(t *T) {
					t.Must(t.Page().SetViewport(t.Context(), smallPhone.Width, smallPhone.Height), "resizing viewport")

					var menu menuToggle
					t.Eval(menuToggleScript(selMenuButton), &menu)
					if !menu.Exists || !menu.Visible {
						return
					}

					t.Must(t.Page().Click(t.Context(), selMenuButton, 0), "opening menu")
					t.Wait(schemeSettle)

					t.MatchScreenshot("mobile-menu-open.png", viewportShot(t), 100)
				},
			},
		},
	}
}

func scrollStateGroup() *Group {
	scrolled := func(title, script, name string) *Case {
		return &Case{
			Title: title,
			Run: func(t *T) {
				gotoHome(t)

				t.Eval(script, nil)
				t.Wait(pageSettle)

				t.MatchScreenshot(name, viewportShot(t), 200)
			},
		}
	}

	return &Group{
		Title: "Animation State Screenshots",
		Cases: []*Case{
			scrolled("Page after scroll matches snapshot", scrollOneScreenScript, "scrolled-state.png"),
			scrolled("Page at bottom matches snapshot", scrollToBottomScript, "page-bottom.png"),
		},
	}
}

func breakpointGroup(b Breakpoint) *Group {
	g := &Group{
		Title: fmt.Sprintf("%s (%dx%d)", b.Name, b.Width, b.Height),
		BeforeEach: func(t *T) {
			t.Must(t.Page().SetViewport(t.Context(), b.Width, b.Height), "resizing viewport")
		},
	}

	for _, route := range SiteRoutes {
		g.Cases = append(g.Cases, &Case{
			Title: route.Name + " page renders correctly",
			Run: func(t *T) {
				t.Goto(route.Path)
				t.Wait(breakpointDelay)

				t.MatchScreenshot(snapshotName(route.Name, b.Slug()), fullShot(t), 150)
			},
		})
	}

	g.Cases = append(g.Cases,
		&Case{
			Title: "Layout does not break at this breakpoint",
			Run: func(t *T) {
				gotoHome(t)

				var w struct {
					Body     float64 `json:"body"`
					Viewport float64 `json:"viewport"`
				}
				t.Eval(bodyWidthScript, &w)
				assert.LessOrEqual(t, w.Body, w.Viewport+1, "body scrollWidth")
			},
		},
		&Case{
			Title: "Text remains readable",
			Run: func(t *T) {
				gotoHome(t)

				var sizes []float64
				t.Eval(fontSizesScript, &sizes)

				c := tally{Total: len(sizes)}
				for _, s := range sizes {
					if s < minFontSize {
						c.Failing++
					}
				}
				assert.Greater(t, c.passRatio(), minReadableRatio, "%d of %d text elements below %dpx", c.Failing, c.Total, minFontSize)
			},
		},
		&Case{
			Title: "Images do not overflow",
			Run: func(t *T) {
				gotoHome(t)

				var imgs struct {
					Viewport float64   `json:"viewport"`
					Widths   []float64 `json:"widths"`
				}
				t.Eval(imageWidthsScript, &imgs)

				for i, w := range imgs.Widths {
					assert.LessOrEqual(t, w, imgs.Viewport+1, "width of image %d", i)
				}
			},
		},
		&Case{
			Title: "Touch targets are appropriately sized",
			Run: func(t *T) {
				if b.Width >= 1024 {
					return
				}

				gotoHome(t)

				var c tally
				t.Eval(interactiveSizeScript, &c)
				assert.Zero(t, c.Failing, "%d visible interactive elements are smaller than %dpx on both axes", c.Failing, minTapSize)
			},
		},
	)

	return g
}

func orientationGroup() *Group {
	return &Group{
		Title: "Orientation Change",
		Cases: []*Case{
			{
				Title: "Layout adapts to orientation change",
				Run: func(t *T) {
					gotoHome(t)

					height := func(w, h int) float64 {
						t.Must(t.Page().SetViewport(t.Context(), w, h), "resizing viewport")
						t.Wait(breakpointDelay)

						var v float64
						t.Eval(bodyScrollHeightScript, &v)

						return v
					}

					portrait := height(768, 1024)
					landscape := height(1024, 768)
					assert.NotEqual(t, portrait, landscape, "document height after rotating")
				},
			},
		},
	}
}

func zoomGroup() *Group {
	return &Group{
		Title: "Zoom Levels",
		Cases: []*Case{
			{
				Title: "Page is usable at 200% zoom",
				Run: func(t *T) {
					gotoHome(t)

					t.Eval(zoomScript, nil)
					t.Wait(breakpointDelay)

					var overflow bool
					t.Eval(overflowXScript, &overflow)
					assert.False(t, overflow, "horizontal scroll when zoomed")
				},
			},
		},
	}
}
