package suite

import (
	"strings"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/ethpandaops/sitecheck/internal/perf"
	"github.com/ethpandaops/sitecheck/internal/viewport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	minTapSize         = 44
	minFontSize        = 12
	mobileMaxLoad      = 8 * time.Second
	mobileMaxHeapMB    = 150
	mobileMinFPS       = 25
	mobileSampleFrames = 30
)

// Mobile checks responsive layout across phone and tablet profiles.
func Mobile() *Suite {
	s := &Suite{
		Name:  "mobile",
		Title: "Mobile Responsiveness Tests",
	}

	for _, d := range MobileDevices {
		s.Groups = append(s.Groups, deviceGroup(d))
	}

	s.Groups = append(s.Groups,
		gestureGroup(),
		mobilePerformanceGroup(),
		mobileFormGroup(),
		mobileFeatureGroup(),
	)

	return s
}

func deviceGroup(d browser.DeviceProfile) *Group {
	device := d
	g := &Group{Title: d.Name, Use: &device}

	for _, route := range CoreRoutes {
		g.Cases = append(g.Cases,
			&Case{
				Title: route.Name + " page renders without overflow",
				Run: func(t *T) {
					t.Goto(route.Path)

					var overflow bool
					t.Eval(overflowXScript, &overflow)
					assert.False(t, overflow, "horizontal overflow on %s", route.Path)
				},
			},
			&Case{
				Title: route.Name + " - All interactive elements are accessible",
				Run: func(t *T) {
					t.Goto(route.Path)

					var c tally
					t.Eval(interactiveSizeScript, &c)
					assert.Greater(t, c.passRatio(), 0.95,
						"%d of %d interactive elements are smaller than %dpx on both axes", c.Failing, c.Total, minTapSize)
				},
			},
			&Case{
				Title: route.Name + " - Text remains readable",
				Run: func(t *T) {
					t.Goto(route.Path)

					var sizes []float64
					t.Eval(fontSizesScript, &sizes)

					c := tally{Total: len(sizes)}
					for _, s := range sizes {
						if s < minFontSize {
							c.Failing++
						}
					}
					assert.Greater(t, c.passRatio(), 0.95, "%d of %d text elements below %dpx", c.Failing, c.Total, minFontSize)
				},
			},
			&Case{
				Title: route.Name + " - Images are responsive",
				Run: func(t *T) {
					t.Goto(route.Path)

					var c tally
					t.Eval(oversizedImagesScript(device.Width), &c)
					if c.Total > 0 {
						assert.Less(t, c.failRatio(), 0.3, "%d of %d images oversized", c.Failing, c.Total)
					}
				},
			},
		)
	}

	g.Cases = append(g.Cases,
		&Case{
			Title: "Viewport matches device profile",
			Run: func(t *T) {
				gotoHome(t)

				m, err := viewport.TestBreakpoint(t.Context(), t.Page(), device.Width, device.Height, nil)
				t.Must(err, "resizing viewport")
				assert.Equal(t, device.Width, m.Width, "innerWidth")
			},
		},
		&Case{
			Title: "Navigation is accessible on mobile",
			Run: func(t *T) {
				gotoHome(t)

				if device.Width >= 768 {
					return
				}

				var menu menuToggle
				t.Eval(menuToggleScript(selMenuToggle), &menu)
				if !menu.Exists {
					t.Logf("no menu toggle on %s", device.Name)
					return
				}

				assert.True(t, menu.Visible, "menu toggle visible")
				assert.GreaterOrEqual(t, menu.Width, float64(minTapSize), "menu toggle width")
				assert.GreaterOrEqual(t, menu.Height, float64(minTapSize), "menu toggle height")
			},
		},
		&Case{
			Title: "Tap targets are large enough",
			Run: func(t *T) {
				gotoHome(t)

				var c tally
				t.Eval(tapTargetScript, &c)
				assert.Greater(t, c.passRatio(), 0.9, "%d of %d tap targets under %dx%d", c.Failing, c.Total, minTapSize, minTapSize)
			},
		},
		&Case{
			Title: "Viewport meta tag is present",
			Run: func(t *T) {
				gotoHome(t)

				require.Positive(t, t.Count(selViewport), "viewport meta tags")

				var content *string
				t.Eval(viewportMetaScript, &content)
				require.NotNil(t, content, "viewport meta content")
				assert.Contains(t, *content, "width=device-width")
			},
		},
		&Case{
			Title: "No horizontal scrolling on mobile",
			Run: func(t *T) {
				gotoHome(t)
				t.Eval(scrollToTopScript, nil)

				var w struct {
					ScrollWidth float64 `json:"scrollWidth"`
					ClientWidth float64 `json:"clientWidth"`
				}
				t.Eval(scrollWidthScript, &w)
				assert.LessOrEqual(t, w.ScrollWidth, w.ClientWidth, "scrollWidth")
			},
		},
	)

	return g
}

func gestureGroup() *Group {
	device := touchPhone

	return &Group{
		Title:      "Mobile Gestures",
		Use:        &device,
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Swipe gestures work correctly",
				Run: func(t *T) {
					t.Eval(scrollToTopScript, nil)

					var startY, endY float64
					t.Eval(scrollYScript, &startY)

					t.Eval(tapScript, nil)
					t.Wait(100 * time.Millisecond)

					t.Eval(scrollBy500Script, nil)
					t.Eval(scrollYScript, &endY)
					assert.Greater(t, endY, startY, "scroll position after swipe")
				},
			},
			{
				Title: "Pinch zoom is disabled or works correctly",
				Run: func(t *T) {
					var content *string
					t.Eval(viewportMetaScript, &content)
					if content == nil {
						return
					}

					allowsZoom := !strings.Contains(*content, "user-scalable=no") &&
						!strings.Contains(*content, "maximum-scale=1")
					t.Logf("viewport allows zoom: %v", allowsZoom)
				},
			},
		},
	}
}

func mobilePerformanceGroup() *Group {
	device := mobilePhone

	return &Group{
		Title: "Mobile Performance",
		Use:   &device,
		Cases: []*Case{
			{
				Title:     "Page loads quickly on mobile",
				Retryable: true,
				Run: func(t *T) {
					start := time.Now()
					gotoHome(t)
					assert.Less(t, time.Since(start), mobileMaxLoad, "load time")
				},
			},
			{
				Title: "Memory usage is reasonable on mobile",
				Run: func(t *T) {
					gotoHome(t)

					used, ok, err := perf.UsedHeap(t.Context(), t.Page())
					t.Must(err, "reading heap")
					if !ok {
						t.Skip("memory API not available")
					}

					assert.Less(t, perf.MemoryInfo{UsedJSHeapSize: used}.UsedMB(), float64(mobileMaxHeapMB), "used heap MB")
				},
			},
			{
				Title: "Animations are smooth on mobile",
				Run: func(t *T) {
					gotoHome(t)

					fs, err := perf.FrameRate(t.Context(), t.Page(), mobileSampleFrames)
					t.Must(err, "sampling frames")
					assert.Greater(t, fs.FPS, float64(mobileMinFPS), "frames per second")
				},
			},
		},
	}
}

func mobileFormGroup() *Group {
	device := smallPhone

	return &Group{
		Title:      "Mobile Forms",
		Use:        &device,
		BeforeEach: func(t *T) { t.Goto("/contact") },
		Cases: []*Case{
			{
				Title: "Form inputs are usable on mobile",
				Run: func(t *T) {
					var heights []float64
					t.Eval(formFieldHeightsScript, &heights)

					for i, h := range heights {
						assert.GreaterOrEqual(t, h, float64(minTapSize), "height of field %d", i)
					}
				},
			},
			{
				Title: "Keyboard navigation works on mobile",
				Run: func(t *T) {
					if t.Count(selTextInputs) == 0 {
						return
					}

					t.Must(t.Page().Click(t.Context(), selTextInputs, 0), "clicking first input")
					t.Wait(200 * time.Millisecond)

					var focused bool
					t.Eval(firstInputFocusedScript, &focused)
					assert.True(t, focused, "first input focused")
				},
			},
		},
	}
}

func mobileFeatureGroup() *Group {
	device := fullPhone

	return &Group{
		Title:      "Mobile-Specific Features",
		Use:        &device,
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Touch events are handled properly",
				Run: func(t *T) {
					var menu menuToggle
					t.Eval(menuToggleScript(selButtonsA), &menu)
					if !menu.Exists || !menu.Visible {
						return
					}

					t.Must(t.Page().Click(t.Context(), selButtonsA, 0), "tapping first control")
					t.Wait(500 * time.Millisecond)
				},
			},
			{
				Title: "Mobile menu toggles correctly",
				Run: func(t *T) {
					var menu menuToggle
					t.Eval(menuToggleScript(selMenuButton), &menu)
					if !menu.Exists || !menu.Visible {
						return
					}

					t.Must(t.Page().Click(t.Context(), selMenuButton, 0), "opening menu")
					t.Wait(500 * time.Millisecond)

					t.Eval(menuToggleScript(selMenuButton), &menu)
					if menu.Expanded != nil {
						assert.Equal(t, "true", *menu.Expanded, "aria-expanded after opening")
					}

					t.Must(t.Page().Click(t.Context(), selMenuButton, 0), "closing menu")
					t.Wait(500 * time.Millisecond)
				},
			},
			{
				Title: "Sticky header works on mobile",
				Run: func(t *T) {
					var initial *float64
					t.Eval(headerTopScript, &initial)
					if initial == nil {
						return
					}

					t.Eval(scrollTo500Script, nil)
					t.Wait(500 * time.Millisecond)

					var scrolled *float64
					t.Eval(headerTopScript, &scrolled)

					if *initial == 0 {
						require.NotNil(t, scrolled, "header after scrolling")
						assert.LessOrEqual(t, *scrolled, 100.0, "header top after scrolling")
					}
				},
			},
		},
	}
}
