package suite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/ethpandaops/sitecheck/internal/viewport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const (
	rapidNavigations     = 20
	historyCycles        = 10
	concurrentPages      = 5
	longSessionCycles    = 50
	maxSessionGrowth     = 100
	maxImageVisits       = 20
	rapidClicks          = 50
	rapidScrolls         = 100
	rapidResizes         = 20
	hoverIterations      = 30
	rapidInputs          = 20
	submitClicks         = 10
	smoothScrolls        = 10
	scrollSteps          = 60
	maxScrollStepAvg     = 50 * time.Millisecond
	microActionTimeout   = 100 * time.Millisecond
	slowNetworkThreshold = 30 * time.Second
)

var errEmptyTitle = errors.New("empty title")

var resizeSizes = [][2]int{
	{1920, 1080},
	{1366, 768},
	{768, 1024},
	{375, 667},
}

// Stability drives the site with repeated and randomized interaction.
func Stability() *Suite {
	return &Suite{
		Name:  "stability",
		Title: "Stability and Stress Tests",
		Groups: []*Group{
			rapidNavigationGroup(),
			memoryStressGroup(),
			eventStressGroup(),
			formStabilityGroup(),
			animationStabilityGroup(),
			networkResilienceGroup(),
			errorRecoveryGroup(),
			concurrencyGroup(),
		},
	}
}

func rapidNavigationGroup() *Group {
	return &Group{
		Title:     "Rapid Navigation",
		LoadState: browser.DOMContentLoaded,
		Cases: []*Case{
			{
				Title: "Rapid page switching does not crash",
				Slow:  true,
				Run: func(t *T) {
					for i := 0; i < rapidNavigations; i++ {
						route := CoreRoutes[t.Faker().IntRange(0, len(CoreRoutes)-1)]
						t.Goto(route.Path)
					}

					assert.Greater(t, len(t.BodyText()), 100, "body text length")
				},
			},
			{
				Title: "Back/forward navigation stress test",
				Run: func(t *T) {
					for _, path := range []string{"/", "/work", "/services", "/about"} {
						t.GotoState(path, browser.Load)
					}

					for i := 0; i < historyCycles; i++ {
						t.Must(t.Page().GoBack(t.Context()), "going back")
						t.Must(t.Page().GoForward(t.Context()), "going forward")
					}

					assert.Contains(t, t.CurrentURL(), "/about")
				},
			},
			{
				Title: "Multiple tabs do not cause issues",
				Run: func(t *T) {
					bctx := t.NewContext()

					titles := make([]string, concurrentPages)
					g, gCtx := errgroup.WithContext(t.Context())
					for i := 0; i < concurrentPages; i++ {
						g.Go(func() error {
							page, err := bctx.NewPage(gCtx)
							if err != nil {
								return fmt.Errorf("opening page %d: %w", i, err)
							}

							path := CoreRoutes[i%len(CoreRoutes)].Path
							if _, err := page.Goto(gCtx, t.URL(path), browser.Load); err != nil {
								return fmt.Errorf("page %d: %w", i, err)
							}

							title, err := page.Title(gCtx)
							if err != nil {
								return fmt.Errorf("page %d: %w", i, err)
							}
							if title == "" {
								return fmt.Errorf("page %d (%s): %w", i, path, errEmptyTitle)
							}

							titles[i] = title

							return nil
						})
					}

					require.NoError(t, g.Wait())
					for i, title := range titles {
						assert.NotEmpty(t, title, "title of page %d", i)
					}
				},
			},
		},
	}
}

func memoryStressGroup() *Group {
	return &Group{
		Title:      "Memory Stress",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Long session memory stability",
				Slow:  true,
				Run: func(t *T) {
					initial := heapOrSkip(t)

					for i := 0; i < longSessionCycles; i++ {
						t.Goto(CoreRoutes[i%len(CoreRoutes)].Path)
						t.Eval(halfScrollScript, nil)
						t.Eval(scrollToTopScript, nil)
					}
					t.Wait(2 * time.Second)

					final := heapOrSkip(t)
					assertGrowth(t, initial, final, maxSessionGrowth)
				},
			},
			{
				Title: "Image loading does not cause memory issues",
				Run: func(t *T) {
					var urls []string
					t.Eval(imageURLsScript, &urls)

					for i := 0; i < min(maxImageVisits, len(urls)); i++ {
						t.GotoState(urls[i], browser.Load)
						t.Wait(100 * time.Millisecond)
					}
				},
			},
		},
	}
}

func eventStressGroup() *Group {
	return &Group{
		Title:      "Event Handling Stress",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Rapid clicking does not crash",
				Run: func(t *T) {
					n := t.Count(selButtonsA)
					for i := 0; i < rapidClicks && n > 0; i++ {
						idx := t.Faker().IntRange(0, n-1)
						t.Try(microActionTimeout, func(ctx context.Context) error {
							return t.Page().Click(ctx, selButtonsA, idx)
						})
					}

					assert.NotEmpty(t, t.BodyText(), "body text")
				},
			},
			{
				Title: "Rapid scrolling does not crash",
				Run: func(t *T) {
					for i := 0; i < rapidScrolls; i++ {
						t.Eval(rapidScrollScript(i), nil)
					}

					var y *float64
					t.Eval(scrollYScript, &y)
					assert.NotNil(t, y, "scroll position")
				},
			},
			{
				Title: "Rapid resize does not crash",
				Run: func(t *T) {
					settle := viewport.FixedDelay(50 * time.Millisecond)
					for i := 0; i < rapidResizes; i++ {
						size := resizeSizes[i%len(resizeSizes)]
						_, err := viewport.TestBreakpoint(t.Context(), t.Page(), size[0], size[1], settle)
						t.Must(err, "resizing")
					}

					assert.NotEmpty(t, t.BodyText(), "body text")
				},
			},
			{
				Title: "Hover/unhover stress test",
				Run: func(t *T) {
					n := t.Count(selHoverable)
					for i := 0; i < hoverIterations && n > 0; i++ {
						t.Try(microActionTimeout, func(ctx context.Context) error {
							return t.Page().Hover(ctx, selHoverable, i%n)
						})
					}
				},
			},
		},
	}
}

func formStabilityGroup() *Group {
	return &Group{
		Title:      "Form Stability",
		BeforeEach: func(t *T) { t.Goto("/contact") },
		Cases: []*Case{
			{
				Title: "Rapid form input does not crash",
				Run: func(t *T) {
					n := t.Count(selTextInputs)
					f := t.Faker()
					for i := 0; i < rapidInputs && n > 0; i++ {
						idx := i % n
						values := []string{f.Name(), "", f.Email()}
						for _, v := range values {
							t.Try(time.Second, func(ctx context.Context) error {
								return t.Page().Fill(ctx, selTextInputs, idx, v)
							})
						}
					}
				},
			},
			{
				Title: "Form validation stress test",
				Run: func(t *T) {
					if t.Count(selSubmit) == 0 {
						return
					}

					for i := 0; i < submitClicks; i++ {
						t.Try(2*time.Second, func(ctx context.Context) error {
							return t.Page().Click(ctx, selSubmit, 0)
						})
						t.Wait(100 * time.Millisecond)
					}
				},
			},
		},
	}
}

func animationStabilityGroup() *Group {
	return &Group{
		Title:      "Animation Stability",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Animation completion does not crash",
				Run: func(t *T) {
					t.Eval(scrollToTopScript, nil)

					for i := 0; i < smoothScrolls; i++ {
						t.Eval(smoothScrollScript(i), nil)
						t.Wait(600 * time.Millisecond)
					}

					var y float64
					t.Eval(scrollYScript, &y)
					assert.GreaterOrEqual(t, y, 0.0, "scroll position")
				},
			},
			{
				Title: "CSS animations remain smooth",
				Run: func(t *T) {
					var total time.Duration
					for i := 0; i < scrollSteps; i++ {
						start := time.Now()
						t.Eval(scrollBy10Script, nil)
						total += time.Since(start)
						t.Wait(16 * time.Millisecond)
					}

					avg := total / scrollSteps
					assert.Less(t, avg, maxScrollStepAvg, "average scroll step")
				},
			},
		},
	}
}

func onLine(t *T) bool {
	var online bool
	t.Eval(onlineScript, &online)

	return online
}

func networkResilienceGroup() *Group {
	return &Group{
		Title: "Network Resilience",
		Cases: []*Case{
			{
				Title: "Offline detection works",
				Run: func(t *T) {
					gotoHome(t)
					assert.True(t, onLine(t), "online before going offline")

					t.Must(t.Browser().SetOffline(t.Context(), true), "going offline")
					assert.False(t, onLine(t), "online while offline")

					t.Must(t.Browser().SetOffline(t.Context(), false), "going online")
					assert.True(t, onLine(t), "online after reconnecting")
				},
			},
			{
				Title: "Slow network handling",
				Run: func(t *T) {
					t.Must(t.Browser().SetOffline(t.Context(), false), "going online")

					start := time.Now()
					t.GotoState("/", browser.DOMContentLoaded)
					assert.Less(t, time.Since(start), slowNetworkThreshold, "time to DOMContentLoaded")
				},
			},
		},
	}
}

func errorRecoveryGroup() *Group {
	return &Group{
		Title: "Error Recovery",
		Cases: []*Case{
			{
				Title: "404 page renders correctly",
				Run: func(t *T) {
					t.Goto(NotFoundPath)
					assert.Greater(t, len(t.BodyText()), 50, "body text length")
				},
			},
			{
				Title: "JavaScript errors are handled gracefully",
				Run: func(t *T) {
					c := attachCapture(t)

					gotoHome(t)
					t.Wait(3 * time.Second)

					assert.Empty(t, describeRecords(c.Fatal()), "fatal errors")
				},
			},
		},
	}
}

func concurrencyGroup() *Group {
	scripts := []string{
		`(window.scrollTo(0, 500), window.scrollY)`,
		`document.querySelectorAll("img").length`,
		`document.querySelectorAll("a").length`,
		`window.innerWidth`,
	}

	return &Group{
		Title:      "Concurrent Operations",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Multiple simultaneous operations do not crash",
				Run: func(t *T) {
					results := make([]*float64, len(scripts))

					g, gCtx := errgroup.WithContext(t.Context())
					for i, script := range scripts {
						g.Go(func() error {
							return t.Page().Evaluate(gCtx, script, &results[i])
						})
					}

					t.Must(g.Wait(), "evaluating concurrently")
					for i, r := range results {
						assert.NotNil(t, r, "result of operation %d", i)
					}
				},
			},
		},
	}
}
