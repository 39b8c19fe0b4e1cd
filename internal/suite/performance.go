package suite

import (
	"strings"
	"time"

	"github.com/ethpandaops/sitecheck/internal/audit"
	"github.com/ethpandaops/sitecheck/internal/perf"
	"github.com/stretchr/testify/assert"
)

const (
	maxLoadTime          = 5 * time.Second
	maxLoadEventEnd      = 5000
	maxDOMContentLoaded  = 3000
	maxHeapMB            = 200
	maxLeakGrowthPercent = 50
	minFPS               = 30
	maxScrollStepMs      = 16.67
	maxOversizedPercent  = 50
	auditedRoutes        = 2
)

// Performance checks load timing, Core Web Vitals and resource hygiene.
func Performance() *Suite {
	return &Suite{
		Name:  "performance",
		Title: "Performance Tests",
		Groups: []*Group{
			webVitalsGroup(),
			loadMetricsGroup(),
			resourceGroup(),
			memoryGroup(),
			animationGroup(),
			networkGroup(),
			lighthouseGroup(),
		},
	}
}

func webVitalsGroup() *Group {
	g := &Group{Title: "Core Web Vitals"}

	for _, route := range CoreRoutes {
		g.Cases = append(g.Cases, &Case{
			Title:     route.Name + " - Core Web Vitals meet thresholds",
			Retryable: true,
			Run: func(t *T) {
				t.Goto(route.Path)

				v, err := perf.ObserveWebVitals(t.Context(), t.Page(), perf.DefaultVitalsWindow)
				t.Must(err, "observing web vitals")

				th := perf.DefaultThresholds
				assert.Less(t, v.LCP, th.LargestContentfulPaint, "largest contentful paint (ms)")
				assert.Less(t, v.CLS, th.CumulativeLayoutShift, "cumulative layout shift")

				violations := perf.CheckThresholds(perf.Metrics{
					LargestContentfulPaint: perf.Value(v.LCP),
					CumulativeLayoutShift:  perf.Value(v.CLS),
					FirstInputDelay:        perf.Value(v.FID),
				}, th)
				for _, viol := range violations {
					t.Logf("%s %.2f exceeds %.2f", viol.Metric, viol.Value, viol.Threshold)
				}
			},
		})
	}

	return g
}

func loadMetricsGroup() *Group {
	g := &Group{Title: "Page Load Metrics"}

	for _, route := range CoreRoutes {
		g.Cases = append(g.Cases, &Case{
			Title:     route.Name + " - Load time is acceptable",
			Retryable: true,
			Run: func(t *T) {
				start := time.Now()
				t.Goto(route.Path)
				assert.Less(t, time.Since(start), maxLoadTime, "wall-clock load time")

				snap, err := perf.Measure(t.Context(), t.Page())
				t.Must(err, "measuring performance")

				if snap.Navigation != nil {
					assert.Less(t, snap.Navigation.LoadEventEnd, float64(maxLoadEventEnd), "loadEventEnd (ms)")
					assert.Less(t, snap.Navigation.DomContentLoadedEventEnd, float64(maxDOMContentLoaded), "domContentLoadedEventEnd (ms)")
				}

				if fcp, ok := snap.FirstContentfulPaint(); ok {
					for _, viol := range perf.CheckThresholds(perf.Metrics{FirstContentfulPaint: perf.Value(fcp)}, perf.DefaultThresholds) {
						t.Logf("%s %.0fms exceeds %.0fms", viol.Metric, viol.Value, viol.Threshold)
					}
				}
			},
		})
	}

	return g
}

func resourceGroup() *Group {
	return &Group{
		Title:      "Resource Loading",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "JavaScript files are loaded efficiently",
				Run: func(t *T) {
					var srcs []*string
					t.Eval(scriptSrcsScript, &srcs)
					for i, src := range srcs {
						assert.True(t, src != nil && *src != "", "script %d has no src", i)
					}
				},
			},
			{
				Title: "CSS files are loaded efficiently",
				Run: func(t *T) {
					var hrefs []*string
					t.Eval(stylesheetHrefScript, &hrefs)
					for i, href := range hrefs {
						assert.True(t, href != nil && *href != "", "stylesheet %d has no href", i)
					}
				},
			},
			{
				Title: "No render-blocking resources",
				Run: func(t *T) {
					var res struct {
						BlockingScripts int `json:"blockingScripts"`
						BlockingStyles  int `json:"blockingStyles"`
					}
					t.Eval(blockingScriptsScript, &res)

					assert.Zero(t, res.BlockingScripts, "scripts without defer, async or type=module")
					t.Logf("%d stylesheets without media", res.BlockingStyles)
				},
			},
		},
	}
}

func memoryGroup() *Group {
	return &Group{
		Title:      "Memory Usage",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Memory usage is within acceptable limits",
				Run: func(t *T) {
					snap, err := perf.Measure(t.Context(), t.Page())
					t.Must(err, "measuring performance")
					if snap.Memory == nil {
						t.Skip("memory API not available")
					}

					assert.Less(t, snap.Memory.UsedMB(), float64(maxHeapMB), "used heap MB")
				},
			},
			{
				Title: "No memory leaks on navigation",
				Slow:  true,
				Run: func(t *T) {
					initial := heapOrSkip(t)

					for i := 0; i < 5; i++ {
						t.Goto("/")
						t.Goto("/work")
						t.Goto("/services")
					}
					t.Wait(time.Second)

					final := heapOrSkip(t)
					assertGrowth(t, initial, final, maxLeakGrowthPercent)
				},
			},
		},
	}
}

// heapOrSkip returns the used heap or skips the case when the engine does
// not expose one.
func heapOrSkip(t *T) int64 {
	used, ok, err := perf.UsedHeap(t.Context(), t.Page())
	t.Must(err, "reading heap")
	if !ok {
		t.Skip("memory API not available")
	}

	return used
}

func assertGrowth(t *T, initial, final int64, maxPercent float64) {
	if initial <= 0 || final <= 0 {
		return
	}

	increase := float64(final-initial) / float64(initial) * 100
	assert.Less(t, increase, maxPercent, "heap growth %% (%d -> %d bytes)", initial, final)
}

func animationGroup() *Group {
	return &Group{
		Title:      "Animation Performance",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Animations maintain 60fps",
				Run: func(t *T) {
					fs, err := perf.FrameRate(t.Context(), t.Page(), 60)
					t.Must(err, "sampling frames")
					assert.Greater(t, fs.FPS, float64(minFPS), "frames per second")
				},
			},
			{
				Title: "Scroll performance is smooth",
				Run: func(t *T) {
					ss, err := perf.ScrollTiming(t.Context(), t.Page(), 30, 100)
					t.Must(err, "timing scroll")
					assert.Less(t, ss.AvgTime, maxScrollStepMs, "average scroll step (ms)")
				},
			},
		},
	}
}

func networkGroup() *Group {
	return &Group{
		Title:      "Network Performance",
		BeforeEach: gotoHome,
		Cases: []*Case{
			{
				Title: "Images are properly optimized",
				Run: func(t *T) {
					var c tally
					t.Eval(imageOptimizationScript, &c)
					if c.Total > 0 {
						assert.Less(t, c.failRatio()*100, float64(maxOversizedPercent), "%d of %d images oversized", c.Failing, c.Total)
					}
				},
			},
			{
				Title: "Lazy loading is implemented",
				Run: func(t *T) {
					var images struct {
						Total int `json:"total"`
						Lazy  int `json:"lazy"`
					}
					t.Eval(lazyImagesScript, &images)

					if images.Total > 3 {
						assert.Positive(t, images.Lazy, "lazy images out of %d", images.Total)
					}
				},
			},
		},
	}
}

func lighthouseGroup() *Group {
	g := &Group{Title: "Lighthouse Audit"}

	for _, route := range CoreRoutes[:auditedRoutes] {
		g.Cases = append(g.Cases, &Case{
			Title: route.Name + " - Lighthouse performance score",
			Slow:  true,
			Run: func(t *T) {
				if c := t.AuditCapability(); !c.Available() {
					t.Skip(c.Reason())
				}

				scores := t.Audit(route.Path)
				failures := scores.Check(audit.DefaultFloors)
				assert.Empty(t, failures, "lighthouse: %s", strings.Join(failures, "; "))
			},
		})
	}

	return g
}
