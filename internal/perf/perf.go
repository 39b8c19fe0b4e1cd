// Package perf samples performance data from a live page.
package perf

import (
	"context"
	"fmt"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser"
)

// DefaultVitalsWindow is how long Core Web Vitals are observed.
const DefaultVitalsWindow = 5 * time.Second

// MemoryInfo mirrors performance.memory. Only some engines expose it.
type MemoryInfo struct {
	UsedJSHeapSize  int64 `json:"usedJSHeapSize"`
	TotalJSHeapSize int64 `json:"totalJSHeapSize"`
	JSHeapSizeLimit int64 `json:"jsHeapSizeLimit"`
}

// UsedMB returns the used heap in MiB.
func (m MemoryInfo) UsedMB() float64 {
	return float64(m.UsedJSHeapSize) / (1024 * 1024)
}

// NavigationTiming is the subset of the navigation entry the harness reads.
type NavigationTiming struct {
	Name                     string  `json:"name"`
	StartTime                float64 `json:"startTime"`
	Duration                 float64 `json:"duration"`
	DomInteractive           float64 `json:"domInteractive"`
	DomContentLoadedEventEnd float64 `json:"domContentLoadedEventEnd"`
	DomComplete              float64 `json:"domComplete"`
	LoadEventEnd             float64 `json:"loadEventEnd"`
	TransferSize             float64 `json:"transferSize"`
}

// PaintTiming is one paint entry.
type PaintTiming struct {
	Name      string  `json:"name"`
	StartTime float64 `json:"startTime"`
}

// Snapshot is a point-in-time read of the page's performance state.
type Snapshot struct {
	// Memory is nil when the engine exposes no memory API.
	Memory     *MemoryInfo       `json:"memory"`
	Navigation *NavigationTiming `json:"navigation"`
	Paint      []PaintTiming     `json:"paint"`
}

// FirstContentfulPaint returns the first-contentful-paint time if recorded.
func (s *Snapshot) FirstContentfulPaint() (float64, bool) {
	for _, p := range s.Paint {
		if p.Name == "first-contentful-paint" {
			return p.StartTime, true
		}
	}

	return 0, false
}

// Vitals holds the values accumulated during the observation window.
type Vitals struct {
	LCP float64 `json:"lcp"`
	CLS float64 `json:"cls"`
	FID float64 `json:"fid"`
}

// FrameStats describes animation frame pacing.
type FrameStats struct {
	FPS          float64 `json:"fps"`
	AvgFrameTime float64 `json:"avgFrameTime"`
}

// ScrollStats describes the cost of programmatic scroll steps.
type ScrollStats struct {
	AvgTime float64 `json:"avgTime"`
	MaxTime float64 `json:"maxTime"`
}

const (
	// MeasureScript reads memory, navigation and paint entries.
	MeasureScript = `(() => {
  const nav = performance.getEntriesByType("navigation")[0];
  return {
    memory: performance.memory ? {
      usedJSHeapSize: performance.memory.usedJSHeapSize,
      totalJSHeapSize: performance.memory.totalJSHeapSize,
      jsHeapSizeLimit: performance.memory.jsHeapSizeLimit,
    } : null,
    navigation: nav ? nav.toJSON() : null,
    paint: performance.getEntriesByType("paint").map((e) => ({ name: e.name, startTime: e.startTime })),
  };
})()`

	// HeapScript reads the used heap, or null without a memory API.
	HeapScript = `performance.memory ? performance.memory.usedJSHeapSize : null`

	vitalsScript = `new Promise((resolve) => {
  let lcp = 0;
  let cls = 0;
  let fid = 0;
  const observer = new PerformanceObserver((list) => {
    list.getEntries().forEach((entry) => {
      if (entry.entryType === "largest-contentful-paint") {
        lcp = entry.startTime;
      }
      if (entry.entryType === "layout-shift" && !entry.hadRecentInput) {
        cls += entry.value;
      }
      if (entry.entryType === "first-input") {
        fid = entry.processingStart - entry.startTime;
      }
    });
  });
  for (const type of ["largest-contentful-paint", "layout-shift", "first-input"]) {
    try {
      observer.observe({ type, buffered: true });
    } catch (e) {}
  }
  setTimeout(() => {
    observer.disconnect();
    resolve({ lcp, cls, fid });
  }, %d);
})`

	frameRateScript = `new Promise((resolve) => {
  const frameTimes = [];
  let lastTime = performance.now();
  const countFrames = () => {
    const now = performance.now();
    frameTimes.push(now - lastTime);
    lastTime = now;
    if (frameTimes.length < %d) {
      requestAnimationFrame(countFrames);
      return;
    }
    const avgFrameTime = frameTimes.reduce((a, b) => a + b, 0) / frameTimes.length;
    resolve({ fps: 1000 / avgFrameTime, avgFrameTime });
  };
  requestAnimationFrame(countFrames);
})`

	scrollTimingScript = `new Promise((resolve) => {
  window.scrollTo(0, 0);
  const measurements = [];
  const step = () => {
    const start = performance.now();
    window.scrollBy(0, %d);
    measurements.push(performance.now() - start);
    if (measurements.length < %d) {
      requestAnimationFrame(step);
      return;
    }
    resolve({
      avgTime: measurements.reduce((a, b) => a + b, 0) / measurements.length,
      maxTime: Math.max(...measurements),
    });
  };
  requestAnimationFrame(step);
})`
)

// Measure reads a performance snapshot.
func Measure(ctx context.Context, page browser.Page) (*Snapshot, error) {
	var snap Snapshot
	if err := page.Evaluate(ctx, MeasureScript, &snap); err != nil {
		return nil, fmt.Errorf("measuring performance: %w", err)
	}

	return &snap, nil
}

// UsedHeap returns the used JS heap in bytes. ok is false when the engine
// has no memory API; callers skip rather than fail in that case.
func UsedHeap(ctx context.Context, page browser.Page) (used int64, ok bool, err error) {
	var heap *int64
	if err := page.Evaluate(ctx, HeapScript, &heap); err != nil {
		return 0, false, fmt.Errorf("reading heap size: %w", err)
	}

	if heap == nil {
		return 0, false, nil
	}

	return *heap, true, nil
}

// VitalsScript returns the observer script for a window.
func VitalsScript(window time.Duration) string {
	return fmt.Sprintf(vitalsScript, window.Milliseconds())
}

// ObserveWebVitals accumulates LCP, CLS and FID over window. The page keeps
// running while the observer is attached; the call returns once the window
// closes.
func ObserveWebVitals(ctx context.Context, page browser.Page, window time.Duration) (*Vitals, error) {
	var v Vitals
	if err := page.Evaluate(ctx, VitalsScript(window), &v); err != nil {
		return nil, fmt.Errorf("observing web vitals: %w", err)
	}

	return &v, nil
}

// FrameRateScript returns the rAF sampling script for n frames.
func FrameRateScript(frames int) string {
	return fmt.Sprintf(frameRateScript, frames)
}

// FrameRate samples n animation frames.
func FrameRate(ctx context.Context, page browser.Page, frames int) (*FrameStats, error) {
	var fs FrameStats
	if err := page.Evaluate(ctx, FrameRateScript(frames), &fs); err != nil {
		return nil, fmt.Errorf("sampling frame rate: %w", err)
	}

	return &fs, nil
}

// ScrollTimingScript returns the scroll-step timing script.
func ScrollTimingScript(steps, pixels int) string {
	return fmt.Sprintf(scrollTimingScript, pixels, steps)
}

// ScrollTiming scrolls steps times by pixels, one step per frame, and times
// each scrollBy call.
func ScrollTiming(ctx context.Context, page browser.Page, steps, pixels int) (*ScrollStats, error) {
	var ss ScrollStats
	if err := page.Evaluate(ctx, ScrollTimingScript(steps, pixels), &ss); err != nil {
		return nil, fmt.Errorf("timing scroll: %w", err)
	}

	return &ss, nil
}
