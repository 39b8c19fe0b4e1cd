// Package viewport resizes a page to a breakpoint and reads back what the
// page reports.
package viewport

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser"
)

// DefaultSettleDelay is the fixed pause after a resize.
const DefaultSettleDelay = 500 * time.Millisecond

// MetricsScript reads the dimensions the page observes.
const MetricsScript = `({ width: window.innerWidth, height: window.innerHeight, devicePixelRatio: window.devicePixelRatio })`

const layoutScript = `({
  scrollWidth: document.documentElement.scrollWidth,
  scrollHeight: document.documentElement.scrollHeight,
  innerWidth: window.innerWidth,
  innerHeight: window.innerHeight,
})`

// Metrics are the dimensions reported by the page after resizing.
type Metrics struct {
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	DevicePixelRatio float64 `json:"devicePixelRatio"`
}

// Settler waits for the page to finish reacting to a resize.
type Settler interface {
	Settle(ctx context.Context, page browser.Page) error
}

// FixedDelay waits a constant duration.
type FixedDelay time.Duration

func (d FixedDelay) Settle(ctx context.Context, _ browser.Page) error {
	return browser.Sleep(ctx, time.Duration(d))
}

// StableLayout polls layout dimensions until two consecutive reads agree
// within Epsilon pixels, or MaxWait elapses.
type StableLayout struct {
	Interval time.Duration
	Epsilon  float64
	MaxWait  time.Duration
}

type layout struct {
	ScrollWidth  float64 `json:"scrollWidth"`
	ScrollHeight float64 `json:"scrollHeight"`
	InnerWidth   float64 `json:"innerWidth"`
	InnerHeight  float64 `json:"innerHeight"`
}

func (l layout) within(o layout, eps float64) bool {
	return math.Abs(l.ScrollWidth-o.ScrollWidth) <= eps &&
		math.Abs(l.ScrollHeight-o.ScrollHeight) <= eps &&
		math.Abs(l.InnerWidth-o.InnerWidth) <= eps &&
		math.Abs(l.InnerHeight-o.InnerHeight) <= eps
}

func (s StableLayout) Settle(ctx context.Context, page browser.Page) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	maxWait := s.MaxWait
	if maxWait <= 0 {
		maxWait = 2 * time.Second
	}

	deadline := time.Now().Add(maxWait)

	var prev layout
	if err := page.Evaluate(ctx, layoutScript, &prev); err != nil {
		return fmt.Errorf("reading layout: %w", err)
	}

	for time.Now().Before(deadline) {
		if err := browser.Sleep(ctx, interval); err != nil {
			return err
		}

		var cur layout
		if err := page.Evaluate(ctx, layoutScript, &cur); err != nil {
			return fmt.Errorf("reading layout: %w", err)
		}

		if cur.within(prev, s.Epsilon) {
			return nil
		}
		prev = cur
	}

	// Still moving at MaxWait; proceed with whatever the page reports.
	return nil
}

// TestBreakpoint resizes page to width×height, waits for settle and returns
// the dimensions the page then reports. A nil settle uses DefaultSettleDelay.
func TestBreakpoint(ctx context.Context, page browser.Page, width, height int, settle Settler) (Metrics, error) {
	if width <= 0 || height <= 0 {
		return Metrics{}, fmt.Errorf("invalid breakpoint %dx%d", width, height)
	}

	if settle == nil {
		settle = FixedDelay(DefaultSettleDelay)
	}

	if err := page.SetViewport(ctx, width, height); err != nil {
		return Metrics{}, fmt.Errorf("setting viewport %dx%d: %w", width, height, err)
	}

	if err := settle.Settle(ctx, page); err != nil {
		return Metrics{}, fmt.Errorf("settling after resize: %w", err)
	}

	var m Metrics
	if err := page.Evaluate(ctx, MetricsScript, &m); err != nil {
		return Metrics{}, fmt.Errorf("reading viewport metrics: %w", err)
	}

	return m, nil
}
