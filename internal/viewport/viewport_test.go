package viewport

import (
	"context"
	"testing"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser/browsertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestBreakpoint(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage()
	page.EvalFunc = func(script string) (any, error) {
		if script != MetricsScript {
			return nil, browsertest.ErrNoResult
		}
		w, h := page.Viewport()
		return map[string]any{"width": w, "height": h, "devicePixelRatio": 2}, nil
	}

	m, err := TestBreakpoint(context.Background(), page, 375, 667, FixedDelay(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, Metrics{Width: 375, Height: 667, DevicePixelRatio: 2}, m)
}

func TestTestBreakpoint_Invalid(t *testing.T) {
	t.Parallel()

	_, err := TestBreakpoint(context.Background(), browsertest.NewPage(), 0, 667, nil)
	require.Error(t, err)
}

func TestFixedDelay_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := FixedDelay(time.Hour).Settle(ctx, browsertest.NewPage())
	require.ErrorIs(t, err, context.Canceled)
}

func TestStableLayout(t *testing.T) {
	t.Parallel()

	reads := 0
	heights := []int{800, 1200, 1400, 1400}

	page := browsertest.NewPage()
	page.EvalFunc = func(string) (any, error) {
		h := heights[min(reads, len(heights)-1)]
		reads++
		return map[string]any{"scrollWidth": 375, "scrollHeight": h, "innerWidth": 375, "innerHeight": 667}, nil
	}

	s := StableLayout{Interval: time.Millisecond, Epsilon: 1, MaxWait: time.Second}
	require.NoError(t, s.Settle(context.Background(), page))
	assert.Equal(t, 4, reads)
}

func TestStableLayout_GivesUpAtMaxWait(t *testing.T) {
	t.Parallel()

	reads := 0
	page := browsertest.NewPage()
	page.EvalFunc = func(string) (any, error) {
		reads++
		return map[string]any{"scrollWidth": 375, "scrollHeight": reads * 100, "innerWidth": 375, "innerHeight": 667}, nil
	}

	s := StableLayout{Interval: time.Millisecond, MaxWait: 20 * time.Millisecond}
	require.NoError(t, s.Settle(context.Background(), page))
	assert.Greater(t, reads, 1)
}
