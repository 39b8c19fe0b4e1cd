package perf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser/browsertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckThresholds_LCPOnly(t *testing.T) {
	t.Parallel()

	violations := CheckThresholds(Metrics{LargestContentfulPaint: Value(3000)}, DefaultThresholds)

	require.Len(t, violations, 1)
	assert.Equal(t, Violation{Metric: "LCP", Value: 3000, Threshold: 2500, Status: "fail"}, violations[0])
}

func TestCheckThresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		metrics Metrics
		want    []string
	}{
		{
			name:    "empty input is compliant",
			metrics: Metrics{},
			want:    []string{},
		},
		{
			name:    "equal to threshold passes",
			metrics: Metrics{LargestContentfulPaint: Value(2500), CumulativeLayoutShift: Value(0.1)},
			want:    []string{},
		},
		{
			name: "every metric over",
			metrics: Metrics{
				FirstContentfulPaint:   Value(1801),
				LargestContentfulPaint: Value(2501),
				TimeToInteractive:      Value(3501),
				TotalBlockingTime:      Value(201),
				CumulativeLayoutShift:  Value(0.11),
				FirstInputDelay:        Value(101),
			},
			want: []string{"FCP", "LCP", "TTI", "TBT", "CLS", "FID"},
		},
		{
			name:    "zero values pass",
			metrics: Metrics{TotalBlockingTime: Value(0)},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := make([]string, 0)
			for _, v := range CheckThresholds(tt.metrics, DefaultThresholds) {
				assert.Equal(t, "fail", v.Status)
				got = append(got, v.Metric)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMeasure(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage().Set(MeasureScript, map[string]any{
		"memory": map[string]any{
			"usedJSHeapSize":  10 * 1024 * 1024,
			"totalJSHeapSize": 20 * 1024 * 1024,
			"jsHeapSizeLimit": 4096 * 1024 * 1024,
		},
		"navigation": map[string]any{
			"loadEventEnd":             1200.5,
			"domContentLoadedEventEnd": 800.25,
		},
		"paint": []map[string]any{
			{"name": "first-paint", "startTime": 300},
			{"name": "first-contentful-paint", "startTime": 350},
		},
	})

	snap, err := Measure(context.Background(), page)
	require.NoError(t, err)

	require.NotNil(t, snap.Memory)
	assert.InDelta(t, 10.0, snap.Memory.UsedMB(), 0.001)
	require.NotNil(t, snap.Navigation)
	assert.InDelta(t, 1200.5, snap.Navigation.LoadEventEnd, 0.001)

	fcp, ok := snap.FirstContentfulPaint()
	require.True(t, ok)
	assert.InDelta(t, 350.0, fcp, 0.001)
}

func TestMeasure_NoMemoryAPI(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage().Set(MeasureScript, map[string]any{
		"memory":     nil,
		"navigation": nil,
		"paint":      []any{},
	})

	snap, err := Measure(context.Background(), page)
	require.NoError(t, err)
	assert.Nil(t, snap.Memory)
	assert.Nil(t, snap.Navigation)

	_, ok := snap.FirstContentfulPaint()
	assert.False(t, ok)
}

func TestUsedHeap(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage().Set(HeapScript, 4096)
	used, ok, err := UsedHeap(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(4096), used)

	page = browsertest.NewPage().Set(HeapScript, nil)
	_, ok, err = UsedHeap(context.Background(), page)
	require.NoError(t, err)
	assert.False(t, ok)

	page = browsertest.NewPage().Set(HeapScript, errors.New("target closed"))
	_, _, err = UsedHeap(context.Background(), page)
	require.Error(t, err)
}

func TestObserveWebVitals(t *testing.T) {
	t.Parallel()

	script := VitalsScript(DefaultVitalsWindow)
	assert.Contains(t, script, "5000")
	assert.Contains(t, script, "observer.disconnect()")

	page := browsertest.NewPage().Set(script, map[string]any{"lcp": 1900.0, "cls": 0.02, "fid": 0})
	v, err := ObserveWebVitals(context.Background(), page, 5*time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 1900.0, v.LCP, 0.001)
	assert.InDelta(t, 0.02, v.CLS, 0.0001)
}

func TestFrameRateAndScroll(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage().
		Set(FrameRateScript(60), map[string]any{"fps": 59.8, "avgFrameTime": 16.7}).
		Set(ScrollTimingScript(30, 100), map[string]any{"avgTime": 0.4, "maxTime": 2.1})

	fs, err := FrameRate(context.Background(), page, 60)
	require.NoError(t, err)
	assert.Greater(t, fs.FPS, 30.0)

	ss, err := ScrollTiming(context.Background(), page, 30, 100)
	require.NoError(t, err)
	assert.Less(t, ss.AvgTime, 16.67)
}
