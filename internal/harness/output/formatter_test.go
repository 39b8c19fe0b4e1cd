package output

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ethpandaops/sitecheck/internal/harness/metrics"
	"github.com/ethpandaops/sitecheck/internal/harness/table"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFormatter(t *testing.T) (Formatter, metrics.Collector, *bytes.Buffer) {
	t.Helper()

	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	log := logrus.New()
	log.SetOutput(io.Discard)

	collector := metrics.NewCollector(log)
	require.NoError(t, collector.Start(context.Background()))

	var buf bytes.Buffer

	return NewFormatter(&buf, collector, table.NewRenderer()), collector, &buf
}

func TestFormatter_PrintVerdict(t *testing.T) {
	tests := []struct {
		name   string
		metric metrics.TestResultMetric
		want   string
	}{
		{
			name:   "passed",
			metric: metrics.TestResultMetric{Suite: "Mobile Tests", Title: "renders", Project: "Mobile Chrome", Status: metrics.StatusPassed, Attempts: 1, Duration: 1500 * time.Millisecond},
			want:   "  ✓    3 [Mobile Chrome] › Mobile Tests › renders (1.5s)\n",
		},
		{
			name:   "failed after retries",
			metric: metrics.TestResultMetric{Suite: "S", Title: "t", Project: "chromium", Status: metrics.StatusFailed, Attempts: 3, Duration: 20 * time.Millisecond},
			want:   "  ✘    3 [chromium] › S › t (20ms) [3 attempts]\n",
		},
		{
			name:   "skipped",
			metric: metrics.TestResultMetric{Suite: "S", Title: "t", Project: "webkit", Status: metrics.StatusSkipped, Attempts: 1, SkipReason: "no driver"},
			want:   "  -    3 [webkit] › S › t (no driver)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _, buf := newFormatter(t)
			f.PrintVerdict(3, 120, &tt.metric)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestFormatter_PrintError(t *testing.T) {
	f, _, buf := newFormatter(t)

	f.PrintError("Run failed", errors.New("boom"))
	f.PrintError("Plain", nil)

	assert.Equal(t, "Run failed: boom\nPlain\n", buf.String())
}

func TestFormatter_Tables(t *testing.T) {
	f, collector, buf := newFormatter(t)

	collector.RecordTestResult(&metrics.TestResultMetric{Suite: "S", Title: "t", Project: "chromium", Status: metrics.StatusPassed, Attempts: 1})
	f.PrintPhase("Results")
	f.PrintTestResults()
	f.PrintSummary()

	out := buf.String()
	assert.Contains(t, out, "▸ Results")
	assert.Contains(t, out, "▸ Test Results")
	assert.Contains(t, out, "▸ Summary")
}
