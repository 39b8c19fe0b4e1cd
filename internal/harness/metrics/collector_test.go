package metrics

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) Collector {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	c := NewCollector(log)
	require.NoError(t, c.Start(context.Background()))

	return c
}

func TestCollector_Summary(t *testing.T) {
	c := newTestCollector(t)

	c.RecordTestResult(&TestResultMetric{Title: "a", Status: StatusPassed, Attempts: 1})
	c.RecordTestResult(&TestResultMetric{Title: "b", Status: StatusPassed, Attempts: 3, Flaky: true})
	c.RecordTestResult(&TestResultMetric{Title: "c", Status: StatusFailed, Attempts: 3})
	c.RecordTestResult(&TestResultMetric{Title: "d", Status: StatusTimedOut, Attempts: 1})
	c.RecordTestResult(&TestResultMetric{Title: "e", Status: StatusSkipped, Attempts: 1})
	c.RecordTestResult(&TestResultMetric{Title: "f", Status: StatusInterrupted, Attempts: 1})
	c.RecordArtifact(ArtifactMetric{Kind: "screenshot", SizeBytes: 2048})
	c.RecordArtifact(ArtifactMetric{Kind: "trace", SizeBytes: 512})

	s := c.GetSummary()

	assert.Equal(t, 6, s.TotalTests)
	assert.Equal(t, 2, s.PassedTests)
	assert.Equal(t, 3, s.FailedTests)
	assert.Equal(t, 1, s.TimedOutTests)
	assert.Equal(t, 1, s.SkippedTests)
	assert.Equal(t, 1, s.FlakyTests)
	assert.Equal(t, 4, s.Retries)
	assert.Equal(t, 2, s.ArtifactsCount)
	assert.Equal(t, int64(2560), s.ArtifactsSize)
	assert.Positive(t, s.TotalDuration)
	require.NoError(t, c.Stop())
}

func TestCollector_ReturnsCopies(t *testing.T) {
	c := newTestCollector(t)

	errs := []string{"boom"}
	c.RecordTestResult(&TestResultMetric{Title: "a", Status: StatusFailed, Errors: errs})
	errs[0] = "changed"

	got := c.GetTestMetrics()
	require.Len(t, got, 1)
	assert.Equal(t, "boom", got[0].Errors[0])

	got[0].Title = "mutated"
	assert.Equal(t, "a", c.GetTestMetrics()[0].Title)
}

func TestCollector_Concurrent(t *testing.T) {
	c := newTestCollector(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTestResult(&TestResultMetric{Status: StatusPassed, Timestamp: time.Now()})
			c.RecordArtifact(ArtifactMetric{SizeBytes: 1})
			_ = c.GetSummary()
		}()
	}
	wg.Wait()

	assert.Len(t, c.GetTestMetrics(), 20)
	assert.Len(t, c.GetArtifactMetrics(), 20)
}

func TestTestResultMetric_Failed(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusPassed, false},
		{StatusSkipped, false},
		{StatusFailed, true},
		{StatusTimedOut, true},
		{StatusInterrupted, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			m := TestResultMetric{Status: tt.status}
			assert.Equal(t, tt.want, m.Failed())
		})
	}
}
