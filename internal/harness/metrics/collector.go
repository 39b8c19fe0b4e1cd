// Package metrics provides test execution metrics collection and aggregation.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Test statuses as recorded by the collector.
const (
	StatusPassed      = "passed"
	StatusFailed      = "failed"
	StatusTimedOut    = "timedOut"
	StatusSkipped     = "skipped"
	StatusInterrupted = "interrupted"
)

// ArtifactMetric captures one artifact written for a test attempt.
type ArtifactMetric struct {
	Kind      string
	Path      string
	SizeBytes int64
	Timestamp time.Time
}

// TestResultMetric captures the verdict of one case under one project.
type TestResultMetric struct {
	Suite    string
	Title    string
	Project  string
	Status   string
	Duration time.Duration
	Attempts int
	// Flaky is set when the case passed only after a retry.
	Flaky      bool
	SkipReason string
	Errors     []string
	Timestamp  time.Time
}

// Failed reports whether the result fails the run.
func (m *TestResultMetric) Failed() bool {
	return m.Status == StatusFailed || m.Status == StatusTimedOut || m.Status == StatusInterrupted
}

// SummaryMetric provides aggregate statistics across a run.
type SummaryMetric struct {
	TotalDuration  time.Duration
	TotalTests     int
	PassedTests    int
	FailedTests    int
	TimedOutTests  int
	SkippedTests   int
	FlakyTests     int
	Retries        int
	ArtifactsCount int
	ArtifactsSize  int64 // bytes
}

// Collector interface for metrics collection
type Collector interface {
	Start(ctx context.Context) error
	Stop() error
	RecordArtifact(metric ArtifactMetric)
	RecordTestResult(metric *TestResultMetric)
	GetArtifactMetrics() []ArtifactMetric
	GetTestMetrics() []TestResultMetric
	GetSummary() SummaryMetric
}

type collector struct {
	log             logrus.FieldLogger
	mu              sync.RWMutex
	artifactMetrics []ArtifactMetric
	testMetrics     []TestResultMetric
	startTime       time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(log logrus.FieldLogger) Collector {
	return &collector{
		log:             log.WithField("component", "metrics_collector"),
		artifactMetrics: make([]ArtifactMetric, 0, 16),
		testMetrics:     make([]TestResultMetric, 0, 64),
	}
}

func (c *collector) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()

	c.log.Debug("metrics collector started")

	return nil
}

func (c *collector) Stop() error {
	c.log.Debug("metrics collector stopped")

	return nil
}

func (c *collector) RecordArtifact(metric ArtifactMetric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifactMetrics = append(c.artifactMetrics, metric)
}

func (c *collector) RecordTestResult(metric *TestResultMetric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := *metric
	m.Errors = append([]string(nil), metric.Errors...)
	c.testMetrics = append(c.testMetrics, m)
}

func (c *collector) GetArtifactMetrics() []ArtifactMetric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]ArtifactMetric, len(c.artifactMetrics))
	copy(result, c.artifactMetrics)

	return result
}

func (c *collector) GetTestMetrics() []TestResultMetric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]TestResultMetric, len(c.testMetrics))
	copy(result, c.testMetrics)

	return result
}

func (c *collector) GetSummary() SummaryMetric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := SummaryMetric{
		TotalDuration:  time.Since(c.startTime),
		TotalTests:     len(c.testMetrics),
		ArtifactsCount: len(c.artifactMetrics),
	}

	for _, am := range c.artifactMetrics {
		summary.ArtifactsSize += am.SizeBytes
	}

	for _, tm := range c.testMetrics {
		if tm.Attempts > 1 {
			summary.Retries += tm.Attempts - 1
		}

		switch tm.Status {
		case StatusPassed:
			summary.PassedTests++
			if tm.Flaky {
				summary.FlakyTests++
			}
		case StatusSkipped:
			summary.SkippedTests++
		case StatusTimedOut:
			summary.TimedOutTests++
			summary.FailedTests++
		default:
			summary.FailedTests++
		}
	}

	return summary
}

var _ Collector = (*collector)(nil)
