package table

import (
	"testing"

	"github.com/ethpandaops/sitecheck/internal/harness/metrics"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestColorHelper_FormatStatus(t *testing.T) {
	// Disable colors for consistent testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	helper := NewColorHelper()

	tests := []struct {
		name     string
		metric   metrics.TestResultMetric
		expected string
	}{
		{name: "passed", metric: metrics.TestResultMetric{Status: metrics.StatusPassed}, expected: "✓ PASS"},
		{name: "flaky", metric: metrics.TestResultMetric{Status: metrics.StatusPassed, Flaky: true}, expected: "⚠ FLAKY"},
		{name: "failed", metric: metrics.TestResultMetric{Status: metrics.StatusFailed}, expected: "✗ FAIL"},
		{name: "timed out", metric: metrics.TestResultMetric{Status: metrics.StatusTimedOut}, expected: "⏱ TIMEOUT"},
		{name: "skipped", metric: metrics.TestResultMetric{Status: metrics.StatusSkipped}, expected: "○ SKIP"},
		{name: "interrupted", metric: metrics.TestResultMetric{Status: metrics.StatusInterrupted}, expected: "■ INTERRUPTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, helper.FormatStatus(&tt.metric))
		})
	}
}

func TestColorHelper_FormatAttempts(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	helper := NewColorHelper()

	assert.Equal(t, "1", helper.FormatAttempts(1))
	assert.Equal(t, "3", helper.FormatAttempts(3))
}

func TestColorHelper_FormatPercentage(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	helper := NewColorHelper()

	tests := []struct {
		name     string
		value    float64
		expected string
	}{
		{
			name:     "100%",
			value:    100.0,
			expected: "100.0%",
		},
		{
			name:     "90%",
			value:    90.0,
			expected: "90.0%",
		},
		{
			name:     "0%",
			value:    0.0,
			expected: "0.0%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, helper.FormatPercentage(tt.value))
		})
	}
}

func TestColorHelper_ColorsDisabledWhenNoColor(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	helper := NewColorHelper()
	assert.False(t, helper.enabled)

	assert.Equal(t, "test", helper.Success("test"))
	assert.Equal(t, "test", helper.Failure("test"))
	assert.Equal(t, "test", helper.Warning("test"))
	assert.Equal(t, "test", helper.Header("test"))
}
