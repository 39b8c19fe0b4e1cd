package table

import (
	"fmt"

	"github.com/ethpandaops/sitecheck/internal/harness/format"
	"github.com/ethpandaops/sitecheck/internal/harness/metrics"
)

// SummaryFormatter formats summary statistics as a table.
type SummaryFormatter struct {
	renderer Renderer
	colors   *ColorHelper
}

// NewSummaryFormatter creates a new summary table formatter.
func NewSummaryFormatter(renderer Renderer) *SummaryFormatter {
	return &SummaryFormatter{
		renderer: renderer,
		colors:   NewColorHelper(),
	}
}

// Format converts summary metrics into a formatted table string. Rates are
// taken over executed tests, skipped ones excluded.
func (f *SummaryFormatter) Format(summary metrics.SummaryMetric) string {
	executed := summary.TotalTests - summary.SkippedTests

	var passRate float64
	if executed > 0 {
		passRate = float64(summary.PassedTests) / float64(executed) * 100.0
	}

	passedValue := fmt.Sprintf("%d (%s)", summary.PassedTests, f.colors.FormatPercentage(passRate))
	if summary.PassedTests == executed {
		passedValue = f.colors.Success(fmt.Sprintf("%d (%.1f%%)", summary.PassedTests, passRate))
	}

	failedValue := f.colors.Success(fmt.Sprintf("%d", summary.FailedTests))
	if summary.FailedTests > 0 {
		failedValue = f.colors.Failure(fmt.Sprintf("%d (%.1f%%)", summary.FailedTests, 100.0-passRate))
	}

	flakyValue := f.colors.Success("0")
	if summary.FlakyTests > 0 {
		flakyValue = f.colors.Warning(fmt.Sprintf("%d", summary.FlakyTests))
	}

	rows := [][]string{
		{"Total Tests", f.colors.Bold(fmt.Sprintf("%d", summary.TotalTests))},
		{"Passed", passedValue},
		{"Failed", failedValue},
		{"Timed Out", fmt.Sprintf("%d", summary.TimedOutTests)},
		{"Skipped", f.colors.Muted(fmt.Sprintf("%d", summary.SkippedTests))},
		{"Flaky", flakyValue},
		{"Retries", fmt.Sprintf("%d", summary.Retries)},
		{"Total Duration", format.Duration(summary.TotalDuration)},
		{"Artifacts", fmt.Sprintf("%d (%s)", summary.ArtifactsCount, format.Bytes(summary.ArtifactsSize))},
	}

	return f.renderer.Render(Section{
		Title:   "Summary",
		Columns: []Column{{Header: "Metric", MinWidth: 14}, {Header: "Value"}},
		Rows:    rows,
	})
}
