package table

import (
	"fmt"
	"strings"

	"github.com/ethpandaops/sitecheck/internal/harness/format"
	"github.com/ethpandaops/sitecheck/internal/harness/metrics"
)

const detailWidth = 50

var resultColumns = []Column{
	{Header: "Test", MinWidth: 20},
	{Header: "Project"},
	{Header: "Status"},
	{Header: "Attempts", Align: AlignRight},
	{Header: "Duration", Align: AlignRight},
	{Header: "Details"},
}

// ResultsFormatter formats test results as a table.
type ResultsFormatter struct {
	renderer Renderer
	colors   *ColorHelper
}

// NewResultsFormatter creates a new results table formatter.
func NewResultsFormatter(renderer Renderer) *ResultsFormatter {
	return &ResultsFormatter{
		renderer: renderer,
		colors:   NewColorHelper(),
	}
}

// Format converts test result metrics into a table followed by the details
// of every failed test.
func (f *ResultsFormatter) Format(testMetrics []metrics.TestResultMetric) string {
	var (
		rows        = make([][]string, 0, len(testMetrics))
		failedTests = make([]metrics.TestResultMetric, 0)
	)

	for i := range testMetrics {
		metric := &testMetrics[i]

		var details string
		switch {
		case metric.Failed():
			failedTests = append(failedTests, *metric)
			if len(metric.Errors) > 0 {
				details = f.colors.Muted(format.Truncate(metric.Errors[0], detailWidth))
			}
		case metric.Status == metrics.StatusSkipped && metric.SkipReason != "":
			details = f.colors.Muted(format.Truncate(metric.SkipReason, detailWidth))
		}

		rows = append(rows, []string{
			format.Truncate(metric.Title, detailWidth),
			metric.Project,
			f.colors.FormatStatus(metric),
			f.colors.FormatAttempts(metric.Attempts),
			format.Duration(metric.Duration),
			details,
		})
	}

	output := f.renderer.Render(Section{
		Title:   "Test Results",
		Columns: resultColumns,
		Rows:    rows,
		Empty:   "No tests executed",
	})

	if len(failedTests) > 0 {
		output += f.formatFailureDetails(failedTests)
	}

	return output
}

func (f *ResultsFormatter) formatFailureDetails(failedTests []metrics.TestResultMetric) string {
	var builder strings.Builder

	builder.WriteString("\n\n" + f.colors.Header("▸ Failed Test Details") + "\n\n")

	for i, test := range failedTests {
		if i > 0 {
			builder.WriteString("\n")
		}

		fmt.Fprintf(&builder, "%s › %s [%s] (%s)\n",
			test.Suite,
			test.Title,
			test.Project,
			format.Duration(test.Duration),
		)

		if len(test.Errors) == 0 {
			fmt.Fprintf(&builder, "  %s: Test failed (no details available)\n", f.colors.Failure("Error"))
			continue
		}

		for _, msg := range test.Errors {
			fmt.Fprintf(&builder, "  %s %s\n", f.colors.Failure("✗"), indent(msg, "    "))
		}
	}

	return builder.String()
}

// indent prefixes every line after the first, keeping multi-line assertion
// output aligned under its marker.
func indent(s, prefix string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}
