// Package output prints run progress and results to the terminal.
package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethpandaops/sitecheck/internal/harness/format"
	"github.com/ethpandaops/sitecheck/internal/harness/metrics"
	"github.com/ethpandaops/sitecheck/internal/harness/table"
	"github.com/fatih/color"
)

// Formatter provides clean, human-friendly output
type Formatter interface {
	PrintPhase(phase string)
	PrintProgress(message string, duration time.Duration)
	PrintSuccess(message string)
	PrintError(message string, err error)
	// PrintVerdict prints one list reporter line. Safe for concurrent use.
	PrintVerdict(index, total int, m *metrics.TestResultMetric)
	PrintTestResults()
	PrintSummary()
}

type formatter struct {
	mu     sync.Mutex
	writer io.Writer

	metrics          metrics.Collector
	resultsFormatter *table.ResultsFormatter
	summaryFormatter *table.SummaryFormatter

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	blue   *color.Color
	gray   *color.Color
}

// NewFormatter creates a new output formatter
func NewFormatter(writer io.Writer, collector metrics.Collector, renderer table.Renderer) Formatter {
	return &formatter{
		writer:           writer,
		metrics:          collector,
		resultsFormatter: table.NewResultsFormatter(renderer),
		summaryFormatter: table.NewSummaryFormatter(renderer),
		green:            color.New(color.FgGreen),
		red:              color.New(color.FgRed),
		yellow:           color.New(color.FgYellow),
		blue:             color.New(color.FgBlue),
		gray:             color.New(color.FgHiBlack),
	}
}

// PrintPhase prints phase separator
func (f *formatter) PrintPhase(phase string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.blue.Fprintf(f.writer, "\n▸ %s\n", phase)
}

// PrintProgress prints a message with its timing
func (f *formatter) PrintProgress(message string, duration time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if duration > 0 {
		f.gray.Fprintf(f.writer, "%s (%s)\n", message, format.Duration(duration))
	} else {
		fmt.Fprintf(f.writer, "%s\n", message)
	}
}

// PrintSuccess prints a green message
func (f *formatter) PrintSuccess(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.green.Fprintf(f.writer, "%s\n", message)
}

// PrintError prints a red message and the error details
func (f *formatter) PrintError(message string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.red.Fprintf(f.writer, "%s", message)
	if err != nil {
		f.red.Fprintf(f.writer, ": %v", err)
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *formatter) PrintVerdict(index, total int, m *metrics.TestResultMetric) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		mark   string
		marker *color.Color
	)

	switch {
	case m.Status == metrics.StatusSkipped:
		mark, marker = "-", f.gray
	case m.Failed():
		mark, marker = "✘", f.red
	case m.Flaky:
		mark, marker = "✓", f.yellow
	default:
		mark, marker = "✓", f.green
	}

	width := len(fmt.Sprintf("%d", total))
	line := fmt.Sprintf("%*d [%s] › %s › %s", width, index, m.Project, m.Suite, m.Title)

	marker.Fprintf(f.writer, "  %s  ", mark)
	fmt.Fprint(f.writer, line)

	switch {
	case m.Status == metrics.StatusSkipped && m.SkipReason != "":
		f.gray.Fprintf(f.writer, " (%s)", m.SkipReason)
	case m.Status != metrics.StatusSkipped:
		f.gray.Fprintf(f.writer, " (%s)", format.Duration(m.Duration))
	}

	if m.Attempts > 1 {
		f.yellow.Fprintf(f.writer, " [%d attempts]", m.Attempts)
	}

	fmt.Fprintln(f.writer)
}

// PrintTestResults prints a table of test results
func (f *formatter) PrintTestResults() {
	out := f.resultsFormatter.Format(f.metrics.GetTestMetrics())

	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintln(f.writer, out)
}

// PrintSummary prints a summary table with aggregate statistics
func (f *formatter) PrintSummary() {
	out := f.summaryFormatter.Format(f.metrics.GetSummary())

	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintln(f.writer, out)
}
