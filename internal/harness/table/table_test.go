package table

import (
	"strings"
	"testing"
	"time"

	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/ethpandaops/sitecheck/internal/harness/metrics"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultsFormatter_Empty(t *testing.T) {
	f := NewResultsFormatter(NewRenderer())

	assert.Equal(t, "No tests executed", f.Format(nil))
}

func TestResultsFormatter_FailureDetails(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	f := NewResultsFormatter(NewRenderer())

	out := f.Format([]metrics.TestResultMetric{
		{Suite: "Performance Tests", Title: "Home page", Project: "chromium", Status: metrics.StatusPassed, Attempts: 1, Duration: time.Second},
		{Suite: "Performance Tests", Title: "Lighthouse", Project: "webkit", Status: metrics.StatusSkipped, Attempts: 1, SkipReason: "Lighthouse only works with Chromium"},
		{
			Suite:    "Stability and Stress Tests",
			Title:    "404 page",
			Project:  "chromium",
			Status:   metrics.StatusFailed,
			Attempts: 3,
			Errors:   []string{"Error: Should be true\nline two"},
		},
	})

	assert.Contains(t, out, "▸ Test Results")
	assert.Contains(t, out, "✓ PASS")
	assert.Contains(t, out, "○ SKIP")
	assert.Contains(t, out, "Lighthouse only works with Chromium")
	assert.Contains(t, out, "▸ Failed Test Details")
	assert.Contains(t, out, "Stability and Stress Tests › 404 page [chromium]")
	assert.Contains(t, out, "  ✗ Error: Should be true\n    line two")
	assert.NotContains(t, out, "Home page [chromium]")
}

func TestResultsFormatter_NoFailures(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	out := NewResultsFormatter(NewRenderer()).Format([]metrics.TestResultMetric{
		{Title: "ok", Project: "chromium", Status: metrics.StatusPassed, Attempts: 1},
	})

	assert.NotContains(t, out, "Failed Test Details")
}

func TestSummaryFormatter_Format(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	out := NewSummaryFormatter(NewRenderer()).Format(metrics.SummaryMetric{
		TotalTests:     10,
		PassedTests:    7,
		FailedTests:    1,
		SkippedTests:   2,
		FlakyTests:     1,
		Retries:        2,
		ArtifactsCount: 3,
		ArtifactsSize:  2048,
		TotalDuration:  90 * time.Second,
	})

	assert.Contains(t, out, "▸ Summary")
	assert.Contains(t, out, "7 (87.5%)")
	assert.Contains(t, out, "1 (12.5%)")
	assert.Contains(t, out, "3 (2.0 KB)")
	assert.Contains(t, out, "1.5m")
}

func TestProjectsFormatter_Format(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	projects, err := config.DefaultProfile().ResolvedProjects(nil)
	require.NoError(t, err)

	out := NewProjectsFormatter(NewRenderer()).Format(projects)

	assert.Contains(t, out, "▸ Projects")
	assert.Contains(t, out, "Retina Display")
	assert.NotContains(t, out, "skipped")
	assert.Regexp(t, `│ webkit\s+│ playwright\s+│`, out)
	assert.Regexp(t, `│ chromium\s+│ chromedp\s+│`, out)
	assert.Contains(t, out, "1920x1080")
	assert.Equal(t, "No projects configured", NewProjectsFormatter(NewRenderer()).Format(nil))
}

func TestRenderer_Section(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	out := NewRenderer().Render(Section{
		Title: "Budget",
		Columns: []Column{
			{Header: "Name"},
			{Header: "Count", Align: AlignRight, MinWidth: 6},
		},
		Rows:   [][]string{{"a", "7"}, {"ragged"}},
		Footer: []string{"total", "7"},
	})

	assert.True(t, strings.HasPrefix(out, "\n▸ Budget\n\n"), out)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "│ a      │      7 │")
	assert.Contains(t, out, "│ ragged │        │")
	assert.Contains(t, out, "TOTAL")
}

func TestRenderer_Empty(t *testing.T) {
	r := NewRenderer()

	assert.Equal(t, "nothing here", r.Render(Section{Title: "Budget", Columns: []Column{{Header: "x"}}, Empty: "nothing here"}))

	out := r.Render(Section{Columns: []Column{{Header: "x"}}})
	assert.Contains(t, out, "X")
	assert.NotContains(t, out, "▸")
}

func TestFit(t *testing.T) {
	assert.Equal(t, []string{"a", "", ""}, fit([]string{"a"}, 3))
	assert.Equal(t, []string{"a", "b"}, fit([]string{"a", "b", "c"}, 2))
}
