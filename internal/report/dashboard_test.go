package report

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethpandaops/sitecheck/internal/results"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func test(project string, statuses ...string) *results.Test {
	t := &results.Test{ProjectName: project}
	for i, s := range statuses {
		t.Results = append(t.Results, &results.Result{Retry: i, Status: s, Duration: 1200})
	}

	return t
}

func spec(title string, tests ...*results.Test) *results.Spec {
	return &results.Spec{Title: title, OK: true, Tests: tests}
}

func TestParse_NestedSuites(t *testing.T) {
	f := &results.File{Suites: []*results.Suite{{
		Title: "Cross-Browser Compatibility Tests",
		Specs: []*results.Spec{spec("top level", test("chromium", results.StatusPassed))},
		Suites: []*results.Suite{{
			Title: "Page Load Tests",
			Specs: []*results.Spec{spec("Home page loads", test("firefox", results.StatusFailed, results.StatusPassed))},
			Suites: []*results.Suite{{
				Title: "deeper",
				Specs: []*results.Spec{spec("deep", test("webkit", results.StatusSkipped))},
			}},
		}},
	}}}

	run := Parse(f)

	require.Len(t, run.Suites, 1)
	rows := run.Suites[0].Tests
	require.Len(t, rows, 3)
	assert.Equal(t, TestRow{Name: "top level", Status: StatusPassed, Duration: 1200, Browser: "chromium"}, rows[0])
	assert.Equal(t, StatusFailed, rows[1].Status, "only the first attempt counts")
	assert.Equal(t, "firefox", rows[1].Browser)
	assert.Equal(t, StatusSkipped, rows[2].Status)
	assert.Equal(t, Stats{Passed: 1, Failed: 1, Skipped: 1, Total: 3}, run.Stats)
}

func TestParse_SpecWithoutTests(t *testing.T) {
	f := &results.File{Suites: []*results.Suite{{
		Title: "Stability",
		Specs: []*results.Spec{
			spec("never ran"),
			spec("no project", test("", results.StatusPassed)),
			spec("no results", test("chromium")),
		},
	}}}

	run := Parse(f)

	rows := run.Suites[0].Tests
	require.Len(t, rows, 3)
	assert.Equal(t, TestRow{Name: "never ran", Status: StatusPending, Browser: "unknown"}, rows[0])
	assert.Equal(t, "unknown", rows[1].Browser)
	assert.Equal(t, StatusPending, rows[2].Status)
	assert.Equal(t, Stats{Passed: 1, Total: 3}, run.Stats)
}

func TestRowStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: results.StatusPassed, want: StatusPassed},
		{in: results.OutcomeExpected, want: StatusPassed},
		{in: results.StatusFailed, want: StatusFailed},
		{in: results.StatusTimedOut, want: StatusFailed},
		{in: results.StatusInterrupted, want: StatusFailed},
		{in: results.OutcomeUnexpected, want: StatusFailed},
		{in: results.StatusSkipped, want: StatusSkipped},
		{in: "", want: StatusPending},
		{in: "weird", want: StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, rowStatus(tt.in))
		})
	}
}

func TestPassRate(t *testing.T) {
	tests := []struct {
		name  string
		stats Stats
		want  string
	}{
		{name: "empty", stats: Stats{}, want: "0"},
		{name: "mixed", stats: Stats{Passed: 7, Failed: 1, Skipped: 2, Total: 10}, want: "70.0"},
		{name: "all passed", stats: Stats{Passed: 4, Total: 4}, want: "100.0"},
		{name: "thirds", stats: Stats{Passed: 1, Failed: 2, Total: 3}, want: "33.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &Run{Stats: tt.stats}
			assert.Equal(t, tt.want, run.PassRate())
			assert.LessOrEqual(t, tt.stats.Passed+tt.stats.Failed+tt.stats.Skipped, tt.stats.Total)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	run, err := Load(filepath.Join(t.TempDir(), "results.json"))
	require.NoError(t, err)
	assert.Empty(t, run.Suites)
	assert.Equal(t, "0", run.PassRate())
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte("[1,2"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func fixedDashboard(w *Writer) *Dashboard {
	d := NewDashboard(quietLogger(), w)
	d.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	return d
}

func TestDashboard_RenderEmpty(t *testing.T) {
	d := fixedDashboard(NewWriter(quietLogger(), false))

	doc, err := d.Render(&Run{})
	require.NoError(t, err)
	assert.Contains(t, string(doc), "No test results found")
	assert.Contains(t, string(doc), "2026-03-04 05:06:07 UTC")
}

func TestDashboard_RenderEscapes(t *testing.T) {
	d := fixedDashboard(NewWriter(quietLogger(), false))
	run := Parse(&results.File{Suites: []*results.Suite{{
		Title: "<script>alert(1)</script>",
		Specs: []*results.Spec{spec("a & b", test("chromium", results.StatusPassed))},
	}}})

	doc, err := d.Render(run)
	require.NoError(t, err)
	assert.NotContains(t, string(doc), "<script>alert(1)</script>")
	assert.Contains(t, string(doc), "&lt;script&gt;")
	assert.Contains(t, string(doc), "a &amp; b")
	assert.NotContains(t, string(doc), "No test results found")
}

func TestDashboard_GenerateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	resultsPath := filepath.Join(dir, "results.json")

	b := results.NewBuilder(results.Config{RunID: "r"}, time.Now())
	b.Add(results.Entry{Suite: "Mobile Tests", Group: "iPhone 12", Title: "renders", Project: "chromium", Attempts: []results.Attempt{{Status: results.StatusPassed}}})
	b.Add(results.Entry{Suite: "Mobile Tests", Group: "iPhone 12", Title: "touch", Project: "chromium", Attempts: []results.Attempt{{Status: results.StatusFailed}}})
	require.NoError(t, results.Write(resultsPath, b.File(time.Now())))

	d := fixedDashboard(NewWriter(quietLogger(), true))
	out := filepath.Join(dir, "report", "dashboard.html")

	run, err := d.Generate(resultsPath, out)
	require.NoError(t, err)
	assert.Equal(t, Stats{Passed: 1, Failed: 1, Total: 2}, run.Stats)
	assert.Equal(t, "50.0", run.PassRate())

	first, err := os.ReadFile(out)
	require.NoError(t, err)

	_, err = d.Generate(resultsPath, out)
	require.NoError(t, err)

	second, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
