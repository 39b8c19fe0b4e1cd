package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attempts(statuses ...string) []Attempt {
	out := make([]Attempt, len(statuses))
	for i, s := range statuses {
		out[i] = Attempt{Status: s, Duration: 1500 * time.Millisecond}
	}

	return out
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name     string
		attempts []Attempt
		want     string
	}{
		{name: "no attempts", want: OutcomeSkipped},
		{name: "skipped", attempts: attempts(StatusSkipped), want: OutcomeSkipped},
		{name: "first pass", attempts: attempts(StatusPassed), want: OutcomeExpected},
		{name: "pass on retry", attempts: attempts(StatusFailed, StatusTimedOut, StatusPassed), want: OutcomeFlaky},
		{name: "failed", attempts: attempts(StatusFailed), want: OutcomeUnexpected},
		{name: "timed out", attempts: attempts(StatusTimedOut), want: OutcomeUnexpected},
		{name: "interrupted", attempts: attempts(StatusInterrupted), want: OutcomeUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.attempts))
		})
	}
}

func TestBuilder_NestsInAddOrder(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := NewBuilder(Config{RunID: "run-1", BaseURL: "http://localhost:4173"}, start)

	b.Add(Entry{Suite: "Performance Tests", File: "performance", Group: "Memory Usage", Title: "leaks", Project: "chromium", Attempts: attempts(StatusPassed)})
	b.Add(Entry{Suite: "Performance Tests", File: "performance", Group: "Memory Usage", Title: "leaks", Project: "webkit", Attempts: attempts(StatusSkipped)})
	b.Add(Entry{Suite: "Performance Tests", File: "performance", Group: "Core Web Vitals", Title: "Home", Project: "chromium", Attempts: attempts(StatusFailed, StatusPassed)})
	b.Add(Entry{Suite: "Stability and Stress Tests", File: "stability", Group: "Error Recovery", Title: "404", Project: "chromium", Attempts: attempts(StatusFailed)})

	f := b.File(start.Add(90 * time.Second))

	require.Len(t, f.Suites, 2)
	perf := f.Suites[0]
	assert.Equal(t, "Performance Tests", perf.Title)
	assert.Empty(t, perf.Specs)
	require.Len(t, perf.Suites, 2)
	assert.Equal(t, "Memory Usage", perf.Suites[0].Title)
	assert.Equal(t, "Core Web Vitals", perf.Suites[1].Title)

	leaks := perf.Suites[0].Specs[0]
	require.Len(t, leaks.Tests, 2)
	assert.Equal(t, "chromium", leaks.Tests[0].ProjectName)
	assert.Equal(t, OutcomeSkipped, leaks.Tests[1].Status)
	assert.True(t, leaks.OK)

	home := perf.Suites[1].Specs[0]
	require.Len(t, home.Tests[0].Results, 2)
	assert.Equal(t, 1, home.Tests[0].Results[1].Retry)
	assert.Equal(t, int64(1500), home.Tests[0].Results[0].Duration)
	assert.Equal(t, OutcomeFlaky, home.Tests[0].Status)

	assert.False(t, f.Suites[1].Suites[0].Specs[0].OK)

	assert.Equal(t, Stats{StartTime: start, Duration: 90000, Expected: 1, Unexpected: 1, Flaky: 1, Skipped: 1}, f.Stats)
	assert.Equal(t, "run-1", f.Config.RunID)
}

func TestBuilder_EmptyRun(t *testing.T) {
	f := NewBuilder(Config{}, time.Now()).File(time.Now())

	assert.NotNil(t, f.Suites)
	assert.NotNil(t, f.Errors)
}

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "results.json")

	b := NewBuilder(Config{RunID: "abc"}, time.Now().UTC())
	b.Add(Entry{
		Suite:   "Cross-Browser Compatibility Tests",
		Group:   "Page Load Tests",
		Title:   "Home page loads without errors",
		Project: "firefox",
		Attempts: []Attempt{{
			Status:      StatusFailed,
			Errors:      []string{"Console error: boom"},
			Attachments: []Attachment{{Name: "screenshot", ContentType: "image/png", Path: "artifacts/a.png"}},
		}},
	})
	require.NoError(t, Write(path, b.File(time.Now().UTC())))

	got, err := Read(path)
	require.NoError(t, err)
	require.Len(t, got.Suites, 1)

	result := got.Suites[0].Suites[0].Specs[0].Tests[0].Results[0]
	assert.Equal(t, "Console error: boom", result.Errors[0].Message)
	assert.Equal(t, "artifacts/a.png", result.Attachments[0].Path)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "results.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRead_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Read(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, os.ErrNotExist)
}
