// Package results defines results.json, the machine-readable record of a run.
//
// The layout nests the way the dashboard reads it: a top-level suite per
// test suite, one nested suite per group, a spec per case, one test per
// project the case ran under and one result per attempt.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Attempt statuses.
const (
	StatusPassed      = "passed"
	StatusFailed      = "failed"
	StatusTimedOut    = "timedOut"
	StatusSkipped     = "skipped"
	StatusInterrupted = "interrupted"
)

// Test outcomes across all attempts.
const (
	OutcomeExpected   = "expected"
	OutcomeUnexpected = "unexpected"
	OutcomeFlaky      = "flaky"
	OutcomeSkipped    = "skipped"
)

var errNoFile = errors.New("no results file")

// File is the root of results.json.
type File struct {
	Config Config   `json:"config"`
	Suites []*Suite `json:"suites"`
	Errors []Error  `json:"errors"`
	Stats  Stats    `json:"stats"`
}

// Config records how the run was invoked.
type Config struct {
	RunID    string    `json:"runId"`
	BaseURL  string    `json:"baseURL"`
	Workers  int       `json:"workers"`
	Retries  int       `json:"retries"`
	Projects []Project `json:"projects"`
}

// Project is one entry of the run's project matrix.
type Project struct {
	Name   string `json:"name"`
	Engine string `json:"engine"`
	Device string `json:"device"`
}

// Suite is a test suite or, nested, one of its groups.
type Suite struct {
	Title  string   `json:"title"`
	File   string   `json:"file,omitempty"`
	Specs  []*Spec  `json:"specs"`
	Suites []*Suite `json:"suites,omitempty"`
}

// Spec is one declared case.
type Spec struct {
	Title string  `json:"title"`
	OK    bool    `json:"ok"`
	Tests []*Test `json:"tests"`
}

// Test is a spec run under one project.
type Test struct {
	ProjectName    string    `json:"projectName"`
	ExpectedStatus string    `json:"expectedStatus"`
	Status         string    `json:"status"`
	Results        []*Result `json:"results"`
}

// Result is one attempt. Duration is in milliseconds.
type Result struct {
	Retry       int          `json:"retry"`
	Status      string       `json:"status"`
	Duration    int64        `json:"duration"`
	StartTime   time.Time    `json:"startTime"`
	Errors      []Error      `json:"errors"`
	Attachments []Attachment `json:"attachments"`
}

// Error is a failure message.
type Error struct {
	Message string `json:"message"`
}

// Attachment points at an artifact written next to the results.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Path        string `json:"path"`
}

// Stats summarises test outcomes. Duration is in milliseconds.
type Stats struct {
	StartTime  time.Time `json:"startTime"`
	Duration   float64   `json:"duration"`
	Expected   int       `json:"expected"`
	Unexpected int       `json:"unexpected"`
	Flaky      int       `json:"flaky"`
	Skipped    int       `json:"skipped"`
}

// Read loads path. A missing file yields an error matching os.ErrNotExist.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w %s: %w", errNoFile, path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return &f, nil
}

// Write stores f at path, creating the directory. The file is replaced
// atomically so readers never see a partial write.
func Write(path string, f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".results-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing results: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing results: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	return nil
}
