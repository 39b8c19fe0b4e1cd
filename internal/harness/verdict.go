package harness

import (
	"time"

	"github.com/ethpandaops/sitecheck/internal/harness/metrics"
	"github.com/ethpandaops/sitecheck/internal/results"
	"github.com/ethpandaops/sitecheck/internal/suite"
)

// Verdict is the final result of one job across all of its attempts.
type Verdict struct {
	Suite      string
	File       string
	Group      string
	Title      string
	Project    string
	Status     suite.Status
	SkipReason string
	Duration   time.Duration
	// Attempts holds every attempt in order, retries included.
	Attempts []results.Attempt
	// Errors are the errors of the last attempt.
	Errors      []string
	Attachments []results.Attachment
}

// Flaky reports whether the job passed only after a retry.
func (v *Verdict) Flaky() bool {
	return results.Outcome(v.Attempts) == results.OutcomeFlaky
}

// Failed reports whether the verdict fails the run.
func (v *Verdict) Failed() bool {
	return v.Status == suite.Failed || v.Status == suite.TimedOut
}

// AnyFailed reports whether any verdict failed or timed out.
func AnyFailed(verdicts []*Verdict) bool {
	for _, v := range verdicts {
		if v.Failed() {
			return true
		}
	}

	return false
}

func (v *Verdict) record(status suite.Status, start time.Time, out suite.Outcome, attachments []results.Attachment) {
	v.Attempts = append(v.Attempts, results.Attempt{
		Status:      string(status),
		StartTime:   start,
		Duration:    out.Duration,
		Errors:      out.Errors,
		Attachments: attachments,
	})

	v.Status = status
	v.SkipReason = out.SkipReason
	v.Duration += out.Duration
	v.Errors = out.Errors
	v.Attachments = append(v.Attachments, attachments...)
}

func (v *Verdict) metric() *metrics.TestResultMetric {
	return &metrics.TestResultMetric{
		Suite:      v.Suite,
		Title:      v.Group + " › " + v.Title,
		Project:    v.Project,
		Status:     string(v.Status),
		Duration:   v.Duration,
		Attempts:   len(v.Attempts),
		Flaky:      v.Flaky(),
		SkipReason: v.SkipReason,
		Errors:     v.Errors,
		Timestamp:  time.Now(),
	}
}

func (v *Verdict) entry() results.Entry {
	return results.Entry{
		Suite:    v.Suite,
		File:     v.File,
		Group:    v.Group,
		Title:    v.Title,
		Project:  v.Project,
		Attempts: v.Attempts,
	}
}
