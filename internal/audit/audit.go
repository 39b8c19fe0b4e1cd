// Package audit runs an external Lighthouse audit against a URL.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/sirupsen/logrus"
)

// DefaultBinary is the Lighthouse CLI looked up on PATH.
const DefaultBinary = "lighthouse"

var (
	errMissingCategory = errors.New("lighthouse report is missing a category")
	errNoReport        = errors.New("lighthouse produced no report")
)

// Categories audited, in report order.
var Categories = []string{"performance", "accessibility", "best-practices", "seo"}

// Capability says whether an audit can run in the current environment.
type Capability struct {
	available bool
	reason    string
}

// Available is the capability of an environment that can audit.
func Available() Capability {
	return Capability{available: true}
}

// Unavailable is the capability of an environment that cannot audit.
func Unavailable(reason string) Capability {
	return Capability{reason: reason}
}

func (c Capability) Available() bool { return c.available }

// Reason explains an unavailable capability.
func (c Capability) Reason() string { return c.reason }

// Detect resolves the audit capability for engine. Only Chromium can be
// audited and the Lighthouse CLI must be installed.
func Detect(engine browser.Engine, binary string) Capability {
	if engine != browser.Chromium {
		return Unavailable("Lighthouse only works with Chromium")
	}

	if binary == "" {
		binary = DefaultBinary
	}

	if _, err := exec.LookPath(binary); err != nil {
		return Unavailable(fmt.Sprintf("%s not found on PATH", binary))
	}

	return Available()
}

// Scores are category scores on a 0-100 scale.
type Scores struct {
	Performance   float64 `json:"performance"`
	Accessibility float64 `json:"accessibility"`
	BestPractices float64 `json:"bestPractices"`
	SEO           float64 `json:"seo"`
}

// Floors are exclusive lower bounds for Scores.
type Floors Scores

// DefaultFloors must be strictly exceeded by every category.
var DefaultFloors = Floors{
	Performance:   70,
	Accessibility: 80,
	BestPractices: 80,
	SEO:           80,
}

// Check returns a description of every category at or below its floor.
func (s Scores) Check(f Floors) []string {
	checks := []struct {
		name  string
		score float64
		floor float64
	}{
		{"performance", s.Performance, f.Performance},
		{"accessibility", s.Accessibility, f.Accessibility},
		{"best-practices", s.BestPractices, f.BestPractices},
		{"seo", s.SEO, f.SEO},
	}

	failures := make([]string, 0)
	for _, c := range checks {
		if c.score <= c.floor {
			failures = append(failures, fmt.Sprintf("%s score %.0f is not greater than %.0f", c.name, c.score, c.floor))
		}
	}

	return failures
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Auditor launches a debug browser and points Lighthouse at it.
type Auditor struct {
	log        logrus.FieldLogger
	binary     string
	chromePath string
	run        CommandRunner
	launch     func(execPath string) (*browser.DebugBrowser, error)
}

// New creates an Auditor. An empty binary uses DefaultBinary.
func New(log logrus.FieldLogger, binary, chromePath string) *Auditor {
	if binary == "" {
		binary = DefaultBinary
	}

	return &Auditor{
		log:        log.WithField("component", "audit"),
		binary:     binary,
		chromePath: chromePath,
		run:        execCommand,
		launch:     browser.LaunchDebugBrowser,
	}
}

// Run audits url and returns the category scores.
func (a *Auditor) Run(ctx context.Context, url string) (*Scores, error) {
	chrome, err := a.launch(a.chromePath)
	if err != nil {
		return nil, fmt.Errorf("starting audit browser: %w", err)
	}
	defer chrome.Close()

	args := []string{
		url,
		"--port=" + strconv.Itoa(chrome.Port),
		"--output=json",
		"--quiet",
		"--only-categories=" + strings.Join(Categories, ","),
		"--chrome-flags=--headless",
	}

	a.log.WithFields(logrus.Fields{
		"url":  url,
		"port": chrome.Port,
	}).Debug("Running lighthouse")

	out, err := a.run(ctx, a.binary, args...)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", a.binary, err)
	}

	return ParseReport(out)
}

// ParseReport extracts category scores from a Lighthouse JSON report.
func ParseReport(data []byte) (*Scores, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errNoReport
	}

	var report struct {
		Categories map[string]struct {
			Score *float64 `json:"score"`
		} `json:"categories"`
	}

	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decoding lighthouse report: %w", err)
	}

	scores := make(map[string]float64, len(Categories))
	for _, name := range Categories {
		cat, ok := report.Categories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", errMissingCategory, name)
		}

		// A null score means the category errored; treat as zero.
		if cat.Score != nil {
			scores[name] = *cat.Score * 100
		}
	}

	return &Scores{
		Performance:   scores["performance"],
		Accessibility: scores["accessibility"],
		BestPractices: scores["best-practices"],
		SEO:           scores["seo"],
	}, nil
}

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // binary comes from config
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}
