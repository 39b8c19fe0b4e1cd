package report

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/ethpandaops/sitecheck/internal/results"
	"github.com/sirupsen/logrus"
)

// Row statuses.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusPending = "pending"
)

const unknownBrowser = "unknown"

//go:embed templates/dashboard.html.tmpl
var dashboardSource string

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"seconds": func(ms float64) string { return strconv.FormatFloat(ms/1000, 'f', 2, 64) },
}).Parse(dashboardSource))

// Stats counts rows by status. Pending rows count only towards Total.
type Stats struct {
	Passed  int
	Failed  int
	Skipped int
	Total   int
}

func (s *Stats) add(status string) {
	s.Total++

	switch status {
	case StatusPassed:
		s.Passed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}

// TestRow is one spec under one project. Duration is in milliseconds.
type TestRow struct {
	Name     string
	Status   string
	Duration float64
	Browser  string
}

// SuiteSummary is a top-level suite with its rows.
type SuiteSummary struct {
	Name  string
	Tests []TestRow
	Stats Stats
}

// Run is the whole dashboard model.
type Run struct {
	Suites []SuiteSummary
	Stats  Stats
}

// PassRate is passed/total as a percentage with one decimal, or "0" for an
// empty run.
func (r *Run) PassRate() string {
	if r.Stats.Total == 0 {
		return "0"
	}

	rate := math.Round(float64(r.Stats.Passed)/float64(r.Stats.Total)*1000) / 10

	return strconv.FormatFloat(rate, 'f', 1, 64)
}

// rowStatus maps the first attempt's status onto a dashboard status.
func rowStatus(status string) string {
	switch status {
	case results.StatusPassed, results.OutcomeExpected:
		return StatusPassed
	case results.StatusFailed, results.StatusTimedOut, results.StatusInterrupted, results.OutcomeUnexpected:
		return StatusFailed
	case results.StatusSkipped:
		return StatusSkipped
	default:
		return StatusPending
	}
}

// Load reads and reduces a results file. A missing file is an empty run.
func Load(path string) (*Run, error) {
	f, err := results.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Run{Suites: make([]SuiteSummary, 0)}, nil
		}
		return nil, err
	}

	return Parse(f), nil
}

// Parse reduces f. Only the first attempt of each test is counted.
func Parse(f *results.File) *Run {
	run := &Run{Suites: make([]SuiteSummary, 0, len(f.Suites))}

	for _, s := range f.Suites {
		summary := SuiteSummary{Name: s.Title, Tests: make([]TestRow, 0)}

		for _, spec := range collectSpecs(s) {
			for _, row := range specRows(spec) {
				summary.Tests = append(summary.Tests, row)
				summary.Stats.add(row.Status)
				run.Stats.add(row.Status)
			}
		}

		run.Suites = append(run.Suites, summary)
	}

	return run
}

// collectSpecs returns the specs of s and of its nested suites, depth first.
func collectSpecs(s *results.Suite) []*results.Spec {
	specs := append([]*results.Spec(nil), s.Specs...)
	for _, child := range s.Suites {
		specs = append(specs, collectSpecs(child)...)
	}

	return specs
}

func specRows(spec *results.Spec) []TestRow {
	if len(spec.Tests) == 0 {
		return []TestRow{{Name: spec.Title, Status: StatusPending, Browser: unknownBrowser}}
	}

	rows := make([]TestRow, 0, len(spec.Tests))
	for _, test := range spec.Tests {
		row := TestRow{Name: spec.Title, Status: StatusPending, Browser: test.ProjectName}
		if row.Browser == "" {
			row.Browser = unknownBrowser
		}

		if len(test.Results) > 0 {
			first := test.Results[0]
			row.Status = rowStatus(first.Status)
			row.Duration = float64(first.Duration)
		}

		rows = append(rows, row)
	}

	return rows
}

// Dashboard renders results.json into the results dashboard.
type Dashboard struct {
	log    logrus.FieldLogger
	writer *Writer
	now    func() time.Time
}

// NewDashboard returns a dashboard generator.
func NewDashboard(log logrus.FieldLogger, writer *Writer) *Dashboard {
	return &Dashboard{
		log:    log.WithField("component", "report.dashboard"),
		writer: writer,
		now:    time.Now,
	}
}

type dashboardView struct {
	Run       *Run
	PassRate  string
	Generated string
}

// Render returns the dashboard document for run.
func (d *Dashboard) Render(run *Run) ([]byte, error) {
	var buf bytes.Buffer

	err := dashboardTemplate.Execute(&buf, dashboardView{
		Run:       run,
		PassRate:  run.PassRate(),
		Generated: d.now().Format("2006-01-02 15:04:05 MST"),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering dashboard: %w", err)
	}

	return buf.Bytes(), nil
}

// Generate reads resultsPath and writes the dashboard to outPath. The run
// is returned for callers that print a summary.
func (d *Dashboard) Generate(resultsPath, outPath string) (*Run, error) {
	run, err := Load(resultsPath)
	if err != nil {
		return nil, fmt.Errorf("loading results: %w", err)
	}

	return run, d.write(run, outPath)
}

// Publish writes the dashboard for results that are already in memory.
func (d *Dashboard) Publish(f *results.File, outPath string) (*Run, error) {
	run := Parse(f)

	return run, d.write(run, outPath)
}

func (d *Dashboard) write(run *Run, outPath string) error {
	doc, err := d.Render(run)
	if err != nil {
		return err
	}

	if err := d.writer.Write(outPath, doc); err != nil {
		return err
	}

	d.log.WithFields(logrus.Fields{
		"suites": len(run.Suites),
		"tests":  run.Stats.Total,
		"passed": run.Stats.Passed,
		"failed": run.Stats.Failed,
	}).Debug("Dashboard generated")

	return nil
}
