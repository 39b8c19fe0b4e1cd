package harness

import (
	"fmt"
	"time"

	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/ethpandaops/sitecheck/internal/report"
	"github.com/ethpandaops/sitecheck/internal/results"
)

// Reporters selects the outputs of a run. Empty paths disable a reporter.
type Reporters struct {
	JSONPath string
	HTMLPath string
	List     bool
	Minify   bool
}

// ReportersFromProfile resolves the reporters of p. Reporters without an
// output path write to resultsDir.
func ReportersFromProfile(p *config.Profile, cfg *config.Config) Reporters {
	var r Reporters

	if rep, ok := p.Reporter(config.ReporterJSON); ok {
		r.JSONPath = rep.Output
		if r.JSONPath == "" {
			r.JSONPath = cfg.ResultsPath()
		}
	}

	if rep, ok := p.Reporter(config.ReporterHTML); ok {
		r.HTMLPath = rep.Output
		if r.HTMLPath == "" {
			r.HTMLPath = cfg.DashboardPath()
		}
	}

	r.List = p.HasReporter(config.ReporterList)
	r.Minify = true

	return r
}

// File assembles the results of verdicts.
func (o *Orchestrator) File(verdicts []*Verdict, start, end time.Time) *results.File {
	projects := make([]results.Project, 0, len(o.cfg.Projects))
	for _, p := range o.cfg.Projects {
		projects = append(projects, results.Project{Name: p.Name, Engine: string(p.Engine), Device: p.Device.Name})
	}

	b := results.NewBuilder(results.Config{
		RunID:    o.runID,
		BaseURL:  o.cfg.BaseURL,
		Workers:  o.cfg.Workers,
		Retries:  o.cfg.Retries,
		Projects: projects,
	}, start)

	for _, v := range verdicts {
		if v != nil {
			b.Add(v.entry())
		}
	}

	return b.File(end)
}

func (o *Orchestrator) publish(verdicts []*Verdict, start, end time.Time) error {
	r := o.cfg.Reporters
	f := o.File(verdicts, start, end)

	if r.JSONPath != "" {
		if err := results.Write(r.JSONPath, f); err != nil {
			return fmt.Errorf("writing json report: %w", err)
		}
		o.log.WithField("path", r.JSONPath).Info("Results written")
	}

	if r.HTMLPath != "" {
		dashboard := report.NewDashboard(o.cfg.Logger, report.NewWriter(o.cfg.Logger, r.Minify))
		if _, err := dashboard.Publish(f, r.HTMLPath); err != nil {
			return fmt.Errorf("writing html report: %w", err)
		}
	}

	if r.List {
		o.formatter.PrintTestResults()
		o.formatter.PrintSummary()
	}

	return nil
}
