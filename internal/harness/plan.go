package harness

import (
	"regexp"

	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/ethpandaops/sitecheck/internal/suite"
)

// Job is one case under one project.
type Job struct {
	Suite   *suite.Suite
	Group   *suite.Group
	Case    *suite.Case
	Project config.ResolvedProject
}

// Title is the full title the grep filter and the reporters use.
func (j Job) Title() string {
	return suite.FullTitle(j.Suite, j.Group, j.Case)
}

// Plan expands suites across projects in declaration order: suite, then
// project, then group, then case. A nil grep keeps every case.
func Plan(suites []*suite.Suite, projects []config.ResolvedProject, grep *regexp.Regexp) []Job {
	jobs := make([]Job, 0)

	for _, s := range suites {
		for _, p := range projects {
			for _, g := range s.Groups {
				for _, c := range g.Cases {
					job := Job{Suite: s, Group: g, Case: c, Project: p}
					if grep != nil && !grep.MatchString(job.Title()) {
						continue
					}
					jobs = append(jobs, job)
				}
			}
		}
	}

	return jobs
}
