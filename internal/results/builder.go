package results

import "time"

// Entry is every attempt of one case under one project.
type Entry struct {
	Suite    string
	File     string
	Group    string
	Title    string
	Project  string
	Attempts []Attempt
}

// Attempt is one run of a case.
type Attempt struct {
	Status      string
	StartTime   time.Time
	Duration    time.Duration
	Errors      []string
	Attachments []Attachment
}

// Outcome classifies attempts: a first skip is skipped, a pass on the first
// attempt is expected, a pass after retries is flaky and anything else is
// unexpected.
func Outcome(attempts []Attempt) string {
	if len(attempts) == 0 {
		return OutcomeSkipped
	}

	if attempts[0].Status == StatusSkipped {
		return OutcomeSkipped
	}

	if attempts[len(attempts)-1].Status == StatusPassed {
		if len(attempts) > 1 {
			return OutcomeFlaky
		}
		return OutcomeExpected
	}

	return OutcomeUnexpected
}

type specKey struct {
	suite, group, title string
}

// Builder assembles a File from entries. Suites, groups and specs keep the
// order in which they were first added.
type Builder struct {
	cfg    Config
	start  time.Time
	suites []*Suite
	tops   map[string]*Suite
	groups map[[2]string]*Suite
	specs  map[specKey]*Spec
	stats  Stats
}

// NewBuilder starts a File for a run that began at start.
func NewBuilder(cfg Config, start time.Time) *Builder {
	return &Builder{
		cfg:    cfg,
		start:  start,
		tops:   make(map[string]*Suite),
		groups: make(map[[2]string]*Suite),
		specs:  make(map[specKey]*Spec),
	}
}

// Add records e.
func (b *Builder) Add(e Entry) {
	top, ok := b.tops[e.Suite]
	if !ok {
		top = &Suite{Title: e.Suite, File: e.File, Specs: make([]*Spec, 0)}
		b.tops[e.Suite] = top
		b.suites = append(b.suites, top)
	}

	gk := [2]string{e.Suite, e.Group}
	group, ok := b.groups[gk]
	if !ok {
		group = &Suite{Title: e.Group, File: e.File, Specs: make([]*Spec, 0)}
		b.groups[gk] = group
		top.Suites = append(top.Suites, group)
	}

	sk := specKey{e.Suite, e.Group, e.Title}
	spec, ok := b.specs[sk]
	if !ok {
		spec = &Spec{Title: e.Title, OK: true, Tests: make([]*Test, 0)}
		b.specs[sk] = spec
		group.Specs = append(group.Specs, spec)
	}

	outcome := Outcome(e.Attempts)
	test := &Test{
		ProjectName:    e.Project,
		ExpectedStatus: StatusPassed,
		Status:         outcome,
		Results:        make([]*Result, 0, len(e.Attempts)),
	}

	for i, a := range e.Attempts {
		r := &Result{
			Retry:       i,
			Status:      a.Status,
			Duration:    a.Duration.Milliseconds(),
			StartTime:   a.StartTime,
			Errors:      make([]Error, 0, len(a.Errors)),
			Attachments: append(make([]Attachment, 0, len(a.Attachments)), a.Attachments...),
		}
		for _, msg := range a.Errors {
			r.Errors = append(r.Errors, Error{Message: msg})
		}
		test.Results = append(test.Results, r)
	}

	spec.Tests = append(spec.Tests, test)

	switch outcome {
	case OutcomeExpected:
		b.stats.Expected++
	case OutcomeFlaky:
		b.stats.Flaky++
	case OutcomeSkipped:
		b.stats.Skipped++
	default:
		b.stats.Unexpected++
		spec.OK = false
	}
}

// File returns the assembled results for a run that ended at end.
func (b *Builder) File(end time.Time) *File {
	stats := b.stats
	stats.StartTime = b.start
	stats.Duration = float64(end.Sub(b.start).Milliseconds())

	suites := b.suites
	if suites == nil {
		suites = make([]*Suite, 0)
	}

	return &File{
		Config: b.cfg,
		Suites: suites,
		Errors: make([]Error, 0),
		Stats:  stats,
	}
}
