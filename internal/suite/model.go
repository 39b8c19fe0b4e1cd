// Package suite holds the browser test model and the suites built on it.
package suite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/ethpandaops/sitecheck/internal/audit"
	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/ethpandaops/sitecheck/internal/snapshot"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// ErrUnknownSuite is returned when a suite name does not exist.
var ErrUnknownSuite = errors.New("unknown suite")

// Status is the terminal state of one test attempt.
type Status string

const (
	Passed      Status = "passed"
	Failed      Status = "failed"
	TimedOut    Status = "timedOut"
	Skipped     Status = "skipped"
	Interrupted Status = "interrupted"
)

// OK reports whether the status does not fail a run.
func (s Status) OK() bool {
	return s == Passed || s == Skipped
}

const (
	// DefaultTimeout bounds a test when the environment sets none.
	DefaultTimeout = 30 * time.Second

	// slowFactor multiplies the timeout of cases marked Slow.
	slowFactor = 3

	// abandonGrace is how long a timed-out body gets to notice cancellation.
	abandonGrace = 2 * time.Second

	harnessErrorPrefix = "harness error: "
)

// Suite is a named set of groups.
type Suite struct {
	Name   string
	Title  string
	Groups []*Group
}

// Cases returns the number of cases in the suite.
func (s *Suite) Cases() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Cases)
	}

	return n
}

// Group shares device emulation, load state and setup across cases.
type Group struct {
	Title string
	// Use overrides the project's device when set.
	Use        *browser.DeviceProfile
	LoadState  browser.LoadState
	BeforeEach func(t *T)
	Cases      []*Case
}

// Case is one test.
type Case struct {
	Title string
	// Retryable cases are network-sensitive and may be retried in CI.
	Retryable bool
	// Slow cases get three times the usual timeout.
	Slow bool
	Run  func(t *T)
}

// FullTitle joins suite, group and case titles the way reports show them.
func FullTitle(s *Suite, g *Group, c *Case) string {
	return strings.Join([]string{s.Title, g.Title, c.Title}, " › ")
}

// Auditor runs an external page audit.
type Auditor interface {
	Run(ctx context.Context, url string) (*audit.Scores, error)
}

// Baselines compares screenshots against stored baselines.
type Baselines interface {
	Compare(project, name string, png []byte) (snapshot.Result, error)
}

// Env is everything a test attempt runs against.
type Env struct {
	BaseURL string
	Project string
	Engine  browser.Engine
	Device  browser.DeviceProfile
	Browser browser.Context
	Page    browser.Page
	// NewContext opens an extra isolated context with the attempt's device.
	NewContext func(ctx context.Context) (browser.Context, error)
	Audit      Auditor
	AuditCap   audit.Capability
	Baselines  Baselines
	Timeout    time.Duration
	Seed       uint64
	Log        logrus.FieldLogger
}

// Attachment is a named artifact produced by a test.
type Attachment struct {
	Name        string
	ContentType string
	Body        []byte
}

// Outcome is the result of one attempt.
type Outcome struct {
	Status      Status
	Errors      []string
	SkipReason  string
	Duration    time.Duration
	Attachments []Attachment
}

// T is handed to every case. It satisfies require.TestingT, so cases
// assert with testify.
type T struct {
	ctx   context.Context
	env   Env
	group *Group
	faker *gofakeit.Faker

	mu          sync.Mutex
	failed      bool
	skipped     bool
	skipReason  string
	errors      []string
	cleanups    []func()
	attachments []Attachment
}

var _ require.TestingT = (*T)(nil)

func newT(ctx context.Context, g *Group, env Env) *T {
	if env.Log == nil {
		env.Log = logrus.New()
	}

	return &T{
		ctx:    ctx,
		env:    env,
		group:  g,
		faker:  gofakeit.New(env.Seed),
		errors: make([]string, 0),
	}
}

func (t *T) Context() context.Context { return t.ctx }

func (t *T) Page() browser.Page { return t.env.Page }

// Browser returns the isolated context the page lives in.
func (t *T) Browser() browser.Context { return t.env.Browser }

func (t *T) Project() string { return t.env.Project }

func (t *T) Engine() browser.Engine { return t.env.Engine }

// Device returns the emulated device of this attempt.
func (t *T) Device() browser.DeviceProfile { return t.env.Device }

// Faker returns a generator seeded per attempt.
func (t *T) Faker() *gofakeit.Faker { return t.faker }

func (t *T) AuditCapability() audit.Capability { return t.env.AuditCap }

func (t *T) Helper() {}

func (t *T) Errorf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failed = true
	t.errors = append(t.errors, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// FailNow stops the case. It must be called from the case goroutine.
func (t *T) FailNow() {
	t.mu.Lock()
	t.failed = true
	t.mu.Unlock()

	runtime.Goexit()
}

func (t *T) Fatalf(format string, args ...any) {
	t.Errorf(format, args...)
	t.FailNow()
}

// Skip marks the case skipped and stops it.
func (t *T) Skip(args ...any) {
	t.Skipf("%s", fmt.Sprint(args...))
}

func (t *T) Skipf(format string, args ...any) {
	t.mu.Lock()
	t.skipped = true
	t.skipReason = fmt.Sprintf(format, args...)
	t.mu.Unlock()

	runtime.Goexit()
}

func (t *T) Logf(format string, args ...any) {
	t.env.Log.Debugf(format, args...)
}

// Cleanup registers fn to run after the case, last registered first.
func (t *T) Cleanup(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cleanups = append(t.cleanups, fn)
}

// Attach records an artifact for the report.
func (t *T) Attach(name, contentType string, body []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.attachments = append(t.attachments, Attachment{Name: name, ContentType: contentType, Body: body})
}

// Must stops the case on an unexpected driver error. Errors caused by the
// test deadline stop the case without a message; the caller reports the
// timeout.
func (t *T) Must(err error, doing string) {
	if err == nil {
		return
	}

	if t.ctx.Err() != nil {
		t.FailNow()
	}

	t.Fatalf("%s%s: %v", harnessErrorPrefix, doing, err)
}

// URL resolves path against the base URL. Absolute URLs are returned as is.
func (t *T) URL(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}

	return strings.TrimSuffix(t.env.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (t *T) loadState() browser.LoadState {
	if t.group != nil && t.group.LoadState != "" {
		return t.group.LoadState
	}

	return browser.NetworkIdle
}

// Goto navigates to path and waits for the group's load state.
func (t *T) Goto(path string) *browser.Response {
	return t.GotoState(path, t.loadState())
}

// GotoState navigates to path and waits for state.
func (t *T) GotoState(path string, state browser.LoadState) *browser.Response {
	resp, err := t.env.Page.Goto(t.ctx, t.URL(path), state)
	t.Must(err, "navigating to "+path)

	return resp
}

// Eval evaluates script into out and stops the case if evaluation fails.
func (t *T) Eval(script string, out any) {
	t.Must(t.env.Page.Evaluate(t.ctx, script, out), "evaluating script")
}

// Count returns the number of elements matching selector.
func (t *T) Count(selector string) int {
	n, err := t.env.Page.Count(t.ctx, selector)
	t.Must(err, "counting "+selector)

	return n
}

// CurrentURL returns the page URL.
func (t *T) CurrentURL() string {
	u, err := t.env.Page.URL(t.ctx)
	t.Must(err, "reading url")

	return u
}

// BodyText returns the text content of the document body.
func (t *T) BodyText() string {
	var text string
	t.Eval(bodyTextScript, &text)

	return text
}

// Wait pauses the case. A deadline during the pause stops the case.
func (t *T) Wait(d time.Duration) {
	if err := browser.Sleep(t.ctx, d); err != nil {
		t.FailNow()
	}
}

// Try runs fn with a short sub-timeout and discards its error. Stress cases
// use it for actions whose individual success does not matter.
func (t *T) Try(timeout time.Duration, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		t.Logf("ignored: %v", err)
	}
}

// NewContext opens an isolated browser context closed after the case.
func (t *T) NewContext() browser.Context {
	if t.env.NewContext == nil {
		t.Fatalf("%sno browser available for extra contexts", harnessErrorPrefix)
	}

	bctx, err := t.env.NewContext(t.ctx)
	t.Must(err, "opening browser context")
	t.Cleanup(func() { _ = bctx.Close() })

	return bctx
}

// Audit runs the external audit for path.
func (t *T) Audit(path string) *audit.Scores {
	if t.env.Audit == nil {
		t.Skip("no auditor configured")
	}

	scores, err := t.env.Audit.Run(t.ctx, t.URL(path))
	t.Must(err, "auditing "+path)

	return scores
}

// MatchScreenshot compares shot, a PNG, against the project's baseline of
// name. Failures attach the screenshot and, for same-size images, the diff.
func (t *T) MatchScreenshot(name string, shot []byte, maxDiffPixels int) {
	if t.env.Baselines == nil {
		t.Skip("no baseline store configured")
	}

	res, err := t.env.Baselines.Compare(t.env.Project, name, shot)
	t.Must(err, "comparing "+name)

	if res.Created {
		t.Logf("wrote baseline %s", name)
		return
	}

	if res.Passed(maxDiffPixels) {
		return
	}

	stem := strings.TrimSuffix(name, ".png")
	t.Attach(stem+"-actual.png", "image/png", shot)

	if res.SizeMismatch {
		t.Errorf("%s: expected an image %dpx by %dpx, received %dpx by %dpx",
			name, res.Baseline.Dx(), res.Baseline.Dy(), res.Actual.Dx(), res.Actual.Dy())
		return
	}

	if res.Diff != nil {
		t.Attach(stem+"-diff.png", "image/png", res.Diff)
	}
	t.Errorf("%s: %d pixels are different (%d allowed)", name, res.DiffPixels, maxDiffPixels)
}

func (t *T) runCleanups() {
	t.mu.Lock()
	cleanups := t.cleanups
	t.cleanups = nil
	t.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

func (t *T) outcome() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := Outcome{
		Errors:      append([]string(nil), t.errors...),
		Attachments: append([]Attachment(nil), t.attachments...),
	}

	switch {
	case t.failed:
		out.Status = Failed
	case t.skipped:
		out.Status = Skipped
		out.SkipReason = t.skipReason
	default:
		out.Status = Passed
	}

	return out
}

// Execute runs one attempt of c: the group setup, then the body, then
// cleanups. The body runs on its own goroutine so a deadline can abandon it.
func Execute(ctx context.Context, g *Group, c *Case, env Env) Outcome {
	start := time.Now()

	timeout := env.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if c.Slow {
		timeout *= slowFactor
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t := newT(runCtx, g, env)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("%spanic: %v", harnessErrorPrefix, r)
			}
		}()

		if g != nil && g.BeforeEach != nil {
			g.BeforeEach(t)
		}
		c.Run(t)
	}()

	select {
	case <-done:
	case <-runCtx.Done():
		select {
		case <-done:
		case <-time.After(abandonGrace):
			t.env.Log.WithField("test", c.Title).Warn("Abandoning test body after deadline")
		}
	}

	t.runCleanups()

	out := t.outcome()
	out.Duration = time.Since(start)

	switch {
	case ctx.Err() != nil:
		out.Status = Interrupted
		out.Errors = append(out.Errors, "test run interrupted")
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && (out.Status == Failed || !isDone(done)):
		out.Status = TimedOut
		out.Errors = append(out.Errors, fmt.Sprintf("Test timeout of %s exceeded.", timeout))
	}

	return out
}

func isDone(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// IsHarnessError reports whether msg describes a harness failure rather than
// a failed assertion.
func IsHarnessError(msg string) bool {
	return strings.HasPrefix(msg, harnessErrorPrefix)
}
