// Package harness runs suites across a project matrix: a worker pool of
// browser attempts with retries, artifacts and reporters.
package harness

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ethpandaops/sitecheck/internal/audit"
	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/ethpandaops/sitecheck/internal/harness/metrics"
	"github.com/ethpandaops/sitecheck/internal/harness/output"
	"github.com/ethpandaops/sitecheck/internal/harness/table"
	"github.com/ethpandaops/sitecheck/internal/results"
	"github.com/ethpandaops/sitecheck/internal/suite"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

const (
	retryDelay        = 500 * time.Millisecond
	screenshotTimeout = 5 * time.Second
)

var errAttemptFailed = errors.New("attempt failed")

// Capture controls when artifacts are kept.
type Capture struct {
	Trace      string
	Screenshot string
	Video      string
}

// Config contains configuration for a run.
type Config struct {
	Logger  logrus.FieldLogger
	Writer  io.Writer
	Metrics metrics.Collector
	Drivers DriverFactory
	// WebServer is started before the run when set.
	WebServer *WebServer
	// ArtifactDir receives one directory per run.
	ArtifactDir string
	BaseURL     string
	Projects    []config.ResolvedProject
	Workers     int
	// Retries is the budget for Retryable cases.
	Retries int
	Timeout time.Duration
	Capture Capture
	// Auditor runs Lighthouse. Nil skips audit cases.
	Auditor   suite.Auditor
	AuditBin  string
	// Baselines backs visual comparisons. Nil skips them.
	Baselines suite.Baselines
	Reporters Reporters
}

// Orchestrator coordinates a run.
type Orchestrator struct {
	cfg       Config
	log       logrus.FieldLogger
	metrics   metrics.Collector
	formatter output.Formatter
	drivers   *driverPool
	runID     string
	store     *ArtifactStore
	videoOnce sync.Once
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector(cfg.Logger)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultTestTimeout
	}

	return &Orchestrator{
		cfg:       cfg,
		log:       cfg.Logger.WithField("component", "harness.orchestrator"),
		metrics:   cfg.Metrics,
		formatter: output.NewFormatter(cfg.Writer, cfg.Metrics, table.NewRenderer()),
		drivers:   newDriverPool(cfg.Logger, cfg.Drivers),
		runID:     uuid.NewString(),
	}
}

// RunID identifies the run in results.json and the artifact directory.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Formatter returns the terminal output of the run.
func (o *Orchestrator) Formatter() output.Formatter {
	return o.formatter
}

// Start initializes the orchestrator and all its components.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.log.Debug("starting orchestrator")

	if err := o.metrics.Start(ctx); err != nil {
		return fmt.Errorf("starting metrics collector: %w", err)
	}

	store, err := NewArtifactStore(o.cfg.ArtifactDir, o.runID)
	if err != nil {
		return fmt.Errorf("creating artifact store: %w", err)
	}
	o.store = store

	if o.cfg.WebServer != nil {
		if err := o.cfg.WebServer.Start(ctx); err != nil {
			return fmt.Errorf("starting web server: %w", err)
		}
	}

	o.log.WithField("run_id", o.runID).Info("Orchestrator started")

	return nil
}

// Stop releases browsers, the web server and the collector.
func (o *Orchestrator) Stop() error {
	o.log.Debug("stopping orchestrator")

	var errs []error

	if err := o.drivers.close(); err != nil {
		errs = append(errs, fmt.Errorf("stopping browsers: %w", err))
	}

	if o.cfg.WebServer != nil {
		if err := o.cfg.WebServer.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping web server: %w", err))
		}
	}

	if err := o.metrics.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping metrics collector: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors stopping orchestrator: %w", errors.Join(errs...))
	}

	return nil
}

// Run executes jobs on the worker pool and publishes the configured
// reports. Verdicts are returned in job order.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) ([]*Verdict, error) {
	start := time.Now()

	o.log.WithFields(logrus.Fields{
		"tests":   len(jobs),
		"workers": o.cfg.Workers,
		"retries": o.cfg.Retries,
	}).Info("Running tests")

	if o.cfg.Capture.Video != "" && o.cfg.Capture.Video != config.CaptureOff {
		o.videoOnce.Do(func() {
			o.log.WithField("video", o.cfg.Capture.Video).Warn("Video recording is not supported, ignoring")
		})
	}

	if o.cfg.Reporters.List {
		o.formatter.PrintPhase(fmt.Sprintf("Running %d tests using %d workers", len(jobs), o.cfg.Workers))
	}

	verdicts := o.runJobs(ctx, jobs)

	o.log.WithFields(logrus.Fields{
		"tests":    len(verdicts),
		"duration": time.Since(start),
	}).Info("All tests completed")

	if err := o.publish(verdicts, start, time.Now()); err != nil {
		return verdicts, err
	}

	return verdicts, nil
}

// runJobs executes jobs in parallel using a worker pool.
func (o *Orchestrator) runJobs(ctx context.Context, jobs []Job) []*Verdict {
	type indexedJob struct {
		index int
		job   Job
	}

	var (
		verdicts = make([]*Verdict, len(jobs))
		queue    = make(chan indexedJob, len(jobs))
		wg       sync.WaitGroup
		done     int
		doneMu   sync.Mutex
	)

	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for ij := range queue {
				v := o.runJob(ctx, ij.job)

				// Each worker writes to a unique index.
				verdicts[ij.index] = v

				m := v.metric()
				o.metrics.RecordTestResult(m)

				if o.cfg.Reporters.List {
					doneMu.Lock()
					done++
					n := done
					doneMu.Unlock()
					o.formatter.PrintVerdict(n, len(jobs), m)
				}
			}
		}()
	}

	for i, job := range jobs {
		queue <- indexedJob{index: i, job: job}
	}
	close(queue)

	wg.Wait()

	return verdicts
}

// runJob runs every attempt of job.
func (o *Orchestrator) runJob(ctx context.Context, job Job) *Verdict {
	v := &Verdict{
		Suite:   job.Suite.Title,
		File:    job.Suite.Name,
		Group:   job.Group.Title,
		Title:   job.Case.Title,
		Project: job.Project.Name,
	}

	log := o.log.WithFields(logrus.Fields{
		"suite":   job.Suite.Name,
		"project": job.Project.Name,
		"test":    job.Title(),
	})

	if ctx.Err() != nil {
		v.record(suite.Interrupted, time.Now(), suite.Outcome{Errors: []string{"test run interrupted"}}, nil)
		return v
	}

	driver, err := o.drivers.get(ctx, job.Project.Engine)
	if err != nil {
		status, out := suite.Failed, suite.Outcome{Errors: []string{"harness error: starting browser: " + err.Error()}}
		if errors.Is(err, browser.ErrEngineUnavailable) {
			status, out = suite.Skipped, suite.Outcome{SkipReason: err.Error()}
		}
		v.record(status, time.Now(), out, nil)

		return v
	}

	budget := 0
	if job.Case.Retryable && o.cfg.Retries > 0 {
		budget = o.cfg.Retries
	}

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(budget), retry.NewConstant(retryDelay)) //nolint:gosec // G115: budget is never negative

	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		status := o.runAttempt(ctx, driver, job, attempt, v)
		attempt++

		if status == suite.Failed || status == suite.TimedOut {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"status":  status,
			}).Debug("Attempt failed")

			return retry.RetryableError(errAttemptFailed)
		}

		return nil
	})

	if len(v.Attempts) == 0 {
		v.record(suite.Interrupted, time.Now(), suite.Outcome{Errors: []string{"test run interrupted"}}, nil)
	}

	log.WithFields(logrus.Fields{
		"status":   v.Status,
		"attempts": len(v.Attempts),
		"duration": v.Duration,
	}).Debug("Test finished")

	return v
}

// runAttempt runs one attempt in a fresh browser context and records it.
func (o *Orchestrator) runAttempt(ctx context.Context, driver browser.Driver, job Job, attempt int, v *Verdict) suite.Status {
	start := time.Now()

	device := job.Project.Device
	if job.Group.Use != nil {
		device = *job.Group.Use
	}
	opts := browser.Options{Device: device}

	fail := func(doing string, err error) suite.Status {
		status := suite.Failed
		if ctx.Err() != nil {
			status = suite.Interrupted
		}
		v.record(status, start, suite.Outcome{
			Errors:   []string{fmt.Sprintf("harness error: %s: %v", doing, err)},
			Duration: time.Since(start),
		}, nil)

		return status
	}

	bctx, err := driver.NewContext(ctx, opts)
	if err != nil {
		return fail("opening browser context", err)
	}
	defer func() { _ = bctx.Close() }()

	openCtx, cancelOpen := context.WithTimeout(ctx, o.cfg.Timeout)
	raw, err := bctx.NewPage(openCtx)
	cancelOpen()
	if err != nil {
		return fail("opening page", err)
	}
	defer func() { _ = raw.Close() }()

	var (
		page browser.Page = raw
		tr   *tracer
	)
	if o.traceEnabled(attempt) {
		tr = newTracer(raw)
		page = tr
	}

	out := suite.Execute(ctx, job.Group, job.Case, suite.Env{
		BaseURL: o.cfg.BaseURL,
		Project: job.Project.Name,
		Engine:  driver.Engine(),
		Device:  device,
		Browser: bctx,
		Page:    page,
		NewContext: func(ctx context.Context) (browser.Context, error) {
			return driver.NewContext(ctx, opts)
		},
		Audit:     o.cfg.Auditor,
		AuditCap:  audit.Detect(driver.Engine(), o.cfg.AuditBin),
		Baselines: o.cfg.Baselines,
		Timeout:   o.cfg.Timeout,
		Seed:      seed(job, attempt),
		Log:       o.log.WithField("test", job.Title()),
	})

	failed := out.Status == suite.Failed || out.Status == suite.TimedOut
	dir := attemptDir(job, attempt)

	attachments := make([]results.Attachment, 0, len(out.Attachments)+2)
	for _, a := range out.Attachments {
		attachments = o.save(attachments, dir, a.Name, a.ContentType, a.Body)
	}

	if o.screenshotEnabled(failed) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
		shot, err := raw.Screenshot(sctx)
		cancel()

		if err != nil {
			o.log.WithError(err).WithField("test", job.Title()).Debug("Screenshot failed")
		} else {
			attachments = o.save(attachments, dir, "screenshot", "image/png", shot)
		}
	}

	if tr != nil {
		trace := tr.stop()
		if o.keepTrace(attempt, failed) && trace != nil {
			attachments = o.save(attachments, dir, "trace", "application/json", trace)
		}
	}

	v.record(out.Status, start, out, attachments)

	return out.Status
}

func (o *Orchestrator) save(into []results.Attachment, dir, name, contentType string, body []byte) []results.Attachment {
	path, err := o.store.Save(dir+"/"+name+extension(contentType), body)
	if err != nil {
		o.log.WithError(err).WithField("artifact", name).Warn("Failed to save artifact")
		return into
	}

	o.metrics.RecordArtifact(metrics.ArtifactMetric{
		Kind:      name,
		Path:      path,
		SizeBytes: int64(len(body)),
		Timestamp: time.Now(),
	})

	return append(into, results.Attachment{Name: name, ContentType: contentType, Path: path})
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "application/json":
		return ".json"
	case "text/html":
		return ".html"
	default:
		return ".txt"
	}
}

func (o *Orchestrator) traceEnabled(attempt int) bool {
	switch o.cfg.Capture.Trace {
	case config.CaptureOn, config.CaptureRetainOnFailure:
		return true
	case config.CaptureOnFirstRetry:
		return attempt == 1
	default:
		return false
	}
}

func (o *Orchestrator) keepTrace(attempt int, failed bool) bool {
	if o.cfg.Capture.Trace == config.CaptureRetainOnFailure {
		return failed
	}

	return o.traceEnabled(attempt)
}

func (o *Orchestrator) screenshotEnabled(failed bool) bool {
	switch o.cfg.Capture.Screenshot {
	case config.CaptureOn:
		return true
	case config.CaptureOnlyOnFailure:
		return failed
	default:
		return false
	}
}

// seed derives a stable faker seed per job and attempt.
func seed(job Job, attempt int) uint64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%s|%s|%d", job.Title(), job.Project.Name, attempt)

	return h.Sum64()
}
