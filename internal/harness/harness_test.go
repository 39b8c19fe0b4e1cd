package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/ethpandaops/sitecheck/internal/browser/browsertest"
	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/ethpandaops/sitecheck/internal/results"
	"github.com/ethpandaops/sitecheck/internal/snapshot"
	"github.com/ethpandaops/sitecheck/internal/suite"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

var (
	chromium = config.ResolvedProject{
		Name:   "chromium",
		Engine: browser.Chromium,
		Device: browser.DefaultDevice(1280, 720),
	}
	webkit = config.ResolvedProject{
		Name:   "webkit",
		Engine: browser.WebKit,
		Device: browser.DefaultDevice(1280, 720),
	}
)

func fakeFactory(d *browsertest.Driver) DriverFactory {
	return func(_ context.Context, engine browser.Engine) (browser.Driver, error) {
		if engine != browser.Chromium {
			return nil, fmt.Errorf("%w: %s", browser.ErrEngineUnavailable, engine)
		}

		return d, nil
	}
}

func testSuite(flakyCalls *atomic.Int32) *suite.Suite {
	return &suite.Suite{
		Name:  "sample",
		Title: "Sample Tests",
		Groups: []*suite.Group{
			{
				Title: "Basics",
				Cases: []*suite.Case{
					{Title: "passes", Run: func(t *suite.T) { t.Goto("/") }},
					{Title: "fails", Run: func(t *suite.T) { require.True(t, false, "nope") }},
					{Title: "skips", Run: func(t *suite.T) { t.Skip("not here") }},
					{
						Title:     "flaky",
						Retryable: true,
						Run: func(t *suite.T) {
							if flakyCalls.Add(1) == 1 {
								t.Errorf("first attempt fails")
							}
						},
					},
				},
			},
		},
	}
}

type harnessFixture struct {
	orch   *Orchestrator
	driver *browsertest.Driver
	dir    string
	out    *bytes.Buffer
}

func newFixture(t *testing.T, mutate func(*Config)) *harnessFixture {
	t.Helper()

	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	dir := t.TempDir()
	driver := &browsertest.Driver{}
	out := &bytes.Buffer{}

	cfg := Config{
		Logger:      quietLogger(),
		Writer:      out,
		Drivers:     fakeFactory(driver),
		ArtifactDir: filepath.Join(dir, "artifacts"),
		BaseURL:     "http://localhost:4173",
		Projects:    []config.ResolvedProject{chromium, webkit},
		Workers:     2,
		Retries:     2,
		Timeout:     5 * time.Second,
		Capture: Capture{
			Trace:      config.CaptureOnFirstRetry,
			Screenshot: config.CaptureOnlyOnFailure,
			Video:      config.CaptureOff,
		},
		Reporters: Reporters{
			JSONPath: filepath.Join(dir, "results.json"),
			HTMLPath: filepath.Join(dir, "test-report.html"),
			List:     true,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	orch := NewOrchestrator(cfg)
	require.NoError(t, orch.Start(context.Background()))
	t.Cleanup(func() { assert.NoError(t, orch.Stop()) })

	return &harnessFixture{orch: orch, driver: driver, dir: dir, out: out}
}

func TestPlan(t *testing.T) {
	var calls atomic.Int32
	s := testSuite(&calls)

	jobs := Plan([]*suite.Suite{s}, []config.ResolvedProject{chromium, webkit}, nil)
	require.Len(t, jobs, 8)
	assert.Equal(t, "passes", jobs[0].Case.Title)
	assert.Equal(t, "chromium", jobs[0].Project.Name)
	assert.Equal(t, "flaky", jobs[3].Case.Title)
	assert.Equal(t, "webkit", jobs[4].Project.Name)
	assert.Equal(t, "Sample Tests › Basics › passes", jobs[0].Title())

	filtered := Plan([]*suite.Suite{s}, []config.ResolvedProject{chromium}, regexp.MustCompile(`Basics › f`))
	require.Len(t, filtered, 2)
	assert.Equal(t, "fails", filtered[0].Case.Title)
	assert.Equal(t, "flaky", filtered[1].Case.Title)
}

func TestOrchestrator_Run(t *testing.T) {
	fx := newFixture(t, nil)

	var calls atomic.Int32
	jobs := Plan([]*suite.Suite{testSuite(&calls)}, []config.ResolvedProject{chromium, webkit}, nil)

	verdicts, err := fx.orch.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, verdicts, len(jobs))

	passes, fails, skips, flaky := verdicts[0], verdicts[1], verdicts[2], verdicts[3]

	assert.Equal(t, suite.Passed, passes.Status)
	assert.Len(t, passes.Attempts, 1)

	assert.Equal(t, suite.Failed, fails.Status)
	assert.Len(t, fails.Attempts, 1, "only retryable cases are retried")
	require.Len(t, fails.Attachments, 1)
	assert.Equal(t, "screenshot", fails.Attachments[0].Name)
	assert.FileExists(t, fails.Attachments[0].Path)

	assert.Equal(t, suite.Skipped, skips.Status)
	assert.Equal(t, "not here", skips.SkipReason)

	assert.Equal(t, suite.Passed, flaky.Status)
	require.Len(t, flaky.Attempts, 2)
	assert.True(t, flaky.Flaky())
	assert.Equal(t, string(suite.Failed), flaky.Attempts[0].Status)

	names := make([]string, 0)
	for _, a := range flaky.Attempts[1].Attachments {
		names = append(names, a.Name)
	}
	assert.Contains(t, names, "trace", "trace recorded on the first retry")

	for _, v := range verdicts[4:] {
		assert.Equal(t, suite.Skipped, v.Status)
		assert.Equal(t, "browser engine unavailable: webkit", v.SkipReason)
	}

	assert.True(t, AnyFailed(verdicts))

	f, err := results.Read(filepath.Join(fx.dir, "results.json"))
	require.NoError(t, err)
	assert.Equal(t, fx.orch.RunID(), f.Config.RunID)
	assert.Len(t, f.Config.Projects, 2)
	assert.Equal(t, 1, f.Stats.Expected)
	assert.Equal(t, 1, f.Stats.Unexpected)
	assert.Equal(t, 1, f.Stats.Flaky)
	assert.Equal(t, 5, f.Stats.Skipped)

	assert.FileExists(t, filepath.Join(fx.dir, "test-report.html"))

	out := fx.out.String()
	assert.Contains(t, out, "Running 8 tests using 2 workers")
	assert.Contains(t, out, "[chromium] › Sample Tests › Basics › fails")
	assert.Contains(t, out, "▸ Summary")

	for _, c := range fx.driver.Contexts {
		assert.True(t, c.Closed(), "every attempt context is closed")
	}
}

func TestOrchestrator_RetryBudgetExhausted(t *testing.T) {
	fx := newFixture(t, func(c *Config) {
		c.Reporters = Reporters{}
		c.Capture = Capture{}
	})

	s := &suite.Suite{Name: "s", Title: "S", Groups: []*suite.Group{{
		Title: "G",
		Cases: []*suite.Case{{Title: "always", Retryable: true, Run: func(t *suite.T) { t.Errorf("broken") }}},
	}}}

	verdicts, err := fx.orch.Run(context.Background(), Plan([]*suite.Suite{s}, []config.ResolvedProject{chromium}, nil))
	require.NoError(t, err)

	v := verdicts[0]
	assert.Equal(t, suite.Failed, v.Status)
	assert.Len(t, v.Attempts, 3)
	assert.Equal(t, []string{"broken"}, v.Errors)
	assert.False(t, v.Flaky())
	assert.Empty(t, v.Attachments)
}

func TestOrchestrator_GroupDevice(t *testing.T) {
	fx := newFixture(t, func(c *Config) { c.Reporters = Reporters{} })

	phone := browser.Descriptors["Pixel 5"].Profile
	s := &suite.Suite{Name: "s", Title: "S", Groups: []*suite.Group{
		{Title: "phone", Use: &phone, Cases: []*suite.Case{{Title: "a", Run: func(*suite.T) {}}}},
		{Title: "project", Cases: []*suite.Case{{Title: "b", Run: func(*suite.T) {}}}},
	}}

	fx.orch.cfg.Workers = 1
	_, err := fx.orch.Run(context.Background(), Plan([]*suite.Suite{s}, []config.ResolvedProject{chromium}, nil))
	require.NoError(t, err)

	require.Len(t, fx.driver.Devices, 2)
	assert.Equal(t, "Pixel 5", fx.driver.Devices[0].Name)
	assert.Equal(t, chromium.Device, fx.driver.Devices[1])
}

func TestOrchestrator_Baselines(t *testing.T) {
	baselines := filepath.Join(t.TempDir(), "snapshots")
	fx := newFixture(t, func(c *Config) {
		c.Reporters = Reporters{}
		c.Baselines = snapshot.NewStore(baselines, false)
	})

	s := &suite.Suite{Name: "s", Title: "S", Groups: []*suite.Group{
		{Title: "g", Cases: []*suite.Case{{Title: "shot", Run: func(t *suite.T) {
			shot, err := t.Page().Screenshot(t.Context())
			t.Must(err, "capturing")
			t.MatchScreenshot("home.png", shot, 0)
		}}}},
	}}

	verdicts, err := fx.orch.Run(context.Background(), Plan([]*suite.Suite{s}, []config.ResolvedProject{chromium}, nil))
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.Equal(t, suite.Passed, verdicts[0].Status, verdicts[0].Errors)

	_, err = os.Stat(filepath.Join(baselines, "chromium", "home.png"))
	require.NoError(t, err)
}

func TestOrchestrator_DriverStartFailure(t *testing.T) {
	fx := newFixture(t, func(c *Config) {
		c.Reporters = Reporters{}
		c.Drivers = func(context.Context, browser.Engine) (browser.Driver, error) {
			return nil, errors.New("chrome not found")
		}
	})

	var calls atomic.Int32
	verdicts, err := fx.orch.Run(context.Background(), Plan([]*suite.Suite{testSuite(&calls)}, []config.ResolvedProject{chromium}, nil))
	require.NoError(t, err)

	for _, v := range verdicts {
		assert.Equal(t, suite.Failed, v.Status)
		require.Len(t, v.Errors, 1)
		assert.True(t, suite.IsHarnessError(v.Errors[0]))
		assert.Contains(t, v.Errors[0], "chrome not found")
	}
}

func TestRoute(t *testing.T) {
	chrome := &browsertest.Driver{}
	var routed []browser.Engine

	factory := Route(map[browser.Engine]DriverFactory{
		browser.Chromium: func(_ context.Context, engine browser.Engine) (browser.Driver, error) {
			routed = append(routed, engine)
			return chrome, nil
		},
		browser.WebKit: func(_ context.Context, engine browser.Engine) (browser.Driver, error) {
			routed = append(routed, engine)
			return nil, fmt.Errorf("%w: no build", browser.ErrEngineUnavailable)
		},
	})

	d, err := factory(context.Background(), browser.Chromium)
	require.NoError(t, err)
	assert.Same(t, chrome, d)

	_, err = factory(context.Background(), browser.WebKit)
	assert.ErrorIs(t, err, browser.ErrEngineUnavailable)

	_, err = factory(context.Background(), browser.Firefox)
	assert.ErrorIs(t, err, browser.ErrEngineUnavailable)

	assert.Equal(t, []browser.Engine{browser.Chromium, browser.WebKit}, routed)
}

func TestOrchestrator_Interrupted(t *testing.T) {
	fx := newFixture(t, func(c *Config) { c.Reporters = Reporters{} })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	verdicts, err := fx.orch.Run(ctx, Plan([]*suite.Suite{testSuite(&calls)}, []config.ResolvedProject{chromium}, nil))
	require.NoError(t, err)

	for _, v := range verdicts {
		assert.Equal(t, suite.Interrupted, v.Status)
	}
	assert.Zero(t, calls.Load())
}

func TestArtifactStore(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir(), "run-1")
	require.NoError(t, err)

	path, err := store.Save("a/b/shot.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "a", "b", "shot.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	for _, bad := range []string{"", "../escape.png", "a/../../escape.png", "."} {
		_, err := store.Save(bad, nil)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestAttemptDir(t *testing.T) {
	job := Job{
		Suite:   &suite.Suite{Name: "cross-browser"},
		Group:   &suite.Group{Title: "Page Load Tests"},
		Case:    &suite.Case{Title: "Home page (/) loads"},
		Project: config.ResolvedProject{Name: "Mobile Safari"},
	}

	assert.Equal(t, filepath.Join("cross-browser-page-load-tests-home-page-loads-mobile-safari", "retry2"), attemptDir(job, 2))
}

func TestSeedIsStable(t *testing.T) {
	job := Job{
		Suite:   &suite.Suite{Title: "S"},
		Group:   &suite.Group{Title: "G"},
		Case:    &suite.Case{Title: "C"},
		Project: chromium,
	}

	assert.Equal(t, seed(job, 0), seed(job, 0))
	assert.NotEqual(t, seed(job, 0), seed(job, 1))
}
