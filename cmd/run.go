package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/ethpandaops/sitecheck/internal/audit"
	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/ethpandaops/sitecheck/internal/harness"
	"github.com/ethpandaops/sitecheck/internal/infra"
	"github.com/ethpandaops/sitecheck/internal/snapshot"
	"github.com/ethpandaops/sitecheck/internal/suite"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	errNoTests     = errors.New("no tests matched")
	errTestsFailed = errors.New("some tests failed")
)

var (
	runProjects        []string
	runGrep            string
	runVerbose         bool
	runChromeContainer bool
	runNoWebServer     bool
	runAuditBin        string
)

var runCmd = &cobra.Command{
	Use:   "run [suite...]",
	Short: "Run test suites across the project matrix",
	Long: `Run one or more suites against the site under test. Without arguments every
suite runs. Each test runs once per project of the execution profile.

Suites: ` + strings.Join(suite.Names(), ", ") + `

Example:
  sitecheck run
  sitecheck run "Performance Tests" --project chromium
  sitecheck run --grep "Touch" --project "Mobile Chrome" --project "Mobile Safari"
  CI=1 sitecheck run --chrome-container`,
	RunE: runSuites,
}

// setupCleanupHandler cancels the run on the first Ctrl+C and stops the
// orchestrator on the second.
func setupCleanupHandler(cancel context.CancelFunc, orchestrator *harness.Orchestrator) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Warn("\nReceived interrupt signal, finishing in-flight tests...")
		cancel()

		<-sigChan
		logrus.Warn("Received second interrupt signal, cleaning up...")
		_ = orchestrator.Stop()
		os.Exit(130) // Exit code 130 = 128 + SIGINT(2)
	}()
}

func runSuites(cmd *cobra.Command, args []string) error {
	log := newLogger(runVerbose)

	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	suites, err := suite.Select(args)
	if err != nil {
		return err
	}

	projects, err := s.profile.ResolvedProjects(runProjects)
	if err != nil {
		return err
	}

	var grep *regexp.Regexp
	if runGrep != "" {
		if grep, err = regexp.Compile(runGrep); err != nil {
			return fmt.Errorf("invalid --grep: %w", err)
		}
	}

	jobs := harness.Plan(suites, projects, grep)
	if len(jobs) == 0 {
		return errNoTests
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chrome := browser.ChromeOptions{
		ExecPath:  s.cfg.ChromeBin,
		RemoteURL: s.cfg.ChromeRemoteURL,
		Headless:  s.cfg.Headless,
	}

	if runChromeContainer {
		container := infra.NewChromeContainer(log)
		if err := container.Start(ctx); err != nil {
			return fmt.Errorf("starting chrome container: %w", err)
		}
		defer func() {
			if err := container.Stop(); err != nil {
				log.WithError(err).Warn("Failed to stop chrome container")
			}
		}()

		chrome.RemoteURL = container.RemoteURL()
	}

	hcfg := harness.Config{
		Logger:      log,
		Drivers:     harness.EngineFactory(log, chrome, s.playwright()),
		ArtifactDir: s.cfg.OutputDir,
		BaseURL:     s.cfg.BaseURL,
		Projects:    projects,
		Workers:     s.workers(),
		Retries:     s.retries(),
		Timeout:     s.cfg.Timeout,
		Capture: harness.Capture{
			Trace:      s.profile.Use.Trace,
			Screenshot: s.profile.Use.Screenshot,
			Video:      s.profile.Use.Video,
		},
		AuditBin:  runAuditBin,
		Baselines: snapshot.NewStore(s.cfg.SnapshotDir, s.cfg.UpdateSnapshots),
		Reporters: harness.ReportersFromProfile(s.profile, s.cfg),
	}

	if audit.Detect(browser.Chromium, runAuditBin).Available() {
		hcfg.Auditor = audit.New(log, runAuditBin, s.cfg.ChromeBin)
	}

	if ws := s.profile.WebServer; ws != nil && !runNoWebServer {
		hcfg.WebServer = harness.NewWebServer(log, *ws, s.cfg.CI)
	}

	orchestrator := harness.NewOrchestrator(hcfg)

	setupCleanupHandler(cancel, orchestrator)

	if err := orchestrator.Start(ctx); err != nil {
		_ = orchestrator.Stop()
		return fmt.Errorf("starting orchestrator: %w", err)
	}
	defer func() {
		if err := orchestrator.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop orchestrator cleanly")
		}
	}()

	log.WithFields(logrus.Fields{
		"suites":   len(suites),
		"projects": len(projects),
		"base_url": s.cfg.BaseURL,
		"ci":       s.cfg.CI,
	}).Debug("Run planned")

	verdicts, err := orchestrator.Run(ctx, jobs)
	if err != nil {
		return fmt.Errorf("running tests: %w", err)
	}

	if harness.AnyFailed(verdicts) {
		return errTestsFailed
	}

	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayVar(&runProjects, "project", nil, "Only run the named project (repeatable)")
	runCmd.Flags().StringVar(&runGrep, "grep", "", `Only run tests whose "suite › group › title" matches this regexp`)
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Verbose output")
	runCmd.Flags().BoolVar(&runChromeContainer, "chrome-container", false, "Run Chromium in a "+config.ChromeContainerImage+" container")
	runCmd.Flags().BoolVar(&runNoWebServer, "no-web-server", false, "Do not start the profile's web server")
	runCmd.Flags().StringVar(&runAuditBin, "lighthouse", audit.DefaultBinary, "Lighthouse CLI used by audit tests")

	runCmd.Flags().String("base-url", config.DefaultBaseURL, "Base URL of the site under test")
	runCmd.Flags().Int("workers", 0, "Worker count (0 uses the profile)")
	runCmd.Flags().Int("retries", -1, "Retry budget for flaky tests (-1 uses the profile)")
	runCmd.Flags().Duration("timeout", config.DefaultTestTimeout, "Timeout of a single test attempt")
	runCmd.Flags().String("profile", config.DefaultProfileFile, "Execution profile")
	runCmd.Flags().Bool("headless", true, "Run the browser headless")
	runCmd.Flags().String("output-dir", config.DefaultOutputDir, "Artifact directory")
	runCmd.Flags().String("results-dir", config.DefaultResultsDir, "Results and report directory")
	runCmd.Flags().String("playwright-dir", "", "Playwright driver and browser directory (empty uses its cache)")
	runCmd.Flags().String("snapshot-dir", config.DefaultSnapshotDir, "Directory of the visual baselines")
	runCmd.Flags().Bool("update-snapshots", false, "Rewrite visual baselines instead of comparing")
}
