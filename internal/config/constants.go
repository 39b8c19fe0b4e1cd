package config

import "time"

const (
	// DefaultBaseURL is where the preview build of the site is served.
	DefaultBaseURL = "http://localhost:4173"
	// DefaultResultsDir holds results.json and the HTML reports.
	DefaultResultsDir = "test-results"
	// DefaultOutputDir holds per-test screenshots and traces.
	DefaultOutputDir = "test-results/artifacts"
	// DefaultSnapshotDir holds the visual baselines.
	DefaultSnapshotDir = "e2e/snapshots"
	// DefaultProfileFile is the execution profile looked up in the working directory.
	DefaultProfileFile = "sitecheck.yaml"
	// ResultsFile is the JSON results file name.
	ResultsFile = "results.json"
	// DashboardFile is the results dashboard file name.
	DashboardFile = "test-report.html"
	// CompatibilityFile is the compatibility matrix file name.
	CompatibilityFile = "browser-compatibility-report.html"
	// DefaultTestTimeout bounds a single test attempt.
	DefaultTestTimeout = 30 * time.Second
	// DefaultWebServerTimeout bounds waiting for the web server to answer.
	DefaultWebServerTimeout = 120 * time.Second
	// DefaultWebServerCommand serves the built site.
	DefaultWebServerCommand = "npm run preview"
	// ChromeContainerImage is the headless Chrome image used by --chrome-container.
	ChromeContainerImage = "chromedp/headless-shell:latest"
	// ChromeContainerName is the container name used by --chrome-container.
	ChromeContainerName = "sitecheck-chrome"
	// ChromeContainerPort is the host port the container's DevTools endpoint is published on.
	ChromeContainerPort = 9222
)

// Environment variables read by the harness.
const (
	EnvBaseURL         = "BASE_URL"
	EnvCI              = "CI"
	EnvLogLevel        = "LOG_LEVEL"
	EnvResultsDir      = "SITECHECK_RESULTS_DIR"
	EnvOutputDir       = "SITECHECK_OUTPUT_DIR"
	EnvProfile         = "SITECHECK_PROFILE"
	EnvChromeBin       = "CHROME_BIN"
	EnvChromeRemoteURL = "CHROME_REMOTE_URL"
	EnvHeadless        = "SITECHECK_HEADLESS"
	EnvPlaywrightDir   = "SITECHECK_PLAYWRIGHT_DIR"
	EnvSnapshotDir     = "SITECHECK_SNAPSHOT_DIR"
	EnvUpdateSnapshots = "SITECHECK_UPDATE_SNAPSHOTS"
	EnvWorkers         = "SITECHECK_WORKERS"
	EnvRetries         = "SITECHECK_RETRIES"
	EnvTimeout         = "SITECHECK_TIMEOUT"
)
