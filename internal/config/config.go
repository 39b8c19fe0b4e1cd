// Package config handles configuration loading and management
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys used in the viper registry. Flags bind to the same keys.
const (
	KeyBaseURL         = "base_url"
	KeyCI              = "ci"
	KeyResultsDir      = "results_dir"
	KeyOutputDir       = "output_dir"
	KeyProfile         = "profile"
	KeyChromeBin       = "chrome_bin"
	KeyChromeRemoteURL = "chrome_remote_url"
	KeyHeadless        = "headless"
	KeyPlaywrightDir   = "playwright_dir"
	KeySnapshotDir     = "snapshot_dir"
	KeyUpdateSnapshots = "update_snapshots"
	KeyWorkers         = "workers"
	KeyRetries         = "retries"
	KeyTimeout         = "timeout"
)

// Config holds the resolved environment and flag settings.
type Config struct {
	BaseURL         string
	CI              bool
	ResultsDir      string
	OutputDir       string
	ProfilePath     string
	ChromeBin       string
	ChromeRemoteURL string
	Headless        bool
	// PlaywrightDir holds the Playwright driver and its Firefox and WebKit
	// builds. Empty uses Playwright's cache directory.
	PlaywrightDir string
	// SnapshotDir holds the visual baselines, one directory per project.
	SnapshotDir string
	// UpdateSnapshots rewrites baselines instead of comparing against them.
	UpdateSnapshots bool
	// Workers of 0 defers to the execution profile.
	Workers int
	// Retries below 0 defers to the execution profile.
	Retries int
	Timeout time.Duration
}

// NewViper returns a registry with defaults and environment bindings set.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyBaseURL, DefaultBaseURL)
	v.SetDefault(KeyCI, false)
	v.SetDefault(KeyResultsDir, DefaultResultsDir)
	v.SetDefault(KeyOutputDir, DefaultOutputDir)
	v.SetDefault(KeyProfile, DefaultProfileFile)
	v.SetDefault(KeyChromeBin, "")
	v.SetDefault(KeyChromeRemoteURL, "")
	v.SetDefault(KeyHeadless, true)
	v.SetDefault(KeyPlaywrightDir, "")
	v.SetDefault(KeySnapshotDir, DefaultSnapshotDir)
	v.SetDefault(KeyUpdateSnapshots, false)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyRetries, -1)
	v.SetDefault(KeyTimeout, DefaultTestTimeout)

	bindings := map[string]string{
		KeyBaseURL:         EnvBaseURL,
		KeyCI:              EnvCI,
		KeyResultsDir:      EnvResultsDir,
		KeyOutputDir:       EnvOutputDir,
		KeyProfile:         EnvProfile,
		KeyChromeBin:       EnvChromeBin,
		KeyChromeRemoteURL: EnvChromeRemoteURL,
		KeyHeadless:        EnvHeadless,
		KeyPlaywrightDir:   EnvPlaywrightDir,
		KeySnapshotDir:     EnvSnapshotDir,
		KeyUpdateSnapshots: EnvUpdateSnapshots,
		KeyWorkers:         EnvWorkers,
		KeyRetries:         EnvRetries,
		KeyTimeout:         EnvTimeout,
	}

	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	return v
}

// Load resolves the configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		BaseURL:         strings.TrimRight(v.GetString(KeyBaseURL), "/"),
		CI:              isTruthy(v.GetString(KeyCI)),
		ResultsDir:      v.GetString(KeyResultsDir),
		OutputDir:       v.GetString(KeyOutputDir),
		ProfilePath:     v.GetString(KeyProfile),
		ChromeBin:       v.GetString(KeyChromeBin),
		ChromeRemoteURL: v.GetString(KeyChromeRemoteURL),
		Headless:        v.GetBool(KeyHeadless),
		PlaywrightDir:   v.GetString(KeyPlaywrightDir),
		SnapshotDir:     v.GetString(KeySnapshotDir),
		UpdateSnapshots: isTruthy(v.GetString(KeyUpdateSnapshots)),
		Workers:         v.GetInt(KeyWorkers),
		Retries:         v.GetInt(KeyRetries),
		Timeout:         v.GetDuration(KeyTimeout),
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("invalid %s: empty", EnvBaseURL)
	}

	if cfg.Workers < 0 {
		return nil, fmt.Errorf("invalid %s: %d", EnvWorkers, cfg.Workers)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("invalid %s: %s", EnvTimeout, cfg.Timeout)
	}

	return cfg, nil
}

// ResultsPath returns the path of results.json.
func (c *Config) ResultsPath() string {
	return filepath.Join(c.ResultsDir, ResultsFile)
}

// DashboardPath returns the path of the results dashboard.
func (c *Config) DashboardPath() string {
	return filepath.Join(c.ResultsDir, DashboardFile)
}

// CompatibilityPath returns the path of the compatibility matrix.
func (c *Config) CompatibilityPath() string {
	return filepath.Join(c.ResultsDir, CompatibilityFile)
}

// isTruthy mirrors the usual CI convention where any non-empty value other
// than an explicit false counts.
func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func (c *Config) String() string {
	workersDisplay := "(from profile)"
	if c.Workers > 0 {
		workersDisplay = fmt.Sprintf("%d", c.Workers)
	}

	retriesDisplay := "(from profile)"
	if c.Retries >= 0 {
		retriesDisplay = fmt.Sprintf("%d", c.Retries)
	}

	chromeDisplay := c.ChromeBin
	if chromeDisplay == "" {
		chromeDisplay = "(system)"
	}

	remoteDisplay := c.ChromeRemoteURL
	if remoteDisplay == "" {
		remoteDisplay = "(not set)"
	}

	playwrightDisplay := c.PlaywrightDir
	if playwrightDisplay == "" {
		playwrightDisplay = "(default cache)"
	}

	return fmt.Sprintf(`Current Configuration:
======================
Base URL:           %s
CI:                 %t
Results Dir:        %s
Artifacts Dir:      %s
Profile:            %s
Chrome Binary:      %s
Chrome Remote URL:  %s
Headless:           %t
Playwright Dir:     %s
Snapshot Dir:       %s
Update Snapshots:   %t
Workers:            %s
Retries:            %s
Test Timeout:       %s`,
		c.BaseURL,
		c.CI,
		c.ResultsDir,
		c.OutputDir,
		c.ProfilePath,
		chromeDisplay,
		remoteDisplay,
		c.Headless,
		playwrightDisplay,
		c.SnapshotDir,
		c.UpdateSnapshots,
		workersDisplay,
		retriesDisplay,
		c.Timeout,
	)
}
