package cmd

import (
	"fmt"
	"os"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/spf13/cobra"
)

// flagKeys maps flag names to viper keys. Only flags a command declares are
// bound.
var flagKeys = map[string]string{
	"base-url":         config.KeyBaseURL,
	"results-dir":      config.KeyResultsDir,
	"output-dir":       config.KeyOutputDir,
	"profile":          config.KeyProfile,
	"headless":         config.KeyHeadless,
	"workers":          config.KeyWorkers,
	"retries":          config.KeyRetries,
	"timeout":          config.KeyTimeout,
	"playwright-dir":   config.KeyPlaywrightDir,
	"snapshot-dir":     config.KeySnapshotDir,
	"update-snapshots": config.KeyUpdateSnapshots,
}

// settings are the resolved environment, flags and execution profile.
type settings struct {
	cfg     *config.Config
	profile *config.Profile
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	v := config.NewViper()

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding --%s: %w", name, err)
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}

	s := &settings{cfg: cfg, profile: profile}

	// Profile values apply unless the environment or a flag says otherwise.
	if profile.Use.BaseURL != "" && !overridden(cmd, "base-url", config.EnvBaseURL) {
		cfg.BaseURL = profile.Use.BaseURL
	}

	if profile.OutputDir != "" && !overridden(cmd, "output-dir", config.EnvOutputDir) {
		cfg.OutputDir = profile.OutputDir
	}

	if profile.Timeout > 0 && !overridden(cmd, "timeout", config.EnvTimeout) {
		cfg.Timeout = profile.Timeout
	}

	return s, nil
}

func overridden(cmd *cobra.Command, flag, env string) bool {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return true
	}

	_, ok := os.LookupEnv(env)

	return ok
}

func (s *settings) workers() int {
	if s.cfg.Workers > 0 {
		return s.cfg.Workers
	}

	return s.profile.EffectiveWorkers(s.cfg.CI)
}

func (s *settings) retries() int {
	if s.cfg.Retries >= 0 {
		return s.cfg.Retries
	}

	return s.profile.EffectiveRetries(s.cfg.CI)
}

func (s *settings) playwright() browser.PlaywrightOptions {
	return browser.PlaywrightOptions{
		DriverDirectory: s.cfg.PlaywrightDir,
		Headless:        s.cfg.Headless,
	}
}
