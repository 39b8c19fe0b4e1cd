package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvCI, "")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.False(t, cfg.CI)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, -1, cfg.Retries)
	assert.Equal(t, DefaultTestTimeout, cfg.Timeout)
	assert.Equal(t, "test-results/results.json", cfg.ResultsPath())
	assert.Equal(t, "test-results/test-report.html", cfg.DashboardPath())
	assert.Equal(t, "test-results/browser-compatibility-report.html", cfg.CompatibilityPath())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv(EnvBaseURL, "https://staging.example.com/")
	t.Setenv(EnvCI, "true")
	t.Setenv(EnvTimeout, "45s")
	t.Setenv(EnvWorkers, "3")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "https://staging.example.com", cfg.BaseURL)
	assert.True(t, cfg.CI)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	v := NewViper()
	v.Set(KeyWorkers, -2)

	_, err := Load(v)
	require.Error(t, err)

	v = NewViper()
	v.Set(KeyTimeout, "0s")

	_, err = Load(v)
	require.Error(t, err)
}

func TestIsTruthy(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"":      false,
		"0":     false,
		"false": false,
		"FALSE": false,
		"no":    false,
		"1":     true,
		"true":  true,
		"yes":   true,
	}

	for in, want := range tests {
		assert.Equal(t, want, isTruthy(in), "input %q", in)
	}
}

func TestConfig_String(t *testing.T) {
	t.Parallel()

	cfg := &Config{BaseURL: DefaultBaseURL, Workers: 2, Retries: -1, Timeout: time.Second}
	out := cfg.String()

	assert.Contains(t, out, "Base URL:           http://localhost:4173")
	assert.Contains(t, out, "Workers:            2")
	assert.Contains(t, out, "Retries:            (from profile)")
	assert.Contains(t, out, "Playwright Dir:     (default cache)")

	cfg.PlaywrightDir = "/opt/ms-playwright"
	assert.Contains(t, cfg.String(), "Playwright Dir:     /opt/ms-playwright")
}

func TestLoad_PlaywrightDir(t *testing.T) {
	t.Setenv(EnvPlaywrightDir, "/opt/ms-playwright")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "/opt/ms-playwright", cfg.PlaywrightDir)
}

func TestLoad_Snapshots(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, DefaultSnapshotDir, cfg.SnapshotDir)
	assert.False(t, cfg.UpdateSnapshots)
	assert.Contains(t, cfg.String(), "Snapshot Dir:       "+DefaultSnapshotDir)

	t.Setenv(EnvSnapshotDir, "/tmp/baselines")
	t.Setenv(EnvUpdateSnapshots, "1")

	cfg, err = Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/baselines", cfg.SnapshotDir)
	assert.True(t, cfg.UpdateSnapshots)
	assert.Contains(t, cfg.String(), "Update Snapshots:   true")
}
