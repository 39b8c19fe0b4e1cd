package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfile_Matrix(t *testing.T) {
	t.Parallel()

	profile := DefaultProfile()
	require.NoError(t, profile.Validate())

	projects, err := profile.ResolvedProjects(nil)
	require.NoError(t, err)
	require.Len(t, projects, 10)

	byName := make(map[string]ResolvedProject, len(projects))
	for _, p := range projects {
		byName[p.Name] = p
	}

	assert.Equal(t, browser.Chromium, byName["chromium"].Engine)
	assert.Equal(t, browser.Firefox, byName["firefox"].Engine)
	assert.Equal(t, browser.WebKit, byName["webkit"].Engine)
	assert.Equal(t, browser.WebKit, byName["Mobile Safari"].Engine)

	pixel := byName["Mobile Chrome"].Device
	assert.Equal(t, 393, pixel.Width)
	assert.InDelta(t, 2.75, pixel.DeviceScaleFactor, 0.001)
	assert.True(t, pixel.IsMobile)
	assert.True(t, pixel.HasTouch)

	tablet := byName["Tablet"]
	assert.Equal(t, browser.Chromium, tablet.Engine)
	assert.Equal(t, 768, tablet.Device.Width)
	assert.Equal(t, 1024, tablet.Device.Height)

	assert.InDelta(t, 2.0, byName["Retina Display"].Device.DeviceScaleFactor, 0.001)
}

func TestProfile_CIPolicy(t *testing.T) {
	t.Parallel()

	profile := DefaultProfile()

	assert.Equal(t, 2, profile.EffectiveRetries(true))
	assert.Equal(t, 0, profile.EffectiveRetries(false))
	assert.Equal(t, 1, profile.EffectiveWorkers(true))
	assert.Positive(t, profile.EffectiveWorkers(false))

	assert.False(t, profile.WebServer.ReuseExisting(true))
	assert.True(t, profile.WebServer.ReuseExisting(false))
}

func TestParseProfile_OverridesDefaults(t *testing.T) {
	t.Parallel()

	data := []byte(`
retries:
  ci: 3
  local: 1
reporters:
  - name: json
    output: out/results.json
use:
  screenshot: "off"
projects:
  - name: phone
    device: Pixel 5
    viewport:
      width: 360
      height: 640
  - name: wide
    viewport:
      width: 2560
      height: 1440
    device_scale_factor: 1.5
web_server:
  command: make serve
  url: http://localhost:8080
  timeout: 30s
`)

	profile, err := ParseProfile(data)
	require.NoError(t, err)

	assert.Equal(t, 3, profile.EffectiveRetries(true))
	assert.Equal(t, 1, profile.EffectiveRetries(false))
	assert.Equal(t, CaptureOff, profile.Use.Screenshot)
	assert.True(t, profile.HasReporter(ReporterJSON))
	assert.False(t, profile.HasReporter(ReporterHTML))
	assert.Equal(t, 30*time.Second, profile.WebServer.Timeout)

	projects, err := profile.ResolvedProjects([]string{"phone"})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, 360, projects[0].Device.Width)
	assert.True(t, projects[0].Device.IsMobile)
}

func TestParseProfile_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown field",
			yaml: "projectz: []\n",
		},
		{
			name: "unknown reporter",
			yaml: "reporters:\n  - name: junit\n",
		},
		{
			name: "unknown device",
			yaml: "projects:\n  - name: x\n    device: Nokia 3310\n",
		},
		{
			name: "duplicate project",
			yaml: "projects:\n  - name: a\n    device: Pixel 5\n  - name: a\n    device: Pixel 5\n",
		},
		{
			name: "no viewport",
			yaml: "projects:\n  - name: a\n",
		},
		{
			name: "bad trace mode",
			yaml: "use:\n  trace: sometimes\n",
		},
		{
			name: "empty projects",
			yaml: "projects: []\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoadProfile_MissingFileUsesDefault(t *testing.T) {
	t.Parallel()

	profile, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Len(t, profile.Projects, 10)
}

func TestLoadProfile_ReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sitecheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers:\n  ci: 2\n  local: 4\n"), 0o600))

	profile, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.EffectiveWorkers(true))
	assert.Equal(t, 4, profile.EffectiveWorkers(false))
}

func TestResolvedProjects_UnknownFilter(t *testing.T) {
	t.Parallel()

	_, err := DefaultProfile().ResolvedProjects([]string{"lynx"})
	require.ErrorIs(t, err, errUnknownProjectName)
}
