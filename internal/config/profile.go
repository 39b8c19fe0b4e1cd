package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	errNoProjects         = errors.New("profile declares no projects")
	errDuplicateProject   = errors.New("duplicate project name")
	errUnknownDevice      = errors.New("unknown device")
	errProjectNoViewport  = errors.New("project needs a device or a viewport")
	errDuplicateReporter  = errors.New("duplicate reporter")
	errUnknownProjectName = errors.New("unknown project")
)

// Reporter names.
const (
	ReporterHTML = "html"
	ReporterJSON = "json"
	ReporterList = "list"
)

// Artifact capture modes.
const (
	CaptureOff             = "off"
	CaptureOn              = "on"
	CaptureOnFirstRetry    = "on-first-retry"
	CaptureOnlyOnFailure   = "only-on-failure"
	CaptureRetainOnFailure = "retain-on-failure"
)

// Profile is the declarative execution profile.
type Profile struct {
	FullyParallel bool          `yaml:"fully_parallel"`
	Retries       CIPolicy      `yaml:"retries"`
	Workers       CIPolicy      `yaml:"workers"`
	OutputDir     string        `yaml:"output_dir"`
	Reporters     []Reporter    `yaml:"reporters" validate:"dive"`
	Use           Use           `yaml:"use"`
	Projects      []Project     `yaml:"projects" validate:"dive"`
	WebServer     *WebServer    `yaml:"web_server" validate:"omitempty"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
}

// CIPolicy is a value that differs between CI and local runs.
type CIPolicy struct {
	CI    int `yaml:"ci" validate:"gte=0"`
	Local int `yaml:"local" validate:"gte=0"`
}

// Reporter selects an output format and where it is written.
type Reporter struct {
	Name   string `yaml:"name" validate:"required,oneof=html json list"`
	Output string `yaml:"output"`
}

// Use holds per-test defaults.
type Use struct {
	BaseURL    string `yaml:"base_url" validate:"omitempty,url"`
	Trace      string `yaml:"trace" validate:"omitempty,oneof=off on on-first-retry retain-on-failure"`
	Screenshot string `yaml:"screenshot" validate:"omitempty,oneof=off on only-on-failure"`
	Video      string `yaml:"video" validate:"omitempty,oneof=off on on-first-retry retain-on-failure"`
}

// Viewport is a width/height pair in CSS pixels.
type Viewport struct {
	Width  int `yaml:"width" validate:"gt=0"`
	Height int `yaml:"height" validate:"gt=0"`
}

// Project is a named engine plus device configuration.
type Project struct {
	Name              string    `yaml:"name" validate:"required"`
	Engine            string    `yaml:"engine" validate:"omitempty,oneof=chromium firefox webkit"`
	Device            string    `yaml:"device"`
	Viewport          *Viewport `yaml:"viewport" validate:"omitempty"`
	DeviceScaleFactor float64   `yaml:"device_scale_factor" validate:"gte=0"`
	IsMobile          *bool     `yaml:"is_mobile"`
	HasTouch          *bool     `yaml:"has_touch"`
}

// WebServer describes the command that serves the site under test.
type WebServer struct {
	Command             string        `yaml:"command" validate:"required"`
	URL                 string        `yaml:"url" validate:"required,url"`
	ReuseExistingServer bool          `yaml:"reuse_existing_server"`
	Timeout             time.Duration `yaml:"timeout" validate:"gte=0"`
}

// ResolvedProject is a project with its device expanded.
type ResolvedProject struct {
	Name   string
	Engine browser.Engine
	Device browser.DeviceProfile
}

// DefaultProfile mirrors the site's project matrix: three desktop engines,
// two phones, a tablet, three custom viewports and a high-DPI display.
func DefaultProfile() *Profile {
	return &Profile{
		FullyParallel: true,
		Retries:       CIPolicy{CI: 2, Local: 0},
		Workers:       CIPolicy{CI: 1, Local: 0},
		OutputDir:     DefaultOutputDir,
		Reporters: []Reporter{
			{Name: ReporterHTML, Output: DefaultResultsDir + "/" + DashboardFile},
			{Name: ReporterJSON, Output: DefaultResultsDir + "/" + ResultsFile},
			{Name: ReporterList},
		},
		Use: Use{
			Trace:      CaptureOnFirstRetry,
			Screenshot: CaptureOnlyOnFailure,
			Video:      CaptureRetainOnFailure,
		},
		Projects: []Project{
			{Name: "chromium", Device: "Desktop Chrome"},
			{Name: "firefox", Device: "Desktop Firefox"},
			{Name: "webkit", Device: "Desktop Safari"},
			{Name: "Mobile Chrome", Device: "Pixel 5"},
			{Name: "Mobile Safari", Device: "iPhone 12"},
			{Name: "iPad", Device: "iPad (gen 7)"},
			{Name: "Tablet", Viewport: &Viewport{Width: 768, Height: 1024}},
			{Name: "Small Desktop", Viewport: &Viewport{Width: 1366, Height: 768}},
			{Name: "Large Desktop", Viewport: &Viewport{Width: 1920, Height: 1080}},
			{Name: "Retina Display", Device: "Desktop Chrome HiDPI"},
		},
		WebServer: &WebServer{
			Command:             DefaultWebServerCommand,
			URL:                 DefaultBaseURL,
			ReuseExistingServer: true,
			Timeout:             DefaultWebServerTimeout,
		},
		Timeout: DefaultTestTimeout,
	}
}

// LoadProfile reads a profile from path. A missing file yields the default
// profile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultProfile(), nil
		}
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}

	profile, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", path, err)
	}

	return profile, nil
}

// ParseProfile decodes and validates a YAML profile. Fields left out keep
// their default values.
func ParseProfile(data []byte) (*Profile, error) {
	profile := DefaultProfile()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(profile); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}

	return profile, nil
}

// Validate checks struct constraints and cross-field rules.
func (p *Profile) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("validating profile: %w", err)
	}

	if len(p.Projects) == 0 {
		return errNoProjects
	}

	names := make(map[string]bool, len(p.Projects))
	for _, project := range p.Projects {
		if names[project.Name] {
			return fmt.Errorf("%w: %s", errDuplicateProject, project.Name)
		}
		names[project.Name] = true

		if _, err := project.Resolve(); err != nil {
			return err
		}
	}

	reporters := make(map[string]bool, len(p.Reporters))
	for _, r := range p.Reporters {
		if reporters[r.Name] {
			return fmt.Errorf("%w: %s", errDuplicateReporter, r.Name)
		}
		reporters[r.Name] = true
	}

	return nil
}

// Resolve expands a project into its engine and device profile. A viewport
// or explicit flags override what the named device declares.
func (p Project) Resolve() (ResolvedProject, error) {
	resolved := ResolvedProject{
		Name:   p.Name,
		Engine: browser.Chromium,
	}

	switch {
	case p.Device != "":
		desc, ok := browser.LookupDevice(p.Device)
		if !ok {
			return resolved, fmt.Errorf("%w %q in project %s", errUnknownDevice, p.Device, p.Name)
		}
		resolved.Device = desc.Profile
		resolved.Engine = desc.Engine
	case p.Viewport != nil:
		resolved.Device = browser.DefaultDevice(p.Viewport.Width, p.Viewport.Height)
	default:
		return resolved, fmt.Errorf("%w: %s", errProjectNoViewport, p.Name)
	}

	if p.Viewport != nil {
		resolved.Device.Width = p.Viewport.Width
		resolved.Device.Height = p.Viewport.Height
	}

	if p.DeviceScaleFactor > 0 {
		resolved.Device.DeviceScaleFactor = p.DeviceScaleFactor
	}

	if p.IsMobile != nil {
		resolved.Device.IsMobile = *p.IsMobile
	}

	if p.HasTouch != nil {
		resolved.Device.HasTouch = *p.HasTouch
	}

	if p.Engine != "" {
		resolved.Engine = browser.Engine(p.Engine)
	}

	return resolved, nil
}

// ResolvedProjects expands the projects, keeping only the named ones when
// filter is non-empty.
func (p *Profile) ResolvedProjects(filter []string) ([]ResolvedProject, error) {
	wanted := make(map[string]bool, len(filter))
	for _, name := range filter {
		wanted[name] = true
	}

	out := make([]ResolvedProject, 0, len(p.Projects))
	for _, project := range p.Projects {
		if len(wanted) > 0 && !wanted[project.Name] {
			continue
		}

		resolved, err := project.Resolve()
		if err != nil {
			return nil, err
		}

		delete(wanted, project.Name)
		out = append(out, resolved)
	}

	for name := range wanted {
		return nil, fmt.Errorf("%w: %s", errUnknownProjectName, name)
	}

	return out, nil
}

// EffectiveRetries is the retry budget for flaky tests.
func (p *Profile) EffectiveRetries(ci bool) int {
	if ci {
		return p.Retries.CI
	}

	return p.Retries.Local
}

// EffectiveWorkers is the worker pool size. Zero means one per CPU.
func (p *Profile) EffectiveWorkers(ci bool) int {
	n := p.Workers.Local
	if ci {
		n = p.Workers.CI
	}

	if n <= 0 {
		n = runtime.NumCPU()
	}

	return n
}

// HasReporter reports whether the named reporter is enabled.
func (p *Profile) HasReporter(name string) bool {
	_, ok := p.Reporter(name)

	return ok
}

// Reporter returns the named reporter.
func (p *Profile) Reporter(name string) (Reporter, bool) {
	for _, r := range p.Reporters {
		if r.Name == name {
			return r, true
		}
	}

	return Reporter{}, false
}

// ReuseExisting applies the CI rule: an already running server is
// only reused outside CI.
func (w *WebServer) ReuseExisting(ci bool) bool {
	return w.ReuseExistingServer && !ci
}
