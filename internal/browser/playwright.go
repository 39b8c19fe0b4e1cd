package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

// PlaywrightOptions configures the Playwright driver used for Firefox and
// WebKit.
type PlaywrightOptions struct {
	// DriverDirectory holds the Playwright driver and browser builds. Empty
	// uses Playwright's cache directory.
	DriverDirectory string
	Headless        bool
}

func (o PlaywrightOptions) runOptions(engines ...Engine) *playwright.RunOptions {
	browsers := make([]string, 0, len(engines))
	for _, e := range engines {
		browsers = append(browsers, string(e))
	}

	return &playwright.RunOptions{
		DriverDirectory: o.DriverDirectory,
		Browsers:        browsers,
	}
}

// InstallPlaywright downloads the Playwright driver and the builds of the
// given engines.
func InstallPlaywright(opts PlaywrightOptions, engines ...Engine) error {
	if err := playwright.Install(opts.runOptions(engines...)); err != nil {
		return fmt.Errorf("installing playwright: %w", err)
	}

	return nil
}

type playwrightDriver struct {
	log     logrus.FieldLogger
	engine  Engine
	browser playwright.Browser
	stop    func() error
}

// NewPlaywrightDriver starts the Playwright driver and launches engine. A
// missing driver or browser build is reported as ErrEngineUnavailable.
func NewPlaywrightDriver(log logrus.FieldLogger, engine Engine, opts PlaywrightOptions) (Driver, error) {
	log = log.WithFields(logrus.Fields{"component": "playwright_driver", "engine": engine})

	pw, err := playwright.Run(opts.runOptions(engine))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, engine, err)
	}

	var launcher playwright.BrowserType
	switch engine {
	case Firefox:
		launcher = pw.Firefox
	case WebKit:
		launcher = pw.WebKit
	case Chromium:
		launcher = pw.Chromium
	default:
		_ = pw.Stop()
		return nil, fmt.Errorf("%w: %s", ErrEngineUnavailable, engine)
	}

	b, err := launcher.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("%w: launching %s: %v", ErrEngineUnavailable, engine, err)
	}

	log.WithField("version", b.Version()).Info("browser started")

	return newPlaywrightDriver(log, engine, b, pw.Stop), nil
}

func newPlaywrightDriver(log logrus.FieldLogger, engine Engine, b playwright.Browser, stop func() error) *playwrightDriver {
	return &playwrightDriver{log: log, engine: engine, browser: b, stop: stop}
}

func (d *playwrightDriver) Engine() Engine {
	return d.engine
}

func (d *playwrightDriver) NewContext(ctx context.Context, opts Options) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bc, err := d.browser.NewContext(contextOptions(d.engine, opts.Device))
	if err != nil {
		return nil, fmt.Errorf("creating %s context: %w", d.engine, err)
	}

	return &playwrightContext{bc: bc}, nil
}

func (d *playwrightDriver) Close() error {
	var errs []error

	if err := d.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing %s: %w", d.engine, err))
	}

	if d.stop != nil {
		if err := d.stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping playwright: %w", err))
		}
	}

	d.log.Debug("browser stopped")

	return errors.Join(errs...)
}

// contextOptions maps a device onto Playwright context options. Firefox
// rejects isMobile, so it only gets the viewport, scale and touch.
func contextOptions(engine Engine, device DeviceProfile) playwright.BrowserNewContextOptions {
	opts := playwright.BrowserNewContextOptions{}

	if device.Width > 0 && device.Height > 0 {
		opts.Viewport = &playwright.Size{Width: device.Width, Height: device.Height}
		opts.DeviceScaleFactor = playwright.Float(device.scale())
	}

	if device.HasTouch {
		opts.HasTouch = playwright.Bool(true)
	}

	if device.IsMobile && engine != Firefox {
		opts.IsMobile = playwright.Bool(true)
	}

	if device.UserAgent != "" {
		opts.UserAgent = playwright.String(device.UserAgent)
	}

	return opts
}

type playwrightContext struct {
	bc playwright.BrowserContext
}

func (c *playwrightContext) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := c.bc.NewPage()
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}

	return newPlaywrightPage(p), nil
}

func (c *playwrightContext) SetOffline(ctx context.Context, offline bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.bc.SetOffline(offline); err != nil {
		return fmt.Errorf("setting offline=%t: %w", offline, err)
	}

	return nil
}

func (c *playwrightContext) Close() error {
	return c.bc.Close()
}

// timeoutMillis turns the time left on ctx into a Playwright timeout. Zero
// means no timeout, so a context without deadline maps to nil and keeps
// Playwright's default.
func timeoutMillis(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}

	left := time.Until(deadline)
	if left < time.Millisecond {
		left = time.Millisecond
	}

	return playwright.Float(float64(left.Milliseconds()))
}

func waitUntil(state LoadState) *playwright.WaitUntilState {
	switch state {
	case DOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	case NetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	default:
		return playwright.WaitUntilStateLoad
	}
}

func loadState(state LoadState) (*playwright.LoadState, error) {
	switch state {
	case DOMContentLoaded:
		return playwright.LoadStateDomcontentloaded, nil
	case Load:
		return playwright.LoadStateLoad, nil
	case NetworkIdle:
		return playwright.LoadStateNetworkidle, nil
	default:
		return nil, fmt.Errorf("unknown load state %q", state)
	}
}

func colorScheme(scheme ColorScheme) *playwright.ColorScheme {
	switch scheme {
	case ColorSchemeDark:
		return playwright.ColorSchemeDark
	case ColorSchemeLight:
		return playwright.ColorSchemeLight
	default:
		return playwright.ColorSchemeNoOverride
	}
}

var (
	_ Driver  = (*playwrightDriver)(nil)
	_ Context = (*playwrightContext)(nil)
)
