package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"github.com/sirupsen/logrus"
)

// DriverFactory starts the driver for an engine. Engines without a driver
// return browser.ErrEngineUnavailable.
type DriverFactory func(ctx context.Context, engine browser.Engine) (browser.Driver, error)

// EngineFactory drives Chromium through chromedp, and Firefox and WebKit
// through Playwright.
func EngineFactory(log logrus.FieldLogger, chrome browser.ChromeOptions, pw browser.PlaywrightOptions) DriverFactory {
	playwrightFactory := func(_ context.Context, engine browser.Engine) (browser.Driver, error) {
		return browser.NewPlaywrightDriver(log, engine, pw)
	}

	return Route(map[browser.Engine]DriverFactory{
		browser.Chromium: func(_ context.Context, _ browser.Engine) (browser.Driver, error) {
			return browser.NewChromeDriver(log, chrome)
		},
		browser.Firefox: playwrightFactory,
		browser.WebKit:  playwrightFactory,
	})
}

// Route dispatches to the factory registered for an engine. Unregistered
// engines are unavailable.
func Route(routes map[browser.Engine]DriverFactory) DriverFactory {
	return func(ctx context.Context, engine browser.Engine) (browser.Driver, error) {
		factory, ok := routes[engine]
		if !ok {
			return nil, fmt.Errorf("%w: %s", browser.ErrEngineUnavailable, engine)
		}

		return factory(ctx, engine)
	}
}

type driverEntry struct {
	once   sync.Once
	driver browser.Driver
	err    error
}

// driverPool starts one driver per engine on first use and shares it across
// workers.
type driverPool struct {
	log     logrus.FieldLogger
	factory DriverFactory

	mu      sync.Mutex
	entries map[browser.Engine]*driverEntry
}

func newDriverPool(log logrus.FieldLogger, factory DriverFactory) *driverPool {
	return &driverPool{
		log:     log.WithField("component", "harness.drivers"),
		factory: factory,
		entries: make(map[browser.Engine]*driverEntry),
	}
}

func (p *driverPool) get(ctx context.Context, engine browser.Engine) (browser.Driver, error) {
	p.mu.Lock()
	e, ok := p.entries[engine]
	if !ok {
		e = &driverEntry{}
		p.entries[engine] = e
	}
	p.mu.Unlock()

	e.once.Do(func() {
		e.driver, e.err = p.factory(ctx, engine)
		switch {
		case errors.Is(e.err, browser.ErrEngineUnavailable):
			p.log.WithField("engine", engine).Warn("Engine unavailable, its tests will be skipped")
		case e.err != nil:
			p.log.WithError(e.err).WithField("engine", engine).Error("Failed to start browser")
		default:
			p.log.WithField("engine", engine).Debug("Browser started")
		}
	})

	return e.driver, e.err
}

func (p *driverPool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for engine, e := range p.entries {
		if e.driver == nil {
			continue
		}
		if err := e.driver.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s driver: %w", engine, err))
		}
	}
	p.entries = make(map[browser.Engine]*driverEntry)

	return errors.Join(errs...)
}
