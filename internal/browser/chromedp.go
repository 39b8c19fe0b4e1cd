package browser

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// ChromeOptions configures the Chromium driver.
type ChromeOptions struct {
	// ExecPath overrides the Chrome binary. Empty uses the system lookup.
	ExecPath string
	// RemoteURL connects to an already running browser (ws://host:port)
	// instead of launching one.
	RemoteURL string
	Headless  bool
}

type chromeDriver struct {
	log           logrus.FieldLogger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromeDriver starts (or attaches to) a Chromium browser. Every context
// it hands out lives in its own CDP browser context.
func NewChromeDriver(log logrus.FieldLogger, opts ChromeOptions) (Driver, error) {
	log = log.WithField("component", "chrome_driver")

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)

	if opts.RemoteURL != "" {
		log.WithField("url", opts.RemoteURL).Debug("connecting to remote chrome")
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), execAllocatorOptions(opts)...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Debugf),
		chromedp.WithErrorf(log.Debugf),
	)

	// The browser is bound to the context of its first Run, so this must not
	// carry a timeout.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()

		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	log.Info("chrome started")

	return &chromeDriver{
		log:           log,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// chromeFlags are the switches every launched Chromium gets. The GPU stays
// enabled so WebGL can fall back to SwiftShader on machines without one.
func chromeFlags(headless bool) map[string]any {
	return map[string]any{
		"headless":                   headless,
		"no-sandbox":                 true,
		"disable-dev-shm-usage":      true,
		"enable-precise-memory-info": true,
		"enable-unsafe-swiftshader":  true,
	}
}

func execAllocatorOptions(opts ChromeOptions) []chromedp.ExecAllocatorOption {
	execOpts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+8)
	execOpts = append(execOpts, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := chromeFlags(opts.Headless)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		execOpts = append(execOpts, chromedp.Flag(name, flags[name]))
	}

	if opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.ExecPath))
	}

	return execOpts
}

func (d *chromeDriver) Engine() Engine {
	return Chromium
}

func (d *chromeDriver) NewContext(ctx context.Context, opts Options) (Context, error) {
	rootCtx, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithNewBrowserContext())

	bc := &chromeContext{
		log:    d.log,
		root:   rootCtx,
		cancel: cancel,
		device: opts.Device,
	}

	if err := ctx.Err(); err != nil {
		cancel()
		return nil, err
	}

	return bc, nil
}

func (d *chromeDriver) Close() error {
	d.browserCancel()
	d.allocCancel()
	d.log.Debug("chrome stopped")

	return nil
}

type chromeContext struct {
	log    logrus.FieldLogger
	root   context.Context
	cancel context.CancelFunc
	device DeviceProfile

	mu        sync.Mutex
	pages     []*chromePage
	rootTaken bool
	offline   bool
	closed    bool
}

func (c *chromeContext) NewPage(ctx context.Context) (Page, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrPageClosed
	}

	var (
		tabCtx context.Context
		cancel context.CancelFunc
	)

	// The first page is the tab that owns the browser context; closing it
	// would dispose the whole context, so only Context.Close does that.
	if !c.rootTaken {
		c.rootTaken = true
		tabCtx = c.root
	} else {
		tabCtx, cancel = chromedp.NewContext(c.root)
	}

	offline := c.offline
	c.mu.Unlock()

	p := newChromePage(c.log, tabCtx, cancel, c.device)
	if err := p.init(ctx, offline); err != nil {
		_ = p.Close()
		return nil, err
	}

	c.mu.Lock()
	c.pages = append(c.pages, p)
	c.mu.Unlock()

	return p, nil
}

func (c *chromeContext) SetOffline(ctx context.Context, offline bool) error {
	c.mu.Lock()
	c.offline = offline
	pages := make([]*chromePage, len(c.pages))
	copy(pages, c.pages)
	c.mu.Unlock()

	for _, p := range pages {
		if err := p.do(ctx, emulateNetwork(offline)); err != nil {
			return fmt.Errorf("setting offline=%t: %w", offline, err)
		}
	}

	return nil
}

func (c *chromeContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()

	return nil
}

func emulateNetwork(offline bool) chromedp.Action {
	return network.EmulateNetworkConditions(offline, 0, -1, -1)
}

var (
	_ Driver  = (*chromeDriver)(nil)
	_ Context = (*chromeContext)(nil)
)
