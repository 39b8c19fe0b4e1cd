// Package browsertest provides scripted in-memory implementations of the
// browser interfaces for unit tests.
package browsertest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"sync"

	"github.com/ethpandaops/sitecheck/internal/browser"
)

// ErrNoResult is returned by Evaluate for scripts with no canned result.
var ErrNoResult = errors.New("no canned result for script")

// Page is a fake browser.Page. Evaluate results come from Scripts, then
// EvalFunc, then a few built-ins (navigator.onLine, document.title,
// location.href).
type Page struct {
	mu sync.Mutex

	PageTitle string
	Scripts   map[string]any
	EvalFunc  func(script string) (any, error)
	Counts    map[string]int

	// Console and Errors are emitted on every Goto to a matching path.
	Console map[string][]browser.ConsoleMessage
	Errors  map[string][]browser.PageError

	// FrameFunc supplies the image a screenshot of target captures.
	// target is "viewport", "full" or "selector[index]".
	FrameFunc func(target string) image.Image

	GotoErr  error
	ClickErr error
	HoverErr error
	FillErr  error
	Status   int

	history   []string
	pos       int
	navigated bool
	closed    bool
	offline   *bool
	width     int
	height    int
	scheme    browser.ColorScheme

	Clicks    []string
	Hovers    []string
	Fills     []string
	Keys      []string
	Evaluated []string
	Shots     []string

	nextID  int
	console map[int]func(browser.ConsoleMessage)
	errs    map[int]func(browser.PageError)
}

// NewPage returns an empty fake page.
func NewPage() *Page {
	return &Page{
		Scripts: make(map[string]any),
		Counts:  make(map[string]int),
		Console: make(map[string][]browser.ConsoleMessage),
		Errors:  make(map[string][]browser.PageError),
		pos:     -1,
		console: make(map[int]func(browser.ConsoleMessage)),
		errs:    make(map[int]func(browser.PageError)),
	}
}

// Set registers a canned result for script.
func (p *Page) Set(script string, value any) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Scripts[script] = value

	return p
}

func (p *Page) Goto(ctx context.Context, rawURL string, _ browser.LoadState) (*browser.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.GotoErr != nil {
		err := p.GotoErr
		p.mu.Unlock()
		return nil, err
	}

	p.history = append(p.history[:p.pos+1], rawURL)
	p.pos = len(p.history) - 1
	p.navigated = true

	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}

	msgs := p.Console[path]
	pageErrs := p.Errors[path]
	status := p.Status
	p.mu.Unlock()

	for _, m := range msgs {
		p.emitConsole(m)
	}
	for _, e := range pageErrs {
		p.emitError(e)
	}

	if status == 0 {
		status = 200
	}

	return &browser.Response{URL: rawURL, Status: status}, nil
}

func (p *Page) WaitForLoadState(ctx context.Context, _ browser.LoadState) error {
	return ctx.Err()
}

func (p *Page) GoBack(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pos > 0 {
		p.pos--
	}

	return ctx.Err()
}

func (p *Page) GoForward(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pos < len(p.history)-1 {
		p.pos++
	}

	return ctx.Err()
}

func (p *Page) URL(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.currentURL(), nil
}

func (p *Page) currentURL() string {
	if p.pos < 0 {
		return "about:blank"
	}

	return p.history[p.pos]
}

func (p *Page) Title(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.PageTitle, nil
}

func (p *Page) Evaluate(ctx context.Context, script string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.Evaluated = append(p.Evaluated, script)
	value, ok := p.Scripts[script]
	fn := p.EvalFunc
	if !ok {
		switch script {
		case "navigator.onLine":
			value, ok = p.offline == nil || !*p.offline, true
		case "document.title":
			value, ok = p.PageTitle, true
		case "location.href":
			value, ok = p.currentURL(), true
		}
	}
	p.mu.Unlock()

	if !ok && fn != nil {
		v, err := fn(script)
		if err != nil {
			return err
		}
		value, ok = v, true
	}

	if !ok {
		return fmt.Errorf("%w: %.60q", ErrNoResult, script)
	}

	if err, isErr := value.(error); isErr {
		return err
	}

	if out == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, out)
}

func (p *Page) SetViewport(_ context.Context, width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.width, p.height = width, height

	return nil
}

// Viewport returns the last viewport set on the page.
func (p *Page) Viewport() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.width, p.height
}

func (p *Page) Count(_ context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.Counts[selector], nil
}

func (p *Page) element(selector string, index int) error {
	if index >= p.Counts[selector] {
		return fmt.Errorf("%s[%d]: %w", selector, index, browser.ErrElementNotFound)
	}

	return nil
}

func (p *Page) Click(_ context.Context, selector string, index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.element(selector, index); err != nil {
		return err
	}

	p.Clicks = append(p.Clicks, fmt.Sprintf("%s[%d]", selector, index))

	return p.ClickErr
}

func (p *Page) Hover(_ context.Context, selector string, index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.element(selector, index); err != nil {
		return err
	}

	p.Hovers = append(p.Hovers, fmt.Sprintf("%s[%d]", selector, index))

	return p.HoverErr
}

func (p *Page) Fill(_ context.Context, selector string, index int, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.element(selector, index); err != nil {
		return err
	}

	p.Fills = append(p.Fills, value)

	return p.FillErr
}

func (p *Page) Press(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Keys = append(p.Keys, key)

	return nil
}

func (p *Page) Screenshot(_ context.Context) ([]byte, error) {
	return p.shoot("viewport")
}

func (p *Page) FullScreenshot(_ context.Context) ([]byte, error) {
	return p.shoot("full")
}

func (p *Page) ElementScreenshot(_ context.Context, selector string, index int) ([]byte, error) {
	p.mu.Lock()
	err := p.element(selector, index)
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return p.shoot(fmt.Sprintf("%s[%d]", selector, index))
}

// shoot encodes the frame returned by FrameFunc, or a blank 8x8 image.
func (p *Page) shoot(target string) ([]byte, error) {
	p.mu.Lock()
	p.Shots = append(p.Shots, target)
	fn := p.FrameFunc
	p.mu.Unlock()

	var img image.Image = image.NewRGBA(image.Rect(0, 0, 8, 8))
	if fn != nil {
		img = fn(target)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (p *Page) EmulateColorScheme(ctx context.Context, scheme browser.ColorScheme) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.scheme = scheme

	return ctx.Err()
}

// ColorScheme returns the emulated color scheme.
func (p *Page) ColorScheme() browser.ColorScheme {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.scheme
}

func (p *Page) OnConsole(fn func(browser.ConsoleMessage)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.console[id] = fn

	return func() {
		p.mu.Lock()
		delete(p.console, id)
		p.mu.Unlock()
	}
}

func (p *Page) OnPageError(fn func(browser.PageError)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.errs[id] = fn

	return func() {
		p.mu.Lock()
		delete(p.errs, id)
		p.mu.Unlock()
	}
}

func (p *Page) emitConsole(m browser.ConsoleMessage) {
	p.mu.Lock()
	fns := make([]func(browser.ConsoleMessage), 0, len(p.console))
	for _, fn := range p.console {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(m)
	}
}

func (p *Page) emitError(e browser.PageError) {
	p.mu.Lock()
	fns := make([]func(browser.PageError), 0, len(p.errs))
	for _, fn := range p.errs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// EmitConsole delivers a console message to the registered listeners.
func (p *Page) EmitConsole(m browser.ConsoleMessage) {
	p.emitConsole(m)
}

// EmitError delivers a page error to the registered listeners.
func (p *Page) EmitError(e browser.PageError) {
	p.emitError(e)
}

func (p *Page) Navigated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.navigated
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	return nil
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// Context is a fake browser.Context. Pages are produced by NewPageFunc, or
// NewPage when it is nil.
type Context struct {
	mu          sync.Mutex
	NewPageFunc func() *Page
	Pages       []*Page
	offline     bool
	closed      bool
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := NewPage()
	if c.NewPageFunc != nil {
		p = c.NewPageFunc()
	}

	p.mu.Lock()
	p.offline = &c.offline
	p.mu.Unlock()

	c.Pages = append(c.Pages, p)

	return p, nil
}

func (c *Context) SetOffline(_ context.Context, offline bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.offline = offline

	return nil
}

func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	return nil
}

// Closed reports whether Close was called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// Driver is a fake browser.Driver.
type Driver struct {
	mu          sync.Mutex
	EngineName  browser.Engine
	NewPageFunc func() *Page
	Contexts    []*Context
	Devices     []browser.DeviceProfile
	closed      bool
}

func (d *Driver) Engine() browser.Engine {
	if d.EngineName == "" {
		return browser.Chromium
	}

	return d.EngineName
}

func (d *Driver) NewContext(ctx context.Context, opts browser.Options) (browser.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	c := &Context{NewPageFunc: d.NewPageFunc}
	d.Contexts = append(d.Contexts, c)
	d.Devices = append(d.Devices, opts.Device)

	return c, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true

	return nil
}

var (
	_ browser.Page    = (*Page)(nil)
	_ browser.Context = (*Context)(nil)
	_ browser.Driver  = (*Driver)(nil)
)
