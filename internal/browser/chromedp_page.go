package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/sirupsen/logrus"
)

const historyPollInterval = 50 * time.Millisecond

var lifecycleNames = map[LoadState]string{
	DOMContentLoaded: "DOMContentLoaded",
	Load:             "load",
	NetworkIdle:      "networkIdle",
}

var keyNames = map[string]string{
	"Tab":        kb.Tab,
	"Enter":      kb.Enter,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"PageDown":   kb.PageDown,
	"PageUp":     kb.PageUp,
	"Space":      " ",
}

type chromePage struct {
	log    logrus.FieldLogger
	tab    context.Context
	cancel context.CancelFunc
	device DeviceProfile

	mu        sync.Mutex
	frameID   string
	navigated bool
	closed    bool
	seen      map[string]bool
	waiters   map[string][]chan struct{}
	nextID    int
	console   map[int]func(ConsoleMessage)
	errs      map[int]func(PageError)
}

func newChromePage(log logrus.FieldLogger, tab context.Context, cancel context.CancelFunc, device DeviceProfile) *chromePage {
	return &chromePage{
		log:     log,
		tab:     tab,
		cancel:  cancel,
		device:  device,
		seen:    make(map[string]bool),
		waiters: make(map[string][]chan struct{}),
		console: make(map[int]func(ConsoleMessage)),
		errs:    make(map[int]func(PageError)),
	}
}

// init creates the target, enables the domains the page relies on and
// applies device emulation.
func (p *chromePage) init(ctx context.Context, offline bool) error {
	if err := p.attach(ctx); err != nil {
		return fmt.Errorf("creating tab: %w", err)
	}

	if c := chromedp.FromContext(p.tab); c != nil && c.Target != nil {
		p.frameID = string(c.Target.TargetID)
	}

	chromedp.ListenTarget(p.tab, p.handleEvent)

	actions := []chromedp.Action{
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
		p.emulate(p.device.Width, p.device.Height),
	}

	if p.device.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(p.device.UserAgent))
	}

	if offline {
		actions = append(actions, emulateNetwork(true))
	}

	if err := p.do(ctx, actions...); err != nil {
		return fmt.Errorf("configuring tab: %w", err)
	}

	return nil
}

func (p *chromePage) emulate(width, height int) chromedp.Action {
	if width <= 0 || height <= 0 {
		return chromedp.ActionFunc(func(context.Context) error { return nil })
	}

	opts := []chromedp.EmulateViewportOption{chromedp.EmulateScale(p.device.scale())}
	if p.device.IsMobile {
		opts = append(opts, chromedp.EmulateMobile)
	}
	if p.device.HasTouch {
		opts = append(opts, chromedp.EmulateTouch)
	}

	return chromedp.EmulateViewport(int64(width), int64(height), opts...)
}

// attach allocates the target. chromedp runs the tab's event loop on the
// context of its first Run, so that Run gets the bare tab context and the
// caller's deadline only bounds how long we wait for it.
func (p *chromePage) attach(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- chromedp.Run(p.tab)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// bind derives a context from the tab that honours the caller's deadline and
// cancellation without closing the tab when it ends.
func (p *chromePage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.tab)

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		parent := cancel
		cancel = func() {
			cancelDeadline()
			parent()
		}
	}

	stop := context.AfterFunc(ctx, cancel)

	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) do(ctx context.Context, actions ...chromedp.Action) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return ErrPageClosed
	}

	runCtx, done := p.bind(ctx)
	defer done()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	return nil
}

func (p *chromePage) handleEvent(ev any) {
	switch e := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		p.dispatchConsole(consoleFromEvent(e))
	case *runtime.EventExceptionThrown:
		p.dispatchError(pageErrorFromDetails(e.ExceptionDetails))
	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" && e.Frame.URL != "about:blank" {
			p.mu.Lock()
			p.navigated = true
			p.mu.Unlock()
		}
	case *page.EventNavigatedWithinDocument:
		p.mu.Lock()
		p.navigated = true
		p.mu.Unlock()
	case *page.EventLifecycleEvent:
		p.markLifecycle(string(e.FrameID), e.Name)
	}
}

func (p *chromePage) markLifecycle(frameID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frameID != "" && frameID != p.frameID {
		return
	}

	if name == "init" {
		p.seen = make(map[string]bool)
		return
	}

	p.seen[name] = true
	for _, ch := range p.waiters[name] {
		close(ch)
	}
	delete(p.waiters, name)
}

func (p *chromePage) dispatchConsole(msg ConsoleMessage) {
	p.mu.Lock()
	fns := make([]func(ConsoleMessage), 0, len(p.console))
	for _, fn := range p.console {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

func (p *chromePage) dispatchError(pe PageError) {
	p.mu.Lock()
	fns := make([]func(PageError), 0, len(p.errs))
	for _, fn := range p.errs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(pe)
	}
}

func consoleFromEvent(e *runtime.EventConsoleAPICalled) ConsoleMessage {
	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		parts = append(parts, remoteObjectText(arg))
	}

	msg := ConsoleMessage{
		Type: string(e.Type),
		Text: strings.Join(parts, " "),
	}

	if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
		f := e.StackTrace.CallFrames[0]
		msg.Location = fmt.Sprintf("%s:%d:%d", f.URL, f.LineNumber, f.ColumnNumber)
	}

	return msg
}

func remoteObjectText(obj *runtime.RemoteObject) string {
	if obj == nil {
		return ""
	}

	if len(obj.Value) > 0 {
		var s string
		if err := json.Unmarshal([]byte(obj.Value), &s); err == nil {
			return s
		}
		return string(obj.Value)
	}

	return obj.Description
}

func pageErrorFromDetails(d *runtime.ExceptionDetails) PageError {
	if d == nil {
		return PageError{}
	}

	pe := PageError{Message: d.Text}

	if d.Exception != nil && d.Exception.Description != "" {
		lines := strings.SplitN(d.Exception.Description, "\n", 2)
		pe.Message = lines[0]
		if len(lines) > 1 {
			pe.Stack = lines[1]
		}
	}

	return pe
}

func (p *chromePage) Goto(ctx context.Context, url string, state LoadState) (*Response, error) {
	p.mu.Lock()
	p.seen = make(map[string]bool)
	p.mu.Unlock()

	runCtx, done := p.bind(ctx)
	defer done()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}

	out := &Response{URL: url}
	if resp != nil {
		out.URL = resp.URL
		out.Status = int(resp.Status)
	}

	if state == NetworkIdle {
		if err := p.WaitForLoadState(ctx, NetworkIdle); err != nil {
			return out, err
		}
	}

	return out, nil
}

func (p *chromePage) WaitForLoadState(ctx context.Context, state LoadState) error {
	name, ok := lifecycleNames[state]
	if !ok {
		return fmt.Errorf("unknown load state %q", state)
	}

	p.mu.Lock()
	if p.seen[name] {
		p.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	p.waiters[name] = append(p.waiters[name], ch)
	p.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", state, ctx.Err())
	}
}

func (p *chromePage) GoBack(ctx context.Context) error {
	return p.traverse(ctx, "history.back()")
}

func (p *chromePage) GoForward(ctx context.Context) error {
	return p.traverse(ctx, "history.forward()")
}

// traverse moves through session history and waits until the URL changed
// and the new document is interactive. Single-page routing never fires a
// load event, so the URL is polled instead.
func (p *chromePage) traverse(ctx context.Context, script string) error {
	before, err := p.URL(ctx)
	if err != nil {
		return err
	}

	if err := p.do(ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("%s: %w", script, err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := Sleep(ctx, historyPollInterval); err != nil {
			return err
		}

		var state struct {
			Href  string `json:"href"`
			Ready string `json:"ready"`
		}

		// Evaluation fails while the old document is torn down.
		if err := p.Evaluate(ctx, `({href: location.href, ready: document.readyState})`, &state); err != nil {
			continue
		}

		if state.Href != before && state.Ready != "loading" {
			return nil
		}
	}

	return nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.do(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}

	return loc, nil
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.do(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("reading title: %w", err)
	}

	return title, nil
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	return p.do(ctx, chromedp.Evaluate(script, out, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
}

func (p *chromePage) SetViewport(ctx context.Context, width, height int) error {
	if err := p.do(ctx, p.emulate(width, height)); err != nil {
		return fmt.Errorf("setting viewport %dx%d: %w", width, height, err)
	}

	return nil
}

func (p *chromePage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	if err := p.Evaluate(ctx, fmt.Sprintf("document.querySelectorAll(%s).length", quote(selector)), &n); err != nil {
		return 0, err
	}

	return n, nil
}

func (p *chromePage) node(ctx context.Context, selector string, index int) (cdp.NodeID, error) {
	var nodes []*cdp.Node
	if err := p.do(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return 0, fmt.Errorf("querying %s: %w", selector, err)
	}

	if index < 0 || index >= len(nodes) {
		return 0, fmt.Errorf("%s[%d]: %w", selector, index, ErrElementNotFound)
	}

	return nodes[index].NodeID, nil
}

func (p *chromePage) Click(ctx context.Context, selector string, index int) error {
	id, err := p.node(ctx, selector, index)
	if err != nil {
		return err
	}

	return p.do(ctx, chromedp.Click([]cdp.NodeID{id}, chromedp.ByNodeID))
}

func (p *chromePage) Hover(ctx context.Context, selector string, index int) error {
	id, err := p.node(ctx, selector, index)
	if err != nil {
		return err
	}

	return p.do(ctx,
		chromedp.ScrollIntoView([]cdp.NodeID{id}, chromedp.ByNodeID),
		chromedp.ActionFunc(func(ctx context.Context) error {
			quads, err := dom.GetContentQuads().WithNodeID(id).Do(ctx)
			if err != nil {
				return err
			}
			if len(quads) == 0 {
				return fmt.Errorf("%s[%d] has no layout: %w", selector, index, ErrElementNotFound)
			}

			x, y := quadCenter(quads[0])

			return chromedp.MouseEvent(input.MouseMoved, x, y).Do(ctx)
		}),
	)
}

func quadCenter(q dom.Quad) (float64, float64) {
	var x, y float64
	points := len(q) / 2
	if points == 0 {
		return 0, 0
	}

	for i := 0; i < points; i++ {
		x += q[i*2]
		y += q[i*2+1]
	}

	return x / float64(points), y / float64(points)
}

func (p *chromePage) Fill(ctx context.Context, selector string, index int, value string) error {
	id, err := p.node(ctx, selector, index)
	if err != nil {
		return err
	}

	ids := []cdp.NodeID{id}

	return p.do(ctx,
		chromedp.Clear(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, value, chromedp.ByNodeID),
	)
}

func (p *chromePage) Press(ctx context.Context, key string) error {
	if k, ok := keyNames[key]; ok {
		key = k
	}

	return p.do(ctx, chromedp.KeyEvent(key))
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.do(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}

	return buf, nil
}

func (p *chromePage) FullScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.do(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("capturing full page: %w", err)
	}

	return buf, nil
}

func (p *chromePage) ElementScreenshot(ctx context.Context, selector string, index int) ([]byte, error) {
	id, err := p.node(ctx, selector, index)
	if err != nil {
		return nil, err
	}

	var buf []byte
	if err := p.do(ctx, chromedp.Screenshot([]cdp.NodeID{id}, &buf, chromedp.ByNodeID)); err != nil {
		return nil, fmt.Errorf("capturing %s[%d]: %w", selector, index, err)
	}

	return buf, nil
}

func (p *chromePage) EmulateColorScheme(ctx context.Context, scheme ColorScheme) error {
	features := []*emulation.MediaFeature{{Name: "prefers-color-scheme", Value: string(scheme)}}

	if err := p.do(ctx, emulation.SetEmulatedMedia().WithFeatures(features)); err != nil {
		return fmt.Errorf("emulating color scheme %q: %w", scheme, err)
	}

	return nil
}

func (p *chromePage) OnConsole(fn func(ConsoleMessage)) func() {
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

func (p *chromePage) OnPageError(fn func(PageError)) func() {
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

func (p *chromePage) Navigated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.navigated
}

func (p *chromePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}

	return nil
}

func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}

	return string(b)
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

var _ Page = (*chromePage)(nil)
