package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
)

type playwrightPage struct {
	page playwright.Page

	mu        sync.Mutex
	navigated bool
	closed    bool
	nextID    int
	console   map[int]func(ConsoleMessage)
	errs      map[int]func(PageError)
}

func newPlaywrightPage(page playwright.Page) *playwrightPage {
	p := &playwrightPage{
		page:    page,
		console: make(map[int]func(ConsoleMessage)),
		errs:    make(map[int]func(PageError)),
	}

	page.OnConsole(func(m playwright.ConsoleMessage) {
		p.dispatchConsole(consoleFromPlaywright(m))
	})
	page.OnPageError(func(err error) {
		p.dispatchError(pageErrorFromPlaywright(err))
	})
	page.OnFrameNavigated(func(f playwright.Frame) {
		if f.ParentFrame() == nil && f.URL() != "about:blank" {
			p.mu.Lock()
			p.navigated = true
			p.mu.Unlock()
		}
	})

	return p
}

func consoleFromPlaywright(m playwright.ConsoleMessage) ConsoleMessage {
	msg := ConsoleMessage{Type: m.Type(), Text: m.Text()}

	if loc := m.Location(); loc != nil && loc.URL != "" {
		msg.Location = fmt.Sprintf("%s:%d:%d", loc.URL, loc.LineNumber, loc.ColumnNumber)
	}

	return msg
}

func pageErrorFromPlaywright(err error) PageError {
	var pwErr *playwright.Error
	if errors.As(err, &pwErr) {
		return PageError{Message: pwErr.Message, Stack: pwErr.Stack}
	}

	if err == nil {
		return PageError{}
	}

	return PageError{Message: err.Error()}
}

func (p *playwrightPage) dispatchConsole(msg ConsoleMessage) {
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

func (p *playwrightPage) dispatchError(pe PageError) {
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

// ready fails fast on a closed page or a finished context. Playwright calls
// are synchronous and bounded by the timeout derived from ctx instead.
func (p *playwrightPage) ready(ctx context.Context) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return ErrPageClosed
	}

	return ctx.Err()
}

func (p *playwrightPage) Goto(ctx context.Context, url string, state LoadState) (*Response, error) {
	if err := p.ready(ctx); err != nil {
		return nil, err
	}

	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil(state),
		Timeout:   timeoutMillis(ctx),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}

	out := &Response{URL: url}
	if resp != nil {
		out.URL = resp.URL()
		out.Status = resp.Status()
	}

	return out, nil
}

func (p *playwrightPage) WaitForLoadState(ctx context.Context, state LoadState) error {
	ls, err := loadState(state)
	if err != nil {
		return err
	}

	if err := p.ready(ctx); err != nil {
		return err
	}

	if err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   ls,
		Timeout: timeoutMillis(ctx),
	}); err != nil {
		return fmt.Errorf("waiting for %s: %w", state, err)
	}

	return nil
}

func (p *playwrightPage) GoBack(ctx context.Context) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	if _, err := p.page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeoutMillis(ctx),
	}); err != nil {
		return fmt.Errorf("history.back(): %w", err)
	}

	return nil
}

func (p *playwrightPage) GoForward(ctx context.Context) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	if _, err := p.page.GoForward(playwright.PageGoForwardOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeoutMillis(ctx),
	}); err != nil {
		return fmt.Errorf("history.forward(): %w", err)
	}

	return nil
}

func (p *playwrightPage) URL(ctx context.Context) (string, error) {
	if err := p.ready(ctx); err != nil {
		return "", err
	}

	return p.page.URL(), nil
}

func (p *playwrightPage) Title(ctx context.Context) (string, error) {
	if err := p.ready(ctx); err != nil {
		return "", err
	}

	title, err := p.page.Title()
	if err != nil {
		return "", fmt.Errorf("reading title: %w", err)
	}

	return title, nil
}

// Evaluate decodes the result through JSON so callers see the same shapes
// as with the DevTools driver.
func (p *playwrightPage) Evaluate(ctx context.Context, script string, out any) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	value, err := p.page.Evaluate(script)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding result of %.60q: %w", script, err)
	}

	return json.Unmarshal(raw, out)
}

func (p *playwrightPage) SetViewport(ctx context.Context, width, height int) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	if err := p.page.SetViewportSize(width, height); err != nil {
		return fmt.Errorf("setting viewport %dx%d: %w", width, height, err)
	}

	return nil
}

func (p *playwrightPage) Count(ctx context.Context, selector string) (int, error) {
	if err := p.ready(ctx); err != nil {
		return 0, err
	}

	return p.page.Locator(selector).Count()
}

// nth resolves the index-th match, reporting ErrElementNotFound when there
// are fewer matches. Locators never fail on their own until acted upon.
func (p *playwrightPage) nth(ctx context.Context, selector string, index int) (playwright.Locator, error) {
	n, err := p.Count(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", selector, err)
	}

	if index < 0 || index >= n {
		return nil, fmt.Errorf("%s[%d]: %w", selector, index, ErrElementNotFound)
	}

	return p.page.Locator(selector).Nth(index), nil
}

func (p *playwrightPage) Click(ctx context.Context, selector string, index int) error {
	l, err := p.nth(ctx, selector, index)
	if err != nil {
		return err
	}

	return l.Click(playwright.LocatorClickOptions{Timeout: timeoutMillis(ctx)})
}

func (p *playwrightPage) Hover(ctx context.Context, selector string, index int) error {
	l, err := p.nth(ctx, selector, index)
	if err != nil {
		return err
	}

	return l.Hover(playwright.LocatorHoverOptions{Timeout: timeoutMillis(ctx)})
}

func (p *playwrightPage) Fill(ctx context.Context, selector string, index int, value string) error {
	l, err := p.nth(ctx, selector, index)
	if err != nil {
		return err
	}

	return l.Fill(value, playwright.LocatorFillOptions{Timeout: timeoutMillis(ctx)})
}

func (p *playwrightPage) Press(ctx context.Context, key string) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	return p.page.Keyboard().Press(key)
}

func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.ready(ctx); err != nil {
		return nil, err
	}

	buf, err := p.page.Screenshot(playwright.PageScreenshotOptions{Timeout: timeoutMillis(ctx)})
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}

	return buf, nil
}

func (p *playwrightPage) FullScreenshot(ctx context.Context) ([]byte, error) {
	if err := p.ready(ctx); err != nil {
		return nil, err
	}

	buf, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Timeout:  timeoutMillis(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("capturing full page: %w", err)
	}

	return buf, nil
}

func (p *playwrightPage) ElementScreenshot(ctx context.Context, selector string, index int) ([]byte, error) {
	l, err := p.nth(ctx, selector, index)
	if err != nil {
		return nil, err
	}

	buf, err := l.Screenshot(playwright.LocatorScreenshotOptions{Timeout: timeoutMillis(ctx)})
	if err != nil {
		return nil, fmt.Errorf("capturing %s[%d]: %w", selector, index, err)
	}

	return buf, nil
}

func (p *playwrightPage) EmulateColorScheme(ctx context.Context, scheme ColorScheme) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	if err := p.page.EmulateMedia(playwright.PageEmulateMediaOptions{ColorScheme: colorScheme(scheme)}); err != nil {
		return fmt.Errorf("emulating color scheme %q: %w", scheme, err)
	}

	return nil
}

func (p *playwrightPage) OnConsole(fn func(ConsoleMessage)) func() {
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

func (p *playwrightPage) OnPageError(fn func(PageError)) func() {
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

func (p *playwrightPage) Navigated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.navigated
}

func (p *playwrightPage) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.page.Close()
}

var _ Page = (*playwrightPage)(nil)
