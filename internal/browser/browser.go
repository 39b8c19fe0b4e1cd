// Package browser defines the automation capability the harness drives: drivers
// per engine, isolated browser contexts and pages.
package browser

import (
	"context"
	"errors"
	"time"
)

// Engine names a browser engine.
type Engine string

const (
	// Chromium is driven over the Chrome DevTools Protocol.
	Chromium Engine = "chromium"
	// Firefox is driven through the Playwright driver.
	Firefox Engine = "firefox"
	// WebKit is driven through the Playwright driver.
	WebKit Engine = "webkit"
)

// Driver names the automation backend for the engine.
func (e Engine) Driver() string {
	if e == Chromium {
		return "chromedp"
	}

	return "playwright"
}

// ColorScheme is an emulated prefers-color-scheme value.
type ColorScheme string

const (
	ColorSchemeLight ColorScheme = "light"
	ColorSchemeDark  ColorScheme = "dark"
	// ColorSchemeNone clears the emulation.
	ColorSchemeNone ColorScheme = ""
)

// LoadState is the signal a navigation waits for before returning.
type LoadState string

const (
	// DOMContentLoaded waits until the document has been parsed.
	DOMContentLoaded LoadState = "domcontentloaded"
	// Load waits for the window load event.
	Load LoadState = "load"
	// NetworkIdle waits until no network requests were in flight for 500ms.
	NetworkIdle LoadState = "networkidle"
)

var (
	// ErrEngineUnavailable is returned when an engine cannot be started, such
	// as when its browser build is not installed.
	ErrEngineUnavailable = errors.New("browser engine unavailable")
	// ErrElementNotFound is returned when an indexed element does not exist.
	ErrElementNotFound = errors.New("element not found")
	// ErrPageClosed is returned for operations on a closed page.
	ErrPageClosed = errors.New("page closed")
)

// ConsoleMessage is a console API call observed on a page.
type ConsoleMessage struct {
	Type     string
	Text     string
	Location string
}

// PageError is an uncaught exception thrown in a page.
type PageError struct {
	Message string
	Stack   string
}

// Response describes the main resource of a navigation.
type Response struct {
	URL    string
	Status int
}

// Options configures a new browser context.
type Options struct {
	Device DeviceProfile
}

// Driver owns one running browser for an engine.
type Driver interface {
	Engine() Engine
	NewContext(ctx context.Context, opts Options) (Context, error)
	Close() error
}

// Context is an isolated browsing context: cookies, storage and pages are
// not shared with any other Context.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	SetOffline(ctx context.Context, offline bool) error
	Close() error
}

// Page is a single tab inside a Context.
type Page interface {
	Goto(ctx context.Context, url string, state LoadState) (*Response, error)
	WaitForLoadState(ctx context.Context, state LoadState) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// Evaluate runs script in the page and decodes its JSON result into out.
	// Promises are awaited. out may be nil.
	Evaluate(ctx context.Context, script string, out any) error

	SetViewport(ctx context.Context, width, height int) error
	Count(ctx context.Context, selector string) (int, error)
	Click(ctx context.Context, selector string, index int) error
	Hover(ctx context.Context, selector string, index int) error
	Fill(ctx context.Context, selector string, index int, value string) error
	Press(ctx context.Context, key string) error
	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// FullScreenshot captures the whole scrollable page as PNG.
	FullScreenshot(ctx context.Context) ([]byte, error)
	// ElementScreenshot captures the index-th element matching selector.
	ElementScreenshot(ctx context.Context, selector string, index int) ([]byte, error)
	EmulateColorScheme(ctx context.Context, scheme ColorScheme) error

	OnConsole(fn func(ConsoleMessage)) (remove func())
	OnPageError(fn func(PageError)) (remove func())

	// Navigated reports whether the page has committed any navigation.
	Navigated() bool
	Close() error
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
