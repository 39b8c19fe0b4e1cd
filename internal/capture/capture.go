// Package capture collects console errors and uncaught page errors raised by
// a page while a test runs.
package capture

import (
	"errors"
	"strings"
	"sync"

	"github.com/ethpandaops/sitecheck/internal/browser"
)

// ErrLateStart is returned by Attach when the page navigated before capture
// began. Errors raised during that navigation were not observed.
var ErrLateStart = errors.New("capture attached after page navigation")

const (
	TypeConsoleError = "console.error"
	TypePageError    = "pageerror"
)

// fatalMarkers identify errors that break the page rather than log noise.
// They are matched against the lowercased message.
var fatalMarkers = []string{
	"uncaught",
	"undefined is not",
	"cannot read property",
	"cannot read properties",
}

// Record is one captured error.
type Record struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Location string `json:"location,omitempty"`
	Message  string `json:"message,omitempty"`
	Stack    string `json:"stack,omitempty"`
}

// IsFatal reports whether the record contains a fatal marker.
func (r Record) IsFatal() bool {
	text := strings.ToLower(r.Text)
	message := strings.ToLower(r.Message)

	for _, m := range fatalMarkers {
		if strings.Contains(text, m) || strings.Contains(message, m) {
			return true
		}
	}

	return false
}

// Capture is a live error collector bound to one page.
type Capture struct {
	mu      sync.Mutex
	records []Record
	detach  []func()
}

// Attach starts collecting errors from page. When the page has already
// navigated the handle is still returned together with ErrLateStart.
func Attach(page browser.Page) (*Capture, error) {
	c := &Capture{records: make([]Record, 0)}

	c.detach = append(c.detach,
		page.OnConsole(func(m browser.ConsoleMessage) {
			if m.Type != "error" {
				return
			}
			c.add(Record{Type: TypeConsoleError, Text: m.Text, Location: m.Location})
		}),
		page.OnPageError(func(e browser.PageError) {
			c.add(Record{Type: TypePageError, Message: e.Message, Stack: e.Stack})
		}),
	)

	if page.Navigated() {
		return c, ErrLateStart
	}

	return c, nil
}

func (c *Capture) add(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = append(c.records, r)
}

// Records returns a copy of everything captured so far.
func (c *Capture) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Record, len(c.records))
	copy(out, c.records)

	return out
}

// Len returns the number of captured records.
func (c *Capture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.records)
}

// Fatal returns the captured records that contain a fatal marker.
func (c *Capture) Fatal() []Record {
	fatal := make([]Record, 0)
	for _, r := range c.Records() {
		if r.IsFatal() {
			fatal = append(fatal, r)
		}
	}

	return fatal
}

// Close stops collecting. Records stay readable.
func (c *Capture) Close() {
	c.mu.Lock()
	detach := c.detach
	c.detach = nil
	c.mu.Unlock()

	for _, fn := range detach {
		fn()
	}
}
