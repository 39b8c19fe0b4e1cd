package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ethpandaops/sitecheck/internal/browser"
)

// ErrInvalidPath is returned when an artifact path leaves the store.
var ErrInvalidPath = errors.New("invalid artifact path")

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// ArtifactStore keeps the files a run attaches to its tests.
type ArtifactStore struct {
	baseDir string
}

// NewArtifactStore creates the store directory for one run.
func NewArtifactStore(baseDir, runID string) (*ArtifactStore, error) {
	dir := filepath.Clean(filepath.Join(baseDir, runID))
	if dir == "" || dir == "." {
		return nil, fmt.Errorf("%w: base directory cannot be empty", ErrInvalidPath)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}

	return &ArtifactStore{baseDir: dir}, nil
}

// Dir is the directory of the run.
func (s *ArtifactStore) Dir() string {
	return s.baseDir
}

// Save writes body at path inside the store and returns the full path.
func (s *ArtifactStore) Save(path string, body []byte) (string, error) {
	fullPath, err := s.validateAndJoinPath(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	if err := os.WriteFile(fullPath, body, 0o600); err != nil {
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	return fullPath, nil
}

func (s *ArtifactStore) validateAndJoinPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}

	fullPath := filepath.Join(s.baseDir, filepath.Clean(path))

	rel, err := filepath.Rel(s.baseDir, fullPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	return fullPath, nil
}

// attemptDir names the directory of one attempt, e.g.
// "cross-browser-page-load-tests-home-chromium/retry1".
func attemptDir(job Job, attempt int) string {
	name := strings.Join([]string{job.Suite.Name, job.Group.Title, job.Case.Title, job.Project.Name}, "-")
	name = strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(name), "-"), "-")

	if len(name) > 120 {
		name = strings.TrimRight(name[:120], "-")
	}

	return filepath.Join(name, fmt.Sprintf("retry%d", attempt))
}

// TraceEvent is one entry of an attempt trace.
type TraceEvent struct {
	Time   time.Time `json:"time"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail"`
	Status int       `json:"status,omitempty"`
}

// tracer records navigations, console output and page errors of one page.
type tracer struct {
	browser.Page

	mu     sync.Mutex
	events []TraceEvent
	detach []func()
}

func newTracer(page browser.Page) *tracer {
	t := &tracer{Page: page, events: make([]TraceEvent, 0)}

	t.detach = append(t.detach,
		page.OnConsole(func(m browser.ConsoleMessage) {
			t.add(TraceEvent{Kind: "console." + m.Type, Detail: m.Text})
		}),
		page.OnPageError(func(e browser.PageError) {
			t.add(TraceEvent{Kind: "pageerror", Detail: e.Message})
		}),
	)

	return t
}

func (t *tracer) add(e TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e.Time = time.Now()
	t.events = append(t.events, e)
}

// Goto records the navigation and its outcome.
func (t *tracer) Goto(ctx context.Context, url string, state browser.LoadState) (*browser.Response, error) {
	resp, err := t.Page.Goto(ctx, url, state)

	event := TraceEvent{Kind: "navigation", Detail: url}
	switch {
	case err != nil:
		event.Detail += ": " + err.Error()
	case resp != nil:
		event.Status = resp.Status
	}
	t.add(event)

	return resp, err
}

func (t *tracer) stop() []byte {
	for _, fn := range t.detach {
		fn()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.MarshalIndent(struct {
		Events []TraceEvent `json:"events"`
	}{t.events}, "", "  ")
	if err != nil {
		return nil
	}

	return data
}
