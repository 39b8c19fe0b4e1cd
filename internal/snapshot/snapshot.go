// Package snapshot keeps visual baselines and compares screenshots against
// them pixel by pixel.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/orisano/pixelmatch"
)

// DefaultThreshold is the per-pixel color distance, 0 to 1, above which two
// pixels count as different.
const DefaultThreshold = 0.2

// ErrInvalidName is returned for snapshot names that would leave the store.
var ErrInvalidName = errors.New("invalid snapshot name")

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Result is the outcome of comparing one screenshot.
type Result struct {
	// Created is set when no baseline existed, or updating was requested,
	// and the screenshot became the baseline.
	Created bool
	// SizeMismatch is set when the baseline has other dimensions.
	SizeMismatch bool
	Baseline     image.Rectangle
	Actual       image.Rectangle
	DiffPixels   int
	// Diff highlights differing pixels. It is only rendered on failure.
	Diff []byte
}

// Passed reports whether the screenshot is within maxDiffPixels of the
// baseline.
func (r Result) Passed(maxDiffPixels int) bool {
	return !r.SizeMismatch && r.DiffPixels <= maxDiffPixels
}

// Store reads and writes baselines under one directory per project.
type Store struct {
	dir       string
	update    bool
	threshold float64

	mu sync.Mutex
}

// NewStore creates a store rooted at dir. With update set every comparison
// rewrites its baseline.
func NewStore(dir string, update bool) *Store {
	return &Store{dir: dir, update: update, threshold: DefaultThreshold}
}

// Path returns the baseline file of name for project.
func (s *Store) Path(project, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	dir := unsafeChars.ReplaceAllString(project, "-")
	if dir == "" {
		dir = "default"
	}

	return filepath.Join(s.dir, dir, name), nil
}

// Compare checks actual, a PNG, against the baseline of name. A missing
// baseline is written from actual.
func (s *Store) Compare(project, name string, actual []byte) (Result, error) {
	path, err := s.Path(project, name)
	if err != nil {
		return Result{}, err
	}

	got, err := png.Decode(bytes.NewReader(actual))
	if err != nil {
		return Result{}, fmt.Errorf("decoding screenshot %s: %w", name, err)
	}

	res := Result{Actual: got.Bounds()}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(path)
	switch {
	case s.update || errors.Is(err, os.ErrNotExist):
		if err := write(path, actual); err != nil {
			return Result{}, err
		}
		res.Created = true
		res.Baseline = res.Actual

		return res, nil
	case err != nil:
		return Result{}, fmt.Errorf("reading baseline %s: %w", path, err)
	}

	want, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("decoding baseline %s: %w", path, err)
	}

	res.Baseline = want.Bounds()
	if !want.Bounds().Eq(got.Bounds()) {
		res.SizeMismatch = true
		return res, nil
	}

	var diff image.Image
	res.DiffPixels, err = pixelmatch.MatchPixel(want, got,
		pixelmatch.Threshold(s.threshold),
		pixelmatch.WriteTo(&diff),
	)
	if err != nil {
		return Result{}, fmt.Errorf("comparing %s: %w", name, err)
	}

	if res.DiffPixels > 0 && diff != nil {
		buf := &bytes.Buffer{}
		if err := png.Encode(buf, diff); err != nil {
			return Result{}, fmt.Errorf("encoding diff of %s: %w", name, err)
		}
		res.Diff = buf.Bytes()
	}

	return res, nil
}

func write(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("writing baseline %s: %w", path, err)
	}

	return nil
}
