// Package report renders the HTML reports of a run: the results dashboard
// and the browser compatibility matrix.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

const mimeHTML = "text/html"

var (
	minifier *minify.M
	once     sync.Once
)

// getMinifier returns the shared html+css minifier.
func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.Add(mimeHTML, &html.Minifier{
			KeepDocumentTags: true,
			KeepEndTags:      true,
			KeepQuotes:       true,
		})
		minifier.AddFunc("text/css", css.Minify)
	})

	return minifier
}

// Writer writes self-contained HTML documents.
type Writer struct {
	log    logrus.FieldLogger
	minify bool
}

// NewWriter returns a writer that minifies output when minify is set.
func NewWriter(log logrus.FieldLogger, minify bool) *Writer {
	return &Writer{
		log:    log.WithField("component", "report.writer"),
		minify: minify,
	}
}

// Write stores doc at path. The directory is created if needed and the file
// is replaced atomically. Minifier errors fall back to the original bytes.
func (w *Writer) Write(path string, doc []byte) error {
	if w.minify {
		var buf bytes.Buffer
		if err := getMinifier().Minify(mimeHTML, &buf, bytes.NewReader(doc)); err != nil {
			w.log.WithError(err).WithField("path", path).Warn("Minification failed, writing unminified report")
		} else {
			doc = buf.Bytes()
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.html")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	//nolint:gosec // G302: reports are meant to be readable by others.
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting mode of %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	w.log.WithField("path", path).Info("Report written")

	return nil
}
