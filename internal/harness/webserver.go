package harness

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

const (
	pollInterval = 250 * time.Millisecond
	stopTimeout  = 5 * time.Second
)

var (
	// ErrServerInUse is returned when the URL already answers but reuse is off.
	ErrServerInUse = errors.New("web server url is already used")
	// ErrServerExited is returned when the command exits before the URL answers.
	ErrServerExited = errors.New("web server command exited")
)

// WebServer starts the command that serves the site and waits for its URL.
type WebServer struct {
	log    logrus.FieldLogger
	cfg    config.WebServer
	ci     bool
	client *http.Client

	cmd    *exec.Cmd
	exited chan error
}

// NewWebServer returns a web server for cfg. ci disables reuse of an already
// running server.
func NewWebServer(log logrus.FieldLogger, cfg config.WebServer, ci bool) *WebServer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultWebServerTimeout
	}

	return &WebServer{
		log:    log.WithField("component", "harness.webserver"),
		cfg:    cfg,
		ci:     ci,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

// ready reports whether the URL answers with a status below 404.
func (w *WebServer) ready(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.URL, nil)
	if err != nil {
		return false
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 404
}

// Start launches the command unless a reusable server already answers, then
// polls the URL until it is ready or the timeout passes.
func (w *WebServer) Start(ctx context.Context) error {
	log := w.log.WithField("url", w.cfg.URL)

	if w.ready(ctx) {
		if w.cfg.ReuseExisting(w.ci) {
			log.Info("Reusing running web server")
			return nil
		}

		return fmt.Errorf("%w: %s, make sure nothing is running on it or allow reuse outside CI", ErrServerInUse, w.cfg.URL)
	}

	//nolint:gosec // G204: command comes from the execution profile
	cmd := exec.Command("sh", "-c", w.cfg.Command)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	setProcessGroup(cmd)

	log.WithField("command", w.cfg.Command).Info("Starting web server")

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting web server: %w", err)
	}

	w.cmd = cmd
	w.exited = make(chan error, 1)
	go func() { w.exited <- cmd.Wait() }()

	start := time.Now()
	backoff := retry.WithMaxDuration(w.cfg.Timeout, retry.NewConstant(pollInterval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		select {
		case werr := <-w.exited:
			w.exited <- werr
			return fmt.Errorf("%w: %v", ErrServerExited, werr)
		default:
		}

		if !w.ready(ctx) {
			return retry.RetryableError(fmt.Errorf("%s not ready", w.cfg.URL))
		}

		return nil
	})
	if err != nil {
		_ = w.Stop()
		return fmt.Errorf("waiting for web server: %w", err)
	}

	log.WithField("duration", time.Since(start)).Info("Web server ready")

	return nil
}

// Stop terminates the command and its children. A reused server is left
// running.
func (w *WebServer) Stop() error {
	if w.cmd == nil || w.cmd.Process == nil {
		return nil
	}

	defer func() { w.cmd = nil }()

	select {
	case <-w.exited:
		return nil
	default:
	}

	if err := signalGroup(w.cmd, false); err != nil {
		w.log.WithError(err).Debug("Failed to signal web server")
	}

	select {
	case <-w.exited:
	case <-time.After(stopTimeout):
		w.log.Warn("Web server did not stop, killing it")
		if err := signalGroup(w.cmd, true); err != nil {
			return fmt.Errorf("killing web server: %w", err)
		}
		<-w.exited
	}

	w.log.Debug("Web server stopped")

	return nil
}
