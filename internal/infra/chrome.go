// Package infra manages the optional dockerised headless Chrome.
package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

const (
	commandTimeout = 2 * time.Minute
	readyTimeout   = 60 * time.Second
	pollInterval   = 500 * time.Millisecond
	devtoolsPort   = 9222
)

var errNotReady = errors.New("devtools endpoint not ready")

// CommandRunner executes docker with args and returns the combined output.
type CommandRunner func(ctx context.Context, args ...string) ([]byte, error)

// VersionInfo is the DevTools /json/version payload.
type VersionInfo struct {
	Browser         string `json:"Browser"`
	ProtocolVersion string `json:"Protocol-Version"`
	WebSocketURL    string `json:"webSocketDebuggerUrl"`
}

// ChromeContainer manages a headless Chrome container the harness attaches
// to over the DevTools protocol.
type ChromeContainer interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning(ctx context.Context) (bool, error)
	// RemoteURL is the allocator address of the running browser.
	RemoteURL() string
}

type chromeContainer struct {
	log    logrus.FieldLogger
	image  string
	name   string
	port   int
	run    CommandRunner
	client *http.Client
}

// NewChromeContainer creates a container manager for the default image.
func NewChromeContainer(log logrus.FieldLogger) ChromeContainer {
	return newChromeContainer(log, config.ChromeContainerImage, config.ChromeContainerName, config.ChromeContainerPort, execDocker)
}

func newChromeContainer(log logrus.FieldLogger, image, name string, port int, run CommandRunner) *chromeContainer {
	return &chromeContainer{
		log:    log.WithField("component", "chrome_container"),
		image:  image,
		name:   name,
		port:   port,
		run:    run,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *chromeContainer) RemoteURL() string {
	return "ws://127.0.0.1:" + strconv.Itoa(c.port)
}

func (c *chromeContainer) versionURL() string {
	return "http://127.0.0.1:" + strconv.Itoa(c.port) + "/json/version"
}

// Start runs the container unless it is already up, then waits for the
// DevTools endpoint to answer.
func (c *chromeContainer) Start(ctx context.Context) error {
	running, err := c.IsRunning(ctx)
	if err != nil {
		return err
	}

	if running {
		c.log.WithField("container", c.name).Info("Chrome container already running")
	} else {
		c.log.WithFields(logrus.Fields{
			"image": c.image,
			"port":  c.port,
		}).Debug("starting chrome container")

		args := []string{
			"run", "-d", "--rm",
			"--name", c.name,
			"-p", fmt.Sprintf("%d:%d", c.port, devtoolsPort),
			"--shm-size=2g",
			c.image,
		}

		if _, err := c.run(ctx, args...); err != nil {
			return fmt.Errorf("executing docker run: %w", err)
		}
	}

	var info VersionInfo

	backoff := retry.WithMaxDuration(readyTimeout, retry.NewConstant(pollInterval))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := c.version(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		info = *v

		return nil
	}); err != nil {
		return fmt.Errorf("waiting for chrome container: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"browser":  info.Browser,
		"protocol": info.ProtocolVersion,
	}).Info("Chrome container ready")

	return nil
}

func (c *chromeContainer) version(ctx context.Context) (*VersionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.versionURL(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errNotReady, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errNotReady, resp.StatusCode)
	}

	var info VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding version: %w", err)
	}

	return &info, nil
}

// Stop stops the container. It is started with --rm, so this removes it.
func (c *chromeContainer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if _, err := c.run(ctx, "stop", c.name); err != nil {
		return fmt.Errorf("executing docker stop: %w", err)
	}

	c.log.Info("Chrome container stopped")

	return nil
}

// IsRunning checks whether the container exists and runs.
func (c *chromeContainer) IsRunning(ctx context.Context) (bool, error) {
	out, err := c.run(ctx, "ps", "-q", "--filter", "name=^"+c.name+"$")
	if err != nil {
		return false, fmt.Errorf("executing docker ps: %w", err)
	}

	return strings.TrimSpace(string(out)) != "", nil
}

func execDocker(ctx context.Context, args ...string) ([]byte, error) {
	execCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "docker", args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("command failed: %w\nOutput: %s", err, string(output))
	}

	return output, nil
}

var _ ChromeContainer = (*chromeContainer)(nil)
