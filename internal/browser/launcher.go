package browser

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

// DebugBrowser is a standalone Chromium with an open remote-debugging port,
// used by external tools that attach on their own.
type DebugBrowser struct {
	ControlURL string
	Port       int
	launcher   *launcher.Launcher
}

// LaunchDebugBrowser starts a headless Chromium owned by the caller.
func LaunchDebugBrowser(execPath string) (*DebugBrowser, error) {
	l := debugLauncher(execPath)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching chrome: %w", err)
	}

	port, err := portFromControlURL(controlURL)
	if err != nil {
		l.Kill()
		return nil, err
	}

	return &DebugBrowser{
		ControlURL: controlURL,
		Port:       port,
		launcher:   l,
	}, nil
}

func debugLauncher(execPath string) *launcher.Launcher {
	l := launcher.New().Headless(true)

	for name, value := range chromeFlags(true) {
		if name == "headless" {
			continue
		}
		if on, ok := value.(bool); ok && on {
			l = l.Set(flags.Flag(name))
		}
	}

	if execPath != "" {
		l = l.Bin(execPath)
	}

	return l
}

// Close kills the browser and removes its profile directory.
func (b *DebugBrowser) Close() {
	if b.launcher == nil {
		return
	}

	b.launcher.Kill()
	b.launcher.Cleanup()
}

func portFromControlURL(controlURL string) (int, error) {
	u, err := url.Parse(controlURL)
	if err != nil {
		return 0, fmt.Errorf("parsing control url %q: %w", controlURL, err)
	}

	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0, fmt.Errorf("control url %q has no port: %w", controlURL, err)
	}

	return port, nil
}
