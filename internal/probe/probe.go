// Package probe detects browser capabilities from inside a live page.
package probe

import (
	"context"

	"github.com/ethpandaops/sitecheck/internal/browser"
	"golang.org/x/sync/errgroup"
)

// Probe checks one capability with a single page evaluation. Scripts catch
// their own exceptions and evaluate to a boolean.
type Probe struct {
	Key    string
	Name   string
	Script string
}

// Run evaluates the probe. Any failure, including a non-boolean result,
// reads as unsupported.
func (p Probe) Run(ctx context.Context, page browser.Page) bool {
	var supported bool
	if err := page.Evaluate(ctx, p.Script, &supported); err != nil {
		return false
	}

	return supported
}

// Registry is an ordered set of probes.
type Registry []Probe

// Features is the capability baseline every supported browser must meet.
var Features = Registry{
	{
		Key:  "webgl",
		Name: "WebGL Support",
		Script: `(() => {
  try {
    const canvas = document.createElement("canvas");
    return !!(window.WebGLRenderingContext &&
      (canvas.getContext("webgl") || canvas.getContext("experimental-webgl")));
  } catch (e) {
    return false;
  }
})()`,
	},
	{
		Key:  "webgl2",
		Name: "WebGL2 Support",
		Script: `(() => {
  try {
    return !!document.createElement("canvas").getContext("webgl2");
  } catch (e) {
    return false;
  }
})()`,
	},
	{
		Key:    "smoothScroll",
		Name:   "Smooth Scroll",
		Script: guard(`"scrollBehavior" in document.documentElement.style`),
	},
	{
		Key:    "intersectionObserver",
		Name:   "Intersection Observer",
		Script: guard(`"IntersectionObserver" in window`),
	},
	{
		Key:    "resizeObserver",
		Name:   "Resize Observer",
		Script: guard(`"ResizeObserver" in window`),
	},
	{
		Key:    "mutationObserver",
		Name:   "Mutation Observer",
		Script: guard(`"MutationObserver" in window`),
	},
	{
		Key:    "requestAnimationFrame",
		Name:   "Request Animation Frame",
		Script: guard(`"requestAnimationFrame" in window`),
	},
	{
		Key:    "cssGrid",
		Name:   "CSS Grid",
		Script: guard(`CSS.supports("display", "grid")`),
	},
	{
		Key:    "cssFlexbox",
		Name:   "CSS Flexbox",
		Script: guard(`CSS.supports("display", "flex")`),
	},
	{
		Key:    "cssVariables",
		Name:   "CSS Variables",
		Script: guard(`CSS.supports("--test", "0")`),
	},
	{
		Key:  "es6",
		Name: "ES6+ Support",
		Script: `(() => {
  try {
    eval("const f = async () => {}");
    eval("class Test {}");
    eval("const obj = { ...{}, ...{} }");
    return true;
  } catch (e) {
    return false;
  }
})()`,
	},
}

func guard(expr string) string {
	return "(() => { try { return !!(" + expr + "); } catch (e) { return false; } })()"
}

// Lookup returns the probe with key.
func (r Registry) Lookup(key string) (Probe, bool) {
	for _, p := range r {
		if p.Key == key {
			return p, true
		}
	}

	return Probe{}, false
}

// Keys returns the probe keys in registry order.
func (r Registry) Keys() []string {
	keys := make([]string, len(r))
	for i, p := range r {
		keys[i] = p.Key
	}

	return keys
}

// Sweep runs every probe against page. Probes are independent, so they run
// concurrently; each still costs exactly one evaluation.
func (r Registry) Sweep(ctx context.Context, page browser.Page) map[string]bool {
	results := make([]bool, len(r))

	g, gCtx := errgroup.WithContext(ctx)
	for i, p := range r {
		g.Go(func() error {
			results[i] = p.Run(gCtx, page)
			return nil
		})
	}

	_ = g.Wait()

	out := make(map[string]bool, len(r))
	for i, p := range r {
		out[p.Key] = results[i]
	}

	return out
}
