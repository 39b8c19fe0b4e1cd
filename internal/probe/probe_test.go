package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/ethpandaops/sitecheck/internal/browser/browsertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatures_Registry(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"webgl", "webgl2", "smoothScroll", "intersectionObserver", "resizeObserver",
		"mutationObserver", "requestAnimationFrame", "cssGrid", "cssFlexbox",
		"cssVariables", "es6",
	}, Features.Keys())

	seen := make(map[string]bool)
	for _, p := range Features {
		assert.False(t, seen[p.Key], "duplicate key %s", p.Key)
		seen[p.Key] = true
		assert.NotEmpty(t, p.Name)
		assert.Contains(t, p.Script, "catch")
	}
}

func TestProbe_Run(t *testing.T) {
	t.Parallel()

	grid, ok := Features.Lookup("cssGrid")
	require.True(t, ok)

	tests := []struct {
		name   string
		result any
		want   bool
	}{
		{name: "supported", result: true, want: true},
		{name: "unsupported", result: false, want: false},
		{name: "evaluation error", result: errors.New("boom"), want: false},
		{name: "non boolean", result: "yes", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page := browsertest.NewPage().Set(grid.Script, tt.result)
			assert.Equal(t, tt.want, grid.Run(context.Background(), page))
		})
	}
}

func TestProbe_RunMissingScript(t *testing.T) {
	t.Parallel()

	p := Probe{Key: "x", Name: "X", Script: "window.__x"}
	assert.False(t, p.Run(context.Background(), browsertest.NewPage()))
}

func TestRegistry_Sweep(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage()
	for _, p := range Features {
		page.Set(p.Script, true)
	}

	webgl2, _ := Features.Lookup("webgl2")
	page.Set(webgl2.Script, false)

	results := Features.Sweep(context.Background(), page)
	require.Len(t, results, len(Features))

	for key, supported := range results {
		if key == "webgl2" {
			assert.False(t, supported)
			continue
		}
		assert.True(t, supported, key)
	}

	assert.Len(t, page.Evaluated, len(Features))
}

func TestRegistry_LookupMissing(t *testing.T) {
	t.Parallel()

	_, ok := Features.Lookup("nope")
	assert.False(t, ok)
}
