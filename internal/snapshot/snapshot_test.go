package snapshot

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))

	return buf.Bytes()
}

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.RGBA{A: 255}
)

func TestStore_FirstRunWritesBaseline(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewStore(dir, false)

	res, err := s.Compare("Mobile Safari", "home-full.png", solid(t, 8, 8, white))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Passed(0))

	_, err = os.Stat(filepath.Join(dir, "Mobile-Safari", "home-full.png"))
	require.NoError(t, err)
}

func TestStore_MatchingScreenshotPasses(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), false)
	shot := solid(t, 8, 8, white)

	_, err := s.Compare("chromium", "header.png", shot)
	require.NoError(t, err)

	res, err := s.Compare("chromium", "header.png", shot)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Zero(t, res.DiffPixels)
	assert.Nil(t, res.Diff)
	assert.True(t, res.Passed(0))
}

func TestStore_ChangedScreenshotFails(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), false)

	_, err := s.Compare("chromium", "footer.png", solid(t, 8, 8, white))
	require.NoError(t, err)

	res, err := s.Compare("chromium", "footer.png", solid(t, 8, 8, black))
	require.NoError(t, err)
	assert.Equal(t, 64, res.DiffPixels)
	assert.False(t, res.Passed(50))
	assert.True(t, res.Passed(64))

	diff, err := png.Decode(bytes.NewReader(res.Diff))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), diff.Bounds())
}

func TestStore_SizeMismatchFails(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), false)

	_, err := s.Compare("chromium", "hero.png", solid(t, 8, 8, white))
	require.NoError(t, err)

	res, err := s.Compare("chromium", "hero.png", solid(t, 8, 9, white))
	require.NoError(t, err)
	assert.True(t, res.SizeMismatch)
	assert.False(t, res.Passed(1000))
	assert.Equal(t, image.Rect(0, 0, 8, 8), res.Baseline)
	assert.Equal(t, image.Rect(0, 0, 8, 9), res.Actual)
}

func TestStore_UpdateRewritesBaseline(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := NewStore(dir, false).Compare("webkit", "home.png", solid(t, 8, 8, white))
	require.NoError(t, err)

	res, err := NewStore(dir, true).Compare("webkit", "home.png", solid(t, 8, 8, black))
	require.NoError(t, err)
	assert.True(t, res.Created)

	res, err = NewStore(dir, false).Compare("webkit", "home.png", solid(t, 8, 8, black))
	require.NoError(t, err)
	assert.Zero(t, res.DiffPixels)
}

func TestStore_InvalidInput(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), false)

	for _, name := range []string{"", "..", "../escape.png", `a\b.png`} {
		_, err := s.Compare("chromium", name, solid(t, 1, 1, white))
		require.ErrorIs(t, err, ErrInvalidName, name)
	}

	_, err := s.Compare("chromium", "garbage.png", []byte("not a png"))
	require.Error(t, err)
}
