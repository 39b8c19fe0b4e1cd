package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html>
  <head>
    <style>
      body   {  color : red ;  }
    </style>
  </head>
  <body>
    <p>  hello  </p>
  </body>
</html>
`

func TestWriter_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "report.html")

	require.NoError(t, NewWriter(quietLogger(), false).Write(path, []byte(page)))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, page, string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWriter_Minifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")

	require.NoError(t, NewWriter(quietLogger(), true).Write(path, []byte(page)))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Less(t, len(got), len(page))
	assert.Contains(t, string(got), "color:red")
	assert.Contains(t, string(got), "</html>")
	assert.False(t, strings.Contains(string(got), "\n  "))
}

func TestWriter_ReplacesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.html")
	w := NewWriter(quietLogger(), false)

	require.NoError(t, w.Write(path, []byte("first")))
	require.NoError(t, w.Write(path, []byte("second")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
