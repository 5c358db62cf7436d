package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	p := Layout("/data/board")
	require.Equal(t, "/data/board", p.Root)
	require.Equal(t, filepath.Join("/data/board", "db"), p.DB)
	require.Equal(t, filepath.Join("/data/board", "state", "crash"), p.Crash)
	require.Equal(t, filepath.Join("/data/board", "voiceboard.lock"), p.Lock)
}

func TestEnsureCreatesLayout(t *testing.T) {
	p := Layout(filepath.Join(t.TempDir(), "board"))
	require.NoError(t, p.Ensure())
	for _, dir := range []string{p.Root, p.DB, p.Crash} {
		fi, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, fi.IsDir())
	}
	// Idempotent on an existing layout.
	require.NoError(t, p.Ensure())
}

func TestEnsureRejectsSymlink(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "real")
	require.NoError(t, os.Mkdir(target, 0o700))
	link := filepath.Join(tmp, "board")
	require.NoError(t, os.Symlink(target, link))

	err := Layout(link).Ensure()
	require.ErrorContains(t, err, "symlink")
}

func TestEnsureRejectsFileInPath(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "board")
	require.NoError(t, os.WriteFile(root, []byte("not a dir"), 0o600))

	err := Layout(root).Ensure()
	require.ErrorContains(t, err, "not a directory")
}
