package shutdown

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteCrashDump(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCrashDump(dir, "db open failed", errors.New("disk full"))
	require.NoError(t, err)
	require.FileExists(t, path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var d struct {
		Time       string `json:"time"`
		Reason     string `json:"reason"`
		Error      string `json:"error"`
		Goroutines string `json:"goroutines"`
	}
	require.NoError(t, json.Unmarshal(b, &d))
	require.Equal(t, "db open failed", d.Reason)
	require.Equal(t, "disk full", d.Error)
	require.NotEmpty(t, d.Time)
	require.Contains(t, d.Goroutines, "goroutine")
}

func TestWriteCrashDumpWithoutCause(t *testing.T) {
	path, err := WriteCrashDump(t.TempDir(), "shutdown requested", nil)
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(b), `"error"`)
}
