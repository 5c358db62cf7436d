// Package shutdown handles fatal exits: it writes a machine-readable
// crash dump before the process dies so a local user has something to
// report.
package shutdown

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"

	"voiceboard/pkg/logger"
)

type crashDump struct {
	Time       string `json:"time"`
	Reason     string `json:"reason"`
	Error      string `json:"error,omitempty"`
	Goroutines string `json:"goroutines"`
}

// Abort logs the fatal condition, writes a crash dump into crashDir
// (best effort), and exits with status 2.
func Abort(contextMsg string, err error, crashDir string) {
	logger.Error("startup_fatal", zap.String("msg", contextMsg), zap.Error(err))
	if path, derr := WriteCrashDump(crashDir, contextMsg, err); derr != nil {
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Info("wrote_crash_dump", zap.String("path", path))
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", path)
	}
	logger.Sync()
	os.Exit(2)
}

// WriteCrashDump writes a timestamped JSON dump with the failure and a
// full goroutine trace.
func WriteCrashDump(crashDir, reason string, cause error) (string, error) {
	if crashDir == "" {
		crashDir = "./crash"
	}
	if err := os.MkdirAll(crashDir, 0o700); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	d := crashDump{
		Time:       time.Now().UTC().Format(time.RFC3339),
		Reason:     reason,
		Goroutines: string(buf[:n]),
	}
	if cause != nil {
		d.Error = cause.Error()
	}
	name := "crash-" + time.Now().UTC().Format("20060102T150405Z") + ".json"
	path := filepath.Join(crashDir, name)
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
