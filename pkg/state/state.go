// Package state owns the canonical on-disk layout under the board's
// data directory.
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths is the runtime folder layout under the data directory.
type Paths struct {
	Root  string
	DB    string
	Crash string
	Lock  string
}

// Layout derives the canonical paths for a data directory.
func Layout(root string) Paths {
	return Paths{
		Root:  root,
		DB:    filepath.Join(root, "db"),
		Crash: filepath.Join(root, "state", "crash"),
		Lock:  filepath.Join(root, "voiceboard.lock"),
	}
}

// Ensure creates the layout directories. Symlinked or non-directory
// paths are rejected rather than followed.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.Root, p.DB, p.Crash} {
		if fi, err := os.Lstat(dir); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("path is a symlink: %s", dir)
			}
			if !fi.IsDir() {
				return fmt.Errorf("path exists and is not a directory: %s", dir)
			}
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("cannot create path %s: %w", dir, err)
		}
	}
	return nil
}
