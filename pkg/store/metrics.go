package store

import (
	"io/fs"
	"path/filepath"
)

// DiskUsage returns the best-effort on-disk size of the database
// directory in bytes. This is larger than the logical blob total because
// it includes WAL and index overhead.
func (s *Store) DiskUsage() int64 {
	if s == nil || s.path == "" {
		return 0
	}
	var total int64
	_ = filepath.WalkDir(s.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}
