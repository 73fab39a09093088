package fileutils

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"
)

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place, replacing any existing file. Readers never observe a partially
// written file at path.
func WriteFileAtomic(fs billy.Filesystem, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := fs.TempFile(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpPath := tmp.Name()

	renamed := false
	defer func() {
		if !renamed {
			_ = fs.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write temp file")
	}
	if s, ok := tmp.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			tmp.Close()
			return errors.Wrap(err, "failed to sync temp file")
		}
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp file")
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "failed to move file into place: %s", path)
	}
	renamed = true

	return nil
}

// FileExists reports whether path exists on fs.
func FileExists(fs billy.Filesystem, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.WithStack(err)
}
