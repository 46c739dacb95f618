// Package filewriter writes report files atomically and keeps a bounded
// number of timestamped backups of the versions they replace.
package filewriter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotRegular is returned when the target path exists but is not a
// regular file.
var ErrNotRegular = errors.New("not a regular file")

const (
	backupInfix  = ".backup-"
	backupLayout = "20060102150405.000000000"
	parentMode   = 0755
)

// Writer writes files with backup rotation.
type Writer struct {
	now func() time.Time
}

// Option customises a Writer.
type Option func(*Writer)

// WithClock replaces time.Now for backup names.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// New creates a Writer.
func New(opts ...Option) *Writer {
	w := &Writer{now: time.Now}
	for _, o := range opts {
		o(w)
	}
	return w
}

// EnsureDir creates dir and any missing parents with perm.
func (w *Writer) EnsureDir(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return nil
}

// Write replaces path with content. When an older version exists and keep
// is positive, that version is copied to a backup first and backups beyond
// keep are pruned oldest first. Identical content only has perm enforced.
func (w *Writer) Write(path, content string, perm os.FileMode, keep int) error {
	if err := os.MkdirAll(filepath.Dir(path), parentMode); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	previous, exists, err := readExisting(path)
	if err != nil {
		return err
	}

	if exists && bytes.Equal(previous, []byte(content)) {
		if err := os.Chmod(path, perm); err != nil {
			return fmt.Errorf("chmod: %w", err)
		}
		return nil
	}

	if exists && keep > 0 {
		if err := w.backup(path, previous, perm); err != nil {
			return err
		}
		if _, err := Prune(path, keep); err != nil {
			return err
		}
	}

	return writeAtomic(path, []byte(content), perm)
}

// readExisting returns the current content of path, if any.
func readExisting(path string) ([]byte, bool, error) {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, false, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- report paths come from configuration
	if err != nil {
		return nil, false, fmt.Errorf("read existing: %w", err)
	}
	return data, true, nil
}

func (w *Writer) backup(path string, data []byte, perm os.FileMode) error {
	name := path + backupInfix + w.now().UTC().Format(backupLayout)
	if err := os.WriteFile(name, data, perm); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	log.Debug().Str("file", path).Str("backup", name).Msg("backed up previous version")
	return nil
}

// writeAtomic writes data to a temp file next to path and renames it over
// path, so readers never observe a partial file.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
