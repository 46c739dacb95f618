package filewriter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Backups returns the backups of path, oldest first.
func Backups(path string) ([]string, error) {
	pattern := escapeGlob(path) + backupInfix + "*"
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	// The timestamp suffix has a fixed width, so lexical order is age order.
	sort.Strings(files)
	return files, nil
}

// Prune removes the oldest backups of path until at most keep remain and
// returns the removed names.
func Prune(path string, keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}
	files, err := Backups(path)
	if err != nil {
		return nil, err
	}
	if len(files) <= keep {
		return nil, nil
	}

	old := files[:len(files)-keep]
	if err := removeFiles(old); err != nil {
		return nil, err
	}
	return old, nil
}

// removeFiles deletes all files in the list
func removeFiles(files []string) error {
	for _, file := range files {
		if err := removeFile(file); err != nil {
			return err
		}
	}
	return nil
}

// removeFile deletes a single file
func removeFile(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func escapeGlob(path string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(path)
}
