package filewriter

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns a clock advancing one second per call.
func stepClock() func() time.Time {
	at := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		at = at.Add(time.Second)
		return at
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWriter_WriteNewFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "splunk")
	path := filepath.Join(dir, "node.data")
	w := New()

	require.NoError(t, w.Write(path, "a=1\n", 0644, 10))

	assert.Equal(t, "a=1\n", readFile(t, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	backups, err := Backups(path)
	require.NoError(t, err)
	assert.Empty(t, backups, "first write has nothing to back up")
}

func TestWriter_BacksUpPreviousVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.data")
	w := New(WithClock(stepClock()))

	require.NoError(t, w.Write(path, "v1\n", 0644, 10))
	require.NoError(t, w.Write(path, "v2\n", 0644, 10))

	assert.Equal(t, "v2\n", readFile(t, path))
	backups, err := Backups(path)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "v1\n", readFile(t, backups[0]))
	assert.Contains(t, backups[0], "run.data.backup-20261015100001")
}

func TestWriter_KeepsOnlyNewestBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resource.data")
	w := New(WithClock(stepClock()))

	for i := 1; i <= 6; i++ {
		require.NoError(t, w.Write(path, fmt.Sprintf("v%d\n", i), 0644, 3))
	}

	backups, err := Backups(path)
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, "v3\n", readFile(t, backups[0]))
	assert.Equal(t, "v4\n", readFile(t, backups[1]))
	assert.Equal(t, "v5\n", readFile(t, backups[2]))
	assert.Equal(t, "v6\n", readFile(t, path))
}

func TestWriter_KeepZeroDisablesBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.data")
	w := New(WithClock(stepClock()))

	require.NoError(t, w.Write(path, "v1\n", 0644, 0))
	require.NoError(t, w.Write(path, "v2\n", 0644, 0))

	backups, err := Backups(path)
	require.NoError(t, err)
	assert.Empty(t, backups)
	assert.Equal(t, "v2\n", readFile(t, path))
}

func TestWriter_UnchangedContentSkipsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.data")
	w := New(WithClock(stepClock()))

	require.NoError(t, w.Write(path, "same\n", 0600, 10))
	require.NoError(t, w.Write(path, "same\n", 0644, 10))

	backups, err := Backups(path)
	require.NoError(t, err)
	assert.Empty(t, backups)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestWriter_RejectsDirectoryTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.data")
	require.NoError(t, os.Mkdir(path, 0755))

	err := New().Write(path, "x\n", 0644, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRegular)
}

func TestWriter_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.data")
	w := New(WithClock(stepClock()))

	require.NoError(t, w.Write(path, "v1\n", 0644, 1))
	require.NoError(t, w.Write(path, "v2\n", 0644, 1))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Len(t, names, 2, "file and one backup: %v", names)
}

func TestWriter_EnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, New().EnsureDir(dir, 0755))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, New().EnsureDir(dir, 0755), "existing directory is fine")
}

func TestWriter_EnsureDirOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	err := New().EnsureDir(path, 0755)
	require.Error(t, err)
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.data")
	for _, ts := range []string{"20261015100001.000000000", "20261015100003.000000000", "20261015100002.000000000"} {
		require.NoError(t, os.WriteFile(path+backupInfix+ts, []byte(ts), 0644))
	}
	// Backups of other files are untouched.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.data"+backupInfix+"20261015100000.000000000"), nil, 0644))

	removed, err := Prune(path, 1)
	require.NoError(t, err)
	require.Len(t, removed, 2)
	assert.Contains(t, removed[0], "100001")
	assert.Contains(t, removed[1], "100002")

	left, err := Backups(path)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Contains(t, left[0], "100003")

	others, err := Backups(filepath.Join(dir, "run.data"))
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestPrune_NothingToDo(t *testing.T) {
	removed, err := Prune(filepath.Join(t.TempDir(), "node.data"), 10)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
