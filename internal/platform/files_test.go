package platform

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
}

func TestCreateDirectoryIfNotExists(t *testing.T) {
	tempDir := t.TempDir()
	testDir := filepath.Join(tempDir, "test_dir")

	_, err := os.Stat(testDir)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, CreateDirectoryIfNotExists(testDir))

	info, err := os.Stat(testDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Second call should not fail
	require.NoError(t, CreateDirectoryIfNotExists(testDir))
}

func TestTempMediaPath(t *testing.T) {
	now := time.Unix(1700000000, 0)

	path := TempMediaPath("/tmp", 1001, now)

	assert.Equal(t, filepath.Join("/tmp", "vid_1001_1700000000.mp4"), path)
	assert.NotEqual(t, path, TempMediaPath("/tmp", 1002, now))
	assert.NotEqual(t, path, TempMediaPath("/tmp", 1001, now.Add(time.Second)))
}

func TestFindFileWithFallback(t *testing.T) {
	t.Run("exact path", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "vid_1_100.mp4")
		writeFile(t, target)

		found, err := FindFileWithFallback(target)
		require.NoError(t, err)
		assert.Equal(t, target, found)
	})

	t.Run("sibling with other container", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "vid_1_100.mkv"))
		writeFile(t, filepath.Join(dir, "vid_1_100.mkv.part"))

		found, err := FindFileWithFallback(filepath.Join(dir, "vid_1_100.mp4"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "vid_1_100.mkv"), found)
	})

	t.Run("only partial files", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "vid_1_100.mp4.part"))
		writeFile(t, filepath.Join(dir, "vid_1_100.mp4.ytdl"))

		_, err := FindFileWithFallback(filepath.Join(dir, "vid_1_100.mp4"))
		assert.Error(t, err)
	})

	t.Run("other users files are ignored", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "vid_2_100.mp4"))
		writeFile(t, filepath.Join(dir, "vid_1_1000.mp4"))

		_, err := FindFileWithFallback(filepath.Join(dir, "vid_1_100.mp4"))
		assert.Error(t, err)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := FindFileWithFallback("")
		assert.Error(t, err)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := FindFileWithFallback(filepath.Join(t.TempDir(), "nope", "vid_1_1.mp4"))
		assert.Error(t, err)
	})
}

func TestRemoveMediaFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "vid_1_100.mp4")
	writeFile(t, target)
	writeFile(t, filepath.Join(dir, "vid_1_100.mp4.part"))
	writeFile(t, filepath.Join(dir, "vid_1_100.f137.mp4"))
	keep := filepath.Join(dir, "vid_2_100.mp4")
	writeFile(t, keep)

	removed, err := RemoveMediaFiles(target)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "vid_2_100.mp4", entries[0].Name())
}

func TestRemoveMediaFiles_Missing(t *testing.T) {
	removed, err := RemoveMediaFiles(filepath.Join(t.TempDir(), "vid_1_1.mp4"))
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = RemoveMediaFiles("")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.mp4")
	writeFile(t, path)

	size, err := FileSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)

	_, err = FileSize(path + ".missing")
	assert.Error(t, err)
}
