package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Temp media naming
const (
	TempFilePrefix        = "vid_"
	DefaultMediaExtension = ".mp4"
)

// File extensions that never count as a finished download
var (
	SkippedExtensions = []string{".part", ".ytdl", ".temp"}
)

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// TempMediaPath returns the output path for a user's download, unique per
// user and second
func TempMediaPath(dir string, userID int64, now time.Time) string {
	name := fmt.Sprintf("%s%d_%d%s", TempFilePrefix, userID, now.Unix(), DefaultMediaExtension)
	return filepath.Join(dir, name)
}

// FindFileWithFallback returns filePath if it exists, otherwise a finished file
// in the same directory sharing its base name (the engine may pick another
// container when merging). Files with the original extension are preferred.
func FindFileWithFallback(filePath string) (string, error) {
	if filePath == "" {
		return "", fmt.Errorf("file path is empty")
	}

	if info, err := os.Stat(filePath); err == nil && !info.IsDir() {
		return filePath, nil
	}

	dir := filepath.Dir(filePath)
	originalExt := filepath.Ext(filePath)
	baseName := strings.TrimSuffix(filepath.Base(filePath), originalExt)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !sharesBaseName(name, baseName) || isPartialFile(name) {
			continue
		}
		candidates = append(candidates, name)
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("file not found: %s", filePath)
	}

	sort.Slice(candidates, func(i, j int) bool {
		iSame := filepath.Ext(candidates[i]) == originalExt
		jSame := filepath.Ext(candidates[j]) == originalExt
		if iSame != jSame {
			return iSame
		}
		return candidates[i] < candidates[j]
	})
	return filepath.Join(dir, candidates[0]), nil
}

// RemoveMediaFiles deletes filePath and every sibling sharing its base name,
// including partial downloads. Missing files are not an error.
func RemoveMediaFiles(filePath string) (int, error) {
	if filePath == "" {
		return 0, nil
	}

	dir := filepath.Dir(filePath)
	baseName := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))

	removed := 0
	var errs []error

	if err := os.Remove(filePath); err == nil {
		removed++
	} else if !os.IsNotExist(err) {
		errs = append(errs, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return removed, errors.Join(errs...)
		}
		return removed, errors.Join(append(errs, err)...)
	}

	for _, entry := range entries {
		if entry.IsDir() || !sharesBaseName(entry.Name(), baseName) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}

	return removed, errors.Join(errs...)
}

// FileSize returns the size of the file in bytes
func FileSize(filePath string) (int64, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// sharesBaseName reports whether name is baseName followed by an extension
func sharesBaseName(name, baseName string) bool {
	return strings.HasPrefix(name, baseName+".")
}

// isPartialFile reports whether the file is an in-progress or metadata artifact
func isPartialFile(name string) bool {
	for _, ext := range SkippedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
