package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// GetPathInfo resolves relPath to an absolute path with symlinks evaluated,
// as reported by file watchers, along with its parent directory.
func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}
	if resolved, err := filepath.EvalSymlinks(fullPath); err == nil {
		fullPath = resolved
	}
	return fullPath, filepath.Dir(fullPath), nil
}

// OutputPath replaces the extension of inPath with ext.
func OutputPath(inPath, ext string) string {
	return strings.TrimSuffix(inPath, filepath.Ext(inPath)) + ext
}

// WriteFile writes data to path, creating its directory if needed.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
