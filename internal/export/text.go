// Package export saves recognition results to disk.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtension is appended by TextPath when the target has none.
const DefaultExtension = ".txt"

// WriteText writes text to path, creating parent directories. The file is
// written to a temporary sibling and renamed into place, so readers never
// observe a partial file. A trailing newline is added if missing.
func WriteText(path, text string) error {
	if path == "" {
		return fmt.Errorf("export: empty output path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("export: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("export: rename into %s: %w", path, err)
	}
	return nil
}

// TextPath derives the default output path for an image: the same directory
// and base name with DefaultExtension.
func TextPath(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + DefaultExtension
}
