// Package archive reads and writes the compressed snapshot containers used by
// the backup pipeline: one zip file holding exactly one JSON payload.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoJSONEntry is returned when an archive holds no JSON payload.
var ErrNoJSONEntry = errors.New("archive contains no json entry")

// WriteJSON creates a zip archive at zipPath containing a single entry with
// the given payload. An existing file at zipPath is truncated.
func WriteJSON(zipPath, entryName string, payload []byte) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create archive %q: %w", zipPath, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	entry, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("create archive entry %q: %w", entryName, err)
	}
	if _, err := entry.Write(payload); err != nil {
		return fmt.Errorf("write archive entry %q: %w", entryName, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive %q: %w", zipPath, err)
	}
	return f.Close()
}

// ExtractJSON unpacks the first JSON entry of the archive into destDir and
// returns the extracted file path. Entries that would escape destDir are
// rejected.
func ExtractJSON(zipPath, destDir string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("open archive %q: %w", zipPath, err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || !strings.HasSuffix(entry.Name, ".json") {
			continue
		}

		dest := filepath.Join(destDir, filepath.Base(entry.Name))
		if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return "", fmt.Errorf("archive entry %q escapes extraction dir", entry.Name)
		}

		src, err := entry.Open()
		if err != nil {
			return "", fmt.Errorf("open archive entry %q: %w", entry.Name, err)
		}

		out, err := os.Create(dest)
		if err != nil {
			src.Close()
			return "", fmt.Errorf("create extracted file %q: %w", dest, err)
		}

		_, copyErr := io.Copy(out, src)
		src.Close()
		if closeErr := out.Close(); copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			return "", fmt.Errorf("extract archive entry %q: %w", entry.Name, copyErr)
		}

		return dest, nil
	}

	return "", ErrNoJSONEntry
}
