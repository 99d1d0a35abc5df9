// Package archive expands downloaded zip payloads into in-memory
// directory trees.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/mmcdole/boxcat/internal/vfs"
)

// ExtractZip expands a zip payload into a fresh in-memory directory
// tree. Entries with names that would escape the tree root are rejected.
func ExtractZip(data []byte) (*vfs.Dir, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip payload: %w", err)
	}

	root := vfs.MemDir()
	for _, file := range reader.File {
		name, err := sanitizeName(file.Name)
		if err != nil {
			return nil, err
		}
		if name == "" {
			continue
		}
		if file.FileInfo().IsDir() {
			if _, err := root.CreateSubdirectory(name); err != nil {
				return nil, fmt.Errorf("failed to create directory %q: %w", name, err)
			}
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open zip entry %q: %w", name, err)
		}
		contents, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read zip entry %q: %w", name, err)
		}
		if err := root.WriteFile(name, contents); err != nil {
			return nil, fmt.Errorf("failed to write zip entry %q: %w", name, err)
		}
	}

	return root, nil
}

// sanitizeName normalizes a zip entry name and rejects path traversal.
func sanitizeName(name string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("zip entry %q escapes archive root", name)
	}
	return cleaned, nil
}
