// Package packaging builds the deployment archive for a single source file.
package packaging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// DefaultHandlerFunc is the entry point every source file exports.
const DefaultHandlerFunc = "lambda_handler"

// Archive returns a zip holding only the file at path, stored under its
// base name so the runtime finds it at the archive root.
func Archive(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return nil, fmt.Errorf("zip header for %s: %w", path, err)
	}
	hdr.Name = filepath.Base(path)
	hdr.Method = zip.Deflate

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return nil, fmt.Errorf("zip %s: %w", path, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return nil, fmt.Errorf("zip %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// Handler is the runtime entry point for the source file at path, e.g.
// "items.lambda_handler" for items.py.
func Handler(path, fn string) string {
	if fn == "" {
		fn = DefaultHandlerFunc
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + fn
}
