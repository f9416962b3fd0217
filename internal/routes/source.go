package routes

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source is one candidate route declaration.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// FileSource is a Source backed by a file on disk.
type FileSource string

func (f FileSource) Name() string { return string(f) }

func (f FileSource) Open() (io.ReadCloser, error) { return os.Open(string(f)) }

// ReaderSource is an in-memory Source.
type ReaderSource struct {
	SourceName string
	Content    string
}

func (r ReaderSource) Name() string { return r.SourceName }

func (r ReaderSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(r.Content)), nil
}

// Discover lists the regular files in dir whose name ends in ext, skipping
// any base name listed in exclude. Results are sorted by name.
func Discover(dir, ext string, exclude []string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	var sources []Source
	for _, e := range entries {
		if !e.Type().IsRegular() || skip[e.Name()] || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		sources = append(sources, FileSource(filepath.Join(dir, e.Name())))
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Name() < sources[j].Name() })
	return sources, nil
}
