// Package assets uploads the static files listed in an asset manifest:
//
//	S3_BUCKET: <bucket>
//	index.html #HOMEPAGE
//	app.js
package assets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	bucketTag   = "S3_BUCKET:"
	homepageTag = "#HOMEPAGE"
)

var ErrInvalidManifest = errors.New("invalid asset manifest")

type Manifest struct {
	Bucket   string
	Files    []string
	Homepage string
}

func ParseManifestFile(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return ParseManifest(f)
}

// ParseManifest reads the bucket line and one file per line after it.
// Blank lines are ignored.
func ParseManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	s := bufio.NewScanner(r)
	n := 0
	for s.Scan() {
		n++
		fields := strings.Fields(s.Text())
		if len(fields) == 0 {
			continue
		}

		if m.Bucket == "" {
			if len(fields) != 2 || fields[0] != bucketTag {
				return Manifest{}, fmt.Errorf("%w: line %d: expected %q, found %q", ErrInvalidManifest, n, bucketTag+" <bucket>", s.Text())
			}
			m.Bucket = fields[1]
			continue
		}

		switch {
		case len(fields) == 1:
		case len(fields) == 2 && fields[1] == homepageTag:
			if m.Homepage != "" {
				return Manifest{}, fmt.Errorf("%w: line %d: second %s entry", ErrInvalidManifest, n, homepageTag)
			}
			m.Homepage = fields[0]
		default:
			return Manifest{}, fmt.Errorf("%w: line %d: expected \"<file> [%s]\", found %q", ErrInvalidManifest, n, homepageTag, s.Text())
		}
		m.Files = append(m.Files, fields[0])
	}
	if err := s.Err(); err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	if m.Bucket == "" {
		return Manifest{}, fmt.Errorf("%w: missing %s line", ErrInvalidManifest, bucketTag)
	}
	return m, nil
}
