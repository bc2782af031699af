package app

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DirDownloads saves schedule archives into a directory on disk. It
// satisfies schedule.Downloads.
type DirDownloads struct {
	dir string
}

// NewDownloads builds a downloads sink rooted at dir, defaulting to
// the working directory.
func NewDownloads(dir string) (*DirDownloads, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve download directory")
		}
		dir = wd
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create download directory")
	}

	return &DirDownloads{dir: dir}, nil
}

// Save writes the blob under its reported filename, stripped of any
// path components the server may have sent.
func (d *DirDownloads) Save(filename string, data []byte) error {
	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return errors.Errorf("invalid archive filename %q", filename)
	}

	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save archive")
	}

	return nil
}
