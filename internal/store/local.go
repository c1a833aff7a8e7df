package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local stores files in a directory on the local filesystem.
type Local struct {
	dir string
}

// NewLocal returns a Local store rooted at dir. Nothing is created until
// Prepare is called.
func NewLocal(dir string) *Local {
	return &Local{dir: filepath.Clean(dir)}
}

// Dir returns the output directory.
func (l *Local) Dir() string {
	return l.dir
}

// Prepare creates the output directory. An existing directory is reused.
func (l *Local) Prepare(ctx context.Context) (bool, error) {
	fi, err := os.Stat(l.dir)
	switch {
	case err == nil && fi.IsDir():
		return true, nil
	case err == nil:
		return false, fmt.Errorf("create output directory %s: not a directory", l.dir)
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("stat output directory: %w", err)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return false, fmt.Errorf("create output directory: %w", err)
	}
	return false, nil
}

// Location returns the path name resolves to.
func (l *Local) Location(name string) string {
	return filepath.Join(l.dir, name)
}

// Create exclusively creates name. The existence check and the creation are
// a single O_EXCL open, so two transfers racing for one name cannot both win.
func (l *Local) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	f, err := os.OpenFile(l.Location(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, ErrExist
		}
		return nil, fmt.Errorf("create file: %w", err)
	}
	return f, nil
}

// Close is a no-op.
func (l *Local) Close() error {
	return nil
}
