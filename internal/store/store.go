package store

import (
	"context"
	"errors"
	"io"
)

// ErrExist is returned by Create when the destination already exists.
var ErrExist = errors.New("store: destination already exists")

// Store is where transfers persist response bodies.
type Store interface {
	// Prepare makes the destination location usable. existed reports whether
	// it was already there. It is called once per run, before any request.
	Prepare(ctx context.Context) (existed bool, err error)

	// Location returns a human-readable location for name.
	Location(name string) string

	// Create creates name for writing. It returns ErrExist when name is
	// already present; existing content is never touched.
	Create(ctx context.Context, name string) (io.WriteCloser, error)

	// Close releases resources held by the store.
	Close() error
}
