package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ErrBucketNotAccessible is returned by Bucket.Prepare when the bucket cannot
// be reached or does not exist.
var ErrBucketNotAccessible = errors.New("store: bucket not accessible")

// Bucket stores objects in a gocloud blob bucket (s3://, gs://, file://, mem://).
//
// Object stores have no exclusive create, so Create checks for the key and
// then writes it. Two transfers racing for the same key may both write; the
// last writer wins.
type Bucket struct {
	bucket *blob.Bucket
	base   string
}

// OpenBucket opens the bucket at bucketURL using the registered URL openers.
func OpenBucket(ctx context.Context, bucketURL string) (*Bucket, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	return NewBucket(b, bucketURL), nil
}

// NewBucket wraps an open bucket. bucketURL is used for display only.
func NewBucket(b *blob.Bucket, bucketURL string) *Bucket {
	base := bucketURL
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	return &Bucket{bucket: b, base: strings.TrimSuffix(base, "/")}
}

// Prepare verifies the bucket is reachable. Buckets are never created.
func (b *Bucket) Prepare(ctx context.Context) (bool, error) {
	ok, err := b.bucket.IsAccessible(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBucketNotAccessible, err)
	}
	if !ok {
		return false, ErrBucketNotAccessible
	}
	return true, nil
}

// Location returns the bucket URL of name.
func (b *Bucket) Location(name string) string {
	return b.base + "/" + name
}

// Create opens a writer for name unless the key already exists. The object
// becomes visible when the writer is closed.
func (b *Bucket) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	exists, err := b.bucket.Exists(ctx, name)
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return nil, fmt.Errorf("check object: %w", err)
	}
	if exists {
		return nil, ErrExist
	}

	w, err := b.bucket.NewWriter(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("create writer: %w", err)
	}
	return w, nil
}

// Close closes the underlying bucket.
func (b *Bucket) Close() error {
	return b.bucket.Close()
}
