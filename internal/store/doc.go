// Package store provides the destinations downloads are written to.
//
// Two implementations exist:
//   - Local: a directory on disk, created once per run, files created with
//     O_EXCL so an existing file is never overwritten
//   - Bucket: any gocloud.dev/blob bucket (s3://, gs://, file://, mem://)
//
// Both report an existing destination as ErrExist, which callers treat as
// a skip.
package store
