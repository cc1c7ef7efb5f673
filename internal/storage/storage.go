// Package storage is the blob store boundary: opaque byte storage addressed
// by a reference string. Node rows link to blobs by reference; writes happen
// before the referencing row is committed (write-then-link), so a failed
// write never leaves a dangling node.
package storage

import (
	"context"
	"io"
)

// BlobStore stores opaque byte streams. Assumed durable and strongly
// consistent after Put returns.
type BlobStore interface {
	// Put writes the stream and returns its reference and byte count
	Put(ctx context.Context, r io.Reader) (ref string, size int64, err error)

	// Get opens the blob for reading; the caller must close it
	Get(ctx context.Context, ref string) (io.ReadCloser, error)

	// Delete removes the blob; deleting an absent ref is not an error
	Delete(ctx context.Context, ref string) error
}
