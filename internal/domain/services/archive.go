package services

import (
	"context"
	"io"

	"devportal/internal/domain/models"
)

// ArchiveTranscoder converts between folder subtrees and zip byte streams.
type ArchiveTranscoder interface {
	// CompressFolder writes the folder's non-deleted subtree to w as a zip
	// stream. Entry names are the /-joined paths from the compressed folder
	// (exclusive) to each node; empty folders become directory entries.
	CompressFolder(ctx context.Context, nodeID string, w io.Writer) error

	// DecompressZip reads a zip stream and reconstructs its entries as nodes
	// under parentID (nil = scope root), reusing existing folders at each
	// position. Returns domain.ErrFormat for a stream that is not a valid
	// archive; a failure aborts the whole operation and leaves no blob store
	// write unreferenced.
	DecompressZip(ctx context.Context, r io.Reader, scope models.Scope, parentID *string) ([]models.Node, error)
}
