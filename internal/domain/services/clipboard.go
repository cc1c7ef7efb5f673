package services

import (
	"context"

	"devportal/internal/domain/models"
)

// Clipboard is the per-user copy/cut/paste state machine. Each user holds at
// most one active operation (last-writer-wins); operations expire after a
// fixed TTL and expired operations are treated as absent.
type Clipboard interface {
	// Copy stores a copy intent over the given nodes, replacing any prior
	// operation for the user
	Copy(ctx context.Context, userID string, nodeIDs []string) (*models.ClipboardOperation, error)

	// Cut stores a cut intent over the given nodes, replacing any prior
	// operation for the user
	Cut(ctx context.Context, userID string, nodeIDs []string) (*models.ClipboardOperation, error)

	// Status returns the user's active operation, or (nil, nil) when none
	// exists or it has expired
	Status(ctx context.Context, userID string) (*models.ClipboardOperation, error)

	// Paste applies the active operation under targetParentID (nil = the
	// source scope's root). Cut moves the nodes and clears the clipboard;
	// copy deep-clones them and keeps the clipboard for repeated pasting.
	Paste(ctx context.Context, userID string, targetParentID *string) ([]models.Node, error)

	// Cancel discards the active operation; idempotent
	Cancel(ctx context.Context, userID string) error
}
