package repositories

import (
	"context"
	"time"

	"devportal/internal/domain/models"
)

// NodeRepository defines data access operations for the node tree.
//
// Implementations must enforce sibling-name uniqueness atomically with Create
// and Update (two concurrent creations under the same parent must not both
// succeed) and surface the collision as domain.ErrConflict.
type NodeRepository interface {
	// Create persists a new node. Returns domain.ErrConflict when a
	// non-deleted sibling with the same name already exists in the scope.
	Create(ctx context.Context, node *models.Node) error

	// GetByID retrieves a node by ID, soft-deleted or not.
	// Returns domain.ErrNotFound when no such row exists.
	GetByID(ctx context.Context, id string) (*models.Node, error)

	// Update persists name/parent changes (rename, move). Sibling uniqueness
	// is enforced the same way as Create.
	Update(ctx context.Context, node *models.Node) error

	// ListChildren returns the non-deleted direct children of parentID
	// (nil = scope root), folders before files, then case-insensitive name
	// order with id as the final tiebreaker.
	ListChildren(ctx context.Context, scope models.Scope, parentID *string) ([]models.Node, error)

	// GetChildByName finds the non-deleted child of parentID with exactly
	// this name. Returns (nil, nil) when absent.
	GetChildByName(ctx context.Context, scope models.Scope, parentID *string, name string) (*models.Node, error)

	// ListSubtree returns root and every descendant, depth-first parent
	// before child. includeDeleted controls whether soft-deleted nodes are
	// part of the walk (restore needs them, everything else does not).
	ListSubtree(ctx context.Context, rootID string, includeDeleted bool) ([]models.Node, error)

	// MarkDeleted stamps deletedAt on the given nodes. Already-deleted nodes
	// keep their original timestamp (soft delete is idempotent).
	MarkDeleted(ctx context.Context, ids []string, at time.Time) error

	// ClearDeleted removes the deletedAt mark from the given nodes.
	ClearDeleted(ctx context.Context, ids []string, at time.Time) error

	// ListDeleted returns the soft-deleted nodes of one container scope.
	ListDeleted(ctx context.Context, scope models.Scope) ([]models.Node, error)

	// SearchByName finds non-deleted nodes whose name contains the query,
	// case-insensitively, within one container scope.
	SearchByName(ctx context.Context, scope models.Scope, query string) ([]models.Node, error)

	// Aggregate computes file/folder counts and total bytes over the
	// non-deleted nodes of one container scope.
	Aggregate(ctx context.Context, scope models.Scope) (*models.ContainerStats, error)
}
