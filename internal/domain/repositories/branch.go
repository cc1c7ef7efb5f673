package repositories

import (
	"context"

	"devportal/internal/domain/models"
)

// BranchRepository defines data access operations for repository branches
type BranchRepository interface {
	// Create persists a new branch. Returns domain.ErrConflict when the
	// repository already has a branch with this name.
	Create(ctx context.Context, branch *models.Branch) error

	// GetByID retrieves a branch by ID
	GetByID(ctx context.Context, id string) (*models.Branch, error)

	// GetByName retrieves a branch by name within a repository
	GetByName(ctx context.Context, repositoryID, name string) (*models.Branch, error)

	// ListByRepository lists a repository's branches, default first, then by name
	ListByRepository(ctx context.Context, repositoryID string) ([]models.Branch, error)

	// GetDefault retrieves the repository's default branch
	GetDefault(ctx context.Context, repositoryID string) (*models.Branch, error)

	// SetDefault atomically makes branchID the repository's only default branch
	SetDefault(ctx context.Context, repositoryID, branchID string) error

	// Delete removes a branch record
	Delete(ctx context.Context, id string) error
}
