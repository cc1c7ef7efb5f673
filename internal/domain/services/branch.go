package services

import (
	"context"

	"devportal/internal/domain/models"
)

// BranchService handles repository branch business logic
type BranchService interface {
	// CreateBranch creates a named branch; names are unique per repository.
	// The repository's first branch becomes its default.
	CreateBranch(ctx context.Context, req *CreateBranchRequest) (*models.Branch, error)

	// ListBranches lists a repository's branches, default first
	ListBranches(ctx context.Context, repositoryID string) ([]models.Branch, error)

	// GetBranch retrieves a branch by name
	GetBranch(ctx context.Context, repositoryID, name string) (*models.Branch, error)

	// DefaultBranch retrieves the repository's default branch
	DefaultBranch(ctx context.Context, repositoryID string) (*models.Branch, error)

	// SetDefaultBranch makes the named branch the repository's default
	SetDefaultBranch(ctx context.Context, repositoryID, name string) error

	// DeleteBranch removes a branch; the default branch and protected
	// branches are refused
	DeleteBranch(ctx context.Context, repositoryID, name string) error
}

// CreateBranchRequest represents a branch creation request
type CreateBranchRequest struct {
	RepositoryID string  `json:"-"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	IsProtected  bool    `json:"is_protected,omitempty"`
}
