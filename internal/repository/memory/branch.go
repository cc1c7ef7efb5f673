package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"devportal/internal/domain"
	"devportal/internal/domain/models"
	"devportal/internal/domain/repositories"
)

// BranchRepository implements repositories.BranchRepository over the arena
type BranchRepository struct {
	store *Store
}

// NewBranchRepository creates a branch repository over the store
func NewBranchRepository(store *Store) repositories.BranchRepository {
	return &BranchRepository{store: store}
}

// Create persists a new branch, enforcing per-repository name uniqueness
func (r *BranchRepository) Create(ctx context.Context, branch *models.Branch) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	for _, b := range r.store.branches {
		if b.RepositoryID == branch.RepositoryID && b.Name == branch.Name {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("branch '%s' already exists", branch.Name),
				ResourceType: "branch",
				ResourceID:   b.ID,
			}
		}
	}

	c := *branch
	r.store.branches[branch.ID] = &c
	return nil
}

// GetByID retrieves a branch by ID
func (r *BranchRepository) GetByID(ctx context.Context, id string) (*models.Branch, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()

	branch, ok := r.store.branches[id]
	if !ok {
		return nil, fmt.Errorf("branch %s: %w", id, domain.ErrNotFound)
	}
	c := *branch
	return &c, nil
}

// GetByName retrieves a branch by name within a repository
func (r *BranchRepository) GetByName(ctx context.Context, repositoryID, name string) (*models.Branch, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()

	for _, b := range r.store.branches {
		if b.RepositoryID == repositoryID && b.Name == name {
			c := *b
			return &c, nil
		}
	}
	return nil, fmt.Errorf("branch '%s': %w", name, domain.ErrNotFound)
}

// ListByRepository lists a repository's branches, default first, then by name
func (r *BranchRepository) ListByRepository(ctx context.Context, repositoryID string) ([]models.Branch, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()

	var branches []models.Branch
	for _, b := range r.store.branches {
		if b.RepositoryID == repositoryID {
			branches = append(branches, *b)
		}
	}
	sort.Slice(branches, func(i, j int) bool {
		if branches[i].IsDefault != branches[j].IsDefault {
			return branches[i].IsDefault
		}
		return strings.ToLower(branches[i].Name) < strings.ToLower(branches[j].Name)
	})
	return branches, nil
}

// GetDefault retrieves the repository's default branch
func (r *BranchRepository) GetDefault(ctx context.Context, repositoryID string) (*models.Branch, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()

	for _, b := range r.store.branches {
		if b.RepositoryID == repositoryID && b.IsDefault {
			c := *b
			return &c, nil
		}
	}
	return nil, fmt.Errorf("default branch of repository %s: %w", repositoryID, domain.ErrNotFound)
}

// SetDefault makes branchID the repository's only default branch
func (r *BranchRepository) SetDefault(ctx context.Context, repositoryID, branchID string) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	target, ok := r.store.branches[branchID]
	if !ok || target.RepositoryID != repositoryID {
		return fmt.Errorf("branch %s: %w", branchID, domain.ErrNotFound)
	}

	now := time.Now()
	for _, b := range r.store.branches {
		if b.RepositoryID == repositoryID && b.IsDefault && b.ID != branchID {
			b.IsDefault = false
			b.UpdatedAt = now
		}
	}
	target.IsDefault = true
	target.UpdatedAt = now
	return nil
}

// Delete removes a branch record
func (r *BranchRepository) Delete(ctx context.Context, id string) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	if _, ok := r.store.branches[id]; !ok {
		return fmt.Errorf("branch %s: %w", id, domain.ErrNotFound)
	}
	delete(r.store.branches, id)
	return nil
}
