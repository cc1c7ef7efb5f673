package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"devportal/internal/domain"
	"devportal/internal/domain/models"
	"devportal/internal/domain/repositories"
)

const branchColumns = `id, repository_id, name, description, is_default, is_protected, created_at, updated_at`

// PostgresBranchRepository implements the BranchRepository interface
type PostgresBranchRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewBranchRepository creates a new branch repository
func NewBranchRepository(config *RepositoryConfig) repositories.BranchRepository {
	return &PostgresBranchRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create persists a new branch
func (r *PostgresBranchRepository) Create(ctx context.Context, branch *models.Branch) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, repository_id, name, description, is_default, is_protected, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.tables.Branches)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		branch.ID,
		branch.RepositoryID,
		branch.Name,
		branch.Description,
		branch.IsDefault,
		branch.IsProtected,
		branch.CreatedAt,
		branch.UpdatedAt,
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("branch '%s' already exists", branch.Name),
				ResourceType: "branch",
			}
		}
		return fmt.Errorf("create branch: %w", err)
	}

	return nil
}

// GetByID retrieves a branch by ID
func (r *PostgresBranchRepository) GetByID(ctx context.Context, id string) (*models.Branch, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, branchColumns, r.tables.Branches)

	branch, err := scanBranchRow(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("branch %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}

	return branch, nil
}

// GetByName retrieves a branch by name within a repository
func (r *PostgresBranchRepository) GetByName(ctx context.Context, repositoryID, name string) (*models.Branch, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE repository_id = $1 AND name = $2
	`, branchColumns, r.tables.Branches)

	branch, err := scanBranchRow(GetExecutor(ctx, r.pool).QueryRow(ctx, query, repositoryID, name))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("branch '%s': %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get branch by name: %w", err)
	}

	return branch, nil
}

// ListByRepository lists a repository's branches, default first, then by name
func (r *PostgresBranchRepository) ListByRepository(ctx context.Context, repositoryID string) ([]models.Branch, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE repository_id = $1
		ORDER BY is_default DESC, lower(name) ASC
	`, branchColumns, r.tables.Branches)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	var branches []models.Branch
	for rows.Next() {
		branch, err := scanBranchRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		branches = append(branches, *branch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}

	return branches, nil
}

// GetDefault retrieves the repository's default branch
func (r *PostgresBranchRepository) GetDefault(ctx context.Context, repositoryID string) (*models.Branch, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE repository_id = $1 AND is_default = true
	`, branchColumns, r.tables.Branches)

	branch, err := scanBranchRow(GetExecutor(ctx, r.pool).QueryRow(ctx, query, repositoryID))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("default branch of repository %s: %w", repositoryID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get default branch: %w", err)
	}

	return branch, nil
}

// SetDefault atomically makes branchID the repository's only default branch
func (r *PostgresBranchRepository) SetDefault(ctx context.Context, repositoryID, branchID string) error {
	exec := GetExecutor(ctx, r.pool)

	clear := fmt.Sprintf(`
		UPDATE %s SET is_default = false, updated_at = now()
		WHERE repository_id = $1 AND is_default = true AND id <> $2
	`, r.tables.Branches)
	if _, err := exec.Exec(ctx, clear, repositoryID, branchID); err != nil {
		return fmt.Errorf("clear default branch: %w", err)
	}

	set := fmt.Sprintf(`
		UPDATE %s SET is_default = true, updated_at = now()
		WHERE repository_id = $1 AND id = $2
	`, r.tables.Branches)
	result, err := exec.Exec(ctx, set, repositoryID, branchID)
	if err != nil {
		return fmt.Errorf("set default branch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("branch %s: %w", branchID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a branch record
func (r *PostgresBranchRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Branches)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("branch %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

func scanBranchRow(row pgx.Row) (*models.Branch, error) {
	var branch models.Branch
	err := row.Scan(
		&branch.ID,
		&branch.RepositoryID,
		&branch.Name,
		&branch.Description,
		&branch.IsDefault,
		&branch.IsProtected,
		&branch.CreatedAt,
		&branch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &branch, nil
}
