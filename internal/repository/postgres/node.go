package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"devportal/internal/domain"
	"devportal/internal/domain/models"
	"devportal/internal/domain/repositories"
)

// nodeColumns is the canonical select list for node rows
const nodeColumns = `id, container_type, container_id, branch_id, parent_id, name, kind,
	storage_ref, mime_type, byte_size, created_at, updated_at, deleted_at`

// PostgresNodeRepository implements the NodeRepository interface.
//
// Sibling-name uniqueness rides on a partial unique index over
// (container_type, container_id, branch_id, parent_id, name) WHERE deleted_at
// IS NULL (see migrations/001_schema.sql), so two concurrent creations under
// the same parent serialize at the database.
type PostgresNodeRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewNodeRepository creates a new node repository
func NewNodeRepository(config *RepositoryConfig) repositories.NodeRepository {
	return &PostgresNodeRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create persists a new node
func (r *PostgresNodeRepository) Create(ctx context.Context, node *models.Node) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, container_type, container_id, branch_id, parent_id, name, kind,
			storage_ref, mime_type, byte_size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, r.tables.Nodes)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		node.ID,
		node.ContainerType,
		node.ContainerID,
		node.BranchID,
		node.ParentID,
		node.Name,
		node.Kind,
		node.StorageRef,
		node.MimeType,
		node.ByteSize,
		node.CreatedAt,
		node.UpdatedAt,
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a sibling named '%s' already exists", node.Name),
				ResourceType: "node",
			}
		}
		return fmt.Errorf("create node: %w", err)
	}

	return nil
}

// GetByID retrieves a node by ID, soft-deleted or not
func (r *PostgresNodeRepository) GetByID(ctx context.Context, id string) (*models.Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, nodeColumns, r.tables.Nodes)

	node, err := scanNodeRow(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get node: %w", err)
	}

	return node, nil
}

// Update persists name/parent changes (rename, move)
func (r *PostgresNodeRepository) Update(ctx context.Context, node *models.Node) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $1, name = $2, updated_at = $3
		WHERE id = $4
	`, r.tables.Nodes)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		node.ParentID,
		node.Name,
		node.UpdatedAt,
		node.ID,
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a sibling named '%s' already exists", node.Name),
				ResourceType: "node",
			}
		}
		return fmt.Errorf("update node: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("node %s: %w", node.ID, domain.ErrNotFound)
	}

	return nil
}

// ListChildren returns non-deleted direct children, folders before files,
// then case-insensitive name order, id as the final tiebreaker
func (r *PostgresNodeRepository) ListChildren(ctx context.Context, scope models.Scope, parentID *string) ([]models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE container_type = $1 AND container_id = $2
		  AND branch_id IS NOT DISTINCT FROM $3
		  AND parent_id IS NOT DISTINCT FROM $4
		  AND deleted_at IS NULL
		ORDER BY (kind = 'folder') DESC, lower(name) ASC, id ASC
	`, nodeColumns, r.tables.Nodes)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query,
		scope.ContainerType, scope.ContainerID, scope.BranchID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	return collectNodes(rows)
}

// GetChildByName finds the non-deleted child with exactly this name.
// Returns (nil, nil) when absent.
func (r *PostgresNodeRepository) GetChildByName(ctx context.Context, scope models.Scope, parentID *string, name string) (*models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE container_type = $1 AND container_id = $2
		  AND branch_id IS NOT DISTINCT FROM $3
		  AND parent_id IS NOT DISTINCT FROM $4
		  AND name = $5
		  AND deleted_at IS NULL
	`, nodeColumns, r.tables.Nodes)

	node, err := scanNodeRow(GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		scope.ContainerType, scope.ContainerID, scope.BranchID, parentID, name))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, nil // Not found, not an error
		}
		return nil, fmt.Errorf("get child by name: %w", err)
	}

	return node, nil
}

// ListSubtree returns the root and every descendant, parents before children
func (r *PostgresNodeRepository) ListSubtree(ctx context.Context, rootID string, includeDeleted bool) ([]models.Node, error) {
	deletedFilter := "AND n.deleted_at IS NULL"
	rootFilter := "AND deleted_at IS NULL"
	if includeDeleted {
		deletedFilter = ""
		rootFilter = ""
	}

	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT %s, 0 AS depth
			FROM %s
			WHERE id = $1 %s
			UNION ALL
			SELECT n.id, n.container_type, n.container_id, n.branch_id, n.parent_id,
				n.name, n.kind, n.storage_ref, n.mime_type, n.byte_size,
				n.created_at, n.updated_at, n.deleted_at, s.depth + 1
			FROM %s n
			JOIN subtree s ON n.parent_id = s.id
			WHERE true %s
		)
		SELECT %s FROM subtree ORDER BY depth ASC, lower(name) ASC, id ASC
	`, nodeColumns, r.tables.Nodes, rootFilter, r.tables.Nodes, deletedFilter, nodeColumns)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, rootID)
	if err != nil {
		return nil, fmt.Errorf("list subtree: %w", err)
	}
	defer rows.Close()

	return collectNodes(rows)
}

// MarkDeleted stamps deletedAt on nodes that are not already deleted
func (r *PostgresNodeRepository) MarkDeleted(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = $2, updated_at = $2
		WHERE id = ANY($1) AND deleted_at IS NULL
	`, r.tables.Nodes)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, ids, at); err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	return nil
}

// ClearDeleted removes the deletedAt mark from the given nodes
func (r *PostgresNodeRepository) ClearDeleted(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = NULL, updated_at = $2
		WHERE id = ANY($1) AND deleted_at IS NOT NULL
	`, r.tables.Nodes)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, ids, at); err != nil {
		return fmt.Errorf("clear deleted: %w", err)
	}
	return nil
}

// ListDeleted returns the soft-deleted nodes of a container scope
func (r *PostgresNodeRepository) ListDeleted(ctx context.Context, scope models.Scope) ([]models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE container_type = $1 AND container_id = $2
		  AND branch_id IS NOT DISTINCT FROM $3
		  AND deleted_at IS NOT NULL
		ORDER BY deleted_at DESC, id ASC
	`, nodeColumns, r.tables.Nodes)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query,
		scope.ContainerType, scope.ContainerID, scope.BranchID)
	if err != nil {
		return nil, fmt.Errorf("list deleted: %w", err)
	}
	defer rows.Close()

	return collectNodes(rows)
}

// SearchByName finds non-deleted nodes by case-insensitive name substring
func (r *PostgresNodeRepository) SearchByName(ctx context.Context, scope models.Scope, query string) ([]models.Node, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE container_type = $1 AND container_id = $2
		  AND branch_id IS NOT DISTINCT FROM $3
		  AND name ILIKE '%%' || $4 || '%%'
		  AND deleted_at IS NULL
		ORDER BY (kind = 'folder') DESC, lower(name) ASC, id ASC
	`, nodeColumns, r.tables.Nodes)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, sql,
		scope.ContainerType, scope.ContainerID, scope.BranchID, query)
	if err != nil {
		return nil, fmt.Errorf("search nodes: %w", err)
	}
	defer rows.Close()

	return collectNodes(rows)
}

// Aggregate computes file/folder counts and total bytes over non-deleted nodes
func (r *PostgresNodeRepository) Aggregate(ctx context.Context, scope models.Scope) (*models.ContainerStats, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE kind = 'file'),
			COUNT(*) FILTER (WHERE kind = 'folder'),
			COALESCE(SUM(byte_size) FILTER (WHERE kind = 'file'), 0)
		FROM %s
		WHERE container_type = $1 AND container_id = $2
		  AND branch_id IS NOT DISTINCT FROM $3
		  AND deleted_at IS NULL
	`, r.tables.Nodes)

	var stats models.ContainerStats
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		scope.ContainerType, scope.ContainerID, scope.BranchID).Scan(
		&stats.FileCount,
		&stats.FolderCount,
		&stats.TotalBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate nodes: %w", err)
	}

	return &stats, nil
}

// scanNodeRow scans a single node row selected with nodeColumns
func scanNodeRow(row pgx.Row) (*models.Node, error) {
	var node models.Node
	err := row.Scan(
		&node.ID,
		&node.ContainerType,
		&node.ContainerID,
		&node.BranchID,
		&node.ParentID,
		&node.Name,
		&node.Kind,
		&node.StorageRef,
		&node.MimeType,
		&node.ByteSize,
		&node.CreatedAt,
		&node.UpdatedAt,
		&node.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// collectNodes drains rows selected with nodeColumns (extra trailing columns
// are not supported; subtree queries must re-select the canonical list)
func collectNodes(rows pgx.Rows) ([]models.Node, error) {
	var nodes []models.Node
	for rows.Next() {
		node, err := scanNodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}

	return nodes, nil
}
