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

// NodeRepository implements repositories.NodeRepository over the arena
type NodeRepository struct {
	store *Store
}

// NewNodeRepository creates a node repository over the store
func NewNodeRepository(store *Store) repositories.NodeRepository {
	return &NodeRepository{store: store}
}

// Create persists a new node, enforcing sibling-name uniqueness under the
// arena's write lock
func (r *NodeRepository) Create(ctx context.Context, node *models.Node) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	if r.siblingExists(models.ScopeOf(node), node.ParentID, node.Name, "") {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("a sibling named '%s' already exists", node.Name),
			ResourceType: "node",
		}
	}

	c := *node
	r.store.nodes[node.ID] = &c
	return nil
}

// GetByID retrieves a node by ID, soft-deleted or not
func (r *NodeRepository) GetByID(ctx context.Context, id string) (*models.Node, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()

	node, ok := r.store.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	c := *node
	return &c, nil
}

// Update persists name/parent changes
func (r *NodeRepository) Update(ctx context.Context, node *models.Node) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	existing, ok := r.store.nodes[node.ID]
	if !ok {
		return fmt.Errorf("node %s: %w", node.ID, domain.ErrNotFound)
	}

	if r.siblingExists(models.ScopeOf(node), node.ParentID, node.Name, node.ID) {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("a sibling named '%s' already exists", node.Name),
			ResourceType: "node",
		}
	}

	existing.ParentID = node.ParentID
	existing.Name = node.Name
	existing.UpdatedAt = node.UpdatedAt
	return nil
}

// ListChildren returns non-deleted direct children in display order
func (r *NodeRepository) ListChildren(ctx context.Context, scope models.Scope, parentID *string) ([]models.Node, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()

	var children []models.Node
	for _, n := range r.store.nodes {
		if n.DeletedAt == nil && models.ScopeOf(n).SameAs(scope) && sameParent(n.ParentID, parentID) {
			children = append(children, *n)
		}
	}
	sortNodes(children)
	return children, nil
}

// GetChildByName finds the non-deleted child with exactly this name
func (r *NodeRepository) GetChildByName(ctx context.Context, scope models.Scope, parentID *string, name string) (*models.Node, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()

	if n := r.findChild(scope, parentID, name); n != nil {
		c := *n
		return &c, nil
	}
	return nil, nil
}

// ListSubtree returns the root and every descendant, parents before children
func (r *NodeRepository) ListSubtree(ctx context.Context, rootID string, includeDeleted bool) ([]models.Node, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()

	root, ok := r.store.nodes[rootID]
	if !ok || (!includeDeleted && root.DeletedAt != nil) {
		return nil, nil
	}

	// children index for a breadth-first walk
	byParent := make(map[string][]*models.Node)
	for _, n := range r.store.nodes {
		if n.ParentID == nil {
			continue
		}
		if !includeDeleted && n.DeletedAt != nil {
			continue
		}
		byParent[*n.ParentID] = append(byParent[*n.ParentID], n)
	}

	var result []models.Node
	queue := []*models.Node{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, *current)

		level := append([]*models.Node(nil), byParent[current.ID]...)
		sort.Slice(level, func(i, j int) bool { return nodeLess(*level[i], *level[j]) })
		queue = append(queue, level...)
	}
	return result, nil
}

// MarkDeleted stamps deletedAt on nodes that are not already deleted
func (r *NodeRepository) MarkDeleted(ctx context.Context, ids []string, at time.Time) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	for _, id := range ids {
		if n, ok := r.store.nodes[id]; ok && n.DeletedAt == nil {
			stamp := at
			n.DeletedAt = &stamp
			n.UpdatedAt = at
		}
	}
	return nil
}

// ClearDeleted removes the deletedAt mark from the given nodes
func (r *NodeRepository) ClearDeleted(ctx context.Context, ids []string, at time.Time) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	for _, id := range ids {
		if n, ok := r.store.nodes[id]; ok && n.DeletedAt != nil {
			n.DeletedAt = nil
			n.UpdatedAt = at
		}
	}
	return nil
}

// ListDeleted returns the soft-deleted nodes of a container scope
func (r *NodeRepository) ListDeleted(ctx context.Context, scope models.Scope) ([]models.Node, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()

	var deleted []models.Node
	for _, n := range r.store.nodes {
		if n.DeletedAt != nil && models.ScopeOf(n).SameAs(scope) {
			deleted = append(deleted, *n)
		}
	}
	sort.Slice(deleted, func(i, j int) bool {
		if !deleted[i].DeletedAt.Equal(*deleted[j].DeletedAt) {
			return deleted[i].DeletedAt.After(*deleted[j].DeletedAt)
		}
		return deleted[i].ID < deleted[j].ID
	})
	return deleted, nil
}

// SearchByName finds non-deleted nodes by case-insensitive name substring
func (r *NodeRepository) SearchByName(ctx context.Context, scope models.Scope, query string) ([]models.Node, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()

	needle := strings.ToLower(query)
	var matches []models.Node
	for _, n := range r.store.nodes {
		if n.DeletedAt == nil && models.ScopeOf(n).SameAs(scope) &&
			strings.Contains(strings.ToLower(n.Name), needle) {
			matches = append(matches, *n)
		}
	}
	sortNodes(matches)
	return matches, nil
}

// Aggregate computes file/folder counts and total bytes over non-deleted nodes
func (r *NodeRepository) Aggregate(ctx context.Context, scope models.Scope) (*models.ContainerStats, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()

	var stats models.ContainerStats
	for _, n := range r.store.nodes {
		if n.DeletedAt != nil || !models.ScopeOf(n).SameAs(scope) {
			continue
		}
		switch n.Kind {
		case models.KindFile:
			stats.FileCount++
			stats.TotalBytes += n.ByteSize
		case models.KindFolder:
			stats.FolderCount++
		}
	}
	return &stats, nil
}

// findChild must be called with the lock held
func (r *NodeRepository) findChild(scope models.Scope, parentID *string, name string) *models.Node {
	for _, n := range r.store.nodes {
		if n.DeletedAt == nil && models.ScopeOf(n).SameAs(scope) &&
			sameParent(n.ParentID, parentID) && n.Name == name {
			return n
		}
	}
	return nil
}

// siblingExists must be called with the lock held
func (r *NodeRepository) siblingExists(scope models.Scope, parentID *string, name, excludeID string) bool {
	n := r.findChild(scope, parentID, name)
	return n != nil && n.ID != excludeID
}

func sameParent(a, b *string) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

// sortNodes orders folders before files, then case-insensitive name, then id
func sortNodes(nodes []models.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodeLess(nodes[i], nodes[j]) })
}

func nodeLess(a, b models.Node) bool {
	if a.Kind != b.Kind {
		return a.Kind == models.KindFolder
	}
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an != bn {
		return an < bn
	}
	return a.ID < b.ID
}
