package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"devportal/internal/domain"
	"devportal/internal/domain/models"
	"devportal/internal/domain/repositories"
	"devportal/internal/domain/services"
	"devportal/internal/storage"
)

// userClipboard serializes clipboard mutations per user. Different users
// never contend; the xsync map shards access to the holders themselves.
type userClipboard struct {
	mu sync.Mutex
	op *models.ClipboardOperation
}

type clipboardService struct {
	users     *xsync.Map[string, *userClipboard]
	nodeRepo  repositories.NodeRepository
	blobs     storage.BlobStore
	txManager repositories.TransactionManager
	ttl       time.Duration
	logger    *slog.Logger

	now func() time.Time // overridable in tests
}

// NewClipboard creates a new clipboard service
func NewClipboard(
	nodeRepo repositories.NodeRepository,
	blobs storage.BlobStore,
	txManager repositories.TransactionManager,
	ttl time.Duration,
	logger *slog.Logger,
) services.Clipboard {
	return &clipboardService{
		users:     xsync.NewMap[string, *userClipboard](),
		nodeRepo:  nodeRepo,
		blobs:     blobs,
		txManager: txManager,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// Copy stores a copy intent over the given nodes
func (s *clipboardService) Copy(ctx context.Context, userID string, nodeIDs []string) (*models.ClipboardOperation, error) {
	return s.record(ctx, userID, models.ClipboardCopy, nodeIDs)
}

// Cut stores a cut intent over the given nodes
func (s *clipboardService) Cut(ctx context.Context, userID string, nodeIDs []string) (*models.ClipboardOperation, error) {
	return s.record(ctx, userID, models.ClipboardCut, nodeIDs)
}

func (s *clipboardService) record(ctx context.Context, userID string, opType models.ClipboardOpType, nodeIDs []string) (*models.ClipboardOperation, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", domain.ErrValidation)
	}

	nodes, err := s.loadSelection(ctx, nodeIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	op := &models.ClipboardOperation{
		ID:            uuid.New().String(),
		UserID:        userID,
		OperationType: opType,
		NodeIDs:       make([]string, len(nodes)),
		SourceScope:   models.ScopeOf(&nodes[0]),
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	for i := range nodes {
		op.NodeIDs[i] = nodes[i].ID
	}

	holder := s.holder(userID)
	holder.mu.Lock()
	holder.op = op // last writer wins
	holder.mu.Unlock()

	s.logger.Info("clipboard recorded",
		"user_id", userID,
		"operation", opType,
		"nodes", len(op.NodeIDs),
	)
	return op, nil
}

// Status returns the user's active operation, lazily purging expired ones
func (s *clipboardService) Status(ctx context.Context, userID string) (*models.ClipboardOperation, error) {
	holder, ok := s.users.Load(userID)
	if !ok {
		return nil, nil
	}

	holder.mu.Lock()
	defer holder.mu.Unlock()
	if holder.op == nil {
		return nil, nil
	}
	if holder.op.Expired(s.now()) {
		holder.op = nil
		return nil, nil
	}
	return holder.op, nil
}

// Cancel discards the active operation; idempotent
func (s *clipboardService) Cancel(ctx context.Context, userID string) error {
	holder, ok := s.users.Load(userID)
	if !ok {
		return nil
	}
	holder.mu.Lock()
	holder.op = nil
	holder.mu.Unlock()
	return nil
}

// Paste applies the user's active operation under targetParentID (nil = the
// source scope's root). Cut moves and clears the clipboard; copy deep-clones
// and leaves the clipboard in place for repeated pasting.
func (s *clipboardService) Paste(ctx context.Context, userID string, targetParentID *string) ([]models.Node, error) {
	holder, ok := s.users.Load(userID)
	if !ok {
		return nil, fmt.Errorf("no active clipboard: %w", domain.ErrConflict)
	}

	holder.mu.Lock()
	defer holder.mu.Unlock()

	op := holder.op
	if op == nil || op.Expired(s.now()) {
		holder.op = nil
		return nil, fmt.Errorf("no active clipboard: %w", domain.ErrConflict)
	}

	if err := s.checkPasteTarget(ctx, op, targetParentID); err != nil {
		return nil, err
	}

	switch op.OperationType {
	case models.ClipboardCut:
		moved, err := s.pasteCut(ctx, op, targetParentID)
		if err != nil {
			return nil, err
		}
		holder.op = nil // cut is consumed by a successful paste
		return moved, nil
	case models.ClipboardCopy:
		return s.pasteCopy(ctx, op, targetParentID)
	default:
		return nil, fmt.Errorf("unknown clipboard operation '%s': %w", op.OperationType, domain.ErrValidation)
	}
}

// checkPasteTarget validates that the destination is a non-deleted folder in
// the operation's source scope (or that scope's root when nil).
func (s *clipboardService) checkPasteTarget(ctx context.Context, op *models.ClipboardOperation, targetParentID *string) error {
	if targetParentID == nil {
		return nil
	}

	parent, err := s.nodeRepo.GetByID(ctx, *targetParentID)
	if err != nil {
		return fmt.Errorf("paste target: %w", err)
	}
	if parent.IsDeleted() {
		return fmt.Errorf("paste target %s: %w", *targetParentID, domain.ErrNotFound)
	}
	if !parent.IsFolder() {
		return fmt.Errorf("paste target is not a folder: %w", domain.ErrValidation)
	}
	if !models.ScopeOf(parent).SameAs(op.SourceScope) {
		return fmt.Errorf("paste target belongs to a different container or branch: %w", domain.ErrValidation)
	}

	// Pasting a cut folder inside its own subtree would orphan the chain
	for _, id := range op.NodeIDs {
		current := parent
		for {
			if current.ID == id {
				return fmt.Errorf("cannot paste a folder into its own subtree: %w", domain.ErrValidation)
			}
			if current.ParentID == nil {
				break
			}
			current, err = s.nodeRepo.GetByID(ctx, *current.ParentID)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// pasteCut re-validates every node, checks the destination for name
// collisions, then reparents the whole selection in one transaction. Any
// failure leaves the clipboard and the tree untouched.
func (s *clipboardService) pasteCut(ctx context.Context, op *models.ClipboardOperation, targetParentID *string) ([]models.Node, error) {
	nodes, err := s.loadSelection(ctx, op.NodeIDs)
	if err != nil {
		return nil, err
	}

	for i := range nodes {
		existing, err := s.nodeRepo.GetChildByName(ctx, op.SourceScope, targetParentID, nodes[i].Name)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != nodes[i].ID {
			return nil, &domain.ConflictError{
				Message:      fmt.Sprintf("destination already contains '%s'", nodes[i].Name),
				ResourceType: "node",
				ResourceID:   existing.ID,
			}
		}
	}

	now := s.now()
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		for i := range nodes {
			nodes[i].ParentID = targetParentID
			nodes[i].UpdatedAt = now
			if err := s.nodeRepo.Update(txCtx, &nodes[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("clipboard cut pasted",
		"user_id", op.UserID,
		"nodes", len(nodes),
		"target_parent_id", targetParentID,
	)
	return nodes, nil
}

// pasteCopy deep-clones each selected subtree under the destination. File
// content is duplicated blob by blob before any node row is written; a failed
// transaction deletes the duplicated blobs again.
func (s *clipboardService) pasteCopy(ctx context.Context, op *models.ClipboardOperation, targetParentID *string) ([]models.Node, error) {
	roots, err := s.loadSelection(ctx, op.NodeIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	claimed := make(map[string]bool)
	var created []models.Node
	var pasted []models.Node
	var newRefs []string

	cleanup := func() {
		for _, ref := range newRefs {
			if delErr := s.blobs.Delete(ctx, ref); delErr != nil {
				s.logger.Warn("copy blob cleanup failed", "ref", ref, "error", delErr)
			}
		}
	}

	for i := range roots {
		subtree, err := s.nodeRepo.ListSubtree(ctx, roots[i].ID, false)
		if err != nil {
			cleanup()
			return nil, err
		}

		name, err := s.availableName(ctx, op.SourceScope, targetParentID, roots[i].Name, claimed)
		if err != nil {
			cleanup()
			return nil, err
		}
		claimed[name] = true

		// Subtree comes back parents-before-children, so every clone's
		// parent is already mapped by the time it is reached.
		idMap := make(map[string]string, len(subtree))
		for j := range subtree {
			src := subtree[j]
			clone := src
			clone.ID = uuid.New().String()
			clone.CreatedAt = now
			clone.UpdatedAt = now
			clone.DeletedAt = nil
			idMap[src.ID] = clone.ID

			if src.ID == roots[i].ID {
				clone.ParentID = targetParentID
				clone.Name = name
			} else {
				mapped := idMap[*src.ParentID]
				clone.ParentID = &mapped
			}

			if src.IsFile() && src.StorageRef != nil {
				ref, size, err := s.duplicateBlob(ctx, *src.StorageRef)
				if err != nil {
					cleanup()
					return nil, err
				}
				newRefs = append(newRefs, ref)
				clone.StorageRef = &ref
				clone.ByteSize = size
			}

			created = append(created, clone)
			if src.ID == roots[i].ID {
				pasted = append(pasted, clone)
			}
		}
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		for i := range created {
			if err := s.nodeRepo.Create(txCtx, &created[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	s.logger.Info("clipboard copy pasted",
		"user_id", op.UserID,
		"roots", len(pasted),
		"nodes", len(created),
		"target_parent_id", targetParentID,
	)
	return pasted, nil
}

// availableName returns name unchanged when the destination is free, else the
// first unused "name (copy)" / "name (copy N)" variant. claimed holds names
// already assigned to earlier roots of the same paste, which are not yet
// persisted and so invisible to GetChildByName.
func (s *clipboardService) availableName(ctx context.Context, scope models.Scope, parentID *string, name string, claimed map[string]bool) (string, error) {
	candidate := name
	for n := 1; ; n++ {
		if !claimed[candidate] {
			existing, err := s.nodeRepo.GetChildByName(ctx, scope, parentID, candidate)
			if err != nil {
				return "", err
			}
			if existing == nil {
				return candidate, nil
			}
		}
		if n == 1 {
			candidate = name + " (copy)"
		} else {
			candidate = fmt.Sprintf("%s (copy %d)", name, n)
		}
	}
}

func (s *clipboardService) duplicateBlob(ctx context.Context, ref string) (string, int64, error) {
	rc, err := s.blobs.Get(ctx, ref)
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()
	return s.blobs.Put(ctx, rc)
}

// loadSelection resolves node IDs to live nodes and enforces the selection
// rules: non-empty, no duplicates, single scope, and no node nested inside
// another selected node.
func (s *clipboardService) loadSelection(ctx context.Context, nodeIDs []string) ([]models.Node, error) {
	if len(nodeIDs) == 0 {
		return nil, fmt.Errorf("no nodes selected: %w", domain.ErrValidation)
	}

	seen := make(map[string]bool, len(nodeIDs))
	nodes := make([]models.Node, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		node, err := s.nodeRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if node.IsDeleted() {
			return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
		}
		nodes = append(nodes, *node)
	}

	scope := models.ScopeOf(&nodes[0])
	for i := range nodes {
		if !models.ScopeOf(&nodes[i]).SameAs(scope) {
			return nil, fmt.Errorf("selection spans multiple containers or branches: %w", domain.ErrValidation)
		}
	}

	// A selected node inside another selected node's subtree would be
	// processed twice on paste
	for i := range nodes {
		current := &nodes[i]
		for current.ParentID != nil {
			if seen[*current.ParentID] {
				return nil, fmt.Errorf("node %s is nested inside another selected node: %w", nodes[i].ID, domain.ErrValidation)
			}
			parent, err := s.nodeRepo.GetByID(ctx, *current.ParentID)
			if err != nil {
				return nil, err
			}
			current = parent
		}
	}

	return nodes, nil
}

func (s *clipboardService) holder(userID string) *userClipboard {
	holder, _ := s.users.LoadOrStore(userID, &userClipboard{})
	return holder
}
