package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"devportal/internal/config"
	"devportal/internal/domain"
	"devportal/internal/domain/models"
	"devportal/internal/domain/repositories"
	"devportal/internal/domain/services"
	"devportal/internal/mimetypes"
	"devportal/internal/storage"
)

// nameRule rejects the path separator inside node names
var nameRule = validation.Match(regexp.MustCompile(`^[^/]+$`)).Error("name cannot contain slashes")

type nodeService struct {
	nodeRepo  repositories.NodeRepository
	blobs     storage.BlobStore
	mimes     *mimetypes.Registry
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewNodeService creates a new node service
func NewNodeService(
	nodeRepo repositories.NodeRepository,
	blobs storage.BlobStore,
	mimes *mimetypes.Registry,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) services.NodeService {
	return &nodeService{
		nodeRepo:  nodeRepo,
		blobs:     blobs,
		mimes:     mimes,
		txManager: txManager,
		logger:    logger,
	}
}

// CreateFolder creates a new folder node
func (s *nodeService) CreateFolder(ctx context.Context, req *services.CreateFolderRequest) (*models.Node, error) {
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if err := validateScope(req.Scope); err != nil {
		return nil, err
	}
	if _, err := s.resolveParentFolder(ctx, req.Scope, req.ParentID); err != nil {
		return nil, err
	}

	now := time.Now()
	node := &models.Node{
		ID:            uuid.New().String(),
		ContainerType: req.Scope.ContainerType,
		ContainerID:   req.Scope.ContainerID,
		BranchID:      req.Scope.BranchID,
		ParentID:      req.ParentID,
		Name:          req.Name,
		Kind:          models.KindFolder,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.nodeRepo.Create(ctx, node); err != nil {
		return nil, err
	}
	node.Path = s.displayPath(ctx, node)

	s.logger.Info("folder created",
		"id", node.ID,
		"name", node.Name,
		"container_type", node.ContainerType,
		"container_id", node.ContainerID,
		"parent_id", req.ParentID,
	)

	return node, nil
}

// CreateFile writes content to the blob store, then creates the node
// referencing it. Write-then-link: the blob write happens first and holds no
// repository lock; a failed write leaves no node behind.
func (s *nodeService) CreateFile(ctx context.Context, req *services.CreateFileRequest) (*models.Node, error) {
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if err := validateScope(req.Scope); err != nil {
		return nil, err
	}
	if _, err := s.resolveParentFolder(ctx, req.Scope, req.ParentID); err != nil {
		return nil, err
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = s.mimes.Lookup(req.Name)
	}

	ref, size, err := s.blobs.Put(ctx, req.Content)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	node := &models.Node{
		ID:            uuid.New().String(),
		ContainerType: req.Scope.ContainerType,
		ContainerID:   req.Scope.ContainerID,
		BranchID:      req.Scope.BranchID,
		ParentID:      req.ParentID,
		Name:          req.Name,
		Kind:          models.KindFile,
		StorageRef:    &ref,
		MimeType:      &mimeType,
		ByteSize:      size,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.nodeRepo.Create(ctx, node); err != nil {
		// The node never existed, so the blob must not either
		if delErr := s.blobs.Delete(ctx, ref); delErr != nil {
			s.logger.Warn("orphan blob cleanup failed", "ref", ref, "error", delErr)
		}
		return nil, err
	}
	node.Path = s.displayPath(ctx, node)

	s.logger.Info("file created",
		"id", node.ID,
		"name", node.Name,
		"bytes", size,
		"mime_type", mimeType,
		"container_type", node.ContainerType,
		"container_id", node.ContainerID,
	)

	return node, nil
}

// GetNode retrieves a non-deleted node by ID
func (s *nodeService) GetNode(ctx context.Context, id string) (*models.Node, error) {
	node, err := s.getActive(ctx, id)
	if err != nil {
		return nil, err
	}
	node.Path = s.displayPath(ctx, node)
	return node, nil
}

// Rename changes a node's name
func (s *nodeService) Rename(ctx context.Context, id, newName string) (*models.Node, error) {
	if err := validateName(newName); err != nil {
		return nil, err
	}

	node, err := s.getActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if node.Name == newName {
		node.Path = s.displayPath(ctx, node)
		return node, nil
	}

	node.Name = newName
	node.UpdatedAt = time.Now()
	if err := s.nodeRepo.Update(ctx, node); err != nil {
		return nil, err
	}
	node.Path = s.displayPath(ctx, node)

	s.logger.Info("node renamed", "id", node.ID, "name", newName)
	return node, nil
}

// Move reparents a node within its container and branch scope
func (s *nodeService) Move(ctx context.Context, id string, newParentID *string) (*models.Node, error) {
	node, err := s.getActive(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkMoveTarget(ctx, node, newParentID); err != nil {
		return nil, err
	}

	node.ParentID = newParentID
	node.UpdatedAt = time.Now()
	if err := s.nodeRepo.Update(ctx, node); err != nil {
		return nil, err
	}
	node.Path = s.displayPath(ctx, node)

	s.logger.Info("node moved", "id", node.ID, "new_parent_id", newParentID)
	return node, nil
}

// checkMoveTarget validates that newParentID is a usable destination for
// node: an existing non-deleted folder in the same scope that is not node
// itself nor one of its descendants.
func (s *nodeService) checkMoveTarget(ctx context.Context, node *models.Node, newParentID *string) error {
	if newParentID == nil {
		return nil // scope root is always a valid destination
	}
	if *newParentID == node.ID {
		return fmt.Errorf("cannot move a node into itself: %w", domain.ErrValidation)
	}

	parent, err := s.getActive(ctx, *newParentID)
	if err != nil {
		return fmt.Errorf("target parent: %w", err)
	}
	if !parent.IsFolder() {
		return fmt.Errorf("target parent is not a folder: %w", domain.ErrValidation)
	}
	if !models.ScopeOf(parent).SameAs(models.ScopeOf(node)) {
		return fmt.Errorf("target parent belongs to a different container or branch: %w", domain.ErrValidation)
	}

	// Walk up from the target; finding the moved node means the target is
	// inside the moved subtree and the move would create a cycle.
	current := parent
	for current.ParentID != nil {
		if *current.ParentID == node.ID {
			return fmt.Errorf("cannot move a folder into its own subtree: %w", domain.ErrValidation)
		}
		current, err = s.nodeRepo.GetByID(ctx, *current.ParentID)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListChildren lists non-deleted direct children of a folder or scope root
func (s *nodeService) ListChildren(ctx context.Context, scope models.Scope, parentID *string) (*services.NodeContents, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}

	var folder *models.Node
	if parentID != nil {
		var err error
		folder, err = s.resolveParentFolder(ctx, scope, parentID)
		if err != nil {
			return nil, err
		}
		folder.Path = s.displayPath(ctx, folder)
	}

	children, err := s.nodeRepo.ListChildren(ctx, scope, parentID)
	if err != nil {
		return nil, err
	}

	return &services.NodeContents{Folder: folder, Children: children}, nil
}

// SoftDelete marks a node and every descendant deleted; idempotent
func (s *nodeService) SoftDelete(ctx context.Context, id string) error {
	node, err := s.nodeRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if node.IsDeleted() {
		return nil // already deleted, nothing to do
	}

	return s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		subtree, err := s.nodeRepo.ListSubtree(txCtx, id, false)
		if err != nil {
			return err
		}

		ids := make([]string, len(subtree))
		for i := range subtree {
			ids[i] = subtree[i].ID
		}

		if err := s.nodeRepo.MarkDeleted(txCtx, ids, time.Now()); err != nil {
			return err
		}

		s.logger.Info("node soft-deleted", "id", id, "descendants", len(ids)-1)
		return nil
	})
}

// Restore clears the deleted mark from a node and every descendant
func (s *nodeService) Restore(ctx context.Context, id string) error {
	node, err := s.nodeRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !node.IsDeleted() {
		return nil
	}

	// The parent folder must already be live, or the restored subtree would
	// float unreachable under a deleted folder
	if node.ParentID != nil {
		parent, err := s.nodeRepo.GetByID(ctx, *node.ParentID)
		if err != nil {
			return err
		}
		if parent.IsDeleted() {
			return fmt.Errorf("cannot restore under the deleted folder '%s': %w", parent.Name, domain.ErrValidation)
		}
	}

	// A sibling with the same name may have appeared since the delete
	existing, err := s.nodeRepo.GetChildByName(ctx, models.ScopeOf(node), node.ParentID, node.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("cannot restore: a sibling named '%s' exists", node.Name),
			ResourceType: "node",
			ResourceID:   existing.ID,
		}
	}

	return s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		subtree, err := s.nodeRepo.ListSubtree(txCtx, id, true)
		if err != nil {
			return err
		}

		ids := make([]string, len(subtree))
		for i := range subtree {
			ids[i] = subtree[i].ID
		}

		if err := s.nodeRepo.ClearDeleted(txCtx, ids, time.Now()); err != nil {
			return err
		}

		s.logger.Info("node restored", "id", id, "descendants", len(ids)-1)
		return nil
	})
}

// ListDeleted lists the soft-deleted nodes of a container scope
func (s *nodeService) ListDeleted(ctx context.Context, scope models.Scope) ([]models.Node, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	return s.nodeRepo.ListDeleted(ctx, scope)
}

// Search finds non-deleted nodes by case-insensitive name substring
func (s *nodeService) Search(ctx context.Context, scope models.Scope, query string) ([]models.Node, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty: %w", domain.ErrValidation)
	}
	return s.nodeRepo.SearchByName(ctx, scope, query)
}

// Aggregate computes file/folder counts and total bytes for a scope
func (s *nodeService) Aggregate(ctx context.Context, scope models.Scope) (*models.ContainerStats, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	return s.nodeRepo.Aggregate(ctx, scope)
}

// Download opens a file node's content from the blob store
func (s *nodeService) Download(ctx context.Context, id string) (io.ReadCloser, *models.Node, error) {
	node, err := s.getActive(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !node.IsFile() {
		return nil, nil, fmt.Errorf("node %s is not a file: %w", id, domain.ErrValidation)
	}
	if node.StorageRef == nil {
		return nil, nil, fmt.Errorf("file %s has no content: %w", id, domain.ErrStorage)
	}

	rc, err := s.blobs.Get(ctx, *node.StorageRef)
	if err != nil {
		return nil, nil, err
	}
	return rc, node, nil
}

// getActive retrieves a node and treats soft-deleted ones as absent
func (s *nodeService) getActive(ctx context.Context, id string) (*models.Node, error) {
	node, err := s.nodeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if node.IsDeleted() {
		return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	return node, nil
}

// resolveParentFolder validates that parentID (nil = scope root) is an
// existing non-deleted folder in the given scope and returns it.
func (s *nodeService) resolveParentFolder(ctx context.Context, scope models.Scope, parentID *string) (*models.Node, error) {
	if parentID == nil {
		return nil, nil
	}

	parent, err := s.getActive(ctx, *parentID)
	if err != nil {
		return nil, fmt.Errorf("parent folder: %w", err)
	}
	if !parent.IsFolder() {
		return nil, fmt.Errorf("parent %s is not a folder: %w", *parentID, domain.ErrNotFound)
	}
	if !models.ScopeOf(parent).SameAs(scope) {
		return nil, fmt.Errorf("parent %s belongs to a different container or branch: %w", *parentID, domain.ErrNotFound)
	}
	return parent, nil
}

// displayPath computes the /-joined name chain from the scope root. Failures
// degrade to the bare name; the path is display metadata, not addressing.
func (s *nodeService) displayPath(ctx context.Context, node *models.Node) string {
	segments := []string{node.Name}
	current := node
	for current.ParentID != nil {
		parent, err := s.nodeRepo.GetByID(ctx, *current.ParentID)
		if err != nil {
			s.logger.Warn("failed to compute path", "node_id", node.ID, "error", err)
			return node.Name
		}
		segments = append([]string{parent.Name}, segments...)
		current = parent
	}
	return strings.Join(segments, "/")
}

// validateName enforces the node naming rules
func validateName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, config.MaxNodeNameLength),
		nameRule,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// validateScope enforces the container/branch pairing rules: projects carry
// no branch, repository nodes belong to exactly one branch.
func validateScope(scope models.Scope) error {
	if !scope.ContainerType.Valid() {
		return fmt.Errorf("unknown container type '%s': %w", scope.ContainerType, domain.ErrValidation)
	}
	if scope.ContainerID == "" {
		return fmt.Errorf("container id is required: %w", domain.ErrValidation)
	}
	switch scope.ContainerType {
	case models.ContainerProject:
		if scope.BranchID != nil {
			return fmt.Errorf("project containers have no branches: %w", domain.ErrValidation)
		}
	case models.ContainerRepository:
		if scope.BranchID == nil || *scope.BranchID == "" {
			return fmt.Errorf("repository scope requires a branch: %w", domain.ErrValidation)
		}
	}
	return nil
}
