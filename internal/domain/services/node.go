package services

import (
	"context"
	"io"

	"devportal/internal/domain/models"
)

// NodeService handles node tree business logic
type NodeService interface {
	// CreateFolder creates a new folder node
	CreateFolder(ctx context.Context, req *CreateFolderRequest) (*models.Node, error)

	// CreateFile writes content to the blob store, then creates a file node
	// referencing it (write-then-link: no node is persisted on a failed write)
	CreateFile(ctx context.Context, req *CreateFileRequest) (*models.Node, error)

	// GetNode retrieves a non-deleted node by ID
	GetNode(ctx context.Context, id string) (*models.Node, error)

	// Rename changes a node's name
	Rename(ctx context.Context, id, newName string) (*models.Node, error)

	// Move reparents a node within its container and branch scope
	Move(ctx context.Context, id string, newParentID *string) (*models.Node, error)

	// ListChildren lists the non-deleted direct children of a folder
	// (nil = scope root), folders before files
	ListChildren(ctx context.Context, scope models.Scope, parentID *string) (*NodeContents, error)

	// SoftDelete marks a node and every descendant deleted; idempotent
	SoftDelete(ctx context.Context, id string) error

	// Restore clears the deleted mark from a node and every descendant
	Restore(ctx context.Context, id string) error

	// ListDeleted lists the soft-deleted nodes of a container scope
	ListDeleted(ctx context.Context, scope models.Scope) ([]models.Node, error)

	// Search finds non-deleted nodes by case-insensitive name substring
	Search(ctx context.Context, scope models.Scope, query string) ([]models.Node, error)

	// Aggregate computes file/folder counts and total bytes for a scope
	Aggregate(ctx context.Context, scope models.Scope) (*models.ContainerStats, error)

	// Download opens a file node's content from the blob store.
	// The caller must close the reader.
	Download(ctx context.Context, id string) (io.ReadCloser, *models.Node, error)
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	Scope    models.Scope `json:"-"`
	ParentID *string      `json:"parent_id,omitempty"` // null for root folders
	Name     string       `json:"name"`
}

// CreateFileRequest represents a file upload request
type CreateFileRequest struct {
	Scope    models.Scope `json:"-"`
	ParentID *string      `json:"parent_id,omitempty"`
	Name     string       `json:"name"`
	MimeType string       `json:"mime_type,omitempty"` // detected from the name when empty
	Content  io.Reader    `json:"-"`
}

// NodeContents represents a folder with its direct children
type NodeContents struct {
	Folder   *models.Node  `json:"folder,omitempty"` // null for the scope root
	Children []models.Node `json:"children"`
}
