package models

import (
	"time"
)

// NodeKind distinguishes files from folders. Immutable after creation.
type NodeKind string

const (
	KindFile   NodeKind = "file"
	KindFolder NodeKind = "folder"
)

// ContainerType identifies the owning entity kind for a node tree.
type ContainerType string

const (
	ContainerProject    ContainerType = "project"
	ContainerRepository ContainerType = "repository"
)

// Valid reports whether t is a known container type.
func (t ContainerType) Valid() bool {
	return t == ContainerProject || t == ContainerRepository
}

// Node is a file or folder entry in a container's virtual tree.
//
// Repository nodes additionally belong to exactly one branch; project
// containers have no branch concept (BranchID stays NULL). The parent graph is
// acyclic and scoped: a node's parent always lives in the same container and
// branch.
type Node struct {
	ID            string        `json:"id" db:"id"`
	ContainerType ContainerType `json:"container_type" db:"container_type"`
	ContainerID   string        `json:"container_id" db:"container_id"`
	BranchID      *string       `json:"branch_id,omitempty" db:"branch_id"`
	ParentID      *string       `json:"parent_id" db:"parent_id"` // NULL = root of its scope
	Name          string        `json:"name" db:"name"`
	Kind          NodeKind      `json:"kind" db:"kind"`
	StorageRef    *string       `json:"-" db:"storage_ref"` // blob store reference, files only
	MimeType      *string       `json:"mime_type,omitempty" db:"mime_type"`
	ByteSize      int64         `json:"byte_size" db:"byte_size"`
	Path          string        `json:"path,omitempty"` // Computed display path, not stored in DB
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
	DeletedAt     *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool {
	return n.Kind == KindFolder
}

// IsFile reports whether the node is a file.
func (n *Node) IsFile() bool {
	return n.Kind == KindFile
}

// IsDeleted reports whether the node is soft-deleted.
func (n *Node) IsDeleted() bool {
	return n.DeletedAt != nil
}

// Scope identifies one (container, branch) partition of the node tree. All
// tree lookups and mutations happen within a single scope.
type Scope struct {
	ContainerType ContainerType
	ContainerID   string
	BranchID      *string
}

// SameAs reports whether two scopes address the same partition.
func (s Scope) SameAs(other Scope) bool {
	if s.ContainerType != other.ContainerType || s.ContainerID != other.ContainerID {
		return false
	}
	if (s.BranchID == nil) != (other.BranchID == nil) {
		return false
	}
	return s.BranchID == nil || *s.BranchID == *other.BranchID
}

// ScopeOf returns the scope a node belongs to.
func ScopeOf(n *Node) Scope {
	return Scope{
		ContainerType: n.ContainerType,
		ContainerID:   n.ContainerID,
		BranchID:      n.BranchID,
	}
}

// ContainerStats aggregates non-deleted nodes in one container scope.
type ContainerStats struct {
	FileCount   int64 `json:"file_count"`
	FolderCount int64 `json:"folder_count"`
	TotalBytes  int64 `json:"total_bytes"`
}
