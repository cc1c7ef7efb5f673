package models

import (
	"time"
)

// Branch is a named partition of a repository container's node tree. It is a
// flat scoping attribute, not a version-control commit graph: nodes reference
// their branch the way they reference their container.
//
// Exactly one branch per repository carries IsDefault = true; the default is a
// stored pointer, never a name convention.
type Branch struct {
	ID           string    `json:"id" db:"id"`
	RepositoryID string    `json:"repository_id" db:"repository_id"`
	Name         string    `json:"name" db:"name"`
	Description  *string   `json:"description,omitempty" db:"description"`
	IsDefault    bool      `json:"is_default" db:"is_default"`
	IsProtected  bool      `json:"is_protected" db:"is_protected"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
