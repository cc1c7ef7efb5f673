package domain

import (
	"errors"
)

// Sentinel errors for the node subsystem - use with errors.Is()
var (
	// ErrNotFound indicates a node, branch, or path does not exist or is deleted
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a sibling name collision, a cycle attempt, or a
	// paste with an empty clipboard
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates malformed input (empty/invalid name, wrong node
	// kind for the operation)
	ErrValidation = errors.New("validation failed")

	// ErrFormat indicates a corrupt or unreadable archive stream
	ErrFormat = errors.New("invalid archive format")

	// ErrStorage indicates a blob store I/O failure
	ErrStorage = errors.New("storage failure")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (node, branch)
	ResourceID   string // ID of the existing/conflicting resource
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
