package models

import (
	"time"
)

// ClipboardOpType is the pending intent of a clipboard operation.
type ClipboardOpType string

const (
	ClipboardCopy ClipboardOpType = "copy"
	ClipboardCut  ClipboardOpType = "cut"
)

// ClipboardOperation is a user's pending copy/cut intent over a set of nodes.
//
// At most one operation exists per user (last-writer-wins); it is consumed by
// a successful cut-paste, explicitly cancelled, or lazily discarded once
// expired. Copy operations survive paste so they can be pasted repeatedly.
type ClipboardOperation struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	OperationType ClipboardOpType `json:"operation_type"`
	NodeIDs       []string        `json:"node_ids"`
	SourceScope   Scope           `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// Expired reports whether the operation's TTL window has passed at now.
func (op *ClipboardOperation) Expired(now time.Time) bool {
	return !now.Before(op.ExpiresAt)
}
