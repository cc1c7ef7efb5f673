package handler

import (
	"context"
	"log/slog"
	"net/http"

	"devportal/internal/domain/models"
	"devportal/internal/domain/services"
	"devportal/internal/httputil"
)

// ClipboardHandler handles per-user copy/cut/paste requests. Every endpoint
// requires an authenticated user; the clipboard has no cross-user surface.
type ClipboardHandler struct {
	clipboard services.Clipboard
	logger    *slog.Logger
}

// NewClipboardHandler creates a new clipboard handler
func NewClipboardHandler(clipboard services.Clipboard, logger *slog.Logger) *ClipboardHandler {
	return &ClipboardHandler{
		clipboard: clipboard,
		logger:    logger,
	}
}

type clipboardRecordRequest struct {
	NodeIDs []string `json:"node_ids"`
}

type clipboardPasteRequest struct {
	TargetParentID *string `json:"target_parent_id,omitempty"` // null = source scope root
}

// Copy records a copy intent
// POST /api/clipboard/copy
func (h *ClipboardHandler) Copy(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, h.clipboard.Copy)
}

// Cut records a cut intent
// POST /api/clipboard/cut
func (h *ClipboardHandler) Cut(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, h.clipboard.Cut)
}

func (h *ClipboardHandler) record(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, userID string, nodeIDs []string) (*models.ClipboardOperation, error),
) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req clipboardRecordRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	op, err := fn(r.Context(), userID, req.NodeIDs)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, op)
}

// Status returns the user's active clipboard operation, 204 when empty
// GET /api/clipboard
func (h *ClipboardHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	op, err := h.clipboard.Status(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	if op == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, op)
}

// Paste applies the user's active operation
// POST /api/clipboard/paste
func (h *ClipboardHandler) Paste(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req clipboardPasteRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	nodes, err := h.clipboard.Paste(r.Context(), userID, req.TargetParentID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"nodes": nodes})
}

// Cancel discards the user's active operation
// DELETE /api/clipboard
func (h *ClipboardHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.clipboard.Cancel(r.Context(), userID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
