package handler

import (
	"log/slog"
	"net/http"

	"devportal/internal/domain/services"
	"devportal/internal/httputil"
)

// BranchHandler handles repository branch HTTP requests
type BranchHandler struct {
	branchService services.BranchService
	logger        *slog.Logger
}

// NewBranchHandler creates a new branch handler
func NewBranchHandler(branchService services.BranchService, logger *slog.Logger) *BranchHandler {
	return &BranchHandler{
		branchService: branchService,
		logger:        logger,
	}
}

// ListBranches lists a repository's branches, default first
// GET /api/repositories/{id}/branches
func (h *BranchHandler) ListBranches(w http.ResponseWriter, r *http.Request) {
	repositoryID := r.PathValue("id")
	if repositoryID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "repository ID is required")
		return
	}

	branches, err := h.branchService.ListBranches(r.Context(), repositoryID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"branches": branches})
}

// CreateBranch creates a named branch
// POST /api/repositories/{id}/branches
func (h *BranchHandler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	repositoryID := r.PathValue("id")
	if repositoryID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "repository ID is required")
		return
	}

	var req services.CreateBranchRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RepositoryID = repositoryID

	branch, err := h.branchService.CreateBranch(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, branch)
}

// GetBranch retrieves one branch by name
// GET /api/repositories/{id}/branches/{name}
func (h *BranchHandler) GetBranch(w http.ResponseWriter, r *http.Request) {
	branch, err := h.branchService.GetBranch(r.Context(), r.PathValue("id"), r.PathValue("name"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, branch)
}

// SetDefaultBranch makes the named branch the repository's default
// PUT /api/repositories/{id}/branches/{name}/default
func (h *BranchHandler) SetDefaultBranch(w http.ResponseWriter, r *http.Request) {
	if err := h.branchService.SetDefaultBranch(r.Context(), r.PathValue("id"), r.PathValue("name")); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteBranch removes a non-default, unprotected branch
// DELETE /api/repositories/{id}/branches/{name}
func (h *BranchHandler) DeleteBranch(w http.ResponseWriter, r *http.Request) {
	if err := h.branchService.DeleteBranch(r.Context(), r.PathValue("id"), r.PathValue("name")); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
