package handler

import (
	"log/slog"
	"net/http"

	"devportal/internal/domain/services"
	"devportal/internal/httputil"
)

// ContainerHandler serves container-wide queries: aggregate stats, name
// search and the trash listing. Repository scopes take the branch name from
// the "branch" query parameter, defaulting to the default branch.
type ContainerHandler struct {
	nodeService services.NodeService
	scopes      *scopeResolver
	logger      *slog.Logger
}

// NewContainerHandler creates a new container handler
func NewContainerHandler(nodeService services.NodeService, branchService services.BranchService, logger *slog.Logger) *ContainerHandler {
	return &ContainerHandler{
		nodeService: nodeService,
		scopes:      &scopeResolver{branchService: branchService},
		logger:      logger,
	}
}

// Stats returns file/folder counts and total bytes for a container scope
// GET /api/containers/{type}/{id}/stats
func (h *ContainerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopes.resolve(r, r.PathValue("type"), r.PathValue("id"), r.URL.Query().Get("branch"))
	if err != nil {
		handleError(w, err)
		return
	}

	stats, err := h.nodeService.Aggregate(r.Context(), scope)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, stats)
}

// Search finds nodes by case-insensitive name substring
// GET /api/containers/{type}/{id}/search?q=
func (h *ContainerHandler) Search(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopes.resolve(r, r.PathValue("type"), r.PathValue("id"), r.URL.Query().Get("branch"))
	if err != nil {
		handleError(w, err)
		return
	}

	nodes, err := h.nodeService.Search(r.Context(), scope, r.URL.Query().Get("q"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"results": nodes})
}

// Trash lists the container's soft-deleted nodes
// GET /api/containers/{type}/{id}/trash
func (h *ContainerHandler) Trash(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopes.resolve(r, r.PathValue("type"), r.PathValue("id"), r.URL.Query().Get("branch"))
	if err != nil {
		handleError(w, err)
		return
	}

	nodes, err := h.nodeService.ListDeleted(r.Context(), scope)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"deleted": nodes})
}
