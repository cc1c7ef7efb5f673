package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"devportal/internal/domain/models"
	"devportal/internal/domain/services"
	"devportal/internal/httputil"
)

// TreeHandler serves the path-addressed read surface: folder listings with
// breadcrumbs and file content, resolved from URL paths instead of node IDs.
type TreeHandler struct {
	nodeService  services.NodeService
	pathResolver services.PathResolver
	scopes       *scopeResolver
	logger       *slog.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(
	nodeService services.NodeService,
	pathResolver services.PathResolver,
	branchService services.BranchService,
	logger *slog.Logger,
) *TreeHandler {
	return &TreeHandler{
		nodeService:  nodeService,
		pathResolver: pathResolver,
		scopes:       &scopeResolver{branchService: branchService},
		logger:       logger,
	}
}

// treeResponse is a folder view: the resolved folder (null at the scope
// root), its children, and the breadcrumb trail leading to it.
type treeResponse struct {
	Folder      *models.Node             `json:"folder"`
	Children    []models.Node            `json:"children"`
	Breadcrumbs []models.BreadcrumbEntry `json:"breadcrumbs"`
}

// RepositoryTree resolves a branch-scoped folder path
// GET /api/repositories/{id}/tree/{branch}/{path...}
func (h *TreeHandler) RepositoryTree(w http.ResponseWriter, r *http.Request) {
	h.tree(w, r, string(models.ContainerRepository), r.PathValue("branch"))
}

// ProjectTree resolves a project folder path
// GET /api/projects/{id}/tree/{path...}
func (h *TreeHandler) ProjectTree(w http.ResponseWriter, r *http.Request) {
	h.tree(w, r, string(models.ContainerProject), "")
}

// RepositoryBlob streams a branch-scoped file by path
// GET /api/repositories/{id}/blob/{branch}/{path...}
func (h *TreeHandler) RepositoryBlob(w http.ResponseWriter, r *http.Request) {
	h.blob(w, r, string(models.ContainerRepository), r.PathValue("branch"))
}

// ProjectBlob streams a project file by path
// GET /api/projects/{id}/blob/{path...}
func (h *TreeHandler) ProjectBlob(w http.ResponseWriter, r *http.Request) {
	h.blob(w, r, string(models.ContainerProject), "")
}

func (h *TreeHandler) tree(w http.ResponseWriter, r *http.Request, containerType, branchName string) {
	containerID := r.PathValue("id")
	if containerID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "container ID is required")
		return
	}

	scope, err := h.scopes.resolve(r, containerType, containerID, branchName)
	if err != nil {
		handleError(w, err)
		return
	}

	node, err := h.pathResolver.Resolve(r.Context(), scope, r.PathValue("path"))
	if err != nil {
		handleError(w, err)
		return
	}

	var parentID *string
	if node != nil {
		if !node.IsFolder() {
			httputil.RespondError(w, http.StatusBadRequest, "path is a file, not a folder")
			return
		}
		parentID = &node.ID
	}

	contents, err := h.nodeService.ListChildren(r.Context(), scope, parentID)
	if err != nil {
		handleError(w, err)
		return
	}

	crumbs, err := h.pathResolver.BuildBreadcrumbs(r.Context(), node, breadcrumbBase(scope, containerID, branchName))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, treeResponse{
		Folder:      contents.Folder,
		Children:    contents.Children,
		Breadcrumbs: crumbs,
	})
}

func (h *TreeHandler) blob(w http.ResponseWriter, r *http.Request, containerType, branchName string) {
	containerID := r.PathValue("id")
	if containerID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "container ID is required")
		return
	}

	scope, err := h.scopes.resolve(r, containerType, containerID, branchName)
	if err != nil {
		handleError(w, err)
		return
	}

	node, err := h.pathResolver.Resolve(r.Context(), scope, r.PathValue("path"))
	if err != nil {
		handleError(w, err)
		return
	}
	if node == nil || !node.IsFile() {
		httputil.RespondError(w, http.StatusBadRequest, "path is not a file")
		return
	}

	rc, node, err := h.nodeService.Download(r.Context(), node.ID)
	if err != nil {
		handleError(w, err)
		return
	}
	defer rc.Close()

	contentType := "application/octet-stream"
	if node.MimeType != nil {
		contentType = *node.MimeType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", node.ByteSize))

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("blob stream interrupted", "node_id", node.ID, "error", err)
	}
}

// breadcrumbBase builds the scope-label prefix for a trail: container ID
// (the caller substitutes a display name upstream) and branch name for
// repository scopes.
func breadcrumbBase(scope models.Scope, containerID, branchName string) services.BreadcrumbBase {
	if scope.ContainerType == models.ContainerRepository {
		return services.BreadcrumbBase{
			Labels:  []string{containerID, branchName},
			RootURL: fmt.Sprintf("/api/repositories/%s/tree/%s", containerID, branchName),
		}
	}
	return services.BreadcrumbBase{
		Labels:  []string{containerID},
		RootURL: fmt.Sprintf("/api/projects/%s/tree", containerID),
	}
}
