package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"devportal/internal/config"
	"devportal/internal/domain/services"
	"devportal/internal/httputil"
)

// NodeHandler handles node HTTP requests
type NodeHandler struct {
	nodeService services.NodeService
	scopes      *scopeResolver
	logger      *slog.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(nodeService services.NodeService, branchService services.BranchService, logger *slog.Logger) *NodeHandler {
	return &NodeHandler{
		nodeService: nodeService,
		scopes:      &scopeResolver{branchService: branchService},
		logger:      logger,
	}
}

type createFolderRequest struct {
	ContainerType string  `json:"container_type"`
	ContainerID   string  `json:"container_id"`
	Branch        string  `json:"branch,omitempty"`
	ParentID      *string `json:"parent_id,omitempty"`
	Name          string  `json:"name"`
}

// CreateFolder creates a new folder node
// POST /api/nodes/folder
func (h *NodeHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scope, err := h.scopes.resolve(r, req.ContainerType, req.ContainerID, req.Branch)
	if err != nil {
		handleError(w, err)
		return
	}

	node, err := h.nodeService.CreateFolder(r.Context(), &services.CreateFolderRequest{
		Scope:    scope,
		ParentID: req.ParentID,
		Name:     req.Name,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, node)
}

// UploadFile creates a file node from a multipart upload
// POST /api/nodes/file
//
// Form fields: container_type, container_id, branch (repositories only),
// parent_id (optional); the content comes from the "file" part. The node name
// defaults to the uploaded filename.
func (h *NodeHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "missing 'file' part")
		return
	}
	defer file.Close()

	scope, err := h.scopes.resolve(r, r.FormValue("container_type"), r.FormValue("container_id"), r.FormValue("branch"))
	if err != nil {
		handleError(w, err)
		return
	}

	var parentID *string
	if v := r.FormValue("parent_id"); v != "" {
		parentID = &v
	}
	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	node, err := h.nodeService.CreateFile(r.Context(), &services.CreateFileRequest{
		Scope:    scope,
		ParentID: parentID,
		Name:     name,
		MimeType: header.Header.Get("Content-Type"),
		Content:  file,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, node)
}

// GetNode retrieves a node by ID
// GET /api/nodes/{id}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	node, err := h.nodeService.GetNode(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

type updateNodeRequest struct {
	Name   *string                 `json:"name,omitempty"`
	Parent httputil.OptionalString `json:"parent_id"`
}

// UpdateNode renames and/or moves a node
// PATCH /api/nodes/{id}
//
// parent_id uses RFC 7396 semantics: absent leaves the node in place, null
// moves it to the scope root, a value moves it under that folder.
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	var req updateNodeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	node, err := h.nodeService.GetNode(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	if req.Name != nil && *req.Name != node.Name {
		node, err = h.nodeService.Rename(r.Context(), id, *req.Name)
		if err != nil {
			handleError(w, err)
			return
		}
	}
	if req.Parent.Present {
		node, err = h.nodeService.Move(r.Context(), id, req.Parent.Value)
		if err != nil {
			handleError(w, err)
			return
		}
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// DeleteNode soft-deletes a node and its subtree
// DELETE /api/nodes/{id}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	if err := h.nodeService.SoftDelete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RestoreNode clears the deleted mark from a node and its subtree
// POST /api/nodes/{id}/restore
func (h *NodeHandler) RestoreNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	if err := h.nodeService.Restore(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DownloadNode streams a file node's content
// GET /api/nodes/{id}/download
func (h *NodeHandler) DownloadNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	rc, node, err := h.nodeService.Download(r.Context(), id)
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
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Name))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", node.ByteSize))

	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; log and abandon the response
		h.logger.Warn("download stream interrupted", "node_id", id, "error", err)
	}
}
