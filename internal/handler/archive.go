package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"devportal/internal/config"
	"devportal/internal/domain/services"
	"devportal/internal/httputil"
)

// ArchiveHandler handles zip compression and decompression requests
type ArchiveHandler struct {
	transcoder  services.ArchiveTranscoder
	nodeService services.NodeService
	scopes      *scopeResolver
	logger      *slog.Logger
}

// NewArchiveHandler creates a new archive handler
func NewArchiveHandler(
	transcoder services.ArchiveTranscoder,
	nodeService services.NodeService,
	branchService services.BranchService,
	logger *slog.Logger,
) *ArchiveHandler {
	return &ArchiveHandler{
		transcoder:  transcoder,
		nodeService: nodeService,
		scopes:      &scopeResolver{branchService: branchService},
		logger:      logger,
	}
}

// Compress streams a folder subtree as a zip download
// GET /api/nodes/{id}/compress
func (h *ArchiveHandler) Compress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	// The folder is fetched up front so validation failures still produce a
	// proper problem response; once compression starts writing, the status
	// line is committed.
	folder, err := h.nodeService.GetNode(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", folder.Name+".zip"))

	if err := h.transcoder.CompressFolder(r.Context(), id, w); err != nil {
		h.logger.Warn("compression stream failed", "node_id", id, "error", err)
	}
}

// Decompress extracts an uploaded zip into a container scope
// POST /api/containers/{type}/{id}/decompress
//
// The archive comes from the "file" multipart part; parent_id (optional form
// field) selects the extraction root, branch (repositories) the branch name.
func (h *ArchiveHandler) Decompress(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "missing 'file' part")
		return
	}
	defer file.Close()

	scope, err := h.scopes.resolve(r, r.PathValue("type"), r.PathValue("id"), r.FormValue("branch"))
	if err != nil {
		handleError(w, err)
		return
	}

	var parentID *string
	if v := r.FormValue("parent_id"); v != "" {
		parentID = &v
	}

	nodes, err := h.transcoder.DecompressZip(r.Context(), file, scope, parentID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"created": nodes,
		"count":   len(nodes),
	})
}
