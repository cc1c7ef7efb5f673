package handler

import (
	"errors"
	"fmt"
	"net/http"

	"devportal/internal/domain"
	"devportal/internal/domain/models"
	"devportal/internal/domain/services"
	"devportal/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var conflictErr *domain.ConflictError

	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrFormat):
		httputil.RespondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &conflictErr):
		httputil.RespondErrorWithExtras(w, http.StatusConflict, conflictErr.Error(), map[string]interface{}{
			"resource_type": conflictErr.ResourceType,
			"resource_id":   conflictErr.ResourceID,
		})
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// requireUserID extracts the acting user from the request context; responds
// 401 and returns false when the identity middleware saw no user header.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "user identity is required")
		return "", false
	}
	return userID, true
}

// scopeResolver turns URL container coordinates into a models.Scope,
// resolving repository branch names to branch IDs.
type scopeResolver struct {
	branchService services.BranchService
}

// resolve builds a scope from a container type and ID plus an optional branch
// name. Repository scopes fall back to the default branch when no name is
// given; project scopes reject one.
func (s *scopeResolver) resolve(r *http.Request, containerType, containerID, branchName string) (models.Scope, error) {
	scope := models.Scope{
		ContainerType: models.ContainerType(containerType),
		ContainerID:   containerID,
	}
	if !scope.ContainerType.Valid() {
		return scope, fmt.Errorf("unknown container type '%s': %w", containerType, domain.ErrValidation)
	}

	switch scope.ContainerType {
	case models.ContainerProject:
		if branchName != "" {
			return scope, fmt.Errorf("project containers have no branches: %w", domain.ErrValidation)
		}
	case models.ContainerRepository:
		var branch *models.Branch
		var err error
		if branchName == "" {
			branch, err = s.branchService.DefaultBranch(r.Context(), containerID)
		} else {
			branch, err = s.branchService.GetBranch(r.Context(), containerID, branchName)
		}
		if err != nil {
			return scope, err
		}
		scope.BranchID = &branch.ID
	}
	return scope, nil
}

// HealthHandler answers readiness probes
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Check responds 200 when the process is serving
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
