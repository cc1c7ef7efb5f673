package service

import (
	"context"
	"fmt"
	"strings"

	"devportal/internal/domain"
	"devportal/internal/domain/models"
	"devportal/internal/domain/repositories"
	"devportal/internal/domain/services"
)

type pathResolverService struct {
	nodeRepo repositories.NodeRepository
}

// NewPathResolver creates a new path resolver service
func NewPathResolver(nodeRepo repositories.NodeRepository) services.PathResolver {
	return &pathResolverService{nodeRepo: nodeRepo}
}

// Resolve maps a slash-delimited relative path to a node within a scope.
// Empty segments are discarded, so leading/trailing/doubled slashes are
// tolerated. An empty path resolves to (nil, nil): the scope's virtual root.
func (s *pathResolverService) Resolve(ctx context.Context, scope models.Scope, path string) (*models.Node, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, nil
	}

	var current *models.Node
	var parentID *string

	for i, segment := range segments {
		child, err := s.nodeRepo.GetChildByName(ctx, scope, parentID, segment)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, fmt.Errorf("path '%s': segment '%s': %w", path, segment, domain.ErrNotFound)
		}

		// Files have no children; an intermediate file segment dead-ends
		if i < len(segments)-1 && !child.IsFolder() {
			return nil, fmt.Errorf("path '%s': '%s' is not a folder: %w", path, segment, domain.ErrNotFound)
		}

		current = child
		parentID = &child.ID
	}

	return current, nil
}

// BuildBreadcrumbs walks parent pointers from node up to the scope root,
// producing entries oldest-first, prefixed by the base's scope labels.
func (s *pathResolverService) BuildBreadcrumbs(ctx context.Context, node *models.Node, base services.BreadcrumbBase) ([]models.BreadcrumbEntry, error) {
	var crumbs []models.BreadcrumbEntry

	for _, label := range base.Labels {
		crumbs = append(crumbs, models.BreadcrumbEntry{
			Label: label,
			URL:   base.RootURL,
		})
	}

	if node == nil {
		// Virtual root: the last scope label is the active entry
		if len(crumbs) > 0 {
			crumbs[len(crumbs)-1].IsActive = true
			crumbs[len(crumbs)-1].URL = ""
		}
		return crumbs, nil
	}

	// Collect the ancestor chain, oldest-first
	var chain []*models.Node
	current := node
	for {
		chain = append([]*models.Node{current}, chain...)
		if current.ParentID == nil {
			break
		}
		parent, err := s.nodeRepo.GetByID(ctx, *current.ParentID)
		if err != nil {
			return nil, err
		}
		current = parent
	}

	var accumulated []string
	for i, ancestor := range chain {
		accumulated = append(accumulated, ancestor.Name)
		entry := models.BreadcrumbEntry{Label: ancestor.Name}
		if i == len(chain)-1 {
			entry.IsActive = true
		} else {
			entry.URL = joinURL(base.RootURL, accumulated)
		}
		crumbs = append(crumbs, entry)
	}

	return crumbs, nil
}

// splitPath splits on '/' and discards empty segments
func splitPath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

func joinURL(rootURL string, segments []string) string {
	joined := strings.Join(segments, "/")
	if rootURL == "" {
		return joined
	}
	return strings.TrimSuffix(rootURL, "/") + "/" + joined
}
