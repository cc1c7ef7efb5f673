package services

import (
	"context"

	"devportal/internal/domain/models"
)

// PathResolver maps slash-delimited relative paths to nodes within one
// (container, branch) scope and builds breadcrumb trails.
type PathResolver interface {
	// Resolve walks path segment by segment from the scope root. An empty
	// path (or "/") resolves to (nil, nil): the scope's virtual root, which
	// is not a real node. A missing segment, or an intermediate segment that
	// is a file, yields domain.ErrNotFound.
	Resolve(ctx context.Context, scope models.Scope, path string) (*models.Node, error)

	// BuildBreadcrumbs walks parent pointers from node up to the scope root,
	// producing entries oldest-first, prefixed by the base's scope labels.
	// A nil node produces the scope-label entries only, with the last one
	// active.
	BuildBreadcrumbs(ctx context.Context, node *models.Node, base BreadcrumbBase) ([]models.BreadcrumbEntry, error)
}

// BreadcrumbBase carries the scope-level prefix of a breadcrumb trail: the
// container name and, for repositories, the branch name, plus the URL of the
// scope's file root that node entries are joined onto.
type BreadcrumbBase struct {
	Labels  []string // e.g. ["my-repo", "main"] or ["my-project"]
	RootURL string   // e.g. "/api/repositories/R1/tree/main"
}
