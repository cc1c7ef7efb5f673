package models

// BreadcrumbEntry is one step of a node's ancestor trail, oldest-first. It is
// a derived read-only projection and is never persisted.
//
// The final entry (the node itself) has IsActive = true and an empty URL;
// every other entry's URL is the path-joined chain of ancestor names from the
// scope root.
type BreadcrumbEntry struct {
	Label    string `json:"label"`
	URL      string `json:"url"`
	IsActive bool   `json:"is_active"`
}
