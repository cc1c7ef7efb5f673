// Package mimetypes maps file extensions to MIME types for uploads and
// archive entries. The mapping ships as an embedded YAML file so deployments
// stay consistent regardless of the host's mime database.
package mimetypes

import (
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/mimetypes.yaml
var configFiles embed.FS

// DefaultType is returned for unknown extensions
const DefaultType = "application/octet-stream"

// Registry resolves file names to MIME types
type Registry struct {
	byExtension map[string]string
	mu          sync.RWMutex
}

// registryFile is the YAML shape of the embedded mapping
type registryFile struct {
	Extensions map[string]string `yaml:"extensions"`
}

// NewRegistry creates a registry from the embedded YAML mapping
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/mimetypes.yaml")
	if err != nil {
		return nil, fmt.Errorf("read mimetypes config: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal mimetypes config: %w", err)
	}

	byExt := make(map[string]string, len(file.Extensions))
	for ext, mime := range file.Extensions {
		byExt[normalizeExt(ext)] = mime
	}

	return &Registry{byExtension: byExt}, nil
}

// Lookup returns the MIME type for a file name, or DefaultType when the
// extension is unknown
func (r *Registry) Lookup(filename string) string {
	ext := normalizeExt(filepath.Ext(filename))
	if ext == "" {
		return DefaultType
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if mime, ok := r.byExtension[ext]; ok {
		return mime
	}
	return DefaultType
}

// Register adds or overrides a mapping at runtime
func (r *Registry) Register(ext, mime string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byExtension[normalizeExt(ext)] = mime
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
