package mimetypes

import "testing"

func TestLookup(t *testing.T) {
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	tests := []struct {
		filename string
		want     string
	}{
		{"notes.md", "text/markdown; charset=utf-8"},
		{"README.MD", "text/markdown; charset=utf-8"}, // case-insensitive
		{"report.pdf", "application/pdf"},
		{"archive.zip", "application/zip"},
		{"data.json", "application/json"},
		{"photo.jpg", "image/jpeg"},
		{"main.go", "text/x-go; charset=utf-8"},
		{"no-extension", DefaultType},
		{"weird.xyzq", DefaultType},
		{"", DefaultType},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := registry.Lookup(tt.filename); got != tt.want {
				t.Errorf("Lookup(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestRegister_Overrides(t *testing.T) {
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	registry.Register(".custom", "application/x-custom")
	if got := registry.Lookup("file.custom"); got != "application/x-custom" {
		t.Errorf("expected registered type, got %q", got)
	}

	registry.Register("md", "text/plain")
	if got := registry.Lookup("notes.md"); got != "text/plain" {
		t.Errorf("expected override to win, got %q", got)
	}
}
