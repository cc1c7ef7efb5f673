package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"devportal/internal/domain"
	"devportal/internal/domain/models"
	"devportal/internal/domain/services"
)

func TestCreateFolder_SiblingNameUniqueness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	env.mustCreateFolder(t, scope, nil, "docs")

	_, err := env.nodes.CreateFolder(ctx, &services.CreateFolderRequest{Scope: scope, Name: "docs"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate sibling, got %v", err)
	}

	// A file with the same name collides too
	_, err = env.nodes.CreateFile(ctx, &services.CreateFileRequest{
		Scope: scope, Name: "docs", Content: strings.NewReader("x"),
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for file/folder name collision, got %v", err)
	}

	// Same name in a different folder is fine
	parent := env.mustCreateFolder(t, scope, nil, "other")
	env.mustCreateFolder(t, scope, &parent.ID, "docs")
}

func TestCreateFolder_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		scope models.Scope
		req   services.CreateFolderRequest
	}{
		{
			name: "empty name",
			req:  services.CreateFolderRequest{Scope: projectScope("p1"), Name: ""},
		},
		{
			name: "slash in name",
			req:  services.CreateFolderRequest{Scope: projectScope("p1"), Name: "a/b"},
		},
		{
			name: "name too long",
			req:  services.CreateFolderRequest{Scope: projectScope("p1"), Name: strings.Repeat("x", 300)},
		},
		{
			name: "project scope with branch",
			req: services.CreateFolderRequest{
				Scope: models.Scope{ContainerType: models.ContainerProject, ContainerID: "p1", BranchID: ptr("b1")},
				Name:  "docs",
			},
		},
		{
			name: "repository scope without branch",
			req: services.CreateFolderRequest{
				Scope: models.Scope{ContainerType: models.ContainerRepository, ContainerID: "r1"},
				Name:  "docs",
			},
		},
		{
			name: "unknown container type",
			req: services.CreateFolderRequest{
				Scope: models.Scope{ContainerType: "board", ContainerID: "b1"},
				Name:  "docs",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.nodes.CreateFolder(ctx, &tt.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreateFile_DetectsMimeType(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope("p1")

	file := env.mustCreateFile(t, scope, nil, "notes.md", "# hi")
	if file.MimeType == nil || *file.MimeType != "text/markdown; charset=utf-8" {
		t.Fatalf("expected markdown mime type, got %v", file.MimeType)
	}
	if file.ByteSize != 4 {
		t.Fatalf("expected byte size 4, got %d", file.ByteSize)
	}

	unknown := env.mustCreateFile(t, scope, nil, "blob.xyzq", "data")
	if unknown.MimeType == nil || *unknown.MimeType != "application/octet-stream" {
		t.Fatalf("expected octet-stream fallback, got %v", unknown.MimeType)
	}
}

func TestCreateFile_ParentMustBeFolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	file := env.mustCreateFile(t, scope, nil, "a.txt", "a")

	_, err := env.nodes.CreateFile(ctx, &services.CreateFileRequest{
		Scope: scope, ParentID: &file.ID, Name: "b.txt", Content: strings.NewReader("b"),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for file parent, got %v", err)
	}
}

func TestRename_CollisionAndNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	a := env.mustCreateFolder(t, scope, nil, "a")
	env.mustCreateFolder(t, scope, nil, "b")

	if _, err := env.nodes.Rename(ctx, a.ID, "b"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict renaming onto sibling, got %v", err)
	}

	// Renaming to the current name is a no-op
	node, err := env.nodes.Rename(ctx, a.ID, "a")
	if err != nil {
		t.Fatalf("no-op rename failed: %v", err)
	}
	if node.Name != "a" {
		t.Fatalf("expected name 'a', got %q", node.Name)
	}
}

func TestMove_RejectsCyclesAndCrossScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	root := env.mustCreateFolder(t, scope, nil, "root")
	mid := env.mustCreateFolder(t, scope, &root.ID, "mid")
	leaf := env.mustCreateFolder(t, scope, &mid.ID, "leaf")

	if _, err := env.nodes.Move(ctx, root.ID, &leaf.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation moving folder into its own subtree, got %v", err)
	}
	if _, err := env.nodes.Move(ctx, root.ID, &root.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation moving node into itself, got %v", err)
	}

	otherScope := projectScope("p2")
	foreign := env.mustCreateFolder(t, otherScope, nil, "foreign")
	if _, err := env.nodes.Move(ctx, leaf.ID, &foreign.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation moving across containers, got %v", err)
	}

	// Valid move: leaf up to the scope root
	moved, err := env.nodes.Move(ctx, leaf.ID, nil)
	if err != nil {
		t.Fatalf("move to root failed: %v", err)
	}
	if moved.ParentID != nil {
		t.Fatalf("expected nil parent after move to root")
	}
}

func TestListChildren_Ordering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	env.mustCreateFile(t, scope, nil, "beta.txt", "b")
	env.mustCreateFolder(t, scope, nil, "zeta")
	env.mustCreateFile(t, scope, nil, "Alpha.txt", "a")
	env.mustCreateFolder(t, scope, nil, "Anchor")

	contents, err := env.nodes.ListChildren(ctx, scope, nil)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}

	var got []string
	for _, n := range contents.Children {
		got = append(got, n.Name)
	}
	want := []string{"Anchor", "zeta", "Alpha.txt", "beta.txt"}
	if len(got) != len(want) {
		t.Fatalf("expected %d children, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: want %v, got %v", i, want, got)
		}
	}
}

func TestSoftDelete_TransitiveAndIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	root := env.mustCreateFolder(t, scope, nil, "root")
	child := env.mustCreateFolder(t, scope, &root.ID, "child")
	file := env.mustCreateFile(t, scope, &child.ID, "f.txt", "x")

	if err := env.nodes.SoftDelete(ctx, root.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	for _, id := range []string{root.ID, child.ID, file.ID} {
		if _, err := env.nodes.GetNode(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected deleted node %s to read as absent, got %v", id, err)
		}
	}

	// The name is free again
	env.mustCreateFolder(t, scope, nil, "root")

	// Second delete is a no-op
	if err := env.nodes.SoftDelete(ctx, root.ID); err != nil {
		t.Fatalf("repeated SoftDelete failed: %v", err)
	}

	deleted, err := env.nodes.ListDeleted(ctx, scope)
	if err != nil {
		t.Fatalf("ListDeleted failed: %v", err)
	}
	if len(deleted) != 3 {
		t.Fatalf("expected 3 deleted nodes, got %d", len(deleted))
	}
}

func TestRestore_SubtreeAndCollision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	root := env.mustCreateFolder(t, scope, nil, "root")
	child := env.mustCreateFile(t, scope, &root.ID, "f.txt", "x")

	if err := env.nodes.SoftDelete(ctx, root.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if err := env.nodes.Restore(ctx, root.ID); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if _, err := env.nodes.GetNode(ctx, child.ID); err != nil {
		t.Fatalf("expected child restored with parent, got %v", err)
	}

	// Restore into an occupied name fails
	if err := env.nodes.SoftDelete(ctx, root.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	env.mustCreateFolder(t, scope, nil, "root")
	if err := env.nodes.Restore(ctx, root.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict restoring onto occupied name, got %v", err)
	}
}

func TestRestore_RefusesDeletedParent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	root := env.mustCreateFolder(t, scope, nil, "root")
	child := env.mustCreateFile(t, scope, &root.ID, "f.txt", "x")

	if err := env.nodes.SoftDelete(ctx, root.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	// Restoring the child alone would leave it floating under a deleted
	// folder: reachable by search but not by path
	if err := env.nodes.Restore(ctx, child.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation restoring under a deleted parent, got %v", err)
	}

	// Restoring the parent brings the whole subtree back
	if err := env.nodes.Restore(ctx, root.ID); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if _, err := env.paths.Resolve(ctx, scope, "root/f.txt"); err != nil {
		t.Fatalf("expected root/f.txt reachable after restore, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	env.mustCreateFile(t, scope, nil, "Report-Final.pdf", "r")
	env.mustCreateFile(t, scope, nil, "notes.txt", "n")
	trash := env.mustCreateFile(t, scope, nil, "report-old.pdf", "o")
	if err := env.nodes.SoftDelete(ctx, trash.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	results, err := env.nodes.Search(ctx, scope, "repo")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Name != "Report-Final.pdf" {
		t.Fatalf("expected the one live report, got %v", results)
	}

	if _, err := env.nodes.Search(ctx, scope, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank query, got %v", err)
	}
}

func TestAggregate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	folder := env.mustCreateFolder(t, scope, nil, "docs")
	env.mustCreateFile(t, scope, &folder.ID, "a.txt", "12345")
	env.mustCreateFile(t, scope, nil, "b.txt", "123")
	deleted := env.mustCreateFile(t, scope, nil, "c.txt", "1234567")
	if err := env.nodes.SoftDelete(ctx, deleted.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	stats, err := env.nodes.Aggregate(ctx, scope)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if stats.FileCount != 2 || stats.FolderCount != 1 || stats.TotalBytes != 8 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDownload_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	file := env.mustCreateFile(t, scope, nil, "data.txt", "round trip")
	if got := env.readBlob(t, file); got != "round trip" {
		t.Fatalf("expected content %q, got %q", "round trip", got)
	}

	folder := env.mustCreateFolder(t, scope, nil, "docs")
	if _, _, err := env.nodes.Download(ctx, folder.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation downloading a folder, got %v", err)
	}
}

func TestScopeIsolation_BranchesDontSeeEachOther(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	main := repositoryScope("r1", "branch-main")
	dev := repositoryScope("r1", "branch-dev")

	env.mustCreateFolder(t, main, nil, "src")
	env.mustCreateFolder(t, dev, nil, "src") // same name, different branch

	contents, err := env.nodes.ListChildren(ctx, main, nil)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(contents.Children) != 1 {
		t.Fatalf("expected 1 child in main scope, got %d", len(contents.Children))
	}
}

func ptr(s string) *string { return &s }
