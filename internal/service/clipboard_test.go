package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"devportal/internal/domain"
	"devportal/internal/domain/models"
)

func TestClipboard_LastWriterWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	a := env.mustCreateFile(t, scope, nil, "a.txt", "a")
	b := env.mustCreateFile(t, scope, nil, "b.txt", "b")

	if _, err := env.clipboard.Copy(ctx, "u1", []string{a.ID}); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if _, err := env.clipboard.Cut(ctx, "u1", []string{b.ID}); err != nil {
		t.Fatalf("Cut failed: %v", err)
	}

	op, err := env.clipboard.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if op == nil || op.OperationType != models.ClipboardCut || op.NodeIDs[0] != b.ID {
		t.Fatalf("expected the cut to replace the copy, got %+v", op)
	}

	// Other users are unaffected
	other, err := env.clipboard.Status(ctx, "u2")
	if err != nil || other != nil {
		t.Fatalf("expected empty clipboard for u2, got (%+v, %v)", other, err)
	}
}

func TestClipboard_SelectionRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	folder := env.mustCreateFolder(t, scope, nil, "docs")
	inner := env.mustCreateFile(t, scope, &folder.ID, "a.txt", "a")
	foreign := env.mustCreateFile(t, projectScope("p2"), nil, "b.txt", "b")
	deleted := env.mustCreateFile(t, scope, nil, "dead.txt", "d")
	if err := env.nodes.SoftDelete(ctx, deleted.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	tests := []struct {
		name    string
		nodeIDs []string
		wantErr error
	}{
		{"empty selection", nil, domain.ErrValidation},
		{"unknown node", []string{"missing"}, domain.ErrNotFound},
		{"deleted node", []string{deleted.ID}, domain.ErrNotFound},
		{"cross-scope selection", []string{folder.ID, foreign.ID}, domain.ErrValidation},
		{"nested selection", []string{folder.ID, inner.ID}, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.clipboard.Copy(ctx, "u1", tt.nodeIDs); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClipboard_CutPasteMovesAndClears(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	src := env.mustCreateFolder(t, scope, nil, "src")
	file := env.mustCreateFile(t, scope, &src.ID, "a.txt", "a")
	dst := env.mustCreateFolder(t, scope, nil, "dst")

	if _, err := env.clipboard.Cut(ctx, "u1", []string{file.ID}); err != nil {
		t.Fatalf("Cut failed: %v", err)
	}

	moved, err := env.clipboard.Paste(ctx, "u1", &dst.ID)
	if err != nil {
		t.Fatalf("Paste failed: %v", err)
	}
	if len(moved) != 1 || moved[0].ParentID == nil || *moved[0].ParentID != dst.ID {
		t.Fatalf("expected file moved under dst, got %+v", moved)
	}
	if moved[0].ID != file.ID {
		t.Fatalf("cut-paste must keep the node's identity")
	}

	// A successful cut-paste consumes the clipboard
	op, err := env.clipboard.Status(ctx, "u1")
	if err != nil || op != nil {
		t.Fatalf("expected empty clipboard after cut-paste, got (%+v, %v)", op, err)
	}
	if _, err := env.clipboard.Paste(ctx, "u1", &dst.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict pasting an empty clipboard, got %v", err)
	}
}

func TestClipboard_CutPasteCollisionFailsWholesale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	src := env.mustCreateFolder(t, scope, nil, "src")
	a := env.mustCreateFile(t, scope, &src.ID, "a.txt", "a")
	b := env.mustCreateFile(t, scope, &src.ID, "b.txt", "b")
	dst := env.mustCreateFolder(t, scope, nil, "dst")
	env.mustCreateFile(t, scope, &dst.ID, "b.txt", "existing")

	if _, err := env.clipboard.Cut(ctx, "u1", []string{a.ID, b.ID}); err != nil {
		t.Fatalf("Cut failed: %v", err)
	}

	if _, err := env.clipboard.Paste(ctx, "u1", &dst.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on destination collision, got %v", err)
	}

	// Nothing moved, clipboard is intact
	got, err := env.nodes.GetNode(ctx, a.ID)
	if err != nil || got.ParentID == nil || *got.ParentID != src.ID {
		t.Fatalf("expected a.txt untouched after failed paste, got (%+v, %v)", got, err)
	}
	op, err := env.clipboard.Status(ctx, "u1")
	if err != nil || op == nil {
		t.Fatalf("expected clipboard preserved after failed paste, got (%+v, %v)", op, err)
	}
}

func TestClipboard_CutPasteIntoOwnSubtree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	root := env.mustCreateFolder(t, scope, nil, "root")
	child := env.mustCreateFolder(t, scope, &root.ID, "child")

	if _, err := env.clipboard.Cut(ctx, "u1", []string{root.ID}); err != nil {
		t.Fatalf("Cut failed: %v", err)
	}
	if _, err := env.clipboard.Paste(ctx, "u1", &child.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation pasting into own subtree, got %v", err)
	}
}

func TestClipboard_CopyPasteClonesDeepAndRepeats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	folder := env.mustCreateFolder(t, scope, nil, "docs")
	env.mustCreateFile(t, scope, &folder.ID, "a.txt", "alpha")
	sub := env.mustCreateFolder(t, scope, &folder.ID, "sub")
	env.mustCreateFile(t, scope, &sub.ID, "b.txt", "beta")
	dst := env.mustCreateFolder(t, scope, nil, "dst")

	if _, err := env.clipboard.Copy(ctx, "u1", []string{folder.ID}); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	pasted, err := env.clipboard.Paste(ctx, "u1", &dst.ID)
	if err != nil {
		t.Fatalf("Paste failed: %v", err)
	}
	if len(pasted) != 1 || pasted[0].ID == folder.ID {
		t.Fatalf("copy-paste must create a fresh root, got %+v", pasted)
	}

	// Clone has the full structure with independent content
	cloneContents, err := env.nodes.ListChildren(ctx, scope, &pasted[0].ID)
	if err != nil {
		t.Fatalf("ListChildren on clone failed: %v", err)
	}
	if len(cloneContents.Children) != 2 {
		t.Fatalf("expected 2 children in clone, got %d", len(cloneContents.Children))
	}
	for _, child := range cloneContents.Children {
		if child.IsFile() {
			if got := env.readBlob(t, &child); got != "alpha" {
				t.Fatalf("clone content mismatch: %q", got)
			}
		}
	}

	// Copy stays pastable; the second paste under the same target renames
	again, err := env.clipboard.Paste(ctx, "u1", &dst.ID)
	if err != nil {
		t.Fatalf("second Paste failed: %v", err)
	}
	if again[0].Name != "docs (copy)" {
		t.Fatalf("expected rename to 'docs (copy)', got %q", again[0].Name)
	}

	third, err := env.clipboard.Paste(ctx, "u1", &dst.ID)
	if err != nil {
		t.Fatalf("third Paste failed: %v", err)
	}
	if third[0].Name != "docs (copy 2)" {
		t.Fatalf("expected rename to 'docs (copy 2)', got %q", third[0].Name)
	}
}

func TestClipboard_CopyPasteSameNamedSources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	a := env.mustCreateFolder(t, scope, nil, "a")
	b := env.mustCreateFolder(t, scope, nil, "b")
	xa := env.mustCreateFile(t, scope, &a.ID, "x.txt", "from a")
	xb := env.mustCreateFile(t, scope, &b.ID, "x.txt", "from b")
	dst := env.mustCreateFolder(t, scope, nil, "dst")

	// Equally-named sources from different folders are a legal selection;
	// pasting them together must rename, never fail.
	if _, err := env.clipboard.Copy(ctx, "u1", []string{xa.ID, xb.ID}); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	pasted, err := env.clipboard.Paste(ctx, "u1", &dst.ID)
	if err != nil {
		t.Fatalf("Paste failed: %v", err)
	}
	if len(pasted) != 2 {
		t.Fatalf("expected 2 pasted roots, got %d", len(pasted))
	}
	if pasted[0].Name != "x.txt" || pasted[1].Name != "x.txt (copy)" {
		t.Fatalf("expected 'x.txt' and 'x.txt (copy)', got %q and %q", pasted[0].Name, pasted[1].Name)
	}
	if got := env.readBlob(t, &pasted[0]); got != "from a" {
		t.Fatalf("first clone content mismatch: %q", got)
	}
	if got := env.readBlob(t, &pasted[1]); got != "from b" {
		t.Fatalf("second clone content mismatch: %q", got)
	}
}

func TestClipboard_Expiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	file := env.mustCreateFile(t, scope, nil, "a.txt", "a")

	start := time.Now()
	clockAt(env.clipboard, start)
	if _, err := env.clipboard.Copy(ctx, "u1", []string{file.ID}); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	clockAt(env.clipboard, start.Add(23*time.Hour))
	if op, err := env.clipboard.Status(ctx, "u1"); err != nil || op == nil {
		t.Fatalf("expected operation still active before TTL, got (%+v, %v)", op, err)
	}

	clockAt(env.clipboard, start.Add(25*time.Hour))
	if op, err := env.clipboard.Status(ctx, "u1"); err != nil || op != nil {
		t.Fatalf("expected operation expired after TTL, got (%+v, %v)", op, err)
	}
	if _, err := env.clipboard.Paste(ctx, "u1", nil); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict pasting an expired clipboard, got %v", err)
	}
}

func TestClipboard_CancelIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	file := env.mustCreateFile(t, scope, nil, "a.txt", "a")
	if _, err := env.clipboard.Copy(ctx, "u1", []string{file.ID}); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := env.clipboard.Cancel(ctx, "u1"); err != nil {
			t.Fatalf("Cancel #%d failed: %v", i+1, err)
		}
	}
	if err := env.clipboard.Cancel(ctx, "never-seen"); err != nil {
		t.Fatalf("Cancel for unknown user failed: %v", err)
	}

	if op, _ := env.clipboard.Status(ctx, "u1"); op != nil {
		t.Fatalf("expected empty clipboard after cancel, got %+v", op)
	}
}
