package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"devportal/internal/domain"
	"devportal/internal/domain/models"
	"devportal/internal/domain/repositories"
	"devportal/internal/mimetypes"
	"devportal/internal/storage"
)

func TestArchive_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	// docs/
	//   a.txt
	//   empty/
	//   sub/
	//     b.txt
	docs := env.mustCreateFolder(t, scope, nil, "docs")
	env.mustCreateFile(t, scope, &docs.ID, "a.txt", "alpha")
	env.mustCreateFolder(t, scope, &docs.ID, "empty")
	sub := env.mustCreateFolder(t, scope, &docs.ID, "sub")
	env.mustCreateFile(t, scope, &sub.ID, "b.txt", "beta")

	var buf bytes.Buffer
	if err := env.archive.CompressFolder(ctx, docs.ID, &buf); err != nil {
		t.Fatalf("CompressFolder failed: %v", err)
	}

	// Decompress into a fresh container
	target := projectScope("p2")
	created, err := env.archive.DecompressZip(ctx, bytes.NewReader(buf.Bytes()), target, nil)
	if err != nil {
		t.Fatalf("DecompressZip failed: %v", err)
	}

	// a.txt, b.txt, empty/, sub/ = 4 nodes
	if len(created) != 4 {
		t.Fatalf("expected 4 created nodes, got %d: %+v", len(created), created)
	}

	a, err := env.paths.Resolve(ctx, target, "a.txt")
	if err != nil || !a.IsFile() {
		t.Fatalf("a.txt missing after round trip: %v", err)
	}
	if got := env.readBlob(t, a); got != "alpha" {
		t.Fatalf("a.txt content mismatch: %q", got)
	}

	b, err := env.paths.Resolve(ctx, target, "sub/b.txt")
	if err != nil || !b.IsFile() {
		t.Fatalf("sub/b.txt missing after round trip: %v", err)
	}
	if got := env.readBlob(t, b); got != "beta" {
		t.Fatalf("b.txt content mismatch: %q", got)
	}

	empty, err := env.paths.Resolve(ctx, target, "empty")
	if err != nil || !empty.IsFolder() {
		t.Fatalf("empty folder lost in round trip: %v", err)
	}
}

func TestCompressFolder_RejectsFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	file := env.mustCreateFile(t, scope, nil, "a.txt", "a")

	var buf bytes.Buffer
	if err := env.archive.CompressFolder(ctx, file.ID, &buf); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation compressing a file, got %v", err)
	}
	if err := env.archive.CompressFolder(ctx, "missing", &buf); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown node, got %v", err)
	}
}

func TestDecompressZip_InvalidStream(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.archive.DecompressZip(ctx, strings.NewReader("this is not a zip"), projectScope("p1"), nil)
	if !errors.Is(err, domain.ErrFormat) {
		t.Fatalf("expected ErrFormat for garbage stream, got %v", err)
	}
}

func TestDecompressZip_RejectsEscapingEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("../escape.txt")
	w.Write([]byte("nope"))
	zw.Close()

	_, err := env.archive.DecompressZip(ctx, bytes.NewReader(buf.Bytes()), scope, nil)
	if !errors.Is(err, domain.ErrFormat) {
		t.Fatalf("expected ErrFormat for escaping entry, got %v", err)
	}

	// The aborted extraction left nothing behind
	contents, err := env.nodes.ListChildren(ctx, scope, nil)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(contents.Children) != 0 {
		t.Fatalf("expected no nodes after failed extraction, got %+v", contents.Children)
	}
}

func TestDecompressZip_ReusesExistingFolders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	docs := env.mustCreateFolder(t, scope, nil, "docs")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("docs/new.txt")
	w.Write([]byte("fresh"))
	zw.Close()

	created, err := env.archive.DecompressZip(ctx, bytes.NewReader(buf.Bytes()), scope, nil)
	if err != nil {
		t.Fatalf("DecompressZip failed: %v", err)
	}
	// Only the file: the docs folder already existed
	if len(created) != 1 || created[0].Name != "new.txt" {
		t.Fatalf("expected a single created file, got %+v", created)
	}
	if created[0].ParentID == nil || *created[0].ParentID != docs.ID {
		t.Fatalf("expected new.txt under the existing docs folder")
	}
}

func TestDecompressZip_FileCollisionAborts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	env.mustCreateFile(t, scope, nil, "a.txt", "original")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("a.txt")
	w.Write([]byte("incoming"))
	w, _ = zw.Create("b.txt")
	w.Write([]byte("other"))
	zw.Close()

	if _, err := env.archive.DecompressZip(ctx, bytes.NewReader(buf.Bytes()), scope, nil); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on existing file, got %v", err)
	}

	// b.txt was rolled back with the rest
	if node, _ := env.paths.Resolve(ctx, scope, "b.txt"); node != nil {
		t.Fatalf("expected b.txt rolled back, found %+v", node)
	}
	a, err := env.paths.Resolve(ctx, scope, "a.txt")
	if err != nil {
		t.Fatalf("a.txt should survive: %v", err)
	}
	if got := env.readBlob(t, a); got != "original" {
		t.Fatalf("a.txt content clobbered: %q", got)
	}
}

// trackingTxManager flags while a transaction body is running so the blob
// store below can detect writes issued under node store locks.
type trackingTxManager struct {
	inner repositories.TransactionManager
	inTx  atomic.Bool
}

func (m *trackingTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	m.inTx.Store(true)
	defer m.inTx.Store(false)
	return m.inner.ExecTx(ctx, fn)
}

type txRejectingBlobStore struct {
	storage.BlobStore
	tx *trackingTxManager
}

func (b *txRejectingBlobStore) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	if b.tx.inTx.Load() {
		return "", 0, errors.New("blob write issued inside a node store transaction")
	}
	return b.BlobStore.Put(ctx, r)
}

func TestDecompressZip_BlobWritesOutsideTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := projectScope("p1")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mimes, err := mimetypes.NewRegistry()
	if err != nil {
		t.Fatalf("failed to build mime registry: %v", err)
	}
	tx := &trackingTxManager{inner: env.txManager}
	blobs := &txRejectingBlobStore{BlobStore: env.blobs, tx: tx}
	transcoder := NewArchiveTranscoder(env.nodeRepo, blobs, mimes, tx, logger)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"a.txt", "docs/b.txt"} {
		w, _ := zw.Create(name)
		w.Write([]byte("content"))
	}
	zw.Close()

	created, err := transcoder.DecompressZip(ctx, bytes.NewReader(buf.Bytes()), scope, nil)
	if err != nil {
		t.Fatalf("DecompressZip failed: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 2 files + 1 folder, got %+v", created)
	}
}

func TestDecompressZip_IntoSubfolderOfRepositoryScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scope := repositoryScope("r1", "b1")

	parent := env.mustCreateFolder(t, scope, nil, "vendor")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("lib/util.go")
	w.Write([]byte("package lib"))
	zw.Close()

	created, err := env.archive.DecompressZip(ctx, bytes.NewReader(buf.Bytes()), scope, &parent.ID)
	if err != nil {
		t.Fatalf("DecompressZip failed: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected folder + file, got %+v", created)
	}

	node, err := env.paths.Resolve(ctx, scope, "vendor/lib/util.go")
	if err != nil {
		t.Fatalf("expected vendor/lib/util.go to resolve: %v", err)
	}
	for _, n := range []*models.Node{node} {
		if n.BranchID == nil || *n.BranchID != "b1" {
			t.Fatalf("extracted node must inherit the branch scope: %+v", n)
		}
	}
}
