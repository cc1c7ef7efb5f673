package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"devportal/internal/config"
	"devportal/internal/domain/models"
	"devportal/internal/domain/repositories"
	"devportal/internal/domain/services"
	"devportal/internal/mimetypes"
	"devportal/internal/repository/memory"
	"devportal/internal/storage"
)

// testEnv wires the full service stack against the in-memory repository and
// an in-memory blob store.
type testEnv struct {
	nodeRepo   repositories.NodeRepository
	branchRepo repositories.BranchRepository
	txManager  repositories.TransactionManager
	blobs      storage.BlobStore

	nodes     services.NodeService
	branches  services.BranchService
	paths     services.PathResolver
	clipboard services.Clipboard
	archive   services.ArchiveTranscoder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	nodeRepo := memory.NewNodeRepository(store)
	branchRepo := memory.NewBranchRepository(store)
	txManager := memory.NewTransactionManager(store)
	blobs := storage.NewMemStore()

	mimes, err := mimetypes.NewRegistry()
	if err != nil {
		t.Fatalf("failed to build mime registry: %v", err)
	}

	return &testEnv{
		nodeRepo:   nodeRepo,
		branchRepo: branchRepo,
		txManager:  txManager,
		blobs:      blobs,
		nodes:      NewNodeService(nodeRepo, blobs, mimes, txManager, logger),
		branches:   NewBranchService(branchRepo, txManager, logger),
		paths:      NewPathResolver(nodeRepo),
		clipboard:  NewClipboard(nodeRepo, blobs, txManager, config.DefaultClipboardTTL, logger),
		archive:    NewArchiveTranscoder(nodeRepo, blobs, mimes, txManager, logger),
	}
}

func projectScope(id string) models.Scope {
	return models.Scope{ContainerType: models.ContainerProject, ContainerID: id}
}

func repositoryScope(repoID, branchID string) models.Scope {
	return models.Scope{
		ContainerType: models.ContainerRepository,
		ContainerID:   repoID,
		BranchID:      &branchID,
	}
}

func (env *testEnv) mustCreateFolder(t *testing.T, scope models.Scope, parentID *string, name string) *models.Node {
	t.Helper()
	node, err := env.nodes.CreateFolder(context.Background(), &services.CreateFolderRequest{
		Scope:    scope,
		ParentID: parentID,
		Name:     name,
	})
	if err != nil {
		t.Fatalf("CreateFolder(%s) failed: %v", name, err)
	}
	return node
}

func (env *testEnv) mustCreateFile(t *testing.T, scope models.Scope, parentID *string, name, content string) *models.Node {
	t.Helper()
	node, err := env.nodes.CreateFile(context.Background(), &services.CreateFileRequest{
		Scope:    scope,
		ParentID: parentID,
		Name:     name,
		Content:  strings.NewReader(content),
	})
	if err != nil {
		t.Fatalf("CreateFile(%s) failed: %v", name, err)
	}
	return node
}

func (env *testEnv) readBlob(t *testing.T, node *models.Node) string {
	t.Helper()
	rc, _, err := env.nodes.Download(context.Background(), node.ID)
	if err != nil {
		t.Fatalf("Download(%s) failed: %v", node.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading download failed: %v", err)
	}
	return string(data)
}

// clockAt pins the clipboard service's clock for expiry tests
func clockAt(c services.Clipboard, at time.Time) {
	c.(*clipboardService).now = func() time.Time { return at }
}
