package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"devportal/internal/config"
	"devportal/internal/domain"
	"devportal/internal/domain/models"
	"devportal/internal/domain/repositories"
	"devportal/internal/domain/services"
	"devportal/internal/mimetypes"
	"devportal/internal/storage"
)

type archiveService struct {
	nodeRepo  repositories.NodeRepository
	blobs     storage.BlobStore
	mimes     *mimetypes.Registry
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewArchiveTranscoder creates a new archive transcoder service
func NewArchiveTranscoder(
	nodeRepo repositories.NodeRepository,
	blobs storage.BlobStore,
	mimes *mimetypes.Registry,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) services.ArchiveTranscoder {
	return &archiveService{
		nodeRepo:  nodeRepo,
		blobs:     blobs,
		mimes:     mimes,
		txManager: txManager,
		logger:    logger,
	}
}

// CompressFolder streams the folder's non-deleted subtree to w as a zip.
// Entry names are relative to the compressed folder, so extracting the
// archive elsewhere reproduces the folder's contents, not the folder itself.
func (s *archiveService) CompressFolder(ctx context.Context, nodeID string, w io.Writer) error {
	folder, err := s.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if folder.IsDeleted() {
		return fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
	}
	if !folder.IsFolder() {
		return fmt.Errorf("node %s is not a folder: %w", nodeID, domain.ErrValidation)
	}

	zipWriter := zip.NewWriter(w)
	scope := models.ScopeOf(folder)

	var files, folders int
	type frame struct {
		node    *models.Node
		relPath string
	}
	stack := []frame{{node: folder, relPath: ""}}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := s.nodeRepo.ListChildren(ctx, scope, &current.node.ID)
		if err != nil {
			zipWriter.Close()
			return err
		}

		// An empty folder leaves no trace through its children, so it
		// gets an explicit directory entry
		if len(children) == 0 && current.relPath != "" {
			if _, err := zipWriter.Create(current.relPath + "/"); err != nil {
				zipWriter.Close()
				return err
			}
		}

		for i := range children {
			child := children[i]
			relPath := child.Name
			if current.relPath != "" {
				relPath = current.relPath + "/" + child.Name
			}

			if child.IsFolder() {
				folders++
				stack = append(stack, frame{node: &children[i], relPath: relPath})
				continue
			}

			files++
			if err := s.writeFileEntry(ctx, zipWriter, &child, relPath); err != nil {
				zipWriter.Close()
				return err
			}
		}
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	s.logger.Info("folder compressed",
		"node_id", nodeID,
		"files", files,
		"folders", folders,
	)
	return nil
}

func (s *archiveService) writeFileEntry(ctx context.Context, zw *zip.Writer, node *models.Node, relPath string) error {
	header := &zip.FileHeader{
		Name:     relPath,
		Method:   zip.Deflate,
		Modified: node.UpdatedAt,
	}
	entry, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	if node.StorageRef == nil {
		return fmt.Errorf("file %s has no content: %w", node.ID, domain.ErrStorage)
	}
	rc, err := s.blobs.Get(ctx, *node.StorageRef)
	if err != nil {
		return err
	}
	defer rc.Close()

	if _, err := io.Copy(entry, rc); err != nil {
		return fmt.Errorf("failed to write archive entry '%s': %w", relPath, err)
	}
	return nil
}

// DecompressZip reads a zip stream into memory and reconstructs its entries
// as nodes under parentID. Folders already present at an entry's position are
// reused; name collisions with existing files abort the whole operation. All
// blob writes are staged before the repository transaction opens, so node
// store locks are never held across blob I/O; a failed stage or transaction
// deletes the staged blobs again.
func (s *archiveService) DecompressZip(ctx context.Context, r io.Reader, scope models.Scope, parentID *string) ([]models.Node, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}

	zipData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive stream: %w", err)
	}
	zipFile, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, fmt.Errorf("not a valid zip archive: %w", domain.ErrFormat)
	}
	if len(zipFile.File) > config.MaxArchiveEntries {
		return nil, fmt.Errorf("archive has %d entries, limit is %d: %w",
			len(zipFile.File), config.MaxArchiveEntries, domain.ErrValidation)
	}

	var newRefs []string
	cleanup := func() {
		for _, ref := range newRefs {
			if delErr := s.blobs.Delete(ctx, ref); delErr != nil {
				s.logger.Warn("archive blob cleanup failed", "ref", ref, "error", delErr)
			}
		}
	}

	staged := make([]zipEntry, 0, len(zipFile.File))
	for _, file := range zipFile.File {
		entryPath, isDir, err := normalizeEntryName(file.Name)
		if err != nil {
			cleanup()
			return nil, err
		}
		if entryPath == "" {
			continue
		}
		entry := zipEntry{path: entryPath, isDir: isDir}
		if !isDir {
			if err := s.stageFileEntry(ctx, file, &entry, &newRefs); err != nil {
				cleanup()
				return nil, err
			}
		}
		staged = append(staged, entry)
	}

	var created []models.Node
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if _, err := s.ensureParentFolder(txCtx, scope, parentID); err != nil {
			return err
		}

		// path -> folder node ID, for folders reused or created in this call
		folderIDs := make(map[string]*string)

		for i := range staged {
			entry := &staged[i]
			dir := path.Dir(entry.path)
			if entry.isDir {
				dir = entry.path
			}
			entryParent, err := s.ensureFolders(txCtx, scope, parentID, dir, folderIDs, &created)
			if err != nil {
				return err
			}
			if entry.isDir {
				continue
			}

			node, err := s.createFileNode(txCtx, scope, entryParent, entry)
			if err != nil {
				return err
			}
			created = append(created, *node)
		}
		return nil
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	s.logger.Info("archive decompressed",
		"container_type", scope.ContainerType,
		"container_id", scope.ContainerID,
		"nodes", len(created),
	)
	return created, nil
}

// ensureParentFolder checks that the decompression root exists and is a
// folder in the given scope.
func (s *archiveService) ensureParentFolder(ctx context.Context, scope models.Scope, parentID *string) (*models.Node, error) {
	if parentID == nil {
		return nil, nil
	}
	parent, err := s.nodeRepo.GetByID(ctx, *parentID)
	if err != nil {
		return nil, fmt.Errorf("parent folder: %w", err)
	}
	if parent.IsDeleted() || !parent.IsFolder() || !models.ScopeOf(parent).SameAs(scope) {
		return nil, fmt.Errorf("parent %s is not a folder in this scope: %w", *parentID, domain.ErrNotFound)
	}
	return parent, nil
}

// ensureFolders walks dir segment by segment under parentID, reusing folders
// that exist and creating the ones that do not. Returns the deepest folder's
// ID (nil when dir is the root itself).
func (s *archiveService) ensureFolders(
	ctx context.Context,
	scope models.Scope,
	parentID *string,
	dir string,
	folderIDs map[string]*string,
	created *[]models.Node,
) (*string, error) {
	if dir == "." || dir == "" {
		return parentID, nil
	}
	if id, ok := folderIDs[dir]; ok {
		return id, nil
	}

	currentParent := parentID
	var walked []string
	for _, segment := range strings.Split(dir, "/") {
		walked = append(walked, segment)
		key := strings.Join(walked, "/")

		if id, ok := folderIDs[key]; ok {
			currentParent = id
			continue
		}

		existing, err := s.nodeRepo.GetChildByName(ctx, scope, currentParent, segment)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if !existing.IsFolder() {
				return nil, &domain.ConflictError{
					Message:      fmt.Sprintf("'%s' exists and is not a folder", key),
					ResourceType: "node",
					ResourceID:   existing.ID,
				}
			}
			folderIDs[key] = &existing.ID
			currentParent = &existing.ID
			continue
		}

		now := time.Now()
		folder := &models.Node{
			ID:            uuid.New().String(),
			ContainerType: scope.ContainerType,
			ContainerID:   scope.ContainerID,
			BranchID:      scope.BranchID,
			ParentID:      currentParent,
			Name:          segment,
			Kind:          models.KindFolder,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.nodeRepo.Create(ctx, folder); err != nil {
			return nil, err
		}
		*created = append(*created, *folder)
		folderIDs[key] = &folder.ID
		currentParent = &folder.ID
	}
	return currentParent, nil
}

// zipEntry is one normalized archive entry with its blob staged ahead of the
// repository transaction.
type zipEntry struct {
	path  string
	isDir bool
	ref   string
	size  int64
}

// stageFileEntry writes one zip entry's bytes to the blob store, outside any
// repository transaction. The ref is tracked for compensation on failure.
func (s *archiveService) stageFileEntry(ctx context.Context, file *zip.File, entry *zipEntry, newRefs *[]string) error {
	name := path.Base(entry.path)
	if err := validateName(name); err != nil {
		return err
	}

	entryReader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry '%s': %w", file.Name, domain.ErrFormat)
	}
	defer entryReader.Close()

	// One byte of headroom so an at-limit entry still passes
	limited := io.LimitReader(entryReader, config.MaxArchiveEntrySize+1)
	ref, size, err := s.blobs.Put(ctx, limited)
	if err != nil {
		return err
	}
	*newRefs = append(*newRefs, ref)
	if size > config.MaxArchiveEntrySize {
		return fmt.Errorf("archive entry '%s' exceeds the size limit: %w", file.Name, domain.ErrValidation)
	}
	entry.ref = ref
	entry.size = size
	return nil
}

// createFileNode creates the node row referencing an already-staged blob.
func (s *archiveService) createFileNode(ctx context.Context, scope models.Scope, parentID *string, entry *zipEntry) (*models.Node, error) {
	name := path.Base(entry.path)
	mimeType := s.mimes.Lookup(name)
	ref := entry.ref
	now := time.Now()
	node := &models.Node{
		ID:            uuid.New().String(),
		ContainerType: scope.ContainerType,
		ContainerID:   scope.ContainerID,
		BranchID:      scope.BranchID,
		ParentID:      parentID,
		Name:          name,
		Kind:          models.KindFile,
		StorageRef:    &ref,
		MimeType:      &mimeType,
		ByteSize:      entry.size,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.nodeRepo.Create(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

// normalizeEntryName cleans a zip entry name into a /-relative path and
// reports whether the entry is a directory. Names escaping the extraction
// root are rejected.
func normalizeEntryName(name string) (string, bool, error) {
	isDir := strings.HasSuffix(name, "/")
	cleaned := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if cleaned == "." || cleaned == "/" {
		return "", isDir, nil
	}
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false, fmt.Errorf("archive entry '%s' escapes the extraction root: %w", name, domain.ErrFormat)
	}
	return cleaned, isDir, nil
}
