package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"

	"devportal/internal/domain"
)

// BillyStore is a BlobStore over a billy filesystem. Refs are opaque
// uuid-derived relative paths sharded by their first two hex characters to
// keep directory fan-out bounded.
type BillyStore struct {
	fs billy.Filesystem
}

// NewOsStore creates a blob store rooted at dir on the local disk
func NewOsStore(dir string) *BillyStore {
	return &BillyStore{fs: osfs.New(dir)}
}

// NewMemStore creates an in-memory blob store (tests, throwaway environments)
func NewMemStore() *BillyStore {
	return &BillyStore{fs: memfs.New()}
}

// Put writes the stream under a fresh ref
func (s *BillyStore) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	id := uuid.New().String()
	ref := path.Join(id[:2], id)

	if err := s.fs.MkdirAll(path.Dir(ref), 0o755); err != nil {
		return "", 0, fmt.Errorf("blob mkdir: %v: %w", err, domain.ErrStorage)
	}

	f, err := s.fs.Create(ref)
	if err != nil {
		return "", 0, fmt.Errorf("blob create: %v: %w", err, domain.ErrStorage)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		_ = s.fs.Remove(ref)
		return "", 0, fmt.Errorf("blob write: %v: %w", err, domain.ErrStorage)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(ref)
		return "", 0, fmt.Errorf("blob close: %v: %w", err, domain.ErrStorage)
	}

	return ref, size, nil
}

// Get opens the blob for reading
func (s *BillyStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %s: %w", ref, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("blob open: %v: %w", err, domain.ErrStorage)
	}
	return f, nil
}

// Delete removes the blob; absent refs are ignored
func (s *BillyStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.fs.Remove(ref); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("blob remove: %v: %w", err, domain.ErrStorage)
	}
	return nil
}
