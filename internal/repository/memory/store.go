// Package memory provides an in-process NodeRepository/BranchRepository pair
// backed by a flat arena of nodes keyed by id. It mirrors the Postgres
// implementation's semantics (sibling uniqueness, soft-delete visibility,
// ordering) and backs tests plus zero-dependency demo deployments.
package memory

import (
	"context"
	"sync"

	"devportal/internal/domain/models"
	"devportal/internal/domain/repositories"
)

// Store is the shared arena behind the memory repositories. A single RWMutex
// serializes mutations while letting readers share; ExecTx holds the write
// lock for its whole body and restores a snapshot on error, so multi-row
// mutations are atomic the way a database transaction is.
type Store struct {
	mu       sync.RWMutex
	nodes    map[string]*models.Node
	branches map[string]*models.Branch
}

// NewStore creates an empty arena
func NewStore() *Store {
	return &Store{
		nodes:    make(map[string]*models.Node),
		branches: make(map[string]*models.Branch),
	}
}

// memTxKey marks a context as running inside ExecTx, where the write lock is
// already held and repository methods must not re-lock.
type memTxKey struct{}

func inTx(ctx context.Context) bool {
	held, _ := ctx.Value(memTxKey{}).(bool)
	return held
}

func (s *Store) rlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	nodes    map[string]*models.Node
	branches map[string]*models.Branch
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		nodes:    make(map[string]*models.Node, len(s.nodes)),
		branches: make(map[string]*models.Branch, len(s.branches)),
	}
	for id, n := range s.nodes {
		c := *n
		snap.nodes[id] = &c
	}
	for id, b := range s.branches {
		c := *b
		snap.branches[id] = &c
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.nodes = snap.nodes
	s.branches = snap.branches
}

// TransactionManager implements repositories.TransactionManager over the
// arena: the write lock is the transaction, a snapshot is the rollback.
type TransactionManager struct {
	store *Store
}

// NewTransactionManager creates a transaction manager for the store
func NewTransactionManager(store *Store) repositories.TransactionManager {
	return &TransactionManager{store: store}
}

// ExecTx executes fn atomically against the arena
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if inTx(ctx) {
		// Already inside a transaction, just run the body
		return fn(ctx)
	}

	tm.store.mu.Lock()
	defer tm.store.mu.Unlock()

	snap := tm.store.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		tm.store.restore(snap)
		return err
	}
	return nil
}
