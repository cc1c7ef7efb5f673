package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles multi-statement atomicity. Tree mutations that
// touch several rows (subtree delete, paste, decompress) run through ExecTx so
// a reader never observes a half-applied operation.
type TransactionManager interface {
	// ExecTx executes a function within a transaction
	ExecTx(ctx context.Context, fn TxFn) error
}
