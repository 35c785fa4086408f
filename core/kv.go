package core

import "context"

// Logical keys of the persisted collections.
const (
	KeyUsers       = "users"
	KeyAssignments = "assignments"
	KeySubmissions = "submissions"
	KeyCurrentUser = "current_user"
	KeyInitialized = "initialized"
)

type (
	// KVExecutor is the narrow get/set contract every persisted collection goes through.
	// Get reports found=false for absent keys; all failures are *StorageError.
	KVExecutor interface {
		Get(ctx context.Context, key string) (val []byte, found bool, err error)
		Set(ctx context.Context, key string, val []byte) error
		Delete(ctx context.Context, key string) error
	}

	KVStore interface {
		KVExecutor

		// Begin starts a buffered transaction: writes are visible to its own reads
		// and applied all at once on Commit.
		Begin(ctx context.Context) (KVTransactor, error)
		Close() error
	}

	KVTransactor interface {
		KVExecutor

		Commit() error
		Rollback() error
	}
)

// InTx runs fn inside a KV transaction, committing on success and rolling back otherwise.
func InTx(ctx context.Context, store KVStore, fn func(tx KVExecutor) error) error {
	tx, err := store.Begin(ctx)
	if err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
