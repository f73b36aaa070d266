// Package localstore gives the sync core its only view of the finance
// database file: settle it, read it, replace it, and keep safety copies.
// The sync logic depends on the Store interface alone so platforms (or
// tests) can swap the implementation.
package localstore

import "context"

// Store abstracts the on-disk local data store.
type Store interface {
	// Path returns the primary store file path.
	Path() string

	// ForceCheckpoint flushes any write-ahead log into the primary file so
	// the on-disk bytes are settled before hashing or copying.
	ForceCheckpoint(ctx context.Context) error

	// ReadBytes returns the primary file's bytes. Callers that need a
	// settled view run ForceCheckpoint first.
	ReadBytes(ctx context.Context) ([]byte, error)

	// Replace closes any live handle, atomically swaps the primary file's
	// contents for data, and removes stale write-ahead-log/shared-memory
	// side files so no pre-replacement state can resurface.
	Replace(ctx context.Context, data []byte) error

	// CreateBackup writes a timestamped safety copy of the current primary
	// file and returns its path. When no primary file exists yet it
	// returns "" without error.
	CreateBackup(ctx context.Context) (string, error)

	// PruneBackups removes the oldest safety copies beyond keep.
	PruneBackups(ctx context.Context, keep int) error

	// Close releases the checkpoint handle.
	Close() error
}
