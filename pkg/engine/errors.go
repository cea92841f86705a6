package engine

import "errors"

// Error taxonomy, per spec.md §7. StorageFull and CryptoFail are
// re-exported from their owning packages rather than duplicated here;
// see backingstore.ErrStorageFull and codec.ErrCryptoFail.
var (
	// ErrInstanceDestroyed is returned by any mutating call made after
	// Destroy.
	ErrInstanceDestroyed = errors.New("engine: instance destroyed")

	// ErrInvalidSnapshot is returned by Import when the snapshot has no
	// data field.
	ErrInvalidSnapshot = errors.New("engine: invalid snapshot")

	// ErrSchemaMigrationFailure wraps an adapter error raised during
	// Migrate; other items are skipped, not rolled back.
	ErrSchemaMigrationFailure = errors.New("engine: schema migration failure")
)
