package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/keys"
	"github.com/lsmkv/lsmkv/pkg/metadata"
)

// MigrationAdapter transforms one item's metadata and value onto a new
// schema version, per spec.md §4.11.6. It is a per-call collaborator
// supplied by the caller, not part of the core.
type MigrationAdapter interface {
	Up(meta metadata.Record, value any) (metadata.Record, any, error)
}

// Migrate rewrites every item whose schema version differs from
// targetVersion by running it through adapter.Up and writing the result
// back via Set, preserving the item's ttl/compress/encrypt flags. A
// failure from one item's adapter call is surfaced wrapped in
// ErrSchemaMigrationFailure; other items are attempted regardless (no
// rollback across items), per spec.md §4.11.6 and §7.
func (e *Engine) Migrate(targetVersion int, adapter MigrationAdapter) error {
	if err := e.checkAlive(); err != nil {
		return err
	}

	n, err := e.store.Size()
	if err != nil {
		return err
	}

	var userKeys []string
	for i := 0; i < n; i++ {
		key, err := e.store.KeyAt(i)
		if err != nil {
			if errors.Is(err, backingstore.ErrNotFound) {
				continue
			}
			return err
		}
		if userKey, ok := keys.IsMarker(e.cfg.Prefix, e.cfg.Namespace, key); ok {
			userKeys = append(userKeys, userKey)
		}
	}

	var firstErr error
	for _, userKey := range userKeys {
		if err := e.migrateOne(userKey, targetVersion, adapter); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			e.logger.Warn().Err(err).Str("key", userKey).Msg("schema migration failed for key")
		}
	}

	return firstErr
}

func (e *Engine) migrateOne(userKey string, targetVersion int, adapter MigrationAdapter) error {
	rec, err := e.metadata.Read(userKey)
	if err != nil {
		return err
	}
	if rec == nil || rec.SchemaVer == targetVersion {
		return nil
	}

	value, err := e.Get(userKey, nil)
	if err != nil {
		return err
	}

	newMeta, newValue, err := adapter.Up(*rec, value)
	if err != nil {
		return fmt.Errorf("%w: key %q: %v", ErrSchemaMigrationFailure, userKey, err)
	}

	opts := SetOptions{Compress: &newMeta.Compressed, Encrypt: &newMeta.Encrypted}
	if newMeta.TTL != nil {
		ttl := time.Duration(*newMeta.TTL) * time.Millisecond
		opts.TTL = &ttl
	}
	if err := e.Set(userKey, newValue, opts); err != nil {
		return err
	}

	rewritten, err := e.metadata.Read(userKey)
	if err != nil {
		return err
	}
	if rewritten == nil {
		return nil
	}
	rewritten.SchemaVer = targetVersion
	return e.metadata.Write(userKey, *rewritten)
}
