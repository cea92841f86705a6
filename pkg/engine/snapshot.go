package engine

import (
	"errors"
	"strings"
	"time"

	"github.com/lsmkv/lsmkv/internal/broadcast"
	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/keys"
)

// Snapshot is the export/import wire format, per spec.md §6.
type Snapshot struct {
	Namespace      string            `json:"namespace"`
	Prefix         string            `json:"prefix"`
	SchemaVersion  int               `json:"schemaVersion"`
	IncludeIndexes bool              `json:"includeIndexes"`
	Data           map[string]string `json:"data"`
	ExportedAt     int64             `json:"exportedAt"`
}

// Export returns every BackingStore entry under the namespace's prefix,
// per spec.md §4.11.5. Index records are included only when
// includeIndexes is true.
func (e *Engine) Export(includeIndexes bool) (Snapshot, error) {
	root := keys.NamespaceRoot(e.cfg.Prefix, e.cfg.Namespace)
	indexInfix := root + "__index__:"

	n, err := e.store.Size()
	if err != nil {
		return Snapshot{}, err
	}

	data := make(map[string]string)
	for i := 0; i < n; i++ {
		key, err := e.store.KeyAt(i)
		if err != nil {
			if errors.Is(err, backingstore.ErrNotFound) {
				continue
			}
			return Snapshot{}, err
		}
		if !strings.HasPrefix(key, root) {
			continue
		}
		if !includeIndexes && strings.HasPrefix(key, indexInfix) {
			continue
		}
		value, err := e.store.Get(key)
		if err != nil {
			if errors.Is(err, backingstore.ErrNotFound) {
				continue
			}
			return Snapshot{}, err
		}
		data[key] = value
	}

	return Snapshot{
		Namespace:      e.cfg.Namespace,
		Prefix:         e.cfg.Prefix,
		SchemaVersion:  e.cfg.SchemaVersion,
		IncludeIndexes: includeIndexes,
		Data:           data,
		ExportedAt:     time.Now().UnixMilli(),
	}, nil
}

// Import writes every (key, value) pair in snapshot.Data, per spec.md
// §4.11.5. When overwrite is false, keys that already exist are
// skipped. It acquires the namespace lock and broadcasts IMPORT on
// success.
func (e *Engine) Import(snapshot Snapshot, overwrite bool) error {
	if err := e.checkAlive(); err != nil {
		return err
	}
	if snapshot.Data == nil {
		return ErrInvalidSnapshot
	}

	release, lockErr := e.tryLock()
	if lockErr == nil {
		defer release()
	}

	for key, value := range snapshot.Data {
		if !overwrite {
			if _, err := e.store.Get(key); err == nil {
				continue
			} else if !errors.Is(err, backingstore.ErrNotFound) {
				return err
			}
		}
		if err := e.store.Put(key, value); err != nil {
			return err
		}
	}

	e.publish(broadcast.Import, "", nil)
	return nil
}
