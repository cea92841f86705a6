package engine

import (
	"errors"
	"strings"

	"github.com/lsmkv/lsmkv/internal/broadcast"
	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/keys"
)

// Clear deletes every BackingStore entry under the namespace's prefix,
// including the journal, lock, and encryption-key records, and
// broadcasts CLEAR on success. It is a mutator and so acquires the
// namespace lock like set/remove/import, per spec.md §5's shared
// resource policy.
func (e *Engine) Clear() error {
	if err := e.checkAlive(); err != nil {
		return err
	}

	release, lockErr := e.tryLock()
	if lockErr == nil {
		defer release()
	}

	root := keys.NamespaceRoot(e.cfg.Prefix, e.cfg.Namespace)
	n, err := e.store.Size()
	if err != nil {
		return err
	}

	var toDelete []string
	for i := 0; i < n; i++ {
		key, err := e.store.KeyAt(i)
		if err != nil {
			if errors.Is(err, backingstore.ErrNotFound) {
				continue
			}
			return err
		}
		if strings.HasPrefix(key, root) {
			toDelete = append(toDelete, key)
		}
	}

	for _, key := range toDelete {
		if err := e.store.Delete(key); err != nil {
			return err
		}
	}

	e.publish(broadcast.Clear, "", nil)
	return nil
}
