package engine

import (
	"errors"

	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/keys"
)

// List returns every live user key in the namespace, in BackingStore
// traversal order. It does not filter expired-but-not-yet-vacuumed
// items; callers that need only live items should call Vacuum first.
func (e *Engine) List() ([]string, error) {
	if err := e.checkAlive(); err != nil {
		return nil, err
	}

	n, err := e.store.Size()
	if err != nil {
		return nil, err
	}

	var userKeys []string
	for i := 0; i < n; i++ {
		key, err := e.store.KeyAt(i)
		if err != nil {
			if errors.Is(err, backingstore.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if userKey, ok := keys.IsMarker(e.cfg.Prefix, e.cfg.Namespace, key); ok {
			userKeys = append(userKeys, userKey)
		}
	}
	return userKeys, nil
}
