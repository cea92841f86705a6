// Package eviction implements the quota-bounded LRU/LFU eviction loop
// spec.md §4.8 describes: once a namespace's total item size exceeds its
// configured quota, victims are chosen and removed until the namespace
// is back under quota or the per-call iteration bound is hit.
package eviction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lsmkv/lsmkv/internal/metrics"
	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/keys"
	"github.com/lsmkv/lsmkv/pkg/metadata"
)

// Policy selects which item is evicted first when a namespace is over
// quota.
type Policy string

const (
	// LRU evicts the item with the oldest last-access timestamp first.
	LRU Policy = "lru"
	// LFU evicts the item with the lowest access count first.
	LFU Policy = "lfu"
)

// maxIterations bounds how many victims a single Run call will remove,
// per spec.md §4.8, so a pathological quota/size combination cannot
// turn one call into an unbounded loop.
const maxIterations = 1000

// Remover removes a fully-stored item (marker, metadata, chunks, and
// index registrations), as the engine facade's Remove does.
type Remover interface {
	Remove(userKey string) error
}

// Evictor runs the eviction loop for one (prefix, namespace) pair.
type Evictor struct {
	store     backingstore.Store
	registry  *metadata.Registry
	remover   Remover
	prefix    string
	namespace string
	policy    Policy
	quota     int64
}

// New returns an Evictor. quota is the maximum total BackingStore
// footprint (sum of key-length + value-length across every entry under
// the namespace's prefix) the namespace may hold before Run begins
// evicting.
func New(store backingstore.Store, registry *metadata.Registry, remover Remover, prefix, namespace string, policy Policy, quota int64) *Evictor {
	return &Evictor{
		store:     store,
		registry:  registry,
		remover:   remover,
		prefix:    prefix,
		namespace: namespace,
		policy:    policy,
		quota:     quota,
	}
}

// candidate pairs a user key with the ranking field its policy evicts
// on: LRU's Unix-nanosecond timestamp, or LFU's access count.
type candidate struct {
	userKey string
	rank    int64
}

// Run evicts victims, in policy order, until the namespace's total item
// size is at or under quota, or maxIterations victims have been removed,
// whichever comes first. It returns the number of items evicted.
func (e *Evictor) Run() (int, error) {
	if e.quota <= 0 {
		return 0, nil
	}

	evicted := 0
	for i := 0; i < maxIterations; i++ {
		total, err := e.totalSize()
		if err != nil {
			return evicted, err
		}
		if total <= e.quota {
			return evicted, nil
		}

		victim, found, err := e.pickVictim()
		if err != nil {
			return evicted, err
		}
		if !found {
			// Over quota but nothing left to evict; nothing more Run
			// can do this call.
			return evicted, nil
		}

		if err := e.remover.Remove(victim); err != nil {
			return evicted, fmt.Errorf("eviction: remove %q: %w", victim, err)
		}
		metrics.EvictionsTotal.WithLabelValues(e.namespace, string(e.policy)).Inc()
		evicted++
	}
	return evicted, nil
}

// totalSize is the namespace's real BackingStore footprint, per spec.md
// §4.8: "sum of key-length + value-length over all prefixed entries" —
// every chunk (already base64-inflated), marker, metadata, index,
// journal, and lock entry the namespace currently holds, not just the
// sum of each item's logical metadata.Record.Size.
func (e *Evictor) totalSize() (int64, error) {
	root := keys.NamespaceRoot(e.prefix, e.namespace)

	n, err := e.store.Size()
	if err != nil {
		return 0, err
	}
	var total int64
	for i := 0; i < n; i++ {
		key, err := e.store.KeyAt(i)
		if err != nil {
			if errors.Is(err, backingstore.ErrNotFound) {
				continue
			}
			return 0, err
		}
		if !strings.HasPrefix(key, root) {
			continue
		}
		value, err := e.store.Get(key)
		if err != nil {
			if errors.Is(err, backingstore.ErrNotFound) {
				continue
			}
			return 0, err
		}
		total += int64(len(key)) + int64(len(value))
	}
	return total, nil
}

func (e *Evictor) pickVictim() (string, bool, error) {
	n, err := e.store.Size()
	if err != nil {
		return "", false, err
	}

	var best candidate
	found := false
	for i := 0; i < n; i++ {
		key, err := e.store.KeyAt(i)
		if err != nil {
			if errors.Is(err, backingstore.ErrNotFound) {
				continue
			}
			return "", false, err
		}
		userKey, ok := keys.IsMarker(e.prefix, e.namespace, key)
		if !ok {
			continue
		}
		rec, err := e.registry.Read(userKey)
		if err != nil {
			return "", false, err
		}
		if rec == nil {
			continue
		}

		var rank int64
		switch e.policy {
		case LFU:
			rank = rec.LFU
		default:
			rank = rec.LRU.UnixNano()
		}

		if !found || rank < best.rank {
			best = candidate{userKey: userKey, rank: rank}
			found = true
		}
	}
	return best.userKey, found, nil
}
