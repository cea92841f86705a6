// Package vacuum implements the expired-item sweep spec.md §4.9
// describes: a scan over a namespace's items that removes anything
// whose TTL has elapsed, run periodically or on demand.
package vacuum

import (
	"errors"
	"time"

	"github.com/lsmkv/lsmkv/internal/metrics"
	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/keys"
	"github.com/lsmkv/lsmkv/pkg/metadata"
)

// Remover removes a fully-stored item (marker, metadata, chunks, and
// index registrations), as the engine facade's Remove does.
type Remover interface {
	Remove(userKey string) error
}

// Vacuum sweeps one (prefix, namespace) pair for expired items.
type Vacuum struct {
	store     backingstore.Store
	registry  *metadata.Registry
	remover   Remover
	prefix    string
	namespace string
}

// New returns a Vacuum for the given namespace.
func New(store backingstore.Store, registry *metadata.Registry, remover Remover, prefix, namespace string) *Vacuum {
	return &Vacuum{store: store, registry: registry, remover: remover, prefix: prefix, namespace: namespace}
}

// Sweep removes every item in the namespace whose metadata reports it
// expired as of now, returning the number removed.
func (v *Vacuum) Sweep(now time.Time) (int, error) {
	n, err := v.store.Size()
	if err != nil {
		return 0, err
	}

	var expired []string
	for i := 0; i < n; i++ {
		key, err := v.store.KeyAt(i)
		if err != nil {
			if errors.Is(err, backingstore.ErrNotFound) {
				continue
			}
			return 0, err
		}
		userKey, ok := keys.IsMarker(v.prefix, v.namespace, key)
		if !ok {
			continue
		}
		rec, err := v.registry.Read(userKey)
		if err != nil {
			return 0, err
		}
		if rec != nil && rec.Expired(now) {
			expired = append(expired, userKey)
		}
	}

	removed := 0
	for _, userKey := range expired {
		if err := v.remover.Remove(userKey); err != nil {
			metrics.VacuumsTotal.Inc()
			if removed > 0 {
				metrics.VacuumedItemsTotal.WithLabelValues(v.namespace).Add(float64(removed))
			}
			return removed, err
		}
		removed++
	}

	metrics.VacuumsTotal.Inc()
	if removed > 0 {
		metrics.VacuumedItemsTotal.WithLabelValues(v.namespace).Add(float64(removed))
	}
	return removed, nil
}
