package vacuum

import (
	"testing"
	"time"

	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/keys"
	"github.com/lsmkv/lsmkv/pkg/metadata"
)

type fakeRemover struct {
	store     backingstore.Store
	registry  *metadata.Registry
	prefix    string
	namespace string
	removed   []string
}

func (f *fakeRemover) Remove(userKey string) error {
	f.removed = append(f.removed, userKey)
	if err := f.registry.Delete(userKey); err != nil {
		return err
	}
	return f.store.Delete(keys.Marker(f.prefix, f.namespace, userKey))
}

func seedItem(t *testing.T, store backingstore.Store, registry *metadata.Registry, prefix, namespace, userKey string, expiresAt *time.Time) {
	t.Helper()
	if err := store.Put(keys.Marker(prefix, namespace, userKey), userKey); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	if err := registry.Write(userKey, metadata.Record{ExpiresAt: expiresAt}); err != nil {
		t.Fatalf("seed metadata: %v", err)
	}
}

func TestSweepRemovesOnlyExpiredItems(t *testing.T) {
	store := backingstore.NewMemStore()
	registry := metadata.New(store, "__lsm__", "default")
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	seedItem(t, store, registry, "__lsm__", "default", "expired", &past)
	seedItem(t, store, registry, "__lsm__", "default", "fresh", &future)
	seedItem(t, store, registry, "__lsm__", "default", "noTTL", nil)

	remover := &fakeRemover{store: store, registry: registry, prefix: "__lsm__", namespace: "default"}
	v := New(store, registry, remover, "__lsm__", "default")

	n, err := v.Sweep(now)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Sweep() removed %d, want 1", n)
	}
	if len(remover.removed) != 1 || remover.removed[0] != "expired" {
		t.Fatalf("Sweep() removed %v, want [expired]", remover.removed)
	}
}

func TestSweepOnEmptyNamespaceIsNoop(t *testing.T) {
	store := backingstore.NewMemStore()
	registry := metadata.New(store, "__lsm__", "default")
	remover := &fakeRemover{store: store, registry: registry, prefix: "__lsm__", namespace: "default"}
	v := New(store, registry, remover, "__lsm__", "default")

	n, err := v.Sweep(time.Now())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("Sweep() removed %d, want 0", n)
	}
}
