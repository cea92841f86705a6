package eviction

import (
	"strings"
	"testing"
	"time"

	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/keys"
	"github.com/lsmkv/lsmkv/pkg/metadata"
)

// fakeRemover removes an item's marker and metadata directly, standing
// in for the engine facade's full remove pipeline.
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

func seedItem(t *testing.T, store backingstore.Store, registry *metadata.Registry, prefix, namespace, userKey string, size int, lru time.Time, lfu int64) {
	t.Helper()
	if err := store.Put(keys.Marker(prefix, namespace, userKey), userKey); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	if err := registry.Write(userKey, metadata.Record{Size: size, LRU: lru, LFU: lfu}); err != nil {
		t.Fatalf("seed metadata: %v", err)
	}
}

// namespaceByteSize mirrors Evictor.totalSize's key-length+value-length
// sum, computed independently here so tests can calibrate a quota
// against the real BackingStore footprint rather than a hardcoded
// byte count that would drift with the metadata record's JSON shape.
func namespaceByteSize(t *testing.T, store backingstore.Store, prefix, namespace string) int64 {
	t.Helper()
	root := keys.NamespaceRoot(prefix, namespace)
	n, err := store.Size()
	if err != nil {
		t.Fatalf("store.Size(): %v", err)
	}
	var total int64
	for i := 0; i < n; i++ {
		key, err := store.KeyAt(i)
		if err != nil {
			t.Fatalf("store.KeyAt(%d): %v", i, err)
		}
		if !strings.HasPrefix(key, root) {
			continue
		}
		value, err := store.Get(key)
		if err != nil {
			t.Fatalf("store.Get(%q): %v", key, err)
		}
		total += int64(len(key)) + int64(len(value))
	}
	return total
}

// sizeSlack absorbs the few bytes of difference between two metadata
// records whose LFU counter or timestamp happen to serialize to a
// different digit count (e.g. "lfu":1 vs "lfu":100).
const sizeSlack = 48

func TestRunUnderQuotaEvictsNothing(t *testing.T) {
	store := backingstore.NewMemStore()
	registry := metadata.New(store, "__lsm__", "default")
	seedItem(t, store, registry, "__lsm__", "default", "k1", 10, time.Now(), 1)

	quota := namespaceByteSize(t, store, "__lsm__", "default")

	remover := &fakeRemover{store: store, registry: registry, prefix: "__lsm__", namespace: "default"}
	ev := New(store, registry, remover, "__lsm__", "default", LRU, quota)

	n, err := ev.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("Run() evicted %d, want 0", n)
	}
}

func TestRunLRUEvictsOldestFirst(t *testing.T) {
	store := backingstore.NewMemStore()
	registry := metadata.New(store, "__lsm__", "default")
	now := time.Now()

	seedItem(t, store, registry, "__lsm__", "default", "old", 50, now.Add(-time.Hour), 1)
	quota := namespaceByteSize(t, store, "__lsm__", "default") + sizeSlack
	seedItem(t, store, registry, "__lsm__", "default", "new", 50, now, 1)

	remover := &fakeRemover{store: store, registry: registry, prefix: "__lsm__", namespace: "default"}
	ev := New(store, registry, remover, "__lsm__", "default", LRU, quota)

	n, err := ev.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Run() evicted %d, want 1", n)
	}
	if len(remover.removed) != 1 || remover.removed[0] != "old" {
		t.Fatalf("Run() removed %v, want [old]", remover.removed)
	}
}

func TestRunLFUEvictsLeastUsedFirst(t *testing.T) {
	store := backingstore.NewMemStore()
	registry := metadata.New(store, "__lsm__", "default")
	now := time.Now()

	seedItem(t, store, registry, "__lsm__", "default", "rare", 50, now, 1)
	quota := namespaceByteSize(t, store, "__lsm__", "default") + sizeSlack
	seedItem(t, store, registry, "__lsm__", "default", "popular", 50, now, 100)

	remover := &fakeRemover{store: store, registry: registry, prefix: "__lsm__", namespace: "default"}
	ev := New(store, registry, remover, "__lsm__", "default", LFU, quota)

	n, err := ev.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Run() evicted %d, want 1", n)
	}
	if len(remover.removed) != 1 || remover.removed[0] != "rare" {
		t.Fatalf("Run() removed %v, want [rare]", remover.removed)
	}
}

func TestRunStopsAtQuotaNotZero(t *testing.T) {
	store := backingstore.NewMemStore()
	registry := metadata.New(store, "__lsm__", "default")
	now := time.Now()

	seedItem(t, store, registry, "__lsm__", "default", "a", 10, now.Add(-2*time.Hour), 1)
	seedItem(t, store, registry, "__lsm__", "default", "b", 10, now.Add(-time.Hour), 1)
	quota := namespaceByteSize(t, store, "__lsm__", "default") + sizeSlack
	seedItem(t, store, registry, "__lsm__", "default", "c", 10, now, 1)

	remover := &fakeRemover{store: store, registry: registry, prefix: "__lsm__", namespace: "default"}
	ev := New(store, registry, remover, "__lsm__", "default", LRU, quota)

	n, err := ev.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Run() evicted %d, want 1", n)
	}
	if len(remover.removed) != 1 || remover.removed[0] != "a" {
		t.Fatalf("Run() removed %v, want [a]", remover.removed)
	}
}

func TestRunWithZeroQuotaIsNoop(t *testing.T) {
	store := backingstore.NewMemStore()
	registry := metadata.New(store, "__lsm__", "default")
	seedItem(t, store, registry, "__lsm__", "default", "a", 10, time.Now(), 1)

	remover := &fakeRemover{store: store, registry: registry, prefix: "__lsm__", namespace: "default"}
	ev := New(store, registry, remover, "__lsm__", "default", LRU, 0)

	n, err := ev.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("Run() evicted %d, want 0", n)
	}
}
