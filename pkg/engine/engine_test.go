package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lsmkv/lsmkv/internal/config"
	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/eviction"
	"github.com/lsmkv/lsmkv/pkg/journal"
	"github.com/lsmkv/lsmkv/pkg/keys"
)

func newTestEngine(t *testing.T, mutate func(*config.Config)) (*Engine, backingstore.Store) {
	t.Helper()
	store := backingstore.NewMemStore()
	cfg := config.Default()
	cfg.Namespace = "test"
	cfg.VacuumInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(store, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Destroy() })
	return e, store
}

func TestSetGetRoundTripAllCodecCombinations(t *testing.T) {
	combos := []struct{ compress, encrypt bool }{
		{false, false}, {true, false}, {false, true}, {true, true},
	}
	for _, c := range combos {
		e, _ := newTestEngine(t, func(cfg *config.Config) {
			cfg.Compress = c.compress
			cfg.Encrypt = c.encrypt
		})

		require.NoError(t, e.Set("k1", map[string]any{"n": float64(42), "s": "hello"}, SetOptions{}))

		got, err := e.Get("k1", nil)
		require.NoError(t, err)
		asMap, ok := got.(map[string]any)
		require.True(t, ok, "got = %#v", got)
		require.Equal(t, float64(42), asMap["n"])
		require.Equal(t, "hello", asMap["s"])
	}
}

func TestGetOnMissingKeyReturnsDefault(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	got, err := e.Get("missing", "fallback")
	require.NoError(t, err)
	require.Equal(t, "fallback", got)
}

func TestChunkBoundaryNeutrality(t *testing.T) {
	e, store := newTestEngine(t, func(cfg *config.Config) { cfg.ShardSize = 16 })

	value := "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx" // 35 chars
	require.NoError(t, e.Set("b", value, SetOptions{}))

	for i := 0; i < 3; i++ {
		_, err := store.Get(e.testChunkKey("b", i))
		require.NoError(t, err, "chunk %d missing", i)
	}

	got, err := e.Get("b", nil)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestTTLExpiryRemovesItemOnVacuum(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ttl := 50 * time.Millisecond
	require.NoError(t, e.Set("c", map[string]any{"x": float64(1)}, SetOptions{TTL: &ttl}))

	time.Sleep(70 * time.Millisecond)

	n, err := e.Vacuum()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := e.Get("c", "gone")
	require.NoError(t, err)
	require.Equal(t, "gone", got)
}

func TestTTLExpiryOnReadPath(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ttl := 20 * time.Millisecond
	require.NoError(t, e.Set("c", "v", SetOptions{TTL: &ttl}))

	time.Sleep(40 * time.Millisecond)

	got, err := e.Get("c", "gone")
	require.NoError(t, err)
	require.Equal(t, "gone", got)
}

func TestIndexConsistencyAcrossSetAndRemove(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	specs := []IndexSpec{{Name: "byRole", Field: "role"}}

	require.NoError(t, e.Set("u1", map[string]any{"name": "Ada", "role": "admin"}, SetOptions{Indexes: specs}))
	require.NoError(t, e.Set("u2", map[string]any{"name": "Bo", "role": "admin"}, SetOptions{Indexes: specs}))

	keys, err := e.index.Query("byRole", "admin")
	require.NoError(t, err)
	require.Equal(t, []string{"u1", "u2"}, keys)

	ok, err := e.Remove("u1")
	require.NoError(t, err)
	require.True(t, ok)

	keys, err = e.index.Query("byRole", "admin")
	require.NoError(t, err)
	require.Equal(t, []string{"u2"}, keys)
}

func TestRollbackOnEncodeFailureLeavesNoTrace(t *testing.T) {
	e, _ := newTestEngine(t, func(cfg *config.Config) { cfg.Encrypt = true })

	// Force a codec error by requesting encryption with no cipher
	// configured (simulated by nil-ing it out after construction).
	e.codec = nilCipherPipeline(e)

	encryptOn := true
	err := e.Set("k1", "v", SetOptions{Encrypt: &encryptOn})
	require.Error(t, err)

	marker, merr := e.metadata.ReadMarker("k1")
	require.NoError(t, merr)
	require.Nil(t, marker)

	meta, merr := e.metadata.Read("k1")
	require.NoError(t, merr)
	require.Nil(t, meta)
}

func TestRollbackOnStorageFullDuringWriteLeavesNoTraceAndJournalsRollback(t *testing.T) {
	cfg := config.Default()
	cfg.Namespace = "test"
	cfg.VacuumInterval = 0
	cfg.ShardSize = 8

	// "v" x50, JSON-quoted, is 52 bytes; with an 8-byte shard this splits
	// into 7 chunks, so chunk index 1 exists to fail on.
	const chunkCount = 7
	failKey := keys.Chunk(cfg.Prefix, cfg.Namespace, "k1", 1)
	store := newFailingKeyStore(backingstore.NewMemStore(), failKey)

	e, err := New(store, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Destroy() })

	err = e.Set("k1", strings.Repeat("v", 50), SetOptions{})
	require.Error(t, err)
	require.ErrorIs(t, err, backingstore.ErrStorageFull)

	marker, merr := e.metadata.ReadMarker("k1")
	require.NoError(t, merr)
	require.Nil(t, marker)

	meta, merr := e.metadata.Read("k1")
	require.NoError(t, merr)
	require.Nil(t, meta)

	for i := 0; i < chunkCount; i++ {
		_, gerr := store.Get(keys.Chunk(cfg.Prefix, cfg.Namespace, "k1", i))
		require.ErrorIs(t, gerr, backingstore.ErrNotFound)
	}

	entries, jerr := e.journal.ReadAll()
	require.NoError(t, jerr)
	foundRollback := false
	for _, ent := range entries {
		if ent.Kind == journal.SetRollback && ent.Key == "k1" {
			foundRollback = true
		}
	}
	require.True(t, foundRollback, "expected a SET_ROLLBACK journal entry for k1, got %+v", entries)
}

func TestEvictionRemovesOldestUnderLRU(t *testing.T) {
	e, _ := newTestEngine(t, func(cfg *config.Config) {
		cfg.EvictionPolicy = eviction.LRU
		// Each 1 MiB value occupies about 1.4 MB of store footprint once its
		// chunks are base64-encoded, so 3 MiB holds two items but not three.
		cfg.QuotaSoftLimit = 3 * (1 << 20)
	})

	big := strings.Repeat("x", 1<<20)
	require.NoError(t, e.Set("a", big, SetOptions{}))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, e.Set("b", big, SetOptions{}))
	time.Sleep(5 * time.Millisecond)

	_, err := e.Get("a", nil) // touch A so it's no longer the LRU victim
	require.NoError(t, err)

	require.NoError(t, e.Set("c", big, SetOptions{}))

	aMeta, err := e.metadata.Read("a")
	require.NoError(t, err)
	bMeta, err := e.metadata.Read("b")
	require.NoError(t, err)
	cMeta, err := e.metadata.Read("c")
	require.NoError(t, err)

	require.NotNil(t, aMeta, "a was touched after b was written and should survive")
	require.Nil(t, bMeta, "b should have been evicted as the LRU victim")
	require.NotNil(t, cMeta)
}

func TestNamespaceIsolation(t *testing.T) {
	store := backingstore.NewMemStore()
	cfgA := config.Default()
	cfgA.Namespace = "a"
	cfgA.VacuumInterval = 0
	cfgB := config.Default()
	cfgB.Namespace = "b"
	cfgB.VacuumInterval = 0

	eA, err := New(store, cfgA)
	require.NoError(t, err)
	defer eA.Destroy()
	eB, err := New(store, cfgB)
	require.NoError(t, err)
	defer eB.Destroy()

	require.NoError(t, eA.Set("k1", "fromA", SetOptions{}))

	got, err := eB.Get("k1", "default")
	require.NoError(t, err)
	require.Equal(t, "default", got)
}

func TestCorruptChunkToleratedAsDefault(t *testing.T) {
	e, store := newTestEngine(t, func(cfg *config.Config) { cfg.ShardSize = 4 })
	require.NoError(t, e.Set("k1", "a value long enough to chunk", SetOptions{}))

	require.NoError(t, store.Delete(e.testChunkKey("k1", 1)))

	got, err := e.Get("k1", "fallback")
	require.NoError(t, err)
	require.Equal(t, "fallback", got)
}

func TestListReturnsLiveUserKeys(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	require.NoError(t, e.Set("k1", "v1", SetOptions{}))
	require.NoError(t, e.Set("k2", "v2", SetOptions{}))

	got, err := e.List()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"k1", "k2"}, got)

	_, err = e.Remove("k1")
	require.NoError(t, err)

	got, err = e.List()
	require.NoError(t, err)
	require.Equal(t, []string{"k2"}, got)
}

func TestTransactionRollsBackNewlySetKeysOnError(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	err := e.Transact(func(tx *Transaction) error {
		if setErr := tx.Set("k1", "v", SetOptions{}); setErr != nil {
			return setErr
		}
		return errTransactionFailure
	})
	require.ErrorIs(t, err, errTransactionFailure)

	marker, merr := e.metadata.ReadMarker("k1")
	require.NoError(t, merr)
	require.Nil(t, marker)
}
