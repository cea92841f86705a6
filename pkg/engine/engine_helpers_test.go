package engine

import (
	"errors"

	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/codec"
	"github.com/lsmkv/lsmkv/pkg/keys"
)

var errTransactionFailure = errors.New("engine test: intentional transaction failure")

func (e *Engine) testChunkKey(userKey string, i int) string {
	return keys.Chunk(e.cfg.Prefix, e.cfg.Namespace, userKey, i)
}

// nilCipherPipeline returns a codec pipeline with no cipher configured,
// used to force an ErrNoKey failure mid-Set for rollback testing.
func nilCipherPipeline(e *Engine) *codec.Pipeline {
	return codec.New(nil)
}

// failingKeyStore wraps a backingstore.Store and makes Put fail with
// ErrStorageFull for one specific key, leaving every other key
// unaffected. Used to force a failure partway through writeSetPayload
// (a later chunk, or the marker) without disturbing the rollback path
// that follows it.
type failingKeyStore struct {
	backingstore.Store
	failKey string
}

func newFailingKeyStore(inner backingstore.Store, failKey string) *failingKeyStore {
	return &failingKeyStore{Store: inner, failKey: failKey}
}

func (f *failingKeyStore) Put(key, value string) error {
	if key == f.failKey {
		return backingstore.ErrStorageFull
	}
	return f.Store.Put(key, value)
}
