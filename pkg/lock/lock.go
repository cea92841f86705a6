// Package lock implements the best-effort cross-context lock spec.md
// §4.6 describes: a lease record in the shared BackingStore, acquired
// with jittered retry and released by the holder, used to serialize
// concurrent set/remove/migrate calls against the same namespace across
// processes that share no in-memory state.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/lsmkv/lsmkv/internal/metrics"
	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/keys"
)

// ErrHeldByOther is returned by Acquire when the lease is held by a
// different owner and has not yet expired.
var ErrHeldByOther = errors.New("lock: held by another owner")

// lease is the persisted lock record.
type lease struct {
	OwnerID   string    `json:"ownerId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Lock acquires and releases the single lease record for one
// (prefix, namespace) pair. It is "best effort": any context that
// bypasses this package (or runs in a process holding no copy of the
// store's durability guarantees) can still write through it, so it
// guards against accidental concurrent ordinary use, not a hostile
// writer.
type Lock struct {
	store     backingstore.Store
	prefix    string
	namespace string
	ownerID   string
	ttl       time.Duration
}

// New returns a Lock backed by store for the given namespace. ttl bounds
// how long a lease is honored before a subsequent Acquire may steal it,
// preventing a crashed holder from wedging the namespace forever.
func New(store backingstore.Store, prefix, namespace string, ttl time.Duration) *Lock {
	return &Lock{
		store:     store,
		prefix:    prefix,
		namespace: namespace,
		ownerID:   uuid.NewString(),
		ttl:       ttl,
	}
}

// Acquire attempts to take the lease, retrying with jittered exponential
// backoff for at most maxAttempts tries, or until ctx is done, whichever
// comes first. It returns the release function on success.
func (l *Lock) Acquire(ctx context.Context, maxAttempts int) (release func() error, err error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	b := backoff.WithMaxRetries(backoff.WithContext(backoff.NewExponentialBackOff(), ctx), uint64(maxAttempts-1))

	op := func() error {
		acquired, acqErr := l.tryAcquire()
		if acqErr != nil {
			return backoff.Permanent(acqErr)
		}
		if !acquired {
			metrics.LockAcquireFailuresTotal.WithLabelValues(l.namespace).Inc()
			return ErrHeldByOther
		}
		return nil
	}

	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return l.release, nil
}

func (l *Lock) tryAcquire() (bool, error) {
	now := time.Now()
	key := keys.Lock(l.prefix, l.namespace)

	raw, err := l.store.Get(key)
	if err != nil && !errors.Is(err, backingstore.ErrNotFound) {
		return false, err
	}
	if err == nil {
		var existing lease
		if uerr := json.Unmarshal([]byte(raw), &existing); uerr == nil {
			if existing.OwnerID != l.ownerID && existing.ExpiresAt.After(now) {
				return false, nil
			}
		}
	}

	next := lease{OwnerID: l.ownerID, ExpiresAt: now.Add(l.ttl)}
	encoded, merr := json.Marshal(next)
	if merr != nil {
		return false, fmt.Errorf("lock: marshal lease: %w", merr)
	}
	if perr := l.store.Put(key, string(encoded)); perr != nil {
		return false, perr
	}
	return true, nil
}

// release removes the lease if this Lock still owns it.
func (l *Lock) release() error {
	key := keys.Lock(l.prefix, l.namespace)
	raw, err := l.store.Get(key)
	if errors.Is(err, backingstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var existing lease
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		return fmt.Errorf("lock: unmarshal lease: %w", err)
	}
	if existing.OwnerID != l.ownerID {
		return nil
	}
	return l.store.Delete(key)
}
