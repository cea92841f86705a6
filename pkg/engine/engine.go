// Package engine implements the facade spec.md §4.11 describes: it
// orchestrates the codec pipeline, chunker, metadata registry, journal,
// lock, index registry, eviction engine, vacuum, and broadcast bridge
// into set/get/remove/transaction/migrate/export/import.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/lsmkv/lsmkv/internal/broadcast"
	"github.com/lsmkv/lsmkv/internal/config"
	"github.com/lsmkv/lsmkv/internal/log"
	"github.com/lsmkv/lsmkv/internal/metrics"
	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/codec"
	"github.com/lsmkv/lsmkv/pkg/eviction"
	"github.com/lsmkv/lsmkv/pkg/index"
	"github.com/lsmkv/lsmkv/pkg/journal"
	"github.com/lsmkv/lsmkv/pkg/keys"
	"github.com/lsmkv/lsmkv/pkg/lock"
	"github.com/lsmkv/lsmkv/pkg/metadata"
	"github.com/lsmkv/lsmkv/pkg/vacuum"
	"github.com/rs/zerolog"
)

// Engine is one namespace's durable key-value store, per spec.md §4.11.
// The zero value is not usable; construct with New.
type Engine struct {
	mu sync.Mutex

	store  backingstore.Store
	cfg    config.Config
	codec  *codec.Pipeline
	logger zerolog.Logger

	metadata *metadata.Registry
	journal  *journal.Journal
	lock     *lock.Lock
	index    *index.Index
	evictor  *eviction.Evictor
	vacuum   *vacuum.Vacuum
	broker   *broadcast.Broker

	instanceID string
	destroyed  bool

	vacuumStop chan struct{}
	vacuumDone chan struct{}
}

// New constructs an Engine over store for the namespace described by
// cfg. It loads or generates the namespace's encryption key when
// cfg.Encrypt is true. If cfg.AutoInit is set (the default) and
// cfg.VacuumInterval is positive, it also starts the periodic vacuum
// loop.
func New(store backingstore.Store, cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		store:      store,
		cfg:        cfg,
		logger:     log.WithNamespace("engine", cfg.Namespace),
		metadata:   metadata.New(store, cfg.Prefix, cfg.Namespace),
		journal:    journal.New(store, cfg.Prefix, cfg.Namespace),
		lock:       lock.New(store, cfg.Prefix, cfg.Namespace, cfg.LockLease),
		index:      index.New(store, cfg.Prefix, cfg.Namespace),
		instanceID: uuid.NewString(),
	}

	cipher, err := e.resolveCipher()
	if err != nil {
		return nil, err
	}
	e.codec = codec.New(cipher)

	e.evictor = eviction.New(store, e.metadata, removerFunc(e.removeForInternalCaller), cfg.Prefix, cfg.Namespace, cfg.EvictionPolicy, cfg.QuotaSoftLimit)
	e.vacuum = vacuum.New(store, e.metadata, removerFunc(e.removeForInternalCaller), cfg.Prefix, cfg.Namespace)

	if cfg.Broadcast {
		e.broker = broadcast.New(nil)
		e.broker.Start()
	}

	if cfg.AutoInit && cfg.VacuumInterval > 0 {
		e.startVacuumLoop()
	}

	return e, nil
}

// removerFunc adapts a plain function to eviction.Remover/vacuum.Remover.
type removerFunc func(userKey string) error

func (f removerFunc) Remove(userKey string) error { return f(userKey) }

func (e *Engine) removeForInternalCaller(userKey string) error {
	_, err := e.Remove(userKey)
	return err
}

func (e *Engine) resolveCipher() (codec.Cipher, error) {
	if !e.cfg.Encrypt {
		return nil, nil
	}

	keyKey := keys.EncryptionKey(e.cfg.Prefix, e.cfg.Namespace)
	raw, err := e.store.Get(keyKey)
	if err != nil && !errors.Is(err, backingstore.ErrNotFound) {
		return nil, err
	}

	var key []byte
	if err == nil {
		var encoded struct {
			Key string `json:"key"`
		}
		if uerr := json.Unmarshal([]byte(raw), &encoded); uerr != nil {
			return nil, fmt.Errorf("engine: unmarshal encryption key record: %w", uerr)
		}
		key, err = decodeKey(encoded.Key)
		if err != nil {
			return nil, err
		}
	} else {
		key, err = codec.GenerateKey()
		if err != nil {
			return nil, err
		}
		encoded, merr := json.Marshal(struct {
			Key string `json:"key"`
		}{Key: encodeKey(key)})
		if merr != nil {
			return nil, fmt.Errorf("engine: marshal encryption key record: %w", merr)
		}
		if perr := e.store.Put(keyKey, string(encoded)); perr != nil {
			return nil, perr
		}
	}

	if e.cfg.DegenerateCipher {
		return codec.NewDegenerateCipher(key), nil
	}
	return codec.NewRealCipher(key)
}

// Ready blocks until initialization performed by New has completed.
// New is fully synchronous, so Ready always returns immediately; it
// exists so callers written against an asynchronous init contract
// (spec.md §4.11.7) have something to call.
func (e *Engine) Ready(ctx context.Context) error {
	return ctx.Err()
}

// Destroy stops the vacuum loop and marks the instance unusable.
// Subsequent mutating calls fail with ErrInstanceDestroyed.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil
	}
	e.destroyed = true
	e.mu.Unlock()

	e.stopVacuumLoop()
	if e.broker != nil {
		e.broker.Stop()
	}
	return nil
}

func (e *Engine) checkAlive() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrInstanceDestroyed
	}
	return nil
}

func (e *Engine) startVacuumLoop() {
	e.vacuumStop = make(chan struct{})
	e.vacuumDone = make(chan struct{})
	go func() {
		defer close(e.vacuumDone)
		ticker := time.NewTicker(e.cfg.VacuumInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := e.vacuum.Sweep(time.Now()); err != nil {
					e.logger.Error().Err(err).Msg("vacuum sweep failed")
				}
			case <-e.vacuumStop:
				return
			}
		}
	}()
}

func (e *Engine) stopVacuumLoop() {
	if e.vacuumStop == nil {
		return
	}
	close(e.vacuumStop)
	<-e.vacuumDone
}

// Vacuum runs an on-demand expired-item sweep and returns the number of
// items removed.
func (e *Engine) Vacuum() (int, error) {
	if err := e.checkAlive(); err != nil {
		return 0, err
	}
	return e.vacuum.Sweep(time.Now())
}

func (e *Engine) publish(evtType broadcast.Kind, key string, meta map[string]string) {
	metrics.BroadcastsTotal.WithLabelValues(e.cfg.Namespace, string(evtType)).Inc()
	if e.broker == nil {
		return
	}
	e.broker.Publish(broadcast.Event{
		Namespace: e.cfg.Namespace,
		Type:      evtType,
		Key:       key,
		Meta:      meta,
		OriginID:  e.instanceID,
	})
}

// Subscribe returns a channel of the change events this Engine instance
// publishes, including its own writes. Each Engine has a private broker,
// so events from other Engine instances on the same namespace do not
// arrive here. Callers MUST eventually call Unsubscribe.
func (e *Engine) Subscribe() (broadcast.Subscription, bool) {
	if e.broker == nil {
		return nil, false
	}
	return e.broker.Subscribe(), true
}

// Unsubscribe releases a subscription obtained from Subscribe.
func (e *Engine) Unsubscribe(sub broadcast.Subscription) {
	if e.broker != nil {
		e.broker.Unsubscribe(sub)
	}
}
