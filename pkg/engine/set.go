package engine

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/lsmkv/lsmkv/internal/broadcast"
	"github.com/lsmkv/lsmkv/internal/metrics"
	"github.com/lsmkv/lsmkv/pkg/chunk"
	"github.com/lsmkv/lsmkv/pkg/codec"
	"github.com/lsmkv/lsmkv/pkg/journal"
	"github.com/lsmkv/lsmkv/pkg/keys"
	"github.com/lsmkv/lsmkv/pkg/metadata"
)

// Set encodes, chunks, and durably stores value under userKey, per
// spec.md §4.11.1. It returns an error of the original kind if the
// pipeline fails at any point after the journal BEGIN record is
// written; on failure, every chunk/metadata/marker entry written for
// this call is rolled back before the error is returned.
func (e *Engine) Set(userKey string, value any, opts SetOptions) error {
	timer := metrics.NewTimer("set")
	defer timer.Stop()

	if err := e.checkAlive(); err != nil {
		return e.failSet(err)
	}
	if err := keys.Validate(userKey); err != nil {
		return e.failSet(err)
	}

	rawJSON, err := json.Marshal(value)
	if err != nil {
		return e.failSet(fmt.Errorf("engine: marshal value: %w", err))
	}
	var fields map[string]any
	_ = json.Unmarshal(rawJSON, &fields) // non-object values simply can't be indexed

	compress := opts.resolveCompress(e.cfg.Compress)
	encrypt := opts.resolveEncrypt(e.cfg.Encrypt)

	encoded, err := e.codec.EncodeBytes(rawJSON, codec.Options{Compress: compress, Encrypt: encrypt})
	if err != nil {
		return e.failSet(err)
	}

	chunks, err := chunk.Split(encoded, e.cfg.ShardSize)
	if err != nil {
		return e.failSet(err)
	}

	now := time.Now()
	prior, err := e.metadata.Read(userKey)
	if err != nil {
		return e.failSet(err)
	}

	rec := metadata.Record{
		CreatedAt:  now,
		UpdatedAt:  now,
		Compressed: compress,
		Encrypted:  encrypt,
		ChunkCount: len(chunks),
		Size:       len(encoded),
		LRU:        now,
		SchemaVer:  e.cfg.SchemaVersion,
	}
	if prior != nil {
		rec.CreatedAt = prior.CreatedAt
		rec.LFU = prior.LFU
	}
	if opts.TTL != nil {
		ms := opts.TTL.Milliseconds()
		rec.TTL = &ms
		expiresAt := now.Add(*opts.TTL)
		rec.ExpiresAt = &expiresAt
	}

	if e.cfg.Journaling {
		if err := e.journal.AppendWithMeta(journal.SetBegin, userKey, rec, now); err != nil {
			return e.failSet(err)
		}
	}

	release, lockErr := e.tryLock()
	if lockErr == nil {
		defer release()
	}

	if err := e.writeSetPayload(userKey, chunks, rec, prior); err != nil {
		e.rollbackSet(userKey, len(chunks), now)
		return e.failSet(err)
	}

	if err := e.applyIndexes(userKey, &rec, prior, fields, opts.Indexes); err != nil {
		e.rollbackSet(userKey, len(chunks), now)
		return e.failSet(err)
	}

	e.publish(broadcast.Set, userKey, nil)

	if e.cfg.Journaling {
		if err := e.journal.Append(journal.SetEnd, userKey, time.Now()); err != nil {
			e.logger.Warn().Err(err).Str("key", userKey).Msg("failed to append SET_END")
		}
	}

	if _, err := e.evictor.Run(); err != nil {
		e.logger.Warn().Err(err).Msg("eviction pass failed after set")
	}

	metrics.WritesTotal.WithLabelValues(e.cfg.Namespace, "ok").Inc()
	return nil
}

func (e *Engine) failSet(err error) error {
	metrics.WritesTotal.WithLabelValues(e.cfg.Namespace, "error").Inc()
	return err
}

// tryLock acquires the namespace lock with the configured attempt
// budget. Failure is best-effort: the caller proceeds regardless, per
// spec.md §4.6's "operations proceed even when acquire returns false".
func (e *Engine) tryLock() (func(), error) {
	ctx, cancel := contextWithAttempts(e.cfg.LockAttempts)
	defer cancel()
	release, err := e.lock.Acquire(ctx, e.cfg.LockAttempts)
	if err != nil {
		return func() {}, err
	}
	return func() {
		if rerr := release(); rerr != nil {
			e.logger.Warn().Err(rerr).Msg("failed to release lock")
		}
	}, nil
}

func (e *Engine) writeSetPayload(userKey string, chunks []string, rec metadata.Record, prior *metadata.Record) error {
	for i, c := range chunks {
		if err := e.store.Put(keys.Chunk(e.cfg.Prefix, e.cfg.Namespace, userKey, i), c); err != nil {
			return err
		}
	}
	if prior != nil {
		for old := len(chunks); old < prior.ChunkCount; old++ {
			_ = e.store.Delete(keys.Chunk(e.cfg.Prefix, e.cfg.Namespace, userKey, old))
		}
	}
	if err := e.metadata.Write(userKey, rec); err != nil {
		return err
	}
	return e.metadata.WriteMarker(userKey, metadata.Marker{Chunks: len(chunks), MetaRef: userKey})
}

// applyIndexes registers userKey under every requested index whose
// field is present in the decoded value, and persists the resulting
// indexKeys onto the metadata record, per spec.md §4.11.1 step 8. It
// also removes stale registrations left by a prior set's indexKeys that
// this call's spec no longer names.
func (e *Engine) applyIndexes(userKey string, rec *metadata.Record, prior *metadata.Record, fields map[string]any, specs []IndexSpec) error {
	var priorKeys []metadata.IndexRef
	if prior != nil {
		priorKeys = prior.IndexKeys
	}

	var next []metadata.IndexRef
	seen := make(map[metadata.IndexRef]bool)
	for _, spec := range specs {
		raw, ok := fields[spec.Field]
		if !ok {
			continue
		}
		field := stringifyFieldValue(raw)
		if err := e.index.Ensure(spec.Name, field, userKey); err != nil {
			return err
		}
		ref := metadata.IndexRef{Name: spec.Name, Field: field}
		if !seen[ref] {
			next = append(next, ref)
			seen[ref] = true
		}
	}

	for _, old := range priorKeys {
		if !seen[old] {
			if err := e.index.Remove(old.Name, old.Field, userKey); err != nil {
				return err
			}
		}
	}

	rec.IndexKeys = next
	return e.metadata.Write(userKey, *rec)
}

func stringifyFieldValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(raw)
	}
}

// rollbackSet deletes every chunk/metadata/marker entry this call may
// have written and appends a SET_ROLLBACK record, per spec.md §4.11.1.
func (e *Engine) rollbackSet(userKey string, chunkCount int, now time.Time) {
	for i := 0; i < chunkCount; i++ {
		_ = e.store.Delete(keys.Chunk(e.cfg.Prefix, e.cfg.Namespace, userKey, i))
	}
	_ = e.metadata.Delete(userKey)
	_ = e.metadata.DeleteMarker(userKey)
	if e.cfg.Journaling {
		if err := e.journal.Append(journal.SetRollback, userKey, now); err != nil {
			e.logger.Warn().Err(err).Str("key", userKey).Msg("failed to append SET_ROLLBACK")
		}
	}
}
