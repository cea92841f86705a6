package engine

import (
	"errors"
	"time"

	json "github.com/goccy/go-json"

	"github.com/lsmkv/lsmkv/internal/metrics"
	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/chunk"
	"github.com/lsmkv/lsmkv/pkg/codec"
	"github.com/lsmkv/lsmkv/pkg/keys"
)

// Get reads userKey and decodes it through the reverse pipeline, per
// spec.md §4.11.2. It returns defaultValue, nil for every case the
// specification treats as absence or corruption: no marker, no
// metadata, expiry, or a missing chunk. CryptoFail is the one decode
// failure that is surfaced rather than swallowed.
func (e *Engine) Get(userKey string, defaultValue any) (any, error) {
	timer := metrics.NewTimer("get")
	defer timer.Stop()

	marker, err := e.metadata.ReadMarker(userKey)
	if err != nil {
		metrics.ReadsTotal.WithLabelValues(e.cfg.Namespace, "error").Inc()
		return nil, err
	}
	if marker == nil {
		metrics.ReadsTotal.WithLabelValues(e.cfg.Namespace, "miss").Inc()
		return defaultValue, nil
	}

	rec, err := e.metadata.Read(userKey)
	if err != nil {
		metrics.ReadsTotal.WithLabelValues(e.cfg.Namespace, "error").Inc()
		return nil, err
	}
	if rec == nil {
		metrics.ReadsTotal.WithLabelValues(e.cfg.Namespace, "miss").Inc()
		return defaultValue, nil
	}

	now := time.Now()
	if rec.Expired(now) {
		if _, rerr := e.Remove(userKey); rerr != nil {
			e.logger.Warn().Err(rerr).Str("key", userKey).Msg("failed to remove expired item")
		}
		metrics.ReadsTotal.WithLabelValues(e.cfg.Namespace, "expired").Inc()
		return defaultValue, nil
	}

	chunks := make([]string, rec.ChunkCount)
	for i := 0; i < rec.ChunkCount; i++ {
		c, err := e.store.Get(keys.Chunk(e.cfg.Prefix, e.cfg.Namespace, userKey, i))
		if errors.Is(err, backingstore.ErrNotFound) {
			metrics.CorruptReadsTotal.WithLabelValues(e.cfg.Namespace).Inc()
			metrics.ReadsTotal.WithLabelValues(e.cfg.Namespace, "corrupt").Inc()
			return defaultValue, nil
		}
		if err != nil {
			metrics.ReadsTotal.WithLabelValues(e.cfg.Namespace, "error").Inc()
			return nil, err
		}
		chunks[i] = c
	}

	joined, err := chunk.Join(chunks, rec.Size)
	if err != nil {
		metrics.CorruptReadsTotal.WithLabelValues(e.cfg.Namespace).Inc()
		metrics.ReadsTotal.WithLabelValues(e.cfg.Namespace, "corrupt").Inc()
		return defaultValue, nil
	}

	decoded, err := e.codec.DecodeBytes(joined, codec.Options{Compress: rec.Compressed, Encrypt: rec.Encrypted})
	if err != nil {
		if errors.Is(err, codec.ErrCryptoFail) {
			metrics.ReadsTotal.WithLabelValues(e.cfg.Namespace, "error").Inc()
			return nil, err
		}
		metrics.CorruptReadsTotal.WithLabelValues(e.cfg.Namespace).Inc()
		metrics.ReadsTotal.WithLabelValues(e.cfg.Namespace, "corrupt").Inc()
		return defaultValue, nil
	}

	var value any
	if err := json.Unmarshal(decoded, &value); err != nil {
		value = string(decoded)
	}

	if err := e.metadata.Touch(userKey, now); err != nil {
		e.logger.Warn().Err(err).Str("key", userKey).Msg("failed to touch metadata")
	}

	metrics.ReadsTotal.WithLabelValues(e.cfg.Namespace, "ok").Inc()
	return value, nil
}
