package engine

import (
	"time"

	"github.com/lsmkv/lsmkv/internal/broadcast"
	"github.com/lsmkv/lsmkv/internal/metrics"
	"github.com/lsmkv/lsmkv/pkg/journal"
	"github.com/lsmkv/lsmkv/pkg/keys"
	"github.com/lsmkv/lsmkv/pkg/metadata"
)

// Remove deletes userKey's marker, metadata, chunks, and index
// registrations, per spec.md §4.11.3. It returns (false, nil) if the
// item did not exist.
func (e *Engine) Remove(userKey string) (bool, error) {
	timer := metrics.NewTimer("remove")
	defer timer.Stop()

	if err := e.checkAlive(); err != nil {
		return false, e.failRemove(err)
	}

	rec, err := e.metadata.Read(userKey)
	if err != nil {
		return false, e.failRemove(err)
	}
	if rec == nil {
		if err := e.metadata.DeleteMarker(userKey); err != nil {
			return false, e.failRemove(err)
		}
		metrics.RemovesTotal.WithLabelValues(e.cfg.Namespace, "miss").Inc()
		return false, nil
	}

	now := time.Now()
	if e.cfg.Journaling {
		if err := e.journal.Append(journal.RemoveBegin, userKey, now); err != nil {
			return false, e.failRemove(err)
		}
	}

	release, lockErr := e.tryLock()
	if lockErr == nil {
		defer release()
	}

	if err := e.deleteItem(userKey, rec); err != nil {
		if e.cfg.Journaling {
			if jerr := e.journal.Append(journal.RemoveRollback, userKey, time.Now()); jerr != nil {
				e.logger.Warn().Err(jerr).Str("key", userKey).Msg("failed to append REMOVE_ROLLBACK")
			}
		}
		return false, e.failRemove(err)
	}

	e.publish(broadcast.Remove, userKey, nil)

	if e.cfg.Journaling {
		if err := e.journal.Append(journal.RemoveEnd, userKey, time.Now()); err != nil {
			e.logger.Warn().Err(err).Str("key", userKey).Msg("failed to append REMOVE_END")
		}
	}

	metrics.RemovesTotal.WithLabelValues(e.cfg.Namespace, "ok").Inc()
	return true, nil
}

func (e *Engine) failRemove(err error) error {
	metrics.RemovesTotal.WithLabelValues(e.cfg.Namespace, "error").Inc()
	return err
}

func (e *Engine) deleteItem(userKey string, rec *metadata.Record) error {
	for i := 0; i < rec.ChunkCount; i++ {
		if err := e.store.Delete(keys.Chunk(e.cfg.Prefix, e.cfg.Namespace, userKey, i)); err != nil {
			return err
		}
	}
	if err := e.metadata.Delete(userKey); err != nil {
		return err
	}
	if err := e.metadata.DeleteMarker(userKey); err != nil {
		return err
	}
	for _, ref := range rec.IndexKeys {
		if err := e.index.Remove(ref.Name, ref.Field, userKey); err != nil {
			return err
		}
	}
	return nil
}
