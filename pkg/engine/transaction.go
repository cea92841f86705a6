package engine

import (
	"github.com/lsmkv/lsmkv/internal/metrics"
	"github.com/lsmkv/lsmkv/pkg/journal"
)

// transactionLockAttemptsMultiplier scales the namespace's ordinary
// LockAttempts to give Transact a larger lock attempt budget.
const transactionLockAttemptsMultiplier = 4

// Transaction is the handle passed to the fn argument of Transact; its
// set/get/remove delegate directly to the owning Engine, per spec.md
// §4.11.4.
type Transaction struct {
	engine *Engine
}

// Set delegates to the owning Engine's Set.
func (tx *Transaction) Set(userKey string, value any, opts SetOptions) error {
	return tx.engine.Set(userKey, value, opts)
}

// Get delegates to the owning Engine's Get.
func (tx *Transaction) Get(userKey string, defaultValue any) (any, error) {
	return tx.engine.Get(userKey, defaultValue)
}

// Remove delegates to the owning Engine's Remove.
func (tx *Transaction) Remove(userKey string) (bool, error) {
	return tx.engine.Remove(userKey)
}

// Transact acquires the namespace lock with an enlarged attempt budget,
// runs fn against a Transaction handle, and on error performs the naive
// rollback spec.md §4.11.4 describes: a reverse scan of the journal
// entries appended during fn's window, removing every user key that
// received a SET_BEGIN in that window. A key that already existed
// before fn overwrote it is removed as well; its earlier value is not
// restored.
func (e *Engine) Transact(fn func(tx *Transaction) error) error {
	if err := e.checkAlive(); err != nil {
		return err
	}

	before, err := e.journal.ReadAll()
	if err != nil {
		return err
	}
	startIndex := len(before)

	attempts := e.cfg.LockAttempts * transactionLockAttemptsMultiplier
	ctx, cancel := contextWithAttempts(attempts)
	release, lockErr := e.lock.Acquire(ctx, attempts)
	cancel()
	if lockErr == nil {
		defer func() {
			if rerr := release(); rerr != nil {
				e.logger.Warn().Err(rerr).Msg("failed to release transaction lock")
			}
		}()
	}

	tx := &Transaction{engine: e}
	fnErr := fn(tx)
	if fnErr == nil {
		metrics.TransactionsTotal.WithLabelValues(e.cfg.Namespace, "ok").Inc()
		return nil
	}

	e.rollbackTransaction(startIndex)
	metrics.TransactionsTotal.WithLabelValues(e.cfg.Namespace, "error").Inc()
	return fnErr
}

func (e *Engine) rollbackTransaction(startIndex int) {
	entries, err := e.journal.ReadAll()
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to read journal for transaction rollback")
		return
	}
	if startIndex > len(entries) {
		startIndex = len(entries)
	}
	window := entries[startIndex:]

	removed := make(map[string]bool)
	for i := len(window) - 1; i >= 0; i-- {
		entry := window[i]
		if entry.Kind != journal.SetBegin || removed[entry.Key] {
			continue
		}
		removed[entry.Key] = true
		if _, err := e.Remove(entry.Key); err != nil {
			e.logger.Warn().Err(err).Str("key", entry.Key).Msg("transaction rollback failed to remove key")
		}
	}
}
