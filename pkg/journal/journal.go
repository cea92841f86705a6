// Package journal implements the append-only write-sequence log spec.md
// §4.5 describes: a single JSON-array record per namespace recording the
// begin/end/rollback stages of set and remove. The engine's Transact
// reads it to find the keys to roll back; nothing replays it after a
// crash.
package journal

import (
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/lsmkv/lsmkv/internal/metrics"
	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/keys"
)

// Kind identifies the stage a journal entry records, per spec.md §4.5.
type Kind string

const (
	SetBegin       Kind = "SET_BEGIN"
	SetEnd         Kind = "SET_END"
	SetRollback    Kind = "SET_ROLLBACK"
	RemoveBegin    Kind = "REMOVE_BEGIN"
	RemoveEnd      Kind = "REMOVE_END"
	RemoveRollback Kind = "REMOVE_ROLLBACK"
)

// Entry is one record in a namespace's journal. Meta carries the
// metadata snapshot being written, present only on SET_BEGIN entries
// per spec.md §3.
type Entry struct {
	Kind      Kind            `json:"kind"`
	Key       string          `json:"key"`
	Timestamp time.Time       `json:"timestamp"`
	Meta      json.RawMessage `json:"meta,omitempty"`
}

// Journal appends to and reads the single journal record of one
// (prefix, namespace) pair.
type Journal struct {
	store     backingstore.Store
	prefix    string
	namespace string
}

// New returns a Journal backed by store for the given namespace.
func New(store backingstore.Store, prefix, namespace string) *Journal {
	return &Journal{store: store, prefix: prefix, namespace: namespace}
}

// ReadAll returns every entry currently in the namespace's journal, in
// append order. An absent journal record returns an empty slice.
func (j *Journal) ReadAll() ([]Entry, error) {
	raw, err := j.store.Get(keys.Journal(j.prefix, j.namespace))
	if errors.Is(err, backingstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("journal: unmarshal: %w", err)
	}
	return entries, nil
}

// Append adds one entry to the namespace's journal.
func (j *Journal) Append(kind Kind, key string, now time.Time) error {
	return j.appendEntry(Entry{Kind: kind, Key: key, Timestamp: now})
}

// AppendWithMeta adds one entry carrying a metadata snapshot, used for
// SET_BEGIN entries per spec.md §3.
func (j *Journal) AppendWithMeta(kind Kind, key string, meta any, now time.Time) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("journal: marshal meta: %w", err)
	}
	return j.appendEntry(Entry{Kind: kind, Key: key, Timestamp: now, Meta: raw})
}

func (j *Journal) appendEntry(entry Entry) error {
	entries, err := j.ReadAll()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	if err := j.store.Put(keys.Journal(j.prefix, j.namespace), string(raw)); err != nil {
		return err
	}
	if entry.Kind == SetRollback || entry.Kind == RemoveRollback {
		metrics.RollbacksTotal.WithLabelValues(j.namespace, string(entry.Kind)).Inc()
	}
	return nil
}

// Clear truncates the namespace's journal. The engine does not call it,
// so entries accumulate until Clear is called or the namespace is
// cleared.
func (j *Journal) Clear() error {
	return j.store.Delete(keys.Journal(j.prefix, j.namespace))
}

// PendingFor reports whether key has an unmatched BEGIN entry (a BEGIN
// with no following END or ROLLBACK of the same operation), meaning a
// set or remove for key is still in progress or was interrupted, and
// returns that BEGIN's kind. The engine does not consult it before
// starting a new operation on key.
func PendingFor(entries []Entry, key string) (Kind, bool) {
	var open Kind
	var hasOpen bool
	for _, e := range entries {
		if e.Key != key {
			continue
		}
		switch e.Kind {
		case SetBegin, RemoveBegin:
			open, hasOpen = e.Kind, true
		case SetEnd, SetRollback, RemoveEnd, RemoveRollback:
			hasOpen = false
		}
	}
	return open, hasOpen
}
