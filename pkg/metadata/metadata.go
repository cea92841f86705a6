// Package metadata implements the per-item metadata record and marker
// spec.md §3-§4.4 describes: read/write/delete plus the LRU/LFU touch
// that every successful get performs.
package metadata

import (
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/keys"
)

// ErrNotFound is returned by Touch when no metadata record exists for a
// key. Read reports a missing record as (nil, nil) instead.
var ErrNotFound = errors.New("metadata: not found")

// IndexRef names one secondary-index bucket an item is registered in.
// Stored as a structured pair rather than spec.md §3's colon-joined
// "<indexName>:<fieldValue>" string, per the Open Question decision in
// SPEC_FULL.md §5: a field value containing ':' must not corrupt removal.
type IndexRef struct {
	Name  string `json:"name"`
	Field string `json:"field"`
}

// Record is the per-item metadata record, per spec.md §3.
type Record struct {
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	TTL        *int64     `json:"ttl,omitempty"`       // milliseconds
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	Compressed bool       `json:"compressed"`
	Encrypted  bool       `json:"encrypted"`
	ChunkCount int        `json:"chunkCount"`
	Size       int        `json:"size"`
	LRU        time.Time  `json:"lru"`
	LFU        int64      `json:"lfu"`
	IndexKeys  []IndexRef `json:"indexKeys,omitempty"`
	SchemaVer  int        `json:"schemaVersion"`
}

// Expired reports whether the record's ExpiresAt is in the past relative
// to now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// Marker is the sentinel entry whose presence defines an item's
// existence, per spec.md §3 and §6.
type Marker struct {
	Chunks  int    `json:"chunks"`
	MetaRef string `json:"metaRef"`
}

// Registry reads and writes metadata and marker records for one
// (prefix, namespace) pair.
type Registry struct {
	store     backingstore.Store
	prefix    string
	namespace string
}

// New returns a Registry backed by store for the given namespace.
func New(store backingstore.Store, prefix, namespace string) *Registry {
	return &Registry{store: store, prefix: prefix, namespace: namespace}
}

// ReadMarker reads the marker for userKey. A missing marker is reported
// as (nil, nil), matching the facade's "absent means nil, not error"
// read-path convention (spec.md §4.11.2 step 1).
func (r *Registry) ReadMarker(userKey string) (*Marker, error) {
	raw, err := r.store.Get(keys.Marker(r.prefix, r.namespace, userKey))
	if errors.Is(err, backingstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Marker
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("metadata: unmarshal marker: %w", err)
	}
	return &m, nil
}

// WriteMarker writes the marker for userKey.
func (r *Registry) WriteMarker(userKey string, m Marker) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("metadata: marshal marker: %w", err)
	}
	return r.store.Put(keys.Marker(r.prefix, r.namespace, userKey), string(raw))
}

// DeleteMarker removes the marker for userKey.
func (r *Registry) DeleteMarker(userKey string) error {
	return r.store.Delete(keys.Marker(r.prefix, r.namespace, userKey))
}

// Read reads the metadata record for userKey. A missing record is
// reported as (nil, nil).
func (r *Registry) Read(userKey string) (*Record, error) {
	raw, err := r.store.Get(keys.Meta(r.prefix, r.namespace, userKey))
	if errors.Is(err, backingstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("metadata: unmarshal record: %w", err)
	}
	return &rec, nil
}

// Write writes the metadata record for userKey.
func (r *Registry) Write(userKey string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("metadata: marshal record: %w", err)
	}
	return r.store.Put(keys.Meta(r.prefix, r.namespace, userKey), string(raw))
}

// Delete removes the metadata record for userKey.
func (r *Registry) Delete(userKey string) error {
	return r.store.Delete(keys.Meta(r.prefix, r.namespace, userKey))
}

// Touch updates a record's LRU timestamp to now and increments its LFU
// counter, then persists it. Called at the end of every successful get,
// per spec.md §4.4 and §4.11.2 step 7.
func (r *Registry) Touch(userKey string, now time.Time) error {
	rec, err := r.Read(userKey)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	rec.LRU = now
	rec.LFU++
	return r.Write(userKey, *rec)
}
