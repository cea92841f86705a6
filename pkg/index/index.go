// Package index implements the secondary-index registry spec.md §4.7
// describes: one JSON record per named index mapping a field value to
// the ordered sequence of user keys that were stored with that value.
package index

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/keys"
)

// record is the persisted shape of one named index: field value to the
// ordered user keys registered under it.
type record struct {
	Entries map[string][]string `json:"entries"`
}

// Index reads and writes the named secondary indexes of one
// (prefix, namespace) pair.
type Index struct {
	store     backingstore.Store
	prefix    string
	namespace string
}

// New returns an Index backed by store for the given namespace.
func New(store backingstore.Store, prefix, namespace string) *Index {
	return &Index{store: store, prefix: prefix, namespace: namespace}
}

func (x *Index) read(name string) (record, error) {
	raw, err := x.store.Get(keys.Index(x.prefix, x.namespace, name))
	if errors.Is(err, backingstore.ErrNotFound) {
		return record{Entries: map[string][]string{}}, nil
	}
	if err != nil {
		return record{}, err
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return record{}, fmt.Errorf("index: unmarshal %q: %w", name, err)
	}
	if rec.Entries == nil {
		rec.Entries = map[string][]string{}
	}
	return rec, nil
}

func (x *Index) write(name string, rec record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("index: marshal %q: %w", name, err)
	}
	return x.store.Put(keys.Index(x.prefix, x.namespace, name), string(raw))
}

// Ensure registers userKey under (name, field), appending it to the
// field's key sequence if not already present. Called on set, once per
// IndexRef the item declares.
func (x *Index) Ensure(name, field, userKey string) error {
	rec, err := x.read(name)
	if err != nil {
		return err
	}
	existing := rec.Entries[field]
	for _, k := range existing {
		if k == userKey {
			return nil
		}
	}
	rec.Entries[field] = append(existing, userKey)
	return x.write(name, rec)
}

// Remove unregisters userKey from (name, field). Called on remove and
// on overwrite-with-different-index-set, once per IndexRef the prior
// metadata record declared.
func (x *Index) Remove(name, field, userKey string) error {
	rec, err := x.read(name)
	if err != nil {
		return err
	}
	existing := rec.Entries[field]
	filtered := existing[:0:0]
	for _, k := range existing {
		if k != userKey {
			filtered = append(filtered, k)
		}
	}
	if len(filtered) == 0 {
		delete(rec.Entries, field)
	} else {
		rec.Entries[field] = filtered
	}
	return x.write(name, rec)
}

// Query returns the user keys registered under (name, field), in
// registration order.
func (x *Index) Query(name, field string) ([]string, error) {
	rec, err := x.read(name)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), rec.Entries[field]...), nil
}

// List returns every field value currently registered in the named
// index, in no particular order.
func (x *Index) List(name string) ([]string, error) {
	rec, err := x.read(name)
	if err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(rec.Entries))
	for field := range rec.Entries {
		fields = append(fields, field)
	}
	return fields, nil
}
