// Package keys constructs the BackingStore key layout spec.md §6 defines,
// so every other package builds namespaced keys the same way.
package keys

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPrefix is the namespace-prefix default, per spec.md §6.
const DefaultPrefix = "__lsm__"

// DefaultNamespace is the namespace default, per spec.md §6.
const DefaultNamespace = "default"

// NamespaceRoot returns the common prefix every key belonging to
// (prefix, namespace) starts with. Used to enumerate or isolate a
// namespace's entries in the shared BackingStore.
func NamespaceRoot(prefix, namespace string) string {
	return prefix + ":" + namespace + ":"
}

// Marker returns the marker key for userKey, per spec.md §6.
func Marker(prefix, namespace, userKey string) string {
	return NamespaceRoot(prefix, namespace) + userKey
}

// Meta returns the metadata key for userKey.
func Meta(prefix, namespace, userKey string) string {
	return NamespaceRoot(prefix, namespace) + "__meta__:" + userKey
}

// Chunk returns the key for chunk i of userKey.
func Chunk(prefix, namespace, userKey string, i int) string {
	return NamespaceRoot(prefix, namespace) + userKey + ":chunk:" + strconv.Itoa(i)
}

// ChunkPrefix returns the prefix every chunk key for userKey starts with.
func ChunkPrefix(prefix, namespace, userKey string) string {
	return NamespaceRoot(prefix, namespace) + userKey + ":chunk:"
}

// Index returns the key for the whole index record named indexName.
func Index(prefix, namespace, indexName string) string {
	return NamespaceRoot(prefix, namespace) + "__index__:" + indexName
}

// Journal returns the key for the namespace's single journal record.
func Journal(prefix, namespace string) string {
	return NamespaceRoot(prefix, namespace) + "__journal__"
}

// Lock returns the key for the namespace's single lock record.
func Lock(prefix, namespace string) string {
	return NamespaceRoot(prefix, namespace) + "__lock__"
}

// EncryptionKey returns the key for the namespace's persisted encryption
// key record.
func EncryptionKey(prefix, namespace string) string {
	return NamespaceRoot(prefix, namespace) + "__key__"
}

// IsMarker reports whether key is a plain marker key for this namespace
// (not metadata, chunk, index, journal, lock, or encryption-key) and, if
// so, returns the user key it belongs to.
func IsMarker(prefix, namespace, key string) (userKey string, ok bool) {
	root := NamespaceRoot(prefix, namespace)
	if !strings.HasPrefix(key, root) {
		return "", false
	}
	rest := key[len(root):]
	if rest == "" {
		return "", false
	}
	switch {
	case strings.HasPrefix(rest, "__meta__:"),
		strings.HasPrefix(rest, "__index__:"),
		rest == "__journal__",
		rest == "__lock__",
		rest == "__key__":
		return "", false
	case strings.Contains(rest, ":chunk:"):
		return "", false
	default:
		return rest, true
	}
}

// Validate returns an error if userKey is empty. Any non-empty user key
// is accepted, including one that contains ':' separators.
func Validate(userKey string) error {
	if userKey == "" {
		return fmt.Errorf("keys: user key must not be empty")
	}
	return nil
}
