// Package chunk splits an encoded byte payload into fixed-size,
// base64-encoded shards and reassembles them, per spec.md §4.3.
package chunk

import (
	"encoding/base64"
	"fmt"
)

// DefaultShardSize is the namespace-level default shard size (128 KiB),
// per spec.md §6.
const DefaultShardSize = 131072

// Split partitions raw into slices of at most shardSize octets, base64
// encoding each one. The last slice may be short. shardSize must be at
// least 1.
func Split(raw []byte, shardSize int) ([]string, error) {
	if shardSize < 1 {
		return nil, fmt.Errorf("chunk: shardSize must be >= 1, got %d", shardSize)
	}

	if len(raw) == 0 {
		return []string{base64.StdEncoding.EncodeToString(nil)}, nil
	}

	count := (len(raw) + shardSize - 1) / shardSize
	chunks := make([]string, 0, count)
	for i := 0; i < len(raw); i += shardSize {
		end := i + shardSize
		if end > len(raw) {
			end = len(raw)
		}
		chunks = append(chunks, base64.StdEncoding.EncodeToString(raw[i:end]))
	}
	return chunks, nil
}

// Join concatenates base64-encoded chunks in order back into the
// original byte payload. size is the metadata's recorded total byte size;
// passing it lets Join preallocate once and fill, instead of the
// teacher's repeated-append approach, per spec.md §9's reassembly note.
// size may be 0 or unknown; Join still works, just without
// preallocation.
func Join(chunks []string, size int) ([]byte, error) {
	out := make([]byte, 0, size)
	for i, c := range chunks {
		decoded, err := base64.StdEncoding.DecodeString(c)
		if err != nil {
			return nil, fmt.Errorf("chunk: decode chunk %d: %w", i, err)
		}
		out = append(out, decoded...)
	}
	return out, nil
}

// Count returns ceil(size/shardSize), the chunk count Split would produce
// for a size-byte payload, without doing the split. A size of 0 counts as
// one chunk, matching the single empty chunk Split emits.
func Count(size, shardSize int) int {
	if shardSize < 1 {
		shardSize = DefaultShardSize
	}
	if size == 0 {
		return 1
	}
	return (size + shardSize - 1) / shardSize
}
