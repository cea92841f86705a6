package codec

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Compressor is the opaque reversible string codec spec.md §4.2 treats as
// a black box. Compress/Decompress must round-trip exactly.
type Compressor interface {
	Compress(s string) (string, error)
	Decompress(s string) (string, error)
}

// zstdCompressor wraps a pooled zstd encoder/decoder pair. Output is
// base64-encoded so it composes safely with the rest of the pipeline,
// which deals exclusively in strings.
type zstdCompressor struct {
	encOnce sync.Once
	enc     *zstd.Encoder
	encErr  error

	decOnce sync.Once
	dec     *zstd.Decoder
	decErr  error
}

// NewZstdCompressor returns the default Compressor implementation.
func NewZstdCompressor() Compressor {
	return &zstdCompressor{}
}

func (z *zstdCompressor) encoder() (*zstd.Encoder, error) {
	z.encOnce.Do(func() {
		z.enc, z.encErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return z.enc, z.encErr
}

func (z *zstdCompressor) decoder() (*zstd.Decoder, error) {
	z.decOnce.Do(func() {
		z.dec, z.decErr = zstd.NewReader(nil)
	})
	return z.dec, z.decErr
}

func (z *zstdCompressor) Compress(s string) (string, error) {
	enc, err := z.encoder()
	if err != nil {
		return "", fmt.Errorf("codec: zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll([]byte(s), nil)
	return base64.StdEncoding.EncodeToString(compressed), nil
}

func (z *zstdCompressor) Decompress(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("codec: base64 decode: %w", err)
	}
	dec, err := z.decoder()
	if err != nil {
		return "", fmt.Errorf("codec: zstd decoder: %w", err)
	}
	out, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return "", fmt.Errorf("codec: zstd decode: %w", err)
	}
	return string(out), nil
}
