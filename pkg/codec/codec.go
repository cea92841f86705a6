// Package codec implements the value encoding pipeline: JSON-stringify,
// then optional compression, then optional authenticated encryption, with
// Decode reversing the same three stages in order.
package codec

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Options selects which pipeline stages run. Both default to off.
type Options struct {
	Compress bool
	Encrypt  bool
}

// Pipeline bundles the stateful stages (compressor, keyed cipher) that
// Encode/Decode need. A Pipeline constructed with a nil Cipher still
// works for namespaces that never request Encrypt; it fails with
// ErrNoKey the moment one does.
type Pipeline struct {
	compressor Compressor
	cipher     Cipher
}

// New returns a Pipeline using the default zstd compressor. Pass a Cipher
// (see NewRealCipher / NewDegenerateCipher) to enable the Encrypt option;
// nil is fine for namespaces that never encrypt.
func New(cipher Cipher) *Pipeline {
	return &Pipeline{compressor: NewZstdCompressor(), cipher: cipher}
}

// ErrNoKey is returned by Encode/Decode when Encrypt is requested but no
// Cipher was configured.
var ErrNoKey = fmt.Errorf("codec: encryption requested but no key is configured")

// Encode serializes value to JSON, then runs the requested stages in
// order: JSON -> compress -> encrypt. The result is always returned as
// the string the caller persists directly (already base64 if encrypted,
// plain text of the compressed codec otherwise).
func (p *Pipeline) Encode(value any, opts Options) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("codec: marshal: %w", err)
	}

	s := string(raw)

	if opts.Compress {
		s, err = p.compressor.Compress(s)
		if err != nil {
			return "", fmt.Errorf("codec: compress: %w", err)
		}
	}

	if opts.Encrypt {
		if p.cipher == nil {
			return "", ErrNoKey
		}
		s, err = p.cipher.Encrypt(s)
		if err != nil {
			return "", fmt.Errorf("codec: encrypt: %w", err)
		}
	}

	return s, nil
}

// Decode reverses Encode exactly: decrypt (if encrypted), decompress (if
// compressed), then JSON-unmarshal into out. out must be a pointer.
func (p *Pipeline) Decode(s string, opts Options, out any) error {
	if opts.Encrypt {
		if p.cipher == nil {
			return ErrNoKey
		}
		var err error
		s, err = p.cipher.Decrypt(s)
		if err != nil {
			return fmt.Errorf("codec: decrypt: %w", err)
		}
	}

	if opts.Compress {
		var err error
		s, err = p.compressor.Decompress(s)
		if err != nil {
			return fmt.Errorf("codec: decompress: %w", err)
		}
	}

	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("codec: unmarshal: %w", err)
	}
	return nil
}

// EncodeBytes mirrors Encode but starts from a raw byte payload instead of
// JSON-marshaling a Go value. The chunker operates on the result of this,
// not Encode, since chunking spec.md §4.3 splits "the encoded payload"
// produced by the codec pipeline before chunking, not a JSON document.
func (p *Pipeline) EncodeBytes(raw []byte, opts Options) ([]byte, error) {
	s := string(raw)
	var err error

	if opts.Compress {
		s, err = p.compressor.Compress(s)
		if err != nil {
			return nil, fmt.Errorf("codec: compress: %w", err)
		}
	}

	if opts.Encrypt {
		if p.cipher == nil {
			return nil, ErrNoKey
		}
		s, err = p.cipher.Encrypt(s)
		if err != nil {
			return nil, fmt.Errorf("codec: encrypt: %w", err)
		}
	}

	return []byte(s), nil
}

// DecodeBytes reverses EncodeBytes.
func (p *Pipeline) DecodeBytes(raw []byte, opts Options) ([]byte, error) {
	s := string(raw)
	var err error

	if opts.Encrypt {
		if p.cipher == nil {
			return nil, ErrNoKey
		}
		s, err = p.cipher.Decrypt(s)
		if err != nil {
			return nil, fmt.Errorf("codec: decrypt: %w", err)
		}
	}

	if opts.Compress {
		s, err = p.compressor.Decompress(s)
		if err != nil {
			return nil, fmt.Errorf("codec: decompress: %w", err)
		}
	}

	return []byte(s), nil
}
