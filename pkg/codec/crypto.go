package codec

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/lsmkv/lsmkv/internal/metrics"
)

// ErrCryptoFail is returned on tag mismatch or corruption during
// decryption, per spec.md §4.2 and §7 (kind CryptoFail).
var ErrCryptoFail = errors.New("codec: decryption failed")

// KeySize is the raw key length a namespace's encryption key record
// holds, per spec.md §3 ("One per namespace, stored as a base64 raw key").
const KeySize = chacha20poly1305.KeySize

// Cipher is the AEAD black box spec.md §4.2 describes: a 12-byte random
// nonce prepended to the ciphertext, output base64.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// GenerateKey returns a fresh random key suitable for NewRealCipher.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("codec: generate key: %w", err)
	}
	return key, nil
}

// realCipher implements Cipher with chacha20poly1305, a 12-byte-nonce AEAD
// construction, matching spec.md §4.2's nonce size exactly.
type realCipher struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewRealCipher returns the real AEAD Cipher for a 32-byte key.
func NewRealCipher(key []byte) (Cipher, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("codec: new cipher: %w", err)
	}
	return &realCipher{aead: aead}, nil
}

func (c *realCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("codec: generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *realCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrCryptoFail
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrCryptoFail
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrCryptoFail
	}
	return string(plaintext), nil
}

// degenerateCipher is a XOR stream cipher substitute for hosts with no
// real AEAD available. It provides no confidentiality or tamper
// detection; every construction sets the lsmkv_crypto_degraded gauge to
// 1 so the deployment is observably flagged, per spec.md §4.2's "MUST
// flag via metrics that confidentiality is not provided".
type degenerateCipher struct {
	key []byte
}

// NewDegenerateCipher returns the documented non-confidential fallback
// cipher. Callers MUST NOT rely on it for secrecy.
func NewDegenerateCipher(key []byte) Cipher {
	metrics.CryptoDegraded.Set(1)
	return &degenerateCipher{key: key}
}

func (c *degenerateCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, 12)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("codec: generate nonce: %w", err)
	}
	out := xorWithKeystream(nonce, c.key, []byte(plaintext))
	return base64.StdEncoding.EncodeToString(append(nonce, out...)), nil
}

func (c *degenerateCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrCryptoFail
	}
	if len(raw) < 12 {
		return "", ErrCryptoFail
	}
	nonce, body := raw[:12], raw[12:]
	return string(xorWithKeystream(nonce, c.key, body)), nil
}

// xorWithKeystream derives a repeating keystream from key and nonce and
// XORs it against data. This has no authentication and no real
// confidentiality against a known-plaintext attacker; it exists purely so
// the pipeline keeps working (per spec.md's "degenerate stream cipher MAY
// be substituted") on a host with no AEAD primitive.
func xorWithKeystream(nonce, key, data []byte) []byte {
	seed := append(append([]byte{}, nonce...), key...)
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ seed[i%len(seed)]
	}
	return out
}
