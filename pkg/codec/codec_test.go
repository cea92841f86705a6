package codec

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lsmkv/lsmkv/internal/metrics"
)

type sample struct {
	N int    `json:"n"`
	S string `json:"s"`
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	cipher, err := NewRealCipher(key)
	if err != nil {
		t.Fatalf("NewRealCipher() error = %v", err)
	}
	return New(cipher)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	combos := []Options{
		{Compress: false, Encrypt: false},
		{Compress: true, Encrypt: false},
		{Compress: false, Encrypt: true},
		{Compress: true, Encrypt: true},
	}

	for _, opts := range combos {
		p := newTestPipeline(t)
		in := sample{N: 42, S: "hello world"}

		enc, err := p.Encode(in, opts)
		if err != nil {
			t.Fatalf("Encode(%+v) error = %v", opts, err)
		}

		var out sample
		if err := p.Decode(enc, opts, &out); err != nil {
			t.Fatalf("Decode(%+v) error = %v", opts, err)
		}
		if out != in {
			t.Fatalf("Decode(Encode(%+v)) = %+v, want %+v", opts, out, in)
		}
	}
}

func TestEncodeBytesDecodeBytesRoundTrip(t *testing.T) {
	p := newTestPipeline(t)
	opts := Options{Compress: true, Encrypt: true}
	raw := []byte(`{"hello":"world"}`)

	enc, err := p.EncodeBytes(raw, opts)
	if err != nil {
		t.Fatalf("EncodeBytes() error = %v", err)
	}
	dec, err := p.DecodeBytes(enc, opts)
	if err != nil {
		t.Fatalf("DecodeBytes() error = %v", err)
	}
	if string(dec) != string(raw) {
		t.Fatalf("DecodeBytes(EncodeBytes(raw)) = %q, want %q", dec, raw)
	}
}

func TestEncodeEncryptWithoutCipherFails(t *testing.T) {
	p := New(nil)
	_, err := p.Encode(sample{}, Options{Encrypt: true})
	if err != ErrNoKey {
		t.Fatalf("Encode() error = %v, want ErrNoKey", err)
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	p := newTestPipeline(t)
	enc, err := p.Encode(sample{N: 1}, Options{Encrypt: true})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	tampered := []byte(enc)
	tampered[len(tampered)-1] ^= 0xFF

	var out sample
	err = p.Decode(string(tampered), Options{Encrypt: true}, &out)
	if !errors.Is(err, ErrCryptoFail) {
		t.Fatalf("Decode(tampered) error = %v, want ErrCryptoFail", err)
	}
}

func TestDegenerateCipherRoundTripsButDoesNotAuthenticate(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	cipher := NewDegenerateCipher(key)
	p := New(cipher)

	enc, err := p.Encode(sample{N: 7, S: "x"}, Options{Encrypt: true})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var out sample
	if err := p.Decode(enc, Options{Encrypt: true}, &out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if out.N != 7 || out.S != "x" {
		t.Fatalf("Decode() = %+v, want {7 x}", out)
	}

	if got := testutil.ToFloat64(metrics.CryptoDegraded); got != 1 {
		t.Fatalf("CryptoDegraded gauge = %v, want 1", got)
	}
}
