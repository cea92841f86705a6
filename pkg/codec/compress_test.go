package codec

import "testing"

func TestZstdCompressorRoundTrip(t *testing.T) {
	c := NewZstdCompressor()
	in := "the quick brown fox jumps over the lazy dog, repeated: " +
		"the quick brown fox jumps over the lazy dog"

	compressed, err := c.Compress(in)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	out, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if out != in {
		t.Fatalf("Decompress(Compress(s)) = %q, want %q", out, in)
	}
}

func TestZstdCompressorEmptyString(t *testing.T) {
	c := NewZstdCompressor()
	compressed, err := c.Compress("")
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	out, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if out != "" {
		t.Fatalf("Decompress(Compress(\"\")) = %q, want empty", out)
	}
}

func TestZstdDecompressRejectsGarbage(t *testing.T) {
	c := NewZstdCompressor()
	if _, err := c.Decompress("not base64!!"); err == nil {
		t.Fatal("Decompress() on invalid base64 expected an error, got nil")
	}
}
