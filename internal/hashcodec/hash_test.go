package hashcodec

import (
	"bytes"
	"testing"
)

func TestSumDeterministic(t *testing.T) {
	b := []byte("ACGTACGT")
	a := Sum(b)
	c := Sum(b)
	if a != c {
		t.Fatalf("Sum not deterministic: %v != %v", a, c)
	}
}

func TestSumDistinctForDistinctInput(t *testing.T) {
	a := Sum([]byte("ACGT"))
	b := Sum([]byte("TTTT"))
	if a == b {
		t.Fatal("expected distinct hashes for distinct input")
	}
}

func TestZeroIsZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatal("Zero should report IsZero")
	}
	h := Sum([]byte("x"))
	if h.IsZero() {
		t.Fatal("non-zero hash reported IsZero")
	}
}

func TestHashStringRoundTrip(t *testing.T) {
	h := Sum([]byte("hello"))
	s := h.String()
	parsed, err := ParseHash(s)
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if parsed != h {
		t.Fatalf("round trip mismatch: %v != %v", parsed, h)
	}
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	if _, err := FromBytes([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short input")
	}
}

func TestShardPrefix(t *testing.T) {
	h := Sum([]byte("ACGT"))
	shard, rest := h.ShardPrefix()
	if len(shard) != 2 {
		t.Fatalf("expected 2-char shard, got %q", shard)
	}
	if shard+rest != h.String() {
		t.Fatal("shard+rest should reconstruct the full hex string")
	}
}

func TestBytesRoundTrip(t *testing.T) {
	h := Sum([]byte("roundtrip"))
	back, err := FromBytes(h.Bytes())
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if !bytes.Equal(back[:], h[:]) {
		t.Fatal("Bytes/FromBytes round trip mismatch")
	}
}
