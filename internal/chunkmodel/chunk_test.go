package chunkmodel

import (
	"testing"

	"gastrolog/internal/hashcodec"
)

func seqs() []Sequence {
	return []Sequence{
		{ID: "A", Payload: []byte("ACGTACGT"), Taxon: 9606},
		{ID: "B", Payload: []byte("ACGTACGA"), Taxon: 9606},
		{ID: "C", Payload: []byte("TTTTGGGG"), Taxon: 10090},
	}
}

func TestFullChunkHashDeterministic(t *testing.T) {
	c1 := NewFullChunk(seqs())
	c2 := NewFullChunk(seqs())
	if c1.Hash() != c2.Hash() {
		t.Fatal("expected identical hash for identical content")
	}
}

func TestFullChunkHashChangesWithContent(t *testing.T) {
	c1 := NewFullChunk(seqs())
	other := seqs()
	other[0].Payload = []byte("TTTTTTTT")
	c2 := NewFullChunk(other)
	if c1.Hash() == c2.Hash() {
		t.Fatal("expected different hash for different content")
	}
}

func TestFullChunkTaxaDistinctAndSorted(t *testing.T) {
	c := NewFullChunk(seqs())
	if len(c.Taxa) != 2 {
		t.Fatalf("expected 2 distinct taxa, got %d", len(c.Taxa))
	}
	if c.Taxa[0] > c.Taxa[1] {
		t.Fatal("expected taxa sorted ascending for canonical form")
	}
}

func TestDeltaChunkRequiresParent(t *testing.T) {
	dc := DeltaChunk{Ops: []DeltaOp{{Kind: OpInsert, SeqID: "x"}}}
	if err := dc.Validate(); err == nil {
		t.Fatal("expected error for zero parent hash")
	}
	dc.ParentHash = hashcodec.Sum([]byte("parent"))
	if err := dc.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeltaChunkHashDeterministic(t *testing.T) {
	parent := hashcodec.Sum([]byte("parent"))
	dc1 := DeltaChunk{ParentHash: parent, Ops: []DeltaOp{
		{Kind: OpUseReference, SeqID: "child1", Offset: 0, Length: 4},
	}}
	dc2 := DeltaChunk{ParentHash: parent, Ops: []DeltaOp{
		{Kind: OpUseReference, SeqID: "child1", Offset: 0, Length: 4},
	}}
	if dc1.Hash() != dc2.Hash() {
		t.Fatal("expected identical hash for identical delta content")
	}
}

func TestSequenceNormalizeUppercases(t *testing.T) {
	s := Sequence{ID: "a", Payload: []byte("acgt")}
	n := s.Normalize()
	if string(n.Payload) != "ACGT" {
		t.Fatalf("expected upper-cased payload, got %q", n.Payload)
	}
}

func TestSequenceValidateRejectsEmptyID(t *testing.T) {
	s := Sequence{Payload: []byte("ACGT")}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for empty id")
	}
}
