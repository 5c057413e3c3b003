package chunkmodel

import (
	"reflect"
	"testing"

	"gastrolog/internal/hashcodec"
)

func TestFullChunkEncodeDecodeRoundTrip(t *testing.T) {
	fc := NewFullChunk(seqs())
	data := fc.CanonicalBytes()
	got, err := DecodeFullChunk(data)
	if err != nil {
		t.Fatalf("DecodeFullChunk: %v", err)
	}
	if !reflect.DeepEqual(got.Sequences, fc.Sequences) {
		t.Fatalf("sequences mismatch: got %+v want %+v", got.Sequences, fc.Sequences)
	}
	if !reflect.DeepEqual(got.Taxa, fc.Taxa) {
		t.Fatalf("taxa mismatch: got %v want %v", got.Taxa, fc.Taxa)
	}
	if got.Hash() != fc.Hash() {
		t.Fatal("decoded chunk hash does not match original")
	}
}

func TestDeltaChunkEncodeDecodeRoundTrip(t *testing.T) {
	parent := hashcodec.Sum([]byte("parent"))
	dc := DeltaChunk{
		ParentHash: parent,
		Ops: []DeltaOp{
			{Kind: OpUseReference, SeqID: "a", Offset: 1, Length: 3},
			{Kind: OpModify, SeqID: "b", Edits: []Edit{
				{Kind: EditSubstitute, Pos: 0, Count: 2, Base: []byte("XYZ")},
				{Kind: EditInsert, Pos: 4, Base: []byte("NN")},
				{Kind: EditDelete, Pos: 6, Count: 1},
			}},
			{Kind: OpInsert, SeqID: "c", Payload: []byte("GGGG")},
			{Kind: OpDelete, SeqID: "d"},
		},
	}
	data := dc.CanonicalBytes()
	got, err := DecodeDeltaChunk(data)
	if err != nil {
		t.Fatalf("DecodeDeltaChunk: %v", err)
	}
	if got.ParentHash != dc.ParentHash {
		t.Fatal("parent hash mismatch")
	}
	if !reflect.DeepEqual(got.Ops, dc.Ops) {
		t.Fatalf("ops mismatch: got %+v want %+v", got.Ops, dc.Ops)
	}
	if got.Hash() != dc.Hash() {
		t.Fatal("decoded chunk hash does not match original")
	}
}

func TestDecodeFullChunkRejectsWrongTag(t *testing.T) {
	parent := hashcodec.Sum([]byte("x"))
	dc := DeltaChunk{ParentHash: parent, Ops: []DeltaOp{{Kind: OpDelete, SeqID: "z"}}}
	if _, err := DecodeFullChunk(dc.CanonicalBytes()); err == nil {
		t.Fatal("expected error decoding a delta chunk as full")
	}
}

func TestDecodeDeltaChunkRejectsTruncatedBuffer(t *testing.T) {
	parent := hashcodec.Sum([]byte("x"))
	dc := DeltaChunk{ParentHash: parent, Ops: []DeltaOp{{Kind: OpUseReference, SeqID: "z", Offset: 0, Length: 4}}}
	data := dc.CanonicalBytes()
	if _, err := DecodeDeltaChunk(data[:len(data)-1]); err == nil {
		t.Fatal("expected error decoding truncated delta chunk")
	}
}
