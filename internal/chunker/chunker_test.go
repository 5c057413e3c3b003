package chunker

import (
	"fmt"
	"testing"

	"gastrolog/internal/chunkmodel"
)

func seqs(n int, taxon chunkmodel.TaxonID, payloadLen int) []chunkmodel.Sequence {
	out := make([]chunkmodel.Sequence, n)
	for i := 0; i < n; i++ {
		out[i] = chunkmodel.Sequence{
			ID:      fmt.Sprintf("t%d-seq%d", taxon, i),
			Payload: make([]byte, payloadLen),
			Taxon:   taxon,
		}
		for j := range out[i].Payload {
			out[i].Payload[j] = "ACGT"[(i+j)%4]
		}
	}
	return out
}

// TestSingleSmallTaxonYieldsOneChunk mirrors the spec's single-taxon,
// well-under-target scenario: everything should land in exactly one
// chunk.
func TestSingleSmallTaxonYieldsOneChunk(t *testing.T) {
	input := []chunkmodel.Sequence{
		{ID: "A", Payload: []byte("ACGTACGT")},
		{ID: "B", Payload: []byte("ACGTACGA")},
		{ID: "C", Payload: []byte("TTTTGGGG")},
	}
	c, err := New(Params{MinChunkSize: 64, MaxChunkSize: 64, TargetChunkSize: 64, TaxonomyThreshold: 8}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Build(input)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(res.Chunks))
	}
	if len(res.Chunks[0].Sequences) != 3 {
		t.Fatalf("expected 3 sequences in the chunk, got %d", len(res.Chunks[0].Sequences))
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	input := append(seqs(20, 1, 100), seqs(20, 2, 100)...)
	c, err := New(Params{MinChunkSize: 500, MaxChunkSize: 1500, TargetChunkSize: 1000, TaxonomyThreshold: 2}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r1, err := c.Build(input)
	if err != nil {
		t.Fatalf("Build 1: %v", err)
	}
	r2, err := c.Build(input)
	if err != nil {
		t.Fatalf("Build 2: %v", err)
	}
	if r1.Seed != r2.Seed {
		t.Fatal("expected identical seed across runs")
	}
	if len(r1.Chunks) != len(r2.Chunks) {
		t.Fatalf("expected identical chunk count, got %d vs %d", len(r1.Chunks), len(r2.Chunks))
	}
	for i := range r1.Chunks {
		if r1.Chunks[i].Hash() != r2.Chunks[i].Hash() {
			t.Fatalf("chunk %d hash differs across identical runs", i)
		}
	}
}

func TestPackTaxonRespectsMaxChunkSize(t *testing.T) {
	input := seqs(50, 1, 200)
	c, err := New(Params{MinChunkSize: 100, MaxChunkSize: 1000, TargetChunkSize: 900, TaxonomyThreshold: 2}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Build(input)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Chunks) < 2 {
		t.Fatalf("expected multiple chunks for oversized taxon, got %d", len(res.Chunks))
	}
	for i, ch := range res.Chunks {
		size := 0
		for _, s := range ch.Sequences {
			size += approxSize(s)
		}
		if size > 1000 {
			t.Fatalf("chunk %d exceeds MaxChunkSize: %d", i, size)
		}
	}
}

func TestSmallTaxonBelowThresholdIsVerbatim(t *testing.T) {
	input := seqs(3, 7, 50)
	c, err := New(Params{MinChunkSize: 10, MaxChunkSize: 10000, TargetChunkSize: 5000, TaxonomyThreshold: 8}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Build(input)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Chunks) != 1 || len(res.Chunks[0].Sequences) != 3 {
		t.Fatalf("expected one verbatim chunk with 3 sequences, got %+v", res.Chunks)
	}
}

func TestSequencesNeverCrossTaxonBoundaryWithinAChunk(t *testing.T) {
	input := append(seqs(10, 1, 100), seqs(10, 2, 100)...)
	c, err := New(Params{MinChunkSize: 50, MaxChunkSize: 10000, TargetChunkSize: 5000, TaxonomyThreshold: 2}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Build(input)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, ch := range res.Chunks {
		if len(ch.Taxa) != 1 {
			t.Fatalf("expected single-taxon chunk, got taxa %v", ch.Taxa)
		}
	}
}

func TestDeriveSeedStableUnderReordering(t *testing.T) {
	a := []chunkmodel.Sequence{{ID: "x"}, {ID: "y"}}
	b := []chunkmodel.Sequence{{ID: "y"}, {ID: "x"}}
	if DeriveSeed(a) != DeriveSeed(b) {
		t.Fatal("expected seed to be independent of input order")
	}
}

func TestInvalidParamsRejected(t *testing.T) {
	_, err := New(Params{MinChunkSize: 100, MaxChunkSize: 10, TargetChunkSize: 50}, nil)
	if err == nil {
		t.Fatal("expected error for Min > Max")
	}
}
