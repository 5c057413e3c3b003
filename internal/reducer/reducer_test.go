package reducer

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"gastrolog/internal/chunkmodel"
)

// repeatTo builds a payload of the given length by repeating pattern.
// Its k-mer set is small and period-bound, so it is only suitable for
// tests checking gross dissimilarity or pure taxon grouping, never for
// a near-miss single-substitution similarity check (see pseudoRandomSeq).
func repeatTo(pattern string, n int) []byte {
	out := bytes.Repeat([]byte(pattern), n/len(pattern)+1)
	return out[:n]
}

// pseudoRandomSeq returns a deterministic, non-periodic nucleotide
// payload of length n: its k-mer set grows with length (unlike a
// repeated pattern's bounded period), so a single substitution changes
// only a small fraction of it, keeping Jaccard similarity high enough
// to exercise reference-admission's default threshold.
func pseudoRandomSeq(n int, seed int64) []byte {
	bases := []byte("ACGT")
	rnd := rand.New(rand.NewSource(seed))
	out := make([]byte, n)
	for i := range out {
		out[i] = bases[rnd.Intn(len(bases))]
	}
	return out
}

func withSubstitution(payload []byte, pos int, b byte) []byte {
	out := append([]byte{}, payload...)
	out[pos] = b
	return out
}

// withSubstitutions applies several scattered substitutions, diverging
// payload enough to push k-mer Jaccard similarity below a strict
// threshold while staying well within the delta codec's efficiency gate
// (few enough, short enough edits to still encode as a cheap delta).
func withSubstitutions(payload []byte, positions []int, b byte) []byte {
	out := append([]byte{}, payload...)
	for _, pos := range positions {
		out[pos] = b
	}
	return out
}

func scatteredPositions(n, stride int) []int {
	var out []int
	for i := stride; i < n; i += stride {
		out = append(out, i)
	}
	return out
}

func TestReduceFirstSequenceInTaxonIsReference(t *testing.T) {
	r := New(DefaultParams(), nil, nil)
	plan, err := r.Reduce(context.Background(), []chunkmodel.Sequence{
		{ID: "a", Payload: repeatTo("ACGT", 200), Taxon: 1},
	})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(plan.References) != 1 || len(plan.Deltas) != 0 {
		t.Fatalf("expected a single reference and no deltas, got %+v", plan)
	}
}

func TestReduceSimilarSequenceBecomesDelta(t *testing.T) {
	r := New(DefaultParams(), nil, nil)
	ref := pseudoRandomSeq(800, 1)
	child := withSubstitution(ref, 400, 'T')
	plan, err := r.Reduce(context.Background(), []chunkmodel.Sequence{
		{ID: "a", Payload: ref, Taxon: 1},
		{ID: "b", Payload: child, Taxon: 1},
	})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(plan.References) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(plan.References))
	}
	if len(plan.Deltas) != 1 {
		t.Fatalf("expected 1 delta, got %d", len(plan.Deltas))
	}
	if plan.Deltas[0].ParentHash != plan.References[0].Hash() {
		t.Fatal("expected delta to reference the admitted reference's hash")
	}
}

func TestReduceDissimilarSequenceBecomesOwnReference(t *testing.T) {
	r := New(DefaultParams(), nil, nil)
	plan, err := r.Reduce(context.Background(), []chunkmodel.Sequence{
		{ID: "a", Payload: repeatTo("A", 200), Taxon: 1},
		{ID: "b", Payload: repeatTo("C", 200), Taxon: 1},
	})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(plan.References) != 2 {
		t.Fatalf("expected 2 independent references for dissimilar sequences, got %d", len(plan.References))
	}
	if len(plan.Deltas) != 0 {
		t.Fatalf("expected no deltas, got %d", len(plan.Deltas))
	}
}

func TestReduceSeparatesByTaxon(t *testing.T) {
	r := New(DefaultParams(), nil, nil)
	payload := repeatTo("ACGT", 200)
	plan, err := r.Reduce(context.Background(), []chunkmodel.Sequence{
		{ID: "a", Payload: payload, Taxon: 1},
		{ID: "b", Payload: append([]byte{}, payload...), Taxon: 2},
	})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(plan.References) != 2 {
		t.Fatalf("expected each taxon to admit its own reference, got %d", len(plan.References))
	}
}

func TestReduceIsDeterministic(t *testing.T) {
	ref := pseudoRandomSeq(800, 2)
	input := []chunkmodel.Sequence{
		{ID: "a", Payload: ref, Taxon: 1},
		{ID: "b", Payload: withSubstitution(ref, 50, 'T'), Taxon: 1},
		{ID: "c", Payload: repeatTo("G", 200), Taxon: 1},
	}
	p1, err := New(DefaultParams(), nil, nil).Reduce(context.Background(), input)
	if err != nil {
		t.Fatalf("Reduce 1: %v", err)
	}
	p2, err := New(DefaultParams(), nil, nil).Reduce(context.Background(), input)
	if err != nil {
		t.Fatalf("Reduce 2: %v", err)
	}
	if len(p1.References) != len(p2.References) || len(p1.Deltas) != len(p2.Deltas) {
		t.Fatal("expected identical plan shape across runs")
	}
	for i := range p1.References {
		if p1.References[i].Hash() != p2.References[i].Hash() {
			t.Fatalf("reference %d hash differs across runs", i)
		}
	}
	for i := range p1.Deltas {
		if p1.Deltas[i].Hash() != p2.Deltas[i].Hash() {
			t.Fatalf("delta %d hash differs across runs", i)
		}
	}
}

func TestReduceZeroMaxChainDepthForcesFullAdmission(t *testing.T) {
	params := DefaultParams()
	params.MaxChainDepth = 0
	r := New(params, nil, nil)
	ref := pseudoRandomSeq(800, 3)
	plan, err := r.Reduce(context.Background(), []chunkmodel.Sequence{
		{ID: "a", Payload: ref, Taxon: 1},
		{ID: "b", Payload: withSubstitution(ref, 400, 'T'), Taxon: 1},
	})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(plan.Deltas) != 0 {
		t.Fatalf("expected max chain depth 0 to force full admission, got %d deltas", len(plan.Deltas))
	}
	if len(plan.References) != 2 {
		t.Fatalf("expected 2 references, got %d", len(plan.References))
	}
}

func TestReduceTargetRatioCapsReferencesPerGroup(t *testing.T) {
	params := DefaultParams()
	// A threshold this strict means every near-duplicate below would
	// normally be rejected as "not similar enough" and admitted as its
	// own reference; only the ratio cap forces them into deltas instead.
	params.SimilarityThreshold = 0.999
	params.TargetRatio = 0.25
	r := New(params, nil, nil)

	ref := pseudoRandomSeq(800, 11)
	// Scattered, widely-spaced substitutions diverge each child just
	// enough to stay under the strict threshold above while remaining
	// cheap enough for deltacodec.Encode to pass the efficiency gate
	// (DefaultGate: at most 64 ops, serialized size under half the
	// child's length) once the cap forces an attach attempt.
	b := withSubstitutions(ref, scatteredPositions(800, 80), 'T')
	c := withSubstitutions(ref, scatteredPositions(800, 53), 'G')
	d := withSubstitutions(ref, scatteredPositions(800, 37), 'C')

	// Four sequences in one taxon under ceil(4*0.25)=1: only the first
	// is admitted as a full reference; the rest must attach as deltas
	// even though none of them clears the 0.999 similarity threshold.
	plan, err := r.Reduce(context.Background(), []chunkmodel.Sequence{
		{ID: "a", Payload: ref, Taxon: 1},
		{ID: "b", Payload: b, Taxon: 1},
		{ID: "c", Payload: c, Taxon: 1},
		{ID: "d", Payload: d, Taxon: 1},
	})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(plan.References) != 1 {
		t.Fatalf("expected the group's reference count to be capped at 1, got %d", len(plan.References))
	}
	if len(plan.Deltas) != 3 {
		t.Fatalf("expected the remaining 3 sequences to attach as deltas once the cap was reached, got %d", len(plan.Deltas))
	}
}

func TestReduceContextCancellationStopsEarly(t *testing.T) {
	r := New(DefaultParams(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Reduce(ctx, []chunkmodel.Sequence{
		{ID: "a", Payload: repeatTo("ACGT", 200), Taxon: 1},
	})
	if err == nil {
		t.Fatal("expected Reduce to report the cancellation error")
	}
}
