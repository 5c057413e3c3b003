package reducer

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"gastrolog/internal/chunker/chainmgr"
	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/deltacodec"
	"gastrolog/internal/hashcodec"
	"gastrolog/internal/logging"
)

// Reducer re-expresses a set of sequences as a small reference set plus
// delta chains, per taxon (spec.md §4.6).
type Reducer struct {
	params Params
	chains *chainmgr.Manager
	logger *slog.Logger
}

// New constructs a Reducer that records chain depth in chains; a nil
// chains gets a fresh Manager. Depth is tracked only across the chunks
// registered with that Manager.
func New(params Params, chains *chainmgr.Manager, logger *slog.Logger) *Reducer {
	if chains == nil {
		chains = chainmgr.New()
	}
	return &Reducer{params: params, chains: chains, logger: logging.Default(logger).With("component", "reducer")}
}

// Plan is the Reducer's output: the full chunks that must be persisted
// as reference roots and the delta chunks that must be persisted against
// them. Sequences that could not be efficiently delta-encoded fall back
// to full admission and appear in References.
type Plan struct {
	References []chunkmodel.FullChunk
	Deltas     []chunkmodel.DeltaChunk
}

// candidateRef is an admitted reference available for subsequent
// sequences to delta-encode against.
type candidateRef struct {
	hash  hashcodec.Hash
	seq   chunkmodel.Sequence
	kmers map[string]struct{}
	depth int
}

// Reduce groups sequences by taxon, sorts each group by descending
// length, and greedily admits references: the first sequence in a group
// is always a reference; each subsequent sequence is tried as a delta
// against the single most similar admitted reference (by k-mer Jaccard
// similarity), and becomes a fresh reference itself when that similarity
// is below the threshold while the group's reference cap, ceil(|group| *
// r.params.TargetRatio), has not yet been reached, or when the delta
// fails the chain-depth or efficiency gate. No other reference is tried.
// Once a group's cap is reached, every remaining candidate in that group
// is tried as a delta against its most similar admitted reference
// regardless of similarity, falling back to full admission when that
// delta fails (the coverage guarantee outranks the target ratio).
//
// ctx is checked between sequences within a batch, so a caller can
// cancel a reduction mid-run (spec.md §5); cancellation never corrupts
// plan, it simply stops admitting further references or deltas.
func (r *Reducer) Reduce(ctx context.Context, sequences []chunkmodel.Sequence) (Plan, error) {
	var plan Plan

	ratio := r.params.TargetRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1.0
	}

	for _, group := range groupByTaxonSorted(sequences) {
		var refs []candidateRef
		refCount := 0 // count of full references admitted so far, distinct from len(refs) which also counts delta-chain nodes available to attach to
		groupCap := int(math.Ceil(float64(len(group)) * ratio))
		if groupCap < 1 {
			groupCap = 1
		}

		for _, seq := range group {
			if err := ctx.Err(); err != nil {
				return plan, err
			}

			k := kmerK(seq.Payload)
			kmers := kmerSet(seq.Payload, k)

			best, bestSim := pickReference(refs, kmers)
			atCap := refCount >= groupCap

			if best == nil || (!atCap && bestSim < r.params.SimilarityThreshold) {
				refs = append(refs, r.admitReference(&plan, seq, kmers))
				refCount++
				continue
			}

			if !r.chains.ExceedsMaxDepth(best.hash, r.params.MaxChainDepth) {
				if rec, err := deltacodec.Encode(best.seq, seq); err == nil && r.params.Gate.Passes(rec, len(seq.Payload)) {
					dc := chunkmodel.DeltaChunk{ParentHash: best.hash, Ops: []chunkmodel.DeltaOp{opFromRecord(rec)}}
					if depth, rerr := r.chains.RegisterDelta(dc.Hash(), best.hash); rerr == nil {
						plan.Deltas = append(plan.Deltas, dc)
						refs = append(refs, candidateRef{hash: dc.Hash(), seq: seq, kmers: kmers, depth: depth})
						continue
					}
				}
			}

			if atCap {
				// The group's reference cap forbids minting a fresh
				// reference; the delta attempt above failed, so this
				// sequence is admitted as a reference anyway to satisfy
				// the coverage guarantee, in violation of the target
				// ratio (spec.md §4.6 failure semantics).
				r.logger.Debug("target ratio exceeded: delta attempt failed at group cap", "taxon", seq.Taxon, "cap", groupCap)
			}
			refs = append(refs, r.admitReference(&plan, seq, kmers))
			refCount++
		}
	}

	r.logger.Debug("reduced sequences", "input", len(sequences), "references", len(plan.References), "deltas", len(plan.Deltas))
	return plan, nil
}

func (r *Reducer) admitReference(plan *Plan, seq chunkmodel.Sequence, kmers map[string]struct{}) candidateRef {
	fc := chunkmodel.NewFullChunk([]chunkmodel.Sequence{seq})
	h := fc.Hash()
	r.chains.RegisterFull(h)
	plan.References = append(plan.References, fc)
	return candidateRef{hash: h, seq: seq, kmers: kmers, depth: 0}
}

// pickReference returns the admitted reference with highest k-mer
// similarity to kmers, or nil if refs is empty.
func pickReference(refs []candidateRef, kmers map[string]struct{}) (*candidateRef, float64) {
	var best *candidateRef
	bestSim := -1.0
	for i := range refs {
		sim := jaccard(refs[i].kmers, kmers)
		if sim > bestSim {
			bestSim = sim
			best = &refs[i]
		}
	}
	return best, bestSim
}

// groupByTaxonSorted buckets sequences by taxon (first-seen order
// across taxa) and sorts each bucket by descending payload length, a
// stable sort so identical-length sequences keep their input order.
func groupByTaxonSorted(sequences []chunkmodel.Sequence) [][]chunkmodel.Sequence {
	index := make(map[chunkmodel.TaxonID]int)
	var groups [][]chunkmodel.Sequence
	for _, s := range sequences {
		if i, ok := index[s.Taxon]; ok {
			groups[i] = append(groups[i], s)
			continue
		}
		index[s.Taxon] = len(groups)
		groups = append(groups, []chunkmodel.Sequence{s})
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return len(g[i].Payload) > len(g[j].Payload) })
	}
	return groups
}

// opFromRecord converts a Record's ranged substitutions into a single
// Modify DeltaOp. Each Range becomes one Edit: a generalized
// substitute-at-position that, like Range itself, allows the
// replacement length to differ from the consumed reference span so
// insertions and deletions can be expressed alongside substitutions.
func opFromRecord(rec deltacodec.Record) chunkmodel.DeltaOp {
	edits := make([]chunkmodel.Edit, len(rec.Ranges))
	for i, rg := range rec.Ranges {
		edits[i] = chunkmodel.Edit{
			Kind:  chunkmodel.EditSubstitute,
			Pos:   rg.Start,
			Base:  rg.Substitution,
			Count: rg.End - rg.Start + 1,
		}
	}
	return chunkmodel.DeltaOp{Kind: chunkmodel.OpModify, SeqID: rec.ChildID, Taxon: rec.Taxon, Edits: edits}
}
