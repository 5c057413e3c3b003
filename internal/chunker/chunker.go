package chunker

import (
	"log/slog"

	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/logging"
)

// sequenceRef pairs a sequence with its approximate on-disk contribution
// (id + description + payload), used for size accounting without
// re-deriving it from chunkmodel repeatedly.
type sequenceRef struct {
	seq  chunkmodel.Sequence
	size int
}

func approxSize(s chunkmodel.Sequence) int {
	return len(s.ID) + len(s.Description) + len(s.Payload) + 16
}

// Chunker partitions an ingest batch of sequences into FullChunks
// respecting size bounds and taxonomic coherence (spec.md §4.4).
type Chunker struct {
	params Params
	logger *slog.Logger
}

// New constructs a Chunker. Params are validated eagerly.
func New(params Params, logger *slog.Logger) (*Chunker, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{params: params, logger: logging.Default(logger).With("component", "chunker")}, nil
}

// Result is the outcome of a partitioning run: the ordered FullChunks and
// the seed used for any optimization pass, recorded so manifests can
// reproduce the exact same partition from the same input.
type Result struct {
	Chunks []chunkmodel.FullChunk
	Seed   uint64
}

// Build partitions sequences into FullChunks. The partition is
// deterministic: running Build twice on the same input (same order, same
// params) always yields byte-identical chunks.
func (c *Chunker) Build(sequences []chunkmodel.Sequence) (Result, error) {
	seed := DeriveSeed(sequences)

	groups := groupByTaxon(sequences)

	var chunks []chunkmodel.FullChunk
	for _, g := range groups {
		if len(g.refs) < c.params.TaxonomyThreshold {
			// Small taxon: emitted verbatim as a single chunk, skipping
			// the bin-packing pass entirely.
			chunks = append(chunks, toFullChunk(g.refs))
			continue
		}
		chunks = append(chunks, c.packTaxon(g.refs)...)
	}

	if c.params.Optimize {
		chunks = anneal(chunks, c.params, seed)
	}

	c.logger.Debug("partitioned sequences", "sequences", len(sequences), "chunks", len(chunks), "seed", seed)
	return Result{Chunks: chunks, Seed: seed}, nil
}

type taxonGroup struct {
	taxon chunkmodel.TaxonID
	refs  []sequenceRef
}

// groupByTaxon buckets sequences by their single dominant taxon
// annotation, preserving first-seen order across taxa and input order
// within a taxon, so the partition is a pure function of input order.
func groupByTaxon(sequences []chunkmodel.Sequence) []taxonGroup {
	index := make(map[chunkmodel.TaxonID]int)
	var groups []taxonGroup
	for _, s := range sequences {
		ref := sequenceRef{seq: s, size: approxSize(s)}
		if i, ok := index[s.Taxon]; ok {
			groups[i].refs = append(groups[i].refs, ref)
			continue
		}
		index[s.Taxon] = len(groups)
		groups = append(groups, taxonGroup{taxon: s.Taxon, refs: []sequenceRef{ref}})
	}
	return groups
}

// packTaxon greedily bin-packs a single taxon's sequences into chunks
// that respect MinChunkSize/MaxChunkSize and prefer TargetChunkSize,
// in input order.
func (c *Chunker) packTaxon(refs []sequenceRef) []chunkmodel.FullChunk {
	var chunks []chunkmodel.FullChunk
	var current []sequenceRef
	currentSize := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, toFullChunk(current))
		current = nil
		currentSize = 0
	}

	for _, r := range refs {
		if currentSize > 0 && currentSize+r.size > c.params.MaxChunkSize {
			flush()
		}
		current = append(current, r)
		currentSize += r.size
		if currentSize >= c.params.TargetChunkSize && currentSize >= c.params.MinChunkSize {
			flush()
		}
	}
	flush()

	// If the final chunk alone is below MinChunkSize and there is a
	// predecessor, merge it backward rather than leaving an undersized
	// tail chunk, provided the merged chunk stays within MaxChunkSize.
	if len(chunks) >= 2 {
		last := chunks[len(chunks)-1]
		lastSize := 0
		for _, s := range last.Sequences {
			lastSize += approxSize(s)
		}
		prev := chunks[len(chunks)-2]
		prevSize := 0
		for _, s := range prev.Sequences {
			prevSize += approxSize(s)
		}
		if lastSize < c.params.MinChunkSize && prevSize+lastSize <= c.params.MaxChunkSize {
			merged := append(append([]chunkmodel.Sequence{}, prev.Sequences...), last.Sequences...)
			chunks = chunks[:len(chunks)-2]
			chunks = append(chunks, chunkmodel.NewFullChunk(merged))
		}
	}

	return chunks
}

func toFullChunk(refs []sequenceRef) chunkmodel.FullChunk {
	seqs := make([]chunkmodel.Sequence, len(refs))
	for i, r := range refs {
		seqs[i] = r.seq
	}
	return chunkmodel.NewFullChunk(seqs)
}
