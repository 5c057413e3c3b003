package repository

import (
	"time"

	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/hashcodec"
)

// fullChunkMeta derives the ChunkMeta persisted alongside a full chunk's
// manifest entry from its canonical bytes and the envelope that was
// actually written to the Store for it.
func fullChunkMeta(fc chunkmodel.FullChunk, h hashcodec.Hash, raw []byte, at time.Time) chunkmodel.ChunkMeta {
	_, kind, uncompressed, compressed := hashcodec.Encode(raw, true)
	return chunkmodel.ChunkMeta{
		Hash:             h,
		UncompressedSize: uncompressed,
		CompressedSize:   compressed,
		CompressionKind:  kind,
		SequenceCount:    len(fc.Sequences),
		Taxa:             fc.Taxa,
		CreatedAt:        at,
		ValidFrom:        at,
	}
}

// deltaChunkMeta derives the ChunkMeta for a delta chunk's manifest entry.
func deltaChunkMeta(dc chunkmodel.DeltaChunk, h hashcodec.Hash, raw []byte, at time.Time) chunkmodel.ChunkMeta {
	_, kind, uncompressed, compressed := hashcodec.Encode(raw, true)
	taxSet := make(map[chunkmodel.TaxonID]struct{})
	for _, op := range dc.Ops {
		if op.Taxon != chunkmodel.NoTaxon {
			taxSet[op.Taxon] = struct{}{}
		}
	}
	taxa := make([]chunkmodel.TaxonID, 0, len(taxSet))
	for t := range taxSet {
		taxa = append(taxa, t)
	}
	return chunkmodel.ChunkMeta{
		Hash:             h,
		UncompressedSize: uncompressed,
		CompressedSize:   compressed,
		CompressionKind:  kind,
		SequenceCount:    len(dc.Ops),
		Taxa:             taxa,
		CreatedAt:        at,
		ValidFrom:        at,
		IsDelta:          true,
		ParentHash:       dc.ParentHash,
	}
}
