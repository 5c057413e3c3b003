package repository

import (
	"context"
	"fmt"

	"gastrolog/internal/chunker/chainmgr"
	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/engineerrors"
	"gastrolog/internal/hashcodec"
	"gastrolog/internal/manifest"
	"gastrolog/internal/reducer"
	"gastrolog/internal/temporal"
	"gastrolog/internal/workspace"
)

// ReduceResult summarizes a completed reduction: the new version id, the
// resulting reference/delta split, and the compression ratio achieved.
type ReduceResult struct {
	VersionID      string
	ManifestHash   string
	ReferenceCount int
	DeltaCount     int
	// CompressionRatio is total uncompressed sequence payload bytes
	// divided by total stored (post-compression) entry bytes across the
	// reduction manifest's references and deltas; a value > 1 means the
	// reduction took less space on disk than the raw sequence data.
	CompressionRatio float64
}

// Reduce re-expresses an already-published, not-yet-reduced version's
// sequences as a small reference set plus delta chains, and publishes
// the result as a new version carrying the same logical sequence
// content (spec.md §4.6, §4.10). The source version's full chunks are
// decoded to recover their sequences; the new manifest's membership,
// recorded via RecordMembershipSnapshot, is therefore identical to the
// source's, so history shows no added/removed/modified events for this
// step — only the physical representation changed.
//
// targetRatio overrides the configured Reducer's per-group reference
// cap (0 keeps the configured default). ctx is checked between
// sequences during reduction (spec.md §5); cancellation leaves the
// source version untouched, since nothing is published until the full
// plan is built.
func (r *Repository) Reduce(ctx context.Context, databaseID, sourceVersionID string, targetRatio float64) (ReduceResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, err := r.loadManifest(databaseID, sourceVersionID)
	if err != nil {
		return ReduceResult{}, err
	}
	if src.ReductionApplied {
		return ReduceResult{}, engineerrors.New(engineerrors.KindConflict, "version %s/%s is already reduced", databaseID, sourceVersionID)
	}

	ws, err := workspace.New(r.workspaceRoot(), r.preserveOnFailure, r.logger)
	if err != nil {
		return ReduceResult{}, err
	}
	defer func() {
		ws.MarkFailed(err)
		if releaseErr := ws.Release(); releaseErr != nil {
			r.logger.Warn("workspace release failed", "error", releaseErr)
		}
	}()

	var sequences []chunkmodel.Sequence
	for _, entry := range src.Entries {
		if !entry.IsRoot {
			continue
		}
		raw, gerr := r.chunks.Get(entry.Hash)
		if gerr != nil {
			err = gerr
			return ReduceResult{}, err
		}
		fc, derr := chunkmodel.DecodeFullChunk(raw)
		if derr != nil {
			err = engineerrors.Wrap(engineerrors.KindCorrupt, derr, "decode full chunk %s", entry.Hash)
			return ReduceResult{}, err
		}
		sequences = append(sequences, fc.Sequences...)
	}

	params := r.reducerParams
	if targetRatio > 0 {
		params.TargetRatio = targetRatio
	}
	red := reducer.New(params, chainmgr.New(), r.logger)
	plan, rerr := red.Reduce(ctx, sequences)
	if rerr != nil {
		err = rerr
		return ReduceResult{}, err
	}

	var storedTotal int
	entries := make([]manifest.Entry, 0, len(plan.References)+len(plan.Deltas))
	for _, fc := range plan.References {
		raw := fc.CanonicalBytes()
		h, perr := r.chunks.Put(raw, true)
		if perr != nil {
			err = perr
			return ReduceResult{}, err
		}
		meta := fullChunkMeta(fc, h, raw, src.CreatedAt)
		entries = append(entries, manifest.Entry{Hash: h, Meta: meta, IsRoot: true})
		stored := meta.CompressedSize
		if meta.CompressionKind == hashcodec.KindNone {
			stored = meta.UncompressedSize // CompressedSize is 0 for uncompressed entries
		}
		storedTotal += stored
	}
	for _, dc := range plan.Deltas {
		raw := dc.CanonicalBytes()
		h, perr := r.chunks.Put(raw, true)
		if perr != nil {
			err = perr
			return ReduceResult{}, err
		}
		meta := deltaChunkMeta(dc, h, raw, src.CreatedAt)
		entries = append(entries, manifest.Entry{Hash: h, Meta: meta, IsRoot: false})
		stored := meta.CompressedSize
		if meta.CompressionKind == hashcodec.KindNone {
			stored = meta.UncompressedSize
		}
		storedTotal += stored
	}

	var rawTotal int
	for _, seq := range sequences {
		rawTotal += len(seq.Payload)
	}
	compressionRatio := 1.0
	if storedTotal > 0 {
		compressionRatio = float64(rawTotal) / float64(storedTotal)
	}

	var parentHash hashcodec.Hash
	if prevRec, verr := r.temporal.GetVersion(qualifiedVersionID(databaseID, sourceVersionID)); verr == nil {
		parentHash = prevRec.ManifestHash
	}

	m := manifest.Manifest{
		DatabaseID:           databaseID,
		CreatedAt:            src.CreatedAt,
		Entries:              entries,
		Params:               src.Params,
		TaxonomyManifestHash: src.TaxonomyManifestHash,
		ParentManifestHash:   parentHash,
		Discrepancies:        src.Discrepancies,
		ReductionApplied:     true,
		ReferenceCount:       len(plan.References),
		DeltaCount:           len(plan.Deltas),
		CompressionRatio:     compressionRatio,
	}

	versionID, verr := newVersionID()
	if verr != nil {
		err = verr
		return ReduceResult{}, err
	}
	manifestHash, werr := r.writeManifest(databaseID, versionID, m)
	if werr != nil {
		err = werr
		return ReduceResult{}, err
	}

	rec := temporal.VersionRecord{
		VersionID:    qualifiedVersionID(databaseID, versionID),
		ManifestHash: manifestHash,
		SequenceTime: src.CreatedAt,
		TaxonomyTime: src.CreatedAt,
		Summary:      fmt.Sprintf("reduce %s: %d references, %d deltas", sourceVersionID, len(plan.References), len(plan.Deltas)),
	}
	if perr := r.temporal.PutVersion(rec); perr != nil {
		err = perr
		return ReduceResult{}, err
	}
	if oerr := r.temporal.RecordMembershipSnapshot(rec.VersionID, sequences); oerr != nil {
		err = oerr
		return ReduceResult{}, err
	}

	if serr := r.SetAlias(databaseID, temporal.AliasLatest, versionID); serr != nil {
		err = serr
		return ReduceResult{}, err
	}
	if serr := r.SetAlias(databaseID, temporal.AliasCurrent, versionID); serr != nil {
		err = serr
		return ReduceResult{}, err
	}

	return ReduceResult{
		VersionID:        versionID,
		ManifestHash:     manifestHash.String(),
		ReferenceCount:   len(plan.References),
		DeltaCount:       len(plan.Deltas),
		CompressionRatio: compressionRatio,
	}, nil
}
