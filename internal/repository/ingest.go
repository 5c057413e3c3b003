package repository

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"gastrolog/internal/capacity"
	"gastrolog/internal/chunker"
	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/engineerrors"
	"gastrolog/internal/hashcodec"
	"gastrolog/internal/manifest"
	"gastrolog/internal/temporal"
	"gastrolog/internal/workspace"
)

// IngestResult summarizes a completed ingest: the minted version id, the
// published manifest's content hash, and the chunk count it contains.
type IngestResult struct {
	VersionID     string
	ManifestHash  string
	ChunkCount    int
	Discrepancies []string
}

// Ingest partitions sequences into content-addressed full chunks,
// persists them, publishes a Merkle-authenticated manifest, records the
// version in the Temporal Index, diffs its membership against the
// database's previous version for history, and advances both the
// "current" and "latest" aliases (spec.md §4.10).
//
// at is the sequence-time coordinate this observation is recorded at;
// callers typically pass the current wall-clock time. taxonomyVersionID
// is the taxonomy snapshot this ingest is evaluated against; empty skips
// taxonomy binding and discrepancy detection entirely. ctx is checked
// between chunk writes, so a caller can cancel an ingest still in
// progress (spec.md §5); a cancellation leaves no version published,
// since the manifest is only written once every chunk is persisted.
func (r *Repository) Ingest(ctx context.Context, databaseID string, sequences []chunkmodel.Sequence, at time.Time, taxonomyVersionID string) (IngestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, err := workspace.New(r.workspaceRoot(), r.preserveOnFailure, r.logger)
	if err != nil {
		return IngestResult{}, err
	}
	defer func() {
		ws.MarkFailed(err)
		if releaseErr := ws.Release(); releaseErr != nil {
			r.logger.Warn("workspace release failed", "error", releaseErr)
		}
	}()

	normalized := make([]chunkmodel.Sequence, len(sequences))
	seen := make(map[string]struct{}, len(sequences))
	for i, s := range sequences {
		if verr := s.Validate(); verr != nil {
			err = engineerrors.Wrap(engineerrors.KindUser, verr, "sequence %d", i)
			return IngestResult{}, err
		}
		if _, dup := seen[s.ID]; dup {
			err = engineerrors.New(engineerrors.KindUser, "duplicate sequence id %q in ingest batch", s.ID)
			return IngestResult{}, err
		}
		seen[s.ID] = struct{}{}
		normalized[i] = s.Normalize()
	}

	if aerr := r.checkCapacity(normalized); aerr != nil {
		err = aerr
		return IngestResult{}, err
	}
	started := time.Now()

	ck, cerr := chunker.New(r.chunkerParams, r.logger)
	if cerr != nil {
		err = engineerrors.Wrap(engineerrors.KindUser, cerr, "chunker parameters")
		return IngestResult{}, err
	}
	built, berr := ck.Build(normalized)
	if berr != nil {
		err = berr
		return IngestResult{}, err
	}

	// Chunk persistence is independent per full chunk (content-addressed,
	// write-then-rename), so writes fan out across a worker pool bounded
	// to the host's logical CPU count. (GarbageCollect and the Verifier
	// bound their own per-manifest/per-entry work at a fixed 8 instead.)
	entries := make([]manifest.Entry, len(built.Chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, fc := range built.Chunks {
		i, fc := i, fc
		g.Go(func() error {
			if gerr := gctx.Err(); gerr != nil {
				return gerr
			}
			raw := fc.CanonicalBytes()
			h, perr := r.chunks.Put(raw, true)
			if perr != nil {
				return perr
			}
			entries[i] = manifest.Entry{
				Hash:   h,
				Meta:   fullChunkMeta(fc, h, raw, at),
				IsRoot: true,
			}
			for _, seq := range fc.Sequences {
				if _, perr := r.sequences.Put(seq); perr != nil {
					return perr
				}
			}
			return nil
		})
	}
	if gerr := g.Wait(); gerr != nil {
		err = gerr
		return IngestResult{}, err
	}

	var parentHash hashcodec.Hash
	if previous, perr := r.ResolveAlias(databaseID, temporal.AliasCurrent); perr == nil {
		if prevRec, verr := r.temporal.GetVersion(qualifiedVersionID(databaseID, previous)); verr == nil {
			parentHash = prevRec.ManifestHash
		}
	}

	var taxonomyHash hashcodec.Hash
	var discrepancies []string
	if taxonomyVersionID != "" {
		taxonomyHash, err = r.temporal.TaxonomyHash(taxonomyVersionID)
		if err != nil {
			return IngestResult{}, err
		}
		discrepancies, err = r.taxonomyDiscrepancies(taxonomyVersionID, normalized)
		if err != nil {
			return IngestResult{}, err
		}
	}

	m := manifest.Manifest{
		DatabaseID:           databaseID,
		CreatedAt:            at,
		Entries:              entries,
		TaxonomyManifestHash: taxonomyHash,
		ParentManifestHash:   parentHash,
		Discrepancies:        discrepancies,
		Params: manifest.ChunkerParams{
			MinChunkSize:      r.chunkerParams.MinChunkSize,
			MaxChunkSize:      r.chunkerParams.MaxChunkSize,
			TargetChunkSize:   r.chunkerParams.TargetChunkSize,
			TaxonomyThreshold: r.chunkerParams.TaxonomyThreshold,
			Seed:              built.Seed,
		},
	}

	versionID, verr := newVersionID()
	if verr != nil {
		err = verr
		return IngestResult{}, err
	}

	manifestHash, werr := r.writeManifest(databaseID, versionID, m)
	if werr != nil {
		err = werr
		return IngestResult{}, err
	}

	rec := temporal.VersionRecord{
		VersionID:    qualifiedVersionID(databaseID, versionID),
		ManifestHash: manifestHash,
		SequenceTime: at,
		TaxonomyTime: at,
		Summary:      fmt.Sprintf("ingest: %d sequences, %d chunks", len(normalized), len(entries)),
	}
	if perr := r.temporal.PutVersion(rec); perr != nil {
		err = perr
		return IngestResult{}, err
	}
	if oerr := r.temporal.RecordObservation(rec.VersionID, at, normalized); oerr != nil {
		err = oerr
		return IngestResult{}, err
	}

	if serr := r.SetAlias(databaseID, temporal.AliasLatest, versionID); serr != nil {
		err = serr
		return IngestResult{}, err
	}
	if serr := r.SetAlias(databaseID, temporal.AliasCurrent, versionID); serr != nil {
		err = serr
		return IngestResult{}, err
	}

	r.capacityTracker.Record(capacity.Sample{
		BatchSize:  len(normalized),
		Duration:   time.Since(started),
		MemoryUsed: capacity.ProcessMemoryInUse(),
	})

	return IngestResult{
		VersionID:     versionID,
		ManifestHash:  manifestHash.String(),
		ChunkCount:    len(entries),
		Discrepancies: discrepancies,
	}, nil
}

// checkCapacity rejects a batch outright if it would not fit in usable
// system memory. Splitting an oversized batch into sub-batches is not
// an option here: chunker.DeriveSeed derives a single content-dependent
// partition seed from the whole sequence set, and a manifest records
// exactly one such seed, so two chunker.Build calls feeding one logical
// ingest would record an arbitrary, order-dependent seed rather than a
// single reproducible one. A caller that hits this error should split
// the input itself and ingest it as separate versions, or raise the
// host's available memory; capacityTracker.Suggest reports a batch
// size that recent history shows actually completes.
func (r *Repository) checkCapacity(sequences []chunkmodel.Sequence) error {
	if len(sequences) == 0 {
		return nil
	}
	total, free, merr := capacity.AvailableMemory()
	if merr != nil {
		// No sysinfo on this platform (or the syscall failed): fall
		// back to admitting the batch rather than blocking ingest on
		// a metric we cannot read.
		return nil
	}
	available := free
	if available == 0 {
		available = total
	}

	var payloadTotal int64
	for _, s := range sequences {
		payloadTotal += int64(len(s.Payload))
	}
	avgPayload := payloadTotal / int64(len(sequences))

	if r.capacityEstimator.CanAdmit(available, len(sequences), avgPayload) {
		return nil
	}
	suggested := r.capacityEstimator.SuggestBatchSize(available, avgPayload)
	return engineerrors.New(engineerrors.KindResource,
		"ingest batch of %d sequences (avg %d bytes) exceeds usable memory (%d bytes available, %.0f%% safety margin); suggested batch size %d",
		len(sequences), avgPayload, available, r.capacityEstimator.SafetyMargin*100, suggested)
}
