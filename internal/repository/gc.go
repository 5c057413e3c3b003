package repository

import (
	"context"
	"strings"
	"sync"

	"gastrolog/internal/hashcodec"

	"golang.org/x/sync/errgroup"
)

// gcManifestConcurrency bounds how many manifests GarbageCollect decodes
// at once. Manifest loads are independent disk reads; capping this keeps
// a repository with many databases from opening an unbounded number of
// files at once.
const gcManifestConcurrency = 8

// GCResult summarizes a garbage-collection sweep.
type GCResult struct {
	Reachable int
	Removed   int
}

// GarbageCollect computes the union of chunk references across every
// live manifest in every database this Repository serves, then deletes
// any chunk Store blob outside that union (spec.md §4.10). Per-database
// collection is deliberately not offered: chunks are shared across
// databases by content address, so a chunk unreferenced by database A
// but referenced by database B would be wrongly deleted by a
// per-database sweep.
//
// Only the chunk Store is swept. The sequence Store is a by-id lookup
// convenience populated alongside ingest, not a structure any manifest
// references by hash — a FullChunk embeds its sequences' bytes inline
// rather than pointing at sequencestore records — so it has no
// reachability relationship to GC to enforce.
//
// ctx cancels the reachability sweep (manifest loads) and the removal
// batch; a cancellation after removal has already started may leave
// some unreachable blobs deleted and others not, which is safe since a
// later sweep simply finishes the job.
func (r *Repository) GarbageCollect(ctx context.Context) (GCResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions, err := r.temporal.ListVersions()
	if err != nil {
		return GCResult{}, err
	}

	reachable := make(map[hashcodec.Hash]struct{})
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(gcManifestConcurrency)
	for _, v := range versions {
		databaseID, bareVersionID, ok := splitQualifiedVersionID(v.VersionID)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := r.loadManifest(databaseID, bareVersionID)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, entry := range m.Entries {
				reachable[entry.Hash] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return GCResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return GCResult{}, err
	}

	all, err := r.chunks.List()
	if err != nil {
		return GCResult{}, err
	}

	var toRemove []hashcodec.Hash
	for _, h := range all {
		if _, ok := reachable[h]; !ok {
			toRemove = append(toRemove, h)
		}
	}
	if len(toRemove) > 0 {
		if err := r.chunks.RemoveBatch(toRemove); err != nil {
			return GCResult{}, err
		}
	}

	return GCResult{Reachable: len(reachable), Removed: len(toRemove)}, nil
}

// splitQualifiedVersionID reverses qualifiedVersionID, splitting on the
// last "@" so a databaseID itself containing "@" (unlikely, but not
// forbidden) still round-trips.
func splitQualifiedVersionID(qualified string) (databaseID, versionID string, ok bool) {
	i := strings.LastIndex(qualified, "@")
	if i < 0 {
		return "", "", false
	}
	return qualified[:i], qualified[i+1:], true
}
