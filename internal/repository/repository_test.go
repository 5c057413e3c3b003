package repository

import (
	"context"
	"testing"
	"time"

	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/engineerrors"
	"gastrolog/internal/temporal"
)

func openTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
	return repo
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %s: %v", s, err)
	}
	return parsed
}

func TestIngestPublishesQueryableVersion(t *testing.T) {
	repo := openTestRepository(t)
	at := mustTime(t, "2026-01-01T00:00:00Z")

	seqs := []chunkmodel.Sequence{
		{ID: "seq1", Payload: []byte("ACGT"), Taxon: 1},
		{ID: "seq2", Payload: []byte("TTTT"), Taxon: 2},
	}
	result, err := repo.Ingest(context.Background(), "refseq/bacteria", seqs, at, "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.ChunkCount == 0 {
		t.Fatal("expected at least one chunk")
	}

	outcome, err := repo.Query("refseq/bacteria", "current")
	if err != nil {
		t.Fatalf("Query current: %v", err)
	}
	if outcome.VersionID != result.VersionID {
		t.Fatalf("got version %s want %s", outcome.VersionID, result.VersionID)
	}
	if len(outcome.Manifest.Entries) != result.ChunkCount {
		t.Fatalf("manifest has %d entries, want %d", len(outcome.Manifest.Entries), result.ChunkCount)
	}

	if err := repo.VerifyVersion("refseq/bacteria", result.VersionID); err != nil {
		t.Fatalf("VerifyVersion: %v", err)
	}
	if err := repo.VerifySequence("refseq/bacteria", result.VersionID, "seq1", 4); err != nil {
		t.Fatalf("VerifySequence: %v", err)
	}
}

func TestQueryAtResolvesHistoricalVersion(t *testing.T) {
	repo := openTestRepository(t)
	t0 := mustTime(t, "2026-01-01T00:00:00Z")
	t1 := mustTime(t, "2026-06-01T00:00:00Z")

	first, err := repo.Ingest(context.Background(), "db", []chunkmodel.Sequence{{ID: "a", Payload: []byte("ACGT")}}, t0, "")
	if err != nil {
		t.Fatalf("Ingest t0: %v", err)
	}
	if _, err := repo.Ingest(context.Background(), "db", []chunkmodel.Sequence{{ID: "a", Payload: []byte("ACGT")}, {ID: "b", Payload: []byte("GGGG")}}, t1, ""); err != nil {
		t.Fatalf("Ingest t1: %v", err)
	}

	mid := mustTime(t, "2026-03-01T00:00:00Z")
	outcome, err := repo.QueryAt("db", temporal.Coord{SequenceTime: mid, TaxonomyTime: mid})
	if err != nil {
		t.Fatalf("QueryAt: %v", err)
	}
	if outcome.VersionID != first.VersionID {
		t.Fatalf("got %s want %s (the version at or before the midpoint)", outcome.VersionID, first.VersionID)
	}
}

func TestQueryAtNoSnapshotBeforeCoordinate(t *testing.T) {
	repo := openTestRepository(t)
	t1 := mustTime(t, "2026-06-01T00:00:00Z")
	if _, err := repo.Ingest(context.Background(), "db", []chunkmodel.Sequence{{ID: "a", Payload: []byte("ACGT")}}, t1, ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	early := mustTime(t, "2020-01-01T00:00:00Z")
	if _, err := repo.QueryAt("db", temporal.Coord{SequenceTime: early}); !engineerrors.Is(err, engineerrors.KindNotFound) {
		t.Fatalf("expected NotFound before any snapshot, got %v", err)
	}
}

func TestReduceProducesVerifiableVersionWithIdenticalMembership(t *testing.T) {
	repo := openTestRepository(t)
	at := mustTime(t, "2026-01-01T00:00:00Z")

	seqs := []chunkmodel.Sequence{
		{ID: "ref", Payload: []byte("ACGTACGTACGTACGTACGTACGTACGTACGT"), Taxon: 1},
		{ID: "child", Payload: []byte("ACGTACGAACGTACGTACGTACGTACGTACGT"), Taxon: 1},
	}
	ingested, err := repo.Ingest(context.Background(), "db", seqs, at, "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	reduced, err := repo.Reduce(context.Background(), "db", ingested.VersionID, 0)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if reduced.ReferenceCount == 0 {
		t.Fatal("expected at least one admitted reference")
	}
	if reduced.CompressionRatio <= 0 {
		t.Fatalf("expected a positive compression ratio, got %v", reduced.CompressionRatio)
	}

	if err := repo.VerifyVersion("db", reduced.VersionID); err != nil {
		t.Fatalf("VerifyVersion on reduced manifest: %v", err)
	}

	diff, err := repo.Diff("db", ingested.VersionID, reduced.VersionID)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diff.Added) != 0 || len(diff.Removed) != 0 || len(diff.Modified) != 0 {
		t.Fatalf("expected reduce to leave membership unchanged, got %+v", diff)
	}

	if _, err := repo.Reduce(context.Background(), "db", reduced.VersionID, 0); !engineerrors.Is(err, engineerrors.KindConflict) {
		t.Fatalf("expected Conflict re-reducing an already-reduced version, got %v", err)
	}
}

func TestGarbageCollectRetainsOnlyReachableChunks(t *testing.T) {
	repo := openTestRepository(t)
	at := mustTime(t, "2026-01-01T00:00:00Z")

	if _, err := repo.Ingest(context.Background(), "db", []chunkmodel.Sequence{{ID: "a", Payload: []byte("ACGT")}}, at, ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	before, err := repo.chunks.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	result, err := repo.GarbageCollect(context.Background())
	if err != nil {
		t.Fatalf("GarbageCollect: %v", err)
	}
	if result.Removed != 0 {
		t.Fatalf("expected nothing removed when every blob is manifest-reachable, got %d", result.Removed)
	}

	after, err := repo.chunks.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("chunk count changed across a no-op GC: before %d after %d", len(before), len(after))
	}
}

func TestDeleteProtectedAliasRejected(t *testing.T) {
	repo := openTestRepository(t)
	at := mustTime(t, "2026-01-01T00:00:00Z")
	if _, err := repo.Ingest(context.Background(), "db", []chunkmodel.Sequence{{ID: "a", Payload: []byte("ACGT")}}, at, ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := repo.DeleteAlias("db", "current"); !engineerrors.Is(err, engineerrors.KindConflict) {
		t.Fatalf("expected Conflict deleting a protected alias, got %v", err)
	}
}

func TestIngestRejectsDuplicateSequenceID(t *testing.T) {
	repo := openTestRepository(t)
	at := mustTime(t, "2026-01-01T00:00:00Z")
	seqs := []chunkmodel.Sequence{
		{ID: "dup", Payload: []byte("ACGT")},
		{ID: "dup", Payload: []byte("TTTT")},
	}
	if _, err := repo.Ingest(context.Background(), "db", seqs, at, ""); !engineerrors.Is(err, engineerrors.KindUser) {
		t.Fatalf("expected UserError for duplicate id, got %v", err)
	}
}

func TestIngestRecordsTaxonomyDiscrepancies(t *testing.T) {
	repo := openTestRepository(t)
	at := mustTime(t, "2026-01-01T00:00:00Z")

	if err := repo.PutTaxonomyVersion("tax-v1", []temporal.TaxonomyAssignment{
		{SequenceID: "a", Taxon: 1},
	}); err != nil {
		t.Fatalf("PutTaxonomyVersion: %v", err)
	}

	seqs := []chunkmodel.Sequence{
		{ID: "a", Payload: []byte("ACGT"), Taxon: 2}, // carries a different taxon than tax-v1 assigns
		{ID: "b", Payload: []byte("TTTT"), Taxon: 1}, // unknown to tax-v1 entirely
	}
	result, err := repo.Ingest(context.Background(), "db", seqs, at, "tax-v1")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(result.Discrepancies) != 2 {
		t.Fatalf("expected 2 discrepancies, got %d: %v", len(result.Discrepancies), result.Discrepancies)
	}

	m, err := repo.loadManifest("db", result.VersionID)
	if err != nil {
		t.Fatalf("loadManifest: %v", err)
	}
	if m.TaxonomyManifestHash.IsZero() {
		t.Fatal("expected a non-zero TaxonomyManifestHash when a taxonomy version is supplied")
	}
	if len(m.Discrepancies) != 2 {
		t.Fatalf("expected manifest to carry 2 discrepancies, got %d", len(m.Discrepancies))
	}
}

func TestReduceCarriesForwardParentManifestHash(t *testing.T) {
	repo := openTestRepository(t)
	at := mustTime(t, "2026-01-01T00:00:00Z")

	seqs := []chunkmodel.Sequence{
		{ID: "ref", Payload: []byte("ACGTACGTACGTACGTACGTACGTACGTACGT"), Taxon: 1},
	}
	ingested, err := repo.Ingest(context.Background(), "db", seqs, at, "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	reduced, err := repo.Reduce(context.Background(), "db", ingested.VersionID, 0)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}

	m, err := repo.loadManifest("db", reduced.VersionID)
	if err != nil {
		t.Fatalf("loadManifest: %v", err)
	}
	if m.ParentManifestHash.IsZero() {
		t.Fatal("expected ParentManifestHash to point at the source version's manifest")
	}
	if m.ParentManifestHash.String() != ingested.ManifestHash {
		t.Fatalf("ParentManifestHash %s does not match ingested manifest hash %s", m.ParentManifestHash, ingested.ManifestHash)
	}
}
