package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"gastrolog/internal/chunker"
	"gastrolog/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadBeforeSaveReturnsNil(t *testing.T) {
	s := newTestStore(t)
	cfg, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config, got %+v", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := &config.Config{
		Databases: []config.DatabaseConfig{
			{ID: "refseq/bacteria", Provider: "refseq", Dataset: "bacteria"},
			{ID: "uniprot/swissprot", Provider: "uniprot", Dataset: "swissprot"},
		},
		Chunker:          chunker.DefaultParams(),
		AllowCompression: true,
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("expected a config, got nil")
	}
	if len(got.Databases) != 2 {
		t.Fatalf("got %d databases, want 2", len(got.Databases))
	}
	if got.Chunker != want.Chunker {
		t.Fatalf("Chunker params did not round-trip: got %+v want %+v", got.Chunker, want.Chunker)
	}
	if !got.AllowCompression {
		t.Fatal("expected AllowCompression to round-trip true")
	}
}

func TestSaveReplacesPreviousDatabaseList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, &config.Config{Databases: []config.DatabaseConfig{{ID: "a"}, {ID: "b"}}}); err != nil {
		t.Fatalf("Save 1: %v", err)
	}
	if err := s.Save(ctx, &config.Config{Databases: []config.DatabaseConfig{{ID: "c"}}}); err != nil {
		t.Fatalf("Save 2: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Databases) != 1 || got.Databases[0].ID != "c" {
		t.Fatalf("expected only database %q, got %+v", "c", got.Databases)
	}
}

func TestPragmas(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected journal_mode=wal, got %q", journalMode)
	}
}

func TestSchema(t *testing.T) {
	s := newTestStore(t)

	tables := map[string]bool{}
	rows, err := s.db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		t.Fatalf("query tables: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		tables[name] = true
	}

	for _, want := range []string{"databases", "repository_settings", "schema_migrations"} {
		if !tables[want] {
			t.Errorf("expected table %q, got tables: %v", want, tables)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := NewStore(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	var count int
	if err := s2.db.QueryRow("SELECT count(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 migration version, got %d", count)
	}
}

func TestConnectionLimits(t *testing.T) {
	s := newTestStore(t)
	if got := s.db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("expected MaxOpenConnections=1, got %d", got)
	}
}

func TestCloseReleasesDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("re-open: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Fatalf("ping after re-open: %v", err)
	}
}
