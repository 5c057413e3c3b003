package memory

import (
	"context"
	"testing"

	"gastrolog/internal/chunker"
	"gastrolog/internal/config"
)

func TestLoadBeforeSaveReturnsNil(t *testing.T) {
	s := NewStore()
	cfg, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config from an empty store, got %+v", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	want := &config.Config{
		Databases: []config.DatabaseConfig{
			{ID: "refseq/bacteria", Provider: "refseq", Dataset: "bacteria"},
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
	if len(got.Databases) != 1 || got.Databases[0].ID != "refseq/bacteria" {
		t.Fatalf("Databases = %+v", got.Databases)
	}
	if !got.AllowCompression {
		t.Fatal("expected AllowCompression to round-trip true")
	}
}

func TestLoadReturnsACopyIsolatedFromFurtherMutation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.Save(ctx, &config.Config{
		Databases: []config.DatabaseConfig{{ID: "a"}},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got.Databases[0].ID = "mutated"

	got2, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got2.Databases[0].ID != "a" {
		t.Fatalf("mutating a loaded config leaked into the store: got %q", got2.Databases[0].ID)
	}
}
