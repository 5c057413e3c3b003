// Package config provides configuration persistence for the Engine.
//
// Store persists and reloads the declarative repository configuration
// across restarts: which databases are registered, and the default
// Chunker/Reducer parameters and compression policy a repository opens
// with when a call site doesn't override them. This is control-plane
// state, not data-plane state.
//
// Store is not accessed on the ingest or query hot path. Persistence must
// not block ingestion or queries.
package config

import (
	"context"

	"gastrolog/internal/chunker"
	"gastrolog/internal/reducer"
)

// Store persists and loads the repository configuration.
//
// Config changes are not hot-reloaded: it is loaded once when cmd/talaria
// opens a Repository and instantiates its components from it.
type Store interface {
	// Load reads the configuration. Returns nil config if none exists.
	Load(ctx context.Context) (*Config, error)

	// Save persists the configuration.
	Save(ctx context.Context, cfg *Config) error
}

// Config describes the desired repository shape. It is declarative: it
// defines what should exist, not how to create it.
type Config struct {
	// Databases lists every provider/dataset pair an operator has
	// registered. Ingesting against an unregistered database id is still
	// permitted (databases come into existence implicitly on first
	// ingest); this list exists for discoverability, not as an admission
	// gate.
	Databases []DatabaseConfig

	// Chunker holds the default Chunker parameters a repository opens
	// with. Ingest always uses them; it takes no per-call override.
	Chunker chunker.Params

	// Reducer holds the default Reducer parameters a repository opens
	// with.
	Reducer reducer.Params

	// AllowCompression is the stored compression policy. It is loaded and
	// saved with the rest of Config, but the repository does not read it:
	// chunks, deltas, and sequences are always offered to hashcodec with
	// compression allowed.
	AllowCompression bool
}

// DatabaseConfig describes one registered provider/dataset pair.
type DatabaseConfig struct {
	// ID is the qualified database identifier ("<provider>/<dataset>")
	// used everywhere a Repository method takes a databaseID.
	ID string

	Provider string
	Dataset  string
}
