package config

import (
	"context"

	"gastrolog/internal/chunker"
	"gastrolog/internal/reducer"
)

// DefaultConfig returns the bootstrap configuration for first-run: no
// registered databases yet, and the Chunker/Reducer defaults their own
// packages already consider reasonable.
func DefaultConfig() *Config {
	return &Config{
		Chunker:          chunker.DefaultParams(),
		Reducer:          reducer.DefaultParams(),
		AllowCompression: true,
	}
}

// Bootstrap writes the default configuration to store. Call this when
// Load returns a nil config (no configuration exists yet).
func Bootstrap(ctx context.Context, store Store) error {
	return store.Save(ctx, DefaultConfig())
}
