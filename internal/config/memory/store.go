// Package memory provides an in-memory config.Store implementation.
// Intended for testing and single-process ad hoc use. Configuration is
// not persisted across restarts.
package memory

import (
	"context"
	"sync"

	"gastrolog/internal/config"
)

// Store is an in-memory config.Store implementation.
type Store struct {
	mu     sync.RWMutex
	cfg    *config.Config
	loaded bool
}

var _ config.Store = (*Store)(nil)

// NewStore creates a new, empty in-memory config.Store.
func NewStore() *Store {
	return &Store{}
}

// Load returns the most recently Saved configuration, or nil if Save has
// never been called.
func (s *Store) Load(ctx context.Context) (*config.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, nil
	}
	return cloneConfig(s.cfg), nil
}

// Save replaces the stored configuration with a copy of cfg.
func (s *Store) Save(ctx context.Context, cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cloneConfig(cfg)
	s.loaded = true
	return nil
}

// cloneConfig returns a deep-enough copy that callers mutating their own
// copy can't reach back into the Store's state, matching the teacher's
// in-memory store's isolation guarantee (Get returns a copy, not a
// pointer into its own maps).
func cloneConfig(cfg *config.Config) *config.Config {
	if cfg == nil {
		return nil
	}
	out := *cfg
	out.Databases = append([]config.DatabaseConfig(nil), cfg.Databases...)
	return &out
}
