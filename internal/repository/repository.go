// Package repository wires the Store, Sequence Store, Chunker, Reducer,
// Manifest builder, Temporal Index, and Verifier into the Engine's single
// orchestration surface: ingest, reduce, query, verify, and
// garbage-collect (spec.md §4.10), grounded on the teacher's orchestrator
// package, which plays the same role (coordination, no business logic of
// its own) over chunk managers and query engines.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gastrolog/internal/capacity"
	"gastrolog/internal/chunker"
	"gastrolog/internal/logging"
	"gastrolog/internal/reducer"
	"gastrolog/internal/sequencestore"
	"gastrolog/internal/store"
	"gastrolog/internal/temporal"
	"gastrolog/internal/verifier"
)

const (
	chunksDirName    = "chunks"
	sequencesDirName = "sequences"
	versionsDirName  = "versions"
	temporalDirName  = "temporal.db"
	workspaceDirName = "workspace"
)

// Config configures a Repository's components. Zero-value fields fall
// back to the matching DefaultParams.
type Config struct {
	// Root is the repository root directory (spec.md §6's directory
	// layout lives under it). Overridable by the TALARIA_HOME
	// environment variable at the CLI layer.
	Root string

	Chunker chunker.Params
	Reducer reducer.Params

	// PreserveWorkspaceOnFailure suppresses workspace cleanup after a
	// hard-error operation, for post-mortem inspection.
	PreserveWorkspaceOnFailure bool

	// RemoteMirrorBucket, if non-empty, mirrors every committed chunk
	// blob to that S3 bucket in the background for off-site durability.
	// Empty disables mirroring entirely (the default).
	RemoteMirrorBucket string
	RemoteMirrorPrefix string

	Logger *slog.Logger
}

// Repository is the Engine's top-level handle: one opened Store pair,
// one Temporal Index, one Verifier, and the Chunker/Reducer parameters
// from cfg from which each Ingest/Reduce call builds its own Chunker or
// Reducer. A single writer mutex totally orders manifest publication
// and garbage collection across every database sharing this Repository,
// per spec.md §5's ordering guarantees.
type Repository struct {
	root string

	chunks    *store.Store
	sequences *sequencestore.Store
	temporal  *temporal.Store
	verify    *verifier.Verifier

	chunkerParams     chunker.Params
	reducerParams     reducer.Params
	preserveOnFailure bool

	capacityEstimator capacity.Estimator
	capacityTracker   *capacity.Tracker

	logger *slog.Logger

	mu sync.Mutex
}

// Open opens (and creates, if absent) every on-disk component under
// cfg.Root: the chunk Store, the sequence Store, and the Temporal Index.
func Open(cfg Config) (*Repository, error) {
	logger := logging.Default(cfg.Logger).With("component", "repository")

	chunkerParams := cfg.Chunker
	if (chunkerParams == chunker.Params{}) {
		chunkerParams = chunker.DefaultParams()
	}
	reducerParams := cfg.Reducer
	if (reducerParams == reducer.Params{}) {
		reducerParams = reducer.DefaultParams()
	}

	for _, dir := range []string{chunksDirName, sequencesDirName, versionsDirName, workspaceDirName} {
		if err := os.MkdirAll(filepath.Join(cfg.Root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("repository: create %s: %w", dir, err)
		}
	}

	chunks, err := store.New(filepath.Join(cfg.Root, chunksDirName), logger)
	if err != nil {
		return nil, fmt.Errorf("repository: open chunk store: %w", err)
	}
	if cfg.RemoteMirrorBucket != "" {
		mirror, err := store.NewS3Mirror(context.Background(), cfg.RemoteMirrorBucket, cfg.RemoteMirrorPrefix)
		if err != nil {
			return nil, fmt.Errorf("repository: configure remote mirror: %w", err)
		}
		chunks.SetMirror(mirror)
		logger.Info("remote mirror enabled", "bucket", cfg.RemoteMirrorBucket)
	}
	seqBlobs, err := store.New(filepath.Join(cfg.Root, sequencesDirName), logger)
	if err != nil {
		return nil, fmt.Errorf("repository: open sequence store: %w", err)
	}
	seqs := sequencestore.New(seqBlobs)

	temporalStore, err := temporal.Open(filepath.Join(cfg.Root, temporalDirName), logger)
	if err != nil {
		return nil, fmt.Errorf("repository: open temporal index: %w", err)
	}

	return &Repository{
		root:              cfg.Root,
		chunks:            chunks,
		sequences:         seqs,
		temporal:          temporalStore,
		verify:            verifier.New(chunks, logger),
		chunkerParams:     chunkerParams,
		reducerParams:     reducerParams,
		preserveOnFailure: cfg.PreserveWorkspaceOnFailure,
		capacityEstimator: capacity.DefaultEstimator(),
		capacityTracker:   capacity.NewTracker(),
		logger:            logger,
	}, nil
}

// Close releases the Temporal Index's underlying file handle. The Store
// and sequence Store hold no open handles between calls and need no
// closing.
func (r *Repository) Close() error {
	return r.temporal.Close()
}

// workspaceRoot is the directory new per-operation workspace.Workspace
// instances are carved out of.
func (r *Repository) workspaceRoot() string {
	return r.root
}

// versionDir returns the on-disk directory a published version's
// manifest files live in, mirroring spec.md §6's
// versions/<provider>/<dataset>/<ts>/ layout.
func (r *Repository) versionDir(databaseID, versionID string) string {
	return filepath.Join(r.root, versionsDirName, databaseID, versionID)
}
