// Package store implements the Engine's content-addressed Chunk Store:
// write-once blob persistence with compression, a two-level directory
// shard, atomic write-then-rename, and fsync-before-rename durability
// (spec.md §4.2), grounded on the teacher's chunk/file manager's
// atomic-write idiom.
package store

import (
	"os"
	"path/filepath"
	"sort"

	"gastrolog/internal/engineerrors"
	"gastrolog/internal/hashcodec"
	"gastrolog/internal/logging"

	"log/slog"
)

const tmpPrefix = ".store-tmp-"

// Store is a write-once, content-addressed blob store on the local
// filesystem. The on-disk layout shards by the first two hex digits of
// the hash, then the remaining 62, matching spec.md §4.2's two-level
// directory shard.
type Store struct {
	root   string
	logger *slog.Logger
	mirror RemoteMirror
}

// New opens (and creates if absent) a Store rooted at dir.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, engineerrors.Wrap(engineerrors.KindResource, err, "create store root %s", dir)
	}
	return &Store{root: dir, logger: logging.Default(logger).With("component", "store")}, nil
}

func (s *Store) pathFor(h hashcodec.Hash) string {
	shard, rest := h.ShardPrefix()
	return filepath.Join(s.root, shard, rest)
}

// Put computes the hash of the uncompressed bytes raw, writes the
// self-describing envelope at a path derived from the hash, atomically
// (write-then-rename), and returns the hash. Idempotent: if the blob
// already exists, the write is skipped.
func (s *Store) Put(raw []byte, mayCompress bool) (hashcodec.Hash, error) {
	h := hashcodec.Sum(raw)
	path := s.pathFor(h)

	if _, err := os.Stat(path); err == nil {
		return h, nil // idempotent: already present
	}

	envelope, kind, _, _ := hashcodec.Encode(raw, mayCompress)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return hashcodec.Hash{}, engineerrors.Wrap(engineerrors.KindResource, err, "create shard dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return hashcodec.Hash{}, engineerrors.Wrap(engineerrors.KindResource, err, "create temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(envelope); err != nil {
		cleanup()
		return hashcodec.Hash{}, engineerrors.Wrap(engineerrors.KindResource, err, "write temp file %s", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return hashcodec.Hash{}, engineerrors.Wrap(engineerrors.KindResource, err, "fsync temp file %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return hashcodec.Hash{}, engineerrors.Wrap(engineerrors.KindResource, err, "close temp file %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return hashcodec.Hash{}, engineerrors.Wrap(engineerrors.KindResource, err, "rename %s to %s", tmpPath, path)
	}

	s.logger.Debug("chunk written", "hash", h.String(), "kind", kind, "bytes", len(envelope))
	s.mirrorAsync(h, envelope)
	return h, nil
}

// Get reads the envelope for h, decompresses if needed, and returns the
// original bytes. Returns a NotFound error if the blob is absent, or a
// Corrupt error (and quarantines the blob) on hash mismatch or a broken
// envelope.
func (s *Store) Get(h hashcodec.Hash) ([]byte, error) {
	path := s.pathFor(h)
	envelope, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, engineerrors.Wrap(engineerrors.KindNotFound, err, "chunk %s not found", h)
		}
		return nil, engineerrors.Wrap(engineerrors.KindResource, err, "read chunk %s", h)
	}

	raw, _, err := hashcodec.Decode(envelope)
	if err != nil {
		s.quarantine(h, path)
		return nil, engineerrors.Wrap(engineerrors.KindCorrupt, err, "decode envelope for chunk %s", h)
	}

	got := hashcodec.Sum(raw)
	if !got.Equal(h) {
		s.quarantine(h, path)
		return nil, engineerrors.New(engineerrors.KindCorrupt, "hash mismatch for chunk %s: got %s", h, got)
	}
	return raw, nil
}

// quarantine moves a corrupt blob aside for operator inspection rather
// than deleting it, per spec.md §4.2's failure semantics.
func (s *Store) quarantine(h hashcodec.Hash, path string) {
	qdir := filepath.Join(s.root, ".quarantine")
	if err := os.MkdirAll(qdir, 0o755); err != nil {
		s.logger.Error("failed to create quarantine dir", "error", err)
		return
	}
	dest := filepath.Join(qdir, h.String())
	if err := os.Rename(path, dest); err != nil {
		s.logger.Error("failed to quarantine corrupt chunk", "hash", h.String(), "error", err)
		return
	}
	s.logger.Warn("quarantined corrupt chunk", "hash", h.String(), "dest", dest)
}

// Exists reports whether a blob for h is present.
func (s *Store) Exists(h hashcodec.Hash) bool {
	_, err := os.Stat(s.pathFor(h))
	return err == nil
}

// Size returns the on-disk envelope size for h.
func (s *Store) Size(h hashcodec.Hash) (int64, error) {
	info, err := os.Stat(s.pathFor(h))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, engineerrors.Wrap(engineerrors.KindNotFound, err, "chunk %s not found", h)
		}
		return 0, engineerrors.Wrap(engineerrors.KindResource, err, "stat chunk %s", h)
	}
	return info.Size(), nil
}

// List returns every hash currently present in the store, sorted for
// determinism.
func (s *Store) List() ([]hashcodec.Hash, error) {
	var hashes []hashcodec.Hash
	shards, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, engineerrors.Wrap(engineerrors.KindResource, err, "list store root")
	}
	for _, shard := range shards {
		if !shard.IsDir() || shard.Name() == ".quarantine" {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.root, shard.Name()))
		if err != nil {
			return nil, engineerrors.Wrap(engineerrors.KindResource, err, "list shard %s", shard.Name())
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			h, err := hashcodec.ParseHash(shard.Name() + e.Name())
			if err != nil {
				continue // not a chunk blob (e.g. a stray .tmp file)
			}
			hashes = append(hashes, h)
		}
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].String() < hashes[j].String() })
	return hashes, nil
}

// RemoveBatch deletes the given hashes. It is used only by GC after the
// Repository has proven non-reachability across every live manifest.
func (s *Store) RemoveBatch(hashes []hashcodec.Hash) error {
	for _, h := range hashes {
		path := s.pathFor(h)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return engineerrors.Wrap(engineerrors.KindResource, err, "remove chunk %s", h)
		}
	}
	return nil
}

// SweepTemp removes orphaned .tmp files left behind by interrupted writes.
func (s *Store) SweepTemp() error {
	shards, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		shardDir := filepath.Join(s.root, shard.Name())
		entries, err := os.ReadDir(shardDir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if len(e.Name()) >= len(tmpPrefix) && e.Name()[:len(tmpPrefix)] == tmpPrefix {
				if err := os.Remove(filepath.Join(shardDir, e.Name())); err != nil && !os.IsNotExist(err) {
					return err
				}
			}
		}
	}
	return nil
}
