package temporal

import (
	"errors"
	"log/slog"
	"sync"

	"go.etcd.io/bbolt"

	"gastrolog/internal/engineerrors"
	"gastrolog/internal/logging"
)

// Bucket names are the index's "column families" (spec.md §4.8).
var (
	bucketVersions     = []byte("versions")
	bucketVersionsByT  = []byte("versions_by_time") // secondary index: time-ordered version lookup
	bucketAliases      = []byte("aliases")
	bucketSeqHistory   = []byte("sequence_history")
	bucketVersionSeqs  = []byte("version_sequences") // reverse index for Diff/GC
	bucketTaxonomyVers = []byte("taxonomy_versions")
	bucketAudit        = []byte("audit")
)

var allBuckets = [][]byte{
	bucketVersions, bucketVersionsByT, bucketAliases, bucketSeqHistory,
	bucketVersionSeqs, bucketTaxonomyVers, bucketAudit,
}

// auditRingCap bounds the alias-resolution audit log (spec.md §4.8:
// "a small audit ring").
const auditRingCap = 256

// Store is the bi-temporal version index. Writes are serialized by
// writeMu; reads use bbolt's lock-free MVCC read transactions directly
// (spec.md §4.8's "single writer lock, lock-free readers").
type Store struct {
	db *bbolt.DB

	writeMu sync.Mutex
	logger  *slog.Logger
}

// Open opens (and initializes, if absent) a temporal index at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, engineerrors.Wrap(engineerrors.KindResource, err, "open temporal index %s", path)
	}
	s := &Store{db: db, logger: logging.Default(logger).With("component", "temporal")}
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, engineerrors.Wrap(engineerrors.KindResource, err, "initialize temporal index buckets")
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// update runs fn inside a single serialized write transaction.
func (s *Store) update(fn func(tx *bbolt.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.db.Update(fn); err != nil {
		return engineerrors.Wrap(engineerrors.KindResource, err, "temporal index write")
	}
	return nil
}

// view runs fn inside a read-only transaction. Concurrent views never
// block the writer or each other (bbolt MVCC snapshots). An
// engineerrors.Error returned by fn (such as ErrAliasNotFound) is passed
// through unchanged; any other failure is wrapped as KindResource.
func (s *Store) view(fn func(tx *bbolt.Tx) error) error {
	if err := s.db.View(fn); err != nil {
		var classified *engineerrors.Error
		if errors.As(err, &classified) {
			return err
		}
		return engineerrors.Wrap(engineerrors.KindResource, err, "temporal index read")
	}
	return nil
}
