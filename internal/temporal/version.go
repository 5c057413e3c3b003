package temporal

import (
	"encoding/binary"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"gastrolog/internal/engineerrors"
	"gastrolog/internal/hashcodec"
)

// VersionRecord summarizes one published manifest: its id, the manifest
// blob's content hash, its bi-temporal coordinate, and a short
// human-readable summary (spec.md §4.8 "versions" column family).
type VersionRecord struct {
	VersionID    string
	ManifestHash hashcodec.Hash
	SequenceTime time.Time
	TaxonomyTime time.Time
	Summary      string
}

// ErrVersionNotFound is returned when a version id is not present.
var ErrVersionNotFound = engineerrors.New(engineerrors.KindNotFound, "version not found")

func timeKey(t time.Time, versionID string) []byte {
	key := make([]byte, 8+len(versionID))
	binary.BigEndian.PutUint64(key[:8], uint64(t.UTC().UnixNano()))
	copy(key[8:], versionID)
	return key
}

// PutVersion records a new published version. Version ids are expected
// to be unique (the Repository mints them, typically a UUIDv7);
// re-putting the same id overwrites its record.
func (s *Store) PutVersion(rec VersionRecord) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return engineerrors.Wrap(engineerrors.KindUnrecoverable, err, "encode version record")
	}
	return s.update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketVersions).Put([]byte(rec.VersionID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketVersionsByT).Put(timeKey(rec.SequenceTime, rec.VersionID), []byte(rec.VersionID))
	})
}

// GetVersion returns the record for versionID.
func (s *Store) GetVersion(versionID string) (VersionRecord, error) {
	var rec VersionRecord
	err := s.view(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketVersions).Get([]byte(versionID))
		if data == nil {
			return ErrVersionNotFound
		}
		return msgpack.Unmarshal(data, &rec)
	})
	if err != nil {
		return VersionRecord{}, err
	}
	return rec, nil
}

// ListVersions returns every version record, ordered by ascending
// sequence time.
func (s *Store) ListVersions() ([]VersionRecord, error) {
	var ids []string
	err := s.view(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketVersionsByT).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			ids = append(ids, string(v))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	recs := make([]VersionRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetVersion(id)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// QueryResult is the outcome of QueryAt: the resolved version plus a
// flag indicating whether the requested taxonomy coordinate was not
// materialized exactly, meaning a retroactive reclassification would be
// needed to view this snapshot under that taxonomy.
type QueryResult struct {
	Version             VersionRecord
	ApproximateTaxonomy bool
}

// ErrNoSnapshot is returned when no version exists at or before the
// requested sequence time.
var ErrNoSnapshot = engineerrors.New(engineerrors.KindNotFound, "no snapshot at or before the requested coordinate")

// QueryAt resolves a bi-temporal coordinate to the latest version whose
// SequenceTime is <= coord.SequenceTime. If that version's TaxonomyTime
// does not match coord.TaxonomyTime, ApproximateTaxonomy is set: the
// caller (Repository) may then invoke the retroactive reclassification
// path (spec.md §4.8).
func (s *Store) QueryAt(coord Coord) (QueryResult, error) {
	var best *VersionRecord
	err := s.view(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketVersionsByT).Cursor()
		upper := make([]byte, 8)
		binary.BigEndian.PutUint64(upper, uint64(coord.SequenceTime.UTC().UnixNano()))

		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(k) < 8 {
				continue
			}
			if string(k[:8]) > string(upper) {
				break
			}
			data := tx.Bucket(bucketVersions).Get(v)
			if data == nil {
				continue
			}
			var rec VersionRecord
			if err := msgpack.Unmarshal(data, &rec); err != nil {
				return err
			}
			if best == nil || rec.SequenceTime.After(best.SequenceTime) {
				r := rec
				best = &r
			}
		}
		return nil
	})
	if err != nil {
		return QueryResult{}, err
	}
	if best == nil {
		return QueryResult{}, ErrNoSnapshot
	}

	approx := !coord.TaxonomyTime.IsZero() && !coord.TaxonomyTime.Equal(best.TaxonomyTime)
	return QueryResult{Version: *best, ApproximateTaxonomy: approx}, nil
}
