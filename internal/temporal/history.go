package temporal

import (
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/engineerrors"
	"gastrolog/internal/hashcodec"
)

// EventKind classifies one entry in a sequence's observation history.
type EventKind string

const (
	EventAdded    EventKind = "added"
	EventModified EventKind = "modified"
	EventRemoved  EventKind = "removed"
)

// HistoryEvent is one observation of a sequence id across published
// versions (spec.md §4.8 "sequence_history").
type HistoryEvent struct {
	VersionID    string
	SequenceTime time.Time
	Kind         EventKind
	ContentHash  hashcodec.Hash
	Taxon        chunkmodel.TaxonID
}

// versionMember is what RecordObservation stores per sequence id in a
// version's membership snapshot (bucketVersionSeqs), used both to
// detect added/modified/removed transitions and to answer Diff.
type versionMember struct {
	ContentHash hashcodec.Hash
	Taxon       chunkmodel.TaxonID
}

// RecordObservation diffs seqs against the membership of the version
// immediately preceding versionID (by sequence time) and appends
// added/modified/removed events to each affected sequence's history.
// The Repository calls this once per ingested version, after the
// manifest and version record are written; a reduction's version is
// recorded with RecordMembershipSnapshot instead.
func (s *Store) RecordObservation(versionID string, at time.Time, seqs []chunkmodel.Sequence) error {
	members := make(map[string]versionMember, len(seqs))
	hashes := make(map[string]hashcodec.Hash, len(seqs))
	for _, seq := range seqs {
		h := hashcodec.Sum(seq.Normalize().Payload)
		members[seq.ID] = versionMember{ContentHash: h, Taxon: seq.Taxon}
		hashes[seq.ID] = h
	}

	return s.update(func(tx *bbolt.Tx) error {
		prev, err := previousMembership(tx, at)
		if err != nil {
			return err
		}

		for id, member := range members {
			kind := EventAdded
			if old, ok := prev[id]; ok {
				if old.ContentHash.Equal(member.ContentHash) && old.Taxon == member.Taxon {
					continue // unchanged, no event
				}
				kind = EventModified
			}
			if err := appendHistoryEvent(tx, id, HistoryEvent{
				VersionID: versionID, SequenceTime: at, Kind: kind,
				ContentHash: member.ContentHash, Taxon: member.Taxon,
			}); err != nil {
				return err
			}
		}
		for id, old := range prev {
			if _, ok := members[id]; !ok {
				if err := appendHistoryEvent(tx, id, HistoryEvent{
					VersionID: versionID, SequenceTime: at, Kind: EventRemoved,
					ContentHash: old.ContentHash, Taxon: old.Taxon,
				}); err != nil {
					return err
				}
			}
		}

		return putMembership(tx, versionID, members)
	})
}

// RecordMembershipSnapshot stores versionID's sequence-membership
// snapshot directly, without diffing it against a preceding version or
// emitting history events. It is for a version that re-encodes existing
// content rather than observing new content (a reduction pass): the
// membership is identical to its source version's, so no added,
// modified, or removed event is warranted, but Diff and Evolution still
// need a snapshot recorded under the new version id.
func (s *Store) RecordMembershipSnapshot(versionID string, seqs []chunkmodel.Sequence) error {
	members := make(map[string]versionMember, len(seqs))
	for _, seq := range seqs {
		members[seq.ID] = versionMember{ContentHash: hashcodec.Sum(seq.Normalize().Payload), Taxon: seq.Taxon}
	}
	return s.update(func(tx *bbolt.Tx) error {
		return putMembership(tx, versionID, members)
	})
}

// previousMembership returns the membership snapshot of the latest
// version with sequence time strictly before at, or an empty map if
// this is the first version.
func previousMembership(tx *bbolt.Tx, at time.Time) (map[string]versionMember, error) {
	var latestID string
	var latestTime time.Time
	c := tx.Bucket(bucketVersionsByT).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		data := tx.Bucket(bucketVersions).Get(v)
		if data == nil {
			continue
		}
		var rec VersionRecord
		if err := msgpack.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		if !rec.SequenceTime.Before(at) {
			continue
		}
		if latestID == "" || rec.SequenceTime.After(latestTime) {
			latestID, latestTime = rec.VersionID, rec.SequenceTime
		}
	}
	if latestID == "" {
		return map[string]versionMember{}, nil
	}
	return getMembership(tx, latestID)
}

func putMembership(tx *bbolt.Tx, versionID string, members map[string]versionMember) error {
	data, err := msgpack.Marshal(members)
	if err != nil {
		return engineerrors.Wrap(engineerrors.KindUnrecoverable, err, "encode version membership")
	}
	return tx.Bucket(bucketVersionSeqs).Put([]byte(versionID), data)
}

func getMembership(tx *bbolt.Tx, versionID string) (map[string]versionMember, error) {
	data := tx.Bucket(bucketVersionSeqs).Get([]byte(versionID))
	if data == nil {
		return map[string]versionMember{}, nil
	}
	var members map[string]versionMember
	if err := msgpack.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func appendHistoryEvent(tx *bbolt.Tx, sequenceID string, event HistoryEvent) error {
	b := tx.Bucket(bucketSeqHistory)
	key := []byte(sequenceID)
	var events []HistoryEvent
	if data := b.Get(key); data != nil {
		if err := msgpack.Unmarshal(data, &events); err != nil {
			return err
		}
	}
	events = append(events, event)
	data, err := msgpack.Marshal(events)
	if err != nil {
		return engineerrors.Wrap(engineerrors.KindUnrecoverable, err, "encode history events")
	}
	return b.Put(key, data)
}

// Evolution returns sequenceID's observation history within
// [t0, t1], ordered by sequence time.
func (s *Store) Evolution(sequenceID string, t0, t1 time.Time) ([]HistoryEvent, error) {
	var all []HistoryEvent
	err := s.view(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSeqHistory).Get([]byte(sequenceID))
		if data == nil {
			return nil
		}
		return msgpack.Unmarshal(data, &all)
	})
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEvent, 0, len(all))
	for _, e := range all {
		if !e.SequenceTime.Before(t0) && !e.SequenceTime.After(t1) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceTime.Before(out[j].SequenceTime) })
	return out, nil
}

// DiffResult is the set of sequence ids that changed between two
// published versions.
type DiffResult struct {
	Added    []string
	Removed  []string
	Modified []string
}

// Diff compares the membership of versionA and versionB and reports
// which sequence ids were added, removed, or changed content/taxon.
func (s *Store) Diff(versionA, versionB string) (DiffResult, error) {
	var result DiffResult
	err := s.view(func(tx *bbolt.Tx) error {
		a, err := getMembership(tx, versionA)
		if err != nil {
			return err
		}
		b, err := getMembership(tx, versionB)
		if err != nil {
			return err
		}
		for id, bm := range b {
			am, ok := a[id]
			if !ok {
				result.Added = append(result.Added, id)
				continue
			}
			if !am.ContentHash.Equal(bm.ContentHash) || am.Taxon != bm.Taxon {
				result.Modified = append(result.Modified, id)
			}
		}
		for id := range a {
			if _, ok := b[id]; !ok {
				result.Removed = append(result.Removed, id)
			}
		}
		return nil
	})
	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	sort.Strings(result.Modified)
	return result, err
}

// TaxonomyAssignment is one sequence's classification under a given
// taxonomy version.
type TaxonomyAssignment struct {
	SequenceID string
	Taxon      chunkmodel.TaxonID
}

// PutTaxonomyVersion records a named taxonomy snapshot: the full set of
// sequence-to-taxon assignments effective as of that taxonomy version.
func (s *Store) PutTaxonomyVersion(taxonomyVersionID string, assignments []TaxonomyAssignment) error {
	data, err := msgpack.Marshal(assignments)
	if err != nil {
		return engineerrors.Wrap(engineerrors.KindUnrecoverable, err, "encode taxonomy version")
	}
	return s.update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTaxonomyVers).Put([]byte(taxonomyVersionID), data)
	})
}

// ReclassificationEntry is one sequence whose taxon assignment changed
// between two taxonomy versions.
type ReclassificationEntry struct {
	SequenceID string
	OldTaxon   chunkmodel.TaxonID
	NewTaxon   chunkmodel.TaxonID
}

// ApplyTaxonomy compares the assignments of oldTaxonomyVersionID and
// newTaxonomyVersionID and returns every sequence whose taxon changed.
// It does not touch sequence data or content hashes: reclassification
// moves the taxonomy axis only, never the sequence axis (spec.md §4.8).
func (s *Store) ApplyTaxonomy(oldTaxonomyVersionID, newTaxonomyVersionID string) ([]ReclassificationEntry, error) {
	var out []ReclassificationEntry
	err := s.view(func(tx *bbolt.Tx) error {
		oldAssignments, err := getTaxonomyAssignments(tx, oldTaxonomyVersionID)
		if err != nil {
			return err
		}
		newAssignments, err := getTaxonomyAssignments(tx, newTaxonomyVersionID)
		if err != nil {
			return err
		}
		for id, newTaxon := range newAssignments {
			oldTaxon, ok := oldAssignments[id]
			if !ok || oldTaxon != newTaxon {
				out = append(out, ReclassificationEntry{SequenceID: id, OldTaxon: oldTaxon, NewTaxon: newTaxon})
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceID < out[j].SequenceID })
	return out, err
}

// TaxonomyAssignments returns the full sequence-to-taxon map recorded for
// a taxonomy version, or an empty map if taxonomyVersionID is unknown.
func (s *Store) TaxonomyAssignments(taxonomyVersionID string) (map[string]chunkmodel.TaxonID, error) {
	var out map[string]chunkmodel.TaxonID
	err := s.view(func(tx *bbolt.Tx) error {
		var err error
		out, err = getTaxonomyAssignments(tx, taxonomyVersionID)
		return err
	})
	return out, err
}

// TaxonomyHash digests a taxonomy version's assignments in deterministic
// (sequence id) order, so two manifests recording the same taxonomy
// snapshot agree on the hash regardless of map iteration order, and a
// manifest's TaxonomyManifestHash field can be verified independent of
// re-reading the Temporal Index (spec.md §3's bi-temporal binding).
func (s *Store) TaxonomyHash(taxonomyVersionID string) (hashcodec.Hash, error) {
	assignments, err := s.TaxonomyAssignments(taxonomyVersionID)
	if err != nil {
		return hashcodec.Hash{}, err
	}
	ids := make([]string, 0, len(assignments))
	for id := range assignments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var buf []byte
	for _, id := range ids {
		buf = append(buf, []byte(id)...)
		buf = append(buf, 0)
		taxon := assignments[id]
		buf = append(buf, byte(taxon), byte(taxon>>8), byte(taxon>>16), byte(taxon>>24))
	}
	return hashcodec.Sum(buf), nil
}

func getTaxonomyAssignments(tx *bbolt.Tx, taxonomyVersionID string) (map[string]chunkmodel.TaxonID, error) {
	out := make(map[string]chunkmodel.TaxonID)
	data := tx.Bucket(bucketTaxonomyVers).Get([]byte(taxonomyVersionID))
	if data == nil {
		return out, nil
	}
	var assignments []TaxonomyAssignment
	if err := msgpack.Unmarshal(data, &assignments); err != nil {
		return nil, err
	}
	for _, a := range assignments {
		out[a.SequenceID] = a.Taxon
	}
	return out, nil
}
