// Package sequencestore implements the Engine's secondary content-addressed
// store, keyed by the SHA-256 of a canonical per-sequence record, plus an
// id -> sequence-hash index for fast sequence-by-id lookup (spec.md §4.3).
package sequencestore

import (
	"bytes"
	"encoding/binary"
	"sync"

	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/engineerrors"
	"gastrolog/internal/hashcodec"
	"gastrolog/internal/store"
)

// Store deduplicates identical sequences across chunks by content hash,
// and maintains an in-memory id -> hash index for O(1) lookup by
// sequence id. Writes are idempotent; reads return NotFound when absent.
type Store struct {
	blobs *store.Store

	mu   sync.RWMutex
	byID map[string]hashcodec.Hash
}

// New opens a Store backed by the given blob Store.
func New(blobs *store.Store) *Store {
	return &Store{blobs: blobs, byID: make(map[string]hashcodec.Hash)}
}

// canonicalRecord serializes a sequence's id and payload deterministically
// for hashing. Description and taxon are intentionally excluded: two
// sequences with identical id and payload but different taxon/description
// annotations are still the same biological observation and should
// deduplicate to the same blob.
func canonicalRecord(s chunkmodel.Sequence) []byte {
	var buf bytes.Buffer
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s.ID)))
	buf.Write(lenBuf[:])
	buf.WriteString(s.ID)
	buf.Write(s.Payload)
	return buf.Bytes()
}

// Put stores s by content hash (of its canonical id+payload form) and
// updates the id index. Returns the sequence hash.
func (st *Store) Put(s chunkmodel.Sequence) (hashcodec.Hash, error) {
	h, err := st.blobs.Put(canonicalRecord(s), true)
	if err != nil {
		return hashcodec.Hash{}, err
	}
	st.mu.Lock()
	st.byID[s.ID] = h
	st.mu.Unlock()
	return h, nil
}

// Get returns the canonical sequence record for a given content hash.
// The returned Sequence has no Description or Taxon: those are chunk-level
// annotations, not part of the sequence's content identity.
func (st *Store) Get(h hashcodec.Hash) (chunkmodel.Sequence, error) {
	raw, err := st.blobs.Get(h)
	if err != nil {
		return chunkmodel.Sequence{}, err
	}
	if len(raw) < 8 {
		return chunkmodel.Sequence{}, engineerrors.New(engineerrors.KindCorrupt, "sequence record too small")
	}
	idLen := binary.BigEndian.Uint64(raw[:8])
	if uint64(len(raw)-8) < idLen {
		return chunkmodel.Sequence{}, engineerrors.New(engineerrors.KindCorrupt, "sequence record id length out of bounds")
	}
	id := string(raw[8 : 8+idLen])
	payload := raw[8+idLen:]
	return chunkmodel.Sequence{ID: id, Payload: payload}, nil
}

// GetByID returns the most recently Put sequence with the given id, or a
// NotFound error if none has been stored in this process.
func (st *Store) GetByID(id string) (chunkmodel.Sequence, error) {
	st.mu.RLock()
	h, ok := st.byID[id]
	st.mu.RUnlock()
	if !ok {
		return chunkmodel.Sequence{}, engineerrors.New(engineerrors.KindNotFound, "sequence id %s not indexed", id)
	}
	return st.Get(h)
}

// HashOf returns the would-be content hash for s without writing it.
func HashOf(s chunkmodel.Sequence) hashcodec.Hash {
	return hashcodec.Sum(canonicalRecord(s))
}
