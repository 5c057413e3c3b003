package chunkmodel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"slices"
	"time"

	"gastrolog/internal/hashcodec"
)

// ErrNoParent is returned when a DeltaChunk is built without a parent hash.
var ErrNoParent = errors.New("chunkmodel: delta chunk requires a non-zero parent hash")

// ChunkMeta carries the metadata persisted alongside every chunk, per
// spec.md §3: uncompressed/compressed size, compression kind, sequence
// count, taxon set, creation time, and validity interval.
type ChunkMeta struct {
	Hash             hashcodec.Hash
	UncompressedSize int
	CompressedSize   int // 0 when CompressionKind == KindNone
	CompressionKind  hashcodec.Kind
	SequenceCount    int
	Taxa             []TaxonID
	CreatedAt        time.Time
	ValidFrom        time.Time
	ValidUntil       time.Time // zero means "still valid"
	IsDelta          bool
	ParentHash       hashcodec.Hash // zero for full chunks
}

// FullChunk is an immutable, content-addressed set of whole sequences plus
// the taxon ids they cover.
type FullChunk struct {
	Sequences []Sequence
	Taxa      []TaxonID
}

// DeltaChunk is an immutable, content-addressed list of delta operations,
// all referencing exactly one parent chunk hash.
type DeltaChunk struct {
	ParentHash hashcodec.Hash
	Ops        []DeltaOp
}

// NewFullChunk builds a FullChunk and derives its taxon set from the
// sequences, deduplicated and sorted for canonical serialization.
func NewFullChunk(sequences []Sequence) FullChunk {
	taxSet := make(map[TaxonID]struct{})
	for _, s := range sequences {
		if s.Taxon != NoTaxon {
			taxSet[s.Taxon] = struct{}{}
		}
	}
	taxa := make([]TaxonID, 0, len(taxSet))
	for t := range taxSet {
		taxa = append(taxa, t)
	}
	slices.Sort(taxa)
	return FullChunk{Sequences: sequences, Taxa: taxa}
}

// CanonicalBytes returns the canonical serialization of a FullChunk. The
// chunk's identity hash is SHA-256 of this byte form; it depends only on
// logical content, never on the compression choice made when it is
// persisted (spec.md §3).
func (c FullChunk) CanonicalBytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte(chunkTagFull)
	putUvarint(&buf, uint64(len(c.Sequences)))
	for _, s := range c.Sequences {
		writeString(&buf, s.ID)
		writeString(&buf, s.Description)
		putUvarint(&buf, uint64(len(s.Payload)))
		buf.Write(s.Payload)
		putUint32(&buf, uint32(s.Taxon))
	}
	putUvarint(&buf, uint64(len(c.Taxa)))
	for _, t := range c.Taxa {
		putUint32(&buf, uint32(t))
	}
	return buf.Bytes()
}

// Hash returns the content hash of the chunk: SHA-256 of CanonicalBytes.
func (c FullChunk) Hash() hashcodec.Hash {
	return hashcodec.Sum(c.CanonicalBytes())
}

// CanonicalBytes returns the canonical serialization of a DeltaChunk.
func (c DeltaChunk) CanonicalBytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte(chunkTagDelta)
	buf.Write(c.ParentHash[:])
	putUvarint(&buf, uint64(len(c.Ops)))
	for _, op := range c.Ops {
		op.encodeInto(&buf)
	}
	return buf.Bytes()
}

// Hash returns the content hash of the chunk: SHA-256 of CanonicalBytes.
func (c DeltaChunk) Hash() hashcodec.Hash {
	return hashcodec.Sum(c.CanonicalBytes())
}

// Validate checks that a DeltaChunk has a non-zero parent hash, per
// spec.md §3: a delta chunk references exactly one parent chunk hash.
func (c DeltaChunk) Validate() error {
	if c.ParentHash.IsZero() {
		return ErrNoParent
	}
	return nil
}

const (
	chunkTagFull  byte = 'F'
	chunkTagDelta byte = 'D'
)

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeString(buf *bytes.Buffer, s string) {
	putUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}
