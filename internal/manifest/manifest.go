// Package manifest builds and serializes the Merkle-authenticated list
// of chunks that make up one published database version (spec.md §4.7).
package manifest

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/format"
	"gastrolog/internal/hashcodec"
)

// ManifestVersion is the on-disk format version stamped into the
// format.Header that prefixes every serialized manifest.
const ManifestVersion = 2

// ErrCorrupt is returned when decoding a malformed manifest.
var ErrCorrupt = errors.New("manifest: corrupt manifest")

// ChunkerParams records the Chunker configuration (and derived seed)
// that produced this manifest's partition, so a re-ingest of the same
// input with the same params is provably reproducible.
type ChunkerParams struct {
	MinChunkSize      int
	MaxChunkSize      int
	TargetChunkSize   int
	TaxonomyThreshold int
	Seed              uint64
}

// Entry is one chunk's record within a manifest: its content hash plus
// the metadata needed to fetch, decompress, and interpret it without
// opening the blob.
type Entry struct {
	Hash   hashcodec.Hash
	Meta   chunkmodel.ChunkMeta
	IsRoot bool // true if this entry is a chain root (full chunk)
}

// Manifest is the authenticated chunk list for one database version.
type Manifest struct {
	DatabaseID string
	CreatedAt  time.Time
	Entries    []Entry
	Params     ChunkerParams

	// TaxonomyManifestHash is the digest of the taxonomy snapshot
	// assignments in effect for this version (zero if no taxonomy
	// version was associated with the ingest), binding the manifest to
	// a specific point on the taxonomy time axis (spec.md §3).
	TaxonomyManifestHash hashcodec.Hash
	// ParentManifestHash links this manifest to the one it supersedes
	// (zero for a database's first version), giving the lineage chain
	// spec.md §3 describes independent of the Temporal Index.
	ParentManifestHash hashcodec.Hash
	// Discrepancies lists sequence ids whose taxon did not resolve
	// against TaxonomyManifestHash's assignments: unknown to the
	// taxonomy version, or present but assigned a different taxon than
	// the sequence carried. Unresolved taxa are a soft failure recorded
	// here, not a hard ingest error (spec.md §3).
	Discrepancies []string

	// ReductionApplied records whether the Reducer ran over this
	// version's chunks, promoting the manifest from a plain ingest
	// manifest to a reduction manifest (spec.md §4.7).
	ReductionApplied bool
	// ReferenceCount and DeltaCount are diagnostic counts populated when
	// ReductionApplied is true.
	ReferenceCount int
	DeltaCount     int
	// CompressionRatio is the reduction's stored-bytes saving, populated
	// when ReductionApplied is true (spec.md §3's reduction-manifest
	// statistics).
	CompressionRatio float64
}

// merkleLeaves hashes the canonical serialization of each entry's
// metadata (chunk hash plus compressed size, taxon set, creation time,
// and validity interval) rather than the bare chunk hash, so tampering
// any ChunkMeta field independent of chunk content still flips the
// Merkle root (spec.md §3).
func merkleLeaves(entries []Entry) []hashcodec.Hash {
	leaves := make([]hashcodec.Hash, len(entries))
	for i, e := range entries {
		var buf bytes.Buffer
		buf.Write(e.Hash.Bytes())
		writeChunkMeta(&buf, e.Meta)
		writeBool(&buf, e.IsRoot)
		leaves[i] = hashcodec.Sum(buf.Bytes())
	}
	return leaves
}

// MerkleRoot builds the manifest's Merkle tree over its entries'
// metadata digests, in order, and returns the root.
func (m Manifest) MerkleRoot() (hashcodec.Hash, error) {
	tree, err := BuildTree(merkleLeaves(m.Entries))
	if err != nil {
		return hashcodec.Hash{}, err
	}
	return tree.Root(), nil
}

// Tree builds and returns the manifest's full Merkle tree, for proof
// generation. A Proof produced from this tree verifies against an
// entry's metadata digest (see Entry.LeafHash), not its bare chunk hash.
func (m Manifest) Tree() (Tree, error) {
	return BuildTree(merkleLeaves(m.Entries))
}

// LeafHash returns the Merkle leaf digest this entry contributes to its
// manifest's tree: the hash of its chunk hash plus its full metadata.
func (e Entry) LeafHash() hashcodec.Hash {
	var buf bytes.Buffer
	buf.Write(e.Hash.Bytes())
	writeChunkMeta(&buf, e.Meta)
	writeBool(&buf, e.IsRoot)
	return hashcodec.Sum(buf.Bytes())
}

// Encode serializes the manifest to its canonical binary form, prefixed
// by a format.Header so it is self-describing on disk (spec.md §4.7).
func (m Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer

	hdr := format.Header{Type: format.TypeManifest, Version: ManifestVersion, Flags: flagsOf(m)}
	hdrBuf := hdr.Encode()
	buf.Write(hdrBuf[:])

	writeString(&buf, m.DatabaseID)
	writeTime(&buf, m.CreatedAt)

	putUvarint(&buf, uint64(len(m.Entries)))
	for _, e := range m.Entries {
		buf.Write(e.Hash.Bytes())
		writeChunkMeta(&buf, e.Meta)
		writeBool(&buf, e.IsRoot)
	}

	putUvarint(&buf, uint64(m.Params.MinChunkSize))
	putUvarint(&buf, uint64(m.Params.MaxChunkSize))
	putUvarint(&buf, uint64(m.Params.TargetChunkSize))
	putUvarint(&buf, uint64(m.Params.TaxonomyThreshold))
	var seedBuf [8]byte
	binary.BigEndian.PutUint64(seedBuf[:], m.Params.Seed)
	buf.Write(seedBuf[:])

	buf.Write(m.TaxonomyManifestHash.Bytes())
	buf.Write(m.ParentManifestHash.Bytes())
	putUvarint(&buf, uint64(len(m.Discrepancies)))
	for _, id := range m.Discrepancies {
		writeString(&buf, id)
	}

	if m.ReductionApplied {
		putUvarint(&buf, uint64(m.ReferenceCount))
		putUvarint(&buf, uint64(m.DeltaCount))
		writeFloat64(&buf, m.CompressionRatio)
	}

	return buf.Bytes(), nil
}

func flagsOf(m Manifest) byte {
	if m.ReductionApplied {
		return 0x01
	}
	return 0x00
}

// Decode parses a manifest previously produced by Encode.
func Decode(data []byte) (Manifest, error) {
	hdr, err := format.DecodeAndValidate(data, format.TypeManifest, ManifestVersion)
	if err != nil {
		return Manifest{}, errors.Join(ErrCorrupt, err)
	}
	r := &reader{buf: data[format.HeaderSize:]}

	m := Manifest{ReductionApplied: hdr.Flags&0x01 != 0}
	m.DatabaseID, err = r.readString()
	if err != nil {
		return Manifest{}, err
	}
	m.CreatedAt, err = r.readTime()
	if err != nil {
		return Manifest{}, err
	}

	n, err := r.readUvarint()
	if err != nil {
		return Manifest{}, err
	}
	m.Entries = make([]Entry, n)
	for i := range m.Entries {
		h, err := r.readHash()
		if err != nil {
			return Manifest{}, err
		}
		meta, err := r.readChunkMeta()
		if err != nil {
			return Manifest{}, err
		}
		isRoot, err := r.readBool()
		if err != nil {
			return Manifest{}, err
		}
		m.Entries[i] = Entry{Hash: h, Meta: meta, IsRoot: isRoot}
	}

	minSize, err := r.readUvarint()
	if err != nil {
		return Manifest{}, err
	}
	maxSize, err := r.readUvarint()
	if err != nil {
		return Manifest{}, err
	}
	targetSize, err := r.readUvarint()
	if err != nil {
		return Manifest{}, err
	}
	taxThreshold, err := r.readUvarint()
	if err != nil {
		return Manifest{}, err
	}
	seed, err := r.readUint64()
	if err != nil {
		return Manifest{}, err
	}
	m.Params = ChunkerParams{
		MinChunkSize:      int(minSize),
		MaxChunkSize:      int(maxSize),
		TargetChunkSize:   int(targetSize),
		TaxonomyThreshold: int(taxThreshold),
		Seed:              seed,
	}

	m.TaxonomyManifestHash, err = r.readHash()
	if err != nil {
		return Manifest{}, err
	}
	m.ParentManifestHash, err = r.readHash()
	if err != nil {
		return Manifest{}, err
	}
	discCount, err := r.readUvarint()
	if err != nil {
		return Manifest{}, err
	}
	m.Discrepancies = make([]string, discCount)
	for i := range m.Discrepancies {
		m.Discrepancies[i], err = r.readString()
		if err != nil {
			return Manifest{}, err
		}
	}

	if m.ReductionApplied {
		refs, err := r.readUvarint()
		if err != nil {
			return Manifest{}, err
		}
		deltas, err := r.readUvarint()
		if err != nil {
			return Manifest{}, err
		}
		m.ReferenceCount = int(refs)
		m.DeltaCount = int(deltas)
		m.CompressionRatio, err = r.readFloat64()
		if err != nil {
			return Manifest{}, err
		}
	}

	return m, nil
}

// sidecarView is the diagnostic JSON projection of a manifest; it is
// never parsed back into a Manifest, only written for operators to
// inspect with a text editor (spec.md §4.7).
type sidecarView struct {
	DatabaseID           string    `json:"database_id"`
	CreatedAt            time.Time `json:"created_at"`
	ChunkCount           int       `json:"chunk_count"`
	ReductionApplied     bool      `json:"reduction_applied"`
	ReferenceCount       int       `json:"reference_count,omitempty"`
	DeltaCount           int       `json:"delta_count,omitempty"`
	CompressionRatio     float64   `json:"compression_ratio,omitempty"`
	MerkleRoot           string    `json:"merkle_root"`
	TaxonomyManifestHash string    `json:"taxonomy_manifest_hash,omitempty"`
	ParentManifestHash   string    `json:"parent_manifest_hash,omitempty"`
	Discrepancies        []string  `json:"discrepancies,omitempty"`
}

// EncodeJSONSidecar renders a diagnostic JSON view of the manifest.
// This is never the authoritative on-disk form; Encode/Decode are.
func (m Manifest) EncodeJSONSidecar() ([]byte, error) {
	root, err := m.MerkleRoot()
	if err != nil {
		return nil, err
	}
	view := sidecarView{
		DatabaseID:       m.DatabaseID,
		CreatedAt:        m.CreatedAt,
		ChunkCount:       len(m.Entries),
		ReductionApplied: m.ReductionApplied,
		ReferenceCount:   m.ReferenceCount,
		DeltaCount:       m.DeltaCount,
		CompressionRatio: m.CompressionRatio,
		MerkleRoot:       root.String(),
		Discrepancies:    m.Discrepancies,
	}
	if !m.TaxonomyManifestHash.IsZero() {
		view.TaxonomyManifestHash = m.TaxonomyManifestHash.String()
	}
	if !m.ParentManifestHash.IsZero() {
		view.ParentManifestHash = m.ParentManifestHash.String()
	}
	return json.MarshalIndent(view, "", "  ")
}
