// Package verifier checks the authenticity of a published database
// version end to end: that a chunk is really included in a manifest's
// Merkle tree (spec.md §4.9 membership proofs), and that a delta chain
// reconstructs to exactly the bytes its leaf chunk hash commits to
// (spec.md §4.9 reconstruction verification), grounded on the teacher's
// `digester` package's hash-then-compare verification idiom.
package verifier

import (
	"log/slog"
	"sync"

	"gastrolog/internal/callgroup"
	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/engineerrors"
	"gastrolog/internal/hashcodec"
	"gastrolog/internal/logging"
	"gastrolog/internal/manifest"
	"gastrolog/internal/store"

	"golang.org/x/sync/errgroup"
)

// verifyConcurrency bounds how many manifest entries VerifyManifest
// checks against the Store at once.
const verifyConcurrency = 8

// Verifier checks manifest membership and chain reconstruction against a
// chunk Store. It has no mutating operations.
type Verifier struct {
	blobs  *store.Store
	logger *slog.Logger

	inflight callgroup.Group[hashcodec.Hash]
	// results caches resolvePayload's outcome per chunk hash. Since the
	// key is a content address, a cached entry is valid for the
	// Verifier's entire lifetime; it is never invalidated or evicted.
	results sync.Map // hashcodec.Hash -> resolved
}

// New constructs a Verifier reading from blobs.
func New(blobs *store.Store, logger *slog.Logger) *Verifier {
	return &Verifier{blobs: blobs, logger: logging.Default(logger).With("component", "verifier")}
}

// VerifyMembership reports whether leaf, combined with proof, reproduces
// root — i.e. whether leaf is provably one of the entries a manifest
// with that Merkle root committed to. leaf must be the entry's full leaf
// digest (manifest.Entry.LeafHash), not its bare chunk hash: the tree is
// built over entry metadata, not content hashes alone.
func (v *Verifier) VerifyMembership(leaf hashcodec.Hash, proof manifest.Proof, root hashcodec.Hash) bool {
	return manifest.VerifyProof(leaf, proof, root)
}

// VerifyManifest recomputes m's Merkle root from its entries and checks
// every entry's chunk blob is present and hash-valid in the store (a
// cheap, full-coverage integrity sweep; spec.md §4.9).
func (v *Verifier) VerifyManifest(m manifest.Manifest) error {
	root, err := m.MerkleRoot()
	if err != nil {
		return err
	}

	tree, err := m.Tree()
	if err != nil {
		return err
	}

	g := new(errgroup.Group)
	g.SetLimit(verifyConcurrency)
	for i, entry := range m.Entries {
		i, entry := i, entry
		g.Go(func() error {
			proof, err := tree.Proof(i)
			if err != nil {
				return err
			}
			if !v.VerifyMembership(entry.LeafHash(), proof, root) {
				return engineerrors.New(engineerrors.KindCorrupt, "chunk %s fails membership proof against manifest root %s", entry.Hash, root)
			}
			if _, err := v.blobs.Get(entry.Hash); err != nil {
				return engineerrors.Wrap(engineerrors.KindCorrupt, err, "manifest entry %s is unreadable", entry.Hash)
			}
			return nil
		})
	}
	return g.Wait()
}

// Reconstruct resolves chunkHash to a single decoded Sequence: if
// chunkHash names a single-sequence full chunk, its payload is returned
// directly; if it names a delta chunk, the chain is walked back to its
// full-chunk root, reconstructing one hop at a time via DeltaOp.Apply,
// recursively resolving the reference (spec.md §4.5/§4.9).
//
// maxDepth bounds recursion to guard against a cyclic or unbounded
// parent chain in corrupted data; a chain longer than maxDepth is a
// Corrupt error rather than a stack overflow.
func (v *Verifier) Reconstruct(chunkHash hashcodec.Hash, maxDepth int) (chunkmodel.Sequence, error) {
	payload, id, err := v.resolvePayload(chunkHash, maxDepth)
	if err != nil {
		return chunkmodel.Sequence{}, err
	}
	return chunkmodel.Sequence{ID: id, Payload: payload}, nil
}

// resolved is one chunk's resolved chain-reconstruction result, shared
// across every concurrent caller that deduplicates onto the same
// in-flight resolvePayload call.
type resolved struct {
	payload []byte
	id      string
}

// resolvePayload walks chunkHash's delta chain back to its full-chunk
// root, applying each DeltaOp in turn. Concurrent calls for the same
// chunkHash (e.g. several callers verifying or reconstructing the same
// sequence at once) deduplicate onto a single Store read and decode via
// callgroup, rather than each re-walking the chain independently.
func (v *Verifier) resolvePayload(chunkHash hashcodec.Hash, depthBudget int) ([]byte, string, error) {
	if depthBudget < 0 {
		return nil, "", engineerrors.New(engineerrors.KindCorrupt, "chunk %s exceeds the maximum delta chain depth", chunkHash)
	}

	err := <-v.inflight.DoChan(chunkHash, func() error {
		raw, err := v.blobs.Get(chunkHash)
		if err != nil {
			return err
		}

		if fc, fcErr := chunkmodel.DecodeFullChunk(raw); fcErr == nil {
			if len(fc.Sequences) != 1 {
				return engineerrors.New(engineerrors.KindCorrupt, "chain reference chunk %s does not contain exactly one sequence", chunkHash)
			}
			v.results.Store(chunkHash, resolved{payload: fc.Sequences[0].Payload, id: fc.Sequences[0].ID})
			return nil
		}

		dc, dcErr := chunkmodel.DecodeDeltaChunk(raw)
		if dcErr != nil {
			return engineerrors.New(engineerrors.KindCorrupt, "chunk %s decodes as neither a full nor a delta chunk", chunkHash)
		}
		if len(dc.Ops) != 1 {
			return engineerrors.New(engineerrors.KindCorrupt, "chain delta chunk %s does not contain exactly one operation", chunkHash)
		}

		parentPayload, _, err := v.resolvePayload(dc.ParentHash, depthBudget-1)
		if err != nil {
			return err
		}

		seq, err := dc.Ops[0].Apply(parentPayload)
		if err != nil {
			return engineerrors.Wrap(engineerrors.KindCorrupt, err, "apply chain operation for chunk %s", chunkHash)
		}
		v.results.Store(chunkHash, resolved{payload: seq.Payload, id: seq.ID})
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	r, _ := v.results.Load(chunkHash)
	res := r.(resolved)
	return res.payload, res.id, nil
}

// VerifyContent reconstructs chunkHash and checks its content hash
// (SHA-256 of the reconstructed payload) matches expected, the check the
// CLI's `verify` subcommand runs per sequence (spec.md §6).
func (v *Verifier) VerifyContent(chunkHash hashcodec.Hash, maxDepth int, expected hashcodec.Hash) error {
	seq, err := v.Reconstruct(chunkHash, maxDepth)
	if err != nil {
		return err
	}
	got := hashcodec.Sum(seq.Payload)
	if !got.Equal(expected) {
		return engineerrors.New(engineerrors.KindCorrupt, "reconstructed content hash %s does not match expected %s for chunk %s", got, expected, chunkHash)
	}
	return nil
}
