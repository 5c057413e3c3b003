package manifest

import (
	"errors"

	"gastrolog/internal/hashcodec"
)

// Domain separation tags prevent a leaf digest from ever colliding with
// an internal node digest (the classic second-preimage weakness of a
// naive Merkle tree): every hash input is prefixed with a tag byte
// identifying which kind of node produced it.
const (
	domainLeaf     byte = 0x00
	domainInternal byte = 0x01
)

// ErrEmptyTree is returned when building a tree from zero leaves.
var ErrEmptyTree = errors.New("manifest: cannot build a merkle tree with no leaves")

// ErrProofIndexOutOfRange is returned when requesting a proof for an
// index outside the tree's leaf count.
var ErrProofIndexOutOfRange = errors.New("manifest: proof index out of range")

// Tree is a binary Merkle tree over an ordered list of leaf hashes. On a
// level with an odd node count the last node is paired with itself
// rather than promoted unpaired.
type Tree struct {
	levels [][]hashcodec.Hash // levels[0] = leaf digests, levels[last] = root
}

func leafDigest(h hashcodec.Hash) hashcodec.Hash {
	return hashcodec.Sum(append([]byte{domainLeaf}, h.Bytes()...))
}

func nodeDigest(left, right hashcodec.Hash) hashcodec.Hash {
	buf := make([]byte, 0, 1+2*hashcodec.Size)
	buf = append(buf, domainInternal)
	buf = append(buf, left.Bytes()...)
	buf = append(buf, right.Bytes()...)
	return hashcodec.Sum(buf)
}

// BuildTree constructs a Merkle tree over leaves, in order. A Manifest
// passes its entries' metadata digests (see Entry.LeafHash).
func BuildTree(leaves []hashcodec.Hash) (Tree, error) {
	if len(leaves) == 0 {
		return Tree{}, ErrEmptyTree
	}

	level := make([]hashcodec.Hash, len(leaves))
	for i, h := range leaves {
		level[i] = leafDigest(h)
	}

	levels := [][]hashcodec.Hash{level}
	for len(level) > 1 {
		next := make([]hashcodec.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeDigest(level[i], level[i+1]))
			} else {
				// Odd level: duplicate the last node rather than
				// promoting it unpaired.
				next = append(next, nodeDigest(level[i], level[i]))
			}
		}
		levels = append(levels, next)
		level = next
	}

	return Tree{levels: levels}, nil
}

// Root returns the tree's root digest.
func (t Tree) Root() hashcodec.Hash {
	last := t.levels[len(t.levels)-1]
	return last[0]
}

// LeafCount returns the number of leaves the tree was built from.
func (t Tree) LeafCount() int {
	return len(t.levels[0])
}

// Sibling is one step of an inclusion proof: the hash to combine with
// the running digest, and which side it sits on.
type Sibling struct {
	Hash   hashcodec.Hash
	IsLeft bool // true if Hash is the left operand at this level
}

// Proof is an inclusion proof for the leaf at Index.
type Proof struct {
	Index    int
	Siblings []Sibling
}

// Proof returns an inclusion proof for the leaf at index.
func (t Tree) Proof(index int) (Proof, error) {
	if index < 0 || index >= t.LeafCount() {
		return Proof{}, ErrProofIndexOutOfRange
	}

	var siblings []Sibling
	idx := index
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		isRightChild := idx%2 == 1
		var siblingIdx int
		if isRightChild {
			siblingIdx = idx - 1
		} else if idx+1 < len(nodes) {
			siblingIdx = idx + 1
		} else {
			siblingIdx = idx // odd level: duplicated self
		}
		siblings = append(siblings, Sibling{Hash: nodes[siblingIdx], IsLeft: isRightChild})
		idx /= 2
	}
	return Proof{Index: index, Siblings: siblings}, nil
}

// VerifyProof reports whether leaf, combined with proof's sibling path,
// reproduces root.
func VerifyProof(leaf hashcodec.Hash, proof Proof, root hashcodec.Hash) bool {
	cur := leafDigest(leaf)
	for _, s := range proof.Siblings {
		if s.IsLeft {
			cur = nodeDigest(s.Hash, cur)
		} else {
			cur = nodeDigest(cur, s.Hash)
		}
	}
	return cur.Equal(root)
}
