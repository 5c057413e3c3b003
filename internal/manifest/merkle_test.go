package manifest

import (
	"testing"

	"gastrolog/internal/hashcodec"
)

func leaves(n int) []hashcodec.Hash {
	out := make([]hashcodec.Hash, n)
	for i := range out {
		out[i] = hashcodec.Sum([]byte{byte(i)})
	}
	return out
}

func TestBuildTreeEmptyFails(t *testing.T) {
	if _, err := BuildTree(nil); err != ErrEmptyTree {
		t.Fatalf("expected ErrEmptyTree, got %v", err)
	}
}

func TestBuildTreeSingleLeafRootIsLeafDigest(t *testing.T) {
	ls := leaves(1)
	tree, err := BuildTree(ls)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if tree.Root() != leafDigest(ls[0]) {
		t.Fatal("single-leaf tree root should be the leaf digest")
	}
}

func TestBuildTreeDeterministic(t *testing.T) {
	ls := leaves(5)
	t1, err := BuildTree(ls)
	if err != nil {
		t.Fatalf("BuildTree 1: %v", err)
	}
	t2, err := BuildTree(ls)
	if err != nil {
		t.Fatalf("BuildTree 2: %v", err)
	}
	if t1.Root() != t2.Root() {
		t.Fatal("expected identical root across identical builds")
	}
}

func TestProofVerifiesForEveryLeaf(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 13} {
		ls := leaves(n)
		tree, err := BuildTree(ls)
		if err != nil {
			t.Fatalf("BuildTree(%d): %v", n, err)
		}
		for i, leaf := range ls {
			proof, err := tree.Proof(i)
			if err != nil {
				t.Fatalf("Proof(%d) for n=%d: %v", i, n, err)
			}
			if !VerifyProof(leaf, proof, tree.Root()) {
				t.Fatalf("proof did not verify for n=%d leaf=%d", n, i)
			}
		}
	}
}

func TestProofFailsForWrongLeaf(t *testing.T) {
	ls := leaves(4)
	tree, err := BuildTree(ls)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	if VerifyProof(ls[1], proof, tree.Root()) {
		t.Fatal("expected proof for leaf 0 to not verify against leaf 1")
	}
}

func TestProofIndexOutOfRange(t *testing.T) {
	tree, err := BuildTree(leaves(3))
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if _, err := tree.Proof(3); err != ErrProofIndexOutOfRange {
		t.Fatalf("expected ErrProofIndexOutOfRange, got %v", err)
	}
	if _, err := tree.Proof(-1); err != ErrProofIndexOutOfRange {
		t.Fatalf("expected ErrProofIndexOutOfRange, got %v", err)
	}
}

func TestLeafAndInternalDigestsAreDomainSeparated(t *testing.T) {
	h := hashcodec.Sum([]byte("x"))
	if leafDigest(h) == nodeDigest(h, h) {
		t.Fatal("leaf and internal digests must not collide for the same input")
	}
}
