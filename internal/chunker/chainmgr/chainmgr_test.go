package chainmgr

import (
	"testing"

	"gastrolog/internal/engineerrors"
	"gastrolog/internal/hashcodec"
)

func h(b byte) hashcodec.Hash {
	return hashcodec.Sum([]byte{b})
}

func TestRegisterFullIsDepthZero(t *testing.T) {
	m := New()
	m.RegisterFull(h(1))
	d, ok := m.DepthOf(h(1))
	if !ok || d != 0 {
		t.Fatalf("expected depth 0, got %d (ok=%v)", d, ok)
	}
}

func TestRegisterDeltaIncrementsDepth(t *testing.T) {
	m := New()
	m.RegisterFull(h(1))
	d, err := m.RegisterDelta(h(2), h(1))
	if err != nil {
		t.Fatalf("RegisterDelta: %v", err)
	}
	if d != 1 {
		t.Fatalf("expected depth 1, got %d", d)
	}
	d2, err := m.RegisterDelta(h(3), h(2))
	if err != nil {
		t.Fatalf("RegisterDelta: %v", err)
	}
	if d2 != 2 {
		t.Fatalf("expected depth 2, got %d", d2)
	}
}

func TestRegisterDeltaUnknownParentFails(t *testing.T) {
	m := New()
	_, err := m.RegisterDelta(h(2), h(1))
	if engineerrors.KindOf(err) != engineerrors.KindCorrupt {
		t.Fatalf("expected Corrupt, got %v", err)
	}
}

func TestExceedsMaxDepth(t *testing.T) {
	m := New()
	m.RegisterFull(h(1))
	m.RegisterDelta(h(2), h(1))
	m.RegisterDelta(h(3), h(2))
	if m.ExceedsMaxDepth(h(3), 3) {
		t.Fatal("a delta on top of a depth-2 chunk should fit within max depth 3")
	}
	if !m.ExceedsMaxDepth(h(3), 2) {
		t.Fatal("a delta on top of a depth-2 chunk should exceed max depth 2")
	}
}

func TestChainToAndRoot(t *testing.T) {
	m := New()
	m.RegisterFull(h(1))
	m.RegisterDelta(h(2), h(1))
	m.RegisterDelta(h(3), h(2))

	chain := m.ChainTo(h(3))
	if len(chain) != 3 || chain[0] != h(1) || chain[2] != h(3) {
		t.Fatalf("unexpected chain: %v", chain)
	}
	root, ok := m.Root(h(3))
	if !ok || root != h(1) {
		t.Fatalf("expected root %v, got %v (ok=%v)", h(1), root, ok)
	}
}

func TestChainToUnknownReturnsNil(t *testing.T) {
	m := New()
	if chain := m.ChainTo(h(99)); chain != nil {
		t.Fatalf("expected nil chain for unknown hash, got %v", chain)
	}
}
