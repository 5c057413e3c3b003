// Package chainmgr tracks delta-chain ancestry and depth across chunks.
// The Reducer uses it to enforce the max chain depth constraint; the
// Repository hands each reduce run a fresh Manager. ChainTo and Root walk
// a registered chunk back to its full-chunk root. The Verifier and the
// garbage collector do not use it: the Verifier follows each delta
// chunk's own parent hash.
//
// This was a private detail of the reducer in the system this engine is
// modeled after; here it is its own package.
package chainmgr

import (
	"gastrolog/internal/engineerrors"
	"gastrolog/internal/hashcodec"
)

// Manager records, for every chunk registered with it, its parent (if
// any) and its depth in the delta chain rooted at a full chunk. A full
// chunk has depth 0.
type Manager struct {
	parent map[hashcodec.Hash]hashcodec.Hash
	depth  map[hashcodec.Hash]int
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		parent: make(map[hashcodec.Hash]hashcodec.Hash),
		depth:  make(map[hashcodec.Hash]int),
	}
}

// RegisterFull records h as a chain root (depth 0). Idempotent.
func (m *Manager) RegisterFull(h hashcodec.Hash) {
	if _, ok := m.depth[h]; ok {
		return
	}
	m.depth[h] = 0
}

// RegisterDelta records h as a delta chunk referencing parent, and
// returns h's resulting depth. Returns an error if parent has not been
// registered (a delta chunk referencing an unknown chunk is a corrupt
// or out-of-order ingest).
func (m *Manager) RegisterDelta(h, parent hashcodec.Hash) (int, error) {
	pd, ok := m.depth[parent]
	if !ok {
		return 0, engineerrors.New(engineerrors.KindCorrupt, "chain manager: unknown parent %s for chunk %s", parent, h)
	}
	d := pd + 1
	m.parent[h] = parent
	m.depth[h] = d
	return d, nil
}

// DepthOf returns the registered depth of h, or false if h is unknown.
func (m *Manager) DepthOf(h hashcodec.Hash) (int, bool) {
	d, ok := m.depth[h]
	return d, ok
}

// ExceedsMaxDepth reports whether adding a delta on top of parent would
// exceed maxDepth.
func (m *Manager) ExceedsMaxDepth(parent hashcodec.Hash, maxDepth int) bool {
	d, ok := m.depth[parent]
	if !ok {
		return false
	}
	return d+1 > maxDepth
}

// ChainTo returns the chain from the root full chunk down to h
// (inclusive), root first. Returns nil if h is unregistered.
func (m *Manager) ChainTo(h hashcodec.Hash) []hashcodec.Hash {
	if _, ok := m.depth[h]; !ok {
		return nil
	}
	var chain []hashcodec.Hash
	cur := h
	for {
		chain = append([]hashcodec.Hash{cur}, chain...)
		p, ok := m.parent[cur]
		if !ok {
			break
		}
		cur = p
	}
	return chain
}

// Root returns the full-chunk root that h's chain descends from. If h is
// itself a full chunk, Root returns h.
func (m *Manager) Root(h hashcodec.Hash) (hashcodec.Hash, bool) {
	chain := m.ChainTo(h)
	if len(chain) == 0 {
		return hashcodec.Hash{}, false
	}
	return chain[0], true
}
