// Package chunkmodel defines the Engine's core data model: sequences,
// chunks (full and delta), delta operations, and their canonical
// serialization. It has no I/O and no dependency on the Store, Chunker, or
// Reducer — those packages build on top of it.
package chunkmodel

import (
	"errors"
	"strings"
)

// TaxonID identifies a node in a taxonomy version. Zero means "unknown".
type TaxonID uint32

// NoTaxon is the sentinel value for "taxon not known".
const NoTaxon TaxonID = 0

var (
	// ErrEmptyID is returned when a Sequence's id is empty.
	ErrEmptyID = errors.New("chunkmodel: sequence id must not be empty")
)

// Sequence is a single biological record: an id, an optional free-text
// description, an upper-cased payload over the biological alphabet, and an
// optional taxon id.
type Sequence struct {
	ID          string
	Description string
	Payload     []byte
	Taxon       TaxonID
}

// Validate checks the invariants spec.md §3 places on a Sequence in
// isolation (uniqueness within a manifest is checked by the caller, since
// it requires seeing the whole set).
func (s Sequence) Validate() error {
	if s.ID == "" {
		return ErrEmptyID
	}
	return nil
}

// Normalize returns a copy of s with Payload upper-cased, per spec.md §3's
// invariant that payload is always upper-cased.
func (s Sequence) Normalize() Sequence {
	out := s
	out.Payload = []byte(strings.ToUpper(string(s.Payload)))
	return out
}

// Len returns the length of the sequence payload in bases/residues.
func (s Sequence) Len() int {
	return len(s.Payload)
}
