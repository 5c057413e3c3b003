package chunkmodel

import (
	"bytes"
	"errors"
)

// ErrInvalidEdit is returned when an Edit's Pos/Count fall outside the
// reference payload or edits are not given in non-overlapping,
// ascending Pos order.
var ErrInvalidEdit = errors.New("chunkmodel: invalid or out-of-order edit")

// Edit is a single ordered edit applied to a reference payload inside a
// Modify delta operation.
type Edit struct {
	Kind EditKind
	Pos  int
	// Base holds the replacement bytes for Substitute and the inserted
	// bytes for Insert; unused for Delete.
	Base []byte
	// Count is the number of reference bytes consumed starting at Pos:
	// for Substitute it generalizes a plain substitution to a ranged one
	// (len(Base) may differ from Count, expressing an indel), for Delete
	// it is the number of bases removed, and it is unused for Insert.
	Count int
}

// EditKind enumerates the three primitive edit operations that make up a
// Modify delta (spec.md §3). The set is closed.
type EditKind int

const (
	EditSubstitute EditKind = iota
	EditInsert
	EditDelete
)

// DeltaOpKind enumerates the four delta operation variants (spec.md §3).
// The set is closed.
type DeltaOpKind int

const (
	// OpUseReference takes a substring of the reference payload verbatim.
	OpUseReference DeltaOpKind = iota
	// OpModify starts from the reference payload and applies an ordered
	// list of edits.
	OpModify
	// OpInsert is a fresh payload with no reference dependency.
	OpInsert
	// OpDelete is a tombstone: the sequence is removed at this version.
	OpDelete
)

// DeltaOp is one operation inside a DeltaChunk, describing how a single
// child sequence (SeqID) is encoded relative to the chunk's parent.
type DeltaOp struct {
	Kind  DeltaOpKind
	SeqID string
	Taxon TaxonID

	// UseReference fields.
	Offset int
	Length int

	// Modify fields.
	Edits []Edit

	// Insert fields.
	Payload []byte
}

func (op DeltaOp) encodeInto(buf *bytes.Buffer) {
	buf.WriteByte(byte(op.Kind))
	writeString(buf, op.SeqID)
	putUint32(buf, uint32(op.Taxon))
	switch op.Kind {
	case OpUseReference:
		putUvarint(buf, uint64(op.Offset))
		putUvarint(buf, uint64(op.Length))
	case OpModify:
		putUvarint(buf, uint64(len(op.Edits)))
		for _, e := range op.Edits {
			buf.WriteByte(byte(e.Kind))
			putUvarint(buf, uint64(e.Pos))
			switch e.Kind {
			case EditSubstitute:
				putUvarint(buf, uint64(e.Count))
				putUvarint(buf, uint64(len(e.Base)))
				buf.Write(e.Base)
			case EditInsert:
				putUvarint(buf, uint64(len(e.Base)))
				buf.Write(e.Base)
			case EditDelete:
				putUvarint(buf, uint64(e.Count))
			}
		}
	case OpInsert:
		putUvarint(buf, uint64(len(op.Payload)))
		buf.Write(op.Payload)
	case OpDelete:
		// no payload
	}
}

// Apply reconstructs the child sequence described by op against a
// resolved reference payload. The reference is always a single
// sequence's payload: a Reducer reference chunk contains exactly one
// sequence, and a chained delta's "reference" is the previously
// reconstructed single child sequence (spec.md §4.5/§4.6).
func (op DeltaOp) Apply(referencePayload []byte) (Sequence, error) {
	out := Sequence{ID: op.SeqID, Taxon: op.Taxon}
	switch op.Kind {
	case OpUseReference:
		if op.Offset < 0 || op.Length < 0 || op.Offset+op.Length > len(referencePayload) {
			return Sequence{}, ErrInvalidEdit
		}
		out.Payload = append([]byte(nil), referencePayload[op.Offset:op.Offset+op.Length]...)
	case OpModify:
		payload, err := applyEdits(referencePayload, op.Edits)
		if err != nil {
			return Sequence{}, err
		}
		out.Payload = payload
	case OpInsert:
		out.Payload = append([]byte(nil), op.Payload...)
	case OpDelete:
		return Sequence{}, ErrNoParent // a tombstone has no payload to reconstruct
	}
	return out, nil
}

// applyEdits copies ref and applies edits, which must be given in
// ascending, non-overlapping Pos order (the order Encode/opFromRecord
// always produces).
func applyEdits(ref []byte, edits []Edit) ([]byte, error) {
	var out bytes.Buffer
	cursor := 0
	for _, e := range edits {
		if e.Pos < cursor || e.Pos > len(ref) {
			return nil, ErrInvalidEdit
		}
		out.Write(ref[cursor:e.Pos])
		switch e.Kind {
		case EditSubstitute:
			if e.Pos+e.Count > len(ref) {
				return nil, ErrInvalidEdit
			}
			out.Write(e.Base)
			cursor = e.Pos + e.Count
		case EditInsert:
			out.Write(e.Base)
			cursor = e.Pos
		case EditDelete:
			if e.Pos+e.Count > len(ref) {
				return nil, ErrInvalidEdit
			}
			cursor = e.Pos + e.Count
		default:
			return nil, ErrInvalidEdit
		}
	}
	out.Write(ref[cursor:])
	return out.Bytes(), nil
}
