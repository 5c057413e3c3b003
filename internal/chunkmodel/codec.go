package chunkmodel

import (
	"encoding/binary"
	"errors"

	"gastrolog/internal/hashcodec"
)

// ErrCorruptChunk is returned when decoding malformed chunk bytes, e.g. a
// truncated buffer or an unrecognized tag.
var ErrCorruptChunk = errors.New("chunkmodel: corrupt chunk bytes")

// reader is a forward-only cursor over a byte buffer, mirroring the
// decode-side helpers in internal/manifest/codec.go.
type reader struct {
	buf []byte
}

func (r *reader) byte() (byte, error) {
	if len(r.buf) < 1 {
		return 0, ErrCorruptChunk
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b, nil
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		return 0, ErrCorruptChunk
	}
	r.buf = r.buf[n:]
	return v, nil
}

func (r *reader) uint32() (uint32, error) {
	if len(r.buf) < 4 {
		return 0, ErrCorruptChunk
	}
	v := binary.BigEndian.Uint32(r.buf[:4])
	r.buf = r.buf[4:]
	return v, nil
}

func (r *reader) bytes(n uint64) ([]byte, error) {
	if uint64(len(r.buf)) < n {
		return nil, ErrCorruptChunk
	}
	out := make([]byte, n)
	copy(out, r.buf[:n])
	r.buf = r.buf[n:]
	return out, nil
}

func (r *reader) string() (string, error) {
	n, err := r.uvarint()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) hash() (hashcodec.Hash, error) {
	b, err := r.bytes(hashcodec.Size)
	if err != nil {
		return hashcodec.Hash{}, err
	}
	return hashcodec.FromBytes(b)
}

// DecodeFullChunk parses bytes previously produced by
// FullChunk.CanonicalBytes.
func DecodeFullChunk(data []byte) (FullChunk, error) {
	r := &reader{buf: data}
	tag, err := r.byte()
	if err != nil {
		return FullChunk{}, err
	}
	if tag != chunkTagFull {
		return FullChunk{}, ErrCorruptChunk
	}

	n, err := r.uvarint()
	if err != nil {
		return FullChunk{}, err
	}
	sequences := make([]Sequence, n)
	for i := range sequences {
		id, err := r.string()
		if err != nil {
			return FullChunk{}, err
		}
		desc, err := r.string()
		if err != nil {
			return FullChunk{}, err
		}
		plen, err := r.uvarint()
		if err != nil {
			return FullChunk{}, err
		}
		payload, err := r.bytes(plen)
		if err != nil {
			return FullChunk{}, err
		}
		taxon, err := r.uint32()
		if err != nil {
			return FullChunk{}, err
		}
		sequences[i] = Sequence{ID: id, Description: desc, Payload: payload, Taxon: TaxonID(taxon)}
	}

	taxCount, err := r.uvarint()
	if err != nil {
		return FullChunk{}, err
	}
	taxa := make([]TaxonID, taxCount)
	for i := range taxa {
		t, err := r.uint32()
		if err != nil {
			return FullChunk{}, err
		}
		taxa[i] = TaxonID(t)
	}

	return FullChunk{Sequences: sequences, Taxa: taxa}, nil
}

// DecodeDeltaChunk parses bytes previously produced by
// DeltaChunk.CanonicalBytes.
func DecodeDeltaChunk(data []byte) (DeltaChunk, error) {
	r := &reader{buf: data}
	tag, err := r.byte()
	if err != nil {
		return DeltaChunk{}, err
	}
	if tag != chunkTagDelta {
		return DeltaChunk{}, ErrCorruptChunk
	}

	parent, err := r.hash()
	if err != nil {
		return DeltaChunk{}, err
	}

	n, err := r.uvarint()
	if err != nil {
		return DeltaChunk{}, err
	}
	ops := make([]DeltaOp, n)
	for i := range ops {
		op, err := decodeDeltaOp(r)
		if err != nil {
			return DeltaChunk{}, err
		}
		ops[i] = op
	}

	return DeltaChunk{ParentHash: parent, Ops: ops}, nil
}

func decodeDeltaOp(r *reader) (DeltaOp, error) {
	kindByte, err := r.byte()
	if err != nil {
		return DeltaOp{}, err
	}
	seqID, err := r.string()
	if err != nil {
		return DeltaOp{}, err
	}
	taxon, err := r.uint32()
	if err != nil {
		return DeltaOp{}, err
	}
	op := DeltaOp{Kind: DeltaOpKind(kindByte), SeqID: seqID, Taxon: TaxonID(taxon)}

	switch op.Kind {
	case OpUseReference:
		offset, err := r.uvarint()
		if err != nil {
			return DeltaOp{}, err
		}
		length, err := r.uvarint()
		if err != nil {
			return DeltaOp{}, err
		}
		op.Offset, op.Length = int(offset), int(length)
	case OpModify:
		count, err := r.uvarint()
		if err != nil {
			return DeltaOp{}, err
		}
		edits := make([]Edit, count)
		for i := range edits {
			e, err := decodeEdit(r)
			if err != nil {
				return DeltaOp{}, err
			}
			edits[i] = e
		}
		op.Edits = edits
	case OpInsert:
		plen, err := r.uvarint()
		if err != nil {
			return DeltaOp{}, err
		}
		payload, err := r.bytes(plen)
		if err != nil {
			return DeltaOp{}, err
		}
		op.Payload = payload
	case OpDelete:
		// no payload
	default:
		return DeltaOp{}, ErrCorruptChunk
	}
	return op, nil
}

func decodeEdit(r *reader) (Edit, error) {
	kindByte, err := r.byte()
	if err != nil {
		return Edit{}, err
	}
	pos, err := r.uvarint()
	if err != nil {
		return Edit{}, err
	}
	e := Edit{Kind: EditKind(kindByte), Pos: int(pos)}

	switch e.Kind {
	case EditSubstitute:
		count, err := r.uvarint()
		if err != nil {
			return Edit{}, err
		}
		blen, err := r.uvarint()
		if err != nil {
			return Edit{}, err
		}
		base, err := r.bytes(blen)
		if err != nil {
			return Edit{}, err
		}
		e.Count, e.Base = int(count), base
	case EditInsert:
		blen, err := r.uvarint()
		if err != nil {
			return Edit{}, err
		}
		base, err := r.bytes(blen)
		if err != nil {
			return Edit{}, err
		}
		e.Base = base
	case EditDelete:
		count, err := r.uvarint()
		if err != nil {
			return Edit{}, err
		}
		e.Count = int(count)
	default:
		return Edit{}, ErrCorruptChunk
	}
	return e, nil
}
