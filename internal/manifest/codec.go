package manifest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/hashcodec"
)

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeString(buf *bytes.Buffer, s string) {
	putUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func writeTime(buf *bytes.Buffer, t time.Time) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(t.UTC().UnixNano()))
	buf.Write(tmp[:])
}

func writeFloat64(buf *bytes.Buffer, f float64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(f))
	buf.Write(tmp[:])
}

func (r *reader) readFloat64() (float64, error) {
	v, err := r.readUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func writeChunkMeta(buf *bytes.Buffer, m chunkmodel.ChunkMeta) {
	buf.Write(m.Hash.Bytes())
	putUvarint(buf, uint64(m.UncompressedSize))
	putUvarint(buf, uint64(m.CompressedSize))
	buf.WriteByte(byte(m.CompressionKind))
	putUvarint(buf, uint64(m.SequenceCount))
	putUvarint(buf, uint64(len(m.Taxa)))
	for _, t := range m.Taxa {
		var tb [4]byte
		binary.BigEndian.PutUint32(tb[:], uint32(t))
		buf.Write(tb[:])
	}
	writeTime(buf, m.CreatedAt)
	writeTime(buf, m.ValidFrom)
	writeTime(buf, m.ValidUntil)
	writeBool(buf, m.IsDelta)
	buf.Write(m.ParentHash.Bytes())
}

// reader is a minimal forward-only binary cursor over a manifest's
// decoded body, mirroring the layout codecs used elsewhere in the
// Engine's chunk and delta serialization.
type reader struct {
	buf []byte
}

var errShortBuffer = errors.New("manifest: unexpected end of buffer")

func (r *reader) readUvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		return 0, errShortBuffer
	}
	r.buf = r.buf[n:]
	return v, nil
}

func (r *reader) readUint64() (uint64, error) {
	if len(r.buf) < 8 {
		return 0, errShortBuffer
	}
	v := binary.BigEndian.Uint64(r.buf[:8])
	r.buf = r.buf[8:]
	return v, nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, errShortBuffer
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b, nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readUvarint()
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) readBool() (bool, error) {
	b, err := r.readBytes(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (r *reader) readTime() (time.Time, error) {
	v, err := r.readUint64()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, int64(v)).UTC(), nil
}

func (r *reader) readHash() (hashcodec.Hash, error) {
	b, err := r.readBytes(hashcodec.Size)
	if err != nil {
		return hashcodec.Hash{}, err
	}
	return hashcodec.FromBytes(b)
}

func (r *reader) readUint32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) readChunkMeta() (chunkmodel.ChunkMeta, error) {
	var m chunkmodel.ChunkMeta
	h, err := r.readHash()
	if err != nil {
		return m, err
	}
	m.Hash = h

	uSize, err := r.readUvarint()
	if err != nil {
		return m, err
	}
	m.UncompressedSize = int(uSize)

	cSize, err := r.readUvarint()
	if err != nil {
		return m, err
	}
	m.CompressedSize = int(cSize)

	kindByte, err := r.readBytes(1)
	if err != nil {
		return m, err
	}
	m.CompressionKind = hashcodec.Kind(kindByte[0])

	seqCount, err := r.readUvarint()
	if err != nil {
		return m, err
	}
	m.SequenceCount = int(seqCount)

	taxaCount, err := r.readUvarint()
	if err != nil {
		return m, err
	}
	m.Taxa = make([]chunkmodel.TaxonID, taxaCount)
	for i := range m.Taxa {
		v, err := r.readUint32()
		if err != nil {
			return m, err
		}
		m.Taxa[i] = chunkmodel.TaxonID(v)
	}

	m.CreatedAt, err = r.readTime()
	if err != nil {
		return m, err
	}
	m.ValidFrom, err = r.readTime()
	if err != nil {
		return m, err
	}
	m.ValidUntil, err = r.readTime()
	if err != nil {
		return m, err
	}
	m.IsDelta, err = r.readBool()
	if err != nil {
		return m, err
	}
	parent, err := r.readHash()
	if err != nil {
		return m, err
	}
	m.ParentHash = parent
	return m, nil
}
