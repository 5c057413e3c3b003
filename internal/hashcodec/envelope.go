package hashcodec

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Kind identifies the compression applied to an on-disk chunk envelope.
// The set is closed: compression algorithms are a fixed enumeration, not
// an open capability-set, per the Engine's polymorphism design.
type Kind byte

const (
	// KindNone marks an uncompressed payload.
	KindNone Kind = 0
	// KindGzip marks a gzip-compressed payload. Always available.
	KindGzip Kind = 1
	// KindZstd marks a zstd-compressed payload. Optional per spec.md §4.1,
	// but always supported by this implementation since klauspost/compress
	// has no cgo dependency.
	KindZstd Kind = 2
)

// compressedRatio is the threshold below which a compressed form is kept:
// a compressed blob is kept only when it is strictly smaller than this
// fraction of the uncompressed size.
const compressedRatio = 0.90

var (
	// ErrUnknownKind is returned when decoding an envelope whose leading
	// kind byte does not match a known Kind.
	ErrUnknownKind = errors.New("hashcodec: unknown envelope kind")
	// ErrEmptyEnvelope is returned when decoding a zero-length envelope.
	ErrEmptyEnvelope = errors.New("hashcodec: empty envelope")
)

var zstdEncoder *zstd.Encoder
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic("hashcodec: init zstd encoder: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic("hashcodec: init zstd decoder: " + err.Error())
	}
}

// Encode wraps raw in a self-describing envelope: a one-byte kind prefix
// followed by the payload. When mayCompress is true, gzip and zstd
// candidates are tried and the smallest of {uncompressed, gzip, zstd} that
// beats compressedRatio is kept; otherwise the uncompressed form is used.
// The uncompressed length is always returned alongside for metadata.
func Encode(raw []byte, mayCompress bool) (envelope []byte, kind Kind, uncompressedSize int, compressedSize int) {
	uncompressedSize = len(raw)
	if !mayCompress {
		return prefix(KindNone, raw), KindNone, uncompressedSize, 0
	}

	best := prefix(KindNone, raw)
	bestKind := KindNone
	bestLen := len(raw)

	if gz := gzipCompress(raw); gz != nil && len(gz) < bestLen {
		best = prefix(KindGzip, gz)
		bestKind = KindGzip
		bestLen = len(gz)
	}
	if zs := zstdEncoder.EncodeAll(raw, nil); len(zs) < bestLen {
		best = prefix(KindZstd, zs)
		bestKind = KindZstd
		bestLen = len(zs)
	}

	threshold := int(float64(uncompressedSize) * compressedRatio)
	if bestKind == KindNone || bestLen >= threshold {
		return prefix(KindNone, raw), KindNone, uncompressedSize, 0
	}
	return best, bestKind, uncompressedSize, bestLen
}

// Decode reads a self-describing envelope and returns the original bytes.
func Decode(envelope []byte) ([]byte, Kind, error) {
	if len(envelope) == 0 {
		return nil, KindNone, ErrEmptyEnvelope
	}
	kind := Kind(envelope[0])
	payload := envelope[1:]
	switch kind {
	case KindNone:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, kind, nil
	case KindGzip:
		out, err := gzipDecompress(payload)
		if err != nil {
			return nil, kind, fmt.Errorf("hashcodec: gzip decode: %w", err)
		}
		return out, kind, nil
	case KindZstd:
		out, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, kind, fmt.Errorf("hashcodec: zstd decode: %w", err)
		}
		return out, kind, nil
	default:
		return nil, kind, ErrUnknownKind
	}
}

func prefix(kind Kind, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = byte(kind)
	copy(out[1:], payload)
	return out
}

func gzipCompress(raw []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return nil
	}
	return buf.Bytes()
}

func gzipDecompress(payload []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
