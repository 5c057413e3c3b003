// Package hashcodec provides the Engine's content hash and compression
// envelope: a canonical 32-byte SHA-256 identity for any byte sequence, and
// a self-describing compressed/uncompressed envelope used for every blob
// the Store persists.
package hashcodec

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// Size is the length in bytes of a Hash.
const Size = sha256.Size

// ErrInvalidHashLength is returned when decoding a hex or binary value that
// is not exactly Size bytes.
var ErrInvalidHashLength = errors.New("hashcodec: invalid hash length")

// Hash is the Engine's content identity: SHA-256 of a canonical byte form.
// The zero value is the all-zero sentinel meaning "no parent".
type Hash [Size]byte

// Zero is the sentinel hash used as "no parent" for a full chunk.
var Zero = Hash{}

// Sum computes the content hash of b.
func Sum(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// IsZero reports whether h is the all-zero sentinel.
func (h Hash) IsZero() bool {
	return subtle.ConstantTimeCompare(h[:], Zero[:]) == 1
}

// Equal reports whether h equals other using a constant-time comparison.
func (h Hash) Equal(other Hash) bool {
	return subtle.ConstantTimeCompare(h[:], other[:]) == 1
}

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the binary encoding of h.
func (h Hash) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, h[:])
	return out
}

// ParseHash decodes a lowercase or uppercase hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("hashcodec: decode hex: %w", err)
	}
	return FromBytes(b)
}

// FromBytes builds a Hash from exactly Size bytes of binary data.
func FromBytes(b []byte) (Hash, error) {
	if len(b) != Size {
		return Hash{}, ErrInvalidHashLength
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// ShardPrefix returns the two-hex-digit directory shard and the remaining
// suffix used by the Store's on-disk layout: chunks/<hh>/<rest>.
func (h Hash) ShardPrefix() (shard, rest string) {
	s := h.String()
	return s[:2], s[2:]
}

// MarshalBinary implements encoding.BinaryMarshaler, letting Hash values
// serialize compactly through codecs (msgpack, gob) that recognize it
// instead of falling back to per-element array encoding.
func (h Hash) MarshalBinary() ([]byte, error) {
	return h.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *Hash) UnmarshalBinary(data []byte) error {
	decoded, err := FromBytes(data)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}
