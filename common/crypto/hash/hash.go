// Package hash implements a cryptographic hash over arbitrary binary data.
//
// Transaction identifiers, and therefore provider identifiers, are hashes.
package hash

import (
	"bytes"
	"crypto/sha512"
	"encoding"
	"encoding/hex"
	"errors"

	"github.com/kwvg/dash/common/cbor"
)

// Size is the size of the cryptographic hash in bytes.
const Size = 32

var (
	// ErrMalformed is the error returned when a hash is malformed.
	ErrMalformed = errors.New("hash: malformed hash")

	_ encoding.BinaryMarshaler   = (*Hash)(nil)
	_ encoding.BinaryUnmarshaler = (*Hash)(nil)
	_ encoding.TextMarshaler     = Hash{}
	_ encoding.TextUnmarshaler   = (*Hash)(nil)
)

// Hash is a cryptographic hash over arbitrary binary data.
type Hash [Size]byte

// MarshalBinary encodes a hash into binary form.
func (h *Hash) MarshalBinary() (data []byte, err error) {
	data = append([]byte{}, h[:]...)
	return
}

// UnmarshalBinary decodes a binary marshaled hash.
func (h *Hash) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return ErrMalformed
	}
	copy(h[:], data)
	return nil
}

// MarshalText encodes a Hash into hexadecimal text form.
func (h Hash) MarshalText() (data []byte, err error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

// UnmarshalText decodes a hexadecimal text marshaled Hash.
func (h *Hash) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return ErrMalformed
	}
	return h.UnmarshalBinary(b)
}

// From sets the hash to that of an arbitrary CBOR serializeable interface.
func (h *Hash) From(v interface{}) {
	h.FromBytes(cbor.Marshal(v))
}

// FromBytes sets the hash to that of an arbitrary byte string.
func (h *Hash) FromBytes(data ...[]byte) {
	hasher := sha512.New512_256()
	for _, d := range data {
		_, _ = hasher.Write(d)
	}
	copy(h[:], hasher.Sum(nil))
}

// Equal compares vs another hash for equality.
func (h *Hash) Equal(cmp *Hash) bool {
	if cmp == nil {
		return false
	}
	return *h == *cmp
}

// Less orders hashes bytewise.
func (h *Hash) Less(other *Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// IsZero returns true iff the hash is all zeroes (unset).
func (h *Hash) IsZero() bool {
	return *h == Hash{}
}

// String returns the string representation of a hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// NewFrom creates a new hash of the CBOR encoding of v.
func NewFrom(v interface{}) (h Hash) {
	h.From(v)
	return
}

// NewFromBytes creates a new hash over the given byte strings.
func NewFromBytes(data ...[]byte) (h Hash) {
	h.FromBytes(data...)
	return
}
