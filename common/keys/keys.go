// Package keys implements the key and address types carried by masternode
// registrations.
package keys

import (
	"encoding"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

const (
	// HashSize is the size of an address payload (a HASH160).
	HashSize = 20

	// OperatorPublicKeySize is the size of a serialized BLS public key.
	OperatorPublicKeySize = 48

	// VersionMainnetPubKeyHash is the mainnet P2PKH address version.
	VersionMainnetPubKeyHash byte = 76
	// VersionMainnetScriptHash is the mainnet P2SH address version.
	VersionMainnetScriptHash byte = 16
	// VersionTestnetPubKeyHash is the testnet/regtest P2PKH address version.
	VersionTestnetPubKeyHash byte = 140
	// VersionTestnetScriptHash is the testnet/regtest P2SH address version.
	VersionTestnetScriptHash byte = 19
)

var (
	// ErrMalformedAddress is the error returned when an address can't be
	// decoded.
	ErrMalformedAddress = errors.New("keys: malformed address")
	// ErrMalformedPublicKey is the error returned when an operator public
	// key can't be decoded.
	ErrMalformedPublicKey = errors.New("keys: malformed operator public key")

	_ encoding.TextMarshaler     = Address{}
	_ encoding.TextUnmarshaler   = (*Address)(nil)
	_ encoding.BinaryMarshaler   = Address{}
	_ encoding.BinaryUnmarshaler = (*Address)(nil)
	_ encoding.TextMarshaler     = OperatorPublicKey{}
	_ encoding.TextUnmarshaler   = (*OperatorPublicKey)(nil)
)

// Address is a base58check encoded payment destination.
type Address struct {
	Version byte
	Hash    [HashSize]byte
}

// NewAddress creates an address from a version byte and a HASH160.
func NewAddress(version byte, h [HashSize]byte) Address {
	return Address{Version: version, Hash: h}
}

// IsZero returns true iff the address is unset.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Equal compares vs another address for equality.
func (a Address) Equal(other Address) bool {
	return a == other
}

// String returns the base58check encoding of the address.
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	return base58.CheckEncode(a.Hash[:], a.Version)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (a *Address) UnmarshalText(text []byte) error {
	payload, version, err := base58.CheckDecode(string(text))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedAddress, err)
	}
	if len(payload) != HashSize {
		return fmt.Errorf("%w: bad payload length %d", ErrMalformedAddress, len(payload))
	}
	a.Version = version
	copy(a.Hash[:], payload)
	return nil
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (a Address) MarshalBinary() ([]byte, error) {
	if a.IsZero() {
		return []byte{}, nil
	}
	return append([]byte{a.Version}, a.Hash[:]...), nil
}

// UnmarshalBinary implements the encoding.BinaryUnmarshaler interface.
func (a *Address) UnmarshalBinary(data []byte) error {
	switch len(data) {
	case 0:
		*a = Address{}
	case 1 + HashSize:
		a.Version = data[0]
		copy(a.Hash[:], data[1:])
	default:
		return ErrMalformedAddress
	}
	return nil
}

// ParseAddress decodes a base58check address string.
func ParseAddress(s string) (Address, error) {
	var a Address
	err := a.UnmarshalText([]byte(s))
	return a, err
}

// OperatorPublicKey is the public half of the operator's BLS key pair.
//
// The secret half never reaches the registry, it is held by the node
// actually serving as the masternode.
type OperatorPublicKey [OperatorPublicKeySize]byte

// IsZero returns true iff the key is unset.
func (k OperatorPublicKey) IsZero() bool {
	return k == OperatorPublicKey{}
}

// String returns the hex encoding of the key.
func (k OperatorPublicKey) String() string {
	return hex.EncodeToString(k[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
func (k OperatorPublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (k *OperatorPublicKey) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil || len(b) != OperatorPublicKeySize {
		return ErrMalformedPublicKey
	}
	copy(k[:], b)
	return nil
}
