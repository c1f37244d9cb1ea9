package node

import (
	"encoding"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// PlatformNodeIDSize is the size of a platform node identifier.
const PlatformNodeIDSize = 20

var (
	// ErrInvalidKind is the error returned when a node kind is invalid.
	ErrInvalidKind = errors.New("node: invalid node kind")
	// ErrMalformedPlatformNodeID is the error returned when a platform node
	// identifier can't be decoded.
	ErrMalformedPlatformNodeID = errors.New("node: malformed platform node ID")

	_ encoding.TextMarshaler   = KindRegular
	_ encoding.TextUnmarshaler = (*Kind)(nil)
	_ encoding.TextMarshaler   = PlatformNodeID{}
	_ encoding.TextUnmarshaler = (*PlatformNodeID)(nil)
)

// Kind is the masternode kind.
type Kind uint8

const (
	// KindRegular is a regular masternode, serving only the core network.
	KindRegular Kind = 0
	// KindEvo is an Evo node, additionally serving the platform network.
	KindEvo Kind = 1
)

// IsValid returns true iff the kind is known.
func (k Kind) IsValid() bool {
	return k == KindRegular || k == KindEvo
}

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "Regular"
	case KindEvo:
		return "Evo"
	default:
		return "[invalid kind]"
	}
}

// MarshalText implements the encoding.TextMarshaler interface.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, ErrInvalidKind
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (k *Kind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "regular":
		*k = KindRegular
	case "evo":
		*k = KindEvo
	default:
		return fmt.Errorf("%w: '%s'", ErrInvalidKind, string(text))
	}
	return nil
}

// PlatformNodeID is the identifier an Evo node uses on the platform
// network. It is unrelated to the provider ID.
type PlatformNodeID [PlatformNodeIDSize]byte

// IsZero returns true iff the identifier is unset.
func (id PlatformNodeID) IsZero() bool {
	return id == PlatformNodeID{}
}

// String returns the hex encoding of the identifier.
func (id PlatformNodeID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
func (id PlatformNodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (id *PlatformNodeID) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil || len(b) != PlatformNodeIDSize {
		return ErrMalformedPlatformNodeID
	}
	copy(id[:], b)
	return nil
}
