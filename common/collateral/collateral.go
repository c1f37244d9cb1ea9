// Package collateral implements the collateral output reference backing a
// masternode.
package collateral

import (
	"encoding"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/keys"
	"github.com/kwvg/dash/common/node"
)

// Amount is a quantity of coins, in duffs.
type Amount uint64

// Coin is the number of duffs in one coin.
const Coin Amount = 100_000_000

const (
	// RegularCollateral is the collateral required by a regular masternode.
	RegularCollateral = 1000 * Coin
	// EvoCollateral is the collateral required by an Evo node.
	EvoCollateral = 4000 * Coin
)

var (
	// ErrCollateralMismatch is the error returned when the collateral value
	// does not match the tier required by the node kind.
	ErrCollateralMismatch = errors.New("collateral: value does not match node kind")
	// ErrMalformedOutpoint is the error returned when an outpoint can't be
	// parsed.
	ErrMalformedOutpoint = errors.New("collateral: malformed outpoint")

	_ encoding.TextMarshaler   = Outpoint{}
	_ encoding.TextUnmarshaler = (*Outpoint)(nil)
)

// String returns the amount in coins.
func (a Amount) String() string {
	whole, frac := a/Coin, a%Coin
	if frac == 0 {
		return strconv.FormatUint(uint64(whole), 10) + " DASH"
	}
	s := strings.TrimRight(fmt.Sprintf("%08d", uint64(frac)), "0")
	return strconv.FormatUint(uint64(whole), 10) + "." + s + " DASH"
}

// RequiredCollateral returns the collateral tier for the given node kind.
func RequiredCollateral(kind node.Kind) (Amount, error) {
	switch kind {
	case node.KindRegular:
		return RegularCollateral, nil
	case node.KindEvo:
		return EvoCollateral, nil
	default:
		return 0, node.ErrInvalidKind
	}
}

// Outpoint identifies a transaction output.
type Outpoint struct {
	TxID  hash.Hash `json:"txid"`
	Index uint32    `json:"vout"`
}

// Equal compares vs another outpoint for equality.
func (o Outpoint) Equal(other Outpoint) bool {
	return o == other
}

// Less orders outpoints by transaction id and then by index.
func (o Outpoint) Less(other Outpoint) bool {
	if o.TxID != other.TxID {
		return o.TxID.Less(&other.TxID)
	}
	return o.Index < other.Index
}

// IsZero returns true iff the outpoint is unset.
func (o Outpoint) IsZero() bool {
	return o == Outpoint{}
}

// String returns the txid-index representation of an outpoint.
func (o Outpoint) String() string {
	return o.TxID.String() + "-" + strconv.FormatUint(uint64(o.Index), 10)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (o Outpoint) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (o *Outpoint) UnmarshalText(text []byte) error {
	parsed, err := ParseOutpoint(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOutpoint parses a txid-index string.
func ParseOutpoint(s string) (Outpoint, error) {
	idx := strings.LastIndexByte(s, '-')
	if idx < 0 {
		return Outpoint{}, ErrMalformedOutpoint
	}

	var o Outpoint
	if err := o.TxID.UnmarshalText([]byte(s[:idx])); err != nil {
		return Outpoint{}, fmt.Errorf("%w: %s", ErrMalformedOutpoint, err)
	}
	index, err := strconv.ParseUint(s[idx+1:], 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("%w: %s", ErrMalformedOutpoint, err)
	}
	o.Index = uint32(index)
	return o, nil
}

// Ref is a reference to the unspent output backing a masternode.
type Ref struct {
	// Outpoint is the output backing the node.
	Outpoint Outpoint `json:"outpoint"`
	// Value is the value of the output.
	Value Amount `json:"value"`
	// Address is the destination the output pays to.
	Address keys.Address `json:"address"`
}

// ValidateFor checks that the output value matches the collateral tier of
// the given node kind exactly.
func (r *Ref) ValidateFor(kind node.Kind) error {
	required, err := RequiredCollateral(kind)
	if err != nil {
		return err
	}
	if r.Value != required {
		return fmt.Errorf("%w: %s node requires %s, got %s", ErrCollateralMismatch, kind, required, r.Value)
	}
	return nil
}
