// Package node implements the masternode network address model: the node
// kind, the named endpoints a node advertises, and the policy deciding
// which address fields each serialization surface exposes.
package node

import (
	"errors"
	"fmt"
	"strings"
)

// MaxEntriesPerPurpose is the maximum number of endpoints per purpose.
//
// The address set is list shaped to allow multiple addresses per purpose
// later on, only a single one is accepted today.
const MaxEntriesPerPurpose = 1

var (
	// ErrInvalidTopology is the error returned when the address fields
	// present do not match the node kind.
	ErrInvalidTopology = errors.New("node: address fields do not match node kind")
	// ErrTooManyEntries is the error returned when a purpose has more
	// endpoints than allowed.
	ErrTooManyEntries = errors.New("node: too many endpoints")
)

// Purpose is the purpose of an advertised endpoint.
type Purpose uint8

const (
	// PurposeCoreP2P is the core peer-to-peer endpoint, required for every node.
	PurposeCoreP2P Purpose = 1
	// PurposePlatformHTTP is the platform HTTP API endpoint (Evo only).
	PurposePlatformHTTP Purpose = 2
	// PurposePlatformP2P is the platform peer-to-peer endpoint (Evo only).
	PurposePlatformP2P Purpose = 3
)

// String returns the string representation of a Purpose.
func (p Purpose) String() string {
	switch p {
	case PurposeCoreP2P:
		return "core_p2p"
	case PurposePlatformHTTP:
		return "platform_http"
	case PurposePlatformP2P:
		return "platform_p2p"
	default:
		return "[invalid purpose]"
	}
}

// AddressSet is the canonical set of endpoints a node advertises.
type AddressSet struct {
	CoreP2P      []Endpoint `json:"core_p2p"`
	PlatformHTTP []Endpoint `json:"platform_http,omitempty"`
	PlatformP2P  []Endpoint `json:"platform_p2p,omitempty"`
}

// EndpointInput is the unparsed form of an address set, as supplied by the
// user building a transaction.
//
// Platform entries may be given as a bare port number, the host is then
// taken from the first core P2P entry.
type EndpointInput struct {
	CoreP2P      []string
	PlatformHTTP []string
	PlatformP2P  []string
}

// Derive parses the endpoint input and returns the address set for a node
// of the given kind.
func Derive(kind Kind, in EndpointInput) (*AddressSet, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidKind
	}
	if kind != KindEvo && (len(in.PlatformHTTP) > 0 || len(in.PlatformP2P) > 0) {
		return nil, fmt.Errorf("%w: %s node must not have platform addresses", ErrInvalidTopology, kind)
	}

	var (
		as  AddressSet
		err error
	)
	for _, s := range in.CoreP2P {
		var ep Endpoint
		if ep, err = ParseEndpoint(s); err != nil {
			return nil, fmt.Errorf("node: bad %s entry: %w", PurposeCoreP2P, err)
		}
		as.CoreP2P = append(as.CoreP2P, ep)
	}
	if as.PlatformHTTP, err = as.parsePlatform(PurposePlatformHTTP, in.PlatformHTTP); err != nil {
		return nil, err
	}
	if as.PlatformP2P, err = as.parsePlatform(PurposePlatformP2P, in.PlatformP2P); err != nil {
		return nil, err
	}

	if err = as.ValidateTopology(kind); err != nil {
		return nil, err
	}
	return &as, nil
}

func (as *AddressSet) parsePlatform(purpose Purpose, entries []string) ([]Endpoint, error) {
	var out []Endpoint
	for _, s := range entries {
		s = strings.TrimSpace(s)
		if !IsNumeric(s) {
			ep, err := ParseEndpoint(s)
			if err != nil {
				return nil, fmt.Errorf("node: bad %s entry: %w", purpose, err)
			}
			out = append(out, ep)
			continue
		}

		// A bare port shares the host of the primary core endpoint.
		port, err := ParsePort(s)
		if err != nil {
			return nil, fmt.Errorf("node: bad %s entry: %w", purpose, err)
		}
		primary, ok := as.Primary()
		if !ok {
			return nil, fmt.Errorf("%w: %s port given without a %s address", ErrInvalidAddress, purpose, PurposeCoreP2P)
		}
		out = append(out, Endpoint{Host: primary.Host, Port: port})
	}
	return out, nil
}

// ValidateTopology checks that the address set is well formed and that the
// fields present match the node kind.
func (as *AddressSet) ValidateTopology(kind Kind) error {
	if !kind.IsValid() {
		return ErrInvalidKind
	}
	if len(as.CoreP2P) == 0 {
		return fmt.Errorf("%w: missing %s address", ErrInvalidTopology, PurposeCoreP2P)
	}

	hasHTTP, hasP2P := len(as.PlatformHTTP) > 0, len(as.PlatformP2P) > 0
	switch kind {
	case KindEvo:
		if !hasHTTP || !hasP2P {
			return fmt.Errorf("%w: %s node requires both %s and %s", ErrInvalidTopology, kind, PurposePlatformHTTP, PurposePlatformP2P)
		}
	default:
		if hasHTTP || hasP2P {
			return fmt.Errorf("%w: %s node must not have platform addresses", ErrInvalidTopology, kind)
		}
	}

	for _, purpose := range []Purpose{PurposeCoreP2P, PurposePlatformHTTP, PurposePlatformP2P} {
		entries := as.Entries(purpose)
		if len(entries) > MaxEntriesPerPurpose {
			return fmt.Errorf("%w: %s has %d entries (max %d)", ErrTooManyEntries, purpose, len(entries), MaxEntriesPerPurpose)
		}
		for i, ep := range entries {
			if err := ep.Validate(); err != nil {
				return fmt.Errorf("node: bad %s[%d]: %w", purpose, i, err)
			}
			for _, other := range entries[:i] {
				if ep.Equal(other) {
					return fmt.Errorf("%w: duplicate %s entry %s", ErrInvalidAddress, purpose, ep)
				}
			}
		}
	}
	return nil
}

// Entries returns the endpoints for the given purpose.
func (as *AddressSet) Entries(purpose Purpose) []Endpoint {
	switch purpose {
	case PurposeCoreP2P:
		return as.CoreP2P
	case PurposePlatformHTTP:
		return as.PlatformHTTP
	case PurposePlatformP2P:
		return as.PlatformP2P
	default:
		return nil
	}
}

// All returns every endpoint in the set.
func (as *AddressSet) All() []Endpoint {
	all := make([]Endpoint, 0, len(as.CoreP2P)+len(as.PlatformHTTP)+len(as.PlatformP2P))
	all = append(all, as.CoreP2P...)
	all = append(all, as.PlatformHTTP...)
	return append(all, as.PlatformP2P...)
}

// Primary returns the primary endpoint, the first core P2P entry.
func (as *AddressSet) Primary() (Endpoint, bool) {
	if len(as.CoreP2P) == 0 {
		return Endpoint{}, false
	}
	return as.CoreP2P[0], true
}

// IsEmpty returns true iff the set has no endpoints at all.
func (as *AddressSet) IsEmpty() bool {
	return len(as.CoreP2P) == 0 && len(as.PlatformHTTP) == 0 && len(as.PlatformP2P) == 0
}

// Equal compares vs another address set for equality.
func (as *AddressSet) Equal(other *AddressSet) bool {
	if other == nil {
		return false
	}
	for _, purpose := range []Purpose{PurposeCoreP2P, PurposePlatformHTTP, PurposePlatformP2P} {
		a, b := as.Entries(purpose), other.Entries(purpose)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of the address set.
func (as *AddressSet) Clone() *AddressSet {
	clone := func(eps []Endpoint) []Endpoint {
		if eps == nil {
			return nil
		}
		return append([]Endpoint{}, eps...)
	}
	return &AddressSet{
		CoreP2P:      clone(as.CoreP2P),
		PlatformHTTP: clone(as.PlatformHTTP),
		PlatformP2P:  clone(as.PlatformP2P),
	}
}

// String returns a string representation of the address set.
func (as *AddressSet) String() string {
	var parts []string
	for _, purpose := range []Purpose{PurposeCoreP2P, PurposePlatformHTTP, PurposePlatformP2P} {
		for _, ep := range as.Entries(purpose) {
			parts = append(parts, purpose.String()+"="+ep.String())
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
