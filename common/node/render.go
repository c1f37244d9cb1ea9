package node

import (
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

var _ flag.Value = (*Mode)(nil)

// Mode is the field compatibility mode used when rendering address sets.
type Mode uint8

const (
	// ModeModern renders only the structured address object.
	ModeModern Mode = iota
	// ModeLegacy additionally renders the deprecated scalar aliases.
	ModeLegacy
)

// ModeFromDeprecated returns the mode selected by the deprecated fields
// opt-in switch.
func ModeFromDeprecated(deprecated bool) Mode {
	if deprecated {
		return ModeLegacy
	}
	return ModeModern
}

// String returns the string representation of a Mode.
func (m Mode) String() string {
	switch m {
	case ModeModern:
		return "modern"
	case ModeLegacy:
		return "legacy"
	default:
		return "[unknown mode]"
	}
}

// Set sets the Mode to the value specified by the provided string.
func (m *Mode) Set(s string) error {
	switch strings.ToLower(s) {
	case "modern":
		*m = ModeModern
	case "legacy":
		*m = ModeLegacy
	default:
		return fmt.Errorf("node: invalid render mode: '%s'", s)
	}
	return nil
}

// Type returns the list of supported Modes.
func (m *Mode) Type() string {
	return "[modern,legacy]"
}

// Surface is a serialization surface exposing a node's addresses.
type Surface uint8

const (
	// SurfaceRegisterTx is the registration transaction view.
	SurfaceRegisterTx Surface = iota
	// SurfaceUpdateServiceTx is the service update transaction view.
	SurfaceUpdateServiceTx
	// SurfaceStatus is the live registry state view.
	SurfaceStatus
	// SurfaceListDiff is the compact list diff view.
	SurfaceListDiff
)

// String returns the string representation of a Surface.
func (s Surface) String() string {
	switch s {
	case SurfaceRegisterTx:
		return "register_tx"
	case SurfaceUpdateServiceTx:
		return "update_service_tx"
	case SurfaceStatus:
		return "status"
	case SurfaceListDiff:
		return "list_diff"
	default:
		return "[unknown surface]"
	}
}

// presence is the set of fields a surface exposes in a given mode.
type presence struct {
	service     bool
	httpPort    bool
	p2pPort     bool
	platformP2P bool
}

// presenceTable is indexed by surface and then by mode.
var presenceTable = map[Surface][2]presence{
	SurfaceRegisterTx: {
		ModeModern: {platformP2P: true},
		ModeLegacy: {service: true, httpPort: true, p2pPort: true, platformP2P: true},
	},
	SurfaceUpdateServiceTx: {
		ModeModern: {platformP2P: true},
		ModeLegacy: {service: true, httpPort: true, p2pPort: true, platformP2P: true},
	},
	// The status view always carries service, it is the node's own
	// operating address.
	SurfaceStatus: {
		ModeModern: {service: true, platformP2P: true},
		ModeLegacy: {service: true, httpPort: true, p2pPort: true, platformP2P: true},
	},
	// The list diff format cannot carry the platform P2P endpoint.
	SurfaceListDiff: {
		ModeModern: {},
		ModeLegacy: {service: true, httpPort: true},
	},
}

// AddressView is the rendered structured address object.
type AddressView struct {
	CoreP2P      []string `json:"core_p2p"`
	PlatformHTTP []string `json:"platform_http,omitempty"`
	PlatformP2P  []string `json:"platform_p2p,omitempty"`
}

// FieldView is the rendered network address fields of a node.
type FieldView struct {
	Addresses        AddressView `json:"addresses"`
	Service          *string     `json:"service,omitempty"`
	PlatformP2PPort  *uint16     `json:"platformP2PPort,omitempty"`
	PlatformHTTPPort *uint16     `json:"platformHTTPPort,omitempty"`
}

// HasLegacyFields returns true iff any deprecated scalar alias is set.
func (v *FieldView) HasLegacyFields() bool {
	return v.Service != nil || v.PlatformP2PPort != nil || v.PlatformHTTPPort != nil
}

// Render renders the address set for the given surface and mode.
//
// Scalar aliases are projections of the structured entries and are only
// emitted when the underlying entry is present.
func (as *AddressSet) Render(surface Surface, mode Mode) (*FieldView, error) {
	modes, ok := presenceTable[surface]
	if !ok {
		return nil, fmt.Errorf("node: unknown surface: %d", surface)
	}
	if mode != ModeModern && mode != ModeLegacy {
		return nil, fmt.Errorf("node: unknown mode: %d", mode)
	}
	p := modes[mode]

	v := &FieldView{
		Addresses: AddressView{
			CoreP2P:      endpointStrings(as.CoreP2P),
			PlatformHTTP: endpointStrings(as.PlatformHTTP),
		},
	}
	if v.Addresses.CoreP2P == nil {
		v.Addresses.CoreP2P = []string{}
	}
	if p.platformP2P {
		v.Addresses.PlatformP2P = endpointStrings(as.PlatformP2P)
	}

	if primary, ok := as.Primary(); ok && p.service {
		s := primary.String()
		v.Service = &s
	}
	if p.httpPort && len(as.PlatformHTTP) > 0 {
		port := as.PlatformHTTP[0].Port
		v.PlatformHTTPPort = &port
	}
	if p.p2pPort && len(as.PlatformP2P) > 0 {
		port := as.PlatformP2P[0].Port
		v.PlatformP2PPort = &port
	}
	return v, nil
}

func endpointStrings(eps []Endpoint) []string {
	if len(eps) == 0 {
		return nil
	}
	out := make([]string, 0, len(eps))
	for _, ep := range eps {
		out = append(out, ep.String())
	}
	return out
}
