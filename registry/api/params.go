package api

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	flag "github.com/spf13/pflag"
)

const (
	// MainnetCorePort is the core P2P port mainnet nodes must use.
	MainnetCorePort = 9999
	// MainnetPlatformP2PPort is the platform P2P port mainnet Evo nodes
	// must use.
	MainnetPlatformP2PPort = 26656
	// MainnetPlatformHTTPPort is the platform HTTP port mainnet Evo nodes
	// must use.
	MainnetPlatformHTTPPort = 443
)

var _ flag.Value = (*Network)(nil)

// Network is the network the registry tracks.
type Network uint8

const (
	// NetworkMainnet is the production network.
	NetworkMainnet Network = iota
	// NetworkTestnet is the public test network.
	NetworkTestnet
	// NetworkDevnet is a named development network.
	NetworkDevnet
	// NetworkRegtest is the local regression test network.
	NetworkRegtest
)

// String returns the string representation of a Network.
func (n Network) String() string {
	switch n {
	case NetworkMainnet:
		return "mainnet"
	case NetworkTestnet:
		return "testnet"
	case NetworkDevnet:
		return "devnet"
	case NetworkRegtest:
		return "regtest"
	default:
		return "[unknown network]"
	}
}

// Set sets the Network to the value specified by the provided string.
func (n *Network) Set(s string) error {
	switch strings.ToLower(s) {
	case "mainnet", "main":
		*n = NetworkMainnet
	case "testnet", "test":
		*n = NetworkTestnet
	case "devnet":
		*n = NetworkDevnet
	case "regtest":
		*n = NetworkRegtest
	default:
		return fmt.Errorf("registry: invalid network: '%s'", s)
	}
	return nil
}

// Type returns the list of supported Networks.
func (n *Network) Type() string {
	return "[mainnet,testnet,devnet,regtest]"
}

// DefaultCorePort returns the default core P2P port of the network.
func (n Network) DefaultCorePort() uint16 {
	switch n {
	case NetworkMainnet:
		return MainnetCorePort
	case NetworkTestnet:
		return 19999
	case NetworkDevnet:
		return 19799
	default:
		return 19899
	}
}

// Params are the registry validation parameters.
type Params struct {
	// Network is the network the registry tracks.
	Network Network `json:"network"`

	// AllowUnroutableAddresses allows nodes to advertise local and private
	// addresses.
	AllowUnroutableAddresses bool `json:"allow_unroutable_addresses,omitempty"`

	// MaxSnapshots is the number of per-height snapshots kept for diffs.
	// Zero keeps every snapshot.
	MaxSnapshots uint64 `json:"max_snapshots,omitempty"`
}

// IsMainnet returns true iff the parameters are for mainnet.
func (p *Params) IsMainnet() bool {
	return p.Network == NetworkMainnet
}

// DefaultParams returns the parameters for the given network.
func DefaultParams(network Network) *Params {
	return &Params{
		Network:                  network,
		AllowUnroutableAddresses: network == NetworkRegtest || network == NetworkDevnet,
	}
}

// SanityCheck performs a sanity check on the registry parameters.
func (p *Params) SanityCheck() error {
	var result *multierror.Error
	if p.Network > NetworkRegtest {
		result = multierror.Append(result, fmt.Errorf("unknown network %d", p.Network))
	}
	if p.IsMainnet() && p.AllowUnroutableAddresses {
		result = multierror.Append(result, fmt.Errorf("unroutable addresses are never allowed on %s", p.Network))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("registry: sanity check failed: %w", err)
	}
	return nil
}
