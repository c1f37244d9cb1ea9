package api

import (
	"fmt"
	"net"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/keys"
	"github.com/kwvg/dash/common/node"
)

// SanityCheckEntries checks a set of entries, as rebuilt from the chain,
// for internal consistency: every entry must be well formed, and no two
// active entries may share a collateral, an endpoint or a key.
func SanityCheckEntries(entries []*Entry) error {
	var (
		result *multierror.Error

		seenIDs        = make(map[hash.Hash]bool)
		seenCollateral = make(map[collateral.Outpoint]hash.Hash)
		seenEndpoints  = make(map[string]hash.Hash)
		seenPlatform   = make(map[node.PlatformNodeID]hash.Hash)
		seenOperator   = make(map[keys.OperatorPublicKey]hash.Hash)
		seenOwner      = make(map[keys.Address]hash.Hash)
	)

	claim := func(id hash.Hash, value, what string, other hash.Hash, ok bool) {
		if ok {
			result = multierror.Append(result, fmt.Errorf("entry %s: %s %s already used by %s", id, what, value, other))
		}
	}

	for _, e := range entries {
		if seenIDs[e.ProviderID] {
			result = multierror.Append(result, fmt.Errorf("entry %s: duplicate provider id", e.ProviderID))
			continue
		}
		seenIDs[e.ProviderID] = true

		if err := e.ValidateBasic(); err != nil {
			result = multierror.Append(result, fmt.Errorf("entry %s: %w", e.ProviderID, err))
			continue
		}
		if !e.IsActive() {
			continue
		}

		other, ok := seenCollateral[e.Collateral.Outpoint]
		claim(e.ProviderID, e.Collateral.Outpoint.String(), "collateral", other, ok)
		seenCollateral[e.Collateral.Outpoint] = e.ProviderID

		for _, ep := range e.Addresses.All() {
			key := EndpointKey(ep)
			other, ok = seenEndpoints[key]
			claim(e.ProviderID, ep.String(), "endpoint", other, ok)
			seenEndpoints[key] = e.ProviderID
		}

		if e.PlatformNodeID != nil {
			other, ok = seenPlatform[*e.PlatformNodeID]
			claim(e.ProviderID, e.PlatformNodeID.String(), "platform node id", other, ok)
			seenPlatform[*e.PlatformNodeID] = e.ProviderID
		}

		other, ok = seenOperator[e.OperatorPublicKey]
		claim(e.ProviderID, e.OperatorPublicKey.String(), "operator key", other, ok)
		seenOperator[e.OperatorPublicKey] = e.ProviderID

		other, ok = seenOwner[e.OwnerAddress]
		claim(e.ProviderID, e.OwnerAddress.String(), "owner address", other, ok)
		seenOwner[e.OwnerAddress] = e.ProviderID
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("registry: sanity check failed: %w", err)
	}
	return nil
}

// EndpointKey returns the key an endpoint is indexed under for uniqueness
// checks.
func EndpointKey(ep node.Endpoint) string {
	return node.Endpoint{Host: normalizeHost(ep.Host), Port: ep.Port}.String()
}

func normalizeHost(host string) string {
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return strings.ToLower(host)
}
