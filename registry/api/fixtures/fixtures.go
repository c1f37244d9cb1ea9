// Package fixtures provides deterministic registry transactions for tests
// and local scenarios.
package fixtures

import (
	"fmt"

	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/keys"
	"github.com/kwvg/dash/common/node"
	"github.com/kwvg/dash/registry/api"
)

// MaxSeed is the largest seed whose derived keys do not wrap.
const MaxSeed = 31

// NewAddress returns a deterministic regtest address derived from seed.
func NewAddress(seed byte) keys.Address {
	var h [keys.HashSize]byte
	h[0] = seed
	h[keys.HashSize-1] = 0xaa
	return keys.NewAddress(keys.VersionTestnetPubKeyHash, h)
}

// NewOutpoint returns a deterministic outpoint derived from seed.
func NewOutpoint(seed byte) collateral.Outpoint {
	return collateral.Outpoint{
		TxID:  hash.NewFromBytes([]byte("collateral"), []byte{seed}),
		Index: uint32(seed),
	}
}

// NewRegisterTx returns a registration transaction with keys and addresses
// derived from seed. Distinct seeds yield transactions that do not conflict
// with each other, given distinct endpoint inputs.
func NewRegisterTx(kind node.Kind, seed byte, in node.EndpointInput) (*api.RegisterTx, error) {
	if seed > MaxSeed {
		return nil, fmt.Errorf("fixtures: seed %d above %d", seed, MaxSeed)
	}
	as, err := node.Derive(kind, in)
	if err != nil {
		return nil, fmt.Errorf("fixtures: derive addresses: %w", err)
	}
	value, err := collateral.RequiredCollateral(kind)
	if err != nil {
		return nil, err
	}

	// Seeds are spread so that derived addresses never collide across
	// neighbouring seeds.
	base := seed * 8
	tx := &api.RegisterTx{
		Kind: kind,
		Collateral: collateral.Ref{
			Outpoint: NewOutpoint(seed),
			Value:    value,
			Address:  NewAddress(base),
		},
		Addresses:     *as,
		OwnerAddress:  NewAddress(base + 1),
		VotingAddress: NewAddress(base + 2),
		PayoutAddress: NewAddress(base + 3),
		FundsAddress:  NewAddress(base + 4),
	}
	tx.OperatorPublicKey[0] = seed
	tx.OperatorPublicKey[1] = 0xbb
	if kind == node.KindEvo {
		var id node.PlatformNodeID
		id[0] = seed
		tx.PlatformNodeID = &id
	}
	return tx, nil
}

// RegularInput returns a loopback core endpoint on the given port.
func RegularInput(port uint16) node.EndpointInput {
	return node.EndpointInput{CoreP2P: []string{fmt.Sprintf("127.0.0.1:%d", port)}}
}

// EvoInput returns a loopback core endpoint with platform ports bound to
// the core host.
func EvoInput(corePort, httpPort, p2pPort uint16) node.EndpointInput {
	return node.EndpointInput{
		CoreP2P:      []string{fmt.Sprintf("127.0.0.1:%d", corePort)},
		PlatformHTTP: []string{fmt.Sprintf("%d", httpPort)},
		PlatformP2P:  []string{fmt.Sprintf("%d", p2pPort)},
	}
}
