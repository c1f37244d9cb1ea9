package api

import (
	"fmt"

	"github.com/kwvg/dash/common/errors"
	"github.com/kwvg/dash/common/logging"
	"github.com/kwvg/dash/common/node"
)

// VerifyRegisterArgs verifies the stateless preconditions of a
// registration.
func VerifyRegisterArgs(logger *logging.Logger, params *Params, tx *RegisterTx) error {
	if tx == nil {
		return ErrInvalidArgument
	}
	if !tx.Kind.IsValid() {
		logger.Error("Register: invalid node kind",
			"kind", tx.Kind,
		)
		return errors.WithContext(ErrInvalidArgument, "invalid node kind")
	}

	if err := tx.Collateral.ValidateFor(tx.Kind); err != nil {
		logger.Error("Register: collateral does not match node kind",
			"kind", tx.Kind,
			"collateral", tx.Collateral.Outpoint,
			"value", tx.Collateral.Value,
		)
		return errors.WithContext(ErrCollateralMismatch, err.Error())
	}

	if err := verifyKeys(tx); err != nil {
		logger.Error("Register: invalid keys",
			"err", err,
		)
		return err
	}

	if err := verifyPlatformNodeID(tx.Kind, tx.PlatformNodeID); err != nil {
		logger.Error("Register: invalid platform node id",
			"kind", tx.Kind,
			"err", err,
		)
		return err
	}

	if err := VerifyService(params, tx.Kind, &tx.Addresses); err != nil {
		logger.Error("Register: invalid service",
			"kind", tx.Kind,
			"addresses", tx.Addresses.String(),
			"err", err,
		)
		return err
	}

	return nil
}

// VerifyUpdateServiceArgs verifies the preconditions of a service update
// against the current state of the entry.
func VerifyUpdateServiceArgs(logger *logging.Logger, params *Params, existing *Entry, tx *UpdateServiceTx) error {
	if tx == nil || existing == nil {
		return ErrInvalidArgument
	}
	if !existing.ProviderID.Equal(&tx.ProviderID) {
		logger.Error("UpdateService: provider id mismatch",
			"provider_id", tx.ProviderID,
			"entry", existing.ProviderID,
		)
		return errors.WithContext(ErrInvalidArgument, "provider id mismatch")
	}
	if !existing.IsActive() {
		logger.Error("UpdateService: entry not active",
			"provider_id", tx.ProviderID,
			"status", existing.Status,
		)
		return ErrNotActive
	}
	if tx.OperatorPublicKey != nil && tx.OperatorPublicKey.IsZero() {
		return errors.WithContext(ErrInvalidArgument, "empty operator public key")
	}

	platformNodeID := existing.PlatformNodeID
	if tx.PlatformNodeID != nil {
		platformNodeID = tx.PlatformNodeID
	}
	if err := verifyPlatformNodeID(existing.Kind, platformNodeID); err != nil {
		logger.Error("UpdateService: invalid platform node id",
			"provider_id", tx.ProviderID,
			"err", err,
		)
		return err
	}

	if err := VerifyService(params, existing.Kind, &tx.Addresses); err != nil {
		logger.Error("UpdateService: invalid service",
			"provider_id", tx.ProviderID,
			"addresses", tx.Addresses.String(),
			"err", err,
		)
		return err
	}

	return nil
}

// VerifyService checks the advertised endpoints of a node of the given
// kind against the topology and the network port rules.
func VerifyService(params *Params, kind node.Kind, as *node.AddressSet) error {
	if err := as.ValidateTopology(kind); err != nil {
		return errors.WithContext(ErrAddressTopology, err.Error())
	}

	for _, purpose := range []node.Purpose{node.PurposeCoreP2P, node.PurposePlatformHTTP, node.PurposePlatformP2P} {
		for _, ep := range as.Entries(purpose) {
			// Only the platform HTTP endpoint may be a domain name.
			if purpose != node.PurposePlatformHTTP && ep.IP() == nil {
				return errors.WithContext(ErrInvalidArgument, fmt.Sprintf("%s must be an IP address: %s", purpose, ep))
			}
			if !params.AllowUnroutableAddresses && !ep.IsRoutable() {
				return errors.WithContext(ErrInvalidArgument, fmt.Sprintf("%s is not routable: %s", purpose, ep))
			}
		}
	}

	primary, _ := as.Primary()
	if params.IsMainnet() {
		if primary.Port != MainnetCorePort {
			return errors.WithContext(ErrInvalidArgument, fmt.Sprintf("core port must be %d on %s", MainnetCorePort, params.Network))
		}
	} else if primary.Port == MainnetCorePort {
		return errors.WithContext(ErrInvalidArgument, fmt.Sprintf("core port %d is reserved for mainnet", MainnetCorePort))
	}

	if kind != node.KindEvo {
		return nil
	}
	p2pPort, httpPort := as.PlatformP2P[0].Port, as.PlatformHTTP[0].Port
	if params.IsMainnet() {
		if p2pPort != MainnetPlatformP2PPort {
			return errors.WithContext(ErrInvalidArgument, fmt.Sprintf("platform P2P port must be %d on %s", MainnetPlatformP2PPort, params.Network))
		}
		if httpPort != MainnetPlatformHTTPPort {
			return errors.WithContext(ErrInvalidArgument, fmt.Sprintf("platform HTTP port must be %d on %s", MainnetPlatformHTTPPort, params.Network))
		}
	}
	if p2pPort == MainnetCorePort || httpPort == MainnetCorePort {
		return errors.WithContext(ErrInvalidArgument, fmt.Sprintf("platform ports must not use the core port %d", MainnetCorePort))
	}
	if p2pPort == httpPort || p2pPort == primary.Port || httpPort == primary.Port {
		return errors.WithContext(ErrInvalidArgument, "platform and core ports must be distinct")
	}
	return nil
}

func verifyKeys(tx *RegisterTx) error {
	switch {
	case tx.OwnerAddress.IsZero():
		return errors.WithContext(ErrInvalidArgument, "missing owner address")
	case tx.VotingAddress.IsZero():
		return errors.WithContext(ErrInvalidArgument, "missing voting address")
	case tx.PayoutAddress.IsZero():
		return errors.WithContext(ErrInvalidArgument, "missing payout address")
	case tx.OperatorPublicKey.IsZero():
		return errors.WithContext(ErrInvalidArgument, "missing operator public key")
	case tx.OperatorReward > MaxOperatorReward:
		return errors.WithContext(ErrInvalidArgument, fmt.Sprintf("operator reward %d exceeds %d", tx.OperatorReward, MaxOperatorReward))
	}

	// The collateral key must stay offline.
	if !tx.Collateral.Address.IsZero() {
		if tx.Collateral.Address.Equal(tx.OwnerAddress) || tx.Collateral.Address.Equal(tx.VotingAddress) {
			return ErrCollateralReuse
		}
	}
	return nil
}

func verifyPlatformNodeID(kind node.Kind, id *node.PlatformNodeID) error {
	switch kind {
	case node.KindEvo:
		if id == nil || id.IsZero() {
			return errors.WithContext(ErrAddressTopology, "Evo node requires a platform node id")
		}
	default:
		if id != nil {
			return errors.WithContext(ErrAddressTopology, fmt.Sprintf("%s node must not have a platform node id", kind))
		}
	}
	return nil
}
