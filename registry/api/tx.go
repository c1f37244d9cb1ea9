package api

import (
	"fmt"

	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/keys"
	"github.com/kwvg/dash/common/node"
)

// MaxOperatorReward is the maximum operator reward in basis points.
const MaxOperatorReward = 10000

// RegisterTx is a confirmed provider registration transaction.
type RegisterTx struct {
	// Kind is the kind of the node being registered.
	Kind node.Kind `json:"kind"`
	// Collateral is the output backing the node, as resolved by the chain.
	Collateral collateral.Ref `json:"collateral"`
	// Addresses is the set of endpoints the node advertises.
	Addresses node.AddressSet `json:"addresses"`

	OwnerAddress      keys.Address           `json:"owner_address"`
	OperatorPublicKey keys.OperatorPublicKey `json:"operator_public_key"`
	VotingAddress     keys.Address           `json:"voting_address"`
	OperatorReward    uint16                 `json:"operator_reward"`
	PayoutAddress     keys.Address           `json:"payout_address"`

	// PlatformNodeID is the platform network identifier (Evo only).
	PlatformNodeID *node.PlatformNodeID `json:"platform_node_id,omitempty"`

	// FundsAddress is the address that paid the transaction fee.
	FundsAddress keys.Address `json:"funds_address"`
}

// ProviderID returns the provider id the registration yields, the hash of
// the transaction's canonical encoding.
func (tx *RegisterTx) ProviderID() hash.Hash {
	return hash.NewFrom(tx)
}

// NewEntry creates the active entry the registration yields at height.
func (tx *RegisterTx) NewEntry(height int64) *Entry {
	e := &Entry{
		ProviderID:        tx.ProviderID(),
		Kind:              tx.Kind,
		Collateral:        tx.Collateral,
		OwnerAddress:      tx.OwnerAddress,
		VotingAddress:     tx.VotingAddress,
		PayoutAddress:     tx.PayoutAddress,
		OperatorReward:    tx.OperatorReward,
		OperatorPublicKey: tx.OperatorPublicKey,
		Addresses:         *tx.Addresses.Clone(),
		Status:            StatusActive,
		RegisteredHeight:  height,
		UpdatedHeight:     height,
	}
	if tx.PlatformNodeID != nil {
		id := *tx.PlatformNodeID
		e.PlatformNodeID = &id
	}
	return e
}

// UpdateServiceTx is a confirmed service update transaction.
type UpdateServiceTx struct {
	// ProviderID is the entry being updated.
	ProviderID hash.Hash `json:"provider_id"`
	// Addresses is the new set of advertised endpoints.
	Addresses node.AddressSet `json:"addresses"`
	// OperatorPublicKey optionally rotates the operator key.
	OperatorPublicKey *keys.OperatorPublicKey `json:"operator_public_key,omitempty"`
	// PlatformNodeID optionally replaces the platform node id (Evo only).
	PlatformNodeID *node.PlatformNodeID `json:"platform_node_id,omitempty"`
}

// TxID returns the identifier of the transaction.
func (tx *UpdateServiceTx) TxID() hash.Hash {
	return hash.NewFrom(tx)
}

// ChainEventKind is the kind of a confirmed chain event.
type ChainEventKind uint8

const (
	// ChainEventRegister is a confirmed registration.
	ChainEventRegister ChainEventKind = iota + 1
	// ChainEventUpdateService is a confirmed service update.
	ChainEventUpdateService
	// ChainEventCollateralSpent is a confirmed spend of an output.
	ChainEventCollateralSpent
	// ChainEventCollateralUnspent is a reverted spend of an output.
	ChainEventCollateralUnspent
)

// String returns the string representation of a ChainEventKind.
func (k ChainEventKind) String() string {
	switch k {
	case ChainEventRegister:
		return "register"
	case ChainEventUpdateService:
		return "update_service"
	case ChainEventCollateralSpent:
		return "collateral_spent"
	case ChainEventCollateralUnspent:
		return "collateral_unspent"
	default:
		return "[unknown chain event]"
	}
}

// ChainEvent is a single confirmed change of chain state that drives a
// registry transition.
type ChainEvent struct {
	Kind   ChainEventKind `json:"kind"`
	Height int64          `json:"height"`

	Register      *RegisterTx      `json:"register,omitempty"`
	UpdateService *UpdateServiceTx `json:"update_service,omitempty"`

	// Outpoint is the spent or unspent output.
	Outpoint *collateral.Outpoint `json:"outpoint,omitempty"`
	// SpentBy is the spending transaction.
	SpentBy *hash.Hash `json:"spent_by,omitempty"`
}

// ValidateBasic checks that exactly the payload matching the event kind
// is present.
func (ev *ChainEvent) ValidateBasic() error {
	if ev.Height < 1 {
		return fmt.Errorf("%w: height %d below the first block", ErrInvalidArgument, ev.Height)
	}

	var ok bool
	switch ev.Kind {
	case ChainEventRegister:
		ok = ev.Register != nil && ev.UpdateService == nil && ev.Outpoint == nil
	case ChainEventUpdateService:
		ok = ev.UpdateService != nil && ev.Register == nil && ev.Outpoint == nil
	case ChainEventCollateralSpent:
		ok = ev.Outpoint != nil && ev.SpentBy != nil && ev.Register == nil && ev.UpdateService == nil
	case ChainEventCollateralUnspent:
		ok = ev.Outpoint != nil && ev.Register == nil && ev.UpdateService == nil
	default:
		return fmt.Errorf("%w: unknown chain event kind %d", ErrInvalidArgument, ev.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: malformed %s event", ErrInvalidArgument, ev.Kind)
	}
	return nil
}

// NewRegisterEvent creates a registration chain event.
func NewRegisterEvent(height int64, tx *RegisterTx) *ChainEvent {
	return &ChainEvent{Kind: ChainEventRegister, Height: height, Register: tx}
}

// NewUpdateServiceEvent creates a service update chain event.
func NewUpdateServiceEvent(height int64, tx *UpdateServiceTx) *ChainEvent {
	return &ChainEvent{Kind: ChainEventUpdateService, Height: height, UpdateService: tx}
}

// NewCollateralSpentEvent creates a spend chain event.
func NewCollateralSpentEvent(height int64, outpoint collateral.Outpoint, spentBy hash.Hash) *ChainEvent {
	return &ChainEvent{Kind: ChainEventCollateralSpent, Height: height, Outpoint: &outpoint, SpentBy: &spentBy}
}

// NewCollateralUnspentEvent creates a reverted spend chain event.
func NewCollateralUnspentEvent(height int64, outpoint collateral.Outpoint) *ChainEvent {
	return &ChainEvent{Kind: ChainEventCollateralUnspent, Height: height, Outpoint: &outpoint}
}
