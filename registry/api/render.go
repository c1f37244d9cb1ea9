package api

import (
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/keys"
	"github.com/kwvg/dash/common/node"
)

// RegisterTxView is the rendered registration transaction.
type RegisterTxView struct {
	Type            node.Kind `json:"type"`
	CollateralHash  hash.Hash `json:"collateralHash"`
	CollateralIndex uint32    `json:"collateralIndex"`

	*node.FieldView

	OwnerAddress   keys.Address           `json:"ownerAddress"`
	VotingAddress  keys.Address           `json:"votingAddress"`
	PayoutAddress  keys.Address           `json:"payoutAddress"`
	PubKeyOperator keys.OperatorPublicKey `json:"pubKeyOperator"`
	OperatorReward float64                `json:"operatorReward"`
	PlatformNodeID *node.PlatformNodeID   `json:"platformNodeID,omitempty"`
	ProviderID     hash.Hash              `json:"proTxHash"`
}

// UpdateServiceTxView is the rendered service update transaction.
type UpdateServiceTxView struct {
	ProTxHash hash.Hash `json:"proTxHash"`

	*node.FieldView

	PubKeyOperator *keys.OperatorPublicKey `json:"pubKeyOperator,omitempty"`
	PlatformNodeID *node.PlatformNodeID    `json:"platformNodeID,omitempty"`
}

// StatusView is the rendered live state of an entry.
type StatusView struct {
	ProTxHash         hash.Hash    `json:"proTxHash"`
	Type              node.Kind    `json:"type"`
	Status            Status       `json:"status"`
	CollateralHash    hash.Hash    `json:"collateralHash"`
	CollateralIndex   uint32       `json:"collateralIndex"`
	CollateralAddress keys.Address `json:"collateralAddress"`
	OperatorReward    float64      `json:"operatorReward"`

	State *StatusStateView `json:"state"`
}

// StatusStateView is the mutable part of the live state of an entry.
type StatusStateView struct {
	*node.FieldView

	RegisteredHeight int64                  `json:"registeredHeight"`
	UpdatedHeight    int64                  `json:"updatedHeight"`
	RetiredHeight    int64                  `json:"retiredHeight,omitempty"`
	RetiredBy        *hash.Hash             `json:"retiredBy,omitempty"`
	OwnerAddress     keys.Address           `json:"ownerAddress"`
	VotingAddress    keys.Address           `json:"votingAddress"`
	PayoutAddress    keys.Address           `json:"payoutAddress"`
	PubKeyOperator   keys.OperatorPublicKey `json:"pubKeyOperator"`
	PlatformNodeID   *node.PlatformNodeID   `json:"platformNodeID,omitempty"`
}

// Renderer renders registry objects through one compatibility mode fixed
// at construction.
type Renderer struct {
	mode  node.Mode
	codec ListDiffCodec
}

// Mode returns the compatibility mode of the renderer.
func (r *Renderer) Mode() node.Mode {
	return r.mode
}

// RegisterTx renders a registration transaction.
func (r *Renderer) RegisterTx(tx *RegisterTx) (*RegisterTxView, error) {
	fv, err := tx.Addresses.Render(node.SurfaceRegisterTx, r.mode)
	if err != nil {
		return nil, err
	}
	return &RegisterTxView{
		Type:            tx.Kind,
		CollateralHash:  tx.Collateral.Outpoint.TxID,
		CollateralIndex: tx.Collateral.Outpoint.Index,
		FieldView:       fv,
		OwnerAddress:    tx.OwnerAddress,
		VotingAddress:   tx.VotingAddress,
		PayoutAddress:   tx.PayoutAddress,
		PubKeyOperator:  tx.OperatorPublicKey,
		OperatorReward:  rewardPercent(tx.OperatorReward),
		PlatformNodeID:  tx.PlatformNodeID,
		ProviderID:      tx.ProviderID(),
	}, nil
}

// UpdateServiceTx renders a service update transaction.
func (r *Renderer) UpdateServiceTx(tx *UpdateServiceTx) (*UpdateServiceTxView, error) {
	fv, err := tx.Addresses.Render(node.SurfaceUpdateServiceTx, r.mode)
	if err != nil {
		return nil, err
	}
	return &UpdateServiceTxView{
		ProTxHash:      tx.ProviderID,
		FieldView:      fv,
		PubKeyOperator: tx.OperatorPublicKey,
		PlatformNodeID: tx.PlatformNodeID,
	}, nil
}

// Status renders the live state of an entry.
func (r *Renderer) Status(e *Entry) (*StatusView, error) {
	fv, err := e.Addresses.Render(node.SurfaceStatus, r.mode)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		ProTxHash:         e.ProviderID,
		Type:              e.Kind,
		Status:            e.Status,
		CollateralHash:    e.Collateral.Outpoint.TxID,
		CollateralIndex:   e.Collateral.Outpoint.Index,
		CollateralAddress: e.Collateral.Address,
		OperatorReward:    rewardPercent(e.OperatorReward),
		State: &StatusStateView{
			FieldView:        fv,
			RegisteredHeight: e.RegisteredHeight,
			UpdatedHeight:    e.UpdatedHeight,
			RetiredHeight:    e.RetiredHeight,
			RetiredBy:        e.RetiredBy,
			OwnerAddress:     e.OwnerAddress,
			VotingAddress:    e.VotingAddress,
			PayoutAddress:    e.PayoutAddress,
			PubKeyOperator:   e.OperatorPublicKey,
			PlatformNodeID:   e.PlatformNodeID,
		},
	}, nil
}

// ListDiff renders a list diff in the compact format.
func (r *Renderer) ListDiff(d *ListDiff) (*ListDiffView, error) {
	return r.codec.Encode(d, r.mode)
}

// NewRenderer creates a new renderer using the given compatibility mode.
func NewRenderer(mode node.Mode) *Renderer {
	return &Renderer{
		mode: mode,
	}
}

func rewardPercent(basisPoints uint16) float64 {
	return float64(basisPoints) / 100
}
