package api

import (
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/keys"
	"github.com/kwvg/dash/common/node"
)

// ListEntryView is the compact list entry served to light clients.
type ListEntryView struct {
	ProRegTxHash    hash.Hash `json:"proRegTxHash"`
	Type            node.Kind `json:"type"`
	CollateralHash  hash.Hash `json:"collateralHash"`
	CollateralIndex uint32    `json:"collateralIndex"`

	*node.FieldView

	PubKeyOperator keys.OperatorPublicKey `json:"pubKeyOperator"`
	VotingAddress  keys.Address           `json:"votingAddress"`
	PayoutAddress  keys.Address           `json:"payoutAddress"`
	IsValid        bool                   `json:"isValid"`
	PlatformNodeID *node.PlatformNodeID   `json:"platformNodeID,omitempty"`
}

// ListDiffView is the compact list diff served to light clients.
type ListDiffView struct {
	BaseHeight int64 `json:"baseHeight"`
	Height     int64 `json:"height"`

	// DeletedMNs are the provider ids no longer in the active list.
	DeletedMNs []hash.Hash `json:"deletedMNs"`
	// MNList are the added and updated entries.
	MNList []*ListEntryView `json:"mnList"`
}

// ListDiffCodec encodes registry entries into the compact list format.
//
// The format has no room for the platform P2P endpoint, it is dropped in
// every mode.
type ListDiffCodec struct{}

// EncodeEntry encodes a single entry.
func (ListDiffCodec) EncodeEntry(e *Entry, mode node.Mode) (*ListEntryView, error) {
	fv, err := e.Addresses.Render(node.SurfaceListDiff, mode)
	if err != nil {
		return nil, err
	}
	return &ListEntryView{
		ProRegTxHash:    e.ProviderID,
		Type:            e.Kind,
		CollateralHash:  e.Collateral.Outpoint.TxID,
		CollateralIndex: e.Collateral.Outpoint.Index,
		FieldView:       fv,
		PubKeyOperator:  e.OperatorPublicKey,
		VotingAddress:   e.VotingAddress,
		PayoutAddress:   e.PayoutAddress,
		IsValid:         e.IsActive(),
		PlatformNodeID:  e.PlatformNodeID,
	}, nil
}

// Encode encodes a list diff.
func (c ListDiffCodec) Encode(d *ListDiff, mode node.Mode) (*ListDiffView, error) {
	v := &ListDiffView{
		BaseHeight: d.BaseHeight,
		Height:     d.Height,
		DeletedMNs: append([]hash.Hash{}, d.Removed...),
		MNList:     make([]*ListEntryView, 0, len(d.Added)+len(d.Updated)),
	}
	for _, e := range d.Added {
		ev, err := c.EncodeEntry(e, mode)
		if err != nil {
			return nil, err
		}
		v.MNList = append(v.MNList, ev)
	}
	for _, u := range d.Updated {
		ev, err := c.EncodeEntry(u.Entry, mode)
		if err != nil {
			return nil, err
		}
		v.MNList = append(v.MNList, ev)
	}
	return v, nil
}
