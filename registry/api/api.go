// Package api implements the masternode registry API.
package api

import (
	"context"
	"fmt"

	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/errors"
	"github.com/kwvg/dash/common/keys"
	"github.com/kwvg/dash/common/node"
	"github.com/kwvg/dash/common/pubsub"
)

// ModuleName is a unique module name for the registry module.
const ModuleName = "registry"

const (
	// LogEventEntryRetired is a log event value emitted when a spend of the
	// collateral retires an entry.
	LogEventEntryRetired = "registry/entry_retired"
	// LogEventEntryRestored is a log event value emitted when a reverted
	// spend restores a retired entry.
	LogEventEntryRestored = "registry/entry_restored"
)

var (
	// ErrInvalidArgument is the error returned on malformed argument(s).
	ErrInvalidArgument = errors.New(ModuleName, 1, "registry: invalid argument")
	// ErrCollateralMismatch is the error returned when the collateral value
	// does not match the tier required by the node kind.
	ErrCollateralMismatch = errors.New(ModuleName, 2, "registry: collateral mismatch")
	// ErrDuplicateCollateral is the error returned when the collateral
	// already backs an active entry.
	ErrDuplicateCollateral = errors.New(ModuleName, 3, "registry: duplicate collateral")
	// ErrAddressTopology is the error returned when the address fields do
	// not match the node kind.
	ErrAddressTopology = errors.New(ModuleName, 4, "registry: address topology error")
	// ErrNotFound is the error returned when an entry does not exist.
	ErrNotFound = errors.New(ModuleName, 5, "registry: no such entry")
	// ErrNotActive is the error returned when an operation targets a
	// retired entry.
	ErrNotActive = errors.New(ModuleName, 6, "registry: entry not active")
	// ErrDuplicateAddress is the error returned when a network endpoint is
	// already used by another active entry.
	ErrDuplicateAddress = errors.New(ModuleName, 7, "registry: duplicate network address")
	// ErrDuplicatePlatformNodeID is the error returned when a platform node
	// identifier is already used by another active entry.
	ErrDuplicatePlatformNodeID = errors.New(ModuleName, 8, "registry: duplicate platform node ID")
	// ErrDuplicateKey is the error returned when the owner address or the
	// operator key is already used by another active entry.
	ErrDuplicateKey = errors.New(ModuleName, 9, "registry: duplicate key")
	// ErrCollateralReuse is the error returned when the collateral key is
	// reused as the owner or voting key.
	ErrCollateralReuse = errors.New(ModuleName, 10, "registry: collateral key reused")
	// ErrCollateralSpent is the error returned when the collateral output
	// has already been spent.
	ErrCollateralSpent = errors.New(ModuleName, 11, "registry: collateral already spent")
	// ErrOutOfOrder is the error returned when an event is older than the
	// registry tip.
	ErrOutOfOrder = errors.New(ModuleName, 12, "registry: event out of order")
	// ErrNoSuchHeight is the error returned when no snapshot is available
	// for a height.
	ErrNoSuchHeight = errors.New(ModuleName, 13, "registry: no such height")
)

// Status is the lifecycle status of a registry entry.
type Status uint8

const (
	// StatusActive is the status of an entry backed by unspent collateral.
	StatusActive Status = 0
	// StatusRetired is the status of an entry whose collateral was spent.
	StatusRetired Status = 1
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRetired:
		return "retired"
	default:
		return "[unknown status]"
	}
}

// MarshalText encodes a Status into text form.
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case StatusActive, StatusRetired:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("registry: invalid status: %d", s)
	}
}

// UnmarshalText decodes a text slice into a Status.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*s = StatusActive
	case "retired":
		*s = StatusRetired
	default:
		return fmt.Errorf("registry: invalid status: %s", string(text))
	}
	return nil
}

// Entry is the registry state of a single masternode.
type Entry struct {
	// ProviderID is the hash of the registering transaction.
	ProviderID hash.Hash `json:"provider_id"`
	// Kind is the masternode kind.
	Kind node.Kind `json:"kind"`
	// Collateral is the output backing the entry.
	Collateral collateral.Ref `json:"collateral"`

	// OwnerAddress is the address of the owner key.
	OwnerAddress keys.Address `json:"owner_address"`
	// VotingAddress is the address of the voting key.
	VotingAddress keys.Address `json:"voting_address"`
	// PayoutAddress is the destination of the owner's share of rewards.
	PayoutAddress keys.Address `json:"payout_address"`
	// OperatorReward is the operator's share of rewards in basis points.
	OperatorReward uint16 `json:"operator_reward"`
	// OperatorPublicKey is the operator's BLS public key.
	OperatorPublicKey keys.OperatorPublicKey `json:"operator_public_key"`

	// PlatformNodeID is the platform network identifier (Evo only).
	PlatformNodeID *node.PlatformNodeID `json:"platform_node_id,omitempty"`
	// Addresses is the canonical set of advertised endpoints.
	Addresses node.AddressSet `json:"addresses"`

	// Status is the entry status.
	Status Status `json:"status"`
	// RegisteredHeight is the height of the registering transaction.
	RegisteredHeight int64 `json:"registered_height"`
	// UpdatedHeight is the height of the last change to the entry.
	UpdatedHeight int64 `json:"updated_height"`
	// RetiredHeight is the height at which the collateral was spent.
	RetiredHeight int64 `json:"retired_height,omitempty"`
	// RetiredBy is the transaction that spent the collateral.
	RetiredBy *hash.Hash `json:"retired_by,omitempty"`
}

// IsActive returns true iff the entry is active.
func (e *Entry) IsActive() bool {
	return e.Status == StatusActive
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	clone := *e
	clone.Addresses = *e.Addresses.Clone()
	if e.PlatformNodeID != nil {
		id := *e.PlatformNodeID
		clone.PlatformNodeID = &id
	}
	if e.RetiredBy != nil {
		h := *e.RetiredBy
		clone.RetiredBy = &h
	}
	return &clone
}

// ValidateBasic performs the stateless checks on the entry.
func (e *Entry) ValidateBasic() error {
	if e.ProviderID.IsZero() {
		return fmt.Errorf("%w: missing provider id", ErrInvalidArgument)
	}
	if err := e.Collateral.ValidateFor(e.Kind); err != nil {
		return errors.WithContext(ErrCollateralMismatch, err.Error())
	}
	if err := e.Addresses.ValidateTopology(e.Kind); err != nil {
		return errors.WithContext(ErrAddressTopology, err.Error())
	}
	if (e.Kind == node.KindEvo) != (e.PlatformNodeID != nil) {
		return errors.WithContext(ErrAddressTopology, "platform node id must be present iff the node is Evo")
	}
	return nil
}

// FieldMask is a set of entry fields changed between two snapshots.
type FieldMask uint8

const (
	// FieldStatus is set when the entry status changed.
	FieldStatus FieldMask = 1 << iota
	// FieldAddresses is set when the advertised endpoints changed.
	FieldAddresses
	// FieldOperatorKey is set when the operator key changed.
	FieldOperatorKey
	// FieldPlatformNodeID is set when the platform node id changed.
	FieldPlatformNodeID
)

// Has returns true iff all fields in other are set.
func (m FieldMask) Has(other FieldMask) bool {
	return m&other == other
}

// String returns a string representation of the field mask.
func (m FieldMask) String() string {
	var s string
	for _, f := range []struct {
		bit  FieldMask
		name string
	}{
		{FieldStatus, "status"},
		{FieldAddresses, "addresses"},
		{FieldOperatorKey, "operator_key"},
		{FieldPlatformNodeID, "platform_node_id"},
	} {
		if m.Has(f.bit) {
			if s != "" {
				s += "|"
			}
			s += f.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// ChangedFields returns the fields that differ between two states of the
// same entry.
func ChangedFields(a, b *Entry) FieldMask {
	var m FieldMask
	if a.Status != b.Status {
		m |= FieldStatus
	}
	if !a.Addresses.Equal(&b.Addresses) {
		m |= FieldAddresses
	}
	if a.OperatorPublicKey != b.OperatorPublicKey {
		m |= FieldOperatorKey
	}
	switch {
	case a.PlatformNodeID == nil && b.PlatformNodeID == nil:
	case a.PlatformNodeID == nil || b.PlatformNodeID == nil, *a.PlatformNodeID != *b.PlatformNodeID:
		m |= FieldPlatformNodeID
	}
	return m
}

// UpdatedEntry is an entry that changed between two snapshots.
type UpdatedEntry struct {
	Entry  *Entry    `json:"entry"`
	Fields FieldMask `json:"fields"`
}

// ListDiff is the change between the active lists at two heights.
type ListDiff struct {
	// BaseHeight is the height of the base snapshot.
	BaseHeight int64 `json:"base_height"`
	// Height is the height of the target snapshot.
	Height int64 `json:"height"`

	// Added are the entries active at Height but not at BaseHeight.
	Added []*Entry `json:"added"`
	// Removed are the entries active at BaseHeight but not at Height.
	Removed []hash.Hash `json:"removed"`
	// Updated are the entries active at both heights whose fields changed.
	Updated []*UpdatedEntry `json:"updated"`
}

// IsEmpty returns true iff nothing changed.
func (d *ListDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}

// Filter is a predicate over registry entries. Unset fields match
// everything.
type Filter struct {
	Kind   *node.Kind `json:"kind,omitempty"`
	Status *Status    `json:"status,omitempty"`
}

// Matches returns true iff the entry satisfies the filter.
func (f *Filter) Matches(e *Entry) bool {
	if f == nil {
		return true
	}
	if f.Kind != nil && e.Kind != *f.Kind {
		return false
	}
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	return true
}

// EventKind is the kind of an entry event.
type EventKind uint8

const (
	// EventRegistered is emitted when an entry is created.
	EventRegistered EventKind = iota + 1
	// EventUpdated is emitted when an entry's service fields change.
	EventUpdated
	// EventRetired is emitted when an entry's collateral is spent.
	EventRetired
	// EventRestored is emitted when a spend retiring an entry is reverted.
	EventRestored
)

// String returns the string representation of an EventKind.
func (k EventKind) String() string {
	switch k {
	case EventRegistered:
		return "registered"
	case EventUpdated:
		return "updated"
	case EventRetired:
		return "retired"
	case EventRestored:
		return "restored"
	default:
		return "[unknown event]"
	}
}

// EntryEvent is the event that is returned via WatchEntries to signify
// entry changes.
type EntryEvent struct {
	Kind   EventKind `json:"kind"`
	Height int64     `json:"height"`
	Entry  *Entry    `json:"entry"`
}

// Backend is a registry implementation.
type Backend interface {
	// Register applies a confirmed registration transaction and returns
	// the provider id of the new entry.
	Register(ctx context.Context, height int64, tx *RegisterTx) (hash.Hash, error)

	// UpdateService applies a confirmed service update transaction.
	UpdateService(ctx context.Context, height int64, tx *UpdateServiceTx) error

	// CollateralSpent retires the entry backed by the given outpoint.
	//
	// Spends of outpoints that back no entry are ignored.
	CollateralSpent(ctx context.Context, height int64, outpoint collateral.Outpoint, spentBy hash.Hash) error

	// CollateralUnspent reverts a spend after a chain reorganization,
	// restoring the entry it retired to its last known state.
	CollateralUnspent(ctx context.Context, height int64, outpoint collateral.Outpoint) error

	// ApplyEvent dispatches a confirmed chain event to the matching
	// transition.
	ApplyEvent(ctx context.Context, ev *ChainEvent) error

	// GetEntry gets an entry by provider id.
	GetEntry(ctx context.Context, id hash.Hash) (*Entry, error)

	// GetEntryByCollateral gets the entry currently or last backed by the
	// given outpoint.
	GetEntryByCollateral(ctx context.Context, outpoint collateral.Outpoint) (*Entry, error)

	// GetEntries gets all entries matching the filter, ordered by
	// provider id.
	GetEntries(ctx context.Context, filter *Filter) ([]*Entry, error)

	// Height returns the height of the last applied event.
	Height(ctx context.Context) (int64, error)

	// Diff computes the change of the active list between two heights.
	Diff(ctx context.Context, baseHeight, height int64) (*ListDiff, error)

	// PruneSnapshots drops snapshots below the retention window, keeping
	// the given number of most recent heights.
	PruneSnapshots(ctx context.Context, keep uint64) (int, error)

	// WatchEntries returns a channel that produces a stream of EntryEvent
	// on entry changes.
	WatchEntries(ctx context.Context) (<-chan *EntryEvent, pubsub.ClosableSubscription, error)

	// Cleanup cleans up the registry backend.
	Cleanup()
}
