// Package memory implements the memory backed registry backend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/errors"
	"github.com/kwvg/dash/common/logging"
	"github.com/kwvg/dash/common/pubsub"
	"github.com/kwvg/dash/registry/api"
)

// BackendName is the name of this implementation.
const BackendName = "memory"

var _ api.Backend = (*memoryBackend)(nil)

type memoryBackend struct {
	logger *logging.Logger
	params *api.Params

	state memoryBackendState

	entryNotifier *pubsub.Broker
}

type memoryBackendState struct {
	sync.RWMutex

	height int64

	// entries is the tip entry set, every snapshot is a lazy clone of it.
	entries   *btree.BTreeG[*api.Entry]
	snapshots *btree.BTreeG[*snapshot]

	claims *claims

	// lastBacked maps each outpoint to the last entry it backed.
	lastBacked map[collateral.Outpoint]hash.Hash
	// spent maps spent outpoints to the spending transaction.
	spent map[collateral.Outpoint]hash.Hash
}

func (r *memoryBackend) Register(ctx context.Context, height int64, tx *api.RegisterTx) (hash.Hash, error) {
	if err := api.VerifyRegisterArgs(r.logger, r.params, tx); err != nil {
		return hash.Hash{}, err
	}
	id := tx.ProviderID()
	outpoint := tx.Collateral.Outpoint

	r.state.Lock()
	defer r.state.Unlock()

	if err := r.checkHeightLocked(height); err != nil {
		return hash.Hash{}, err
	}
	if r.state.entries.Has(entryKey(id)) {
		r.logger.Error("Register: provider already registered",
			"provider_id", id,
		)
		return hash.Hash{}, errors.WithContext(api.ErrInvalidArgument, "provider already registered")
	}
	if spentBy, ok := r.state.spent[outpoint]; ok {
		r.logger.Error("Register: collateral already spent",
			"collateral", outpoint,
			"spent_by", spentBy,
		)
		return hash.Hash{}, api.ErrCollateralSpent
	}

	entry := tx.NewEntry(height)
	if err := r.state.claims.check(entry); err != nil {
		r.logger.Error("Register: unique property already claimed",
			"provider_id", id,
			"err", err,
		)
		return hash.Hash{}, err
	}

	r.state.entries.ReplaceOrInsert(entry)
	r.state.claims.claim(entry)
	r.state.lastBacked[outpoint] = id
	r.commitLocked(height)

	r.logger.Debug("Register: registered",
		"provider_id", id,
		"kind", entry.Kind,
		"collateral", outpoint,
		"height", height,
	)

	r.notifyLocked(api.EventRegistered, height, entry)

	return id, nil
}

func (r *memoryBackend) UpdateService(ctx context.Context, height int64, tx *api.UpdateServiceTx) error {
	if tx == nil {
		return api.ErrInvalidArgument
	}

	r.state.Lock()
	defer r.state.Unlock()

	if err := r.checkHeightLocked(height); err != nil {
		return err
	}
	existing, ok := r.state.entries.Get(entryKey(tx.ProviderID))
	if !ok {
		return api.ErrNotFound
	}
	if err := api.VerifyUpdateServiceArgs(r.logger, r.params, existing, tx); err != nil {
		return err
	}

	entry := existing.Clone()
	entry.Addresses = *tx.Addresses.Clone()
	if tx.OperatorPublicKey != nil {
		entry.OperatorPublicKey = *tx.OperatorPublicKey
	}
	if tx.PlatformNodeID != nil {
		id := *tx.PlatformNodeID
		entry.PlatformNodeID = &id
	}
	entry.UpdatedHeight = height

	if err := r.state.claims.check(entry); err != nil {
		r.logger.Error("UpdateService: unique property already claimed",
			"provider_id", tx.ProviderID,
			"err", err,
		)
		return err
	}

	r.state.claims.release(existing)
	r.state.claims.claim(entry)
	r.state.entries.ReplaceOrInsert(entry)
	r.commitLocked(height)

	r.logger.Debug("UpdateService: updated",
		"provider_id", tx.ProviderID,
		"addresses", entry.Addresses.String(),
		"height", height,
	)

	r.notifyLocked(api.EventUpdated, height, entry)

	return nil
}

func (r *memoryBackend) CollateralSpent(ctx context.Context, height int64, outpoint collateral.Outpoint, spentBy hash.Hash) error {
	r.state.Lock()
	defer r.state.Unlock()

	if err := r.checkHeightLocked(height); err != nil {
		return err
	}
	if prev, ok := r.state.spent[outpoint]; ok {
		r.logger.Error("CollateralSpent: outpoint already spent",
			"collateral", outpoint,
			"spent_by", prev,
		)
		return api.ErrCollateralSpent
	}
	r.state.spent[outpoint] = spentBy

	var entry *api.Entry
	if id, ok := r.state.claims.collateral[outpoint]; ok {
		existing, _ := r.state.entries.Get(entryKey(id))

		entry = existing.Clone()
		entry.Status = api.StatusRetired
		entry.RetiredHeight = height
		entry.RetiredBy = &spentBy
		entry.UpdatedHeight = height

		r.state.claims.release(existing)
		r.state.entries.ReplaceOrInsert(entry)
	}
	r.commitLocked(height)

	if entry == nil {
		r.logger.Debug("CollateralSpent: outpoint backs no active entry",
			"collateral", outpoint,
			"height", height,
		)
		return nil
	}

	r.logger.Info("CollateralSpent: entry retired",
		logging.LogEvent, api.LogEventEntryRetired,
		"provider_id", entry.ProviderID,
		"collateral", outpoint,
		"spent_by", spentBy,
		"height", height,
	)

	r.notifyLocked(api.EventRetired, height, entry)

	return nil
}

func (r *memoryBackend) CollateralUnspent(ctx context.Context, height int64, outpoint collateral.Outpoint) error {
	r.state.Lock()
	defer r.state.Unlock()

	if err := r.checkHeightLocked(height); err != nil {
		return err
	}
	spentBy, ok := r.state.spent[outpoint]
	if !ok {
		r.logger.Debug("CollateralUnspent: outpoint not spent",
			"collateral", outpoint,
		)
		return nil
	}

	// Restore the entry only if this spend is what retired it.
	var entry *api.Entry
	if id, ok := r.state.lastBacked[outpoint]; ok {
		existing, _ := r.state.entries.Get(entryKey(id))
		if !existing.IsActive() && existing.RetiredBy != nil && existing.RetiredBy.Equal(&spentBy) {
			entry = existing.Clone()
			entry.Status = api.StatusActive
			entry.RetiredHeight = 0
			entry.RetiredBy = nil
			entry.UpdatedHeight = height

			if err := r.state.claims.check(entry); err != nil {
				r.logger.Error("CollateralUnspent: unique property claimed since retirement",
					"provider_id", id,
					"err", err,
				)
				return err
			}
		}
	}

	delete(r.state.spent, outpoint)
	if entry != nil {
		r.state.claims.claim(entry)
		r.state.entries.ReplaceOrInsert(entry)
	}
	r.commitLocked(height)

	if entry == nil {
		return nil
	}

	r.logger.Info("CollateralUnspent: entry restored",
		logging.LogEvent, api.LogEventEntryRestored,
		"provider_id", entry.ProviderID,
		"collateral", outpoint,
		"height", height,
	)

	r.notifyLocked(api.EventRestored, height, entry)

	return nil
}

func (r *memoryBackend) ApplyEvent(ctx context.Context, ev *api.ChainEvent) error {
	if ev == nil {
		return api.ErrInvalidArgument
	}
	if err := ev.ValidateBasic(); err != nil {
		return err
	}

	switch ev.Kind {
	case api.ChainEventRegister:
		_, err := r.Register(ctx, ev.Height, ev.Register)
		return err
	case api.ChainEventUpdateService:
		return r.UpdateService(ctx, ev.Height, ev.UpdateService)
	case api.ChainEventCollateralSpent:
		return r.CollateralSpent(ctx, ev.Height, *ev.Outpoint, *ev.SpentBy)
	case api.ChainEventCollateralUnspent:
		return r.CollateralUnspent(ctx, ev.Height, *ev.Outpoint)
	default:
		return fmt.Errorf("%w: unsupported chain event %s", api.ErrInvalidArgument, ev.Kind)
	}
}

func (r *memoryBackend) GetEntry(ctx context.Context, id hash.Hash) (*api.Entry, error) {
	r.state.RLock()
	defer r.state.RUnlock()

	entry, ok := r.state.entries.Get(entryKey(id))
	if !ok {
		return nil, api.ErrNotFound
	}

	return entry.Clone(), nil
}

func (r *memoryBackend) GetEntryByCollateral(ctx context.Context, outpoint collateral.Outpoint) (*api.Entry, error) {
	r.state.RLock()
	defer r.state.RUnlock()

	id, ok := r.state.lastBacked[outpoint]
	if !ok {
		return nil, api.ErrNotFound
	}
	entry, _ := r.state.entries.Get(entryKey(id))

	return entry.Clone(), nil
}

func (r *memoryBackend) GetEntries(ctx context.Context, filter *api.Filter) ([]*api.Entry, error) {
	r.state.RLock()
	defer r.state.RUnlock()

	ret := make([]*api.Entry, 0, r.state.entries.Len())
	r.state.entries.Ascend(func(e *api.Entry) bool {
		if filter.Matches(e) {
			ret = append(ret, e.Clone())
		}
		return true
	})

	return ret, nil
}

func (r *memoryBackend) Height(ctx context.Context) (int64, error) {
	r.state.RLock()
	defer r.state.RUnlock()

	return r.state.height, nil
}

func (r *memoryBackend) Diff(ctx context.Context, baseHeight, height int64) (*api.ListDiff, error) {
	if baseHeight > height {
		return nil, fmt.Errorf("%w: base height %d above height %d", api.ErrInvalidArgument, baseHeight, height)
	}

	r.state.RLock()
	defer r.state.RUnlock()

	base, err := r.snapshotAtLocked(baseHeight)
	if err != nil {
		return nil, err
	}
	target, err := r.snapshotAtLocked(height)
	if err != nil {
		return nil, err
	}

	diff := &api.ListDiff{
		BaseHeight: baseHeight,
		Height:     height,
	}
	diff.Added, diff.Removed, diff.Updated = diffTrees(base.entries, target.entries)

	return diff, nil
}

func (r *memoryBackend) PruneSnapshots(ctx context.Context, keep uint64) (int, error) {
	if keep == 0 {
		return 0, fmt.Errorf("%w: must keep at least one snapshot", api.ErrInvalidArgument)
	}

	r.state.Lock()
	defer r.state.Unlock()

	return r.pruneLocked(keep), nil
}

func (r *memoryBackend) WatchEntries(ctx context.Context) (<-chan *api.EntryEvent, pubsub.ClosableSubscription, error) {
	typedCh := make(chan *api.EntryEvent)
	sub := r.entryNotifier.Subscribe()
	sub.Unwrap(typedCh)

	return typedCh, sub, nil
}

func (r *memoryBackend) Cleanup() {
}

// checkHeightLocked rejects heights below the tip. Height 0 is reserved for
// the empty registry seeded by New.
func (r *memoryBackend) checkHeightLocked(height int64) error {
	if height < 1 {
		return fmt.Errorf("%w: height %d below the first block", api.ErrInvalidArgument, height)
	}
	if height < r.state.height {
		r.logger.Error("event below registry tip",
			"height", height,
			"tip", r.state.height,
		)
		return errors.WithContext(api.ErrOutOfOrder, fmt.Sprintf("height %d below tip %d", height, r.state.height))
	}
	return nil
}

// commitLocked advances the tip to height and records its snapshot.
func (r *memoryBackend) commitLocked(height int64) {
	r.state.height = height
	r.state.snapshots.ReplaceOrInsert(&snapshot{
		height:  height,
		entries: r.state.entries.Clone(),
	})

	if r.params.MaxSnapshots > 0 {
		r.pruneLocked(r.params.MaxSnapshots)
	}
}

func (r *memoryBackend) pruneLocked(keep uint64) int {
	var pruned int
	for uint64(r.state.snapshots.Len()) > keep {
		r.state.snapshots.DeleteMin()
		pruned++
	}
	if pruned > 0 {
		r.logger.Debug("pruned snapshots",
			"pruned", pruned,
			"kept", r.state.snapshots.Len(),
		)
	}
	return pruned
}

func (r *memoryBackend) snapshotAtLocked(height int64) (*snapshot, error) {
	if height > r.state.height || height < 0 {
		return nil, errors.WithContext(api.ErrNoSuchHeight, fmt.Sprintf("height %d outside [0, %d]", height, r.state.height))
	}

	var found *snapshot
	r.state.snapshots.DescendLessOrEqual(&snapshot{height: height}, func(s *snapshot) bool {
		found = s
		return false
	})
	if found == nil {
		return nil, errors.WithContext(api.ErrNoSuchHeight, fmt.Sprintf("height %d pruned", height))
	}
	return found, nil
}

func (r *memoryBackend) notifyLocked(kind api.EventKind, height int64, entry *api.Entry) {
	r.entryNotifier.Broadcast(&api.EntryEvent{
		Kind:   kind,
		Height: height,
		Entry:  entry.Clone(),
	})
}

// New constructs a new memory backed registry Backend instance.
func New(params *api.Params) (api.Backend, error) {
	if err := params.SanityCheck(); err != nil {
		return nil, err
	}

	r := &memoryBackend{
		logger: logging.GetLogger("registry/memory"),
		params: params,
		state: memoryBackendState{
			entries:    newEntryTree(),
			snapshots:  btree.NewG(treeDegree, snapshotLess),
			claims:     newClaims(),
			lastBacked: make(map[collateral.Outpoint]hash.Hash),
			spent:      make(map[collateral.Outpoint]hash.Hash),
		},
		entryNotifier: pubsub.NewBroker(false),
	}
	r.state.snapshots.ReplaceOrInsert(&snapshot{
		height:  0,
		entries: r.state.entries.Clone(),
	})

	return r, nil
}
