// Package tests is a collection of registry implementation test cases.
package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/node"
	"github.com/kwvg/dash/registry/api"
	"github.com/kwvg/dash/registry/api/fixtures"
)

const recvTimeout = 5 * time.Second

func mustRegisterTx(t *testing.T, kind node.Kind, seed byte, in node.EndpointInput) *api.RegisterTx {
	tx, err := fixtures.NewRegisterTx(kind, seed, in)
	require.NoError(t, err, "NewRegisterTx")
	return tx
}

// EnsureRegistryEmpty enforces that the registry has no entries.
func EnsureRegistryEmpty(t *testing.T, backend api.Backend) {
	entries, err := backend.GetEntries(context.Background(), nil)
	require.NoError(t, err, "GetEntries")
	require.Len(t, entries, 0, "registry must be empty")
}

// RegistryImplementationTests exercises the basic functionality of a
// registry backend.
//
// WARNING: This assumes that the registry is empty and its network allows
// unroutable addresses. It leaves entries registered and the tip advanced.
func RegistryImplementationTests(t *testing.T, backend api.Backend) {
	EnsureRegistryEmpty(t, backend)

	ctx := context.Background()

	ch, sub, err := backend.WatchEntries(ctx)
	require.NoError(t, err, "WatchEntries")
	defer sub.Close()

	expectEvent := func(t *testing.T, kind api.EventKind, id hash.Hash) *api.EntryEvent {
		select {
		case ev := <-ch:
			require.Equal(t, kind, ev.Kind, "event kind")
			require.Equal(t, id, ev.Entry.ProviderID, "event entry")
			return ev
		case <-time.After(recvTimeout):
			t.Fatalf("failed to receive %s event", kind)
		}
		return nil
	}

	regular := mustRegisterTx(t, node.KindRegular, 1, fixtures.RegularInput(9998))
	evo := mustRegisterTx(t, node.KindEvo, 2, fixtures.EvoInput(9997, 19998, 29998))

	var regularID, evoID hash.Hash

	t.Run("GenesisHeight", func(t *testing.T) {
		require := require.New(t)

		_, err := backend.Register(ctx, 0, regular)
		require.ErrorIs(err, api.ErrInvalidArgument, "Register at height 0")
		err = backend.CollateralSpent(ctx, 0, regular.Collateral.Outpoint, hash.NewFromBytes([]byte("spend")))
		require.ErrorIs(err, api.ErrInvalidArgument, "CollateralSpent at height 0")
		err = backend.CollateralUnspent(ctx, 0, regular.Collateral.Outpoint)
		require.ErrorIs(err, api.ErrInvalidArgument, "CollateralUnspent at height 0")
		err = backend.ApplyEvent(ctx, api.NewRegisterEvent(0, regular))
		require.ErrorIs(err, api.ErrInvalidArgument, "ApplyEvent at height 0")

		EnsureRegistryEmpty(t, backend)
		height, err := backend.Height(ctx)
		require.NoError(err, "Height")
		require.EqualValues(0, height, "rejected events leave the tip alone")

		diff, err := backend.Diff(ctx, 0, 0)
		require.NoError(err, "Diff")
		require.True(diff.IsEmpty(), "height 0 is the empty registry")
	})

	t.Run("RegisterRegular", func(t *testing.T) {
		require := require.New(t)

		regularID, err = backend.Register(ctx, 10, regular)
		require.NoError(err, "Register")
		require.Equal(regular.ProviderID(), regularID, "provider id")
		expectEvent(t, api.EventRegistered, regularID)

		e, err := backend.GetEntry(ctx, regularID)
		require.NoError(err, "GetEntry")
		require.True(e.IsActive(), "entry is active")
		require.EqualValues(10, e.RegisteredHeight)
		require.Len(e.Addresses.CoreP2P, 1)
		require.Equal("127.0.0.1:9998", e.Addresses.CoreP2P[0].String())
		require.Empty(e.Addresses.PlatformHTTP)
		require.Empty(e.Addresses.PlatformP2P)

		byCollateral, err := backend.GetEntryByCollateral(ctx, regular.Collateral.Outpoint)
		require.NoError(err, "GetEntryByCollateral")
		require.Equal(e, byCollateral)
	})

	t.Run("RegisterEvo", func(t *testing.T) {
		require := require.New(t)

		evoID, err = backend.Register(ctx, 11, evo)
		require.NoError(err, "Register")
		expectEvent(t, api.EventRegistered, evoID)

		e, err := backend.GetEntry(ctx, evoID)
		require.NoError(err, "GetEntry")
		require.Equal(node.KindEvo, e.Kind)
		require.Equal("127.0.0.1:9997", e.Addresses.CoreP2P[0].String())
		require.Equal("127.0.0.1:19998", e.Addresses.PlatformHTTP[0].String())
		require.Equal("127.0.0.1:29998", e.Addresses.PlatformP2P[0].String())
		require.NotNil(e.PlatformNodeID)

		diff, err := backend.Diff(ctx, 10, 11)
		require.NoError(err, "Diff")
		require.Len(diff.Added, 1, "evo entry added")
		require.Equal(evoID, diff.Added[0].ProviderID)
		require.Empty(diff.Removed)
		require.Empty(diff.Updated)

		evoKind := node.KindEvo
		entries, err := backend.GetEntries(ctx, &api.Filter{Kind: &evoKind})
		require.NoError(err, "GetEntries")
		require.Len(entries, 1)
		require.Equal(evoID, entries[0].ProviderID)

		height, err := backend.Height(ctx)
		require.NoError(err, "Height")
		require.EqualValues(11, height)
	})

	t.Run("RegisterConflicts", func(t *testing.T) {
		for _, tc := range []struct {
			msg    string
			mutate func(tx *api.RegisterTx)
			err    error
		}{
			{
				"same transaction",
				func(tx *api.RegisterTx) {},
				api.ErrInvalidArgument,
			},
			{
				"same collateral",
				func(tx *api.RegisterTx) {
					tx.OwnerAddress = fixtures.NewAddress(201)
				},
				api.ErrDuplicateCollateral,
			},
			{
				"same endpoint",
				func(tx *api.RegisterTx) {
					tx.Collateral.Outpoint = fixtures.NewOutpoint(200)
					tx.OwnerAddress = fixtures.NewAddress(201)
					tx.OperatorPublicKey[0] = 200
				},
				api.ErrDuplicateAddress,
			},
		} {
			tx := mustRegisterTx(t, node.KindRegular, 1, fixtures.RegularInput(9998))
			tc.mutate(tx)
			_, err := backend.Register(ctx, 11, tx)
			require.ErrorIs(t, err, tc.err, tc.msg)
		}

		dup := mustRegisterTx(t, node.KindEvo, 3, fixtures.EvoInput(9987, 19988, 29988))
		dup.PlatformNodeID = evo.PlatformNodeID
		_, err := backend.Register(ctx, 11, dup)
		require.ErrorIs(t, err, api.ErrDuplicatePlatformNodeID, "same platform node id")

		dup = mustRegisterTx(t, node.KindRegular, 3, fixtures.RegularInput(9987))
		dup.OperatorPublicKey = regular.OperatorPublicKey
		_, err = backend.Register(ctx, 11, dup)
		require.ErrorIs(t, err, api.ErrDuplicateKey, "same operator key")

		entries, err := backend.GetEntries(ctx, nil)
		require.NoError(t, err, "GetEntries")
		require.Len(t, entries, 2, "rejected registrations leave no trace")
	})

	t.Run("OutOfOrder", func(t *testing.T) {
		tx := mustRegisterTx(t, node.KindRegular, 4, fixtures.RegularInput(9986))
		_, err := backend.Register(ctx, 5, tx)
		require.ErrorIs(t, err, api.ErrOutOfOrder, "Register below tip")

		err = backend.CollateralSpent(ctx, 5, regular.Collateral.Outpoint, hash.NewFromBytes([]byte("spend")))
		require.ErrorIs(t, err, api.ErrOutOfOrder, "CollateralSpent below tip")
	})

	t.Run("UpdateService", func(t *testing.T) {
		require := require.New(t)

		as, err := node.Derive(node.KindEvo, fixtures.EvoInput(9996, 19996, 29996))
		require.NoError(err, "Derive")
		err = backend.UpdateService(ctx, 12, &api.UpdateServiceTx{
			ProviderID: evoID,
			Addresses:  *as,
		})
		require.NoError(err, "UpdateService")
		ev := expectEvent(t, api.EventUpdated, evoID)
		require.EqualValues(12, ev.Height)

		e, err := backend.GetEntry(ctx, evoID)
		require.NoError(err, "GetEntry")
		require.True(e.Addresses.Equal(as), "addresses updated")
		require.EqualValues(12, e.UpdatedHeight)
		require.EqualValues(11, e.RegisteredHeight)

		diff, err := backend.Diff(ctx, 11, 12)
		require.NoError(err, "Diff")
		require.Empty(diff.Added)
		require.Len(diff.Updated, 1)
		require.True(diff.Updated[0].Fields.Has(api.FieldAddresses), "addresses in field mask")

		as, err = node.Derive(node.KindRegular, fixtures.RegularInput(9998))
		require.NoError(err, "Derive")
		err = backend.UpdateService(ctx, 12, &api.UpdateServiceTx{
			ProviderID: evoID,
			Addresses:  *as,
		})
		require.ErrorIs(err, api.ErrAddressTopology, "evo entry needs platform endpoints")

		err = backend.UpdateService(ctx, 12, &api.UpdateServiceTx{
			ProviderID: hash.NewFromBytes([]byte("unknown")),
			Addresses:  *as,
		})
		require.ErrorIs(err, api.ErrNotFound, "unknown provider")
	})

	spendTx := hash.NewFromBytes([]byte("spend regular"))

	t.Run("CollateralSpent", func(t *testing.T) {
		require := require.New(t)

		err := backend.CollateralSpent(ctx, 13, regular.Collateral.Outpoint, spendTx)
		require.NoError(err, "CollateralSpent")
		expectEvent(t, api.EventRetired, regularID)

		e, err := backend.GetEntry(ctx, regularID)
		require.NoError(err, "GetEntry")
		require.False(e.IsActive(), "entry retired")
		require.EqualValues(13, e.RetiredHeight)
		require.NotNil(e.RetiredBy)
		require.Equal(spendTx, *e.RetiredBy)

		diff, err := backend.Diff(ctx, 12, 13)
		require.NoError(err, "Diff")
		require.Equal([]hash.Hash{regularID}, diff.Removed)
		require.Empty(diff.Added)

		err = backend.CollateralSpent(ctx, 13, regular.Collateral.Outpoint, spendTx)
		require.ErrorIs(err, api.ErrCollateralSpent, "double spend")

		err = backend.CollateralSpent(ctx, 13, fixtures.NewOutpoint(250), spendTx)
		require.NoError(err, "spend of unknown outpoint is ignored")

		status := api.StatusActive
		active, err := backend.GetEntries(ctx, &api.Filter{Status: &status})
		require.NoError(err, "GetEntries")
		require.Len(active, 1)
		require.Equal(evoID, active[0].ProviderID)
	})

	t.Run("UpdateRetired", func(t *testing.T) {
		require := require.New(t)

		before, err := backend.GetEntry(ctx, regularID)
		require.NoError(err, "GetEntry")

		as, err := node.Derive(node.KindRegular, fixtures.RegularInput(9970))
		require.NoError(err, "Derive")
		err = backend.UpdateService(ctx, 14, &api.UpdateServiceTx{
			ProviderID: regularID,
			Addresses:  *as,
		})
		require.ErrorIs(err, api.ErrNotActive, "update of retired entry")

		after, err := backend.GetEntry(ctx, regularID)
		require.NoError(err, "GetEntry")
		require.Equal(before, after, "retired entry unchanged")
	})

	t.Run("ReRegister", func(t *testing.T) {
		require := require.New(t)

		// The retired entry's endpoint and keys are free again.
		tx := mustRegisterTx(t, node.KindRegular, 5, fixtures.RegularInput(9998))
		_, err := backend.Register(ctx, 14, &api.RegisterTx{})
		require.Error(err, "empty registration")

		err = backend.CollateralSpent(ctx, 14, tx.Collateral.Outpoint, spendTx)
		require.NoError(err, "CollateralSpent")
		_, err = backend.Register(ctx, 14, tx)
		require.ErrorIs(err, api.ErrCollateralSpent, "registration with spent collateral")
		require.NoError(backend.CollateralUnspent(ctx, 14, tx.Collateral.Outpoint), "CollateralUnspent")

		id, err := backend.Register(ctx, 14, tx)
		require.NoError(err, "Register")
		require.NotEqual(regularID, id, "fresh provider id")
		expectEvent(t, api.EventRegistered, id)

		old, err := backend.GetEntry(ctx, regularID)
		require.NoError(err, "GetEntry")
		require.False(old.IsActive(), "old entry stays retired")

		entries, err := backend.GetEntries(ctx, nil)
		require.NoError(err, "GetEntries")
		require.Len(entries, 3)
	})

	t.Run("CollateralUnspent", func(t *testing.T) {
		require := require.New(t)

		// The re-registration took the endpoint, so restoring fails.
		err := backend.CollateralUnspent(ctx, 15, regular.Collateral.Outpoint)
		require.ErrorIs(err, api.ErrDuplicateAddress, "restore with claimed endpoint")

		err = backend.CollateralSpent(ctx, 15, evo.Collateral.Outpoint, spendTx)
		require.NoError(err, "CollateralSpent")
		expectEvent(t, api.EventRetired, evoID)

		err = backend.CollateralUnspent(ctx, 16, evo.Collateral.Outpoint)
		require.NoError(err, "CollateralUnspent")
		ev := expectEvent(t, api.EventRestored, evoID)
		require.True(ev.Entry.IsActive(), "restored entry is active")
		require.Nil(ev.Entry.RetiredBy)

		diff, err := backend.Diff(ctx, 14, 16)
		require.NoError(err, "Diff")
		require.True(diff.IsEmpty(), "retire and restore cancel out")

		diff, err = backend.Diff(ctx, 14, 15)
		require.NoError(err, "Diff")
		require.Equal([]hash.Hash{evoID}, diff.Removed)
	})

	t.Run("Diff", func(t *testing.T) {
		require := require.New(t)

		diff, err := backend.Diff(ctx, 0, 16)
		require.NoError(err, "Diff from genesis")
		require.Len(diff.Added, 2, "active entries at tip")
		require.Empty(diff.Removed)

		diff, err = backend.Diff(ctx, 16, 16)
		require.NoError(err, "Diff")
		require.True(diff.IsEmpty(), "diff of a height with itself")

		_, err = backend.Diff(ctx, 16, 10)
		require.ErrorIs(err, api.ErrInvalidArgument, "inverted range")

		_, err = backend.Diff(ctx, 10, 100)
		require.ErrorIs(err, api.ErrNoSuchHeight, "height above tip")
	})

	t.Run("PruneSnapshots", func(t *testing.T) {
		require := require.New(t)

		_, err := backend.PruneSnapshots(ctx, 0)
		require.ErrorIs(err, api.ErrInvalidArgument, "keep nothing")

		pruned, err := backend.PruneSnapshots(ctx, 2)
		require.NoError(err, "PruneSnapshots")
		require.True(pruned > 0, "snapshots pruned")

		_, err = backend.Diff(ctx, 10, 16)
		require.ErrorIs(err, api.ErrNoSuchHeight, "pruned height")

		_, err = backend.Diff(ctx, 15, 16)
		require.NoError(err, "Diff within retention window")
	})

	t.Run("ConcurrentTransitions", func(t *testing.T) {
		require := require.New(t)

		const (
			height   = 17
			updaters = 20
			readers  = 4
		)

		tx := mustRegisterTx(t, node.KindRegular, 6, fixtures.RegularInput(9970))
		id, err := backend.Register(ctx, height, tx)
		require.NoError(err, "Register")

		updates := make([]*api.UpdateServiceTx, updaters)
		for i := range updates {
			as, err := node.Derive(node.KindRegular, fixtures.RegularInput(uint16(9100+i)))
			require.NoError(err, "Derive")
			updates[i] = &api.UpdateServiceTx{ProviderID: id, Addresses: *as}
		}

		var (
			wg       sync.WaitGroup
			spent    atomic.Bool
			stop     = make(chan struct{})
			failures = make(chan error, updaters+readers+1)
			applied  = make([]bool, updaters)
		)

		for i := range updates {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				afterSpend := spent.Load()
				err := backend.UpdateService(ctx, height, updates[i])
				switch {
				case err == nil && afterSpend:
					failures <- fmt.Errorf("update %d applied after the spend", i)
				case err == nil:
					applied[i] = true
				case !errors.Is(err, api.ErrNotActive):
					failures <- fmt.Errorf("update %d: %w", i, err)
				}
			}(i)
		}

		var readersWg sync.WaitGroup
		for i := 0; i < readers; i++ {
			readersWg.Add(1)
			go func() {
				defer readersWg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					e, err := backend.GetEntry(ctx, id)
					if err != nil {
						failures <- fmt.Errorf("GetEntry: %w", err)
						return
					}
					if err = e.ValidateBasic(); err != nil {
						failures <- fmt.Errorf("torn entry read: %w", err)
						return
					}
					if e.IsActive() == (e.RetiredBy != nil) {
						failures <- fmt.Errorf("entry status %s inconsistent with its spend", e.Status)
						return
					}
					diff, err := backend.Diff(ctx, 16, height)
					if err != nil {
						failures <- fmt.Errorf("Diff: %w", err)
						return
					}
					for _, added := range diff.Added {
						if err = added.ValidateBasic(); err != nil {
							failures <- fmt.Errorf("torn diff entry: %w", err)
							return
						}
					}
				}
			}()
		}

		spendTx := hash.NewFromBytes([]byte("concurrent spend"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := backend.CollateralSpent(ctx, height, tx.Collateral.Outpoint, spendTx); err != nil {
				failures <- fmt.Errorf("CollateralSpent: %w", err)
			}
			spent.Store(true)
		}()

		wg.Wait()
		close(stop)
		readersWg.Wait()
		close(failures)
		for err := range failures {
			require.NoError(err)
		}

		e, err := backend.GetEntry(ctx, id)
		require.NoError(err, "GetEntry")
		require.False(e.IsActive(), "the spend retires the entry")
		require.Equal(spendTx, *e.RetiredBy)

		// The retired entry carries the addresses of exactly one applied
		// update, or its registration ones if the spend came first.
		matches := 0
		for i, u := range updates {
			if applied[i] && e.Addresses.Equal(&u.Addresses) {
				matches++
			}
		}
		if matches == 0 {
			require.True(e.Addresses.Equal(&tx.Addresses), "no applied update, registration addresses kept")
		} else {
			require.Equal(1, matches, "updates are serialized")
		}

		err = backend.UpdateService(ctx, height, updates[0])
		require.ErrorIs(err, api.ErrNotActive, "update after the spend")

		entries, err := backend.GetEntries(ctx, nil)
		require.NoError(err, "GetEntries")
		require.NoError(api.SanityCheckEntries(entries), "SanityCheckEntries")
	})
}

// ApplyEventTests exercises event dispatch of a registry backend.
//
// WARNING: This assumes that the registry is empty.
func ApplyEventTests(t *testing.T, backend api.Backend) {
	EnsureRegistryEmpty(t, backend)

	require := require.New(t)
	ctx := context.Background()

	tx := mustRegisterTx(t, node.KindEvo, 1, fixtures.EvoInput(9997, 19998, 29998))

	require.ErrorIs(backend.ApplyEvent(ctx, nil), api.ErrInvalidArgument, "nil event")
	require.ErrorIs(backend.ApplyEvent(ctx, &api.ChainEvent{Kind: api.ChainEventRegister, Height: 1}),
		api.ErrInvalidArgument, "missing payload")

	require.NoError(backend.ApplyEvent(ctx, api.NewRegisterEvent(1, tx)), "register")

	as, err := node.Derive(node.KindEvo, fixtures.EvoInput(9996, 19996, 29996))
	require.NoError(err, "Derive")
	require.NoError(backend.ApplyEvent(ctx, api.NewUpdateServiceEvent(2, &api.UpdateServiceTx{
		ProviderID: tx.ProviderID(),
		Addresses:  *as,
	})), "update service")

	spentBy := hash.NewFromBytes([]byte("spend"))
	require.NoError(backend.ApplyEvent(ctx, api.NewCollateralSpentEvent(3, tx.Collateral.Outpoint, spentBy)), "spend")

	e, err := backend.GetEntry(ctx, tx.ProviderID())
	require.NoError(err, "GetEntry")
	require.False(e.IsActive())
	require.True(e.Addresses.Equal(as))

	require.NoError(backend.ApplyEvent(ctx, api.NewCollateralUnspentEvent(4, tx.Collateral.Outpoint)), "unspend")
	e, err = backend.GetEntry(ctx, tx.ProviderID())
	require.NoError(err, "GetEntry")
	require.True(e.IsActive())

	height, err := backend.Height(ctx)
	require.NoError(err, "Height")
	require.EqualValues(4, height)

	entries, err := backend.GetEntries(ctx, nil)
	require.NoError(err, "GetEntries")
	require.NoError(api.SanityCheckEntries(entries), "SanityCheckEntries")
}
