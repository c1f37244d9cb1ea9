package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kwvg/dash/common/node"
	"github.com/kwvg/dash/registry/api"
	"github.com/kwvg/dash/registry/api/fixtures"
	"github.com/kwvg/dash/registry/tests"
)

func newTestBackend(t *testing.T, params *api.Params) api.Backend {
	backend, err := New(params)
	require.NoError(t, err, "New")
	t.Cleanup(backend.Cleanup)
	return backend
}

func TestMemoryBackend(t *testing.T) {
	backend := newTestBackend(t, api.DefaultParams(api.NetworkRegtest))
	tests.RegistryImplementationTests(t, backend)
}

func TestMemoryApplyEvent(t *testing.T) {
	backend := newTestBackend(t, api.DefaultParams(api.NetworkRegtest))
	tests.ApplyEventTests(t, backend)
}

func TestMemoryInvalidParams(t *testing.T) {
	params := api.DefaultParams(api.NetworkMainnet)
	params.AllowUnroutableAddresses = true
	_, err := New(params)
	require.Error(t, err, "mainnet must reject unroutable addresses")
}

func TestMemoryUnroutable(t *testing.T) {
	backend := newTestBackend(t, api.DefaultParams(api.NetworkTestnet))

	tx, err := fixtures.NewRegisterTx(node.KindRegular, 1, fixtures.RegularInput(9998))
	require.NoError(t, err, "NewRegisterTx")
	_, err = backend.Register(context.Background(), 1, tx)
	require.ErrorIs(t, err, api.ErrInvalidArgument, "loopback address on testnet")
}

func TestMemoryMaxSnapshots(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	params := api.DefaultParams(api.NetworkRegtest)
	params.MaxSnapshots = 3
	backend := newTestBackend(t, params)

	for i := 1; i <= 5; i++ {
		tx, err := fixtures.NewRegisterTx(node.KindRegular, byte(i), fixtures.RegularInput(uint16(9000+i)))
		require.NoError(err, "NewRegisterTx")
		_, err = backend.Register(ctx, int64(i*10), tx)
		require.NoError(err, "Register")
	}

	_, err := backend.Diff(ctx, 0, 50)
	require.ErrorIs(err, api.ErrNoSuchHeight, "genesis snapshot pruned")

	// Heights between snapshots resolve to the snapshot below them.
	diff, err := backend.Diff(ctx, 35, 50)
	require.NoError(err, "Diff")
	require.Len(diff.Added, 2)

	diff, err = backend.Diff(ctx, 30, 49)
	require.NoError(err, "Diff")
	require.Len(diff.Added, 1)
}

func TestMemoryEntryIsolation(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	backend := newTestBackend(t, api.DefaultParams(api.NetworkRegtest))

	tx, err := fixtures.NewRegisterTx(node.KindRegular, 1, fixtures.RegularInput(9998))
	require.NoError(err, "NewRegisterTx")
	id, err := backend.Register(ctx, 1, tx)
	require.NoError(err, "Register")

	// Returned entries are copies.
	e, err := backend.GetEntry(ctx, id)
	require.NoError(err, "GetEntry")
	e.Addresses.CoreP2P[0].Port = 1
	e.Status = api.StatusRetired

	e, err = backend.GetEntry(ctx, id)
	require.NoError(err, "GetEntry")
	require.True(e.IsActive())
	require.EqualValues(9998, e.Addresses.CoreP2P[0].Port)
}
