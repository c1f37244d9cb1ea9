package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kwvg/dash/chain/mock"
	"github.com/kwvg/dash/common/node"
	"github.com/kwvg/dash/registry/api"
	"github.com/kwvg/dash/registry/memory"
)

func runTestScenario(t *testing.T, mode node.Mode) (*scenario, api.Backend) {
	backend, err := memory.New(api.DefaultParams(api.NetworkRegtest))
	require.NoError(t, err, "memory.New")
	t.Cleanup(backend.Cleanup)

	s := &scenario{
		ctx:      context.Background(),
		ledger:   mock.New(backend),
		backend:  backend,
		renderer: api.NewRenderer(mode),
	}
	require.NoError(t, s.run(1), "scenario")
	return s, backend
}

func TestScenario(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s, backend := runTestScenario(t, node.ModeLegacy)

	var names []string
	for _, step := range s.steps {
		names = append(names, step.Step)
	}
	require.Equal([]string{
		"regular registration",
		"regular status",
		"evo registration",
		"evo status",
		"list diff after registration",
		"evo service update",
		"evo status after spend",
		"list diff after spend",
	}, names)

	added := s.steps[4].View.(*api.ListDiffView)
	require.Len(added.MNList, 2)
	removed := s.steps[7].View.(*api.ListDiffView)
	require.Len(removed.DeletedMNs, 1)

	status := api.StatusActive
	active, err := backend.GetEntries(ctx, &api.Filter{Status: &status})
	require.NoError(err, "GetEntries")
	require.Len(active, 1, "only the regular node survives")
	require.Equal(node.KindRegular, active[0].Kind)

	// The scenario can continue on top of an existing registry.
	height, err := backend.Height(ctx)
	require.NoError(err, "Height")
	s.ledger = mock.NewAt(backend, height)
	s.steps = nil
	require.NoError(s.run(10), "scenario on populated registry")
}

func TestLookupAndList(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	_, backend := runTestScenario(t, node.ModeModern)
	entries, err := backend.GetEntries(ctx, nil)
	require.NoError(err, "GetEntries")
	require.Len(entries, 2)

	e, err := lookupEntry(ctx, backend, entries[0].ProviderID.String())
	require.NoError(err, "lookupEntry(provider id)")
	require.Equal(entries[0], e)

	e, err = lookupEntry(ctx, backend, entries[1].Collateral.Outpoint.String())
	require.NoError(err, "lookupEntry(outpoint)")
	require.Equal(entries[1], e)

	_, err = lookupEntry(ctx, backend, "bogus")
	require.Error(err, "lookupEntry(bogus)")

	var buf bytes.Buffer
	writeEntryTable(&buf, entries)
	out := buf.String()
	require.Contains(out, "127.0.0.1:9998")
	require.Contains(out, "retired")
	require.Contains(out, entries[0].ProviderID.String())
}

func TestParseHeight(t *testing.T) {
	require := require.New(t)

	h, err := parseHeight("42")
	require.NoError(err)
	require.EqualValues(42, h)

	for _, s := range []string{"", "-1", "tip", "1.5"} {
		_, err = parseHeight(s)
		require.Error(err, s)
	}
}
