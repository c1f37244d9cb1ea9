package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/errors"
	"github.com/kwvg/dash/common/keys"
	"github.com/kwvg/dash/common/logging"
	"github.com/kwvg/dash/common/node"
)

func testAddress(seed byte) keys.Address {
	var h [keys.HashSize]byte
	h[0] = seed
	return keys.NewAddress(keys.VersionTestnetPubKeyHash, h)
}

func testRegisterTx(t *testing.T, kind node.Kind, seed byte, in node.EndpointInput) *RegisterTx {
	as, err := node.Derive(kind, in)
	require.NoError(t, err, "Derive")

	value, err := collateral.RequiredCollateral(kind)
	require.NoError(t, err, "RequiredCollateral")

	tx := &RegisterTx{
		Kind: kind,
		Collateral: collateral.Ref{
			Outpoint: collateral.Outpoint{TxID: hash.NewFromBytes([]byte{seed}), Index: 1},
			Value:    value,
			Address:  testAddress(seed),
		},
		Addresses:      *as,
		OwnerAddress:   testAddress(seed + 1),
		VotingAddress:  testAddress(seed + 2),
		PayoutAddress:  testAddress(seed + 3),
		OperatorReward: 0,
		FundsAddress:   testAddress(seed + 4),
	}
	tx.OperatorPublicKey[0] = seed
	if kind == node.KindEvo {
		var id node.PlatformNodeID
		id[0] = seed
		tx.PlatformNodeID = &id
	}
	return tx
}

func regularInput() node.EndpointInput {
	return node.EndpointInput{CoreP2P: []string{"127.0.0.1:9998"}}
}

func evoInput() node.EndpointInput {
	return node.EndpointInput{
		CoreP2P:      []string{"127.0.0.1:9997"},
		PlatformHTTP: []string{"19998"},
		PlatformP2P:  []string{"29998"},
	}
}

func toMap(t *testing.T, v interface{}) map[string]interface{} {
	b, err := json.Marshal(v)
	require.NoError(t, err, "json.Marshal")
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m), "json.Unmarshal")
	return m
}

func TestProviderID(t *testing.T) {
	require := require.New(t)

	a := testRegisterTx(t, node.KindRegular, 10, regularInput())
	b := testRegisterTx(t, node.KindRegular, 10, regularInput())
	require.Equal(a.ProviderID(), b.ProviderID(), "provider id must be deterministic")

	b.Collateral.Outpoint.Index = 2
	require.NotEqual(a.ProviderID(), b.ProviderID(), "new collateral must yield a new provider id")

	e := a.NewEntry(5)
	require.Equal(a.ProviderID(), e.ProviderID)
	require.Equal(StatusActive, e.Status)
	require.EqualValues(5, e.RegisteredHeight)
	require.NoError(e.ValidateBasic())
}

func TestVerifyRegisterArgs(t *testing.T) {
	logger := logging.GetLogger("registry/api/tests")
	regtest := DefaultParams(NetworkRegtest)
	mainnet := DefaultParams(NetworkMainnet)

	for _, tc := range []struct {
		msg    string
		params *Params
		txFn   func() *RegisterTx
		err    error
	}{
		{
			msg:    "regular registration should be allowed",
			params: regtest,
			txFn:   func() *RegisterTx { return testRegisterTx(t, node.KindRegular, 1, regularInput()) },
		},
		{
			msg:    "evo registration should be allowed",
			params: regtest,
			txFn:   func() *RegisterTx { return testRegisterTx(t, node.KindEvo, 1, evoInput()) },
		},
		{
			msg:    "nil transaction should be rejected",
			params: regtest,
			txFn:   func() *RegisterTx { return nil },
			err:    ErrInvalidArgument,
		},
		{
			msg:    "regular collateral for evo node should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				tx := testRegisterTx(t, node.KindEvo, 1, evoInput())
				tx.Collateral.Value = collateral.RegularCollateral
				return tx
			},
			err: ErrCollateralMismatch,
		},
		{
			msg:    "evo collateral for regular node should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				tx := testRegisterTx(t, node.KindRegular, 1, regularInput())
				tx.Collateral.Value = collateral.EvoCollateral
				return tx
			},
			err: ErrCollateralMismatch,
		},
		{
			msg:    "evo node without platform addresses should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				tx := testRegisterTx(t, node.KindEvo, 1, evoInput())
				tx.Addresses.PlatformP2P = nil
				return tx
			},
			err: ErrAddressTopology,
		},
		{
			msg:    "regular node with platform addresses should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				tx := testRegisterTx(t, node.KindRegular, 1, regularInput())
				tx.Addresses.PlatformHTTP = []node.Endpoint{{Host: "127.0.0.1", Port: 1443}}
				return tx
			},
			err: ErrAddressTopology,
		},
		{
			msg:    "evo node without platform node id should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				tx := testRegisterTx(t, node.KindEvo, 1, evoInput())
				tx.PlatformNodeID = nil
				return tx
			},
			err: ErrAddressTopology,
		},
		{
			msg:    "regular node with platform node id should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				tx := testRegisterTx(t, node.KindRegular, 1, regularInput())
				tx.PlatformNodeID = &node.PlatformNodeID{1}
				return tx
			},
			err: ErrAddressTopology,
		},
		{
			msg:    "collateral key as owner key should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				tx := testRegisterTx(t, node.KindRegular, 1, regularInput())
				tx.OwnerAddress = tx.Collateral.Address
				return tx
			},
			err: ErrCollateralReuse,
		},
		{
			msg:    "collateral key as voting key should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				tx := testRegisterTx(t, node.KindRegular, 1, regularInput())
				tx.VotingAddress = tx.Collateral.Address
				return tx
			},
			err: ErrCollateralReuse,
		},
		{
			msg:    "excessive operator reward should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				tx := testRegisterTx(t, node.KindRegular, 1, regularInput())
				tx.OperatorReward = MaxOperatorReward + 1
				return tx
			},
			err: ErrInvalidArgument,
		},
		{
			msg:    "missing operator key should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				tx := testRegisterTx(t, node.KindRegular, 1, regularInput())
				tx.OperatorPublicKey = keys.OperatorPublicKey{}
				return tx
			},
			err: ErrInvalidArgument,
		},
		{
			msg:    "mainnet core port off mainnet should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				return testRegisterTx(t, node.KindRegular, 1, node.EndpointInput{CoreP2P: []string{"127.0.0.1:9999"}})
			},
			err: ErrInvalidArgument,
		},
		{
			msg:    "duplicate platform ports should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				return testRegisterTx(t, node.KindEvo, 1, node.EndpointInput{
					CoreP2P:      []string{"127.0.0.1:9997"},
					PlatformHTTP: []string{"19998"},
					PlatformP2P:  []string{"19998"},
				})
			},
			err: ErrInvalidArgument,
		},
		{
			msg:    "platform port equal to core port should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				return testRegisterTx(t, node.KindEvo, 1, node.EndpointInput{
					CoreP2P:      []string{"127.0.0.1:9997"},
					PlatformHTTP: []string{"9997"},
					PlatformP2P:  []string{"29998"},
				})
			},
			err: ErrInvalidArgument,
		},
		{
			msg:    "domain core address should be rejected",
			params: regtest,
			txFn: func() *RegisterTx {
				return testRegisterTx(t, node.KindRegular, 1, node.EndpointInput{CoreP2P: []string{"node.example.com:9998"}})
			},
			err: ErrInvalidArgument,
		},
		{
			msg:    "domain platform HTTP address should be allowed",
			params: regtest,
			txFn: func() *RegisterTx {
				return testRegisterTx(t, node.KindEvo, 1, node.EndpointInput{
					CoreP2P:      []string{"127.0.0.1:9997"},
					PlatformHTTP: []string{"api.example.com:443"},
					PlatformP2P:  []string{"29998"},
				})
			},
		},
		{
			msg:    "unroutable address on mainnet should be rejected",
			params: mainnet,
			txFn: func() *RegisterTx {
				return testRegisterTx(t, node.KindRegular, 1, node.EndpointInput{CoreP2P: []string{"127.0.0.1:9999"}})
			},
			err: ErrInvalidArgument,
		},
		{
			msg:    "non default core port on mainnet should be rejected",
			params: mainnet,
			txFn: func() *RegisterTx {
				return testRegisterTx(t, node.KindRegular, 1, node.EndpointInput{CoreP2P: []string{"8.8.8.8:9998"}})
			},
			err: ErrInvalidArgument,
		},
		{
			msg:    "mainnet evo node on default ports should be allowed",
			params: mainnet,
			txFn: func() *RegisterTx {
				return testRegisterTx(t, node.KindEvo, 1, node.EndpointInput{
					CoreP2P:      []string{"8.8.8.8:9999"},
					PlatformHTTP: []string{"443"},
					PlatformP2P:  []string{"26656"},
				})
			},
		},
		{
			msg:    "mainnet evo node on custom platform ports should be rejected",
			params: mainnet,
			txFn: func() *RegisterTx {
				return testRegisterTx(t, node.KindEvo, 1, node.EndpointInput{
					CoreP2P:      []string{"8.8.8.8:9999"},
					PlatformHTTP: []string{"1443"},
					PlatformP2P:  []string{"26656"},
				})
			},
			err: ErrInvalidArgument,
		},
	} {
		err := VerifyRegisterArgs(logger, tc.params, tc.txFn())
		if tc.err == nil {
			require.NoError(t, err, tc.msg)
			continue
		}
		require.ErrorIs(t, err, tc.err, tc.msg)
	}
}

func TestVerifyUpdateServiceArgs(t *testing.T) {
	require := require.New(t)

	logger := logging.GetLogger("registry/api/tests")
	params := DefaultParams(NetworkRegtest)

	existing := testRegisterTx(t, node.KindEvo, 1, evoInput()).NewEntry(1)
	newAddrs, err := node.Derive(node.KindEvo, node.EndpointInput{
		CoreP2P:      []string{"127.0.0.2:9997"},
		PlatformHTTP: []string{"19998"},
		PlatformP2P:  []string{"29998"},
	})
	require.NoError(err)

	tx := &UpdateServiceTx{ProviderID: existing.ProviderID, Addresses: *newAddrs}
	require.NoError(VerifyUpdateServiceArgs(logger, params, existing, tx), "valid update")

	regularAddrs, err := node.Derive(node.KindRegular, regularInput())
	require.NoError(err)
	err = VerifyUpdateServiceArgs(logger, params, existing, &UpdateServiceTx{ProviderID: existing.ProviderID, Addresses: *regularAddrs})
	require.ErrorIs(err, ErrAddressTopology, "evo update must keep the platform pair")

	err = VerifyUpdateServiceArgs(logger, params, existing, &UpdateServiceTx{ProviderID: hash.NewFromBytes([]byte("other")), Addresses: *newAddrs})
	require.ErrorIs(err, ErrInvalidArgument, "provider id mismatch")

	retired := existing.Clone()
	retired.Status = StatusRetired
	err = VerifyUpdateServiceArgs(logger, params, retired, tx)
	require.ErrorIs(err, ErrNotActive, "retired entries can't be updated")

	err = VerifyUpdateServiceArgs(logger, params, existing, &UpdateServiceTx{
		ProviderID:        existing.ProviderID,
		Addresses:         *newAddrs,
		OperatorPublicKey: &keys.OperatorPublicKey{},
	})
	require.ErrorIs(err, ErrInvalidArgument, "empty operator key")
}

func TestErrorsCoded(t *testing.T) {
	require := require.New(t)

	err := errors.WithContext(ErrNotActive, "retired at 10")
	require.ErrorIs(err, ErrNotActive)
	module, code := errors.Code(err)
	require.Equal(ModuleName, module)
	require.EqualValues(6, code)
}

func TestFilterAndFieldMask(t *testing.T) {
	require := require.New(t)

	e := testRegisterTx(t, node.KindEvo, 1, evoInput()).NewEntry(1)
	kind, status := node.KindRegular, StatusActive
	require.True((*Filter)(nil).Matches(e))
	require.True((&Filter{Status: &status}).Matches(e))
	require.False((&Filter{Kind: &kind}).Matches(e))

	changed := e.Clone()
	require.Equal(FieldMask(0), ChangedFields(e, changed))
	changed.Status = StatusRetired
	changed.Addresses.CoreP2P[0].Port = 1
	mask := ChangedFields(e, changed)
	require.True(mask.Has(FieldStatus | FieldAddresses))
	require.False(mask.Has(FieldOperatorKey))
	require.Equal("status|addresses", mask.String())
	require.Equal(9997, int(e.Addresses.CoreP2P[0].Port), "clone must not alias")

	changed.PlatformNodeID = nil
	require.True(ChangedFields(e, changed).Has(FieldPlatformNodeID))
}

func TestChainEventValidateBasic(t *testing.T) {
	require := require.New(t)

	tx := testRegisterTx(t, node.KindRegular, 1, regularInput())
	require.NoError(NewRegisterEvent(1, tx).ValidateBasic())
	require.NoError(NewCollateralSpentEvent(1, tx.Collateral.Outpoint, hash.NewFromBytes([]byte("spend"))).ValidateBasic())
	require.NoError(NewCollateralUnspentEvent(1, tx.Collateral.Outpoint).ValidateBasic())

	bad := NewRegisterEvent(1, tx)
	bad.Outpoint = &tx.Collateral.Outpoint
	require.ErrorIs(bad.ValidateBasic(), ErrInvalidArgument)
	require.ErrorIs((&ChainEvent{Kind: 42}).ValidateBasic(), ErrInvalidArgument)
	require.ErrorIs(NewRegisterEvent(-1, tx).ValidateBasic(), ErrInvalidArgument)
	require.ErrorIs(NewRegisterEvent(0, tx).ValidateBasic(), ErrInvalidArgument, "height 0 is the empty registry")
}

func TestParamsSanityCheck(t *testing.T) {
	require := require.New(t)

	require.NoError(DefaultParams(NetworkMainnet).SanityCheck())
	require.NoError(DefaultParams(NetworkRegtest).SanityCheck())

	p := DefaultParams(NetworkMainnet)
	p.AllowUnroutableAddresses = true
	require.Error(p.SanityCheck())

	var n Network
	require.NoError(n.Set("regtest"))
	require.Equal(NetworkRegtest, n)
	require.Error(n.Set("moonnet"))
}

func TestSanityCheckEntries(t *testing.T) {
	require := require.New(t)

	a := testRegisterTx(t, node.KindRegular, 1, regularInput()).NewEntry(1)
	b := testRegisterTx(t, node.KindEvo, 20, evoInput()).NewEntry(2)
	require.NoError(SanityCheckEntries([]*Entry{a, b}))

	// Same core endpoint as a.
	c := testRegisterTx(t, node.KindRegular, 40, regularInput()).NewEntry(3)
	require.Error(SanityCheckEntries([]*Entry{a, b, c}))

	// Retired entries don't claim anything.
	c.Status = StatusRetired
	require.NoError(SanityCheckEntries([]*Entry{a, b, c}))
}
