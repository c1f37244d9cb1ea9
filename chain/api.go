// Package chain defines the chain node service that drives the registry.
//
// The registry never talks to the network. A NodeService tracks the
// ledger and pushes confirmed transitions into a registry backend.
package chain

import (
	"context"

	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/errors"
	"github.com/kwvg/dash/common/keys"
	"github.com/kwvg/dash/registry/api"
)

// ModuleName is a unique module name for the chain module.
const ModuleName = "chain"

var (
	// ErrInvalidArgument is the error returned on malformed argument(s).
	ErrInvalidArgument = errors.New(ModuleName, 1, "chain: invalid argument")
	// ErrUnknownOutput is the error returned when an output does not exist.
	ErrUnknownOutput = errors.New(ModuleName, 2, "chain: unknown output")
	// ErrOutputSpent is the error returned when an output is already spent
	// or reserved by a pending transaction.
	ErrOutputSpent = errors.New(ModuleName, 3, "chain: output already spent")
	// ErrUnknownTransaction is the error returned when a transaction is
	// neither pending nor confirmed.
	ErrUnknownTransaction = errors.New(ModuleName, 4, "chain: unknown transaction")
	// ErrTransactionRejected is the error returned when a transaction was
	// mined but rejected by the registry.
	ErrTransactionRejected = errors.New(ModuleName, 5, "chain: transaction rejected")
)

// Output is a transaction output.
type Output struct {
	Address keys.Address      `json:"address"`
	Value   collateral.Amount `json:"value"`
}

// NodeService is the chain node collaborator.
type NodeService interface {
	// Fund submits a transaction paying amount to address, and returns
	// its transaction id. The payment is output 0 of the transaction.
	Fund(ctx context.Context, address keys.Address, amount collateral.Amount) (hash.Hash, error)

	// Spend submits a transaction consuming the given output.
	Spend(ctx context.Context, outpoint collateral.Outpoint, destinations []Output) (hash.Hash, error)

	// SubmitRegister submits a provider registration. The collateral is
	// resolved against the ledger, and the returned transaction id is the
	// provider id of the registration.
	SubmitRegister(ctx context.Context, tx *api.RegisterTx) (hash.Hash, error)

	// SubmitUpdateService submits a provider service update.
	SubmitUpdateService(ctx context.Context, tx *api.UpdateServiceTx) (hash.Hash, error)

	// Confirm advances the ledger until the transaction has at least the
	// given number of confirmations.
	Confirm(ctx context.Context, txid hash.Hash, depth uint32) error

	// GetOutput returns an unspent output.
	GetOutput(ctx context.Context, outpoint collateral.Outpoint) (*Output, error)

	// Height returns the height of the last block.
	Height(ctx context.Context) (int64, error)
}
