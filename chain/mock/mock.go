// Package mock implements a deterministic in-memory chain node service.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/deque"

	"github.com/kwvg/dash/chain"
	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/errors"
	"github.com/kwvg/dash/common/keys"
	"github.com/kwvg/dash/common/logging"
	"github.com/kwvg/dash/registry/api"
)

var _ chain.NodeService = (*Ledger)(nil)

type txKind uint8

const (
	txFund txKind = iota
	txSpend
	txRegister
	txUpdateService
)

// fundTx, spendTx and updateTx are the canonical encodings transaction ids are
// derived from.
type fundTx struct {
	Nonce  uint64       `json:"nonce"`
	Output chain.Output `json:"output"`
}

type spendTx struct {
	Nonce   uint64              `json:"nonce"`
	Input   collateral.Outpoint `json:"input"`
	Outputs []chain.Output      `json:"outputs"`
}

type updateTx struct {
	Nonce  uint64               `json:"nonce"`
	Update *api.UpdateServiceTx `json:"update"`
}

type pendingTx struct {
	id   hash.Hash
	kind txKind

	outputs  []chain.Output
	input    collateral.Outpoint
	register *api.RegisterTx
	update   *api.UpdateServiceTx
}

type txRecord struct {
	tx *pendingTx

	// height is the height the transaction was mined at, zero while
	// pending.
	height int64
	// err is set if the registry rejected the mined transaction.
	err error
	// invalidated is set once a reorganization reverted the transaction.
	invalidated bool
}

// Ledger is a deterministic in-memory ledger. Every Confirm mines the whole
// FIFO mempool into one block and pushes the confirmed transitions into the
// registry backend.
type Ledger struct {
	sync.Mutex

	logger  *logging.Logger
	backend api.Backend

	height int64
	nonce  uint64

	utxos    map[collateral.Outpoint]chain.Output
	spent    map[collateral.Outpoint]chain.Output
	reserved map[collateral.Outpoint]hash.Hash
	txs      map[hash.Hash]*txRecord
	mempool  *deque.Deque[*pendingTx]
}

func (l *Ledger) Fund(ctx context.Context, address keys.Address, amount collateral.Amount) (hash.Hash, error) {
	if address.IsZero() || amount == 0 {
		return hash.Hash{}, chain.ErrInvalidArgument
	}

	l.Lock()
	defer l.Unlock()

	out := chain.Output{Address: address, Value: amount}
	l.nonce++
	ptx := &pendingTx{
		id:      hash.NewFrom(&fundTx{Nonce: l.nonce, Output: out}),
		kind:    txFund,
		outputs: []chain.Output{out},
	}
	l.submitLocked(ptx)

	return ptx.id, nil
}

func (l *Ledger) Spend(ctx context.Context, outpoint collateral.Outpoint, destinations []chain.Output) (hash.Hash, error) {
	l.Lock()
	defer l.Unlock()

	in, ok := l.utxos[outpoint]
	if !ok {
		if _, ok = l.spent[outpoint]; ok {
			return hash.Hash{}, chain.ErrOutputSpent
		}
		return hash.Hash{}, chain.ErrUnknownOutput
	}
	if by, ok := l.reserved[outpoint]; ok {
		return hash.Hash{}, errors.WithContext(chain.ErrOutputSpent, fmt.Sprintf("reserved by pending %s", by))
	}

	var total collateral.Amount
	for _, d := range destinations {
		total += d.Value
	}
	if total > in.Value {
		return hash.Hash{}, errors.WithContext(chain.ErrInvalidArgument, fmt.Sprintf("outputs %s exceed input %s", total, in.Value))
	}

	l.nonce++
	ptx := &pendingTx{
		kind:    txSpend,
		input:   outpoint,
		outputs: append([]chain.Output{}, destinations...),
	}
	ptx.id = hash.NewFrom(&spendTx{Nonce: l.nonce, Input: outpoint, Outputs: ptx.outputs})
	l.reserved[outpoint] = ptx.id
	l.submitLocked(ptx)

	return ptx.id, nil
}

func (l *Ledger) SubmitRegister(ctx context.Context, tx *api.RegisterTx) (hash.Hash, error) {
	if tx == nil {
		return hash.Hash{}, chain.ErrInvalidArgument
	}

	l.Lock()
	defer l.Unlock()

	out, ok := l.utxos[tx.Collateral.Outpoint]
	if !ok {
		return hash.Hash{}, errors.WithContext(chain.ErrUnknownOutput, tx.Collateral.Outpoint.String())
	}

	resolved := *tx
	resolved.Collateral.Value = out.Value
	resolved.Collateral.Address = out.Address

	ptx := &pendingTx{
		id:       resolved.ProviderID(),
		kind:     txRegister,
		register: &resolved,
	}
	if _, ok = l.txs[ptx.id]; ok {
		return hash.Hash{}, errors.WithContext(chain.ErrInvalidArgument, "transaction already submitted")
	}
	l.submitLocked(ptx)

	return ptx.id, nil
}

func (l *Ledger) SubmitUpdateService(ctx context.Context, tx *api.UpdateServiceTx) (hash.Hash, error) {
	if tx == nil {
		return hash.Hash{}, chain.ErrInvalidArgument
	}

	l.Lock()
	defer l.Unlock()

	update := *tx
	l.nonce++
	ptx := &pendingTx{
		id:     hash.NewFrom(&updateTx{Nonce: l.nonce, Update: &update}),
		kind:   txUpdateService,
		update: &update,
	}
	l.submitLocked(ptx)

	return ptx.id, nil
}

func (l *Ledger) Confirm(ctx context.Context, txid hash.Hash, depth uint32) error {
	if depth == 0 {
		return errors.WithContext(chain.ErrInvalidArgument, "depth must be positive")
	}

	l.Lock()
	defer l.Unlock()

	rec, ok := l.txs[txid]
	if !ok || rec.invalidated {
		return chain.ErrUnknownTransaction
	}
	// Failures are recorded per transaction, so only the error of txid
	// matters here.
	if rec.height == 0 {
		_ = l.mineLocked(ctx)
	}
	for l.height-rec.height+1 < int64(depth) {
		_ = l.mineLocked(ctx)
	}

	return rec.err
}

func (l *Ledger) GetOutput(ctx context.Context, outpoint collateral.Outpoint) (*chain.Output, error) {
	l.Lock()
	defer l.Unlock()

	out, ok := l.utxos[outpoint]
	if !ok {
		return nil, chain.ErrUnknownOutput
	}
	return &out, nil
}

func (l *Ledger) Height(ctx context.Context) (int64, error) {
	l.Lock()
	defer l.Unlock()

	return l.height, nil
}

// Invalidate reverts a confirmed spend as a chain reorganization would,
// restoring the spent output. The registry observes the reversal at the
// current height.
func (l *Ledger) Invalidate(ctx context.Context, txid hash.Hash) error {
	l.Lock()
	defer l.Unlock()

	rec, ok := l.txs[txid]
	if !ok || rec.height == 0 || rec.invalidated {
		return chain.ErrUnknownTransaction
	}
	if rec.tx.kind != txSpend {
		return errors.WithContext(chain.ErrInvalidArgument, "only spends can be invalidated")
	}
	for i := range rec.tx.outputs {
		op := collateral.Outpoint{TxID: txid, Index: uint32(i)}
		if _, ok = l.utxos[op]; !ok {
			return errors.WithContext(chain.ErrOutputSpent, fmt.Sprintf("output %s of the spend is spent", op))
		}
	}

	if err := l.backend.CollateralUnspent(ctx, l.height, rec.tx.input); err != nil {
		l.logger.Error("Invalidate: registry rejected reversal",
			"err", err,
			"txid", txid,
		)
		return err
	}

	for i := range rec.tx.outputs {
		delete(l.utxos, collateral.Outpoint{TxID: txid, Index: uint32(i)})
	}
	l.utxos[rec.tx.input] = l.spent[rec.tx.input]
	delete(l.spent, rec.tx.input)
	rec.invalidated = true

	l.logger.Info("Invalidate: spend reverted",
		"txid", txid,
		"input", rec.tx.input,
		"height", l.height,
	)

	return nil
}

// Mine mines the whole mempool into a new block. The block is mined even
// when the registry backend fails; the first such failure is returned.
func (l *Ledger) Mine(ctx context.Context) (int64, error) {
	l.Lock()
	defer l.Unlock()

	err := l.mineLocked(ctx)
	return l.height, err
}

// MempoolSize returns the number of pending transactions.
func (l *Ledger) MempoolSize() int {
	l.Lock()
	defer l.Unlock()

	return l.mempool.Len()
}

func (l *Ledger) submitLocked(ptx *pendingTx) {
	l.txs[ptx.id] = &txRecord{tx: ptx}
	l.mempool.PushBack(ptx)

	l.logger.Debug("transaction submitted",
		"txid", ptx.id,
		"mempool_size", l.mempool.Len(),
	)
}

// mineLocked mines the whole mempool into the next block. A failing
// transaction never aborts the block: its error is recorded on the
// transaction and the first backend (non rejection) failure is returned
// once the block is complete.
func (l *Ledger) mineLocked(ctx context.Context) error {
	height := l.height + 1

	var firstErr error
	for l.mempool.Len() > 0 {
		ptx := l.mempool.PopFront()
		rec := l.txs[ptx.id]
		rec.height = height

		err := l.applyLocked(ctx, height, ptx)
		switch {
		case err == nil:
		case isRegistryError(err):
			rec.err = fmt.Errorf("%w: %w", chain.ErrTransactionRejected, err)
			l.logger.Warn("registry rejected transaction",
				"err", err,
				"txid", ptx.id,
				"height", height,
			)
		default:
			rec.err = err
			l.logger.Error("failed to apply transaction",
				"err", err,
				"txid", ptx.id,
				"height", height,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	l.height = height

	l.logger.Debug("block mined",
		"height", height,
	)

	return firstErr
}

func (l *Ledger) applyLocked(ctx context.Context, height int64, ptx *pendingTx) error {
	switch ptx.kind {
	case txFund:
		l.addOutputsLocked(ptx)
	case txSpend:
		delete(l.reserved, ptx.input)
		l.spent[ptx.input] = l.utxos[ptx.input]
		delete(l.utxos, ptx.input)
		l.addOutputsLocked(ptx)
		return l.backend.ApplyEvent(ctx, api.NewCollateralSpentEvent(height, ptx.input, ptx.id))
	case txRegister:
		// The collateral may have been spent since submission.
		if _, ok := l.utxos[ptx.register.Collateral.Outpoint]; !ok {
			return fmt.Errorf("%w: collateral %s", api.ErrCollateralSpent, ptx.register.Collateral.Outpoint)
		}
		return l.backend.ApplyEvent(ctx, api.NewRegisterEvent(height, ptx.register))
	case txUpdateService:
		return l.backend.ApplyEvent(ctx, api.NewUpdateServiceEvent(height, ptx.update))
	}
	return nil
}

func (l *Ledger) addOutputsLocked(ptx *pendingTx) {
	for i, out := range ptx.outputs {
		l.utxos[collateral.Outpoint{TxID: ptx.id, Index: uint32(i)}] = out
	}
}

func isRegistryError(err error) bool {
	module, _ := errors.Code(err)
	return module == api.ModuleName
}

// New creates a new empty ledger driving the given registry backend.
func New(backend api.Backend) *Ledger {
	return NewAt(backend, 0)
}

// NewAt creates a new empty ledger whose next block is mined at height+1.
func NewAt(backend api.Backend, height int64) *Ledger {
	return &Ledger{
		height:   height,
		logger:   logging.GetLogger("chain/mock"),
		backend:  backend,
		utxos:    make(map[collateral.Outpoint]chain.Output),
		spent:    make(map[collateral.Outpoint]chain.Output),
		reserved: make(map[collateral.Outpoint]hash.Hash),
		txs:      make(map[hash.Hash]*txRecord),
		mempool:  deque.New[*pendingTx](),
	}
}
