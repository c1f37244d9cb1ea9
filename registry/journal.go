package registry

import (
	"context"

	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/logging"
	"github.com/kwvg/dash/common/persistent"
	"github.com/kwvg/dash/registry/api"
	"github.com/kwvg/dash/registry/journal"
)

var _ api.Backend = (*journalWrapper)(nil)

// journalWrapper records every chain event the backend accepted.
type journalWrapper struct {
	api.Backend

	logger  *logging.Logger
	journal *journal.Journal
	store   *persistent.CommonStore
}

func (w *journalWrapper) record(ev *api.ChainEvent) error {
	if err := w.journal.Append(ev); err != nil {
		// The backend already applied the event, so the journal is now
		// behind the registry and a restart would lose the event.
		w.logger.Error("failed to journal applied event",
			"err", err,
			"kind", ev.Kind,
			"height", ev.Height,
		)
		return err
	}
	return nil
}

func (w *journalWrapper) Register(ctx context.Context, height int64, tx *api.RegisterTx) (hash.Hash, error) {
	id, err := w.Backend.Register(ctx, height, tx)
	if err != nil {
		return id, err
	}
	return id, w.record(api.NewRegisterEvent(height, tx))
}

func (w *journalWrapper) UpdateService(ctx context.Context, height int64, tx *api.UpdateServiceTx) error {
	if err := w.Backend.UpdateService(ctx, height, tx); err != nil {
		return err
	}
	return w.record(api.NewUpdateServiceEvent(height, tx))
}

func (w *journalWrapper) CollateralSpent(ctx context.Context, height int64, outpoint collateral.Outpoint, spentBy hash.Hash) error {
	if err := w.Backend.CollateralSpent(ctx, height, outpoint, spentBy); err != nil {
		return err
	}
	return w.record(api.NewCollateralSpentEvent(height, outpoint, spentBy))
}

func (w *journalWrapper) CollateralUnspent(ctx context.Context, height int64, outpoint collateral.Outpoint) error {
	if err := w.Backend.CollateralUnspent(ctx, height, outpoint); err != nil {
		return err
	}
	return w.record(api.NewCollateralUnspentEvent(height, outpoint))
}

func (w *journalWrapper) ApplyEvent(ctx context.Context, ev *api.ChainEvent) error {
	if err := w.Backend.ApplyEvent(ctx, ev); err != nil {
		return err
	}
	return w.record(ev)
}

func (w *journalWrapper) Cleanup() {
	w.Backend.Cleanup()
	w.store.Close()
}

// newJournalWrapper opens the journal in dataDir, rebuilds base from it
// and wraps base so that further accepted events are recorded.
func newJournalWrapper(ctx context.Context, base api.Backend, dataDir string) (api.Backend, error) {
	logger := logging.GetLogger("registry/journal").With("data_dir", dataDir)

	store, err := persistent.NewCommonStore(dataDir)
	if err != nil {
		return nil, err
	}
	j, err := journal.New(store)
	if err != nil {
		store.Close()
		return nil, err
	}
	if _, err = j.Replay(ctx, base); err != nil {
		store.Close()
		return nil, err
	}

	return &journalWrapper{
		Backend: base,
		logger:  logger,
		journal: j,
		store:   store,
	}, nil
}
