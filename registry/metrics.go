package registry

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/node"
	"github.com/kwvg/dash/common/pubsub"
	"github.com/kwvg/dash/registry/api"
)

var (
	registryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dash_registry_failures",
			Help: "Number of registry failures.",
		},
		[]string{"call"},
	)
	registryActiveNodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dash_registry_active_nodes",
			Help: "Number of active registry entries.",
		},
		[]string{"kind"},
	)
	registryRetirements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dash_registry_retirements",
			Help: "Number of entries retired by a collateral spend.",
		},
	)
	registryHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dash_registry_height",
			Help: "Height of the last applied chain event.",
		},
	)
	registryCollectors = []prometheus.Collector{
		registryFailures,
		registryActiveNodes,
		registryRetirements,
		registryHeight,
	}

	_ api.Backend = (*metricsWrapper)(nil)

	metricsOnce sync.Once
)

type metricsWrapper struct {
	api.Backend

	sub    pubsub.ClosableSubscription
	doneCh chan struct{}
}

func (w *metricsWrapper) failed(call string, err error) error {
	if err != nil {
		registryFailures.With(prometheus.Labels{"call": call}).Inc()
	}
	return err
}

func (w *metricsWrapper) Register(ctx context.Context, height int64, tx *api.RegisterTx) (hash.Hash, error) {
	id, err := w.Backend.Register(ctx, height, tx)
	return id, w.failed("register", err)
}

func (w *metricsWrapper) UpdateService(ctx context.Context, height int64, tx *api.UpdateServiceTx) error {
	return w.failed("updateService", w.Backend.UpdateService(ctx, height, tx))
}

func (w *metricsWrapper) CollateralSpent(ctx context.Context, height int64, outpoint collateral.Outpoint, spentBy hash.Hash) error {
	return w.failed("collateralSpent", w.Backend.CollateralSpent(ctx, height, outpoint, spentBy))
}

func (w *metricsWrapper) CollateralUnspent(ctx context.Context, height int64, outpoint collateral.Outpoint) error {
	return w.failed("collateralUnspent", w.Backend.CollateralUnspent(ctx, height, outpoint))
}

func (w *metricsWrapper) ApplyEvent(ctx context.Context, ev *api.ChainEvent) error {
	return w.failed("applyEvent", w.Backend.ApplyEvent(ctx, ev))
}

func (w *metricsWrapper) Diff(ctx context.Context, baseHeight, height int64) (*api.ListDiff, error) {
	diff, err := w.Backend.Diff(ctx, baseHeight, height)
	return diff, w.failed("diff", err)
}

func (w *metricsWrapper) Cleanup() {
	w.sub.Close()
	<-w.doneCh
	w.Backend.Cleanup()
}

func (w *metricsWrapper) worker(ch <-chan *api.EntryEvent) {
	defer close(w.doneCh)

	for ev := range ch {
		labels := prometheus.Labels{"kind": ev.Entry.Kind.String()}
		switch ev.Kind {
		case api.EventRegistered, api.EventRestored:
			registryActiveNodes.With(labels).Inc()
		case api.EventRetired:
			registryActiveNodes.With(labels).Dec()
			registryRetirements.Inc()
		}
		registryHeight.Set(float64(ev.Height))
	}
}

func newMetricsWrapper(ctx context.Context, base api.Backend) (api.Backend, error) {
	metricsOnce.Do(func() {
		prometheus.MustRegister(registryCollectors...)
	})

	ch, sub, err := base.WatchEntries(ctx)
	if err != nil {
		return nil, err
	}

	// Seed the gauges with entries that predate the subscription, such
	// as those rebuilt from the journal.
	entries, err := base.GetEntries(ctx, nil)
	if err != nil {
		sub.Close()
		return nil, err
	}
	for _, kind := range []node.Kind{node.KindRegular, node.KindEvo} {
		registryActiveNodes.With(prometheus.Labels{"kind": kind.String()}).Set(0)
	}
	for _, e := range entries {
		if e.IsActive() {
			registryActiveNodes.With(prometheus.Labels{"kind": e.Kind.String()}).Inc()
		}
	}
	height, err := base.Height(ctx)
	if err != nil {
		sub.Close()
		return nil, err
	}
	registryHeight.Set(float64(height))

	w := &metricsWrapper{
		Backend: base,
		sub:     sub,
		doneCh:  make(chan struct{}),
	}
	go w.worker(ch)

	return w, nil
}
