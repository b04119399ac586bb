package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"shieldscope/internal/metrics"
	"shieldscope/internal/model"
)

// ErrRecomputeInFlight is returned when a recompute overlaps a running one.
var ErrRecomputeInFlight = errors.New("recompute already in flight")

// Store is the persistence surface the engine needs. Each Replace call swaps
// one aggregate family atomically.
type Store interface {
	LoadEventFacts(ctx context.Context, network string) ([]model.EventFact, error)
	ReplaceDailyFlows(ctx context.Context, network string, rows []model.DailyFlow) error
	ReplaceRelayerStats(ctx context.Context, network string, rows []model.RelayerStatsDaily) error
	ReplaceFeeRevenue(ctx context.Context, network string, rows []model.RelayerFeeRevenueDaily) error
	ReplaceTokenDiversity(ctx context.Context, network string, rows []model.DailyTokenDiversity) error
}

// Engine recomputes the derived daily statistics from the full raw event
// log. Full recomputation trades cost for correctness: out-of-order or
// backfilled events need no delta logic.
type Engine struct {
	store   Store
	logger  *zap.Logger
	running atomic.Bool
}

// NewEngine builds an aggregation engine over the store.
func NewEngine(store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger}
}

// Recompute rebuilds every aggregate family for one network (all networks
// when empty). Only one recompute may run at a time. A family that fails to
// swap keeps its previously committed rows; the other families still run.
func (e *Engine) Recompute(ctx context.Context, network string) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRecomputeInFlight
	}
	defer e.running.Store(false)

	facts, err := e.store.LoadEventFacts(ctx, network)
	if err != nil {
		return fmt.Errorf("load event facts: %w", err)
	}
	e.logger.Info("recompute start", zap.String("network", network), zap.Int("facts", len(facts)))

	var errs error
	errs = multierr.Append(errs, e.runFamily(ctx, "daily_flows", func() error {
		return e.store.ReplaceDailyFlows(ctx, network, ComputeDailyFlows(facts))
	}))
	errs = multierr.Append(errs, e.runFamily(ctx, "relayer_stats", func() error {
		return e.store.ReplaceRelayerStats(ctx, network, ComputeRelayerStats(facts))
	}))
	errs = multierr.Append(errs, e.runFamily(ctx, "relayer_fee_revenue", func() error {
		return e.store.ReplaceFeeRevenue(ctx, network, ComputeFeeRevenue(facts))
	}))
	errs = multierr.Append(errs, e.runFamily(ctx, "token_diversity", func() error {
		return e.store.ReplaceTokenDiversity(ctx, network, ComputeTokenDiversity(facts))
	}))

	return errs
}

// RunPeriodic triggers Recompute on the interval until the context ends.
// Failed runs are logged and skipped; committed rows are never corrupted.
func (e *Engine) RunPeriodic(ctx context.Context, network string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Recompute(ctx, network); err != nil {
				e.logger.Warn("scheduled recompute failed", zap.Error(err))
			}
		}
	}
}

func (e *Engine) runFamily(ctx context.Context, family string, replace func() error) error {
	start := time.Now()
	if err := replace(); err != nil {
		e.logger.Warn("aggregate family failed", zap.String("family", family), zap.Error(err))
		return fmt.Errorf("%s: %w", family, err)
	}
	metrics.RecomputeDuration.WithLabelValues(family).Observe(time.Since(start).Seconds())
	e.logger.Info("aggregate family complete", zap.String("family", family), zap.Duration("took", time.Since(start)))
	return nil
}
