package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"salon-billing/internal/infra/metrics"
)

// PoolStats reports total, idle and acquired connections.
type PoolStats func() (total, idle, inUse int32)

// PoolStatsWorker samples database pool usage into the db_pool_connections gauge.
type PoolStatsWorker struct {
	interval time.Duration
	stats    PoolStats
	log      *zerolog.Logger
}

func NewPoolStatsWorker(interval time.Duration, stats PoolStats, logger *zerolog.Logger) *PoolStatsWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	l := logger.With().Str("component", "PoolStatsWorker").Logger()
	return &PoolStatsWorker{interval: interval, stats: stats, log: &l}
}

func (w *PoolStatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.sample()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *PoolStatsWorker) sample() {
	total, idle, inUse := w.stats()
	metrics.SetDBPoolStats(total, idle, inUse)
	w.log.Debug().Int32("total", total).Int32("idle", idle).Int32("in_use", inUse).Msg("pool stats")
}
