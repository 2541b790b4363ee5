/*
scheduler.go - Periodic balance reconciliation

PURPOSE:
  Replays the movement log on a ticker so that any drift between the
  cached balances and the append-only movements is repaired without an
  operator having to call POST /api/admin/reconcile.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Each run calls stock.Ledger.Reconcile and records a ReconciliationRun
  - Manual runs (RunNow) and ticker runs share one mutex, so at most one
    replay is in flight
  - Interval 0 disables the ticker; RunNow still works

USAGE:
  rs := NewReconcileScheduler(ledger, store, 10*time.Minute, logger)
  rs.Start()
  // ... later
  rs.Stop()

SEE ALSO:
  - handlers.go: Reconcile and ListReconciliationRuns endpoints
  - stock/ledger.go: Reconcile
  - store/sqlite/sqlite.go: reconciliation_runs table
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mellovesfromage/warehouse-system/core"
	"github.com/mellovesfromage/warehouse-system/stock"
	"github.com/mellovesfromage/warehouse-system/store/sqlite"
)

// RunStore persists reconciliation runs. *sqlite.Store satisfies it.
type RunStore interface {
	SaveReconciliationRun(ctx context.Context, r sqlite.ReconciliationRun) error
	ReconciliationRuns(ctx context.Context, limit int) ([]sqlite.ReconciliationRun, error)
}

// ReconcileScheduler runs Ledger.Reconcile periodically and on demand.
type ReconcileScheduler struct {
	Ledger   *stock.Ledger
	Store    RunStore // optional; runs are not recorded when nil
	Interval time.Duration
	Clock    core.Clock

	log    zerolog.Logger
	runMu  sync.Mutex
	mu     sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewReconcileScheduler creates a scheduler. It does not start until Start.
func NewReconcileScheduler(ledger *stock.Ledger, runs RunStore, interval time.Duration, logger zerolog.Logger) *ReconcileScheduler {
	return &ReconcileScheduler{
		Ledger:   ledger,
		Store:    runs,
		Interval: interval,
		log:      logger.With().Str("component", "reconciler").Logger(),
	}
}

// Start begins the ticker. It is a no-op when Interval is zero or the
// scheduler is already running.
func (rs *ReconcileScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.Interval <= 0 {
		rs.log.Info().Msg("scheduled reconciliation disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)
	go rs.run(rs.ticker, rs.stop)

	rs.log.Info().Dur("interval", rs.Interval).Msg("scheduler started")
}

// Stop halts the ticker and waits for an in-flight run to finish.
func (rs *ReconcileScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	close(rs.stop)
	rs.wg.Wait()
	rs.ticker = nil
	rs.log.Info().Msg("scheduler stopped")
}

func (rs *ReconcileScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	for {
		select {
		case <-ticker.C:
			if _, err := rs.RunNow(context.Background()); err != nil {
				rs.log.Error().Err(err).Msg("scheduled reconciliation failed")
			}
		case <-stop:
			return
		}
	}
}

// RunNow reconciles immediately and records the run.
func (rs *ReconcileScheduler) RunNow(ctx context.Context) (stock.ReconcileReport, error) {
	rs.runMu.Lock()
	defer rs.runMu.Unlock()

	now := rs.Clock.OrDefault()
	run := sqlite.ReconciliationRun{ID: core.NewID(), StartedAt: now()}

	report, err := rs.Ledger.Reconcile(ctx)
	run.CompletedAt = now()
	if err != nil {
		run.Error = err.Error()
	} else {
		run.Movements = report.Movements
		run.Keys = report.Keys
		run.Drifted = len(report.Drift)
	}

	if rs.Store != nil {
		if saveErr := rs.Store.SaveReconciliationRun(ctx, run); saveErr != nil {
			rs.log.Warn().Err(saveErr).Str("run_id", run.ID).Msg("failed to record reconciliation run")
		}
	}
	if err != nil {
		return stock.ReconcileReport{}, err
	}

	rs.log.Info().
		Int("movements", run.Movements).
		Int("keys", run.Keys).
		Int("drifted", run.Drifted).
		Dur("took", run.CompletedAt.Sub(run.StartedAt)).
		Msg("reconciliation complete")
	return report, nil
}

// Runs returns recorded runs newest first.
func (rs *ReconcileScheduler) Runs(ctx context.Context, limit int) ([]sqlite.ReconciliationRun, error) {
	if rs.Store == nil {
		return []sqlite.ReconciliationRun{}, nil
	}
	runs, err := rs.Store.ReconciliationRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []sqlite.ReconciliationRun{}
	}
	return runs, nil
}
