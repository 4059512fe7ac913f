/*
sweeper.go - Periodic installment status sweep

PURPOSE:
  Runs a background goroutine that periodically recomputes the cached
  status label of every unpaid installment, so a record crossing its
  due date shows up overdue without waiting for a read.

DESIGN:
  - The sweep is idempotent and never marks anything paid; it only
    refreshes the transient pending/overdue label.
  - Records with unparseable due dates are skipped with a warning and
    keep their last known status.
  - A failed sweep is logged and retried on the next tick.

CONFIGURATION:
  - Interval: How often to sweep (default: 1 minute)

USAGE:
  sweeper := NewStatusSweeper(svc, log)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - ledger/service.go: RefreshStatuses, the actual sweep logic
  - handlers.go: RefreshStatuses endpoint (manual sweep)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/client-ledger/ledger"
)

// StatusSweeper periodically refreshes cached installment statuses.
type StatusSweeper struct {
	Service  *ledger.Service
	Log      zerolog.Logger
	Interval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewStatusSweeper creates a sweeper with the default 1-minute interval.
func NewStatusSweeper(svc *ledger.Service, log zerolog.Logger) *StatusSweeper {
	return &StatusSweeper{
		Service:  svc,
		Log:      log,
		Interval: 1 * time.Minute,
		stop:     make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (sw *StatusSweeper) Start() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.ticker = time.NewTicker(sw.Interval)
	sw.wg.Add(1)
	go sw.run()

	sw.Log.Info().Dur("interval", sw.Interval).Msg("status sweeper started")
}

// Stop halts the sweep loop and waits for an in-flight sweep.
func (sw *StatusSweeper) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ticker != nil {
		sw.ticker.Stop()
		close(sw.stop)
		sw.wg.Wait()
		sw.Log.Info().Msg("status sweeper stopped")
	}
}

func (sw *StatusSweeper) run() {
	defer sw.wg.Done()

	// Run immediately on start
	sw.sweep()

	for {
		select {
		case <-sw.ticker.C:
			sw.sweep()
		case <-sw.stop:
			return
		}
	}
}

func (sw *StatusSweeper) sweep() {
	report, err := sw.Service.RefreshStatuses(context.Background())
	if err != nil {
		sw.Log.Error().Err(err).Msg("status sweep failed")
		return
	}
	if report.Updated > 0 || report.Warnings > 0 {
		sw.Log.Info().
			Int("checked", report.Checked).
			Int("updated", report.Updated).
			Int("warnings", report.Warnings).
			Msg("status sweep completed")
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (sw *StatusSweeper) RunNow() {
	sw.sweep()
}
