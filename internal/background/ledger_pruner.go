package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/pmcoach/internal/metrics"
	"github.com/jonboulle/clockwork"
)

// DefaultPruneInterval is used when no interval is configured
const DefaultPruneInterval = 5 * time.Minute

// PrunableLedger is implemented by repositories.AttemptLedger
type PrunableLedger interface {
	Prune(cutoff time.Time) int
	Len() int
}

// LedgerPruner periodically drops attempt records that have been idle longer
// than the retention window. Pruned records are already past their lockout,
// so removing them never changes a throttle decision.
type LedgerPruner struct {
	ledger    PrunableLedger
	retention time.Duration
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewLedgerPruner creates a new ledger pruner. retention should be at least
// the lockout duration.
func NewLedgerPruner(
	ledger PrunableLedger,
	retention time.Duration,
	interval time.Duration,
	clock clockwork.Clock,
	logger *slog.Logger,
) *LedgerPruner {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	return &LedgerPruner{
		ledger:    ledger,
		retention: retention,
		interval:  interval,
		clock:     clock,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic prune loop and blocks until Stop or ctx is done
func (p *LedgerPruner) Start(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	// Run immediately on startup
	p.runPrune()

	for {
		select {
		case <-ticker.Chan():
			p.runPrune()
		case <-p.stopCh:
			p.logger.Info("ledger pruner stopped")
			return
		case <-ctx.Done():
			p.logger.Info("ledger pruner context cancelled")
			return
		}
	}
}

// runPrune removes idle records from the ledger
func (p *LedgerPruner) runPrune() {
	cutoff := p.clock.Now().Add(-p.retention)
	removed := p.ledger.Prune(cutoff)
	if removed == 0 {
		return
	}

	metrics.LedgerRecordsPruned.Add(float64(removed))
	p.logger.Info("attempt ledger pruned",
		slog.Int("records_removed", removed),
		slog.Int("records_remaining", p.ledger.Len()))
}

// Stop signals the pruner to stop. It is safe to call more than once.
func (p *LedgerPruner) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}
