// internal/audit/sweeper.go
//
// Time-based garbage collection of audit rows.
//
// Context
// -------
// A fixed ticker fires once per minute; each pass computes a cutoff one
// day before now and bulk-deletes older records.  The sweep is
// idempotent and safe alongside concurrent inserts, its result feeds
// only a counter, and the time-series store is deliberately untouched—
// it carries its own retention policy.

package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/subvind/API-sub000/internal/metrics"
)

// Defaults; override via NewSweeper when testing.
const (
	SweepInterval = time.Minute
	MaxAge        = 24 * time.Hour
)

// deleter is the one store method the sweeper needs.
type deleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper is a long-lived background loop.  It shares nothing with
// request handlers except the underlying store.
type Sweeper struct {
	store    deleter
	interval time.Duration
	maxAge   time.Duration
}

// NewSweeper builds a Sweeper.  Non-positive durations fall back to the
// package defaults.
func NewSweeper(store deleter, interval, maxAge time.Duration) *Sweeper {
	if interval <= 0 {
		interval = SweepInterval
	}
	if maxAge <= 0 {
		maxAge = MaxAge
	}
	return &Sweeper{store: store, interval: interval, maxAge: maxAge}
}

// Run blocks until ctx is cancelled.  There are no other cancellation
// semantics; process shutdown is the only stop signal.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

// sweep performs one best-effort pass.
func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.maxAge)
	n, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		zap.L().Warn("audit sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		metrics.AuditSweptTotal.Add(float64(n))
		zap.S().Debugw("audit sweep", "deleted", n, "cutoff", cutoff)
	}
}
