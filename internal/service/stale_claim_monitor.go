package service

import (
	"context"
	"fmt"
	"time"

	"payout-settler/internal/core/ports"
	"payout-settler/pkg/metrics"

	"github.com/rs/zerolog"
)

const (
	staleScanLimit = 1000

	// Defaults applied when a non-positive threshold or interval is configured.
	DefaultStaleClaimAfter   = 30 * time.Minute
	DefaultStaleScanInterval = 5 * time.Minute
)

// StaleClaimMonitor reports payouts left at the pending marker by a crash or
// a failed dispatch. It never re-opens or re-dispatches them: whether the
// transaction reached the chain has to be decided by an operator.
type StaleClaimMonitor struct {
	payouts  ports.PayoutRepository
	metrics  *metrics.Metrics
	after    time.Duration
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewStaleClaimMonitor creates a monitor flagging claims older than after.
func NewStaleClaimMonitor(payouts ports.PayoutRepository, m *metrics.Metrics, after, interval time.Duration, log zerolog.Logger) *StaleClaimMonitor {
	if after <= 0 {
		after = DefaultStaleClaimAfter
	}
	if interval <= 0 {
		interval = DefaultStaleScanInterval
	}
	return &StaleClaimMonitor{
		payouts:  payouts,
		metrics:  m,
		after:    after,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Scan logs every stale claim and returns how many were found.
func (m *StaleClaimMonitor) Scan(ctx context.Context) (int, error) {
	stale, err := m.payouts.ListStaleClaims(ctx, m.now().Add(-m.after), staleScanLimit)
	if err != nil {
		return 0, fmt.Errorf("list stale claims: %w", err)
	}

	for _, p := range stale {
		evt := m.log.Warn().
			Str("payout_id", p.ID).
			Str("wallet", p.Wallet()).
			Str("to_id", p.ToUserID)
		if p.ClaimedAt != nil {
			evt = evt.Time("claimed_at", *p.ClaimedAt)
		}
		evt.Msg("payout stuck at pending marker, needs reconciliation")
	}
	m.metrics.StaleClaims(len(stale))
	return len(stale), nil
}

// Run scans every interval until ctx is cancelled.
func (m *StaleClaimMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if _, err := m.Scan(ctx); err != nil {
			m.log.Error().Err(err).Msg("stale claim scan failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
