package service

import (
	"context"
	"fmt"
	"time"

	"payout-settler/internal/core/domain"
	"payout-settler/internal/core/ports"
	"payout-settler/pkg/apperror"
	"payout-settler/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Cycle results reported to metrics.
const (
	CycleResultOK      = "ok"
	CycleResultError   = "error"
	CycleResultSkipped = "skipped"
)

const cycleLockName = "payout-settler:cycle"

// PollerConfig tunes the poll loop.
type PollerConfig struct {
	Delay      time.Duration
	BatchLimit int
	LockTTL    time.Duration
}

// Poller drives settlement: one cycle at a time with a fixed delay between
// cycles. Batches within a cycle are settled strictly in order because every
// dispatch draws on the same signer counter.
type Poller struct {
	payouts    ports.PayoutRepository
	aggregator *Aggregator
	settler    ports.SettlementService
	lock       ports.CycleLock
	metrics    *metrics.Metrics
	cfg        PollerConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewPoller creates a new Poller. lock and m may be nil.
func NewPoller(
	payouts ports.PayoutRepository,
	aggregator *Aggregator,
	settler ports.SettlementService,
	lock ports.CycleLock,
	m *metrics.Metrics,
	cfg PollerConfig,
	log zerolog.Logger,
) *Poller {
	return &Poller{
		payouts:    payouts,
		aggregator: aggregator,
		settler:    settler,
		lock:       lock,
		metrics:    m,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// Run executes cycles until ctx is cancelled. Cycle failures are logged and
// never end the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info().
		Dur("delay", p.cfg.Delay).
		Int("batch_limit", p.cfg.BatchLimit).
		Msg("poll loop started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("poll loop stopped")
			return nil
		case <-timer.C:
		}

		if err := p.RunOnce(ctx); err != nil {
			p.log.Error().Err(err).Msg("poll cycle failed")
		}
		timer.Reset(p.cfg.Delay)
	}
}

// RunOnce executes a single poll cycle.
func (p *Poller) RunOnce(ctx context.Context) (err error) {
	cycleID := uuid.NewString()
	log := p.log.With().Str("cycle_id", cycleID).Logger()

	defer func() {
		if r := recover(); r != nil {
			err = apperror.InternalError(fmt.Errorf("poll cycle panic: %v", r))
		}
		if err != nil {
			p.metrics.Cycle(CycleResultError)
		}
	}()

	if p.lock != nil {
		token, ok, lockErr := p.lock.Acquire(ctx, cycleLockName, p.cfg.LockTTL)
		switch {
		case lockErr != nil:
			// claims stay atomic without the lock
			log.Warn().Err(lockErr).Msg("cycle lock unavailable, running unguarded")
		case !ok:
			log.Debug().Msg("another replica holds the cycle lock")
			p.metrics.Cycle(CycleResultSkipped)
			return nil
		default:
			defer func() {
				if relErr := p.lock.Release(context.WithoutCancel(ctx), cycleLockName, token); relErr != nil {
					log.Warn().Err(relErr).Msg("failed to release cycle lock")
				}
			}()
		}
	}

	records, err := p.payouts.ListEligible(ctx, p.now(), p.cfg.BatchLimit)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("list eligible payouts: %w", err))
	}

	batches := p.aggregator.Aggregate(records)
	log.Debug().Int("records", len(records)).Int("batches", len(batches)).Msg("poll cycle")

	for _, b := range batches {
		if ctx.Err() != nil {
			break
		}
		outcome := p.settleBatch(ctx, log, b)
		p.metrics.Batch(string(outcome))
	}

	p.metrics.Cycle(CycleResultOK)
	return nil
}

// settleBatch contains every failure of one batch, panics included.
func (p *Poller) settleBatch(ctx context.Context, log zerolog.Logger, b *domain.SettlementBatch) (outcome domain.SettlementOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("wallet", b.Wallet).Msg("batch settlement panicked")
			outcome = domain.OutcomeDispatchFailed
		}
	}()

	outcome, err := p.settler.Settle(ctx, b)
	if err != nil {
		log.Error().Err(err).
			Str("wallet", b.Wallet).
			Strs("payout_ids", b.PayoutIDs).
			Str("outcome", string(outcome)).
			Msg("batch settlement failed")
	}
	return outcome
}
