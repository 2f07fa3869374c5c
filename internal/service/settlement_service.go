package service

import (
	"context"
	"time"

	"payout-settler/internal/core/domain"
	"payout-settler/internal/core/ports"
	"payout-settler/pkg/apperror"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultMarkAttempts = 5

	// bookkeepingTimeout caps the steps after a broadcast, which outlive
	// cancellation of the poll loop.
	bookkeepingTimeout = 2 * time.Minute
)

// SettlementConfig tunes the orchestrator.
type SettlementConfig struct {
	Topic string
	// MarkAttempts bounds retries of the settlement-marker update.
	MarkAttempts uint64
	// MarkBackOff returns the retry schedule of one MarkSettled call. Defaults
	// to exponential backoff.
	MarkBackOff func() backoff.BackOff
}

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	ledger    ports.ClaimLedger
	payouts   ports.PayoutRepository
	users     ports.UserRepository
	selector  *ChainSelector
	audit     ports.AuditService
	publisher ports.EventPublisher
	cfg       SettlementConfig
	log       zerolog.Logger
	now       func() time.Time
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	ledger ports.ClaimLedger,
	payouts ports.PayoutRepository,
	users ports.UserRepository,
	selector *ChainSelector,
	audit ports.AuditService,
	publisher ports.EventPublisher,
	cfg SettlementConfig,
	log zerolog.Logger,
) *SettlementServiceImpl {
	if cfg.MarkAttempts == 0 {
		cfg.MarkAttempts = defaultMarkAttempts
	}
	if cfg.MarkBackOff == nil {
		cfg.MarkBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	return &SettlementServiceImpl{
		ledger:    ledger,
		payouts:   payouts,
		users:     users,
		selector:  selector,
		audit:     audit,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Settle claims, dispatches and records one batch. Everything after a
// successful dispatch is best effort: failures there degrade the outcome but
// never make the batch eligible for another dispatch.
func (s *SettlementServiceImpl) Settle(ctx context.Context, batch *domain.SettlementBatch) (domain.SettlementOutcome, error) {
	log := s.log.With().
		Str("wallet", batch.Wallet).
		Strs("payout_ids", batch.PayoutIDs).
		Str("value", batch.Value.String()).
		Logger()

	dispatcher, ok := s.selector.Select(batch.Wallet)
	if !ok {
		log.Warn().Str("chain", string(s.selector.Classify(batch.Wallet))).Msg("no dispatcher for wallet, batch left unclaimed")
		return domain.OutcomeUnsupported, apperror.ErrUnsupportedWallet(batch.Wallet)
	}
	log = log.With().Str("chain", string(dispatcher.Kind())).Logger()

	// Step 1: claim
	if err := s.ledger.TryClaim(ctx, batch.PayoutIDs); err != nil {
		if apperror.Is(err, apperror.CodeAlreadyClaimed) {
			log.Info().Msg("batch already claimed, skipping")
			return domain.OutcomeClaimConflict, nil
		}
		return domain.OutcomeClaimFailed, err
	}

	// Step 2: dispatch
	result, err := dispatcher.Dispatch(ctx, batch.Wallet, batch.Value)
	if err != nil {
		log.Error().Err(err).Msg("dispatch failed, payouts remain pending")
		return domain.OutcomeDispatchFailed, err
	}
	log = log.With().Str("tx_hash", result.TxHash).Uint64("counter", result.Counter).Logger()

	// money moved: record it even when shutdown cancelled ctx mid-broadcast
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	degraded := false

	// Step 3: mark settled
	if err := s.markSettled(ctx, batch.PayoutIDs, result.TxHash); err != nil {
		degraded = true
		log.Error().Err(err).Msg("failed to write settlement marker, payouts remain pending")
	}

	height, err := dispatcher.CurrentHeight(ctx)
	if err != nil {
		degraded = true
		log.Warn().Err(err).Msg("chain height unavailable")
	}

	// Step 4: audit log
	if err := s.audit.LogPayoutTx(ctx, s.buildTxLog(batch, result, height)); err != nil {
		degraded = true
		log.Error().Err(err).Msg("failed to write payout audit log")
	}

	// Step 5: event publish
	profile, err := s.users.GetProfile(ctx, batch.UserID)
	if err != nil {
		degraded = true
		log.Warn().Err(err).Str("user_id", batch.UserID).Msg("user profile lookup failed")
	}
	event := s.buildEvent(batch, result, height, profile)
	if err := s.publisher.Publish(ctx, s.cfg.Topic, event); err != nil {
		degraded = true
		log.Error().Err(err).Msg("failed to publish payout event")
	}

	if degraded {
		return domain.OutcomeSettledDegraded, nil
	}
	log.Info().Msg("batch settled")
	return domain.OutcomeSettled, nil
}

func (s *SettlementServiceImpl) markSettled(ctx context.Context, ids []string, txHash string) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(s.cfg.MarkBackOff(), s.cfg.MarkAttempts-1), ctx)
	return backoff.Retry(func() error {
		return s.payouts.MarkSettled(ctx, ids, txHash)
	}, policy)
}

// fromID attributes the payout to the delegator when one is recorded.
func fromID(batch *domain.SettlementBatch, result *domain.DispatchResult) string {
	if batch.DelegatorAccount != "" {
		return batch.DelegatorAccount
	}
	return result.SignerAddress
}

func (s *SettlementServiceImpl) buildTxLog(batch *domain.SettlementBatch, result *domain.DispatchResult, height uint64) *domain.PayoutTxLog {
	entry := &domain.PayoutTxLog{
		ID:               uuid.New(),
		Chain:            result.Chain,
		TxHash:           result.TxHash,
		From:             result.SignerAddress,
		To:               batch.Wallet,
		FromID:           fromID(batch, result),
		ToID:             batch.UserID,
		Value:            batch.Value.String(),
		CurrentBlock:     height,
		Counter:          result.Counter,
		DelegatorAddress: result.SignerAddress,
		Remarks:          batch.Remarks(),
		PayoutIDs:        batch.PayoutIDs,
		CreatedAt:        s.now().UTC(),
	}
	switch result.Chain {
	case domain.ChainKindAccount:
		gasPrice := result.GasPrice
		entry.GasPrice = &gasPrice
		if len(result.RawSignedTx) > 0 {
			raw := hexutil.Encode(result.RawSignedTx)
			entry.RawSignedTx = &raw
		}
	case domain.ChainKindSequence:
		gas := result.Gas
		entry.Gas = &gas
	}
	return entry
}

func (s *SettlementServiceImpl) buildEvent(batch *domain.SettlementBatch, result *domain.DispatchResult, height uint64, profile *domain.UserProfile) *domain.PayoutEvent {
	event := &domain.PayoutEvent{
		FromUser:          fromID(batch, result),
		FromWallet:        result.SignerAddress,
		ToUser:            batch.UserID,
		ToWallet:          batch.Wallet,
		LikeAmount:        domain.HumanAmount(batch.Value).InexactFloat64(),
		LikeAmountUnitStr: batch.Value.String(),
		TxHash:            result.TxHash,
		TxStatus:          domain.TxStatusPending,
		CurrentBlock:      height,
		DelegatorAddress:  result.SignerAddress,
	}
	counter := result.Counter
	switch result.Chain {
	case domain.ChainKindAccount:
		event.LogType = domain.LogTypeEVMPayout
		event.TxNonce = &counter
		gasPrice := result.GasPrice
		event.GasPrice = &gasPrice
	case domain.ChainKindSequence:
		event.LogType = domain.LogTypeCosmosPayout
		event.TxSequence = &counter
		gas := result.Gas
		event.Gas = &gas
	}
	if profile != nil {
		event.ToReferrer = profile.Referrer
		if !profile.RegisteredAt.IsZero() {
			ts := profile.RegisteredAt.UnixMilli()
			event.ToRegisterTime = &ts
		}
	}
	return event
}
