package service

import (
	"context"
	"fmt"

	"payout-settler/internal/core/domain"
	"payout-settler/internal/core/ports"

	"github.com/rs/zerolog"
)

type auditService struct {
	repo ports.PayoutLogRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, payout ledger entries are only written to the logger.
func NewAuditService(repo ports.PayoutLogRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// LogPayoutTx writes entry to the structured log and persists it.
func (s *auditService) LogPayoutTx(ctx context.Context, entry *domain.PayoutTxLog) error {
	evt := s.log.Info().
		Str("chain", string(entry.Chain)).
		Str("tx_hash", entry.TxHash).
		Str("from", entry.From).
		Str("to", entry.To).
		Str("from_id", entry.FromID).
		Str("to_id", entry.ToID).
		Str("value", entry.Value).
		Uint64("current_block", entry.CurrentBlock).
		Strs("remarks", entry.Remarks).
		Strs("payout_ids", entry.PayoutIDs)
	switch entry.Chain {
	case domain.ChainKindAccount:
		evt = evt.Uint64("nonce", entry.Counter)
		if entry.GasPrice != nil {
			evt = evt.Str("gas_price", *entry.GasPrice)
		}
	case domain.ChainKindSequence:
		evt = evt.Uint64("sequence", entry.Counter)
		if entry.Gas != nil {
			evt = evt.Uint64("gas", *entry.Gas)
		}
	}
	evt.Msg("payout tx")

	if s.repo == nil {
		return nil
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("persist payout tx log: %w", err)
	}
	return nil
}
