package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"payout-settler/internal/core/domain"
)

// PayoutLogRepo implements ports.PayoutLogRepository.
type PayoutLogRepo struct {
	pool Pool
}

// NewPayoutLogRepo creates a new PayoutLogRepo.
func NewPayoutLogRepo(pool Pool) *PayoutLogRepo {
	return &PayoutLogRepo{pool: pool}
}

// Create inserts a payout tx log entry. The table is append-only.
func (r *PayoutLogRepo) Create(ctx context.Context, e *domain.PayoutTxLog) error {
	remarks, err := json.Marshal(e.Remarks)
	if err != nil {
		return fmt.Errorf("marshal remarks: %w", err)
	}
	payoutIDs, err := json.Marshal(e.PayoutIDs)
	if err != nil {
		return fmt.Errorf("marshal payout ids: %w", err)
	}

	var gas *int64
	if e.Gas != nil {
		g := int64(*e.Gas)
		gas = &g
	}

	query := `INSERT INTO payout_tx_logs (id, chain, tx_hash, from_address, to_address, from_id, to_id,
		value, current_block, counter, gas_price, gas, raw_signed_tx, delegator_address,
		remarks, payout_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = r.pool.Exec(ctx, query,
		e.ID, string(e.Chain), e.TxHash, e.From, e.To, e.FromID, e.ToID,
		e.Value, int64(e.CurrentBlock), int64(e.Counter), e.GasPrice, gas, e.RawSignedTx, e.DelegatorAddress,
		remarks, payoutIDs, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout tx log: %w", err)
	}
	return nil
}
