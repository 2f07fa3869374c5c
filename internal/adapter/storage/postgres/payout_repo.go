package postgres

import (
	"context"
	"fmt"
	"time"

	"payout-settler/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, to_wallet, to_id, value::text, effective_ts, wait_for_claim,
		tx_hash, remarks, delegator_account, claimed_at`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

// ListEligible fetches matured, unclaimed payouts. Records carrying any
// settlement marker are excluded, so settled payouts never come back.
func (r *PayoutRepo) ListEligible(ctx context.Context, now time.Time, limit int) ([]domain.PendingPayout, error) {
	query := `SELECT ` + payoutColumns + `
		FROM payouts
		WHERE wait_for_claim = false AND effective_ts < $1 AND tx_hash IS NULL
		ORDER BY effective_ts, id
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list eligible payouts: %w", err)
	}
	return collectPayouts(rows)
}

// MarkSettled writes txHash over the pending marker of ids. Rows already
// carrying txHash count as updated, so replays after a crash are safe.
func (r *PayoutRepo) MarkSettled(ctx context.Context, ids []string, txHash string) error {
	query := `UPDATE payouts SET tx_hash = $1, settled_at = NOW()
		WHERE id = ANY($2) AND (tx_hash = $3 OR tx_hash = $1)`

	tag, err := r.pool.Exec(ctx, query, txHash, ids, domain.SettlementPending)
	if err != nil {
		return fmt.Errorf("mark payouts settled: %w", err)
	}
	if want := int64(len(uniqueIDs(ids))); tag.RowsAffected() != want {
		return fmt.Errorf("mark payouts settled: updated %d of %d payouts", tag.RowsAffected(), want)
	}
	return nil
}

// ListStaleClaims fetches payouts held at the pending marker since before claimedBefore.
func (r *PayoutRepo) ListStaleClaims(ctx context.Context, claimedBefore time.Time, limit int) ([]domain.PendingPayout, error) {
	query := `SELECT ` + payoutColumns + `
		FROM payouts
		WHERE tx_hash = $1 AND claimed_at < $2
		ORDER BY claimed_at
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.SettlementPending, claimedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale claims: %w", err)
	}
	return collectPayouts(rows)
}

func collectPayouts(rows pgx.Rows) ([]domain.PendingPayout, error) {
	defer rows.Close()

	var payouts []domain.PendingPayout
	for rows.Next() {
		p := domain.PendingPayout{}
		err := rows.Scan(
			&p.ID, &p.ToWallet, &p.ToUserID, &p.Value, &p.EffectiveAt, &p.WaitForClaim,
			&p.TxHash, &p.Remarks, &p.DelegatorAccount, &p.ClaimedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payout row: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout rows: %w", err)
	}
	return payouts, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
