package postgres

import (
	"context"
	"fmt"

	"payout-settler/internal/core/domain"
	"payout-settler/internal/core/ports"
	"payout-settler/pkg/apperror"
)

// ClaimLedger implements ports.ClaimLedger with row locks in one transaction.
type ClaimLedger struct {
	transactor ports.DBTransactor
}

// NewClaimLedger creates a new ClaimLedger.
func NewClaimLedger(transactor ports.DBTransactor) *ClaimLedger {
	return &ClaimLedger{transactor: transactor}
}

// TryClaim locks every row of ids, verifies none carries a settlement marker
// and marks them all pending. Any conflict rolls back without writing.
func (l *ClaimLedger) TryClaim(ctx context.Context, ids []string) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	tx, err := l.transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("begin claim tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Lock in id order so overlapping claims cannot deadlock.
	rows, err := tx.Query(ctx,
		`SELECT id, tx_hash FROM payouts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("lock payouts: %w", err))
	}

	found := make(map[string]bool, len(ids))
	claimed := false
	for rows.Next() {
		var id string
		var txHash *string
		if err := rows.Scan(&id, &txHash); err != nil {
			rows.Close()
			return apperror.ErrDatabaseError(fmt.Errorf("scan claim row: %w", err))
		}
		found[id] = true
		if txHash != nil {
			claimed = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("iterate claim rows: %w", err))
	}

	if claimed {
		return apperror.ErrAlreadyClaimed()
	}
	for _, id := range ids {
		if !found[id] {
			return apperror.ErrPayoutMissing(id)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE payouts SET tx_hash = $1, claimed_at = NOW() WHERE id = ANY($2)`,
		domain.SettlementPending, ids)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("mark payouts pending: %w", err))
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return apperror.ErrDatabaseError(fmt.Errorf("mark payouts pending: updated %d of %d", tag.RowsAffected(), len(ids)))
	}

	if err := tx.Commit(ctx); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("commit claim tx: %w", err))
	}
	return nil
}
