package ports

import (
	"context"
	"time"

	"payout-settler/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PayoutRepository defines persistence operations for pending payouts.
type PayoutRepository interface {
	// ListEligible returns payouts that are not waiting for claim, matured
	// before now and carry no settlement marker, in store order.
	ListEligible(ctx context.Context, now time.Time, limit int) ([]domain.PendingPayout, error)
	// MarkSettled writes txHash as the settlement marker of every id.
	// Replaying it with the same hash is a no-op.
	MarkSettled(ctx context.Context, ids []string, txHash string) error
	// ListStaleClaims returns payouts stuck at the pending marker since before claimedBefore.
	ListStaleClaims(ctx context.Context, claimedBefore time.Time, limit int) ([]domain.PendingPayout, error)
}

// ClaimLedger reserves payouts for settlement.
type ClaimLedger interface {
	// TryClaim atomically verifies none of ids carries a settlement marker and
	// marks them all pending. On conflict it returns apperror CLM_001 and
	// mutates nothing.
	TryClaim(ctx context.Context, ids []string) error
}

// UserRepository reads receiver attribution data.
type UserRepository interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
}

// PayoutLogRepository is the append-only audit sink of dispatched batches.
type PayoutLogRepository interface {
	Create(ctx context.Context, entry *domain.PayoutTxLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
