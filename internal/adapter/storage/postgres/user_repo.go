package postgres

import (
	"context"
	"errors"
	"fmt"

	"payout-settler/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// GetProfile fetches the referrer and registration time of a user.
// Returns nil, nil when the user does not exist.
func (r *UserRepo) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	query := `SELECT id, referrer, registered_at FROM users WHERE id = $1`

	u := &domain.UserProfile{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(&u.ID, &u.Referrer, &u.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return u, nil
}
