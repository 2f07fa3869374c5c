package postgres

import (
	"context"
	"fmt"
)

// requiredTables must exist for the worker to make progress.
var requiredTables = []string{"payouts", "users", "payout_tx_logs"}

// HealthCheck implements ports.HealthChecker for PostgreSQL. Beyond
// connectivity it verifies the payout schema is migrated.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping reports an error when the database is unreachable or a table is missing.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var missing []string
	err := h.pool.QueryRow(ctx,
		`SELECT COALESCE(array_agg(t), '{}') FROM unnest($1::text[]) AS t WHERE to_regclass(t) IS NULL`,
		requiredTables,
	).Scan(&missing)
	if err != nil {
		return fmt.Errorf("probe schema: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tables: %v", missing)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
