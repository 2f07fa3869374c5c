package postgres

import (
	"time"

	"payout-settler/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
)

func strPtr(s string) *string { return &s }

func payoutRowColumns() []string {
	return []string{"id", "to_wallet", "to_id", "value", "effective_ts", "wait_for_claim",
		"tx_hash", "remarks", "delegator_account", "claimed_at"}
}

func newTestPayout(id, wallet, value string) domain.PendingPayout {
	return domain.PendingPayout{
		ID:          id,
		ToWallet:    strPtr(wallet),
		ToUserID:    "user-" + id,
		Value:       strPtr(value),
		EffectiveAt: time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
	}
}

func payoutRows(payouts ...domain.PendingPayout) *pgxmock.Rows {
	rows := pgxmock.NewRows(payoutRowColumns())
	for _, p := range payouts {
		rows.AddRow(p.ID, p.ToWallet, p.ToUserID, p.Value, p.EffectiveAt, p.WaitForClaim,
			p.TxHash, p.Remarks, p.DelegatorAccount, p.ClaimedAt)
	}
	return rows
}
