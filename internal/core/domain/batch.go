package domain

import "github.com/shopspring/decimal"

// SettlementBatch folds every payout for one wallet found in a single poll
// cycle. It is never persisted and never reused across cycles.
type SettlementBatch struct {
	Wallet           string
	UserID           string
	DelegatorAccount string
	PayoutIDs        []string
	Payouts          []PendingPayout
	Value            decimal.Decimal
}

// NewSettlementBatch starts an empty batch for wallet.
func NewSettlementBatch(wallet, userID string) *SettlementBatch {
	return &SettlementBatch{
		Wallet: wallet,
		UserID: userID,
		Value:  decimal.Zero,
	}
}

// Add appends a payout and folds its amount into the running sum.
func (b *SettlementBatch) Add(p PendingPayout, amount decimal.Decimal) {
	b.PayoutIDs = append(b.PayoutIDs, p.ID)
	b.Payouts = append(b.Payouts, p)
	b.Value = b.Value.Add(amount)
	if b.DelegatorAccount == "" && p.DelegatorAccount != nil {
		b.DelegatorAccount = *p.DelegatorAccount
	}
}

// Remarks returns the non-empty remarks of the batch, or the default placeholder.
func (b *SettlementBatch) Remarks() []string {
	remarks := make([]string, 0, len(b.Payouts))
	for _, p := range b.Payouts {
		if p.Remarks != nil && *p.Remarks != "" {
			remarks = append(remarks, *p.Remarks)
		}
	}
	if len(remarks) == 0 {
		return []string{DefaultRemark}
	}
	return remarks
}

// SettlementOutcome is how processing of one batch ended.
type SettlementOutcome string

const (
	OutcomeSettled         SettlementOutcome = "settled"
	OutcomeClaimConflict   SettlementOutcome = "claim_conflict"
	OutcomeUnsupported     SettlementOutcome = "unsupported_wallet"
	OutcomeClaimFailed     SettlementOutcome = "claim_failed"
	OutcomeDispatchFailed  SettlementOutcome = "dispatch_failed"
	OutcomeSettledDegraded SettlementOutcome = "settled_degraded" // money moved, a bookkeeping step failed
)
