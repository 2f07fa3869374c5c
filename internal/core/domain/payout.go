package domain

import "time"

// SettlementPending is the settlement marker of a claimed but unconfirmed payout.
const SettlementPending = "pending"

// DefaultRemark is logged when none of a batch's payouts carries a remark.
const DefaultRemark = "Bonus"

// SettlementState describes the settlement marker of a payout.
type SettlementState string

const (
	SettlementStateUnsettled SettlementState = "UNSETTLED"
	SettlementStateClaimed   SettlementState = "CLAIMED"
	SettlementStateSettled   SettlementState = "SETTLED"
)

// PendingPayout is a single instruction to pay a wallet.
type PendingPayout struct {
	ID               string     `json:"id"`
	ToWallet         *string    `json:"to,omitempty"` // nil = awaiting wallet binding
	ToUserID         string     `json:"to_id"`
	Value            *string    `json:"value,omitempty"` // decimal string in the smallest token unit
	EffectiveAt      time.Time  `json:"effective_ts"`
	WaitForClaim     bool       `json:"wait_for_claim"`
	TxHash           *string    `json:"tx_hash,omitempty"` // settlement marker
	Remarks          *string    `json:"remarks,omitempty"`
	DelegatorAccount *string    `json:"delegator_account,omitempty"`
	ClaimedAt        *time.Time `json:"claimed_at,omitempty"`
}

// State maps the settlement marker to a SettlementState.
func (p *PendingPayout) State() SettlementState {
	switch {
	case p.TxHash == nil:
		return SettlementStateUnsettled
	case *p.TxHash == SettlementPending:
		return SettlementStateClaimed
	default:
		return SettlementStateSettled
	}
}

// IsEligible reports whether the payout may be picked up at now.
func (p *PendingPayout) IsEligible(now time.Time) bool {
	return !p.WaitForClaim && p.EffectiveAt.Before(now) && p.TxHash == nil
}

// Wallet returns the destination wallet, or "" when unbound.
func (p *PendingPayout) Wallet() string {
	if p.ToWallet == nil {
		return ""
	}
	return *p.ToWallet
}
