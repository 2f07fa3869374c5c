package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutTxLog is the append-only audit entry written for every dispatched batch.
type PayoutTxLog struct {
	ID               uuid.UUID `json:"id"`
	Chain            ChainKind `json:"chain"`
	TxHash           string    `json:"tx_hash"`
	From             string    `json:"from"`
	To               string    `json:"to"`
	FromID           string    `json:"from_id"`
	ToID             string    `json:"to_id"`
	Value            string    `json:"value"`
	CurrentBlock     uint64    `json:"current_block"`
	Counter          uint64    `json:"counter"` // nonce (ACCOUNT) or sequence (SEQUENCE)
	GasPrice         *string   `json:"gas_price,omitempty"`
	Gas              *uint64   `json:"gas,omitempty"`
	RawSignedTx      *string   `json:"raw_signed_tx,omitempty"`
	DelegatorAddress string    `json:"delegator_address"`
	Remarks          []string  `json:"remarks"`
	PayoutIDs        []string  `json:"payout_ids"`
	CreatedAt        time.Time `json:"created_at"`
}
