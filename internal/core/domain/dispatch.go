package domain

import "github.com/shopspring/decimal"

// ChainKind selects the ledger backend a wallet lives on.
type ChainKind string

const (
	ChainKindUnknown  ChainKind = "UNKNOWN"
	ChainKindAccount  ChainKind = "ACCOUNT"  // nonce-based EVM token transfer
	ChainKindSequence ChainKind = "SEQUENCE" // sequence-based cosmos bank send
)

const (
	// SourceDecimals is the exponent of the payout value unit (1 LIKE = 10^18).
	SourceDecimals int32 = 18
	// SequenceDecimals is the native exponent of the sequence-based chain (1 LIKE = 10^9).
	SequenceDecimals int32 = 9
)

// DispatchResult is the bookkeeping of one broadcast transaction.
// GasPrice is set by the account-based variant, Gas by the sequence-based one.
type DispatchResult struct {
	Chain         ChainKind
	TxHash        string
	RawSignedTx   []byte
	Counter       uint64 // nonce or sequence consumed
	GasPrice      string
	Gas           uint64
	SignerAddress string
	SentAmount    decimal.Decimal // amount in the destination chain's unit
}

// HumanAmount converts a smallest-unit value into whole tokens.
func HumanAmount(value decimal.Decimal) decimal.Decimal {
	return value.Shift(-SourceDecimals)
}
