package domain

// Analytics log types published on the misc topic.
const (
	LogTypeEVMPayout    = "eventPayout"
	LogTypeCosmosPayout = "eventCosmosPayout"
)

// TxStatusPending is the status every payout event is published with.
const TxStatusPending = "pending"

// PayoutEvent is the analytics message describing one dispatched batch.
// TxNonce/GasPrice belong to ACCOUNT events, TxSequence/Gas to SEQUENCE events.
type PayoutEvent struct {
	LogType           string  `json:"logType"`
	FromUser          string  `json:"fromUser"`
	FromWallet        string  `json:"fromWallet"`
	ToUser            string  `json:"toUser"`
	ToWallet          string  `json:"toWallet"`
	ToReferrer        *string `json:"toReferrer,omitempty"`
	ToRegisterTime    *int64  `json:"toRegisterTime,omitempty"` // unix millis
	LikeAmount        float64 `json:"likeAmount"`
	LikeAmountUnitStr string  `json:"likeAmountUnitStr"`
	TxHash            string  `json:"txHash"`
	TxStatus          string  `json:"txStatus"`
	TxNonce           *uint64 `json:"txNonce,omitempty"`
	TxSequence        *uint64 `json:"txSequence,omitempty"`
	GasPrice          *string `json:"gasPrice,omitempty"`
	Gas               *uint64 `json:"gas,omitempty"`
	CurrentBlock      uint64  `json:"currentBlock"`
	DelegatorAddress  string  `json:"delegatorAddress"`
}
