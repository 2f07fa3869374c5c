package ports

import (
	"context"
	"math/big"
	"time"

	"payout-settler/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ChainDispatcher broadcasts one transaction settling a batch.
type ChainDispatcher interface {
	Kind() domain.ChainKind
	// Dispatch sends value (in the payout's smallest unit) to wallet. It blocks
	// until the broadcast finally succeeds or finally fails and consumes
	// exactly one nonce or sequence number per successful call.
	Dispatch(ctx context.Context, wallet string, value decimal.Decimal) (*domain.DispatchResult, error)
	// CurrentHeight returns the chain's latest block height.
	CurrentHeight(ctx context.Context) (uint64, error)
}

// EVMSentTx is what the account-based chain client reports for a broadcast.
type EVMSentTx struct {
	Hash      common.Hash
	Nonce     uint64
	GasPrice  *big.Int
	RawSigned []byte
	From      common.Address
}

// EVMClient signs and broadcasts contract calls from the pooled signer.
type EVMClient interface {
	SendTransaction(ctx context.Context, to common.Address, data []byte) (*EVMSentTx, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// CosmosSentTx is what the sequence-based chain client reports for a broadcast.
type CosmosSentTx struct {
	TxHash      string
	Sequence    uint64
	Gas         uint64
	FromAddress string
}

// CosmosClient sends native tokens from the pooled signer.
type CosmosClient interface {
	// SendTokens transfers amount, an integer in the chain's native unit.
	SendTokens(ctx context.Context, to string, amount string) (*CosmosSentTx, error)
	CurrentHeight(ctx context.Context) (uint64, error)
}

// EventPublisher is a fire-and-forget analytics sink.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// CycleLock serializes poll cycles across worker replicas.
type CycleLock interface {
	// Acquire returns ok=false when another holder owns name.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, name string, token string) error
}

// --- Service Ports (Business Logic) ---

// AuditService records the ledger entry of a dispatched batch.
type AuditService interface {
	LogPayoutTx(ctx context.Context, entry *domain.PayoutTxLog) error
}

// SettlementService settles one batch: claim, dispatch, mark, audit, publish.
type SettlementService interface {
	Settle(ctx context.Context, batch *domain.SettlementBatch) (domain.SettlementOutcome, error)
}

// HealthChecker is a dependency probed by the ops /health route.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
