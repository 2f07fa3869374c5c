package service

import (
	"context"

	"payout-settler/internal/core/domain"
	"payout-settler/internal/core/ports"
	"payout-settler/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RescaleToSequence converts a source-unit value into the sequence-based
// chain's native unit. Sub-unit remainder is truncated and returned as dust.
func RescaleToSequence(value decimal.Decimal) (sent, dust decimal.Decimal) {
	ratio := domain.SourceDecimals - domain.SequenceDecimals
	sent = value.Shift(-ratio).Truncate(0)
	dust = value.Sub(sent.Shift(ratio))
	return sent, dust
}

// CosmosDispatcher pays sequence-based wallets with a native bank send.
type CosmosDispatcher struct {
	client ports.CosmosClient
	log    zerolog.Logger
}

// NewCosmosDispatcher creates a new CosmosDispatcher.
func NewCosmosDispatcher(client ports.CosmosClient, log zerolog.Logger) *CosmosDispatcher {
	return &CosmosDispatcher{client: client, log: log}
}

func (d *CosmosDispatcher) Kind() domain.ChainKind { return domain.ChainKindSequence }

// Dispatch rescales value to the native unit and sends it to wallet.
func (d *CosmosDispatcher) Dispatch(ctx context.Context, wallet string, value decimal.Decimal) (*domain.DispatchResult, error) {
	sent, dust := RescaleToSequence(value)
	if !sent.IsPositive() {
		return nil, apperror.ErrInvalidAmount(value.String())
	}
	if !dust.IsZero() {
		d.log.Warn().
			Str("wallet", wallet).
			Str("value", value.String()).
			Str("dust", dust.String()).
			Msg("truncating sub-unit remainder")
	}

	tx, err := d.client.SendTokens(ctx, wallet, sent.String())
	if err != nil {
		return nil, apperror.ErrDispatchFailed(err)
	}

	return &domain.DispatchResult{
		Chain:         domain.ChainKindSequence,
		TxHash:        tx.TxHash,
		Counter:       tx.Sequence,
		Gas:           tx.Gas,
		SignerAddress: tx.FromAddress,
		SentAmount:    sent,
	}, nil
}

func (d *CosmosDispatcher) CurrentHeight(ctx context.Context) (uint64, error) {
	height, err := d.client.CurrentHeight(ctx)
	if err != nil {
		return 0, apperror.ErrHeightUnavailable(err)
	}
	return height, nil
}
