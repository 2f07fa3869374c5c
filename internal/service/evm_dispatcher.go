package service

import (
	"context"
	"fmt"
	"strings"

	"payout-settler/internal/core/domain"
	"payout-settler/internal/core/ports"
	"payout-settler/pkg/apperror"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// erc20TransferABI is the subset of the token ABI the dispatcher calls.
const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"nonpayable","type":"function"}]`

// EVMDispatcher pays account-based wallets with a token transfer call.
type EVMDispatcher struct {
	client ports.EVMClient
	token  common.Address
	abi    abi.ABI
}

// NewEVMDispatcher creates a dispatcher sending transfers of token.
func NewEVMDispatcher(client ports.EVMClient, token common.Address) (*EVMDispatcher, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}
	return &EVMDispatcher{client: client, token: token, abi: parsed}, nil
}

func (d *EVMDispatcher) Kind() domain.ChainKind { return domain.ChainKindAccount }

// Dispatch transfers value, already in the token's smallest unit, to wallet.
func (d *EVMDispatcher) Dispatch(ctx context.Context, wallet string, value decimal.Decimal) (*domain.DispatchResult, error) {
	if !value.IsPositive() || !value.IsInteger() {
		return nil, apperror.ErrInvalidAmount(value.String())
	}
	if !common.IsHexAddress(wallet) {
		return nil, apperror.ErrUnsupportedWallet(wallet)
	}

	data, err := d.abi.Pack("transfer", common.HexToAddress(wallet), value.BigInt())
	if err != nil {
		return nil, fmt.Errorf("pack transfer: %w", err)
	}

	sent, err := d.client.SendTransaction(ctx, d.token, data)
	if err != nil {
		return nil, apperror.ErrDispatchFailed(err)
	}

	gasPrice := ""
	if sent.GasPrice != nil {
		gasPrice = sent.GasPrice.String()
	}
	return &domain.DispatchResult{
		Chain:         domain.ChainKindAccount,
		TxHash:        sent.Hash.Hex(),
		RawSignedTx:   sent.RawSigned,
		Counter:       sent.Nonce,
		GasPrice:      gasPrice,
		SignerAddress: sent.From.Hex(),
		SentAmount:    value,
	}, nil
}

func (d *EVMDispatcher) CurrentHeight(ctx context.Context) (uint64, error) {
	height, err := d.client.BlockNumber(ctx)
	if err != nil {
		return 0, apperror.ErrHeightUnavailable(err)
	}
	return height, nil
}
