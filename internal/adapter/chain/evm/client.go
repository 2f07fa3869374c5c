package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"payout-settler/config"
	"payout-settler/internal/core/ports"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// Backend is the subset of *ethclient.Client the signer uses.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Options tunes the client.
type Options struct {
	ChainID  *big.Int
	GasLimit uint64
	// MaxAttempts bounds every RPC retry loop. 0 retries until ctx is done.
	MaxAttempts uint64
	// BackOff returns the retry schedule of one RPC call. Defaults to
	// exponential backoff.
	BackOff func() backoff.BackOff
}

// Client signs legacy transactions from one pooled key and broadcasts them.
// Calls are serialized so every broadcast draws the next nonce exactly once.
type Client struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer
	opts    Options
	log     zerolog.Logger

	mu          sync.Mutex
	nonce       uint64
	nonceSynced bool
}

// Dial connects to the RPC endpoint in cfg.
func Dial(ctx context.Context, cfg config.EVMConfig, log zerolog.Logger) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	return New(rpc, cfg.SignerKey, Options{
		ChainID:     big.NewInt(cfg.ChainID),
		GasLimit:    cfg.GasLimit,
		MaxAttempts: cfg.MaxAttempts,
	}, log)
}

// New creates a client signing with hexKey.
func New(backend Backend, hexKey string, opts Options, log zerolog.Logger) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	if opts.ChainID == nil {
		return nil, errors.New("chain id is required")
	}
	if opts.BackOff == nil {
		opts.BackOff = unboundedBackOff
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	log.Info().Str("signer", from.Hex()).Str("chain_id", opts.ChainID.String()).Msg("evm signer loaded")

	return &Client{
		backend: backend,
		key:     key,
		from:    from,
		signer:  types.NewEIP155Signer(opts.ChainID),
		opts:    opts,
		log:     log,
	}, nil
}

// From returns the signer address.
func (c *Client) From() common.Address {
	return c.from
}

// SendTransaction signs a zero-value call of data against to and broadcasts it.
func (c *Client) SendTransaction(ctx context.Context, to common.Address, data []byte) (*ports.EVMSentTx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.nonceSynced {
		if err := c.retry(ctx, func() error {
			n, err := c.backend.PendingNonceAt(ctx, c.from)
			if err != nil {
				return err
			}
			c.nonce = n
			return nil
		}); err != nil {
			return nil, fmt.Errorf("get pending nonce: %w", err)
		}
		c.nonceSynced = true
	}

	var gasPrice *big.Int
	if err := c.retry(ctx, func() error {
		p, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		gasPrice = p
		return nil
	}); err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(c.nonce, to, big.NewInt(0), c.opts.GasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, c.signer, c.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode signed tx: %w", err)
	}

	// Rebroadcasting the same signed tx is safe: the node dedupes by hash.
	err = c.retry(ctx, func() error {
		sendErr := c.backend.SendTransaction(ctx, signed)
		switch {
		case sendErr == nil || isAlreadyKnown(sendErr):
			return nil
		case isNonceTooLow(sendErr) && c.mined(ctx, signed.Hash()):
			// an earlier attempt landed but its response was lost
			c.log.Warn().Str("tx_hash", signed.Hash().Hex()).Uint64("nonce", c.nonce).Msg("broadcast response lost, tx already mined")
			return nil
		case isPermanent(sendErr):
			return backoff.Permanent(sendErr)
		default:
			c.log.Warn().Err(sendErr).Uint64("nonce", c.nonce).Msg("broadcast failed, retrying")
			return sendErr
		}
	})
	if err != nil {
		// the node's pending count is the truth after an unknown outcome
		c.nonceSynced = false
		c.log.Error().Err(err).
			Str("tx_hash", signed.Hash().Hex()).
			Uint64("nonce", c.nonce).
			Msg("broadcast failed, signed tx may still land and needs reconciliation")
		return nil, fmt.Errorf("broadcast tx %s: %w", signed.Hash().Hex(), err)
	}

	sent := &ports.EVMSentTx{
		Hash:      signed.Hash(),
		Nonce:     c.nonce,
		GasPrice:  gasPrice,
		RawSigned: raw,
		From:      c.from,
	}
	c.nonce++
	return sent, nil
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.retry(ctx, func() error {
		h, err := c.backend.BlockNumber(ctx)
		if err != nil {
			return err
		}
		height = h
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("get block number: %w", err)
	}
	return height, nil
}

func (c *Client) retry(ctx context.Context, op backoff.Operation) error {
	b := c.opts.BackOff()
	if c.opts.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, c.opts.MaxAttempts-1)
	}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

// mined reports whether hash has a receipt. Lookup errors count as not mined.
func (c *Client) mined(ctx context.Context, hash common.Hash) bool {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	return err == nil && receipt != nil
}

func isNonceTooLow(err error) bool {
	return strings.Contains(err.Error(), "nonce too low")
}

func isAlreadyKnown(err error) bool {
	return strings.Contains(err.Error(), "already known")
}

// isPermanent matches node rejections that no retry of the same tx can fix.
func isPermanent(err error) bool {
	msg := err.Error()
	for _, s := range []string{"nonce too low", "insufficient funds", "intrinsic gas too low", "invalid sender"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func unboundedBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	return b
}
