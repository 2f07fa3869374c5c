package cosmos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"payout-settler/config"
	"payout-settler/internal/core/ports"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 30 * time.Second
	transfersPath  = "/v1/transfers"
	statusPath     = "/status"
)

// Options tunes the client.
type Options struct {
	// MaxAttempts bounds every retry loop. 0 retries until ctx is done.
	MaxAttempts uint64
	Timeout     time.Duration
	// BackOff returns the retry schedule of one call. Defaults to
	// exponential backoff.
	BackOff func() backoff.BackOff
}

type transferRequest struct {
	ToAddress string `json:"to_address"`
	Amount    string `json:"amount"`
	Denom     string `json:"denom"`
}

type transferResponse struct {
	TxHash      string `json:"tx_hash"`
	Sequence    uint64 `json:"sequence"`
	Gas         uint64 `json:"gas"`
	FromAddress string `json:"from_address"`
}

type statusResponse struct {
	Result struct {
		SyncInfo struct {
			LatestBlockHeight string `json:"latest_block_height"`
		} `json:"sync_info"`
	} `json:"result"`
}

// Client sends bank transfers through a signing relay that owns the key and
// the account sequence, and reads chain height from a CometBFT RPC node.
type Client struct {
	http     *resty.Client
	relayURL string
	rpcURL   string
	denom    string
	opts     Options
	log      zerolog.Logger
}

// NewClient creates a client from cfg.
func NewClient(cfg config.CosmosConfig, log zerolog.Logger) *Client {
	return New(cfg.RelayURL, cfg.RPCURL, cfg.Denom, Options{MaxAttempts: cfg.MaxAttempts}, log)
}

// New creates a client against explicit endpoints.
func New(relayURL, rpcURL, denom string, opts Options, log zerolog.Logger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.BackOff == nil {
		opts.BackOff = unboundedBackOff
	}
	return &Client{
		http:     resty.New().SetTimeout(opts.Timeout),
		relayURL: strings.TrimRight(relayURL, "/"),
		rpcURL:   strings.TrimRight(rpcURL, "/"),
		denom:    denom,
		opts:     opts,
		log:      log,
	}
}

// SendTokens transfers amount of the configured denom to to. Every attempt
// carries the same idempotency key so the relay never signs twice.
func (c *Client) SendTokens(ctx context.Context, to string, amount string) (*ports.CosmosSentTx, error) {
	key := uuid.NewString()
	body := transferRequest{ToAddress: to, Amount: amount, Denom: c.denom}

	var out transferResponse
	err := c.retry(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Idempotency-Key", key).
			SetBody(body).
			SetResult(&out).
			Post(c.relayURL + transfersPath)
		if err != nil {
			c.log.Warn().Err(err).Str("to", to).Msg("relay unreachable, retrying")
			return err
		}
		return classify(resp, "transfer")
	})
	if err != nil {
		return nil, fmt.Errorf("send tokens: %w", err)
	}
	if out.TxHash == "" {
		return nil, errors.New("send tokens: relay returned no tx hash")
	}

	return &ports.CosmosSentTx{
		TxHash:      out.TxHash,
		Sequence:    out.Sequence,
		Gas:         out.Gas,
		FromAddress: out.FromAddress,
	}, nil
}

// CurrentHeight returns the latest block height reported by the RPC node.
func (c *Client) CurrentHeight(ctx context.Context) (uint64, error) {
	var out statusResponse
	err := c.retry(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&out).
			Get(c.rpcURL + statusPath)
		if err != nil {
			return err
		}
		return classify(resp, "status")
	})
	if err != nil {
		return 0, fmt.Errorf("get chain status: %w", err)
	}

	height, err := strconv.ParseUint(out.Result.SyncInfo.LatestBlockHeight, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse block height %q: %w", out.Result.SyncInfo.LatestBlockHeight, err)
	}
	return height, nil
}

// classify turns an HTTP response into nil, a retryable error (5xx, 429) or
// a permanent one (other 4xx).
func classify(resp *resty.Response, op string) error {
	code := resp.StatusCode()
	switch {
	case code < 300:
		return nil
	case code >= 500 || code == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %s", op, resp.Status())
	default:
		return backoff.Permanent(fmt.Errorf("%s rejected: %s: %s", op, resp.Status(), strings.TrimSpace(resp.String())))
	}
}

func (c *Client) retry(ctx context.Context, op backoff.Operation) error {
	b := c.opts.BackOff()
	if c.opts.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, c.opts.MaxAttempts-1)
	}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func unboundedBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	return b
}
