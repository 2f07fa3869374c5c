package service

import (
	"payout-settler/internal/core/domain"
	"payout-settler/pkg/metrics"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Anomaly reasons reported while aggregating.
const (
	AnomalyMissingValue    = "missing_value"
	AnomalyNonNumericValue = "non_numeric_value"
	AnomalyNonPositive     = "non_positive_value"
	AnomalyFractional      = "fractional_value"
)

// Aggregator groups one poll cycle's payouts into per-wallet batches.
type Aggregator struct {
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewAggregator creates a new Aggregator. m may be nil.
func NewAggregator(m *metrics.Metrics, log zerolog.Logger) *Aggregator {
	return &Aggregator{metrics: m, log: log}
}

// Aggregate folds records into batches keyed by wallet, returned in the order
// each wallet was first seen. Records without a wallet are skipped silently;
// records without a positive integer value are skipped as anomalies.
func (a *Aggregator) Aggregate(records []domain.PendingPayout) []*domain.SettlementBatch {
	byWallet := make(map[string]*domain.SettlementBatch)
	var ordered []*domain.SettlementBatch

	for _, p := range records {
		wallet := p.Wallet()
		if wallet == "" {
			// wait for user to bind wallet
			continue
		}

		amount, reason := parseValue(p.Value)
		if reason != "" {
			a.reportAnomaly(p, reason)
			continue
		}

		b, ok := byWallet[wallet]
		if !ok {
			b = domain.NewSettlementBatch(wallet, p.ToUserID)
			byWallet[wallet] = b
			ordered = append(ordered, b)
		}
		b.Add(p, amount)
	}

	return ordered
}

func parseValue(raw *string) (decimal.Decimal, string) {
	if raw == nil || *raw == "" {
		return decimal.Zero, AnomalyMissingValue
	}
	amount, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.Zero, AnomalyNonNumericValue
	}
	if !amount.IsPositive() {
		return decimal.Zero, AnomalyNonPositive
	}
	// values are denominated in the smallest unit
	if !amount.IsInteger() {
		return decimal.Zero, AnomalyFractional
	}
	return amount, ""
}

func (a *Aggregator) reportAnomaly(p domain.PendingPayout, reason string) {
	value := ""
	if p.Value != nil {
		value = *p.Value
	}
	a.log.Warn().
		Str("payout_id", p.ID).
		Str("value", value).
		Str("reason", reason).
		Msg("payout skipped: invalid value")
	a.metrics.Anomaly(reason)
}
