package datasource

import (
	"context"
	"fmt"

	"github.com/piquette/finance-go/equity"

	"github.com/rdx-labs/rationale/internal/quant"
)

// FinanceGo is a fallback metrics provider built on the finance-go
// client library. It covers quote-level fields only, so snapshots it
// produces carry N/A for growth and history-derived metrics. The chain
// places it after the primary Yahoo provider.
type FinanceGo struct{}

// NewFinanceGo creates the finance-go fallback provider.
func NewFinanceGo() *FinanceGo { return &FinanceGo{} }

// Name returns the provider name.
func (f *FinanceGo) Name() string { return "finance-go" }

// FetchSnapshot returns a quote-only snapshot for the ticker.
func (f *FinanceGo) FetchSnapshot(ctx context.Context, ticker string) (quant.Snapshot, error) {
	ticker = quant.NormalizeTicker(ticker)
	if ticker == "" {
		return quant.Snapshot{}, ErrEmptyTicker
	}
	// The client has no context support; honor cancellation up front.
	if err := ctx.Err(); err != nil {
		return quant.Snapshot{}, err
	}

	q, err := equity.Get(ticker)
	if err != nil {
		return quant.Snapshot{}, fmt.Errorf("finance-go quote %s: %w", ticker, err)
	}
	if q == nil {
		return quant.Snapshot{}, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}

	snap := quant.NewSnapshot(ticker)
	snap.CurrentPrice = metricFromNonZero(q.RegularMarketPrice)
	snap.PERatio = metricFromNonZero(q.TrailingPE)
	snap.MarketCap = metricFromNonZero(float64(q.MarketCap))
	snap.Range52WLow = metricFromNonZero(q.FiftyTwoWeekLow)
	snap.Range52WHigh = metricFromNonZero(q.FiftyTwoWeekHigh)

	price, okP := snap.CurrentPrice.Float()
	lo, okL := snap.Range52WLow.Float()
	hi, okH := snap.Range52WHigh.Float()
	if okP && okL && okH {
		snap.Range52WPosition = RangePosition(price, lo, hi)
	}

	snap.UpdateAvailability()
	return snap, nil
}

// metricFromNonZero treats a zero as absent. The client decodes missing
// API fields to zero values, and a true zero price or cap does not occur
// for listed equities.
func metricFromNonZero(v float64) quant.Metric {
	if v == 0 || !finite(v) {
		return quant.NA()
	}
	return quant.Value(v)
}
