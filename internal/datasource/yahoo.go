package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rdx-labs/rationale/internal/quant"
)

// yahooBaseURL is the default Yahoo Finance API host. Tests point it at
// an httptest server.
const yahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo is the primary metrics provider, backed by the Yahoo Finance
// JSON API (quote, quoteSummary and chart endpoints).
type Yahoo struct {
	baseURL string
	cache   *Cache
	limiter *RateLimiter
}

// YahooOption customizes a Yahoo provider.
type YahooOption func(*Yahoo)

// WithYahooBaseURL overrides the API host, mainly for tests.
func WithYahooBaseURL(url string) YahooOption {
	return func(y *Yahoo) { y.baseURL = url }
}

// WithYahooCacheTTL overrides how long fetched responses are reused.
func WithYahooCacheTTL(ttl time.Duration) YahooOption {
	return func(y *Yahoo) {
		if ttl > 0 {
			y.cache = NewCache(ttl)
		}
	}
}

// NewYahoo creates the Yahoo Finance metrics provider.
func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{
		baseURL: yahooBaseURL,
		cache:   NewCache(15 * time.Minute),
		limiter: NewRateLimiter(5, time.Second), // 5 req/s
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Name returns the provider name.
func (y *Yahoo) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance API types ---
//
// Pointer fields distinguish absent values from genuine zeros; an absent
// field maps to an N/A metric on the snapshot.

type yhQuoteResponse struct {
	QuoteResponse struct {
		Result []yhQuoteResult `json:"result"`
		Error  *yhError        `json:"error"`
	} `json:"quoteResponse"`
}

type yhQuoteResult struct {
	Symbol             string   `json:"symbol"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	MarketCap          *float64 `json:"marketCap"`
	TrailingPE         *float64 `json:"trailingPE"`
	FiftyTwoWeekHigh   *float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow    *float64 `json:"fiftyTwoWeekLow"`
}

type yhSummaryResponse struct {
	QuoteSummary struct {
		Result []yhSummaryResult `json:"result"`
		Error  *yhError          `json:"error"`
	} `json:"quoteSummary"`
}

type yhSummaryResult struct {
	FinancialData *yhFinancialData `json:"financialData"`
}

type yhFinancialData struct {
	RevenueGrowth  *yhRawValue `json:"revenueGrowth"`
	EarningsGrowth *yhRawValue `json:"earningsGrowth"`
}

type yhRawValue struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

func (v *yhRawValue) raw() *float64 {
	if v == nil {
		return nil
	}
	return v.Raw
}

type yhChartResponse struct {
	Chart struct {
		Result []yhChartResult `json:"result"`
		Error  *yhError        `json:"error"`
	} `json:"chart"`
}

type yhChartResult struct {
	Timestamp  []int64      `json:"timestamp"`
	Indicators yhIndicators `json:"indicators"`
}

type yhIndicators struct {
	Quote []yhOHLC `json:"quote"`
}

type yhOHLC struct {
	High  []*float64 `json:"high"`
	Low   []*float64 `json:"low"`
	Close []*float64 `json:"close"`
}

type yhError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Fetch ---

// FetchSnapshot assembles a snapshot from the quote, financialData and
// one-year chart endpoints. Each endpoint failing individually only
// costs its fields; all three failing is a provider failure.
func (y *Yahoo) FetchSnapshot(ctx context.Context, ticker string) (quant.Snapshot, error) {
	ticker = quant.NormalizeTicker(ticker)
	if ticker == "" {
		return quant.Snapshot{}, ErrEmptyTicker
	}

	snap := quant.NewSnapshot(ticker)

	quoteErr := y.fillQuote(ctx, &snap, ticker)
	summaryErr := y.fillGrowth(ctx, &snap, ticker)
	chartErr := y.fillHistory(ctx, &snap, ticker)

	if quoteErr != nil && summaryErr != nil && chartErr != nil {
		return quant.Snapshot{}, fmt.Errorf("yahoo %s: %w", ticker, quoteErr)
	}

	snap.UpdateAvailability()
	return snap, nil
}

func (y *Yahoo) fillQuote(ctx context.Context, snap *quant.Snapshot, ticker string) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", y.baseURL, ticker)
	body, err := doGet(ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return fmt.Errorf("yahoo quote %s: %w", ticker, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var resp yhQuoteResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parse yahoo quote: %w", err)
	}
	if resp.QuoteResponse.Error != nil {
		return fmt.Errorf("yahoo API error: %s", resp.QuoteResponse.Error.Description)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}

	r := resp.QuoteResponse.Result[0]
	snap.CurrentPrice = metricFromPtr(r.RegularMarketPrice)
	snap.MarketCap = metricFromPtr(r.MarketCap)
	snap.PERatio = metricFromPtr(r.TrailingPE)
	return nil
}

func (y *Yahoo) fillGrowth(ctx context.Context, snap *quant.Snapshot, ticker string) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=financialData", y.baseURL, ticker)
	body, err := doGet(ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return fmt.Errorf("yahoo summary %s: %w", ticker, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var resp yhSummaryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parse yahoo summary: %w", err)
	}
	if resp.QuoteSummary.Error != nil {
		return fmt.Errorf("yahoo API error: %s", resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 || resp.QuoteSummary.Result[0].FinancialData == nil {
		return nil // growth simply stays N/A
	}

	fd := resp.QuoteSummary.Result[0].FinancialData
	snap.RevenueGrowthYoYPct = growthPct(fd.RevenueGrowth.raw())
	snap.EPSGrowthPct = growthPct(fd.EarningsGrowth.raw())
	return nil
}

func (y *Yahoo) fillHistory(ctx context.Context, snap *quant.Snapshot, ticker string) error {
	closes, lows, highs, err := y.history(ctx, ticker)
	if err != nil {
		return err
	}
	applyHistory(snap, closes, lows, highs)
	return nil
}

// history fetches one year of daily candles, oldest first. Results are
// cached per ticker.
func (y *Yahoo) history(ctx context.Context, ticker string) (closes, lows, highs []float64, err error) {
	cacheKey := "hist:" + ticker
	if cached, ok := y.cache.Get(cacheKey); ok {
		h := cached.([3][]float64)
		return h[0], h[1], h[2], nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, nil, nil, err
	}

	url := fmt.Sprintf("%s/v8/finance/chart/%s?range=1y&interval=1d", y.baseURL, ticker)
	body, err := doGet(ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read response: %w", err)
	}

	var resp yhChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, nil, nil, fmt.Errorf("parse yahoo chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, nil, nil, fmt.Errorf("yahoo chart error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}

	q := resp.Chart.Result[0].Indicators.Quote[0]
	closes = compactPtrs(q.Close)
	lows = compactPtrs(q.Low)
	highs = compactPtrs(q.High)

	y.cache.Set(cacheKey, [3][]float64{closes, lows, highs})
	return closes, lows, highs, nil
}

// metricFromPtr maps an optional API field to a metric.
func metricFromPtr(v *float64) quant.Metric {
	if v == nil || !finite(*v) {
		return quant.NA()
	}
	return quant.Value(*v)
}

// compactPtrs drops null entries, which Yahoo emits for market holidays.
func compactPtrs(vals []*float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v != nil && finite(*v) {
			out = append(out, *v)
		}
	}
	return out
}
