// Package relay orchestrates one full analysis: fetch quantitative data,
// run the Bear/Bull debate, and compute the deterministic verdict. The
// debate and the verdict are independent; narrative failures never change
// what the scoring engine decides.
package relay

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rdx-labs/rationale/internal/datasource"
	"github.com/rdx-labs/rationale/internal/narrative"
	"github.com/rdx-labs/rationale/internal/quant"
)

// Result is the full outcome of one relay run.
type Result struct {
	Ticker    string           `json:"ticker"`
	Thesis    string           `json:"thesis"`
	Bear      string           `json:"bear_output"`
	Bull      string           `json:"bull_output"`
	Snapshot  quant.Snapshot   `json:"quant"`
	QuantJSON string           `json:"quant_json"`
	Verdict   quant.Verdict    `json:"verdict"`
	Headlines []string         `json:"headlines,omitempty"`
}

// Relay wires the data chain, the narrative generator and the scorer.
type Relay struct {
	metrics   datasource.MetricsProvider
	generator *narrative.Generator
	news      *datasource.News
	newsLimit int
	maxBatch  int
	log       zerolog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithNews attaches a headline fetcher; headlines only garnish the
// narrative prompts.
func WithNews(news *datasource.News) Option {
	return func(r *Relay) { r.news = news }
}

// WithNewsLimit caps how many headlines feed each prompt.
func WithNewsLimit(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.newsLimit = n
		}
	}
}

// WithBatchConcurrency bounds concurrent runs in RunBatch.
func WithBatchConcurrency(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.maxBatch = n
		}
	}
}

// New creates a Relay.
func New(metrics datasource.MetricsProvider, generator *narrative.Generator, log zerolog.Logger, opts ...Option) *Relay {
	r := &Relay{
		metrics:   metrics,
		generator: generator,
		newsLimit: 5,
		maxBatch:  4,
		log:       log.With().Str("component", "relay").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the relay for one ticker. A blank ticker is the only
// input error; everything downstream degrades instead of failing.
func (r *Relay) Run(ctx context.Context, ticker, thesis string) (*Result, error) {
	ticker = quant.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, datasource.ErrEmptyTicker
	}
	thesis = strings.TrimSpace(thesis)

	r.log.Info().Str("ticker", ticker).Msg("relay started")

	snap, err := r.metrics.FetchSnapshot(ctx, ticker)
	if err != nil {
		// Only context cancellation and input rejection reach here; the
		// chain converts fetch failures into empty snapshots.
		return nil, err
	}

	result := &Result{
		Ticker:    ticker,
		Thesis:    thesis,
		Snapshot:  snap,
		QuantJSON: snap.JSON(),
		Headlines: r.headlines(ctx, ticker),
	}

	// Narrative and verdict are independent of each other.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		debate := r.generator.Generate(ctx, narrative.Input{
			Ticker:      ticker,
			Thesis:      thesis,
			QuantJSON:   result.QuantJSON,
			DataMissing: !snap.DataAvailable,
			Headlines:   result.Headlines,
		})
		result.Bear = debate.Bear
		result.Bull = debate.Bull
	}()

	if snap.DataAvailable {
		result.Verdict = quant.Score(snap)
	} else {
		result.Verdict = quant.Degenerate()
	}
	wg.Wait()

	r.log.Info().Str("ticker", ticker).
		Str("verdict", string(result.Verdict.Decision)).
		Int("confidence", result.Verdict.ConfidenceScore).
		Msg("relay finished")
	return result, nil
}

// BatchItem is one entry of a batch run. Err is set when the run for
// that ticker failed outright; other tickers are unaffected.
type BatchItem struct {
	Ticker string  `json:"ticker"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// RunBatch analyzes several tickers with bounded concurrency, preserving
// input order in the output.
func (r *Relay) RunBatch(ctx context.Context, tickers []string, thesis string) []BatchItem {
	items := make([]BatchItem, len(tickers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxBatch)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		items[i].Ticker = quant.NormalizeTicker(ticker)
		g.Go(func() error {
			res, err := r.Run(ctx, ticker, thesis)
			items[i].Result = res
			items[i].Err = err
			return nil // per-item errors stay per-item
		})
	}
	g.Wait()
	return items
}

// Buys filters a batch down to the tickers with a BUY verdict.
func Buys(items []BatchItem) []string {
	var out []string
	for _, item := range items {
		if item.Err == nil && item.Result != nil &&
			item.Result.Verdict.Decision == quant.DecisionBuy {
			out = append(out, item.Ticker)
		}
	}
	return out
}

// headlines fetches news titles when a fetcher is attached. Best effort.
func (r *Relay) headlines(ctx context.Context, ticker string) []string {
	if r.news == nil {
		return nil
	}
	hs, err := r.news.Headlines(ctx, ticker, r.newsLimit)
	if err != nil {
		r.log.Debug().Str("ticker", ticker).Err(err).Msg("headlines unavailable")
		return nil
	}
	titles := make([]string, 0, len(hs))
	for _, h := range hs {
		titles = append(titles, h.Title)
	}
	return titles
}
