package datasource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rdx-labs/rationale/internal/quant"
)

// Chain tries each provider in order and keeps the first snapshot that
// has usable data. When every provider fails or comes back empty, the
// chain returns an empty snapshot with data_available=false instead of
// an error, so a dead market-data backend degrades the verdict rather
// than aborting the run.
type Chain struct {
	providers []MetricsProvider
	log       zerolog.Logger
}

// NewChain builds a fallback chain over the given providers. Order is
// priority order.
func NewChain(log zerolog.Logger, providers ...MetricsProvider) *Chain {
	return &Chain{
		providers: providers,
		log:       log.With().Str("component", "datasource").Logger(),
	}
}

// DefaultChain wires the standard provider order: Yahoo API first, the
// finance-go client second, the HTML scrape last.
func DefaultChain(log zerolog.Logger) *Chain {
	return ConfiguredChain(log, ChainConfig{})
}

// ChainConfig controls provider order and cache lifetime.
type ChainConfig struct {
	// Order lists provider names ("yahoo", "financego", "scrape") in
	// priority order. Unknown names are skipped; empty means the
	// standard order.
	Order []string
	// CacheTTL bounds how long fetched snapshots are reused. Zero
	// keeps the provider default.
	CacheTTL time.Duration
}

// ConfiguredChain builds a chain from configuration.
func ConfiguredChain(log zerolog.Logger, cfg ChainConfig) *Chain {
	order := cfg.Order
	if len(order) == 0 {
		order = []string{"yahoo", "financego", "scrape"}
	}

	var providers []MetricsProvider
	for _, name := range order {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "yahoo":
			providers = append(providers, NewYahoo(WithYahooCacheTTL(cfg.CacheTTL)))
		case "financego":
			providers = append(providers, NewFinanceGo())
		case "scrape":
			providers = append(providers, NewScrape())
		default:
			log.Warn().Str("provider", name).Msg("unknown datasource in order, skipping")
		}
	}
	return NewChain(log, providers...)
}

// Name returns the chain name.
func (c *Chain) Name() string { return "chain" }

// FetchSnapshot walks the providers until one yields a snapshot with
// data. An empty ticker is rejected; context cancellation propagates.
func (c *Chain) FetchSnapshot(ctx context.Context, ticker string) (quant.Snapshot, error) {
	ticker = quant.NormalizeTicker(ticker)
	if ticker == "" {
		return quant.Snapshot{}, ErrEmptyTicker
	}

	var lastErr error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return quant.Snapshot{}, err
		}

		snap, err := p.FetchSnapshot(ctx, ticker)
		if err != nil {
			c.log.Debug().Str("provider", p.Name()).Str("ticker", ticker).
				Err(err).Msg("provider failed, trying next")
			lastErr = err
			continue
		}
		if snap.DataAvailable {
			c.log.Debug().Str("provider", p.Name()).Str("ticker", ticker).
				Msg("snapshot fetched")
			return snap, nil
		}
		c.log.Debug().Str("provider", p.Name()).Str("ticker", ticker).
			Msg("provider returned no data, trying next")
	}

	msg := "no provider returned data"
	if lastErr != nil {
		msg = fmt.Sprintf("no provider returned data: %v", lastErr)
	}
	c.log.Warn().Str("ticker", ticker).Msg(msg)
	return quant.EmptySnapshot(ticker, msg), nil
}

// Validate reports whether a ticker resolves to a real instrument with
// market data. Watchlists use this before accepting a symbol.
func (c *Chain) Validate(ctx context.Context, ticker string) (bool, string) {
	snap, err := c.FetchSnapshot(ctx, ticker)
	if err != nil {
		return false, err.Error()
	}
	if !snap.DataAvailable {
		return false, "no market data for symbol"
	}
	return true, ""
}
