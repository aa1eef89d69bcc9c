package quant

import (
	"encoding/json"
	"strings"
)

// VolatilityProxyDescription documents how the volatility proxy is computed
// and its limitations. It travels with every snapshot so downstream
// consumers see the caveat next to the number.
const VolatilityProxyDescription = "Annualized volatility: std of daily returns × sqrt(252). " +
	"Source: 1Y daily price history. Limitation: backward-looking only."

// Snapshot holds one ticker's quantitative metrics at fetch time.
// Every numeric field is independently optional. A snapshot is built once
// by a data source, consumed once by Score, and discarded; it is never
// cached across verdict calls.
type Snapshot struct {
	Ticker              string `json:"ticker"`
	CurrentPrice        Metric `json:"current_price"`
	PERatio             Metric `json:"pe_ratio"`
	MarketCap           Metric `json:"market_cap"`
	RevenueGrowthYoYPct Metric `json:"revenue_growth_yoy_pct"`
	EPSGrowthPct        Metric `json:"eps_growth_pct"`
	Return30DPct        Metric `json:"return_30d_pct"`
	Range52WLow         Metric `json:"range_52w_low"`
	Range52WHigh        Metric `json:"range_52w_high"`
	Range52WPosition    Metric `json:"range_52w_position"`
	VolatilityProxy     Metric `json:"volatility_proxy"`
	VolatilityNote      string `json:"volatility_proxy_description"`

	// DataAvailable is true when at least one key metric is present.
	// When false the verdict pipeline short-circuits to the degenerate
	// HOLD result without invoking Score.
	DataAvailable bool `json:"data_available"`

	// Error carries a fetch-failure annotation on empty snapshots.
	Error string `json:"error,omitempty"`
}

// NormalizeTicker uppercases and trims a raw ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// NewSnapshot returns a snapshot for the given ticker with every metric
// unset and the volatility note attached.
func NewSnapshot(ticker string) Snapshot {
	return Snapshot{
		Ticker:         NormalizeTicker(ticker),
		VolatilityNote: VolatilityProxyDescription,
	}
}

// EmptySnapshot returns a snapshot with every metric unavailable and
// DataAvailable false, carrying the given error annotation. Data sources
// return this instead of propagating fetch failures.
func EmptySnapshot(ticker, errMsg string) Snapshot {
	t := NormalizeTicker(ticker)
	if t == "" {
		t = "?"
	}
	return Snapshot{
		Ticker:              t,
		CurrentPrice:        NA(),
		PERatio:             NA(),
		MarketCap:           NA(),
		RevenueGrowthYoYPct: NA(),
		EPSGrowthPct:        NA(),
		Return30DPct:        NA(),
		Range52WLow:         NA(),
		Range52WHigh:        NA(),
		Range52WPosition:    NA(),
		VolatilityProxy:     NA(),
		VolatilityNote:      VolatilityProxyDescription,
		DataAvailable:       false,
		Error:               errMsg,
	}
}

// UpdateAvailability recomputes DataAvailable from the key metrics:
// price, P/E, market cap, volatility and 30-day return. Data sources call
// this once after filling their fields.
func (s *Snapshot) UpdateAvailability() {
	s.DataAvailable = s.CurrentPrice.Valid() ||
		s.PERatio.Valid() ||
		s.MarketCap.Valid() ||
		s.VolatilityProxy.Valid() ||
		s.Return30DPct.Valid()
}

// JSON renders the snapshot as indented JSON with "N/A" literals for
// missing fields. This is the representation embedded in reports and
// shown to the narrative model.
func (s Snapshot) JSON() string {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
