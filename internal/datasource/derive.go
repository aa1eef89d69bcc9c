package datasource

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/rdx-labs/rationale/internal/quant"
)

// tradingDaysPerMonth approximates one calendar month of daily closes.
const tradingDaysPerMonth = 21

// tradingDaysPerYear is the annualization factor for daily volatility.
const tradingDaysPerYear = 252

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// round4 rounds to four decimal places.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// finite reports whether v is a usable number.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Return30D computes the trailing ~30 calendar day percentage return from
// a series of daily closes, oldest first. Longer series are trimmed to the
// last month of trading days. Fewer than two closes yields N/A, as does a
// zero starting close.
func Return30D(closes []float64) quant.Metric {
	if len(closes) > tradingDaysPerMonth+1 {
		closes = closes[len(closes)-(tradingDaysPerMonth+1):]
	}
	if len(closes) < 2 {
		return quant.NA()
	}
	first, last := closes[0], closes[len(closes)-1]
	if first == 0 || !finite(first) || !finite(last) {
		return quant.NA()
	}
	return quant.Value(round2((last - first) / first * 100))
}

// RangePosition computes where price sits inside the 52-week range as a
// fraction in [0, 1]. A degenerate range (high <= low) yields N/A rather
// than a division by zero.
func RangePosition(price, low, high float64) quant.Metric {
	if !finite(price) || !finite(low) || !finite(high) || high <= low {
		return quant.NA()
	}
	pos := (price - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return quant.Value(round4(pos))
}

// VolatilityProxy computes annualized daily-return volatility from a
// series of daily closes, oldest first. It uses the sample standard
// deviation of day-over-day percentage changes scaled by sqrt(252).
// Fewer than three closes (two returns) yields N/A since the sample
// deviation is undefined.
func VolatilityProxy(closes []float64) quant.Metric {
	returns := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev == 0 || !finite(prev) || !finite(cur) {
			continue
		}
		returns = append(returns, (cur-prev)/prev)
	}
	if len(returns) < 2 {
		return quant.NA()
	}
	sd := stat.StdDev(returns, nil)
	if !finite(sd) {
		return quant.NA()
	}
	return quant.Value(round4(sd * math.Sqrt(tradingDaysPerYear)))
}

// RangeBounds extracts the 52-week low and high from daily lows and highs.
// Empty series yield N/A bounds.
func RangeBounds(lows, highs []float64) (low, high quant.Metric) {
	lo, hasLo := math.Inf(1), false
	for _, v := range lows {
		if finite(v) && v < lo {
			lo, hasLo = v, true
		}
	}
	hi, hasHi := math.Inf(-1), false
	for _, v := range highs {
		if finite(v) && v > hi {
			hi, hasHi = v, true
		}
	}
	low, high = quant.NA(), quant.NA()
	if hasLo {
		low = quant.Value(round2(lo))
	}
	if hasHi {
		high = quant.Value(round2(hi))
	}
	return low, high
}

// growthPct converts a raw growth fraction (e.g. 0.152) to a rounded
// percentage metric.
func growthPct(frac *float64) quant.Metric {
	if frac == nil || !finite(*frac) {
		return quant.NA()
	}
	return quant.Value(round2(*frac * 100))
}

// applyHistory fills every history-derived field on a snapshot from one
// year of daily candles, oldest first. The current price falls back to
// the last close when the quote endpoint gave none.
func applyHistory(s *quant.Snapshot, closes, lows, highs []float64) {
	s.Return30DPct = Return30D(closes)
	s.VolatilityProxy = VolatilityProxy(closes)
	s.Range52WLow, s.Range52WHigh = RangeBounds(lows, highs)

	if !s.CurrentPrice.Valid() && len(closes) > 0 {
		if last := closes[len(closes)-1]; finite(last) {
			s.CurrentPrice = quant.Value(round2(last))
		}
	}
	price, okP := s.CurrentPrice.Float()
	lo, okL := s.Range52WLow.Float()
	hi, okH := s.Range52WHigh.Float()
	if okP && okL && okH {
		s.Range52WPosition = RangePosition(price, lo, hi)
	} else {
		s.Range52WPosition = quant.NA()
	}
}
