package quant

import (
	"fmt"
	"math"
	"strconv"
)

// Decision is the deterministic recommendation for a ticker.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionHold Decision = "HOLD"
	DecisionSell Decision = "SELL"
)

// Scoring constants. These are contractual values, not tunable defaults:
// changing any of them changes the meaning of a verdict.
const (
	baselineScore = 50.0

	buyThreshold  = 70.0
	holdThreshold = 40.0

	revenueCapPts   = 15.0
	epsCapPts       = 10.0
	return30CapPts  = 10.0
	missingPenalty  = 5.0
	rangeHighCutoff = 0.8
	rangeLowCutoff  = 0.2

	peSevere   = 80.0
	peHigh     = 50.0
	peElevated = 30.0

	volHigh     = 0.7
	volElevated = 0.5

	// keyMetricDenominator is the fixed denominator of the completeness
	// fraction in the confidence basis. It does not match the six rules
	// that count missing metrics; kept as-is for output compatibility.
	keyMetricDenominator = 7
)

// Verdict is the output of the scoring engine: a decision, a confidence
// score in [0,100], the justification lines in rule-evaluation order, and
// a one-line summary of why the confidence is what it is.
type Verdict struct {
	Decision        Decision `json:"verdict"`
	ConfidenceScore int      `json:"confidence_score"`
	Justification   []string `json:"justification"`
	ConfidenceBasis string   `json:"confidence_basis"`
}

// Degenerate returns the fixed verdict used when no usable market data
// exists. It is a hard override, distinct from a scored HOLD.
func Degenerate() Verdict {
	return Verdict{
		Decision:        DecisionHold,
		ConfidenceScore: 0,
		Justification:   []string{"Insufficient market data; default verdict HOLD."},
		ConfidenceBasis: "Data completeness: none. Verdict not reliable.",
	}
}

// Score computes a deterministic verdict from the snapshot. It is a total
// function: missing metrics are scoring penalties, never errors, and it
// never fails. Callers must honor Snapshot.DataAvailable and use
// Degenerate instead of calling Score when it is false.
//
// The score starts at a neutral 50 and each rule, in fixed order, adds or
// subtracts points and appends one justification line. The 52-week range
// rule is the one asymmetry: its missing case counts toward naCount but
// emits no line.
func Score(s Snapshot) Verdict {
	score := baselineScore
	var justification []string
	naCount := 0

	// Revenue growth YoY.
	if rev, ok := s.RevenueGrowthYoYPct.Float(); ok {
		if rev > 0 {
			add := math.Min(revenueCapPts, rev/2)
			score += add
			justification = append(justification,
				fmt.Sprintf("Revenue growth YoY +%s%% adds support (+%.0f pts).", fnum(rev), add))
		} else {
			score -= missingPenalty
			justification = append(justification,
				fmt.Sprintf("Revenue growth YoY %s%% is not positive (-5 pts).", fnum(rev)))
		}
	} else {
		naCount++
		score -= missingPenalty
		justification = append(justification,
			"Revenue growth YoY not available; score penalized (-5 pts).")
	}

	// EPS growth.
	if eps, ok := s.EPSGrowthPct.Float(); ok {
		if eps > 0 {
			add := math.Min(epsCapPts, eps/3)
			score += add
			justification = append(justification,
				fmt.Sprintf("EPS growth +%s%% adds support (+%.0f pts).", fnum(eps), add))
		} else {
			score -= missingPenalty
			justification = append(justification,
				fmt.Sprintf("EPS growth %s%% not positive (-5 pts).", fnum(eps)))
		}
	} else {
		naCount++
		score -= missingPenalty
		justification = append(justification,
			"EPS growth not available; score penalized (-5 pts).")
	}

	// 30-day return.
	if ret, ok := s.Return30DPct.Float(); ok {
		if ret > 0 {
			add := math.Min(return30CapPts, ret)
			score += add
			justification = append(justification,
				fmt.Sprintf("30-day return +%s%% adds support (+%.0f pts).", fnum(ret), add))
		} else {
			sub := math.Min(return30CapPts, math.Abs(ret))
			score -= sub
			justification = append(justification,
				fmt.Sprintf("30-day return %s%% subtracts points (-%.0f pts).", fnum(ret), sub))
		}
	} else {
		naCount++
		score -= missingPenalty
		justification = append(justification,
			"30-day return not available; score penalized (-5 pts).")
	}

	// 52-week range position (0 = at low, 1 = at high). The middle band
	// and the missing case emit no line.
	if pos, ok := s.Range52WPosition.Float(); ok {
		if pos > rangeHighCutoff {
			score -= 5
			justification = append(justification,
				fmt.Sprintf("Price near 52w high (position %.2f); valuation stretched (-5 pts).", pos))
		} else if pos < rangeLowCutoff {
			score += 5
			justification = append(justification,
				fmt.Sprintf("Price near 52w low (position %.2f); relative value (+5 pts).", pos))
		}
	} else {
		naCount++
	}

	// P/E ratio: high valuations subtract in buckets.
	pe, peOK := s.PERatio.Float()
	if peOK {
		switch {
		case pe > peSevere:
			score -= 20
			justification = append(justification,
				fmt.Sprintf("High P/E (%.0f) significantly reduces score (-20 pts).", pe))
		case pe > peHigh:
			score -= 15
			justification = append(justification,
				fmt.Sprintf("High P/E (%.0f) reduces score (-15 pts).", pe))
		case pe > peElevated:
			score -= 10
			justification = append(justification,
				fmt.Sprintf("Elevated P/E (%.0f) reduces score (-10 pts).", pe))
		}
	} else {
		naCount++
		score -= missingPenalty
		justification = append(justification,
			"P/E not available; valuation certainty reduced (-5 pts).")
	}

	// Volatility proxy: high volatility subtracts in buckets.
	vol, volOK := s.VolatilityProxy.Float()
	if volOK {
		switch {
		case vol > volHigh:
			score -= 15
			justification = append(justification,
				fmt.Sprintf("High volatility (%.2f) reduces score (-15 pts).", vol))
		case vol > volElevated:
			score -= 10
			justification = append(justification,
				fmt.Sprintf("Elevated volatility (%.2f) reduces score (-10 pts).", vol))
		}
	} else {
		naCount++
		score -= missingPenalty
		justification = append(justification,
			"Volatility not available; uncertainty penalized (-5 pts).")
	}

	// Completeness penalty: too many missing metrics makes the score
	// itself unreliable.
	if naCount >= 4 {
		score -= 10
		justification = append(justification,
			fmt.Sprintf("Many metrics missing (%d); data completeness low (-10 pts).", naCount))
	}

	score = math.Round(score)
	score = math.Max(0, math.Min(100, score))
	confidence := int(score)

	var decision Decision
	switch {
	case score >= buyThreshold:
		decision = DecisionBuy
	case score >= holdThreshold:
		decision = DecisionHold
	default:
		decision = DecisionSell
	}

	return Verdict{
		Decision:        decision,
		ConfidenceScore: confidence,
		Justification:   justification,
		ConfidenceBasis: confidenceBasis(naCount, vol, volOK, peOK),
	}
}

// confidenceBasis summarizes data completeness, the volatility bucket and
// valuation certainty in one templated sentence.
func confidenceBasis(naCount int, vol float64, volOK, peOK bool) string {
	completeness := "high"
	switch {
	case naCount >= 4:
		completeness = "low"
	case naCount >= 2:
		completeness = "medium"
	}

	volLabel := "unknown"
	if volOK {
		volLabel = "medium"
		if vol > volElevated {
			volLabel = "high"
		}
	}

	valuation := "P/E unavailable"
	if peOK {
		valuation = "P/E available"
	}

	return fmt.Sprintf("Data completeness: %s (%d/%d key metrics). Volatility: %s. Valuation certainty: %s.",
		completeness, keyMetricDenominator-naCount, keyMetricDenominator, volLabel, valuation)
}

// fnum formats a metric value without trailing zeros, matching the way
// values appear in snapshot JSON.
func fnum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
