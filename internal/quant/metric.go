// Package quant defines the quantitative metric contract and the
// deterministic rule-based verdict engine. It has no I/O: data sources
// produce a Snapshot, Score turns it into a Verdict, and both sides can
// be tested in isolation.
package quant

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// naLiteral is the wire representation of a missing metric. Numeric fields
// serialize as JSON numbers when valid and as this literal string otherwise.
const naLiteral = "N/A"

// MetricState distinguishes the three states a metric can be in.
type MetricState uint8

const (
	// MetricUnset means the metric has not been computed or fetched yet.
	MetricUnset MetricState = iota
	// MetricNA means the source was consulted and the value is unavailable.
	MetricNA
	// MetricValid means the metric holds a usable number.
	MetricValid
)

// Metric is an optional float64. The zero value is an unset metric.
// Unset and unavailable both render as "N/A" on the wire, but the states
// stay distinct in memory so derived fields can tell "not yet computed"
// from "source had nothing".
type Metric struct {
	value float64
	state MetricState
}

// Value returns a valid metric holding v.
func Value(v float64) Metric {
	return Metric{value: v, state: MetricValid}
}

// NA returns an explicitly-unavailable metric.
func NA() Metric {
	return Metric{state: MetricNA}
}

// Valid reports whether the metric holds a usable number.
func (m Metric) Valid() bool { return m.state == MetricValid }

// State returns the metric's state.
func (m Metric) State() MetricState { return m.state }

// Float returns the value and whether it is valid.
func (m Metric) Float() (float64, bool) {
	return m.value, m.state == MetricValid
}

// Or returns the value when valid, otherwise the given fallback.
func (m Metric) Or(fallback float64) float64 {
	if m.state == MetricValid {
		return m.value
	}
	return fallback
}

// String renders the value, or "N/A" when not valid.
func (m Metric) String() string {
	if m.state != MetricValid {
		return naLiteral
	}
	return strconv.FormatFloat(m.value, 'f', -1, 64)
}

// MarshalJSON renders a number for valid metrics and the literal string
// "N/A" for unset or unavailable ones.
func (m Metric) MarshalJSON() ([]byte, error) {
	if m.state != MetricValid {
		return json.Marshal(naLiteral)
	}
	return json.Marshal(m.value)
}

// UnmarshalJSON accepts a JSON number or the string "N/A".
func (m *Metric) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*m = NA()
	case string:
		if v == naLiteral {
			*m = NA()
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("quant: metric value %q is neither a number nor %q", v, naLiteral)
		}
		*m = Value(f)
	case float64:
		*m = Value(v)
	default:
		return fmt.Errorf("quant: unsupported metric value %v", raw)
	}
	return nil
}
