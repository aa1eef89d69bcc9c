package relay

import (
	"fmt"
	"strings"
)

const reportTitle = "THE RATIONAL DECISION ENGINE — Decision Report"

const disclaimer = "This output is for decision support only and does not constitute financial advice. " +
	"Do your own research and consider consulting a licensed advisor."

// Report renders a result as the human-readable decision report shown on
// the CLI.
func Report(res *Result) string {
	v := res.Verdict

	bullets := "  (none)"
	if len(v.Justification) > 0 {
		lines := make([]string, len(v.Justification))
		for i, j := range v.Justification {
			lines[i] = "  • " + j
		}
		bullets = strings.Join(lines, "\n")
	}

	thesis := res.Thesis
	if thesis == "" {
		thesis = "(none)"
	}

	rule := strings.Repeat("=", 60)
	lines := []string{
		rule,
		reportTitle,
		rule,
		fmt.Sprintf("Ticker: %s", res.Ticker),
		fmt.Sprintf("Thesis: %s", thesis),
		"",
		"--- Risk Analyst (Bear) ---",
		res.Bear,
		"",
		"--- Growth Advocate (Bull) ---",
		res.Bull,
		"",
		"--- Quantitative Data ---",
		res.QuantJSON,
		"",
		"--- Verdict ---",
		fmt.Sprintf("Verdict: %s", v.Decision),
		fmt.Sprintf("Confidence score: %d (0–100)", v.ConfidenceScore),
		"",
		"Justification:",
		bullets,
		"",
		"Confidence basis:",
		fmt.Sprintf("  %s", v.ConfidenceBasis),
		"",
		"--- Disclaimer ---",
		disclaimer,
		"",
		rule,
	}
	return strings.Join(lines, "\n")
}
