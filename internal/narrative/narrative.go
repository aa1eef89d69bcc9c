// Package narrative runs the Bear/Bull debate that accompanies each
// verdict. Three modes exist: sequential (two model calls, Bull sees the
// Bear's output), combined (one call split on delimiters), and lite (one
// call that also emits an advisory verdict block). Model failures degrade
// to bracketed placeholder text; they never abort or influence the
// quantitative verdict.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rdx-labs/rationale/internal/llm"
)

// Mode selects how the debate is generated.
type Mode string

const (
	// ModeSequential runs Bear then Bull as separate calls.
	ModeSequential Mode = "sequential"
	// ModeCombined runs both roles in a single call, halving API usage.
	ModeCombined Mode = "combined"
	// ModeLite runs one call that also emits an advisory verdict.
	ModeLite Mode = "lite"
)

// ParseMode maps a config string to a Mode, defaulting to sequential.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ModeCombined):
		return ModeCombined
	case string(ModeLite):
		return ModeLite
	default:
		return ModeSequential
	}
}

// AdvisoryVerdict is the verdict block a lite-mode model emits. It is
// advisory narrative only; the binding verdict always comes from the
// scoring engine.
type AdvisoryVerdict struct {
	Verdict         string `json:"verdict"`
	ConfidenceScore int    `json:"confidence_score"`
	Reasoning       string `json:"reasoning"`
}

// Debate holds the generated narrative for one ticker.
type Debate struct {
	Bear     string           `json:"bear_output"`
	Bull     string           `json:"bull_output"`
	Advisory *AdvisoryVerdict `json:"advisory_verdict,omitempty"`
}

// Input describes one debate request.
type Input struct {
	Ticker    string
	Thesis    string
	QuantJSON string
	// DataMissing short-circuits lite mode to placeholders.
	DataMissing bool
	// Headlines are recent news titles woven into the prompts.
	Headlines []string
}

// Chatter is the slice of the llm surface the generator needs. Both
// *llm.Router and individual providers satisfy it.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, error)
}

// Generator produces debates through a Chatter.
type Generator struct {
	chat        Chatter
	mode        Mode
	temperature float64
	maxTokens   int
	log         zerolog.Logger
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithTemperature overrides the sampling temperature for debate calls.
func WithTemperature(t float64) GeneratorOption {
	return func(g *Generator) {
		if t > 0 {
			g.temperature = t
		}
	}
}

// WithMaxTokens overrides the completion budget for debate calls.
func WithMaxTokens(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// NewGenerator creates a debate generator.
func NewGenerator(chat Chatter, mode Mode, log zerolog.Logger, opts ...GeneratorOption) *Generator {
	g := &Generator{
		chat:        chat,
		mode:        mode,
		temperature: 0.2,
		maxTokens:   2048,
		log:         log.With().Str("component", "narrative").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mode returns the generator's configured mode.
func (g *Generator) Mode() Mode { return g.mode }

// Generate runs the debate for the configured mode. It always returns a
// usable Debate; failures surface as placeholder text inside it.
func (g *Generator) Generate(ctx context.Context, in Input) Debate {
	switch g.mode {
	case ModeLite:
		return g.lite(ctx, in)
	case ModeCombined:
		return g.combined(ctx, in)
	default:
		return g.sequential(ctx, in)
	}
}

// ── Modes ──

func (g *Generator) sequential(ctx context.Context, in Input) Debate {
	bearUser := debateUserPrompt(in)
	bearUser += "\n\nList the concrete downside risks only."
	bear := g.call(ctx, bearSystem, bearUser)

	bullUser := debateUserPrompt(in)
	bullUser += fmt.Sprintf("\n\n--- Risk Analyst (Bear) arguments you MUST acknowledge first ---\n%s\n\n---\nNow argue the upside and counter risks where appropriate. Do not invent numbers.", bear)
	bull := g.call(ctx, bullSystem, bullUser)

	return Debate{Bear: bear, Bull: bull}
}

func (g *Generator) combined(ctx context.Context, in Input) Debate {
	raw := g.call(ctx, combinedSystem, debateUserPrompt(in))
	bear, bull := splitCombined(raw)
	return Debate{Bear: bear, Bull: bull}
}

func (g *Generator) lite(ctx context.Context, in Input) Debate {
	if in.DataMissing {
		return Debate{
			Bear: placeholderLiteNoData,
			Bull: placeholderLiteNoData,
			Advisory: &AdvisoryVerdict{
				Verdict:         "HOLD",
				ConfidenceScore: 0,
				Reasoning:       "Market data missing. Default HOLD.",
			},
		}
	}

	user := fmt.Sprintf("Ticker: %s\n", in.Ticker)
	if in.Thesis != "" {
		user += fmt.Sprintf("Thesis: %s\n", in.Thesis)
	}
	user += fmt.Sprintf("\nQuantitative data (use only this data, no inventing):\n%s", in.QuantJSON)

	raw := g.call(ctx, liteSystem, user)
	bear, bull, advisory := splitLite(raw)
	return Debate{Bear: bear, Bull: bull, Advisory: &advisory}
}

// call runs one chat completion and maps errors to placeholder text.
func (g *Generator) call(ctx context.Context, system, user string) string {
	resp, err := g.chat.Chat(ctx, []llm.Message{
		llm.SystemMessage(system),
		llm.UserMessage(user),
	}, &llm.ChatOptions{
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		g.log.Warn().Err(err).Msg("model call failed")
		switch {
		case errors.Is(err, llm.ErrNoProviders), errors.Is(err, llm.ErrNoAPIKey):
			return placeholderNoKey
		case errors.Is(err, llm.ErrEmptyResponse):
			return placeholderEmpty
		default:
			return fmt.Sprintf("[API error: %v]", err)
		}
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return placeholderEmpty
	}
	return text
}

// debateUserPrompt builds the shared user prompt for Bear, Bull and
// combined calls.
func debateUserPrompt(in Input) string {
	user := fmt.Sprintf("Ticker or investment: %s", in.Ticker)
	if in.Thesis != "" {
		user += fmt.Sprintf("\nContext or thesis: %s", in.Thesis)
	}
	if len(in.Headlines) > 0 {
		user += "\nRecent headlines (context only, may be stale):"
		for _, h := range in.Headlines {
			user += "\n- " + h
		}
	}
	return user
}

// ── Parsing ──

// splitCombined separates a combined response into Bear and Bull parts.
// When the delimiters are missing the raw text is split down the middle
// so both sections still carry something readable.
func splitCombined(raw string) (bear, bull string) {
	if strings.Contains(raw, risksDelimiter) && strings.Contains(raw, bullDelimiter) {
		parts := strings.SplitN(raw, bullDelimiter, 2)
		risksPart := parts[0]
		if i := strings.Index(risksPart, risksDelimiter); i >= 0 {
			risksPart = risksPart[i+len(risksDelimiter):]
		}
		bear = strings.TrimSpace(risksPart)
		if len(parts) > 1 {
			bull = strings.TrimSpace(parts[1])
		}
	} else if raw != "" {
		bear = raw[:len(raw)/2]
		bull = raw[len(raw)/2:]
	} else {
		bear = placeholderNoRisksParsed
		bull = placeholderNoBullParsed
	}

	if bear == "" {
		bear = placeholderNoRisks
	}
	if bull == "" {
		bull = placeholderNoBullResp
	}
	return bear, bull
}

// splitLite separates a lite response into Bear, Bull and the advisory
// verdict block.
func splitLite(raw string) (bear, bull string, advisory AdvisoryVerdict) {
	rest := raw
	advisory = fallbackVerdict("Lite: no verdict parsed")
	if strings.Contains(raw, verdictDelimiter) {
		parts := strings.SplitN(raw, verdictDelimiter, 2)
		rest = parts[0]
		advisory = ParseAdvisoryVerdict(strings.TrimSpace(parts[1]))
	}

	if strings.Contains(rest, risksDelimiter) && strings.Contains(rest, bullDelimiter) {
		parts := strings.SplitN(rest, bullDelimiter, 2)
		risksPart := parts[0]
		if i := strings.Index(risksPart, risksDelimiter); i >= 0 {
			risksPart = risksPart[i+len(risksDelimiter):]
		}
		bear = strings.TrimSpace(risksPart)
		if len(parts) > 1 {
			bull = strings.TrimSpace(parts[1])
		}
	} else {
		mid := len(rest) / 2
		if mid < 1 {
			mid = 1
		}
		if mid > len(rest) {
			mid = len(rest)
		}
		bear = rest[:mid]
		bull = rest[mid:]
	}

	if bear == "" {
		bear = placeholderNoRisks
	}
	if bull == "" {
		bull = placeholderNoBull
	}
	return bear, bull, advisory
}

// ParseAdvisoryVerdict parses a model-emitted verdict JSON block. It
// tolerates code fences and surrounding prose, scanning for the first
// balanced JSON object. Unknown verdict words collapse to HOLD; anything
// unparseable yields the zero-confidence fallback.
func ParseAdvisoryVerdict(raw string) AdvisoryVerdict {
	if raw == "" || strings.HasPrefix(raw, "[") {
		reason := raw
		if reason == "" {
			reason = "Empty response"
		}
		return fallbackVerdict(reason)
	}

	stripped := strings.TrimSpace(raw)
	for _, fence := range []string{"```json", "```"} {
		if strings.HasPrefix(stripped, fence) {
			stripped = strings.TrimSpace(strings.TrimPrefix(stripped, fence))
		}
		if strings.HasSuffix(stripped, "```") {
			stripped = strings.TrimSpace(strings.TrimSuffix(stripped, "```"))
		}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(stripped), &obj); err != nil {
		block, ok := firstJSONObject(stripped)
		if !ok {
			return fallbackVerdict(raw)
		}
		if err := json.Unmarshal([]byte(block), &obj); err != nil {
			return fallbackVerdict(raw)
		}
	}

	verdict := strings.ToUpper(stringField(obj, "verdict"))
	switch verdict {
	case "BUY", "HOLD", "AVOID":
	default:
		verdict = "HOLD"
	}

	confidence := 50
	if v, ok := obj["confidence_score"]; ok {
		if f, ok := v.(float64); ok {
			confidence = int(f)
		}
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	reasoning := stringField(obj, "reasoning")
	if reasoning == "" {
		reasoning = raw
	}
	return AdvisoryVerdict{
		Verdict:         verdict,
		ConfidenceScore: confidence,
		Reasoning:       truncate(reasoning, 2000),
	}
}

// firstJSONObject scans for the first balanced {...} block.
func firstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func fallbackVerdict(reason string) AdvisoryVerdict {
	return AdvisoryVerdict{
		Verdict:         "HOLD",
		ConfidenceScore: 0,
		Reasoning:       fmt.Sprintf("Could not parse Judge output. Raw: %s", truncate(reason, 500)),
	}
}

func stringField(obj map[string]any, key string) string {
	if v, ok := obj[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
