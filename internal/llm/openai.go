package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAICompat implements Provider for any OpenAI-compatible Chat
// Completions API. Groq and DeepSeek both speak this dialect; only the
// base URL, key and default model differ.
type OpenAICompat struct {
	name    string
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// CompatOption configures an OpenAI-compatible provider.
type CompatOption func(*OpenAICompat)

// WithBaseURL sets a custom base URL (e.g., for proxies or tests).
func WithBaseURL(url string) CompatOption {
	return func(p *OpenAICompat) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithModel sets the default model.
func WithModel(model string) CompatOption {
	return func(p *OpenAICompat) { p.model = model }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) CompatOption {
	return func(p *OpenAICompat) { p.client = client }
}

// NewOpenAICompat creates a provider for an OpenAI-compatible endpoint.
func NewOpenAICompat(name, apiKey, baseURL, defaultModel string, opts ...CompatOption) (*OpenAICompat, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &OpenAICompat{
		name:    name,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   defaultModel,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewGroq creates the Groq provider.
func NewGroq(apiKey string, opts ...CompatOption) (*OpenAICompat, error) {
	return NewOpenAICompat(ProviderGroq, apiKey, GroqBaseURL, GroqModel, opts...)
}

// NewDeepSeek creates the DeepSeek provider.
func NewDeepSeek(apiKey string, opts ...CompatOption) (*OpenAICompat, error) {
	return NewOpenAICompat(ProviderDeepSeek, apiKey, DeepSeekBaseURL, DeepSeekModel, opts...)
}

func (p *OpenAICompat) Name() string { return p.name }

// Model returns the default model for this provider.
func (p *OpenAICompat) Model() string { return p.model }

// Ping verifies the API key by listing models.
func (p *OpenAICompat) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: invalid API key", ErrNoAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrProviderDown, resp.StatusCode)
	}
	return nil
}

// Chat sends a chat completion request.
func (p *OpenAICompat) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model := p.resolveModel(opts)

	body := p.buildRequest(messages, model, opts)
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	defer resp.Body.Close()

	if err := p.checkError(resp); err != nil {
		return nil, err
	}

	var result compatChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", p.name, err)
	}

	parsed := p.parseResponse(&result, start)
	if strings.TrimSpace(parsed.Content) == "" {
		return nil, fmt.Errorf("%w from %s", ErrEmptyResponse, p.name)
	}
	return parsed, nil
}

// ── Internal Types ──

type compatChatRequest struct {
	Model       string          `json:"model"`
	Messages    []compatMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
}

type compatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatChatResponse struct {
	ID      string         `json:"id"`
	Choices []compatChoice `json:"choices"`
	Usage   compatUsage    `json:"usage"`
	Model   string         `json:"model"`
}

type compatChoice struct {
	Index        int           `json:"index"`
	Message      compatMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type compatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type compatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ── Helpers ──

func (p *OpenAICompat) resolveModel(opts *ChatOptions) string {
	if opts != nil && opts.Model != "" {
		return opts.Model
	}
	return p.model
}

func (p *OpenAICompat) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
}

func (p *OpenAICompat) buildRequest(messages []Message, model string, opts *ChatOptions) compatChatRequest {
	r := compatChatRequest{
		Model:    model,
		Messages: convertMessages(messages),
	}
	if opts != nil {
		if opts.Temperature > 0 {
			r.Temperature = &opts.Temperature
		}
		if opts.MaxTokens > 0 {
			r.MaxTokens = &opts.MaxTokens
		}
		if opts.TopP > 0 {
			r.TopP = &opts.TopP
		}
		r.Stop = opts.Stop
	}
	return r
}

func (p *OpenAICompat) checkError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr compatErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrNoAPIKey, apiErr.Error.Message)
		case http.StatusTooManyRequests, 529:
			return fmt.Errorf("%w: %s", ErrRateLimit, apiErr.Error.Message)
		case http.StatusBadRequest:
			if strings.Contains(apiErr.Error.Code, "context_length") {
				return fmt.Errorf("%w: %s", ErrContextLength, apiErr.Error.Message)
			}
			if strings.Contains(apiErr.Error.Code, "model_not_found") {
				return fmt.Errorf("%w: %s", ErrInvalidModel, apiErr.Error.Message)
			}
		}
		return fmt.Errorf("%s: API error (%d): %s", p.name, resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Errorf("%s: HTTP %d: %s", p.name, resp.StatusCode, string(body))
}

func (p *OpenAICompat) parseResponse(raw *compatChatResponse, start time.Time) *Response {
	r := &Response{
		Model:    raw.Model,
		Provider: p.name,
		Latency:  time.Since(start),
		Usage: Usage{
			PromptTokens:     raw.Usage.PromptTokens,
			CompletionTokens: raw.Usage.CompletionTokens,
			TotalTokens:      raw.Usage.TotalTokens,
		},
	}
	if len(raw.Choices) > 0 {
		choice := raw.Choices[0]
		r.Content = choice.Message.Content
		r.FinishReason = mapFinishReason(choice.FinishReason)
	}
	return r
}

// ── Conversion Helpers ──

func convertMessages(messages []Message) []compatMessage {
	out := make([]compatMessage, len(messages))
	for i, m := range messages {
		out[i] = compatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}
	return out
}

func mapFinishReason(reason string) FinishReason {
	switch reason {
	case "stop":
		return FinishStop
	case "length":
		return FinishLength
	default:
		return FinishReason(reason)
	}
}
