package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Router sends each chat request through an ordered provider chain and
// returns the first success. There are no per-provider retries: a failed
// call moves straight to the next provider, and the first configured
// provider always gets the first attempt of the next request.
type Router struct {
	mu        sync.RWMutex
	providers []Provider
	log       zerolog.Logger
}

// NewRouter creates a router over the given providers, in priority order.
func NewRouter(log zerolog.Logger, providers ...Provider) *Router {
	return &Router{
		providers: providers,
		log:       log.With().Str("component", "llm").Logger(),
	}
}

// Register appends a provider to the end of the chain.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// ProviderNames returns the chain's provider names in order.
func (r *Router) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// Name identifies the router as a Provider.
func (r *Router) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.providers) == 0 {
		return "router"
	}
	return "router/" + r.providers[0].Name()
}

// Chat walks the chain until a provider answers. Auth failures and
// invalid-model errors abort the walk: every later provider would be
// misconfigured in the same run, and the caller should hear about it.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	r.mu.RLock()
	chain := make([]Provider, len(r.providers))
	copy(chain, r.providers)
	r.mu.RUnlock()

	if len(chain) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for _, provider := range chain {
		resp, err := provider.Chat(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		r.log.Warn().Str("provider", provider.Name()).Err(err).Msg("provider failed, trying next")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isNonRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("all providers failed, last error: %w", lastErr)
}

// Ping checks the first provider in the chain.
func (r *Router) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.providers) == 0 {
		return ErrNoProviders
	}
	return r.providers[0].Ping(ctx)
}

// HealthCheck pings all providers in the chain and returns their status.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	chain := make([]Provider, len(r.providers))
	copy(chain, r.providers)
	r.mu.RUnlock()

	results := make(map[string]error, len(chain))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, provider := range chain {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := p.Ping(pingCtx)
			mu.Lock()
			results[p.Name()] = err
			mu.Unlock()
		}(provider)
	}

	wg.Wait()
	return results
}

func isNonRetryable(err error) bool {
	return errors.Is(err, ErrNoAPIKey) ||
		errors.Is(err, ErrInvalidModel) ||
		errors.Is(err, ErrContextLength)
}
