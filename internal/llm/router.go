package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/ibexai/internal/config"
)

// Router sends chat requests to the primary provider and walks the fallback
// chain when it fails. A Router is itself an LLMProvider.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]LLMProvider
	primary    string
	fallbacks  []string
	defaults   ChatOptions
	logger     zerolog.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithDefaults sets the options applied when a request leaves them empty.
func WithDefaults(opts ChatOptions) RouterOption {
	return func(r *Router) { r.defaults = opts }
}

// WithLogger sets the router logger.
func WithLogger(l zerolog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates a new LLM router with the given primary provider.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers: make(map[string]LLMProvider),
		primary:   primary,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (LLMProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Primary returns the primary provider.
func (r *Router) Primary() (LLMProvider, error) {
	p, ok := r.GetProvider(r.primary)
	if !ok {
		return nil, fmt.Errorf("%w: primary provider %q not registered", ErrNoProviders, r.primary)
	}
	return p, nil
}

// Chat routes a chat request through the provider chain with fallback.
// Each provider is called once; there is no retry.
// The returned error matches ErrRateLimit when any provider in the chain was throttled.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	chain := r.providerChain()
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}
	opts = r.withDefaults(opts)

	var errs []error
	for _, providerName := range chain {
		provider, ok := r.GetProvider(providerName)
		if !ok {
			continue
		}
		resp, err := r.chatOnce(ctx, provider, messages, opts)
		if err == nil {
			r.logger.Debug().
				Str("provider", resp.Provider).
				Str("model", resp.Model).
				Int("tokens", resp.Usage.TotalTokens).
				Dur("latency", resp.Latency).
				Msg("llm call completed")
			return resp, nil
		}

		errs = append(errs, err)
		r.logger.Warn().Err(err).Str("provider", providerName).Msg("llm provider failed, trying next")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if stopsFallback(err) {
			return nil, err
		}
	}

	if len(errs) == 0 {
		return nil, ErrNoProviders
	}
	if len(errs) == 1 {
		return nil, errs[0]
	}
	return nil, fmt.Errorf("llm/router: all providers failed: %w", errors.Join(errs...))
}

// HealthCheck pings all registered providers and returns their status.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]LLMProvider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, provider := range providers {
		wg.Add(1)
		go func(n string, p LLMProvider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := p.Ping(pingCtx)
			mu.Lock()
			results[n] = err
			mu.Unlock()
		}(name, provider)
	}

	wg.Wait()
	return results
}

// ProviderHealth pings every backend behind p. A Router reports each of its
// registered providers; any other provider reports itself.
func ProviderHealth(ctx context.Context, p LLMProvider) map[string]error {
	if r, ok := p.(*Router); ok {
		return r.HealthCheck(ctx)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return map[string]error{p.Name(): p.Ping(pingCtx)}
}

// Name returns the name of the primary provider (satisfies LLMProvider).
func (r *Router) Name() string {
	return "router/" + r.primary
}

// Models returns the union of models from all registered providers (satisfies LLMProvider).
func (r *Router) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []string
	seen := make(map[string]bool)
	for _, p := range r.providers {
		for _, m := range p.Models() {
			if !seen[m] {
				seen[m] = true
				all = append(all, m)
			}
		}
	}
	return all
}

// Ping checks the primary provider's health (satisfies LLMProvider).
func (r *Router) Ping(ctx context.Context) error {
	p, err := r.Primary()
	if err != nil {
		return err
	}
	return p.Ping(ctx)
}

// ProviderNames returns the provider chain in call order.
func (r *Router) ProviderNames() []string {
	var names []string
	for _, n := range r.providerChain() {
		if _, ok := r.GetProvider(n); ok {
			names = append(names, n)
		}
	}
	return names
}

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) withDefaults(opts *ChatOptions) *ChatOptions {
	out := r.defaults
	if opts != nil {
		if opts.Model != "" {
			out.Model = opts.Model
		}
		if opts.Temperature > 0 {
			out.Temperature = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			out.MaxTokens = opts.MaxTokens
		}
	}
	return &out
}

func (r *Router) chatOnce(ctx context.Context, provider LLMProvider,
	messages []Message, opts *ChatOptions) (*Response, error) {

	// the model default belongs to each provider, not the chain
	callOpts := *opts
	if provider.Name() != r.primary {
		callOpts.Model = ""
	}
	return provider.Chat(ctx, messages, &callOpts)
}

// stopsFallback reports configuration errors that end the provider chain.
func stopsFallback(err error) bool {
	return errors.Is(err, ErrNoAPIKey) ||
		errors.Is(err, ErrInvalidModel) ||
		errors.Is(err, ErrContextLength)
}

// NewRouterFromConfig creates a Router from the application config,
// registering every provider for which credentials are present.
func NewRouterFromConfig(cfg *config.Config, logger zerolog.Logger) (*Router, error) {
	timeout := cfg.LLM.Timeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	router := NewRouter(cfg.LLM.Primary,
		WithLogger(logger.With().Str("component", "llm").Logger()),
		WithDefaults(ChatOptions{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}),
	)

	var fallbacks []string
	register := func(p LLMProvider) {
		router.RegisterProvider(p)
		if p.Name() != cfg.LLM.Primary {
			fallbacks = append(fallbacks, p.Name())
		}
	}

	if cfg.LLM.GroqKey != "" {
		opts := []OpenAIOption{WithOpenAITimeout(timeout)}
		if cfg.LLM.GroqBaseURL != "" {
			opts = append(opts, WithOpenAIBaseURL(cfg.LLM.GroqBaseURL))
		}
		if cfg.LLM.Primary == ProviderGroq && cfg.LLM.Model != "" {
			opts = append(opts, WithOpenAIModel(cfg.LLM.Model))
		}
		if p, err := NewGroqProvider(cfg.LLM.GroqKey, opts...); err == nil {
			register(p)
		}
	}

	if cfg.LLM.OpenAIKey != "" {
		opts := []OpenAIOption{WithOpenAITimeout(timeout)}
		if cfg.LLM.Primary == ProviderOpenAI && cfg.LLM.Model != "" {
			opts = append(opts, WithOpenAIModel(cfg.LLM.Model))
		} else if cfg.LLM.FallbackModel != "" {
			opts = append(opts, WithOpenAIModel(cfg.LLM.FallbackModel))
		}
		if p, err := NewOpenAIProvider(cfg.LLM.OpenAIKey, opts...); err == nil {
			register(p)
		}
	}

	if cfg.LLM.OllamaURL != "" {
		opts := []OllamaOption{WithOllamaHTTPClient(&http.Client{Timeout: timeout})}
		if cfg.LLM.Primary == ProviderOllama && cfg.LLM.Model != "" {
			opts = append(opts, WithOllamaModel(cfg.LLM.Model))
		}
		if p, err := NewOllamaProvider(cfg.LLM.OllamaURL, opts...); err == nil {
			register(p)
		}
	}

	if len(router.providers) == 0 {
		return nil, ErrNoProviders
	}
	// primary without credentials: promote the first fallback
	if _, ok := router.providers[cfg.LLM.Primary]; !ok {
		router.primary = fallbacks[0]
		fallbacks = fallbacks[1:]
	}

	router.fallbacks = fallbacks
	return router, nil
}
