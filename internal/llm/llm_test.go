package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/ibexai/internal/config"
)

// ════════════════════════════════════════════════════════════════════
// provider.go — Types & Helpers
// ════════════════════════════════════════════════════════════════════

func TestMessageConstructors(t *testing.T) {
	sys := SystemMessage("Eres un analista.")
	if sys.Role != RoleSystem || sys.Content != "Eres un analista." {
		t.Fatalf("SystemMessage: got %+v", sys)
	}

	user := UserMessage("hola")
	if user.Role != RoleUser || user.Content != "hola" {
		t.Fatalf("UserMessage: got %+v", user)
	}

	asst := AssistantMessage("buenas")
	if asst.Role != RoleAssistant || asst.Content != "buenas" {
		t.Fatalf("AssistantMessage: got %+v", asst)
	}
}

func TestResponseString(t *testing.T) {
	r := &Response{
		Provider: "groq", Model: "gemma2-9b-it",
		Content: "short answer",
		Usage:   Usage{TotalTokens: 50},
		Latency: 100 * time.Millisecond,
	}
	s := r.String()
	if !strings.Contains(s, "groq/gemma2-9b-it") || !strings.Contains(s, "50 tokens") {
		t.Fatalf("unexpected String(): %s", s)
	}

	r.Content = strings.Repeat("x", 200)
	if !strings.Contains(r.String(), "...") {
		t.Fatal("expected truncation for long content")
	}
}

// ════════════════════════════════════════════════════════════════════
// openai.go — OpenAI-compatible provider with mock server
// ════════════════════════════════════════════════════════════════════

type mockChatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionJSON(model, content string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-123",
		"object": "chat.completion",
		"created": 1700000000,
		"model": %q,
		"choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 20, "completion_tokens": 10, "total_tokens": 30}
	}`, model, content)
}

func TestOpenAIProviderNew(t *testing.T) {
	_, err := NewOpenAIProvider("")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got: %v", err)
	}

	p, err := NewOpenAIProvider("sk-test", WithOpenAIModel("gpt-4o"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != ProviderOpenAI || p.model != "gpt-4o" {
		t.Fatalf("unexpected config: %+v", p)
	}

	g, err := NewGroqProvider("gsk-test")
	if err != nil {
		t.Fatal(err)
	}
	if g.Name() != ProviderGroq || g.model != "gemma2-9b-it" {
		t.Fatalf("unexpected groq config: name=%s model=%s", g.Name(), g.model)
	}
	if len(g.Models()) == 0 || g.Models()[0] == p.Models()[0] {
		t.Fatal("groq should list its own models")
	}
}

func TestOpenAIChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer gsk-test" {
			t.Error("missing auth header")
		}

		var req mockChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gemma2-9b-it" {
			t.Errorf("unexpected model: %s", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Temperature != 0.5 || req.MaxTokens != 2048 {
			t.Errorf("sampling not forwarded: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON("gemma2-9b-it", "El IBEX35 sube un 1,2%.")))
	}))
	defer server.Close()

	p, _ := NewGroqProvider("gsk-test",
		WithOpenAIBaseURL(server.URL),
		WithOpenAISampling(0.5, 2048),
	)
	resp, err := p.Chat(context.Background(),
		[]Message{SystemMessage("Eres un analista."), UserMessage("¿Cómo va el mercado?")},
		nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "El IBEX35 sube un 1,2%." {
		t.Fatalf("unexpected content: %s", resp.Content)
	}
	if resp.Provider != ProviderGroq || resp.Usage.TotalTokens != 30 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.FinishReason != FinishStop {
		t.Fatalf("expected stop, got %s", resp.FinishReason)
	}
}

func TestOpenAIChatOptionsOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mockChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o" || req.MaxTokens != 100 {
			t.Errorf("options not applied: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON(req.Model, "ok")))
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	_, err := p.Chat(context.Background(), []Message{UserMessage("test")},
		&ChatOptions{Model: "gpt-4o", MaxTokens: 100})
	if err != nil {
		t.Fatal(err)
	}
}

func TestOpenAIErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		want       error
	}{
		{"unauthorized", 401, `{"error":{"message":"Invalid key","type":"auth","code":"invalid_api_key"}}`, ErrNoAPIKey},
		{"rate_limit", 429, `{"error":{"message":"Rate limit reached","type":"tokens","code":"rate_limit_exceeded"}}`, ErrRateLimit},
		{"context_length", 400, `{"error":{"message":"Too many tokens","code":"context_length_exceeded"}}`, ErrContextLength},
		{"model_not_found", 404, `{"error":{"message":"Model not found","code":"model_not_found"}}`, ErrInvalidModel},
		{"server_error", 503, `{"error":{"message":"overloaded"}}`, ErrProviderDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
			_, err := p.Chat(context.Background(), []Message{UserMessage("test")}, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got: %v", tt.want, err)
			}
			if n := atomic.LoadInt32(&calls); n != 1 {
				t.Fatalf("SDK retries must be disabled, got %d calls", n)
			}
		})
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","model":"m","choices":[]}`))
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	_, err := p.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestOpenAIPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"gemma2-9b-it","object":"model","created":0,"owned_by":"google"}]}`))
	}))
	defer server.Close()

	p, _ := NewGroqProvider("gsk-test", WithOpenAIBaseURL(server.URL))
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestConvertToOpenAIMessages(t *testing.T) {
	out := convertToOpenAIMessages([]Message{
		SystemMessage("s"), UserMessage("u"), AssistantMessage("a"),
	})
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	if out[0].OfSystem == nil || out[1].OfUser == nil || out[2].OfAssistant == nil {
		t.Fatalf("roles not mapped: %+v", out)
	}
}

// ════════════════════════════════════════════════════════════════════
// ollama.go — Ollama Provider with mock server
// ════════════════════════════════════════════════════════════════════

func TestOllamaProviderNew(t *testing.T) {
	p, err := NewOllamaProvider("", WithOllamaModel("llama3.1:8b"))
	if err != nil {
		t.Fatal(err)
	}
	if p.baseURL != "http://localhost:11434" || p.model != "llama3.1:8b" {
		t.Fatalf("unexpected config: %+v", p)
	}
	if p.Name() != ProviderOllama {
		t.Fatalf("unexpected name: %s", p.Name())
	}
}

func TestOllamaChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ollamaChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("stream must be disabled")
		}
		if req.Options == nil || req.Options.NumPredict != 256 {
			t.Errorf("options not forwarded: %+v", req.Options)
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:           req.Model,
			Message:         ollamaMessage{Role: "assistant", Content: "Mercado estable."},
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       4,
		})
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL)
	resp, err := p.Chat(context.Background(), []Message{UserMessage("test")}, &ChatOptions{MaxTokens: 256})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Mercado estable." || resp.Usage.TotalTokens != 16 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestOllamaHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL)
	_, err := p.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	if !errors.Is(err, ErrProviderDown) {
		t.Fatalf("expected ErrProviderDown, got %v", err)
	}
}

func TestOllamaPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL)
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	down, _ := NewOllamaProvider("http://127.0.0.1:1")
	if err := down.Ping(context.Background()); !errors.Is(err, ErrProviderDown) {
		t.Fatalf("expected ErrProviderDown, got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// router.go — Router tests
// ════════════════════════════════════════════════════════════════════

// mockProvider implements LLMProvider for testing the router.
type mockProvider struct {
	name     string
	chatFunc func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)
	pingErr  error
}

func (m *mockProvider) Name() string                   { return m.name }
func (m *mockProvider) Models() []string               { return []string{"mock-model"} }
func (m *mockProvider) Ping(ctx context.Context) error { return m.pingErr }
func (m *mockProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	if m.chatFunc != nil {
		return m.chatFunc(ctx, messages, opts)
	}
	return &Response{Content: "mock response", Provider: m.name}, nil
}

func failing(err error, calls *int) func(context.Context, []Message, *ChatOptions) (*Response, error) {
	return func(context.Context, []Message, *ChatOptions) (*Response, error) {
		*calls++
		return nil, err
	}
}

func TestRouterBasic(t *testing.T) {
	r := NewRouter("primary", WithFallbacks("backup"))
	r.RegisterProvider(&mockProvider{name: "primary"})

	p, err := r.Primary()
	if err != nil || p.Name() != "primary" {
		t.Fatalf("Primary: %v, %v", p, err)
	}

	names := r.ProviderNames()
	if len(names) != 1 || names[0] != "primary" {
		t.Fatalf("ProviderNames: %v", names)
	}
	if r.Name() != "router/primary" {
		t.Fatalf("Name: %s", r.Name())
	}
}

func TestRouterChatAppliesDefaults(t *testing.T) {
	r := NewRouter("main", WithDefaults(ChatOptions{Model: "gemma2-9b-it", Temperature: 0.5, MaxTokens: 2048}))
	r.RegisterProvider(&mockProvider{
		name: "main",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			if opts.Model != "gemma2-9b-it" || opts.Temperature != 0.5 || opts.MaxTokens != 100 {
				return nil, fmt.Errorf("unexpected opts: %+v", opts)
			}
			return &Response{Content: "from main", Provider: "main"}, nil
		},
	})

	resp, err := r.Chat(context.Background(), []Message{UserMessage("test")}, &ChatOptions{MaxTokens: 100})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "from main" {
		t.Fatalf("unexpected: %s", resp.Content)
	}
}

func TestRouterFallback(t *testing.T) {
	calls := 0
	r := NewRouter("primary", WithFallbacks("backup"), WithDefaults(ChatOptions{Model: "primary-model"}))
	r.RegisterProvider(&mockProvider{name: "primary", chatFunc: failing(fmt.Errorf("%w: primary down", ErrProviderDown), &calls)})
	r.RegisterProvider(&mockProvider{
		name: "backup",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			calls++
			if opts.Model != "" {
				return nil, fmt.Errorf("backup got primary model %q", opts.Model)
			}
			return &Response{Content: "from backup", Provider: "backup"}, nil
		},
	})

	resp, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Provider != "backup" {
		t.Fatalf("expected fallback response, got: %+v", resp)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls (primary + backup), got %d", calls)
	}
}

func TestRouterDoesNotRetryByDefault(t *testing.T) {
	calls := 0
	r := NewRouter("only")
	r.RegisterProvider(&mockProvider{name: "only", chatFunc: failing(ErrProviderDown, &calls)})

	_, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	if !errors.Is(err, ErrProviderDown) {
		t.Fatalf("expected ErrProviderDown, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestRouterRateLimitSurvivesFallback(t *testing.T) {
	a, b := 0, 0
	r := NewRouter("a", WithFallbacks("b"))
	r.RegisterProvider(&mockProvider{name: "a", chatFunc: failing(fmt.Errorf("groq: %w", ErrRateLimit), &a)})
	r.RegisterProvider(&mockProvider{name: "b", chatFunc: failing(fmt.Errorf("%w: timeout", ErrProviderDown), &b)})

	_, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	if !errors.Is(err, ErrRateLimit) {
		t.Fatalf("expected ErrRateLimit in chain, got %v", err)
	}
	if a != 1 {
		t.Fatalf("rate-limited provider must be called once, got %d calls", a)
	}
	if !strings.Contains(err.Error(), "all providers failed") {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestRouterNonRetryableError(t *testing.T) {
	calls := 0
	r := NewRouter("a", WithFallbacks("b"))
	r.RegisterProvider(&mockProvider{name: "a", chatFunc: failing(fmt.Errorf("openai: %w", ErrNoAPIKey), &calls)})
	r.RegisterProvider(&mockProvider{name: "b", chatFunc: failing(ErrProviderDown, &calls)})

	_, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("fallback must not run after auth errors, got %d calls", calls)
	}
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouter("missing")
	_, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
	if err := r.Ping(context.Background()); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("Ping: expected ErrNoProviders, got %v", err)
	}
}

func TestRouterContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRouter("a", WithFallbacks("b"))
	r.RegisterProvider(&mockProvider{name: "a", chatFunc: func(ctx context.Context, _ []Message, _ *ChatOptions) (*Response, error) {
		return nil, ctx.Err()
	}})
	r.RegisterProvider(&mockProvider{name: "b"})

	_, err := r.Chat(ctx, []Message{UserMessage("test")}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRouterHealthCheck(t *testing.T) {
	r := NewRouter("a")
	r.RegisterProvider(&mockProvider{name: "a"})
	r.RegisterProvider(&mockProvider{name: "b", pingErr: ErrProviderDown})

	results := r.HealthCheck(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results["a"] != nil || !errors.Is(results["b"], ErrProviderDown) {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestProviderHealth(t *testing.T) {
	r := NewRouter("a")
	r.RegisterProvider(&mockProvider{name: "a"})
	r.RegisterProvider(&mockProvider{name: "b", pingErr: ErrProviderDown})
	if results := ProviderHealth(context.Background(), r); len(results) != 2 {
		t.Fatalf("router: expected 2 results, got %v", results)
	}

	single := ProviderHealth(context.Background(), &mockProvider{name: "solo", pingErr: ErrNoAPIKey})
	if len(single) != 1 || !errors.Is(single["solo"], ErrNoAPIKey) {
		t.Fatalf("single provider: unexpected results %v", single)
	}
}

func TestRouterModels(t *testing.T) {
	r := NewRouter("a")
	r.RegisterProvider(&mockProvider{name: "a"})
	r.RegisterProvider(&mockProvider{name: "b"})
	if models := r.Models(); len(models) != 1 || models[0] != "mock-model" {
		t.Fatalf("expected deduplicated models, got %v", models)
	}
}

func TestNewRouterFromConfig(t *testing.T) {
	t.Run("no credentials", func(t *testing.T) {
		cfg := &config.Config{LLM: config.LLMConfig{Primary: ProviderGroq}}
		if _, err := NewRouterFromConfig(cfg, zerolog.Nop()); !errors.Is(err, ErrNoProviders) {
			t.Fatalf("expected ErrNoProviders, got %v", err)
		}
	})

	t.Run("groq primary with fallbacks", func(t *testing.T) {
		cfg := &config.Config{LLM: config.LLMConfig{
			Primary:   ProviderGroq,
			GroqKey:   "gsk-test",
			OpenAIKey: "sk-test",
			OllamaURL: "http://localhost:11434",
			Model:     "gemma2-9b-it",
		}}
		r, err := NewRouterFromConfig(cfg, zerolog.Nop())
		if err != nil {
			t.Fatal(err)
		}
		names := r.ProviderNames()
		want := []string{ProviderGroq, ProviderOpenAI, ProviderOllama}
		if strings.Join(names, ",") != strings.Join(want, ",") {
			t.Fatalf("chain: got %v, want %v", names, want)
		}
	})

	t.Run("primary without key is replaced", func(t *testing.T) {
		cfg := &config.Config{LLM: config.LLMConfig{
			Primary:   ProviderGroq,
			OpenAIKey: "sk-test",
		}}
		r, err := NewRouterFromConfig(cfg, zerolog.Nop())
		if err != nil {
			t.Fatal(err)
		}
		p, err := r.Primary()
		if err != nil || p.Name() != ProviderOpenAI {
			t.Fatalf("expected openai as primary, got %v, %v", p, err)
		}
	})
}
