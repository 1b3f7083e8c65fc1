package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

var openAIModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4.1-mini",
}

var groqModels = []string{
	"gemma2-9b-it",
	"llama-3.1-8b-instant",
	"llama-3.3-70b-versatile",
}

// OpenAIProvider implements LLMProvider for any OpenAI-compatible Chat
// Completions API through the official SDK. Groq is served by the same type
// with a different base URL and name.
type OpenAIProvider struct {
	name        string
	model       string
	temperature float64
	maxTokens   int
	client      openai.Client
}

type openAISettings struct {
	name        string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	httpClient  *http.Client
}

// OpenAIOption configures the OpenAI provider.
type OpenAIOption func(*openAISettings)

// WithOpenAIBaseURL sets a custom base URL (Groq, proxies, test servers).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(s *openAISettings) { s.baseURL = url }
}

// WithOpenAIModel sets the default model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(s *openAISettings) { s.model = model }
}

// WithOpenAIName overrides the provider name reported to the router.
func WithOpenAIName(name string) OpenAIOption {
	return func(s *openAISettings) { s.name = name }
}

// WithOpenAISampling sets the default temperature and completion budget.
func WithOpenAISampling(temperature float64, maxTokens int) OpenAIOption {
	return func(s *openAISettings) {
		s.temperature = temperature
		s.maxTokens = maxTokens
	}
}

// WithOpenAITimeout bounds every request.
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(s *openAISettings) { s.timeout = d }
}

// WithOpenAIHTTPClient sets a custom HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(s *openAISettings) { s.httpClient = client }
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	s := openAISettings{
		name:    ProviderOpenAI,
		model:   "gpt-4o-mini",
		timeout: 120 * time.Second,
	}
	for _, opt := range opts {
		opt(&s)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(s.timeout),
		// retries are the caller's decision
		option.WithMaxRetries(0),
	}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(s.baseURL, "/")+"/"))
	}
	if s.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(s.httpClient))
	}

	return &OpenAIProvider{
		name:        s.name,
		model:       s.model,
		temperature: s.temperature,
		maxTokens:   s.maxTokens,
		client:      openai.NewClient(reqOpts...),
	}, nil
}

// NewGroqProvider creates a provider for Groq's OpenAI-compatible API.
func NewGroqProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	base := []OpenAIOption{
		WithOpenAIName(ProviderGroq),
		WithOpenAIBaseURL(GroqBaseURL),
		WithOpenAIModel("gemma2-9b-it"),
	}
	return NewOpenAIProvider(apiKey, append(base, opts...)...)
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Models() []string {
	if p.name == ProviderGroq {
		return groqModels
	}
	return openAIModels
}

// Ping verifies the API key by listing models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return p.mapError(err)
	}
	return nil
}

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()

	model, temperature, maxTokens := p.model, p.temperature, p.maxTokens
	if opts != nil {
		if opts.Model != "" {
			model = opts.Model
		}
		if opts.Temperature > 0 {
			temperature = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			maxTokens = opts.MaxTokens
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: convertToOpenAIMessages(messages),
	}
	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.mapError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w", p.name, ErrEmptyResponse)
	}

	choice := completion.Choices[0]
	resp := &Response{
		Content:      choice.Message.Content,
		FinishReason: FinishReason(choice.FinishReason),
		Model:        completion.Model,
		Provider:     p.name,
		Latency:      time.Since(start),
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	return resp, nil
}

// mapError translates SDK errors onto the package sentinels.
func (p *OpenAIProvider) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w: %v", p.name, ErrRateLimit, err)
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%s: %w: %v", p.name, ErrNoAPIKey, err)
		case apiErr.StatusCode == http.StatusNotFound,
			strings.Contains(err.Error(), "model_not_found"):
			return fmt.Errorf("%s: %w: %v", p.name, ErrInvalidModel, err)
		case apiErr.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(err.Error()), "context"):
			return fmt.Errorf("%s: %w: %v", p.name, ErrContextLength, err)
		case apiErr.StatusCode >= 500:
			return fmt.Errorf("%s: %w: %v", p.name, ErrProviderDown, err)
		}
		return fmt.Errorf("%s: %w", p.name, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", p.name, ErrProviderDown, err)
}

func convertToOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
