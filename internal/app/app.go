// Package app wires the advisor stack from configuration. The HTTP server
// and the CLI commands share one App.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/ibexai/internal/advisor"
	"github.com/seenimoa/ibexai/internal/agent"
	"github.com/seenimoa/ibexai/internal/config"
	"github.com/seenimoa/ibexai/internal/datasource"
	"github.com/seenimoa/ibexai/internal/llm"
	"github.com/seenimoa/ibexai/internal/market"
	"github.com/seenimoa/ibexai/internal/metrics"
	"github.com/seenimoa/ibexai/internal/notify"
	"github.com/seenimoa/ibexai/internal/session"
)

// App holds every long-lived component.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Source    datasource.MarketDataSource
	Market    *market.Builder
	News      *datasource.News
	LLM       llm.LLMProvider
	Engine    *agent.Engine
	Pipelines *agent.PipelineConfig
	Store     session.Store
	Advisor   *advisor.Advisor
	Digest    *notify.Digest
	Metrics   *metrics.Metrics
}

// New builds the stack. It fails when no LLM backend is configured or the
// session backend is unreachable.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	router, err := llm.NewRouterFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("LLM setup failed: %w", err)
	}

	store, err := session.NewStoreFromConfig(ctx, cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("session store setup failed: %w", err)
	}

	source := datasource.NewYFinance(datasource.YFinanceOptions{
		BaseURL:           cfg.Market.YahooBaseURL,
		RequestsPerSecond: cfg.Market.RequestsPerSecond,
		Timeout:           time.Duration(cfg.Market.HTTPTimeoutSec) * time.Second,
	})

	return Assemble(cfg, logger, source, router, store)
}

// Assemble builds the stack over already constructed collaborators.
func Assemble(cfg *config.Config, logger zerolog.Logger, source datasource.MarketDataSource, provider llm.LLMProvider, store session.Store) (*App, error) {
	m := metrics.New()

	registry, err := agent.NewRegistry(provider, &llm.ChatOptions{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("agent registry: %w", err)
	}
	pipelines, err := agent.NewPipelineConfig(registry)
	if err != nil {
		return nil, fmt.Errorf("pipelines: %w", err)
	}
	engine := agent.NewEngine(
		agent.WithEngineLogger(logger.With().Str("component", "agent").Logger()),
		agent.WithObserver(m),
	)

	builder := market.NewBuilder(source, market.Options{
		TTL:         cfg.Market.SnapshotTTL(),
		Concurrency: cfg.Analysis.ConcurrentFetches,
		Logger:      logger.With().Str("component", "market").Logger(),
		Observer:    m,
	})

	news := datasource.NewNews(datasource.FeedSourcesFromURLs(cfg.Market.NewsFeeds))

	opts := []advisor.Option{
		advisor.WithLogger(logger.With().Str("component", "advisor").Logger()),
		advisor.WithNews(news, cfg.Market.NewsLimit),
	}
	if cfg.Session.HistoryWindow > 0 {
		opts = append(opts, advisor.WithHistoryWindow(cfg.Session.HistoryWindow))
	}
	adv := advisor.New(builder, engine, pipelines, store, opts...)

	sender := notify.NewSenderFromConfig(cfg.Email, logger.With().Str("component", "notify").Logger())
	digest := notify.NewDigest(builder, engine, pipelines.Chat, sender, cfg.Email.From,
		logger.With().Str("component", "digest").Logger())

	return &App{
		Config:    cfg,
		Logger:    logger,
		Source:    source,
		Market:    builder,
		News:      news,
		LLM:       provider,
		Engine:    engine,
		Pipelines: pipelines,
		Store:     store,
		Advisor:   adv,
		Digest:    digest,
		Metrics:   m,
	}, nil
}

// Recipients returns the configured digest recipients.
func (a *App) Recipients() []string {
	return SplitRecipients(a.Config.Email.To)
}

// SplitRecipients parses a comma separated address list.
func SplitRecipients(list string) []string {
	var out []string
	for _, addr := range strings.Split(list, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Close releases the session backend.
func (a *App) Close() error {
	if c, ok := a.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
