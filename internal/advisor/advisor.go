// Package advisor implements the two user-facing entry points: the chat
// assistant and the report advisor. Backend failures never escape as errors;
// they are turned into fixed user-safe replies.
package advisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/seenimoa/ibexai/internal/agent"
	"github.com/seenimoa/ibexai/internal/agent/prompts"
	"github.com/seenimoa/ibexai/internal/analysis/sentiment"
	"github.com/seenimoa/ibexai/internal/conversation"
	"github.com/seenimoa/ibexai/internal/datasource"
	"github.com/seenimoa/ibexai/internal/llm"
	"github.com/seenimoa/ibexai/internal/market"
	"github.com/seenimoa/ibexai/internal/portfolio"
	"github.com/seenimoa/ibexai/internal/session"
	"github.com/seenimoa/ibexai/pkg/models"
)

// User-facing replies substituted for failures.
const (
	RateLimitedMessage    = "El servicio de IA está limitado en este momento. Inténtalo de nuevo en unos minutos."
	BackendFailureMessage = "No se ha podido generar una respuesta. Inténtalo de nuevo más tarde."
	InvalidInputMessage   = "Define perfil y objetivo primero."
	EmptyQuestionMessage  = "Escribe una pregunta."
	noMarketDataText      = "(datos de mercado no disponibles)\n"
)

// saveTimeout bounds the session save that follows every turn.
const saveTimeout = 5 * time.Second

// ErrInvalidInput marks a request the advisor refused to run.
var ErrInvalidInput = errors.New("advisor: invalid input")

// Kind classifies a reply.
type Kind string

const (
	KindAnswer         Kind = "answer"
	KindReport         Kind = "report"
	KindModeSwitch     Kind = "mode_switch"
	KindInvalidInput   Kind = "invalid_input"
	KindRateLimited    Kind = "rate_limited"
	KindBackendFailure Kind = "backend_failure"
)

// Reply is what one processed turn produced.
type Reply struct {
	Mode     models.Mode `json:"mode"`
	Kind     Kind        `json:"kind"`
	Markdown string      `json:"markdown"`
	HTML     string      `json:"html"`

	// Stages lists the pipeline stages that ran, for successful runs.
	Stages []agent.StageOutput `json:"stages,omitempty"`

	// Err is the underlying failure for non-answer kinds.
	Err error `json:"-"`
}

// Failed reports whether the reply is a substituted failure message.
func (r *Reply) Failed() bool {
	return r.Kind == KindRateLimited || r.Kind == KindBackendFailure || r.Kind == KindInvalidInput
}

// Request mirrors the assistant form.
type Request struct {
	Mode      string `json:"mode"`
	Text      string `json:"text"`
	Profile   string `json:"profile"`
	Objective string `json:"objective"`
	Extended  bool   `json:"extended"`
}

// AdviseRequest carries the advisor parameters.
type AdviseRequest struct {
	Profile   string `json:"profile"`
	Objective string `json:"objective"`
	Extended  bool   `json:"extended"`
	Text      string `json:"text"`
}

// SnapshotSource supplies the shared market snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*models.MarketSnapshot, error)
}

// HeadlineSource supplies news headlines for the market analysis stage.
type HeadlineSource interface {
	Headlines(ctx context.Context, limit int) ([]models.Headline, error)
}

// Advisor serves chat and report requests for many sessions.
type Advisor struct {
	market     SnapshotSource
	news       HeadlineSource
	newsLimit  int
	engine     *agent.Engine
	pipelines  *agent.PipelineConfig
	store      session.Store
	window     int
	maxHistory int
	logger     zerolog.Logger
	now        func() time.Time
	md         goldmark.Markdown
}

// Option configures the Advisor.
type Option func(*Advisor)

// WithNews sets the headline source and how many headlines reach the prompt.
func WithNews(n HeadlineSource, limit int) Option {
	return func(a *Advisor) { a.news, a.newsLimit = n, limit }
}

// WithHistoryWindow sets how many past turns are replayed into chat prompts.
func WithHistoryWindow(n int) Option {
	return func(a *Advisor) { a.window = n }
}

// WithMaxHistory bounds the stored history per session.
func WithMaxHistory(n int) Option {
	return func(a *Advisor) { a.maxHistory = n }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Advisor) { a.logger = l }
}

// WithClock overrides time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Advisor) { a.now = now }
}

// New creates an Advisor.
func New(src SnapshotSource, engine *agent.Engine, pipelines *agent.PipelineConfig, store session.Store, opts ...Option) *Advisor {
	a := &Advisor{
		market:     src,
		engine:     engine,
		pipelines:  pipelines,
		store:      store,
		window:     conversation.DefaultWindow,
		maxHistory: session.DefaultMaxHistory,
		newsLimit:  8,
		logger:     zerolog.Nop(),
		now:        time.Now,
		md:         goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Chat answers a free-form question in conversation mode.
func (a *Advisor) Chat(ctx context.Context, sessionID, utterance string) (*Reply, error) {
	text := strings.TrimSpace(utterance)
	return a.withSession(ctx, sessionID, text, func(st *session.State) *Reply {
		st.Mode = models.ModeConversation
		return a.chat(ctx, st, text)
	})
}

// Advise stores the advisor parameters and generates a report.
func (a *Advisor) Advise(ctx context.Context, sessionID string, req AdviseRequest) (*Reply, error) {
	text := strings.TrimSpace(req.Text)
	return a.withSession(ctx, sessionID, text, func(st *session.State) *Reply {
		st.Mode = models.ModeAdvisor
		st.SetAdvisorParams(prompts.NormalizeProfile(req.Profile), strings.TrimSpace(req.Objective), req.Extended)
		return a.advise(ctx, st)
	})
}

// Handle processes one submission of the assistant form. Empty text only
// switches the mode.
func (a *Advisor) Handle(ctx context.Context, sessionID string, req Request) (*Reply, error) {
	mode := models.ParseMode(req.Mode)
	text := strings.TrimSpace(req.Text)
	return a.withSession(ctx, sessionID, text, func(st *session.State) *Reply {
		st.Mode = mode
		if text == "" {
			return &Reply{Mode: mode, Kind: KindModeSwitch}
		}
		if mode == models.ModeAdvisor {
			st.SetAdvisorParams(prompts.NormalizeProfile(req.Profile), strings.TrimSpace(req.Objective), req.Extended)
			return a.advise(ctx, st)
		}
		return a.chat(ctx, st, text)
	})
}

// State returns a session's state, a fresh one if it does not exist yet.
func (a *Advisor) State(ctx context.Context, sessionID string) (*session.State, error) {
	return session.Load(ctx, a.store, sessionID)
}

// LastReport returns the downloadable report of a session.
func (a *Advisor) LastReport(ctx context.Context, sessionID string) (string, bool, error) {
	st, err := session.Load(ctx, a.store, sessionID)
	if err != nil {
		return "", false, err
	}
	return st.LastReport, st.HasReport(), nil
}

// ClearReport drops a session's report.
func (a *Advisor) ClearReport(ctx context.Context, sessionID string) error {
	return a.update(ctx, sessionID, func(st *session.State) error {
		st.ClearReport()
		return nil
	})
}

// SetPortfolio replaces a session's portfolio.
func (a *Advisor) SetPortfolio(ctx context.Context, sessionID string, pf models.Portfolio) error {
	return a.update(ctx, sessionID, func(st *session.State) error {
		return st.SetPortfolio(pf)
	})
}

// Portfolio values a session's portfolio against the current snapshot.
func (a *Advisor) Portfolio(ctx context.Context, sessionID string) (portfolio.Result, error) {
	st, err := session.Load(ctx, a.store, sessionID)
	if err != nil {
		return portfolio.Result{}, err
	}
	return a.valuePortfolio(ctx, st.Portfolio), nil
}

func (a *Advisor) valuePortfolio(ctx context.Context, pf models.Portfolio) portfolio.Result {
	snap, err := a.market.Snapshot(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("market snapshot unavailable for portfolio")
		return portfolio.Compute(pf, nil)
	}
	return portfolio.Compute(pf, portfolio.SnapshotLookup(snap))
}

func (a *Advisor) update(ctx context.Context, sessionID string, fn func(*session.State) error) error {
	st, err := session.Load(ctx, a.store, sessionID)
	if err != nil {
		return fmt.Errorf("advisor: load session: %w", err)
	}
	if err := fn(st); err != nil {
		return err
	}
	st.UpdatedAt = a.now()
	// the turn is saved even when the request context has expired
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := a.store.Save(saveCtx, sessionID, st); err != nil {
		return fmt.Errorf("advisor: save session: %w", err)
	}
	return nil
}

// withSession loads the session, runs fn, records the turn and saves.
func (a *Advisor) withSession(ctx context.Context, sessionID, asked string, fn func(*session.State) *Reply) (*Reply, error) {
	var reply *Reply
	err := a.update(ctx, sessionID, func(st *session.State) error {
		reply = fn(st)
		if reply.Kind != KindModeSwitch {
			st.Append(models.ConversationTurn{
				User:      asked,
				Assistant: reply.Markdown,
				Mode:      reply.Mode,
				At:        a.now(),
			}, a.maxHistory)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (a *Advisor) chat(ctx context.Context, st *session.State, text string) *Reply {
	if text == "" {
		return a.invalid(models.ModeConversation, EmptyQuestionMessage)
	}

	snap, err := a.market.Snapshot(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("market snapshot unavailable for chat")
	}
	prompt := conversation.Render(conversation.Input{
		Base:      a.baseContext(st, snap),
		Portfolio: a.priced(st.Portfolio, snap),
		History:   st.History,
		Window:    a.window,
		Utterance: text,
	})

	res, err := a.engine.Run(ctx, a.pipelines.Chat, map[string]string{
		prompts.InputContext:  prompt,
		prompts.InputQuestion: text,
	})
	if err != nil {
		return a.failure(models.ModeConversation, err)
	}
	return a.reply(models.ModeConversation, KindAnswer, res)
}

func (a *Advisor) advise(ctx context.Context, st *session.State) *Reply {
	if !st.HasAdvisorParams() {
		st.ClearReport()
		return a.invalid(models.ModeAdvisor, InvalidInputMessage)
	}

	snap, err := a.market.Snapshot(ctx)
	if err != nil {
		return a.failure(models.ModeAdvisor, err)
	}
	inputs := map[string]string{
		prompts.InputMarketData: market.BuildSummary(snap),
		prompts.InputNews:       a.headlines(ctx),
		prompts.InputProfile:    st.Profile,
		prompts.InputObjective:  st.Objective,
	}
	if st.Extended {
		inputs[prompts.InputVolatility] = market.BuildRiskSummary(snap)
	}

	res, err := a.engine.Run(ctx, a.pipelines.Report(st.Extended), inputs)
	if err != nil {
		return a.failure(models.ModeAdvisor, err)
	}
	st.SetReport(res.Output, st.Extended)
	return a.reply(models.ModeAdvisor, KindReport, res)
}

// baseContext returns the session's cached market section, rebuilding it
// when the shared snapshot has been refreshed since it was cached.
func (a *Advisor) baseContext(st *session.State, snap *models.MarketSnapshot) string {
	if snap == nil {
		return "**Resumen Fundamental IBEX35**\n" + noMarketDataText
	}
	if base, ok := st.Base(snap.FetchedAt); ok {
		return base
	}
	base := conversation.BaseSection(market.BuildDetailedSummary(snap), market.Growth(snap))
	st.SetBase(base, snap.FetchedAt)
	return base
}

// priced values the portfolio from the same snapshot as the market section.
func (a *Advisor) priced(pf models.Portfolio, snap *models.MarketSnapshot) portfolio.Result {
	if snap == nil {
		return portfolio.Compute(pf, nil)
	}
	return portfolio.Compute(pf, portfolio.SnapshotLookup(snap))
}

func (a *Advisor) headlines(ctx context.Context) string {
	if a.news == nil {
		return datasource.FormatHeadlines(nil)
	}
	items, err := a.news.Headlines(ctx, a.newsLimit)
	if err != nil {
		a.logger.Debug().Err(err).Msg("news unavailable")
	}
	return datasource.FormatHeadlines(items) + sentiment.Format(sentiment.Analyze(items, a.now()))
}

func (a *Advisor) reply(mode models.Mode, kind Kind, res *agent.RunResult) *Reply {
	return &Reply{
		Mode:     mode,
		Kind:     kind,
		Markdown: res.Output,
		HTML:     a.RenderHTML(res.Output),
		Stages:   res.Stages,
	}
}

func (a *Advisor) invalid(mode models.Mode, msg string) *Reply {
	return &Reply{
		Mode:     mode,
		Kind:     KindInvalidInput,
		Markdown: msg,
		HTML:     a.RenderHTML(msg),
		Err:      ErrInvalidInput,
	}
}

func (a *Advisor) failure(mode models.Mode, err error) *Reply {
	kind, msg := Classify(err)
	a.logger.Warn().Err(err).Str("mode", string(mode)).Str("kind", string(kind)).Msg("advisor request failed")
	return &Reply{
		Mode:     mode,
		Kind:     kind,
		Markdown: msg,
		HTML:     a.RenderHTML(msg),
		Err:      err,
	}
}

// Classify maps a backend error onto the reply shown to the user.
func Classify(err error) (Kind, string) {
	if errors.Is(err, llm.ErrRateLimit) {
		return KindRateLimited, RateLimitedMessage
	}
	return KindBackendFailure, BackendFailureMessage
}

// RenderHTML converts markdown to HTML. Raw HTML in the input is not passed
// through.
func (a *Advisor) RenderHTML(md string) string {
	var buf bytes.Buffer
	if err := a.md.Convert([]byte(md), &buf); err != nil {
		return md
	}
	return buf.String()
}
