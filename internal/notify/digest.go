package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seenimoa/ibexai/internal/agent"
	"github.com/seenimoa/ibexai/internal/agent/prompts"
	"github.com/seenimoa/ibexai/internal/llm"
	"github.com/seenimoa/ibexai/internal/market"
	"github.com/seenimoa/ibexai/internal/portfolio"
	"github.com/seenimoa/ibexai/pkg/models"
)

// Digest texts.
const (
	DigestSubject          = "📈 Tu reporte diario de IBEX35 IA"
	CommentUnavailable     = "No se pudo generar comentario de mercado."
	CommentRateLimited     = "El servicio de IA está limitado; no hay comentario de mercado."
	CommentFailed          = "No se ha podido generar comentario de mercado."
	commentQuestion        = "En base a estos datos de crecimiento del IBEX35, dime en una frase si el mercado va bien o mal hoy, y por qué:\n\n"
	portfolioSectionHeader = "**Tu cartera de acciones hoy**"
)

// ErrEmptyPortfolio is returned when there is nothing to report.
var ErrEmptyPortfolio = errors.New("notify: portfolio is empty")

// SnapshotSource supplies the shared market snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*models.MarketSnapshot, error)
}

// Digest composes and sends the daily portfolio email: a one-sentence AI
// market comment followed by the user's positions.
type Digest struct {
	market SnapshotSource
	engine *agent.Engine
	chat   agent.Pipeline
	sender Sender
	from   string
	logger zerolog.Logger
}

// NewDigest creates a digest that comments through the chat pipeline.
func NewDigest(src SnapshotSource, engine *agent.Engine, chat agent.Pipeline, sender Sender, from string, logger zerolog.Logger) *Digest {
	return &Digest{market: src, engine: engine, chat: chat, sender: sender, from: from, logger: logger}
}

// Compose builds the email body for positions.
func (d *Digest) Compose(ctx context.Context, positions models.Portfolio) (string, error) {
	if len(positions) == 0 {
		return "", ErrEmptyPortfolio
	}
	snap, err := d.market.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	lines := []string{d.comment(ctx, snap), "", portfolioSectionHeader}
	res := portfolio.Compute(positions, portfolio.SnapshotLookup(snap))
	for _, l := range res.Lines {
		lines = append(lines, digestLine(l))
	}
	return strings.Join(lines, "\n"), nil
}

// Send composes the digest once and mails it to every recipient separately.
func (d *Digest) Send(ctx context.Context, to []string, positions models.Portfolio) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	body, err := d.Compose(ctx, positions)
	if err != nil {
		return err
	}
	var errs []error
	for _, addr := range to {
		msg := Message{From: d.from, To: []string{addr}, Subject: DigestSubject, Text: body}
		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Error().Err(err).Str("to", addr).Msg("digest delivery failed")
			errs = append(errs, err)
			continue
		}
		d.logger.Info().Str("to", addr).Msg("digest sent")
	}
	return errors.Join(errs...)
}

// comment asks the chat agent for a one-sentence verdict on the growth data.
func (d *Digest) comment(ctx context.Context, snap *models.MarketSnapshot) string {
	growth := market.FormatGrowth(market.Growth(snap))
	res, err := d.engine.Run(ctx, d.chat, map[string]string{
		prompts.InputContext:  growth,
		prompts.InputQuestion: commentQuestion + growth,
	})
	switch {
	case err == nil && strings.TrimSpace(res.Output) != "":
		return strings.TrimSpace(res.Output)
	case err == nil:
		return CommentUnavailable
	case errors.Is(err, llm.ErrRateLimit):
		return CommentRateLimited
	default:
		d.logger.Warn().Err(err).Msg("digest market comment failed")
		return CommentFailed
	}
}

func digestLine(l portfolio.Line) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s: %d unid., precio actual %s €", l.Symbol, l.Shares, l.Price.StringFixed(2))
	if l.PriceFallback {
		b.WriteString(" (precio no disponible)")
	}
	if l.CostBasis.Valid {
		fmt.Fprintf(&b, ", coste medio %s €", l.CostBasis.Decimal.StringFixed(2))
		if l.Gain.Valid {
			fmt.Fprintf(&b, ", ganancia total %s €", l.Gain.Decimal.StringFixed(2))
		}
	}
	return b.String()
}
