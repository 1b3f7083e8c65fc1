// Package conversation assembles the prompt fed to the chat agent: the market
// section, the user's portfolio, a bounded window of past turns and the new
// utterance, always in that order.
package conversation

import (
	"strings"

	"github.com/seenimoa/ibexai/internal/market"
	"github.com/seenimoa/ibexai/internal/portfolio"
	"github.com/seenimoa/ibexai/pkg/models"
)

// DefaultWindow is how many past turns are replayed into a prompt.
const DefaultWindow = 5

// Input is everything one chat prompt is built from.
type Input struct {
	// Base is the cached market section, see BaseSection.
	Base      string
	Portfolio portfolio.Result
	History   []models.ConversationTurn
	Window    int
	Utterance string
}

// BaseSection renders the market part of the context: the detailed summary
// followed by the growth highlights. It is built once per session and cached.
func BaseSection(detailed string, growth []market.GrowthLine) string {
	var b strings.Builder
	b.WriteString("**Resumen Fundamental IBEX35**\n")
	b.WriteString(detailed)
	b.WriteString("\n\n**Crecimientos**\n")
	b.WriteString(market.FormatGrowth(growth))
	return b.String()
}

// Recent returns the last n turns of history. n <= 0 uses DefaultWindow.
func Recent(history []models.ConversationTurn, n int) []models.ConversationTurn {
	if n <= 0 {
		n = DefaultWindow
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// Render composes the prompt text.
func Render(in Input) string {
	var b strings.Builder
	b.WriteString(in.Base)

	b.WriteString("\n**Mis acciones**\n")
	b.WriteString(portfolio.Format(in.Portfolio))

	b.WriteString("\n**Historial Reciente**\n")
	for _, t := range Recent(in.History, in.Window) {
		b.WriteString("Tú: ")
		b.WriteString(t.User)
		b.WriteString("\nAsistente: ")
		b.WriteString(t.Assistant)
		b.WriteByte('\n')
	}

	b.WriteString("\nTú: ")
	b.WriteString(in.Utterance)
	b.WriteString("\nAsistente:")
	return b.String()
}
