package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/ibexai/pkg/models"
	"github.com/seenimoa/ibexai/pkg/utils"
)

// BuildSummary renders one line per instrument with price, dividend yield,
// market cap in millions and 1-month growth.
func BuildSummary(snap *models.MarketSnapshot) string {
	var b strings.Builder
	for _, s := range snap.Instruments {
		if s.Failed() {
			writeErrorLine(&b, s)
			continue
		}
		fmt.Fprintf(&b, "- **%s** (%s): Precio: %s €, Dividend Yield: %s, Market Cap: %s, Crecimiento 1M: %s\n",
			s.Instrument.Name, s.Instrument.Symbol,
			utils.Number(s.Price),
			utils.Percent(s.DividendYieldPct),
			utils.MillionsEUR(s.MarketCap),
			utils.Percent(s.Change1MPct),
		)
	}
	return b.String()
}

// BuildDetailedSummary renders one line per instrument with price, gross
// annual dividend and its share of the price, and market cap in billions.
func BuildDetailedSummary(snap *models.MarketSnapshot) string {
	var b strings.Builder
	for _, s := range snap.Instruments {
		if s.Failed() {
			writeErrorLine(&b, s)
			continue
		}
		fmt.Fprintf(&b, "- **%s** (%s): Precio %s, Dividendo %s (%s), Market Cap %s\n",
			s.Instrument.Name, s.Instrument.Symbol,
			utils.Euro(s.Price),
			utils.Euro(s.DividendRate),
			utils.Percent(utils.PercentOf(s.DividendRate, s.Price)),
			utils.BillionsEUR(s.MarketCap),
		)
	}
	return b.String()
}

// BuildRiskSummary renders the 1-year annualised volatility per instrument.
func BuildRiskSummary(snap *models.MarketSnapshot) string {
	var b strings.Builder
	for _, s := range snap.Instruments {
		if s.Failed() {
			writeErrorLine(&b, s)
			continue
		}
		fmt.Fprintf(&b, "- **%s** (%s): Volatilidad anualizada 1A: %s, Cambio 1A: %s\n",
			s.Instrument.Name, s.Instrument.Symbol,
			utils.Percent(s.Volatility1YPct),
			utils.Percent(s.Change1YPct),
		)
	}
	return b.String()
}

func writeErrorLine(b *strings.Builder, s models.InstrumentSnapshot) {
	fmt.Fprintf(b, "- **%s** (%s): Error obteniendo datos\n", s.Instrument.Name, s.Instrument.Symbol)
}

// GrowthLine carries the growth fields of one instrument.
type GrowthLine struct {
	Name     string              `json:"name"`
	Symbol   string              `json:"symbol"`
	Change1M decimal.NullDecimal `json:"change_1m_pct"`
	Change1Y decimal.NullDecimal `json:"change_1y_pct"`
}

// Growth extracts the 1M / 1Y changes straight from the snapshot fields.
// Failed instruments are skipped.
func Growth(snap *models.MarketSnapshot) []GrowthLine {
	out := make([]GrowthLine, 0, len(snap.Instruments))
	for _, s := range snap.Instruments {
		if s.Failed() {
			continue
		}
		out = append(out, GrowthLine{
			Name:     s.Instrument.Name,
			Symbol:   s.Instrument.Symbol,
			Change1M: s.Change1MPct,
			Change1Y: s.Change1YPct,
		})
	}
	return out
}

// FormatGrowth renders "- Name: 1M = X%" and "- Name: 1A = Y%" lines for the
// values that are present.
func FormatGrowth(lines []GrowthLine) string {
	var b strings.Builder
	for _, g := range lines {
		if g.Change1M.Valid {
			fmt.Fprintf(&b, "- %s: 1M = %s\n", g.Name, utils.Percent(g.Change1M))
		}
		if g.Change1Y.Valid {
			fmt.Fprintf(&b, "- %s: 1A = %s\n", g.Name, utils.Percent(g.Change1Y))
		}
	}
	return b.String()
}
