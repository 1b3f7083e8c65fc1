// Package portfolio values a user's positions against a single price
// observation and renders the "Mis acciones" lines of the chat context.
package portfolio

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/ibexai/pkg/models"
	"github.com/seenimoa/ibexai/pkg/utils"
)

// PriceLookup resolves the current price of a symbol. ok=false means the
// price is unknown.
type PriceLookup func(symbol string) (price decimal.Decimal, ok bool)

// Line is one valued position.
type Line struct {
	Symbol    string              `json:"symbol"`
	Name      string              `json:"name,omitempty"`
	Shares    int                 `json:"shares"`
	CostBasis decimal.NullDecimal `json:"cost_basis"`

	// Price is the display price. When PriceFallback is set it is 0 and
	// must not be read as a real quote.
	Price         decimal.Decimal `json:"price"`
	PriceFallback bool            `json:"price_fallback"`

	Value decimal.NullDecimal `json:"value"`
	// Gain is absent unless both cost basis and price are known.
	Gain decimal.NullDecimal `json:"gain"`
}

// Result is the valuation of a whole portfolio.
type Result struct {
	Lines         []Line          `json:"lines"`
	AggregateGain decimal.Decimal `json:"aggregate_gain"`
	TotalValue    decimal.Decimal `json:"total_value"`
	GainKnown     int             `json:"gain_known"`
	GainUnknown   int             `json:"gain_unknown"`
}

// Empty reports whether there is nothing to show.
func (r Result) Empty() bool { return len(r.Lines) == 0 }

// Compute values every position. Positions without a cost basis, or without a
// price, are counted as unknown gain and left out of the aggregate.
func Compute(positions models.Portfolio, lookup PriceLookup) Result {
	res := Result{Lines: make([]Line, 0, len(positions))}
	for _, p := range positions {
		line := Line{
			Symbol:    p.Symbol,
			Shares:    p.Shares,
			CostBasis: p.CostBasis,
		}
		if in, ok := models.LookupInstrument(p.Symbol); ok {
			line.Name = in.Name
		}

		price, ok := decimal.Zero, false
		if lookup != nil {
			price, ok = lookup(p.Symbol)
		}
		shares := decimal.NewFromInt(int64(p.Shares))
		if ok {
			line.Price = price
			line.Value = decimal.NewNullDecimal(price.Mul(shares))
			res.TotalValue = res.TotalValue.Add(line.Value.Decimal)
		} else {
			line.PriceFallback = true
		}

		if ok && p.CostBasis.Valid {
			gain := price.Sub(p.CostBasis.Decimal).Mul(shares)
			line.Gain = decimal.NewNullDecimal(gain)
			res.AggregateGain = res.AggregateGain.Add(gain)
			res.GainKnown++
		} else {
			res.GainUnknown++
		}
		res.Lines = append(res.Lines, line)
	}
	return res
}

// SnapshotLookup prices positions from snap so that the portfolio and the
// market section of one render show the same observation.
func SnapshotLookup(snap *models.MarketSnapshot) PriceLookup {
	return func(symbol string) (decimal.Decimal, bool) {
		s, ok := snap.Find(symbol)
		if !ok || s.Failed() || !s.Price.Valid {
			return decimal.Zero, false
		}
		return s.Price.Decimal, true
	}
}

// String renders the line the way it is shown to the chat agent.
func (l Line) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s: %d acciones, ", l.Symbol, l.Shares)
	if l.CostBasis.Valid {
		fmt.Fprintf(&b, "coste medio %s, ", utils.Euro(l.CostBasis))
	}
	fmt.Fprintf(&b, "precio actual %s €", l.Price.StringFixed(2))
	switch {
	case l.PriceFallback:
		b.WriteString(" (precio no disponible)")
	case l.Gain.Valid:
		fmt.Fprintf(&b, ", ganancia total %s", utils.Euro(l.Gain))
	default:
		fmt.Fprintf(&b, ", valor %s", utils.Euro(l.Value))
	}
	return b.String()
}

// Format renders one line per position followed by the aggregate, or
// "- (ninguna)" for an empty portfolio.
func Format(r Result) string {
	if r.Empty() {
		return "- (ninguna)\n"
	}
	var b strings.Builder
	for _, l := range r.Lines {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	if r.GainKnown > 0 {
		fmt.Fprintf(&b, "Ganancia total de la cartera: %s €", r.AggregateGain.StringFixed(2))
		if r.GainUnknown > 0 {
			fmt.Fprintf(&b, " (%d posiciones sin coste o precio no incluidas)", r.GainUnknown)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
