package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentSnapshot is the market state of one instrument at snapshot time.
// A field with Valid=false is absent upstream and must render as "N/A".
type InstrumentSnapshot struct {
	Instrument       Instrument          `json:"instrument"`
	Price            decimal.NullDecimal `json:"price"`
	DividendYieldPct decimal.NullDecimal `json:"dividend_yield_pct"`
	DividendRate     decimal.NullDecimal `json:"dividend_rate"`
	MarketCap        decimal.NullDecimal `json:"market_cap"`
	Change1MPct      decimal.NullDecimal `json:"change_1m_pct"`
	Change1YPct      decimal.NullDecimal `json:"change_1y_pct"`
	PriceOneYearAgo  decimal.NullDecimal `json:"price_1y_ago"`
	Volatility1YPct  decimal.NullDecimal `json:"volatility_1y_pct"`

	// Err is set when nothing could be fetched for the instrument.
	Err string `json:"error,omitempty"`
}

// Failed reports whether the whole instrument fetch failed.
func (s InstrumentSnapshot) Failed() bool { return s.Err != "" }

// MarketSnapshot is an immutable, time-stamped view of the whole universe.
type MarketSnapshot struct {
	Instruments []InstrumentSnapshot `json:"instruments"`
	FetchedAt   time.Time            `json:"fetched_at"`
}

// Find returns the snapshot entry for a symbol.
func (m *MarketSnapshot) Find(symbol string) (InstrumentSnapshot, bool) {
	if m == nil {
		return InstrumentSnapshot{}, false
	}
	for _, s := range m.Instruments {
		if s.Instrument.Symbol == symbol {
			return s, true
		}
	}
	return InstrumentSnapshot{}, false
}

// Failures counts instruments whose fetch failed entirely.
func (m *MarketSnapshot) Failures() int {
	n := 0
	for _, s := range m.Instruments {
		if s.Failed() {
			n++
		}
	}
	return n
}
