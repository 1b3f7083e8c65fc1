// Package models defines the core data structures used throughout IBEX AI.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Instrument is a tradable security of the index universe.
type Instrument struct {
	Symbol string `json:"symbol"` // e.g., "SAN.MC"
	Name   string `json:"name"`   // e.g., "Banco Santander"
}

// PricePoint is a single daily close.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Series is a time-ordered list of closes, oldest first.
type Series []PricePoint

// Closes returns the close values of the series.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Close
	}
	return out
}

// First returns the oldest close, false when the series is empty.
func (s Series) First() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[0].Close, true
}

// Last returns the newest close, false when the series is empty.
func (s Series) Last() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].Close, true
}

// Fundamentals holds the named fundamental fields of an instrument.
// Every field may be absent when the upstream source omitted it.
type Fundamentals struct {
	Symbol           string              `json:"symbol"`
	LongName         string              `json:"long_name,omitempty"`
	Sector           string              `json:"sector,omitempty"`
	Country          string              `json:"country,omitempty"`
	Price            decimal.NullDecimal `json:"price"`
	TrailingPE       decimal.NullDecimal `json:"trailing_pe"`
	PriceToBook      decimal.NullDecimal `json:"price_to_book"`
	Beta             decimal.NullDecimal `json:"beta"`
	MarketCap        decimal.NullDecimal `json:"market_cap"`
	DividendYieldPct decimal.NullDecimal `json:"dividend_yield_pct"` // percentage, e.g. 4.25
	DividendRate     decimal.NullDecimal `json:"dividend_rate"`      // gross € per share per year
}
