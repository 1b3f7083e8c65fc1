// Package datasource provides market data retrieval for the IBEX35 universe.
// It defines the MarketDataSource interface consumed by the market context
// builder and implements it on top of Yahoo Finance, plus an RSS news source.
package datasource

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/ibexai/pkg/models"
)

// MarketDataSource is the upstream market data collaborator. Every call may
// fail or return partial data; callers need an absence path at each site.
type MarketDataSource interface {
	// Name returns the human-readable name of this data source.
	Name() string

	// CurrentPrice returns the most recent close, Valid=false when unknown.
	CurrentPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error)

	// HistoricalSeries returns daily closes in [from, to], oldest first.
	// An empty series is not an error.
	HistoricalSeries(ctx context.Context, symbol string, from, to time.Time) (models.Series, error)

	// Fundamentals returns the named fundamental fields; any may be absent.
	Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
}

// --- Sentinel errors ---

// ErrTickerNotFound is returned when a ticker cannot be resolved.
var ErrTickerNotFound = errors.New("ticker not found")

// ErrUpstream is returned when the source answers with an API-level error.
var ErrUpstream = errors.New("upstream data source error")
