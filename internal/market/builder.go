// Package market builds the shared IBEX35 market snapshot and renders the
// text summaries handed to the agents.
package market

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/seenimoa/ibexai/internal/analysis/technical"
	"github.com/seenimoa/ibexai/internal/datasource"
	"github.com/seenimoa/ibexai/pkg/models"
	"github.com/seenimoa/ibexai/pkg/utils"
)

// DefaultTTL is how long a snapshot is served before a refresh is triggered.
const DefaultTTL = time.Hour

// ErrNoData is recorded for an instrument when no call returned anything.
var ErrNoData = errors.New("market: no data for instrument")

// RefreshObserver is notified after every snapshot build.
type RefreshObserver interface {
	ObserveRefresh(took time.Duration, instruments, failures int)
}

// Options configures a Builder.
type Options struct {
	TTL         time.Duration
	Concurrency int
	Universe    []models.Instrument
	Logger      zerolog.Logger
	Observer    RefreshObserver
	Now         func() time.Time
}

// Builder owns the single global MarketSnapshot. Readers share the current
// snapshot; an expired snapshot keeps being served while one refresh runs.
type Builder struct {
	source      datasource.MarketDataSource
	ttl         time.Duration
	concurrency int
	universe    []models.Instrument
	logger      zerolog.Logger
	observer    RefreshObserver
	now         func() time.Time

	current atomic.Pointer[models.MarketSnapshot]
	group   singleflight.Group
}

// NewBuilder creates a snapshot builder over source.
func NewBuilder(source datasource.MarketDataSource, opts Options) *Builder {
	b := &Builder{
		source:      source,
		ttl:         opts.TTL,
		concurrency: opts.Concurrency,
		universe:    opts.Universe,
		logger:      opts.Logger,
		observer:    opts.Observer,
		now:         opts.Now,
	}
	if b.ttl <= 0 {
		b.ttl = DefaultTTL
	}
	if b.concurrency <= 0 {
		b.concurrency = 5
	}
	if len(b.universe) == 0 {
		b.universe = models.IBEX35()
	}
	if b.now == nil {
		b.now = utils.NowMadrid
	}
	return b
}

// Snapshot returns the shared snapshot, building it on first use. When the
// cached snapshot has expired it is still returned and a background refresh
// is started; concurrent callers never trigger more than one refresh.
func (b *Builder) Snapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	cur := b.current.Load()
	if cur != nil {
		if b.now().Sub(cur.FetchedAt) >= b.ttl {
			b.group.DoChan("snapshot", func() (any, error) {
				return b.refresh(context.WithoutCancel(ctx))
			})
		}
		return cur, nil
	}
	v, err, _ := b.group.Do("snapshot", func() (any, error) {
		return b.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.MarketSnapshot), nil
}

// Refresh rebuilds the snapshot now and returns it.
func (b *Builder) Refresh(ctx context.Context) (*models.MarketSnapshot, error) {
	v, err, _ := b.group.Do("snapshot", func() (any, error) {
		return b.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.MarketSnapshot), nil
}

// Current returns the cached snapshot without triggering any fetch.
func (b *Builder) Current() *models.MarketSnapshot {
	return b.current.Load()
}

func (b *Builder) refresh(ctx context.Context) (*models.MarketSnapshot, error) {
	start := time.Now()
	snap, err := b.build(ctx)
	if err != nil {
		if stale := b.current.Load(); stale != nil {
			b.logger.Warn().Err(err).Msg("snapshot refresh failed, serving stale data")
			return stale, nil
		}
		return nil, err
	}

	failures := snap.Failures()
	if b.observer != nil {
		b.observer.ObserveRefresh(time.Since(start), len(snap.Instruments), failures)
	}
	b.logger.Info().
		Int("instruments", len(snap.Instruments)).
		Int("failures", failures).
		Dur("took", time.Since(start)).
		Msg("market snapshot built")

	if failures == len(snap.Instruments) {
		// nothing usable: keep the previous snapshot if there is one
		if stale := b.current.Load(); stale != nil {
			return stale, nil
		}
		return snap, nil
	}
	b.current.Store(snap)
	return snap, nil
}

// build fetches every instrument with bounded concurrency. Per-instrument
// failures are recorded on the instrument and never abort the batch.
func (b *Builder) build(ctx context.Context) (*models.MarketSnapshot, error) {
	now := b.now()
	snap := &models.MarketSnapshot{
		Instruments: make([]models.InstrumentSnapshot, len(b.universe)),
		FetchedAt:   now,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, in := range b.universe {
		g.Go(func() error {
			snap.Instruments[i] = b.fetchInstrument(gctx, in, now)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("market snapshot: %w", err)
	}
	return snap, nil
}

func (b *Builder) fetchInstrument(ctx context.Context, in models.Instrument, now time.Time) models.InstrumentSnapshot {
	out := models.InstrumentSnapshot{Instrument: in}

	f, fErr := b.source.Fundamentals(ctx, in.Symbol)
	series, sErr := b.source.HistoricalSeries(ctx, in.Symbol, now.AddDate(-1, 0, -7), now)

	if fErr != nil && (sErr != nil || len(series) == 0) {
		b.logger.Debug().Err(fErr).Str("symbol", in.Symbol).Msg("instrument fetch failed")
		out.Err = fErr.Error()
		return out
	}

	if last, ok := series.Last(); ok {
		out.Price = utils.Float(last)
	}
	if f != nil {
		if !out.Price.Valid {
			out.Price = f.Price
		}
		out.DividendYieldPct = f.DividendYieldPct
		out.DividendRate = f.DividendRate
		out.MarketCap = f.MarketCap
	}
	if !out.Price.Valid {
		if p, err := b.source.CurrentPrice(ctx, in.Symbol); err == nil {
			out.Price = p
		}
	}

	if len(series) >= 2 {
		last := utils.Float(series[len(series)-1].Close)
		if base, ok := closeOnOrAfter(series, now.AddDate(0, -1, 0)); ok {
			out.Change1MPct = utils.Change(base, last)
		}
		if base, ok := closeOnOrAfter(series, now.AddDate(-1, 0, 0)); ok {
			out.PriceOneYearAgo = base
			out.Change1YPct = utils.Change(base, last)
		}
		if vol, ok := technical.AnnualizedVolatility(sinceCloses(series, now.AddDate(-1, 0, 0)), 0); ok {
			out.Volatility1YPct = decimal.NewNullDecimal(decimal.NewFromFloat(vol).Round(2))
		}
	}

	if !out.Price.Valid && f == nil && len(series) == 0 {
		out.Err = ErrNoData.Error()
	}
	return out
}

// closeOnOrAfter returns the first close dated at or after t, provided it is
// not the last point of the series.
func closeOnOrAfter(s models.Series, t time.Time) (decimal.NullDecimal, bool) {
	for i, p := range s[:len(s)-1] {
		if !p.Date.Before(t) {
			return utils.Float(s[i].Close), true
		}
	}
	return decimal.NullDecimal{}, false
}

func sinceCloses(s models.Series, t time.Time) []float64 {
	var out []float64
	for _, p := range s {
		if !p.Date.Before(t) {
			out = append(out, p.Close)
		}
	}
	return out
}
