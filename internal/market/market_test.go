package market

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/ibexai/pkg/models"
	"github.com/seenimoa/ibexai/pkg/utils"
)

var testNow = time.Date(2026, 3, 16, 18, 0, 0, 0, time.UTC)

// fakeSource serves a rising series for every symbol except those in fail.
type fakeSource struct {
	fail  map[string]bool
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) CurrentPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	return decimal.NullDecimal{}, errors.New("unused")
}

func (f *fakeSource) HistoricalSeries(ctx context.Context, symbol string, from, to time.Time) (models.Series, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.fail[symbol] {
		return nil, errors.New("boom")
	}
	var s models.Series
	// 100 one year ago, 110 one month ago, 120 now
	s = append(s, models.PricePoint{Date: to.AddDate(-1, 0, 0), Close: 100})
	s = append(s, models.PricePoint{Date: to.AddDate(0, -1, 0), Close: 110})
	s = append(s, models.PricePoint{Date: to.AddDate(0, 0, -1), Close: 115})
	s = append(s, models.PricePoint{Date: to, Close: 120})
	return s, nil
}

func (f *fakeSource) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	if f.fail[symbol] {
		return nil, errors.New("boom")
	}
	return &models.Fundamentals{
		Symbol:           symbol,
		DividendYieldPct: utils.Float(4.25),
		DividendRate:     utils.Float(6),
		MarketCap:        utils.Float(12_345_678_901),
	}, nil
}

func newTestBuilder(src *fakeSource, now *time.Time) *Builder {
	return NewBuilder(src, Options{
		TTL:         time.Hour,
		Concurrency: 4,
		Now:         func() time.Time { return *now },
	})
}

func TestSnapshotHas35EntriesWithOneFailure(t *testing.T) {
	now := testNow
	b := newTestBuilder(&fakeSource{fail: map[string]bool{"SAN.MC": true}}, &now)

	snap, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Instruments, 35)
	assert.Equal(t, 1, snap.Failures())

	summary := BuildSummary(snap)
	lines := strings.Split(strings.TrimSuffix(summary, "\n"), "\n")
	require.Len(t, lines, 35)
	assert.Contains(t, summary, "- **Banco Santander** (SAN.MC): Error obteniendo datos\n")
	assert.Equal(t, 1, strings.Count(summary, "Error obteniendo datos"))
}

func TestSnapshotFieldsFromSeries(t *testing.T) {
	now := testNow
	b := newTestBuilder(&fakeSource{}, &now)
	snap, err := b.Snapshot(context.Background())
	require.NoError(t, err)

	bbva, ok := snap.Find("BBVA.MC")
	require.True(t, ok)
	assert.Equal(t, "120", bbva.Price.Decimal.String())
	assert.Equal(t, "9.09", bbva.Change1MPct.Decimal.StringFixed(2))
	assert.Equal(t, "20.00", bbva.Change1YPct.Decimal.StringFixed(2))
	assert.Equal(t, "100", bbva.PriceOneYearAgo.Decimal.String())
	assert.True(t, bbva.Volatility1YPct.Valid)
}

func TestBuildSummaryLine(t *testing.T) {
	snap := &models.MarketSnapshot{Instruments: []models.InstrumentSnapshot{{
		Instrument:       models.Instrument{Symbol: "ITX.MC", Name: "Inditex"},
		Price:            utils.Float(48.5),
		DividendYieldPct: utils.Float(3.1),
		MarketCap:        utils.Float(151_234_567_890),
		Change1MPct:      utils.Float(-2.345),
	}}}
	assert.Equal(t,
		"- **Inditex** (ITX.MC): Precio: 48.50 €, Dividend Yield: 3.10%, Market Cap: 151235 M€, Crecimiento 1M: -2.35%\n",
		BuildSummary(snap))
}

func TestBuildDetailedSummaryAbsentDividend(t *testing.T) {
	snap := &models.MarketSnapshot{Instruments: []models.InstrumentSnapshot{
		{
			Instrument:   models.Instrument{Symbol: "IBE.MC", Name: "Iberdrola"},
			Price:        utils.Float(12.5),
			DividendRate: utils.Float(0.5),
			MarketCap:    utils.Float(80_000_000_000),
		},
		{
			Instrument: models.Instrument{Symbol: "GRF.MC", Name: "Grifols"},
			Price:      utils.Float(9),
		},
	}}
	got := BuildDetailedSummary(snap)
	assert.Contains(t, got, "- **Iberdrola** (IBE.MC): Precio 12.50 €, Dividendo 0.50 € (4.00%), Market Cap 80.00B €\n")
	assert.Contains(t, got, "- **Grifols** (GRF.MC): Precio 9.00 €, Dividendo N/A (N/A), Market Cap N/A\n")
	assert.NotContains(t, got, "Dividendo 0.00 €")
}

func TestGrowthCarriesFields(t *testing.T) {
	snap := &models.MarketSnapshot{Instruments: []models.InstrumentSnapshot{
		{Instrument: models.Instrument{Symbol: "REP.MC", Name: "Repsol"}, Change1MPct: utils.Float(-1.5), Change1YPct: utils.Float(7)},
		{Instrument: models.Instrument{Symbol: "TEF.MC", Name: "Telefónica"}, Err: "boom"},
	}}
	g := Growth(snap)
	require.Len(t, g, 1)
	assert.Equal(t, "- Repsol: 1M = -1.50%\n- Repsol: 1A = 7.00%\n", FormatGrowth(g))
}

func TestProfitabilityDividendAdjusted(t *testing.T) {
	snap := &models.MarketSnapshot{Instruments: []models.InstrumentSnapshot{
		{
			Instrument:      models.Instrument{Symbol: "ENG.MC", Name: "Enagás"},
			Price:           utils.Float(15),
			DividendRate:    utils.Float(1),
			PriceOneYearAgo: utils.Float(12.5),
		},
		{
			Instrument:      models.Instrument{Symbol: "SLR.MC", Name: "Solaria"},
			Price:           utils.Float(10),
			PriceOneYearAgo: utils.Float(8),
		},
		{
			Instrument:       models.Instrument{Symbol: "GRF.MC", Name: "Grifols"},
			Price:            utils.Float(9),
			DividendYieldPct: utils.Float(0),
			PriceOneYearAgo:  utils.Float(12),
		},
	}}
	rows := Profitability(snap)
	require.Len(t, rows, 3)
	assert.Equal(t, "12.00", rows[0].AdjChange1YPct.Decimal.StringFixed(2))
	assert.Equal(t, "6.67", rows[0].DividendYieldPct.Decimal.StringFixed(2))
	assert.False(t, rows[1].AdjChange1YPct.Valid, "absent dividend must leave the change absent")
	assert.False(t, rows[1].Dividend.Valid)

	// reported non-payer: unadjusted change
	require.True(t, rows[2].AdjChange1YPct.Valid)
	assert.Equal(t, "-25.00", rows[2].AdjChange1YPct.Decimal.StringFixed(2))
	assert.Equal(t, "0.00", rows[2].DividendYieldPct.Decimal.StringFixed(2))
}

func TestSnapshotCachedWithinTTL(t *testing.T) {
	now := testNow
	src := &fakeSource{}
	b := newTestBuilder(src, &now)

	first, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	calls := src.calls.Load()

	now = now.Add(30 * time.Minute)
	second, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, calls, src.calls.Load())
}

func TestSnapshotConcurrentFirstBuildSharesOneFetch(t *testing.T) {
	now := testNow
	src := &fakeSource{gate: make(chan struct{})}
	b := newTestBuilder(src, &now)

	var wg sync.WaitGroup
	results := make([]*models.MarketSnapshot, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = b.Snapshot(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(35), src.calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestSnapshotServesStaleWhileRefreshing(t *testing.T) {
	now := testNow
	src := &fakeSource{}
	b := newTestBuilder(src, &now)

	first, err := b.Snapshot(context.Background())
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	stale, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, stale, "expired snapshot is served while the refresh runs")

	require.Eventually(t, func() bool {
		cur := b.Current()
		return cur != nil && cur.FetchedAt.Equal(now)
	}, time.Second, 5*time.Millisecond)
}

func TestSnapshotAllFailedKeepsPrevious(t *testing.T) {
	now := testNow
	src := &fakeSource{}
	b := newTestBuilder(src, &now)
	first, err := b.Snapshot(context.Background())
	require.NoError(t, err)

	all := make(map[string]bool)
	for _, in := range models.IBEX35() {
		all[in.Symbol] = true
	}
	src.fail = all
	now = now.Add(2 * time.Hour)
	got, err := b.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, got)
}
