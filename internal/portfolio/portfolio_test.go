package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/ibexai/pkg/models"
	"github.com/seenimoa/ibexai/pkg/utils"
)

func mapLookup(prices map[string]float64) PriceLookup {
	return func(symbol string) (decimal.Decimal, bool) {
		p, ok := prices[symbol]
		return decimal.NewFromFloat(p), ok
	}
}

func TestAggregateExcludesUnknownCost(t *testing.T) {
	pf := models.Portfolio{
		{Symbol: "A", Shares: 10},
		{Symbol: "B", Shares: 2, CostBasis: utils.Float(5)},
	}
	res := Compute(pf, mapLookup(map[string]float64{"A": 20, "B": 8}))

	assert.True(t, res.AggregateGain.Equal(decimal.NewFromInt(6)), "got %s", res.AggregateGain)
	assert.Equal(t, 1, res.GainKnown)
	assert.Equal(t, 1, res.GainUnknown)
	assert.False(t, res.Lines[0].Gain.Valid)
	assert.Equal(t, "200.00", res.Lines[0].Value.Decimal.StringFixed(2))
	assert.True(t, res.TotalValue.Equal(decimal.NewFromInt(216)))
}

func TestPriceFallbackNeverCountsTowardGain(t *testing.T) {
	pf := models.Portfolio{
		{Symbol: "SAN.MC", Shares: 100, CostBasis: utils.Float(3)},
		{Symbol: "BBVA.MC", Shares: 10, CostBasis: utils.Float(9)},
	}
	res := Compute(pf, mapLookup(map[string]float64{"BBVA.MC": 10}))

	require.Len(t, res.Lines, 2)
	san := res.Lines[0]
	assert.True(t, san.PriceFallback)
	assert.True(t, san.Price.IsZero())
	assert.False(t, san.Gain.Valid)
	assert.Equal(t, "Banco Santander", san.Name)
	assert.True(t, res.AggregateGain.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "- SAN.MC: 100 acciones, coste medio 3.00 €, precio actual 0.00 € (precio no disponible)", san.String())
}

func TestLineStrings(t *testing.T) {
	res := Compute(models.Portfolio{
		{Symbol: "ITX.MC", Shares: 3, CostBasis: utils.Float(40)},
		{Symbol: "REP.MC", Shares: 5},
	}, mapLookup(map[string]float64{"ITX.MC": 48.5, "REP.MC": 12}))

	assert.Equal(t, "- ITX.MC: 3 acciones, coste medio 40.00 €, precio actual 48.50 €, ganancia total 25.50 €", res.Lines[0].String())
	assert.Equal(t, "- REP.MC: 5 acciones, precio actual 12.00 €, valor 60.00 €", res.Lines[1].String())

	out := Format(res)
	assert.Contains(t, out, "Ganancia total de la cartera: 25.50 € (1 posiciones sin coste o precio no incluidas)\n")
}

func TestFormatEmpty(t *testing.T) {
	assert.Equal(t, "- (ninguna)\n", Format(Compute(nil, nil)))
}

func TestSnapshotLookup(t *testing.T) {
	snap := &models.MarketSnapshot{Instruments: []models.InstrumentSnapshot{
		{Instrument: models.Instrument{Symbol: "IBE.MC"}, Price: utils.Float(12.5)},
		{Instrument: models.Instrument{Symbol: "TEF.MC"}, Err: "boom"},
		{Instrument: models.Instrument{Symbol: "GRF.MC"}},
	}}
	lookup := SnapshotLookup(snap)

	p, ok := lookup("IBE.MC")
	assert.True(t, ok)
	assert.Equal(t, "12.5", p.String())

	for _, sym := range []string{"TEF.MC", "GRF.MC", "XXX.MC"} {
		_, ok := lookup(sym)
		assert.False(t, ok, sym)
	}
}
