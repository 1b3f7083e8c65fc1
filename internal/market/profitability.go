package market

import (
	"github.com/shopspring/decimal"

	"github.com/seenimoa/ibexai/pkg/models"
	"github.com/seenimoa/ibexai/pkg/utils"
)

// ProfitabilityRow is one row of the dividend/profitability table.
type ProfitabilityRow struct {
	Name             string              `json:"empresa"`
	Symbol           string              `json:"ticker"`
	Price            decimal.NullDecimal `json:"precio_actual"`
	Dividend         decimal.NullDecimal `json:"dividendos_anuales"`
	DividendYieldPct decimal.NullDecimal `json:"rentabilidad_dividendaria_pct"`
	MarketCap        decimal.NullDecimal `json:"capitalizacion"`
	AdjChange1YPct   decimal.NullDecimal `json:"cambio_ultimo_ano_pct"`
	Err              string              `json:"error,omitempty"`
}

// Profitability builds the table. The 1-year change is dividend adjusted:
// ((price - dividend) - price_1y_ago) / price_1y_ago * 100, absent when any
// operand is absent. A missing dividend with a reported yield of zero counts
// as a dividend of zero.
func Profitability(snap *models.MarketSnapshot) []ProfitabilityRow {
	rows := make([]ProfitabilityRow, 0, len(snap.Instruments))
	for _, s := range snap.Instruments {
		row := ProfitabilityRow{
			Name:   s.Instrument.Name,
			Symbol: s.Instrument.Symbol,
			Err:    s.Err,
		}
		if !s.Failed() {
			row.Price = s.Price
			row.Dividend = knownDividend(s)
			row.DividendYieldPct = utils.PercentOf(row.Dividend, s.Price)
			row.MarketCap = s.MarketCap
			row.AdjChange1YPct = adjustedChange(s.Price, row.Dividend, s.PriceOneYearAgo)
		}
		rows = append(rows, row)
	}
	return rows
}

// knownDividend returns the dividend rate, or zero for a reported non-payer.
func knownDividend(s models.InstrumentSnapshot) decimal.NullDecimal {
	if !s.DividendRate.Valid && s.DividendYieldPct.Valid && s.DividendYieldPct.Decimal.IsZero() {
		return decimal.NewNullDecimal(decimal.Zero)
	}
	return s.DividendRate
}

func adjustedChange(price, dividend, yearAgo decimal.NullDecimal) decimal.NullDecimal {
	if !price.Valid || !dividend.Valid {
		return decimal.NullDecimal{}
	}
	return utils.Change(yearAgo, decimal.NewNullDecimal(price.Decimal.Sub(dividend.Decimal)))
}
