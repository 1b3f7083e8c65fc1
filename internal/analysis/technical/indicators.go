// Package technical implements the technical indicators shown next to each
// instrument: simple moving averages, RSI and annualised volatility.
// Series are returned full length; undefined leading points are NaN.
package technical

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/seenimoa/ibexai/pkg/models"
)

// TradingDaysPerYear annualises daily volatility.
const TradingDaysPerYear = 252

// SMA calculates the Simple Moving Average for the given period.
// Points before the first full window are NaN.
func SMA(data []float64, period int) []float64 {
	n := len(data)
	if period <= 0 || n == 0 {
		return nil
	}
	out := make([]float64, n)
	if n < period {
		fillNaN(out)
		return out
	}
	copy(out, talib.Sma(data, period))
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}
	return out
}

// RSI calculates the Relative Strength Index with simple rolling means of
// gains and losses over period. Every point without a full window, and every
// window with neither gains nor losses, is 50. A window with gains and no
// losses is 100.
func RSI(closes []float64, period int) []float64 {
	if period <= 0 {
		period = 14
	}
	n := len(closes)
	rsi := make([]float64, n)
	for i := range rsi {
		rsi[i] = 50
	}
	if n < period+1 {
		return rsi
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	var sumGain, sumLoss float64
	for i := 1; i <= period; i++ {
		sumGain += gains[i]
		sumLoss += losses[i]
	}
	for i := period; i < n; i++ {
		if i > period {
			sumGain += gains[i] - gains[i-period]
			sumLoss += losses[i] - losses[i-period]
		}
		rsi[i] = rsiPoint(sumGain/float64(period), sumLoss/float64(period))
	}
	return rsi
}

// rolling sums drift by ~1e-15; treat that as flat
const flatEpsilon = 1e-12

func rsiPoint(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss <= flatEpsilon && avgGain <= flatEpsilon:
		return 50
	case avgLoss <= flatEpsilon:
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// AnnualizedVolatility returns the standard deviation of daily log returns
// over the last window closes, annualised and expressed in percent.
// window <= 0 uses the whole series. Returns false with fewer than 3 closes.
func AnnualizedVolatility(closes []float64, window int) (float64, bool) {
	if window > 0 && len(closes) > window {
		closes = closes[len(closes)-window:]
	}
	if len(closes) < 3 {
		return 0, false
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	if len(returns) < 2 {
		return 0, false
	}
	sd := talib.StdDev(returns, len(returns), 1)
	return sd[len(sd)-1] * math.Sqrt(TradingDaysPerYear) * 100, true
}

// Indicators bundles the series drawn on the analysis charts.
type Indicators struct {
	Symbol     string    `json:"symbol"`
	Dates      []string  `json:"dates"`
	Closes     []float64 `json:"closes"`
	SMA50      []float64 `json:"-"`
	SMA200     []float64 `json:"-"`
	RSI        []float64 `json:"rsi"`
	LatestRSI  float64   `json:"latest_rsi"`
	Volatility float64   `json:"volatility_pct"`
	Signals    []string  `json:"signals"`
}

// Compute derives all indicators from a daily series.
func Compute(symbol string, series models.Series, rsiPeriod int) *Indicators {
	closes := series.Closes()
	ind := &Indicators{
		Symbol: symbol,
		Closes: closes,
		SMA50:  SMA(closes, 50),
		SMA200: SMA(closes, 200),
		RSI:    RSI(closes, rsiPeriod),
	}
	ind.Dates = make([]string, len(series))
	for i, p := range series {
		ind.Dates[i] = p.Date.Format("2006-01-02")
	}
	if len(ind.RSI) > 0 {
		ind.LatestRSI = ind.RSI[len(ind.RSI)-1]
	}
	ind.Volatility, _ = AnnualizedVolatility(closes, TradingDaysPerYear)
	ind.Signals = signals(ind)
	return ind
}

// signals turns the latest indicator readings into short labels.
func signals(ind *Indicators) []string {
	var out []string
	n := len(ind.Closes)
	if n == 0 {
		return out
	}

	switch {
	case ind.LatestRSI >= 70:
		out = append(out, "RSI en sobrecompra")
	case ind.LatestRSI <= 30:
		out = append(out, "RSI en sobreventa")
	}

	last := ind.Closes[n-1]
	s50, s200 := ind.SMA50[n-1], ind.SMA200[n-1]
	if !math.IsNaN(s50) {
		if last > s50 {
			out = append(out, "Precio sobre SMA50")
		} else {
			out = append(out, "Precio bajo SMA50")
		}
	}
	if !math.IsNaN(s50) && !math.IsNaN(s200) {
		if s50 > s200 {
			out = append(out, "SMA50 sobre SMA200 (tendencia alcista)")
		} else {
			out = append(out, "SMA50 bajo SMA200 (tendencia bajista)")
		}
	}
	return out
}

func fillNaN(s []float64) {
	for i := range s {
		s[i] = math.NaN()
	}
}
