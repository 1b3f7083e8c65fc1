// Package forecast projects a daily price series forward with a linear trend
// and a residual-based confidence band.
package forecast

import (
	"errors"
	"math"
	"time"

	"github.com/seenimoa/ibexai/pkg/models"
)

// Horizons offered by the analysis view.
const (
	ShortTermDays = 30
	LongTermDays  = 365
)

// SmoothingWindow is the centred rolling-mean width applied to the projection.
const SmoothingWindow = 7

// z-score of an 80% two-sided interval
const bandZ = 1.2816

// ErrInsufficientData is returned when the history is too short to fit.
var ErrInsufficientData = errors.New("not enough history to forecast")

// Point is one projected day.
type Point struct {
	Date  time.Time `json:"date"`
	Mean  float64   `json:"mean"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`
}

// Result is a forecast anchored to the last observation.
type Result struct {
	Symbol      string        `json:"symbol"`
	HorizonDays int           `json:"horizon_days"`
	History     models.Series `json:"-"`
	Points      []Point       `json:"points"`
	Slope       float64       `json:"slope_per_day"`
}

// Last returns the final projected point.
func (r *Result) Last() Point {
	return r.Points[len(r.Points)-1]
}

// Forecast fits close = a + b*t by least squares over calendar days and
// projects horizonDays forward. The band is ±z·σ of residuals, widened with
// distance from the data. Mean and band are smoothed with a centred 7-point
// rolling mean, then the first point is pinned to the last observed close.
func Forecast(symbol string, series models.Series, horizonDays int) (*Result, error) {
	if len(series) < 10 {
		return nil, ErrInsufficientData
	}
	if horizonDays <= 0 {
		horizonDays = LongTermDays
	}

	origin := series[0].Date
	xs := make([]float64, len(series))
	ys := series.Closes()
	for i, p := range series {
		xs[i] = p.Date.Sub(origin).Hours() / 24
	}

	a, b := leastSquares(xs, ys)
	sigma := residualSigma(xs, ys, a, b)

	last := series[len(series)-1]
	lastX := xs[len(xs)-1]
	span := math.Max(lastX, 1)

	mean := make([]float64, horizonDays)
	lower := make([]float64, horizonDays)
	upper := make([]float64, horizonDays)
	dates := make([]time.Time, horizonDays)
	for h := 1; h <= horizonDays; h++ {
		x := lastX + float64(h)
		y := a + b*x
		width := bandZ * sigma * math.Sqrt(1+float64(h)/span)
		mean[h-1] = y
		lower[h-1] = y - width
		upper[h-1] = y + width
		dates[h-1] = last.Date.AddDate(0, 0, h)
	}

	mean = centredMean(mean, SmoothingWindow)
	lower = centredMean(lower, SmoothingWindow)
	upper = centredMean(upper, SmoothingWindow)

	points := make([]Point, 0, horizonDays+1)
	// anchor: the projection starts exactly at the last observation
	points = append(points, Point{Date: last.Date, Mean: last.Close, Lower: last.Close, Upper: last.Close})
	for i := range mean {
		points = append(points, Point{Date: dates[i], Mean: mean[i], Lower: lower[i], Upper: upper[i]})
	}

	return &Result{
		Symbol:      symbol,
		HorizonDays: horizonDays,
		History:     series,
		Points:      points,
		Slope:       b,
	}, nil
}

func leastSquares(xs, ys []float64) (a, b float64) {
	n := float64(len(xs))
	var sx, sy, sxx, sxy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxx += xs[i] * xs[i]
		sxy += xs[i] * ys[i]
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return sy / n, 0
	}
	b = (n*sxy - sx*sy) / den
	a = (sy - b*sx) / n
	return a, b
}

func residualSigma(xs, ys []float64, a, b float64) float64 {
	if len(xs) < 3 {
		return 0
	}
	var ss float64
	for i := range xs {
		r := ys[i] - (a + b*xs[i])
		ss += r * r
	}
	return math.Sqrt(ss / float64(len(xs)-2))
}

// centredMean is a rolling mean of width w centred on each point, using
// whatever neighbours exist at the edges.
func centredMean(in []float64, w int) []float64 {
	out := make([]float64, len(in))
	half := w / 2
	for i := range in {
		lo, hi := i-half, i+half
		if lo < 0 {
			lo = 0
		}
		if hi > len(in)-1 {
			hi = len(in) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += in[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}
