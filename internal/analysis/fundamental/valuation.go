package fundamental

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/ibexai/pkg/models"
)

// Verdicts on the margin of safety.
const (
	VerdictUndervalued = "Infravalorada"
	VerdictFair        = "Valoración razonable"
	VerdictOvervalued  = "Sobrevalorada"
)

// ValuationResult contains the intrinsic value estimates for one instrument.
// Values that cannot be derived from the available fundamentals are zero.
type ValuationResult struct {
	Symbol         string             `json:"symbol"`
	CurrentPrice   float64            `json:"current_price"`
	EPS            float64            `json:"eps"`
	BookValue      float64            `json:"book_value"`
	GrahamNumber   float64            `json:"graham_number"`
	DividendValue  float64            `json:"dividend_value"`
	EarningsYield  float64            `json:"earnings_yield"`
	MarginOfSafety float64            `json:"margin_of_safety"` // % below intrinsic value
	Verdict        string             `json:"verdict,omitempty"`
	Methods        map[string]float64 `json:"methods"` // method → estimated fair value
}

// DDMParams holds parameters for a Gordon dividend discount valuation.
type DDMParams struct {
	Dividend     float64 // gross annual dividend per share
	Growth       float64 // perpetual dividend growth (decimal)
	RequiredRate float64 // required return (decimal)
}

// DefaultDDMParams are used by ComputeValuation.
var DefaultDDMParams = DDMParams{Growth: 0.02, RequiredRate: 0.08}

// DividendDiscount values a share as the present value of a growing
// perpetual dividend.
func DividendDiscount(p DDMParams) float64 {
	if p.Dividend <= 0 || p.RequiredRate <= p.Growth {
		return 0
	}
	return p.Dividend * (1 + p.Growth) / (p.RequiredRate - p.Growth)
}

// GrahamNumber computes the classic Benjamin Graham intrinsic value.
// Graham Number = sqrt(22.5 × EPS × Book Value per Share)
func GrahamNumber(eps, bookValue float64) float64 {
	if eps <= 0 || bookValue <= 0 {
		return 0
	}
	return math.Sqrt(22.5 * eps * bookValue)
}

// EarningsYield computes earnings yield (inverse of PE).
func EarningsYield(eps, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return eps / price * 100
}

func value(d decimal.NullDecimal) float64 {
	if !d.Valid {
		return 0
	}
	return d.Decimal.InexactFloat64()
}

// ComputeValuation derives per-share earnings and book value from the
// price multiples, runs every applicable method and gives a verdict.
func ComputeValuation(f *models.Fundamentals, ddm DDMParams) ValuationResult {
	v := ValuationResult{Methods: make(map[string]float64)}
	if f == nil {
		return v
	}
	v.Symbol = f.Symbol
	price := value(f.Price)
	v.CurrentPrice = price
	if price <= 0 {
		return v
	}

	if pe := value(f.TrailingPE); pe > 0 {
		v.EPS = price / pe
	}
	if pb := value(f.PriceToBook); pb > 0 {
		v.BookValue = price / pb
	}

	if gn := GrahamNumber(v.EPS, v.BookValue); gn > 0 {
		v.GrahamNumber = gn
		v.Methods["graham"] = gn
	}

	ddm.Dividend = value(f.DividendRate)
	if dv := DividendDiscount(ddm); dv > 0 {
		v.DividendValue = dv
		v.Methods["ddm"] = dv
	}

	v.EarningsYield = EarningsYield(v.EPS, price)

	var sum float64
	for _, val := range v.Methods {
		sum += val
	}
	if len(v.Methods) > 0 {
		avgIntrinsic := sum / float64(len(v.Methods))
		v.MarginOfSafety = (avgIntrinsic - price) / avgIntrinsic * 100

		switch {
		case v.MarginOfSafety > 25:
			v.Verdict = VerdictUndervalued
		case v.MarginOfSafety > -10:
			v.Verdict = VerdictFair
		default:
			v.Verdict = VerdictOvervalued
		}
	}

	return v
}
