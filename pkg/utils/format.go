// Package utils provides common formatting and calendar helpers for IBEX AI.
package utils

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// NA is rendered in place of any value the upstream source did not provide.
const NA = "N/A"

var (
	million = decimal.NewFromInt(1_000_000)
	billion = decimal.NewFromInt(1_000_000_000)
	hundred = decimal.NewFromInt(100)
)

// Euro formats an optional amount as "12.34 €".
func Euro(v decimal.NullDecimal) string {
	if !v.Valid {
		return NA
	}
	return v.Decimal.StringFixed(2) + " €"
}

// Number formats an optional amount with two decimals and no unit.
func Number(v decimal.NullDecimal) string {
	if !v.Valid {
		return NA
	}
	return v.Decimal.StringFixed(2)
}

// Percent formats an optional percentage as "4.25%".
func Percent(v decimal.NullDecimal) string {
	if !v.Valid {
		return NA
	}
	return v.Decimal.StringFixed(2) + "%"
}

// MillionsEUR formats a market capitalisation as whole millions, "12345 M€".
func MillionsEUR(v decimal.NullDecimal) string {
	if !v.Valid {
		return NA
	}
	return v.Decimal.Div(million).StringFixed(0) + " M€"
}

// BillionsEUR formats a market capitalisation as "12.35B €".
func BillionsEUR(v decimal.NullDecimal) string {
	if !v.Valid {
		return NA
	}
	return v.Decimal.Div(billion).StringFixed(2) + "B €"
}

// Grouped formats an amount with thousands separators for tables, "1,234,567.89 €".
func Grouped(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	s := humanize.CommafWithDigits(f, 2)
	// CommafWithDigits trims trailing zeros
	if i := strings.IndexByte(s, '.'); i < 0 {
		s += ".00"
	} else if len(s)-i == 2 {
		s += "0"
	}
	return s + " €"
}

// SignedPercent renders a change with an explicit sign, "+1.50%".
func SignedPercent(v decimal.NullDecimal) string {
	if !v.Valid {
		return NA
	}
	if v.Decimal.IsPositive() {
		return "+" + v.Decimal.StringFixed(2) + "%"
	}
	return v.Decimal.StringFixed(2) + "%"
}

// PercentOf returns part/whole*100, absent when either operand is absent or whole is zero.
func PercentOf(part, whole decimal.NullDecimal) decimal.NullDecimal {
	if !part.Valid || !whole.Valid || whole.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(part.Decimal.Div(whole.Decimal).Mul(hundred))
}

// Change returns (to-from)/from*100, absent when either side is absent or from is zero.
func Change(from, to decimal.NullDecimal) decimal.NullDecimal {
	if !from.Valid || !to.Valid || from.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(to.Decimal.Sub(from.Decimal).Div(from.Decimal).Mul(hundred))
}

// Float wraps a float64 as a present NullDecimal.
func Float(f float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(f))
}
