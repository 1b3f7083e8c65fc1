package utils

import (
	"time"
)

// Madrid is the Bolsa de Madrid time zone (CET/CEST).
var Madrid *time.Location

func init() {
	var err error
	Madrid, err = time.LoadLocation("Europe/Madrid")
	if err != nil {
		// no tz database; summer time is lost but dates stay right
		Madrid = time.FixedZone("CET", 1*60*60)
	}
}

// NowMadrid returns the current time in Madrid.
func NowMadrid() time.Time {
	return time.Now().In(Madrid)
}

// MarketOpenTime returns the continuous session opening time (9:00) for a given date.
func MarketOpenTime(date time.Time) time.Time {
	d := date.In(Madrid)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, Madrid)
}

// MarketCloseTime returns the continuous session closing time (17:30) for a given date.
func MarketCloseTime(date time.Time) time.Time {
	d := date.In(Madrid)
	return time.Date(d.Year(), d.Month(), d.Day(), 17, 30, 0, 0, Madrid)
}

// PreOpenStart returns the opening auction start (8:30).
func PreOpenStart(date time.Time) time.Time {
	d := date.In(Madrid)
	return time.Date(d.Year(), d.Month(), d.Day(), 8, 30, 0, 0, Madrid)
}

// IsMarketOpenAt checks if the continuous market would be open at the given time.
func IsMarketOpenAt(t time.Time) bool {
	t = t.In(Madrid)
	if !IsTradingDay(t) {
		return false
	}
	return !t.Before(MarketOpenTime(t)) && !t.After(MarketCloseTime(t))
}

// IsTradingDay checks if the given date is a trading day (not weekend, not holiday).
func IsTradingDay(t time.Time) bool {
	t = t.In(Madrid)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !IsTradingHoliday(t)
}

// PrevTradingDay returns the previous trading day from the given date.
func PrevTradingDay(from time.Time) time.Time {
	prev := from.In(Madrid).AddDate(0, 0, -1)
	for !IsTradingDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// IsTradingHoliday checks if the given date is a BME market holiday.
func IsTradingHoliday(t time.Time) bool {
	_, ok := bmeHolidays[t.In(Madrid).Format("2006-01-02")]
	return ok
}

// BME market holidays. Update annually.
var bmeHolidays = map[string]string{
	"2026-01-01": "Año Nuevo",
	"2026-04-03": "Viernes Santo",
	"2026-04-06": "Lunes de Pascua",
	"2026-05-01": "Día del Trabajo",
	"2026-12-24": "Nochebuena",
	"2026-12-25": "Navidad",
	"2026-12-31": "Nochevieja",
	"2027-01-01": "Año Nuevo",
	"2027-03-26": "Viernes Santo",
	"2027-03-29": "Lunes de Pascua",
}

// FormatDate formats a time.Time to "2006-01-02" in Madrid.
func FormatDate(t time.Time) string {
	return t.In(Madrid).Format("2006-01-02")
}

// FormatDateTime formats a time.Time to "02/01/2006 15:04" in Madrid.
func FormatDateTime(t time.Time) string {
	return t.In(Madrid).Format("02/01/2006 15:04")
}

// MarketStatus returns the market status at t.
func MarketStatus(t time.Time) string {
	now := t.In(Madrid)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return "CLOSED (Weekend)"
	}
	if holiday, ok := bmeHolidays[now.Format("2006-01-02")]; ok {
		return "CLOSED (" + holiday + ")"
	}

	switch {
	case now.Before(PreOpenStart(now)):
		return "PRE-MARKET"
	case now.Before(MarketOpenTime(now)):
		return "OPENING AUCTION"
	case !now.After(MarketCloseTime(now)):
		return "OPEN"
	default:
		return "CLOSED"
	}
}
