package utils

import (
	"testing"
	"time"
)

func TestMarketOpenClose(t *testing.T) {
	date := time.Date(2026, 2, 19, 12, 0, 0, 0, Madrid)

	open := MarketOpenTime(date)
	if open.Hour() != 9 || open.Minute() != 0 {
		t.Errorf("MarketOpenTime = %v, want 09:00", open)
	}

	close := MarketCloseTime(date)
	if close.Hour() != 17 || close.Minute() != 30 {
		t.Errorf("MarketCloseTime = %v, want 17:30", close)
	}
}

func TestIsMarketOpenAt(t *testing.T) {
	// Wednesday 10:00
	if !IsMarketOpenAt(time.Date(2026, 2, 18, 10, 0, 0, 0, Madrid)) {
		t.Error("Expected market to be open on Wednesday 10:00")
	}
	if IsMarketOpenAt(time.Date(2026, 2, 21, 10, 0, 0, 0, Madrid)) {
		t.Error("Expected market to be closed on Saturday")
	}
	if IsMarketOpenAt(time.Date(2026, 2, 18, 8, 0, 0, 0, Madrid)) {
		t.Error("Expected market to be closed at 8:00")
	}
	if IsMarketOpenAt(time.Date(2026, 2, 18, 18, 0, 0, 0, Madrid)) {
		t.Error("Expected market to be closed at 18:00")
	}
	// Good Friday
	if IsMarketOpenAt(time.Date(2026, 4, 3, 10, 0, 0, 0, Madrid)) {
		t.Error("Expected market to be closed on Good Friday")
	}
}

func TestPrevTradingDay(t *testing.T) {
	// Easter Monday 2026 is a holiday, so Tuesday's previous trading day is Thursday.
	tuesday := time.Date(2026, 4, 7, 0, 0, 0, 0, Madrid)
	prev := PrevTradingDay(tuesday)
	if prev.Weekday() != time.Thursday || prev.Day() != 2 {
		t.Errorf("PrevTradingDay(Tue Apr 7) = %v, want Thursday Apr 2", prev)
	}
}

func TestMarketStatus(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2026, 2, 18, 8, 0, 0, 0, Madrid), "PRE-MARKET"},
		{time.Date(2026, 2, 18, 8, 45, 0, 0, Madrid), "OPENING AUCTION"},
		{time.Date(2026, 2, 18, 12, 0, 0, 0, Madrid), "OPEN"},
		{time.Date(2026, 2, 18, 18, 0, 0, 0, Madrid), "CLOSED"},
		{time.Date(2026, 2, 21, 12, 0, 0, 0, Madrid), "CLOSED (Weekend)"},
		{time.Date(2026, 12, 25, 12, 0, 0, 0, Madrid), "CLOSED (Navidad)"},
	}
	for _, tt := range tests {
		if got := MarketStatus(tt.at); got != tt.want {
			t.Errorf("MarketStatus(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2026, 2, 19, 10, 30, 0, 0, Madrid)
	if got := FormatDate(d); got != "2026-02-19" {
		t.Errorf("FormatDate = %s, want 2026-02-19", got)
	}
	if got := FormatDateTime(d); got != "19/02/2026 10:30" {
		t.Errorf("FormatDateTime = %s, want 19/02/2026 10:30", got)
	}
}
