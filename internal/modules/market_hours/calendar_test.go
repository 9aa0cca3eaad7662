package market_hours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTradingDays2018(t *testing.T) {
	cal := NewCalendar()

	// 2018 had 252 scheduled sessions minus the Dec 5 mourning closure.
	got := cal.TradingDays(date("2018-01-01"), date("2019-01-01"))
	assert.Equal(t, 251, got)
}

func TestTradingDays2019(t *testing.T) {
	cal := NewCalendar()

	got := cal.TradingDays(date("2019-01-01"), date("2020-01-01"))
	assert.Equal(t, 252, got)
}

func TestIsTradingDay(t *testing.T) {
	cal := NewCalendar()

	cases := []struct {
		name string
		day  string
		open bool
	}{
		{"regular weekday", "2019-03-06", true},
		{"saturday", "2019-03-09", false},
		{"new years day", "2019-01-01", false},
		{"mlk day", "2019-01-21", false},
		{"good friday", "2019-04-19", false},
		{"memorial day", "2019-05-27", false},
		{"independence day", "2019-07-04", false},
		{"labor day", "2019-09-02", false},
		{"thanksgiving", "2019-11-28", false},
		{"christmas", "2019-12-25", false},
		{"columbus day trades", "2019-10-14", true},
		{"veterans day trades", "2019-11-11", true},
		{"bush mourning closure", "2018-12-05", false},
		{"juneteenth before 2022 trades", "2019-06-19", true},
		{"juneteenth 2023", "2023-06-19", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.open, cal.IsTradingDay(date(tc.day)))
		})
	}
}

func TestObservedShifts(t *testing.T) {
	cal := NewCalendar()

	// July 4 2020 fell on a Saturday; the NYSE closed Friday July 3.
	assert.False(t, cal.IsTradingDay(date("2020-07-03")))

	// January 1 2017 fell on a Sunday; Monday January 2 was the holiday.
	assert.False(t, cal.IsTradingDay(date("2017-01-02")))
	assert.True(t, cal.IsTradingDay(date("2017-01-03")))
}

func TestNextTradingDay(t *testing.T) {
	cal := NewCalendar()

	// Friday before MLK weekend skips to Tuesday.
	got := cal.NextTradingDay(date("2019-01-18"))
	assert.Equal(t, date("2019-01-22"), got)
}

func TestEasterSunday(t *testing.T) {
	assert.Equal(t, date("2018-04-01"), easterSunday(2018))
	assert.Equal(t, date("2019-04-21"), easterSunday(2019))
	assert.Equal(t, date("2024-03-31"), easterSunday(2024))
}
