// Package market_hours provides the NYSE trading calendar.
package market_hours

import (
	"sync"
	"time"
)

// Calendar answers trading-day questions for the NYSE.
//
// Holiday rules: weekends, New Year's Day, Martin Luther King Jr. Day,
// Washington's Birthday, Good Friday, Memorial Day, Juneteenth (since 2022),
// Independence Day, Labor Day, Thanksgiving and Christmas, with Saturday
// holidays observed the preceding Friday and Sunday holidays the following
// Monday. Columbus Day and Veterans Day are regular trading days. Special
// full-day closures (national days of mourning, weather) are listed
// explicitly.
type Calendar struct {
	mu     sync.Mutex
	byYear map[int]map[int]bool // year -> yearday -> closed
}

// NewCalendar creates a NYSE calendar.
func NewCalendar() *Calendar {
	return &Calendar{byYear: make(map[int]map[int]bool)}
}

// specialClosures are unscheduled full-day closures.
var specialClosures = []string{
	"2012-10-29", // Hurricane Sandy
	"2012-10-30", // Hurricane Sandy
	"2018-12-05", // National day of mourning, George H. W. Bush
	"2025-01-09", // National day of mourning, Jimmy Carter
}

// IsTradingDay reports whether the NYSE is open on the given date.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidaySet(date.Year())[date.YearDay()]
}

// TradingDays returns the number of NYSE trading days in [start, end).
func (c *Calendar) TradingDays(start, end time.Time) int {
	start = midnightUTC(start)
	end = midnightUTC(end)

	count := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			count++
		}
	}
	return count
}

// NextTradingDay returns the first trading day strictly after the given date.
func (c *Calendar) NextTradingDay(date time.Time) time.Time {
	d := midnightUTC(date).AddDate(0, 0, 1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// holidaySet returns the cached closure set for a year, keyed by year day.
func (c *Calendar) holidaySet(year int) map[int]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if set, ok := c.byYear[year]; ok {
		return set
	}

	set := make(map[int]bool)
	add := func(t time.Time) {
		if t.Year() == year {
			set[t.YearDay()] = true
		}
	}

	// Fixed-date holidays with weekend observation
	add(observed(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)))
	add(observed(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)))
	add(observed(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)))
	if year >= 2022 {
		add(observed(time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC)))
	}

	// Floating holidays
	add(nthWeekday(year, time.January, time.Monday, 3))    // MLK Day
	add(nthWeekday(year, time.February, time.Monday, 3))   // Washington's Birthday
	add(lastWeekday(year, time.May, time.Monday))          // Memorial Day
	add(nthWeekday(year, time.September, time.Monday, 1))  // Labor Day
	add(nthWeekday(year, time.November, time.Thursday, 4)) // Thanksgiving

	// Good Friday: two days before Easter Sunday
	add(easterSunday(year).AddDate(0, 0, -2))

	for _, raw := range specialClosures {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			add(t)
		}
	}

	c.byYear[year] = set
	return set
}

// observed shifts Saturday holidays to Friday and Sunday holidays to Monday.
func observed(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	}
	return t
}

// nthWeekday returns the nth given weekday of a month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the final given weekday of a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(t.Weekday()) - int(weekday) + 7) % 7
	return t.AddDate(0, 0, -offset)
}

// easterSunday computes Easter via the anonymous Gregorian algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
