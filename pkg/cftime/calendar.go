// Package cftime provides calendar-aware dates for climate model time axes,
// following the CF conventions calendars (standard, noleap, 360_day, ...).
package cftime

import (
	"fmt"
	"math"
	"strings"

	"github.com/soniakeys/meeus/v3/julian"
)

// Calendar identifies one of the CF calendars
type Calendar int

const (
	Standard Calendar = iota
	ProlepticGregorian
	Julian
	NoLeap
	AllLeap
	Day360
)

// gregorianReformJD is the Julian day of 1582-10-15, the first Gregorian date
// of the mixed "standard" calendar.
const gregorianReformJD = 2299160.5

// ParseCalendar maps a CF calendar attribute to a Calendar. An empty string is
// the CF default, "standard".
func ParseCalendar(s string) (Calendar, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "gregorian":
		return Standard, nil
	case "proleptic_gregorian":
		return ProlepticGregorian, nil
	case "julian":
		return Julian, nil
	case "noleap", "365_day":
		return NoLeap, nil
	case "all_leap", "366_day":
		return AllLeap, nil
	case "360_day":
		return Day360, nil
	default:
		return Standard, fmt.Errorf("unsupported calendar %q", s)
	}
}

func (c Calendar) String() string {
	switch c {
	case Standard:
		return "standard"
	case ProlepticGregorian:
		return "proleptic_gregorian"
	case Julian:
		return "julian"
	case NoLeap:
		return "noleap"
	case AllLeap:
		return "all_leap"
	case Day360:
		return "360_day"
	}
	return fmt.Sprintf("Calendar(%d)", int(c))
}

// IsLeap reports whether year y has a leap day in this calendar
func (c Calendar) IsLeap(y int) bool {
	switch c {
	case NoLeap, Day360:
		return false
	case AllLeap:
		return true
	case Julian:
		return julian.LeapYearJulian(y)
	case ProlepticGregorian:
		return julian.LeapYearGregorian(y)
	default:
		if y < 1582 {
			return julian.LeapYearJulian(y)
		}
		return julian.LeapYearGregorian(y)
	}
}

// DaysInMonth returns the length of month m of year y
func (c Calendar) DaysInMonth(y, m int) int {
	if c == Day360 {
		return 30
	}
	switch m {
	case 2:
		if c.IsLeap(y) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// daysInYear is only meaningful for the fixed-length calendars
func (c Calendar) daysInYear() float64 {
	switch c {
	case NoLeap:
		return 365
	case AllLeap:
		return 366
	case Day360:
		return 360
	}
	return 0
}

// ordinal returns a continuous day count for d. For the Gregorian family this
// is the Julian day; fixed-length calendars count days from year zero.
func (c Calendar) ordinal(d Date) float64 {
	frac := float64(d.Hour*3600+d.Minute*60+d.Second) / 86400
	switch c {
	case NoLeap, AllLeap:
		doy := julian.DayOfYear(d.Year, d.Month, d.Day, c == AllLeap)
		return float64(d.Year)*c.daysInYear() + float64(doy-1) + frac
	case Day360:
		return float64(d.Year)*360 + float64((d.Month-1)*30+d.Day-1) + frac
	case Julian:
		return julian.CalendarJulianToJD(d.Year, d.Month, float64(d.Day)+frac)
	case ProlepticGregorian:
		return julian.CalendarGregorianToJD(d.Year, d.Month, float64(d.Day)+frac)
	default:
		jd := julian.CalendarGregorianToJD(d.Year, d.Month, float64(d.Day)+frac)
		if jd < gregorianReformJD {
			jd = julian.CalendarJulianToJD(d.Year, d.Month, float64(d.Day)+frac)
		}
		return jd
	}
}

// fromOrdinal is the inverse of ordinal, rounded to the nearest second
func (c Calendar) fromOrdinal(x float64) Date {
	secs := math.Round(x * 86400)
	x = secs / 86400

	var y, doy int
	var frac float64
	switch c {
	case NoLeap, AllLeap, Day360:
		n := c.daysInYear()
		y = int(math.Floor(x / n))
		rem := x - float64(y)*n
		doy = int(math.Floor(rem)) + 1
		frac = rem - math.Floor(rem)
	default:
		y, doy, frac = c.yearAndDay(x)
	}

	var m, d int
	if c == Day360 {
		m = (doy-1)/30 + 1
		d = (doy-1)%30 + 1
	} else {
		m, d = julian.DayOfYearToCalendar(doy, c.IsLeap(y))
	}

	s := int(math.Round(frac * 86400))
	if s >= 86400 {
		s = 86399
	}
	return Date{Year: y, Month: m, Day: d, Hour: s / 3600, Minute: s % 3600 / 60, Second: s % 60}
}

// yearAndDay splits a Julian day into year and 1-based day of year using the
// forward conversions, so every Gregorian-family calendar shares one inverse.
func (c Calendar) yearAndDay(jd float64) (int, int, float64) {
	y := int(math.Floor((jd-1721423.5)/365.25)) + 1
	start := func(y int) float64 {
		return c.ordinal(Date{Year: y, Month: 1, Day: 1})
	}
	for start(y) > jd {
		y--
	}
	for start(y+1) <= jd {
		y++
	}
	rem := jd - start(y)
	// 1582 lost ten days in the standard calendar
	if c == Standard && y == 1582 && jd >= gregorianReformJD {
		rem += 10
	}
	return y, int(math.Floor(rem)) + 1, rem - math.Floor(rem)
}

// AddDays shifts d by a (possibly fractional) number of days
func (c Calendar) AddDays(d Date, days float64) Date {
	return c.fromOrdinal(c.ordinal(d) + days)
}

// DaysBetween returns b - a in days
func (c Calendar) DaysBetween(a, b Date) float64 {
	return c.ordinal(b) - c.ordinal(a)
}

// Valid reports whether d names a real day in this calendar
func (c Calendar) Valid(d Date) bool {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return false
	}
	if d.Hour < 0 || d.Hour > 23 || d.Minute < 0 || d.Minute > 59 || d.Second < 0 || d.Second > 59 {
		return false
	}
	return d.Day <= c.DaysInMonth(d.Year, d.Month)
}
