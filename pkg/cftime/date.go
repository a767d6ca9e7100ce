package cftime

import (
	"fmt"
	"strconv"
	"strings"
)

// Date is a calendar-agnostic timestamp. Its meaning (and validity) depends on
// the Calendar of the axis it belongs to, so Feb 30 is a legal 360_day date.
type Date struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// NewDate returns midnight of the given day
func NewDate(y, m, d int) Date {
	return Date{Year: y, Month: m, Day: d}
}

// Compare returns -1, 0 or +1 ordering a before, equal to, or after b
func (a Date) Compare(b Date) int {
	av := [6]int{a.Year, a.Month, a.Day, a.Hour, a.Minute, a.Second}
	bv := [6]int{b.Year, b.Month, b.Day, b.Hour, b.Minute, b.Second}
	for i := range av {
		switch {
		case av[i] < bv[i]:
			return -1
		case av[i] > bv[i]:
			return 1
		}
	}
	return 0
}

func (a Date) Before(b Date) bool { return a.Compare(b) < 0 }
func (a Date) After(b Date) bool  { return a.Compare(b) > 0 }
func (a Date) Equal(b Date) bool  { return a.Compare(b) == 0 }

func (a Date) String() string {
	if a.Hour == 0 && a.Minute == 0 && a.Second == 0 {
		return fmt.Sprintf("%04d-%02d-%02d", a.Year, a.Month, a.Day)
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", a.Year, a.Month, a.Day, a.Hour, a.Minute, a.Second)
}

// ParseDate parses "YYYY-M-D" with an optional "HH:MM[:SS]" time part
// separated by a space or "T". Missing time fields are zero.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "Z")
	datePart, timePart, _ := strings.Cut(strings.Replace(s, "T", " ", 1), " ")

	ymd := strings.Split(datePart, "-")
	if len(ymd) != 3 {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	var d Date
	var err error
	if d.Year, err = strconv.Atoi(ymd[0]); err != nil {
		return Date{}, fmt.Errorf("invalid year in %q: %w", s, err)
	}
	if d.Month, err = strconv.Atoi(ymd[1]); err != nil {
		return Date{}, fmt.Errorf("invalid month in %q: %w", s, err)
	}
	if d.Day, err = strconv.Atoi(ymd[2]); err != nil {
		return Date{}, fmt.Errorf("invalid day in %q: %w", s, err)
	}

	timePart = strings.TrimSpace(timePart)
	if timePart == "" {
		return d, nil
	}
	hms := strings.Split(timePart, ":")
	fields := []*int{&d.Hour, &d.Minute, &d.Second}
	for i, f := range hms {
		if i >= len(fields) {
			return Date{}, fmt.Errorf("invalid time in %q", s)
		}
		// fractional seconds are truncated
		f, _, _ = strings.Cut(f, ".")
		if *fields[i], err = strconv.Atoi(f); err != nil {
			return Date{}, fmt.Errorf("invalid time in %q: %w", s, err)
		}
	}
	return d, nil
}

// Bound resolves a partial date ("2014", "2014-06" or "2014-06-15") to the
// first and last instants it covers in calendar c. Using lo of a start string
// and hi of an end string gives an inclusive slice over whole days.
func Bound(s string, c Calendar) (lo, hi Date, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	nums := make([]int, 0, 3)
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, Date{}, fmt.Errorf("invalid date bound %q", s)
		}
		nums = append(nums, n)
	}

	switch len(nums) {
	case 1:
		lo = Date{Year: nums[0], Month: 1, Day: 1}
		hi = Date{Year: nums[0], Month: 12, Day: c.DaysInMonth(nums[0], 12)}
	case 2:
		lo = Date{Year: nums[0], Month: nums[1], Day: 1}
		if nums[1] < 1 || nums[1] > 12 {
			return Date{}, Date{}, fmt.Errorf("invalid month in date bound %q", s)
		}
		hi = Date{Year: nums[0], Month: nums[1], Day: c.DaysInMonth(nums[0], nums[1])}
	case 3:
		lo = Date{Year: nums[0], Month: nums[1], Day: nums[2]}
		hi = lo
	default:
		return Date{}, Date{}, fmt.Errorf("invalid date bound %q", s)
	}
	if !c.Valid(lo) || !c.Valid(hi) {
		return Date{}, Date{}, fmt.Errorf("date bound %q does not exist in the %s calendar", s, c)
	}
	hi.Hour, hi.Minute, hi.Second = 23, 59, 59
	return lo, hi, nil
}
