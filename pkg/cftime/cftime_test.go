package cftime

import (
	"math"
	"testing"
)

func TestUnitsDecode(t *testing.T) {
	tests := []struct {
		name     string
		units    string
		calendar string
		value    float64
		expected Date
	}{
		{
			name:     "standard epoch",
			units:    "days since 1850-01-01",
			calendar: "standard",
			value:    0,
			expected: NewDate(1850, 1, 1),
		},
		{
			name:     "standard one year",
			units:    "days since 1850-01-01",
			calendar: "standard",
			value:    365,
			expected: NewDate(1851, 1, 1),
		},
		{
			name:     "gregorian leap day",
			units:    "days since 2000-01-01",
			calendar: "gregorian",
			value:    59,
			expected: NewDate(2000, 2, 29),
		},
		{
			name:     "noleap skips feb 29",
			units:    "days since 2000-01-01",
			calendar: "noleap",
			value:    59,
			expected: NewDate(2000, 3, 1),
		},
		{
			name:     "all_leap always has feb 29",
			units:    "days since 2001-01-01",
			calendar: "all_leap",
			value:    59,
			expected: NewDate(2001, 2, 29),
		},
		{
			name:     "360_day month boundary",
			units:    "days since 2000-01-01",
			calendar: "360_day",
			value:    30,
			expected: NewDate(2000, 2, 1),
		},
		{
			name:     "360_day last day of year",
			units:    "days since 2000-01-01",
			calendar: "360_day",
			value:    359,
			expected: NewDate(2000, 12, 30),
		},
		{
			name:     "360_day year rollover",
			units:    "days since 2000-01-01",
			calendar: "360_day",
			value:    360,
			expected: NewDate(2001, 1, 1),
		},
		{
			name:     "hours with time of day",
			units:    "hours since 2000-01-01 00:00:00",
			calendar: "proleptic_gregorian",
			value:    36,
			expected: Date{Year: 2000, Month: 1, Day: 2, Hour: 12},
		},
		{
			name:     "julian calendar century leap year",
			units:    "days since 1900-02-28",
			calendar: "julian",
			value:    1,
			expected: NewDate(1900, 2, 29),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal, err := ParseCalendar(tt.calendar)
			if err != nil {
				t.Fatalf("ParseCalendar(%q): %v", tt.calendar, err)
			}
			u, err := ParseUnits(tt.units, cal)
			if err != nil {
				t.Fatalf("ParseUnits(%q): %v", tt.units, err)
			}
			got := u.Decode(tt.value)
			if !got.Equal(tt.expected) {
				t.Errorf("Decode(%v) = %s, expected %s", tt.value, got, tt.expected)
			}
			if back := u.Encode(got); math.Abs(back-tt.value) > 1e-6 {
				t.Errorf("Encode(%s) = %v, expected %v", got, back, tt.value)
			}
		})
	}
}

func TestBound(t *testing.T) {
	tests := []struct {
		name   string
		bound  string
		cal    Calendar
		wantLo Date
		wantHi Date
	}{
		{
			name:   "year",
			bound:  "2014",
			cal:    Standard,
			wantLo: NewDate(2014, 1, 1),
			wantHi: Date{Year: 2014, Month: 12, Day: 31, Hour: 23, Minute: 59, Second: 59},
		},
		{
			name:   "year on 360_day",
			bound:  "2014",
			cal:    Day360,
			wantLo: NewDate(2014, 1, 1),
			wantHi: Date{Year: 2014, Month: 12, Day: 30, Hour: 23, Minute: 59, Second: 59},
		},
		{
			name:   "leap february",
			bound:  "2016-02",
			cal:    Standard,
			wantLo: NewDate(2016, 2, 1),
			wantHi: Date{Year: 2016, Month: 2, Day: 29, Hour: 23, Minute: 59, Second: 59},
		},
		{
			name:   "noleap february",
			bound:  "2016-02",
			cal:    NoLeap,
			wantLo: NewDate(2016, 2, 1),
			wantHi: Date{Year: 2016, Month: 2, Day: 28, Hour: 23, Minute: 59, Second: 59},
		},
		{
			name:   "single day",
			bound:  "2020-06-15",
			cal:    Standard,
			wantLo: NewDate(2020, 6, 15),
			wantHi: Date{Year: 2020, Month: 6, Day: 15, Hour: 23, Minute: 59, Second: 59},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, err := Bound(tt.bound, tt.cal)
			if err != nil {
				t.Fatalf("Bound(%q): %v", tt.bound, err)
			}
			if !lo.Equal(tt.wantLo) {
				t.Errorf("lo = %s, expected %s", lo, tt.wantLo)
			}
			if !hi.Equal(tt.wantHi) {
				t.Errorf("hi = %s, expected %s", hi, tt.wantHi)
			}
		})
	}
}

func TestBoundRejectsInvalid(t *testing.T) {
	for _, s := range []string{"", "20x4", "2014-13", "2014-02-30", "2014-01-01-01"} {
		if _, _, err := Bound(s, Standard); err == nil {
			t.Errorf("Bound(%q) should fail", s)
		}
	}
	if _, _, err := Bound("2014-02-30", Day360); err != nil {
		t.Errorf("Feb 30 should be valid on 360_day: %v", err)
	}
}

func TestParseCalendarUnknown(t *testing.T) {
	if _, err := ParseCalendar("lunar"); err == nil {
		t.Error("expected error for unknown calendar")
	}
}

func TestParseUnitsInvalid(t *testing.T) {
	for _, s := range []string{"days", "fortnights since 2000-01-01", "days since yesterday"} {
		if _, err := ParseUnits(s, Standard); err == nil {
			t.Errorf("ParseUnits(%q) should fail", s)
		}
	}
}

func TestDateCompare(t *testing.T) {
	a := NewDate(2000, 1, 1)
	b := Date{Year: 2000, Month: 1, Day: 1, Hour: 12}
	if !a.Before(b) || !b.After(a) || a.Equal(b) {
		t.Errorf("expected %s < %s", a, b)
	}
	if a.Compare(a) != 0 {
		t.Errorf("expected %s == %s", a, a)
	}
}
