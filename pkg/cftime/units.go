package cftime

import (
	"fmt"
	"strings"
)

// Units decodes numeric CF time values such as "days since 1850-01-01"
type Units struct {
	DaysPerStep float64
	Reference   Date
	Calendar    Calendar
}

// ParseUnits parses a CF "<unit> since <date>" string for the given calendar
func ParseUnits(units string, cal Calendar) (Units, error) {
	step, ref, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return Units{}, fmt.Errorf("time units %q are not of the form '<unit> since <date>'", units)
	}

	var days float64
	switch strings.ToLower(strings.TrimSpace(step)) {
	case "days", "day", "d":
		days = 1
	case "hours", "hour", "hrs", "hr", "h":
		days = 1.0 / 24
	case "minutes", "minute", "mins", "min":
		days = 1.0 / 1440
	case "seconds", "second", "secs", "sec", "s":
		days = 1.0 / 86400
	default:
		return Units{}, fmt.Errorf("unsupported time step %q in %q", step, units)
	}

	// drop a trailing UTC offset, which CF time axes almost never carry
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndexAny(ref, "+"); i > 0 {
		ref = strings.TrimSpace(ref[:i])
	}
	refDate, err := ParseDate(ref)
	if err != nil {
		return Units{}, fmt.Errorf("invalid reference date in %q: %w", units, err)
	}
	return Units{DaysPerStep: days, Reference: refDate, Calendar: cal}, nil
}

// Decode converts an offset from the reference date into a Date
func (u Units) Decode(v float64) Date {
	return u.Calendar.AddDays(u.Reference, v*u.DaysPerStep)
}

// DecodeAll converts a whole time coordinate
func (u Units) DecodeAll(vs []float64) []Date {
	out := make([]Date, len(vs))
	for i, v := range vs {
		out[i] = u.Decode(v)
	}
	return out
}

// Encode is the inverse of Decode
func (u Units) Encode(d Date) float64 {
	return u.Calendar.DaysBetween(u.Reference, d) / u.DaysPerStep
}
