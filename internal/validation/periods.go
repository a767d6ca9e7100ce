package validation

import (
	"fmt"

	"github.com/chrissnell/dsvalidate/pkg/cftime"
)

// HistoricalLabel is the conventional label of the historical period
const HistoricalLabel = "hist"

// Period is a named closed time window. Start and End are partial dates
// such as "1995" or "2014-12-31".
type Period struct {
	Label string
	Start string
	End   string
}

// Periods is an ordered list of windows. Windows may overlap.
type Periods []Period

// NewPeriods validates labels and that each start does not fall after its end
func NewPeriods(ps ...Period) (Periods, error) {
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		if p.Label == "" {
			return nil, fmt.Errorf("period %s..%s has no label", p.Start, p.End)
		}
		if seen[p.Label] {
			return nil, fmt.Errorf("period %q is defined twice", p.Label)
		}
		seen[p.Label] = true

		// all_leap accepts every Gregorian month/day, so bounds can be ordered
		// before the dataset calendar is known
		lo, _, err := cftime.Bound(p.Start, cftime.AllLeap)
		if err != nil {
			return nil, fmt.Errorf("period %q start: %w", p.Label, err)
		}
		_, hi, err := cftime.Bound(p.End, cftime.AllLeap)
		if err != nil {
			return nil, fmt.Errorf("period %q end: %w", p.Label, err)
		}
		if hi.Before(lo) {
			return nil, fmt.Errorf("period %q starts (%s) after it ends (%s)", p.Label, p.Start, p.End)
		}
	}
	return Periods(ps), nil
}

// Lookup finds a period by label
func (ps Periods) Lookup(label string) (Period, error) {
	for _, p := range ps {
		if p.Label == label {
			return p, nil
		}
	}
	return Period{}, fmt.Errorf("period %q: %w", label, ErrUnknownPeriod)
}
