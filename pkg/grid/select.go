package grid

import (
	"context"
	"fmt"
	"sort"

	"github.com/chrissnell/dsvalidate/pkg/cftime"
)

// TimeRange returns the half-open index range of times falling inside the
// closed interval [lo, hi]. times must be sorted ascending.
func TimeRange(times []cftime.Date, lo, hi cftime.Date) (int, int) {
	i := sort.Search(len(times), func(k int) bool { return !times[k].Before(lo) })
	j := sort.Search(len(times), func(k int) bool { return times[k].After(hi) })
	if j < i {
		j = i
	}
	return i, j
}

// Select materializes the time steps of v between the partial dates start and
// end, inclusive on both ends. A window containing no time steps is an error
// rather than an empty field.
func Select(ctx context.Context, v Variable, start, end string) (*Field, error) {
	meta := v.Info()
	if !meta.HasTime() {
		return nil, fmt.Errorf("selecting %s..%s from %s: %w", start, end, meta.Name, ErrNoTimeDimension)
	}

	lo, _, err := cftime.Bound(start, meta.Calendar)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", meta.Name, err)
	}
	_, hi, err := cftime.Bound(end, meta.Calendar)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", meta.Name, err)
	}
	if hi.Before(lo) {
		return nil, fmt.Errorf("selecting from %s: start %s is after end %s", meta.Name, start, end)
	}

	i, j := TimeRange(meta.Time, lo, hi)
	if i == j {
		return nil, fmt.Errorf("selecting %s..%s from %s: %w", start, end, meta.Name, ErrEmptySelection)
	}
	return v.Read(ctx, i, j)
}
