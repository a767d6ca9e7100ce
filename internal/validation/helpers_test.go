package validation

import (
	"testing"

	"github.com/chrissnell/dsvalidate/pkg/cftime"
	"github.com/chrissnell/dsvalidate/pkg/grid"
)

// noleapDaily builds a daily noleap field on a 2x3 grid starting at start.
func noleapDaily(t *testing.T, name string, start cftime.Date, days int, value func(step, cell int) float64) *grid.Field {
	t.Helper()
	times := make([]cftime.Date, days)
	for i := range times {
		times[i] = cftime.NoLeap.AddDays(start, float64(i))
	}
	const cells = 6
	data := make([]float64, days*cells)
	for s := 0; s < days; s++ {
		for c := 0; c < cells; c++ {
			data[s*cells+c] = value(s, c)
		}
	}
	f, err := grid.NewField(grid.Meta{
		Name:     name,
		Units:    "K",
		Calendar: cftime.NoLeap,
		Time:     times,
		Lat:      []float64{-30, 30},
		Lon:      []float64{0, 120, 240},
	}, data)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	return f
}

func dataset(name string, fields ...*grid.Field) *grid.Dataset {
	vars := make([]grid.Variable, len(fields))
	for i, f := range fields {
		vars[i] = f
	}
	return grid.NewDataset(name, vars...)
}

func mustPeriods(t *testing.T, ps ...Period) Periods {
	t.Helper()
	out, err := NewPeriods(ps...)
	if err != nil {
		t.Fatalf("NewPeriods: %v", err)
	}
	return out
}
