package grid

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/dsvalidate/pkg/cftime"
)

// dailyField builds a 2x2 field with one step per day starting at start.
// Each cell value is value(t, cell).
func dailyField(t *testing.T, start cftime.Date, cal cftime.Calendar, days int, value func(step, cell int) float64) *Field {
	t.Helper()
	times := make([]cftime.Date, days)
	for i := range times {
		times[i] = cal.AddDays(start, float64(i))
	}
	data := make([]float64, days*4)
	for s := 0; s < days; s++ {
		for c := 0; c < 4; c++ {
			data[s*4+c] = value(s, c)
		}
	}
	f, err := NewField(Meta{
		Name:     "tasmax",
		Units:    "K",
		Calendar: cal,
		Time:     times,
		Lat:      []float64{-45, 45},
		Lon:      []float64{0, 180},
	}, data)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	return f
}

func TestNewFieldShapeMismatch(t *testing.T) {
	_, err := NewField(Meta{Name: "pr", Lat: []float64{0, 1}, Lon: []float64{0}}, []float64{1, 2, 3})
	if err == nil {
		t.Fatal("expected shape error")
	}
}

func TestSelectInclusiveBounds(t *testing.T) {
	// days 2019-12-31 .. 2021-01-01 on noleap; value is the step index
	f := dailyField(t, cftime.NewDate(2019, 12, 31), cftime.NoLeap, 367, func(step, _ int) float64 {
		return float64(step)
	})

	got, err := Select(context.Background(), f, "2020", "2020")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got.Time) != 365 {
		t.Fatalf("expected 365 steps, got %d", len(got.Time))
	}
	if !got.Time[0].Equal(cftime.NewDate(2020, 1, 1)) {
		t.Errorf("first step = %s, expected 2020-01-01", got.Time[0])
	}
	if !got.Time[364].Equal(cftime.NewDate(2020, 12, 31)) {
		t.Errorf("last step = %s, expected 2020-12-31", got.Time[364])
	}
	if got.At(0, 0, 0) != 1 {
		t.Errorf("first value = %v, expected 1", got.At(0, 0, 0))
	}

	single, err := Select(context.Background(), f, "2020-03-01", "2020-03-01")
	if err != nil {
		t.Fatalf("Select single day: %v", err)
	}
	if len(single.Time) != 1 {
		t.Errorf("single-day window should hold 1 step, got %d", len(single.Time))
	}
}

func TestSelectEmptyWindow(t *testing.T) {
	f := dailyField(t, cftime.NewDate(2000, 1, 1), cftime.Standard, 10, func(_, _ int) float64 { return 1 })
	_, err := Select(context.Background(), f, "2050", "2060")
	if !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
}

func TestSelectReversedWindow(t *testing.T) {
	f := dailyField(t, cftime.NewDate(2000, 1, 1), cftime.Standard, 10, func(_, _ int) float64 { return 1 })
	if _, err := Select(context.Background(), f, "2001", "2000"); err == nil {
		t.Fatal("expected error for start after end")
	}
}

func TestReduceTime(t *testing.T) {
	// cell 0: 1,2,3  cell 1: NaN,5,NaN  cell 2: all NaN  cell 3: -1,-2,-3
	vals := [][]float64{
		{1, math.NaN(), math.NaN(), -1},
		{2, 5, math.NaN(), -2},
		{3, math.NaN(), math.NaN(), -3},
	}
	f := dailyField(t, cftime.NewDate(2000, 1, 1), cftime.Standard, 3, func(step, cell int) float64 {
		return vals[step][cell]
	})

	tests := []struct {
		name     string
		r        Reduction
		expected []float64
	}{
		{"mean", ReduceMean, []float64{2, 5, math.NaN(), -2}},
		{"max", ReduceMax, []float64{3, 5, math.NaN(), -1}},
		{"min", ReduceMin, []float64{1, 5, math.NaN(), -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.ReduceTime(tt.r)
			if err != nil {
				t.Fatalf("ReduceTime: %v", err)
			}
			if got.HasTime() {
				t.Fatal("reduced field should have no time dimension")
			}
			for c, want := range tt.expected {
				v := got.Data[c]
				if math.IsNaN(want) {
					if !math.IsNaN(v) {
						t.Errorf("cell %d: expected NaN, got %v", c, v)
					}
					continue
				}
				if math.Abs(v-want) > 1e-12 {
					t.Errorf("cell %d: expected %v, got %v", c, want, v)
				}
			}
		})
	}

	if _, err := got2D(t, f).ReduceTime(ReduceMean); !errors.Is(err, ErrNoTimeDimension) {
		t.Errorf("expected ErrNoTimeDimension, got %v", err)
	}
}

func got2D(t *testing.T, f *Field) *Field {
	t.Helper()
	r, err := f.ReduceTime(ReduceMean)
	if err != nil {
		t.Fatalf("ReduceTime: %v", err)
	}
	return r
}

func TestAnnualMean(t *testing.T) {
	// 360_day calendar, two full years; value is 10 in year one and 20 in year two
	f := dailyField(t, cftime.NewDate(2000, 1, 1), cftime.Day360, 720, func(step, _ int) float64 {
		if step < 360 {
			return 10
		}
		return 20
	})
	got, err := f.AnnualMean()
	if err != nil {
		t.Fatalf("AnnualMean: %v", err)
	}
	if len(got.Time) != 2 {
		t.Fatalf("expected 2 years, got %d", len(got.Time))
	}
	if got.Time[0].Year != 2000 || got.Time[1].Year != 2001 {
		t.Errorf("unexpected years %v", got.Time)
	}
	for c := 0; c < 4; c++ {
		if got.At(0, c/2, c%2) != 10 || got.At(1, c/2, c%2) != 20 {
			t.Errorf("cell %d: expected 10/20, got %v/%v", c, got.At(0, c/2, c%2), got.At(1, c/2, c%2))
		}
	}
}

func TestSub(t *testing.T) {
	base := dailyField(t, cftime.NewDate(2000, 1, 1), cftime.Standard, 3, func(step, cell int) float64 {
		return float64(step*10 + cell)
	})
	shifted := dailyField(t, cftime.NewDate(2080, 1, 1), cftime.Standard, 3, func(step, cell int) float64 {
		return float64(step*10+cell) + 2.5
	})

	diff, err := Sub(shifted, base)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if !diff.Time[0].Equal(cftime.NewDate(2080, 1, 1)) {
		t.Errorf("difference should keep the minuend's time labels, got %s", diff.Time[0])
	}
	for i, v := range diff.Data {
		if v != 2.5 {
			t.Fatalf("value %d: expected 2.5, got %v", i, v)
		}
	}

	// broadcasting a 2-D field across time
	mean := got2D(t, base)
	b, err := Sub(base, mean)
	if err != nil {
		t.Fatalf("Sub broadcast: %v", err)
	}
	if len(b.Time) != 3 || b.At(0, 0, 0) != -10 || b.At(2, 0, 0) != 10 {
		t.Errorf("unexpected broadcast result %v", b.Data)
	}
}

func TestSubMismatch(t *testing.T) {
	a := dailyField(t, cftime.NewDate(2000, 1, 1), cftime.Standard, 3, func(_, _ int) float64 { return 1 })
	b := dailyField(t, cftime.NewDate(2000, 1, 1), cftime.Standard, 4, func(_, _ int) float64 { return 1 })
	if _, err := Sub(a, b); !errors.Is(err, ErrGridMismatch) {
		t.Errorf("expected ErrGridMismatch for time length, got %v", err)
	}

	c := dailyField(t, cftime.NewDate(2000, 1, 1), cftime.Standard, 3, func(_, _ int) float64 { return 1 })
	c.Lat = []float64{-40, 40}
	if _, err := Sub(a, c); !errors.Is(err, ErrGridMismatch) {
		t.Errorf("expected ErrGridMismatch for latitude, got %v", err)
	}
}

func TestDatasetLookup(t *testing.T) {
	f := dailyField(t, cftime.NewDate(2000, 1, 1), cftime.Standard, 1, func(_, _ int) float64 { return 1 })
	ds := NewDataset("bc-hist", f)
	if _, err := ds.Variable("tasmax"); err != nil {
		t.Errorf("Variable(tasmax): %v", err)
	}
	if _, err := ds.Variable("pr"); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("expected ErrUnknownVariable, got %v", err)
	}
	if names := ds.Names(); len(names) != 1 || names[0] != "tasmax" {
		t.Errorf("Names() = %v", names)
	}
}

func TestReadCopies(t *testing.T) {
	f := dailyField(t, cftime.NewDate(2000, 1, 1), cftime.Standard, 2, func(_, _ int) float64 { return 1 })
	r, err := f.Read(context.Background(), 0, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	r.Data[0] = 99
	if f.Data[0] != 1 {
		t.Error("Read must not alias the source data")
	}
	if _, err := f.Read(context.Background(), 1, 3); err == nil {
		t.Error("expected out of range error")
	}
}
