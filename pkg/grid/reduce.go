package grid

import (
	"fmt"
	"math"

	"github.com/chrissnell/dsvalidate/pkg/cftime"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Reduction collapses a series of values into one
type Reduction int

const (
	ReduceMean Reduction = iota
	ReduceMax
	ReduceMin
)

func (r Reduction) String() string {
	switch r {
	case ReduceMean:
		return "mean"
	case ReduceMax:
		return "max"
	case ReduceMin:
		return "min"
	}
	return fmt.Sprintf("Reduction(%d)", int(r))
}

// apply skips NaN values; a series with no valid values reduces to NaN
func (r Reduction) apply(vals []float64) (float64, error) {
	if len(vals) == 0 {
		return math.NaN(), nil
	}
	switch r {
	case ReduceMean:
		return stat.Mean(vals, nil), nil
	case ReduceMax:
		return floats.Max(vals), nil
	case ReduceMin:
		return floats.Min(vals), nil
	}
	return math.NaN(), fmt.Errorf("unsupported reduction %s", r)
}

// ReduceTime collapses the time dimension, returning a (lat, lon) field
func (f *Field) ReduceTime(r Reduction) (*Field, error) {
	if !f.HasTime() {
		return nil, fmt.Errorf("reducing %s over time: %w", f.Name, ErrNoTimeDimension)
	}
	if len(f.Time) == 0 {
		return nil, fmt.Errorf("reducing %s over time: %w", f.Name, ErrEmptySelection)
	}
	out := f.withTime(nil)
	out.Data = make([]float64, f.Cells())
	if err := f.reduceSteps(r, 0, len(f.Time), out.Data); err != nil {
		return nil, fmt.Errorf("reducing %s over time: %w", f.Name, err)
	}
	return out, nil
}

// reduceSteps reduces time steps [lo, hi) cell by cell into dst
func (f *Field) reduceSteps(r Reduction, lo, hi int, dst []float64) error {
	n := f.Cells()
	buf := make([]float64, 0, hi-lo)
	for c := 0; c < n; c++ {
		buf = buf[:0]
		for t := lo; t < hi; t++ {
			if v := f.Data[t*n+c]; !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		v, err := r.apply(buf)
		if err != nil {
			return err
		}
		dst[c] = v
	}
	return nil
}

// AnnualMean averages each calendar year's time steps. The result has one
// time step per year, stamped January 1.
func (f *Field) AnnualMean() (*Field, error) {
	if !f.HasTime() {
		return nil, fmt.Errorf("annual mean of %s: %w", f.Name, ErrNoTimeDimension)
	}

	var years []cftime.Date
	var bounds [][2]int
	for t := 0; t < len(f.Time); {
		y := f.Time[t].Year
		end := t
		for end < len(f.Time) && f.Time[end].Year == y {
			end++
		}
		years = append(years, cftime.NewDate(y, 1, 1))
		bounds = append(bounds, [2]int{t, end})
		t = end
	}
	if years == nil {
		years = []cftime.Date{}
	}

	n := f.Cells()
	out := f.withTime(years)
	out.Data = make([]float64, len(years)*n)
	for k, b := range bounds {
		if err := f.reduceSteps(ReduceMean, b[0], b[1], out.Data[k*n:(k+1)*n]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
