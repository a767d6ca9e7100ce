package validation

import (
	"math"
	"sort"

	"github.com/chrissnell/dsvalidate/pkg/grid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Percentiles used for robust color scaling
const (
	robustLow  = 0.02
	robustHigh = 0.98
)

// ColorRange picks the color limits for f. Robust scaling takes the 2nd and
// 98th percentiles of the finite values so a few outliers do not wash out
// the map; otherwise the full min/max is used. ok is false when f has no
// finite values.
func ColorRange(f *grid.Field, robust bool) (lo, hi float64, ok bool) {
	vals := make([]float64, 0, len(f.Data))
	for _, v := range f.Data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, 0, false
	}
	if !robust {
		return floats.Min(vals), floats.Max(vals), true
	}
	sort.Float64s(vals)
	return stat.Quantile(robustLow, stat.LinInterp, vals, nil),
		stat.Quantile(robustHigh, stat.LinInterp, vals, nil), true
}

// DivergingRange centers a color range on zero
func DivergingRange(lo, hi float64) (float64, float64) {
	m := math.Max(math.Abs(lo), math.Abs(hi))
	return -m, m
}
