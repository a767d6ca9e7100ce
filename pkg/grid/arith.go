package grid

import (
	"fmt"
)

// Sub returns a - b cell by cell. Both fields must share a grid. When both
// carry time they must have the same number of steps and are matched
// position by position, keeping a's time labels; when only one carries
// time the other is broadcast across it.
func Sub(a, b *Field) (*Field, error) {
	if !SameGrid(a.Meta, b.Meta) {
		return nil, fmt.Errorf("%s - %s: %dx%d vs %dx%d: %w",
			a.Name, b.Name, len(a.Lat), len(a.Lon), len(b.Lat), len(b.Lon), ErrGridMismatch)
	}

	var out *Field
	switch {
	case a.HasTime() && b.HasTime():
		if len(a.Time) != len(b.Time) {
			return nil, fmt.Errorf("%s - %s: %d vs %d time steps: %w",
				a.Name, b.Name, len(a.Time), len(b.Time), ErrGridMismatch)
		}
		out = a.withTime(append(a.Time[:0:0], a.Time...))
	case a.HasTime():
		out = a.withTime(append(a.Time[:0:0], a.Time...))
	case b.HasTime():
		out = a.withTime(append(b.Time[:0:0], b.Time...))
	default:
		out = a.withTime(nil)
	}

	n := out.Cells()
	steps := out.Steps()
	out.Data = make([]float64, steps*n)
	for t := 0; t < steps; t++ {
		av := a.Data[stepOffset(a, t):]
		bv := b.Data[stepOffset(b, t):]
		dst := out.Data[t*n : (t+1)*n]
		for c := range dst {
			dst[c] = av[c] - bv[c]
		}
	}
	return out, nil
}

func stepOffset(f *Field, t int) int {
	if !f.HasTime() {
		return 0
	}
	return t * f.Cells()
}
