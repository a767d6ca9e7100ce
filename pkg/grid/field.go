// Package grid holds labeled latitude/longitude/time fields and the pure
// transformations the diagnostics are built from. Fields are never modified
// in place; every operation returns a new Field.
package grid

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/dsvalidate/pkg/cftime"
)

var (
	ErrGridMismatch    = errors.New("grids do not match")
	ErrEmptySelection  = errors.New("time selection is empty")
	ErrNoTimeDimension = errors.New("field has no time dimension")
	ErrUnknownVariable = errors.New("unknown variable")
)

// coordTolerance is how far two coordinate values may drift (in degrees)
// and still be treated as the same grid line.
const coordTolerance = 1e-6

// Meta describes a variable's coordinates without its data
type Meta struct {
	Name     string
	Units    string
	Calendar cftime.Calendar
	// Time is nil when the field has no time dimension. An empty, non-nil
	// slice is a time dimension of length zero.
	Time []cftime.Date
	Lat  []float64
	Lon  []float64
}

// HasTime reports whether the field carries a time dimension
func (m Meta) HasTime() bool { return m.Time != nil }

// Steps is the number of time steps; a field without time has one
func (m Meta) Steps() int {
	if m.Time == nil {
		return 1
	}
	return len(m.Time)
}

// Cells is the number of grid cells in one time step
func (m Meta) Cells() int { return len(m.Lat) * len(m.Lon) }

// Variable is a lazily materialized gridded variable. Read loads time steps
// [lo, hi); variables without a time dimension ignore the range.
type Variable interface {
	Info() Meta
	Read(ctx context.Context, lo, hi int) (*Field, error)
}

// Field is a materialized gridded variable. Data is row-major over
// (time, lat, lon), or (lat, lon) when there is no time dimension. Missing
// values are NaN.
type Field struct {
	Meta
	Data []float64
}

// NewField checks that data matches the coordinate shape
func NewField(meta Meta, data []float64) (*Field, error) {
	if want := meta.Steps() * meta.Cells(); len(data) != want {
		return nil, fmt.Errorf("field %s: have %d values, coordinates need %d", meta.Name, len(data), want)
	}
	return &Field{Meta: meta, Data: data}, nil
}

func (f *Field) Info() Meta { return f.Meta }

// Read returns a copy of time steps [lo, hi)
func (f *Field) Read(_ context.Context, lo, hi int) (*Field, error) {
	if !f.HasTime() {
		return f.clone(), nil
	}
	if lo < 0 || hi > len(f.Time) || lo > hi {
		return nil, fmt.Errorf("field %s: time range [%d, %d) out of bounds (%d steps)", f.Name, lo, hi, len(f.Time))
	}
	n := f.Cells()
	out := f.withTime(append([]cftime.Date{}, f.Time[lo:hi]...))
	out.Data = append(make([]float64, 0, (hi-lo)*n), f.Data[lo*n:hi*n]...)
	return out, nil
}

// At returns the value at time step t, latitude row i, longitude column j
func (f *Field) At(t, i, j int) float64 {
	return f.Data[t*f.Cells()+i*len(f.Lon)+j]
}

// Step returns the values of time step t. The slice aliases the field and
// must not be modified.
func (f *Field) Step(t int) []float64 {
	n := f.Cells()
	return f.Data[t*n : (t+1)*n]
}

func (f *Field) clone() *Field {
	out := f.withTime(f.Time)
	if f.Time != nil {
		out.Time = append([]cftime.Date{}, f.Time...)
	}
	out.Data = append([]float64(nil), f.Data...)
	return out
}

// withTime copies the metadata with a new time axis and no data
func (f *Field) withTime(t []cftime.Date) *Field {
	m := f.Meta
	m.Time = t
	m.Lat = append([]float64(nil), f.Lat...)
	m.Lon = append([]float64(nil), f.Lon...)
	return &Field{Meta: m}
}

// SameGrid reports whether a and b share latitude and longitude coordinates
func SameGrid(a, b Meta) bool {
	return sameCoords(a.Lat, b.Lat) && sameCoords(a.Lon, b.Lon)
}

func sameCoords(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > coordTolerance {
			return false
		}
	}
	return true
}

// Load materializes every time step of v
func Load(ctx context.Context, v Variable) (*Field, error) {
	return v.Read(ctx, 0, v.Info().Steps())
}
