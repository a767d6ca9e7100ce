package zarr

import (
	"context"
	"fmt"
	"math"

	"github.com/chrissnell/dsvalidate/pkg/cftime"
	"github.com/chrissnell/dsvalidate/pkg/grid"
)

var (
	latNames  = []string{"lat", "latitude"}
	lonNames  = []string{"lon", "longitude"}
	timeNames = []string{"time"}
)

// Open reads the hierarchy metadata of s and returns its gridded data
// variables. Coordinates are loaded eagerly; data values are read on
// demand. Arrays not laid out as (time, lat, lon) or (lat, lon) are skipped.
func Open(ctx context.Context, s Store, name string) (*grid.Dataset, error) {
	h, err := readHierarchy(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s, err)
	}

	latName := findCoord(h, latNames)
	lonName := findCoord(h, lonNames)
	if latName == "" || lonName == "" {
		return nil, fmt.Errorf("opening %s: no latitude/longitude coordinates", s)
	}
	lat, err := readCoord(ctx, s, h, latName)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s, err)
	}
	lon, err := readCoord(ctx, s, h, lonName)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s, err)
	}

	var (
		times    []cftime.Date
		cal      = cftime.Standard
		timeName = findCoord(h, timeNames)
	)
	if timeName != "" {
		times, cal, err = readTime(ctx, s, h, timeName)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", s, err)
		}
	}

	ds := grid.NewDataset(name)
	for vname, m := range h.arrays {
		attrs := h.attrs[vname]
		dims := attrs.Dims()

		meta := grid.Meta{
			Name:     vname,
			Units:    attrs.Text("units"),
			Calendar: cal,
			Lat:      lat,
			Lon:      lon,
		}
		switch {
		case timeName != "" && len(dims) == 3 && dims[0] == timeName && dims[1] == latName && dims[2] == lonName:
			meta.Time = times
		case len(dims) == 2 && dims[0] == latName && dims[1] == lonName:
		default:
			continue
		}

		arr, err := newArray(s, vname, m)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", s, err)
		}
		if want := shapeOf(meta); !equalInts(arr.meta.Shape, want) {
			return nil, fmt.Errorf("opening %s: variable %s has shape %v, coordinates give %v", s, vname, arr.meta.Shape, want)
		}
		ds.Add(&Variable{meta: meta, arr: arr, cf: newCFDecoder(attrs, arr)})
	}
	return ds, nil
}

func findCoord(h *hierarchy, names []string) string {
	for _, n := range names {
		if _, ok := h.arrays[n]; ok {
			return n
		}
	}
	return ""
}

func readCoord(ctx context.Context, s Store, h *hierarchy, name string) ([]float64, error) {
	arr, err := newArray(s, name, h.arrays[name])
	if err != nil {
		return nil, err
	}
	if len(arr.meta.Shape) != 1 {
		return nil, fmt.Errorf("coordinate %s has %d dimensions", name, len(arr.meta.Shape))
	}
	vals, err := arr.readAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading coordinate %s: %w", name, err)
	}
	newCFDecoder(h.attrs[name], arr).apply(vals)
	return vals, nil
}

func readTime(ctx context.Context, s Store, h *hierarchy, name string) ([]cftime.Date, cftime.Calendar, error) {
	attrs := h.attrs[name]
	cal, err := cftime.ParseCalendar(attrs.Text("calendar"))
	if err != nil {
		return nil, cal, fmt.Errorf("time coordinate: %w", err)
	}
	units, err := cftime.ParseUnits(attrs.Text("units"), cal)
	if err != nil {
		return nil, cal, fmt.Errorf("time coordinate: %w", err)
	}
	vals, err := readCoord(ctx, s, h, name)
	if err != nil {
		return nil, cal, err
	}
	for i, v := range vals {
		if math.IsNaN(v) {
			return nil, cal, fmt.Errorf("time coordinate has a missing value at index %d", i)
		}
	}
	return units.DecodeAll(vals), cal, nil
}

func shapeOf(m grid.Meta) []int {
	if m.HasTime() {
		return []int{len(m.Time), len(m.Lat), len(m.Lon)}
	}
	return []int{len(m.Lat), len(m.Lon)}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// cfDecoder masks fill values and applies scale_factor/add_offset. Markers
// are held in the array's storage precision.
type cfDecoder struct {
	missing []float64
	scale   float64
	offset  float64
}

func newCFDecoder(attrs Attrs, arr *array) cfDecoder {
	d := cfDecoder{scale: 1}
	if arr.hasFill && !math.IsNaN(arr.fill) {
		d.missing = append(d.missing, arr.fill)
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrs.Float(key); ok && !math.IsNaN(v) {
			d.missing = append(d.missing, arr.dt.cast(v))
		}
	}
	if v, ok := attrs.Float("scale_factor"); ok {
		d.scale = v
	}
	if v, ok := attrs.Float("add_offset"); ok {
		d.offset = v
	}
	return d
}

func (d cfDecoder) apply(vals []float64) {
	for i, v := range vals {
		for _, m := range d.missing {
			if v == m {
				v = math.NaN()
				break
			}
		}
		vals[i] = v*d.scale + d.offset
	}
}

// Variable is a lazily read gridded variable of a zarr store
type Variable struct {
	meta grid.Meta
	arr  *array
	cf   cfDecoder
}

func (v *Variable) Info() grid.Meta { return v.meta }

// Read loads time steps [lo, hi) from the store
func (v *Variable) Read(ctx context.Context, lo, hi int) (*grid.Field, error) {
	meta := v.meta
	meta.Lat = append([]float64(nil), v.meta.Lat...)
	meta.Lon = append([]float64(nil), v.meta.Lon...)

	from := []int{0, 0}
	to := []int{len(meta.Lat), len(meta.Lon)}
	if meta.HasTime() {
		if lo < 0 || hi > len(meta.Time) || lo > hi {
			return nil, fmt.Errorf("variable %s: time range [%d, %d) out of bounds (%d steps)", meta.Name, lo, hi, len(meta.Time))
		}
		meta.Time = append([]cftime.Date{}, v.meta.Time[lo:hi]...)
		from = append([]int{lo}, from...)
		to = append([]int{hi}, to...)
	}

	vals, err := v.arr.read(ctx, from, to)
	if err != nil {
		return nil, err
	}
	v.cf.apply(vals)
	return grid.NewField(meta, vals)
}
