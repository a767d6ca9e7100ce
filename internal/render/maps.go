package render

import (
	"fmt"
	"math"

	"github.com/chrissnell/dsvalidate/internal/validation"
	"github.com/chrissnell/dsvalidate/pkg/grid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// paletteSize is the number of discrete colors in a map palette
const paletteSize = 255

// fieldGrid adapts a single time step of a field to plotter.GridXYZ.
// Columns are longitudes and rows latitudes.
type fieldGrid struct {
	f    *grid.Field
	step int
}

func (g fieldGrid) Dims() (c, r int)   { return len(g.f.Lon), len(g.f.Lat) }
func (g fieldGrid) Z(c, r int) float64 { return g.f.At(g.step, r, c) }
func (g fieldGrid) X(c int) float64    { return g.f.Lon[c] }
func (g fieldGrid) Y(r int) float64    { return g.f.Lat[r] }

// colorMap returns a fresh color map for the family, scaled to [lo, hi]
func colorMap(cm validation.Colormap, lo, hi float64) palette.ColorMap {
	var m palette.ColorMap
	switch cm {
	case validation.ColormapDiverging:
		m = moreland.SmoothBlueRed()
	default:
		m = moreland.Kindlmann()
	}
	if hi <= lo {
		hi = lo + 1
	}
	m.SetMax(hi)
	m.SetMin(lo)
	return m
}

// mapPanel draws a 2-D field as a heat map clipped to [lo, hi]. Values
// outside the range take the end colors; missing cells stay blank.
func mapPanel(f *grid.Field, title string, cm validation.Colormap, lo, hi float64) (*plot.Plot, error) {
	if len(f.Lat) < 2 || len(f.Lon) < 2 {
		return nil, fmt.Errorf("map of %s needs at least a 2x2 grid, have %dx%d", f.Name, len(f.Lat), len(f.Lon))
	}
	if f.HasTime() {
		return nil, fmt.Errorf("map of %s: field still has %d time steps", f.Name, len(f.Time))
	}

	pal := colorMap(cm, lo, hi).Palette(paletteSize)
	colors := pal.Colors()

	h := plotter.NewHeatMap(fieldGrid{f: f}, pal)
	h.Min, h.Max = lo, hi
	if hi <= lo {
		h.Max = lo + 1
	}
	h.Underflow = colors[0]
	h.Overflow = colors[len(colors)-1]

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "lon"
	p.Y.Label.Text = "lat"
	p.Add(h)
	return p, nil
}

// colorbar draws a horizontal color scale for [lo, hi]
func colorbar(label string, cm validation.Colormap, lo, hi float64) *plot.Plot {
	p := plot.New()
	p.HideY()
	p.X.Label.Text = label
	p.Add(&plotter.ColorBar{ColorMap: colorMap(cm, lo, hi)})
	return p
}

// displayField collapses a leftover time dimension to its mean for drawing
func displayField(f *grid.Field) (*grid.Field, error) {
	if !f.HasTime() {
		return f, nil
	}
	return f.ReduceTime(grid.ReduceMean)
}

func finiteRange(lo, hi float64) bool {
	return !math.IsNaN(lo) && !math.IsNaN(hi) && !math.IsInf(lo, 0) && !math.IsInf(hi, 0)
}

// ClimoFigure lays out one map per period with a shared colorbar beneath
func ClimoFigure(res *validation.ClimoResult, climoColors validation.Colormap) (*Figure, error) {
	if !finiteRange(res.VMin, res.VMax) {
		return nil, fmt.Errorf("climatology color range %v..%v is not finite", res.VMin, res.VMax)
	}

	cells := make([]*plot.Plot, res.Panels)
	for _, s := range res.Summaries {
		if s.Panel < 0 || s.Panel >= res.Panels {
			return nil, fmt.Errorf("period %s assigned to panel %d of %d", s.Label, s.Panel, res.Panels)
		}
		p, err := mapPanel(s.Field, s.Title, climoColors, res.VMin, res.VMax)
		if err != nil {
			return nil, fmt.Errorf("period %s: %w", s.Label, err)
		}
		cells[s.Panel] = p
	}

	return &Figure{
		Width:  vg.Length(4*res.Panels) * vg.Inch,
		Height: 6 * vg.Inch,
		Rows: []Row{
			{Height: 0.8, Cells: cells},
			{Height: 0.2, Inset: 0.2, Cells: []*plot.Plot{colorbar(res.ColorbarLabel, climoColors, res.VMin, res.VMax)}},
		},
	}, nil
}

// DiffFigure draws the historical and future difference maps side by side,
// each with its own colorbar. A missing historical field leaves panel 0 blank.
func DiffFigure(res *validation.DiffResult) (*Figure, error) {
	maps := make([]*plot.Plot, 2)
	bars := make([]*plot.Plot, 2)

	for i, f := range []*grid.Field{res.Historical, res.Future} {
		if f == nil {
			continue
		}
		shown, err := displayField(f)
		if err != nil {
			return nil, err
		}
		lo, hi, ok := validation.ColorRange(shown, res.Robust)
		if !ok {
			lo, hi = 0, 1
		}
		if res.Colormap == validation.ColormapDiverging {
			lo, hi = validation.DivergingRange(lo, hi)
		}
		maps[i], err = mapPanel(shown, res.Titles[i], res.Colormap, lo, hi)
		if err != nil {
			return nil, err
		}
		bars[i] = colorbar(res.ColorbarLabel, res.Colormap, lo, hi)
	}

	return &Figure{
		Title:  res.Suptitle,
		Width:  25 * vg.Inch,
		Height: 5 * vg.Inch,
		Rows: []Row{
			{Height: 0.8, Cells: maps},
			{Height: 0.2, Inset: 0.05, Cells: bars},
		},
	}, nil
}
