package render

import (
	"fmt"
	"image/color"
	"math"

	"github.com/chrissnell/dsvalidate/internal/validation"
	"github.com/chrissnell/dsvalidate/pkg/cftime"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	modelColor          = color.Black
	biasCorrectedColor  = color.RGBA{G: 128, A: 255}
	downscaledColor     = color.RGBA{B: 255, A: 255}
	modelDashes         = []vg.Length{vg.Points(2), vg.Points(2)}
	traceWidth          = vg.Points(1.5)
	gmstWidth, gmstTall = 12 * vg.Inch, 4 * vg.Inch
)

// decimalYear places a date on a continuous year axis
func decimalYear(d cftime.Date) float64 {
	return float64(d.Year) + float64(d.Month-1)/12 + float64(d.Day-1)/365
}

// segments splits a series into runs of finite values
func segments(s validation.Series) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		x := float64(i)
		if i < len(s.Time) {
			x = decimalYear(s.Time[i])
		}
		cur = append(cur, plotter.XY{X: x, Y: v})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// GMSTFigure draws every trace of the global mean comparison. The model is
// dotted black, bias corrected green and downscaled blue; only future
// traces get a legend entry.
func GMSTFigure(res *validation.GMSTResult, variable string) (*Figure, error) {
	p := plot.New()
	p.Title.Text = res.Title
	p.X.Label.Text = "year"
	p.Y.Label.Text = variable
	p.Legend.Top = true

	for _, tr := range res.Traces {
		segs := segments(tr.Series)
		for i, xys := range segs {
			l, err := plotter.NewLine(xys)
			if err != nil {
				return nil, fmt.Errorf("%s %s trace: %w", tr.Source, tr.Period, err)
			}
			l.LineStyle.Width = traceWidth
			switch tr.Source {
			case validation.SourceModel:
				l.LineStyle.Color = modelColor
				l.LineStyle.Dashes = modelDashes
			case validation.SourceBiasCorrected:
				l.LineStyle.Color = biasCorrectedColor
			default:
				l.LineStyle.Color = downscaledColor
			}
			p.Add(l)
			if i == 0 && tr.Legend != "" {
				p.Legend.Add(tr.Legend, l)
			}
		}
	}

	return &Figure{
		Width:  gmstWidth,
		Height: gmstTall,
		Rows:   []Row{{Height: 1, Cells: []*plot.Plot{p}}},
	}, nil
}
