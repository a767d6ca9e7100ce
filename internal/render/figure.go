// Package render draws diagnostic results as gonum/plot figures. Every
// function returns a Figure value; nothing is drawn to shared state.
package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgpdf"
	_ "gonum.org/v1/plot/vg/vgsvg"
)

// Row is a horizontal band of the figure. Height is relative to the other
// rows; Inset is the fraction of the band's width left empty on each side.
type Row struct {
	Height float64
	Inset  float64
	Cells  []*plot.Plot
}

// Figure is a titled stack of rows of plots. Nil cells are left blank.
type Figure struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	Rows   []Row
}

// titleHeight is the fraction of the figure reserved for the title
const titleHeight = 0.08

// Draw lays the figure out on c
func (f *Figure) Draw(c draw.Canvas) {
	top := 1.0
	if f.Title != "" {
		tp := plot.New()
		tp.Title.Text = f.Title
		tp.HideAxes()
		tp.Draw(subCanvas(c, 0, 1, 1-titleHeight, 1))
		top -= titleHeight
	}

	var total float64
	for _, r := range f.Rows {
		total += r.Height
	}
	if total == 0 {
		return
	}

	for _, r := range f.Rows {
		h := top * r.Height / total
		y1 := top
		y0 := top - h
		top = y0
		if len(r.Cells) == 0 {
			continue
		}
		width := (1 - 2*r.Inset) / float64(len(r.Cells))
		for i, p := range r.Cells {
			if p == nil {
				continue
			}
			x0 := r.Inset + float64(i)*width
			p.Draw(subCanvas(c, x0, x0+width, y0, y1))
		}
	}
}

// subCanvas crops c to the fractional rectangle [x0,x1]x[y0,y1]
func subCanvas(c draw.Canvas, x0, x1, y0, y1 float64) draw.Canvas {
	w := c.Max.X - c.Min.X
	h := c.Max.Y - c.Min.Y
	return draw.Crop(c,
		vg.Length(x0)*w, -vg.Length(1-x1)*w,
		vg.Length(y0)*h, -vg.Length(1-y1)*h)
}

// WriteTo renders the figure in the given format ("png", "svg", "pdf", ...)
func (f *Figure) WriteTo(w io.Writer, format string) (int64, error) {
	c, err := draw.NewFormattedCanvas(f.Width, f.Height, format)
	if err != nil {
		return 0, fmt.Errorf("creating %s canvas: %w", format, err)
	}
	f.Draw(draw.New(c))
	return c.WriteTo(w)
}

// Save writes the figure to path, choosing the format from the extension
func (f *Figure) Save(path string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format = "png"
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating figure file: %w", err)
	}
	if _, err := f.WriteTo(out, format); err != nil {
		out.Close()
		return fmt.Errorf("writing figure %s: %w", path, err)
	}
	return out.Close()
}
