package render

import (
	"bytes"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/chrissnell/dsvalidate/internal/validation"
	"github.com/chrissnell/dsvalidate/pkg/cftime"
	"github.com/chrissnell/dsvalidate/pkg/grid"
)

func mapField(t *testing.T, times []cftime.Date, value func(step, cell int) float64) *grid.Field {
	t.Helper()
	steps := len(times)
	if times == nil {
		steps = 1
	}
	data := make([]float64, steps*6)
	for s := 0; s < steps; s++ {
		for c := 0; c < 6; c++ {
			data[s*6+c] = value(s, c)
		}
	}
	f, err := grid.NewField(grid.Meta{
		Name:     "tasmax",
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

func renderPNG(t *testing.T, fig *Figure) {
	t.Helper()
	var buf bytes.Buffer
	if _, err := fig.WriteTo(&buf, "png"); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Fatalf("output is not a png: %v", err)
	}
}

func TestClimoFigure(t *testing.T) {
	f := mapField(t, nil, func(_, c int) float64 { return 250 + float64(c)*10 })
	f.Data[2] = math.NaN()

	res := &validation.ClimoResult{
		Panels: 3,
		Summaries: []validation.PeriodSummary{
			{Label: "a", Panel: 1, Title: "a", Field: f},
			{Label: "b", Panel: 2, Title: "mean downscaled, ssp370 \n b", Field: f},
		},
		ColorbarLabel: "tasmax (K)",
		VMin:          240,
		VMax:          320,
	}
	fig, err := ClimoFigure(res, validation.ColormapSequential)
	if err != nil {
		t.Fatalf("ClimoFigure: %v", err)
	}
	if len(fig.Rows) != 2 || len(fig.Rows[0].Cells) != 3 {
		t.Fatalf("expected a 3-panel map row and a colorbar row, got %+v", fig.Rows)
	}
	if fig.Rows[0].Cells[0] != nil {
		t.Error("panel 0 should be blank")
	}
	renderPNG(t, fig)
}

func TestClimoFigureRejectsBadPanel(t *testing.T) {
	f := mapField(t, nil, func(_, _ int) float64 { return 1 })
	res := &validation.ClimoResult{
		Panels:    2,
		Summaries: []validation.PeriodSummary{{Label: "x", Panel: 2, Field: f}},
		VMin:      0,
		VMax:      1,
	}
	if _, err := ClimoFigure(res, validation.ColormapSequential); err == nil {
		t.Error("expected an error for a panel outside the row")
	}
}

func TestDiffFigure(t *testing.T) {
	times := []cftime.Date{cftime.NewDate(1995, 1, 1), cftime.NewDate(1995, 1, 2)}
	hist := mapField(t, times, func(s, c int) float64 { return float64(s*c) - 2 })
	fut := mapField(t, nil, func(_, c int) float64 { return float64(c) - 3 })

	res := &validation.DiffResult{
		Historical:    hist,
		Future:        fut,
		Titles:        [2]string{"historical (1995 - 2014)", "2080_2100"},
		Suptitle:      "370 downscaled minus bias corrected",
		ColorbarLabel: "tasmax (K)",
		Colormap:      validation.ColormapDiverging,
		Robust:        true,
	}
	fig, err := DiffFigure(res)
	if err != nil {
		t.Fatalf("DiffFigure: %v", err)
	}
	if fig.Title != res.Suptitle {
		t.Errorf("title = %q", fig.Title)
	}
	renderPNG(t, fig)

	res.Historical = nil
	fig, err = DiffFigure(res)
	if err != nil {
		t.Fatalf("DiffFigure without history: %v", err)
	}
	if fig.Rows[0].Cells[0] != nil || fig.Rows[1].Cells[0] != nil {
		t.Error("historical panel should be blank")
	}
}

func TestGMSTFigure(t *testing.T) {
	years := []cftime.Date{cftime.NewDate(2015, 1, 1), cftime.NewDate(2016, 1, 1), cftime.NewDate(2017, 1, 1)}
	res := &validation.GMSTResult{
		Title: "Global Mean tasmax 370",
		Traces: []validation.TraceSeries{
			{Source: validation.SourceModel, Period: validation.Future, Legend: "cmip6",
				Series: validation.Series{Time: years, Values: []float64{290, math.NaN(), 291}}},
			{Source: validation.SourceBiasCorrected, Period: validation.Future, Legend: "bias corrected",
				Series: validation.Series{Time: years, Values: []float64{289, 290, 291}}},
		},
	}
	fig, err := GMSTFigure(res, "tasmax")
	if err != nil {
		t.Fatalf("GMSTFigure: %v", err)
	}

	path := filepath.Join(t.TempDir(), "gmst.svg")
	if err := fig.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil || st.Size() == 0 {
		t.Errorf("expected a non-empty svg, stat err %v", err)
	}
}

func TestSegmentsSplitOnMissing(t *testing.T) {
	s := validation.Series{Values: []float64{1, math.NaN(), 2, 3, math.Inf(1)}}
	segs := segments(s)
	if len(segs) != 2 || len(segs[0]) != 1 || len(segs[1]) != 2 {
		t.Fatalf("unexpected segments %v", segs)
	}
	if segs[1][0].X != 2 {
		t.Errorf("series without time should use the step index, got %v", segs[1][0].X)
	}
}
