package validation

import (
	"context"
	"fmt"
	"math"

	"github.com/chrissnell/dsvalidate/pkg/cftime"
	"github.com/chrissnell/dsvalidate/pkg/grid"
	"gonum.org/v1/gonum/stat"
)

// Series is a scalar per time step. Time is nil for a field without time.
type Series struct {
	Name   string
	Time   []cftime.Date
	Values []float64
}

// GlobalMean returns the cos(latitude) weighted spatial mean of f for every
// time step. Missing cells get zero weight at the steps where they are
// missing, so a cell missing only sometimes still counts elsewhere. A step
// with every cell missing yields NaN.
func GlobalMean(f *grid.Field) (Series, error) {
	if len(f.Lat) == 0 || len(f.Lon) == 0 {
		return Series{}, fmt.Errorf("global mean of %s: empty grid", f.Name)
	}

	rowWeights := make([]float64, len(f.Lat))
	for i, lat := range f.Lat {
		rowWeights[i] = math.Cos(lat * math.Pi / 180)
	}

	steps := f.Steps()
	s := Series{Name: f.Name, Values: make([]float64, steps)}
	if f.HasTime() {
		s.Time = append([]cftime.Date{}, f.Time...)
	}

	nlon := len(f.Lon)
	x := make([]float64, 0, f.Cells())
	w := make([]float64, 0, f.Cells())
	for t := 0; t < steps; t++ {
		x, w = x[:0], w[:0]
		for c, v := range f.Step(t) {
			if math.IsNaN(v) {
				continue
			}
			x = append(x, v)
			w = append(w, rowWeights[c/nlon])
		}
		if len(x) == 0 {
			s.Values[t] = math.NaN()
			continue
		}
		s.Values[t] = stat.Mean(x, w)
	}
	return s, nil
}

// Source is the pipeline stage a trace comes from
type Source int

const (
	SourceModel Source = iota + 1
	SourceBiasCorrected
	SourceDownscaled
)

func (s Source) String() string {
	switch s {
	case SourceModel:
		return "cmip6"
	case SourceBiasCorrected:
		return "bias corrected"
	case SourceDownscaled:
		return "downscaled"
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// PeriodKind separates historical from future traces
type PeriodKind int

const (
	Historical PeriodKind = iota + 1
	Future
)

func (p PeriodKind) String() string {
	if p == Historical {
		return "historical"
	}
	return "future"
}

// GMSTTrace names one dataset to include in the global mean figure
type GMSTTrace struct {
	Source  Source
	Period  PeriodKind
	Dataset *grid.Dataset
}

// GMSTRequest configures the global mean comparison figure
type GMSTRequest struct {
	Variable string
	SSP      string
	Traces   []GMSTTrace
}

// TraceSeries is a computed trace. Legend is empty for traces that share a
// legend entry with their future counterpart.
type TraceSeries struct {
	Source Source
	Period PeriodKind
	Legend string
	Series Series
}

// GMSTResult holds the traces of the global mean figure
type GMSTResult struct {
	Title  string
	Traces []TraceSeries
}

func (r GMSTRequest) validate() error {
	have := make(map[[2]int]bool)
	for _, tr := range r.Traces {
		if tr.Dataset == nil {
			return fmt.Errorf("%s %s trace: %w", tr.Source, tr.Period, ErrMissingDataset)
		}
		if tr.Source < SourceModel || tr.Source > SourceDownscaled {
			return fmt.Errorf("trace source %d: %w", int(tr.Source), ErrUnknownSelector)
		}
		if tr.Period != Historical && tr.Period != Future {
			return fmt.Errorf("trace period %d: %w", int(tr.Period), ErrUnknownSelector)
		}
		key := [2]int{int(tr.Source), int(tr.Period)}
		if have[key] {
			return fmt.Errorf("%s %s trace given twice", tr.Source, tr.Period)
		}
		have[key] = true
	}

	for _, src := range []Source{SourceModel, SourceBiasCorrected} {
		if !have[[2]int{int(src), int(Future)}] {
			return fmt.Errorf("%s future trace is required: %w", src, ErrMissingDataset)
		}
	}
	dsHist := have[[2]int{int(SourceDownscaled), int(Historical)}]
	dsFut := have[[2]int{int(SourceDownscaled), int(Future)}]
	if dsHist != dsFut {
		return fmt.Errorf("downscaled traces need both historical and future datasets: %w", ErrMissingDataset)
	}
	return nil
}

// GMSTDiagnostic averages each trace's variable by calendar year, then
// reduces every year to its global mean. Traces are returned in source then
// period order, the order they are drawn in.
func GMSTDiagnostic(ctx context.Context, req GMSTRequest) (*GMSTResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	res := &GMSTResult{Title: fmt.Sprintf("Global Mean %s %s", req.Variable, req.SSP)}
	for _, src := range []Source{SourceModel, SourceBiasCorrected, SourceDownscaled} {
		for _, period := range []PeriodKind{Historical, Future} {
			for _, tr := range req.Traces {
				if tr.Source != src || tr.Period != period {
					continue
				}
				series, err := annualGlobalMean(ctx, tr.Dataset, req.Variable)
				if err != nil {
					return nil, fmt.Errorf("%s %s trace: %w", src, period, err)
				}
				legend := ""
				if period == Future {
					legend = src.String()
				}
				res.Traces = append(res.Traces, TraceSeries{
					Source: src,
					Period: period,
					Legend: legend,
					Series: series,
				})
			}
		}
	}
	return res, nil
}

func annualGlobalMean(ctx context.Context, ds *grid.Dataset, variable string) (Series, error) {
	v, err := ds.Variable(variable)
	if err != nil {
		return Series{}, err
	}
	f, err := grid.Load(ctx, v)
	if err != nil {
		return Series{}, err
	}
	annual, err := f.AnnualMean()
	if err != nil {
		return Series{}, err
	}
	return GlobalMean(annual)
}
