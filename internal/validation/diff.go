package validation

import (
	"context"
	"fmt"

	"github.com/chrissnell/dsvalidate/pkg/grid"
)

// DiffRequest configures a two-panel difference figure. The historical
// datasets are optional for DownscaledMinusBiasCorrected.
type DiffRequest struct {
	Mode       DiffMode
	DataType   DataType
	Variable   string
	Periods    Periods
	TimePeriod string
	FutureBC   *grid.Dataset
	FutureDS   *grid.Dataset
	HistBC     *grid.Dataset
	HistDS     *grid.Dataset
	Robust     bool
	SSP        string
	Units      Units
}

// DiffResult holds the two difference fields. Historical is nil when no
// historical datasets were supplied.
type DiffResult struct {
	Historical    *grid.Field
	Future        *grid.Field
	Titles        [2]string
	Suptitle      string
	ColorbarLabel string
	Colormap      Colormap
	Robust        bool
}

// Differences computes the difference fields for the requested mode.
//
// ChangeFromHistorical time-averages the historical and future fields of the
// chosen data type and returns the historical mean and future mean minus
// historical mean, so the two spans may differ in length.
//
// DownscaledMinusBiasCorrected returns downscaled minus bias corrected twice:
// over the span from the historical start to the time period's end without
// reducing time, and over the time period with each side time-averaged
// first.
func Differences(ctx context.Context, req DiffRequest) (*DiffResult, error) {
	if req.DataType != BiasCorrected && req.DataType != Downscaled {
		return nil, fmt.Errorf("data type %s: %w", req.DataType, ErrUnknownSelector)
	}

	res := &DiffResult{
		ColorbarLabel: req.Units.Label(req.Variable),
		Robust:        req.Robust,
	}

	var err error
	switch req.Mode {
	case ChangeFromHistorical:
		err = changeFromHistorical(ctx, req, res)
		res.Titles = changeTitles(req)
		res.Suptitle = fmt.Sprintf("%s change from historical: %s", req.SSP, req.DataType)
		res.Colormap = ColormapSequential
	case DownscaledMinusBiasCorrected:
		hist, lerr := req.Periods.Lookup(HistoricalLabel)
		if lerr != nil {
			return nil, lerr
		}
		target, lerr := req.Periods.Lookup(req.TimePeriod)
		if lerr != nil {
			return nil, lerr
		}
		err = downscaledMinusBiasCorrected(ctx, req, hist, target, res)
		res.Titles = [2]string{historicalTitle(hist), req.TimePeriod}
		res.Suptitle = fmt.Sprintf("%s downscaled minus bias corrected", req.SSP)
		res.Colormap = ColormapDiverging
	default:
		return nil, fmt.Errorf("plot type %s: %w", req.Mode, ErrUnknownSelector)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func historicalTitle(hist Period) string {
	return fmt.Sprintf("historical (%s - %s)", hist.Start, hist.End)
}

// changeTitles uses the configured periods when they are there; the mode
// itself never slices by period
func changeTitles(req DiffRequest) [2]string {
	titles := [2]string{"historical", req.TimePeriod}
	if hist, err := req.Periods.Lookup(HistoricalLabel); err == nil {
		titles[0] = historicalTitle(hist)
	}
	if titles[1] == "" {
		titles[1] = "future"
	}
	return titles
}

func changeFromHistorical(ctx context.Context, req DiffRequest, res *DiffResult) error {
	histDS, futDS := req.HistBC, req.FutureBC
	if req.DataType == Downscaled {
		histDS, futDS = req.HistDS, req.FutureDS
	}
	if histDS == nil || futDS == nil {
		return fmt.Errorf("change from historical needs historical and future %s datasets: %w", req.DataType, ErrMissingDataset)
	}

	histField, err := loadVariable(ctx, histDS, req.Variable)
	if err != nil {
		return err
	}
	futField, err := loadVariable(ctx, futDS, req.Variable)
	if err != nil {
		return err
	}
	if histField, err = timeMean(histField); err != nil {
		return fmt.Errorf("historical %s: %w", req.DataType, err)
	}
	if futField, err = timeMean(futField); err != nil {
		return fmt.Errorf("future %s: %w", req.DataType, err)
	}
	change, err := grid.Sub(futField, histField)
	if err != nil {
		return fmt.Errorf("future minus historical %s: %w", req.DataType, err)
	}
	res.Historical = histField
	res.Future = change
	return nil
}

// timeMean collapses time; fields already reduced upstream pass through
func timeMean(f *grid.Field) (*grid.Field, error) {
	if !f.HasTime() {
		return f, nil
	}
	return f.ReduceTime(grid.ReduceMean)
}

func downscaledMinusBiasCorrected(ctx context.Context, req DiffRequest, hist, target Period, res *DiffResult) error {
	if req.FutureBC == nil || req.FutureDS == nil {
		return fmt.Errorf("downscaled minus bias corrected needs future datasets of both types: %w", ErrMissingDataset)
	}
	if (req.HistBC == nil) != (req.HistDS == nil) {
		return fmt.Errorf("historical comparison needs both historical datasets or neither: %w", ErrMissingDataset)
	}

	if req.HistBC != nil {
		ds, err := selectVariable(ctx, req.HistDS, req.Variable, hist.Start, target.End)
		if err != nil {
			return err
		}
		bc, err := selectVariable(ctx, req.HistBC, req.Variable, hist.Start, target.End)
		if err != nil {
			return err
		}
		res.Historical, err = grid.Sub(ds, bc)
		if err != nil {
			return fmt.Errorf("historical downscaled minus bias corrected: %w", err)
		}
	}

	ds, err := selectVariable(ctx, req.FutureDS, req.Variable, target.Start, target.End)
	if err != nil {
		return err
	}
	bc, err := selectVariable(ctx, req.FutureBC, req.Variable, target.Start, target.End)
	if err != nil {
		return err
	}
	dsMean, err := ds.ReduceTime(grid.ReduceMean)
	if err != nil {
		return err
	}
	bcMean, err := bc.ReduceTime(grid.ReduceMean)
	if err != nil {
		return err
	}
	res.Future, err = grid.Sub(dsMean, bcMean)
	if err != nil {
		return fmt.Errorf("%s downscaled minus bias corrected: %w", target.Label, err)
	}
	return nil
}

func loadVariable(ctx context.Context, ds *grid.Dataset, variable string) (*grid.Field, error) {
	v, err := ds.Variable(variable)
	if err != nil {
		return nil, err
	}
	return grid.Load(ctx, v)
}

func selectVariable(ctx context.Context, ds *grid.Dataset, variable, start, end string) (*grid.Field, error) {
	v, err := ds.Variable(variable)
	if err != nil {
		return nil, err
	}
	f, err := grid.Select(ctx, v, start, end)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
	}
	return f, nil
}
