package validation

import (
	"context"
	"fmt"

	"github.com/chrissnell/dsvalidate/pkg/grid"
)

// titlePanel is the panel that carries the long figure title
const titlePanel = 2

// ClimoLayout states which datasets feed the period panels
type ClimoLayout int

const (
	// LayoutWithHistorical reads the first period from the historical
	// dataset and places period i in panel i.
	LayoutWithHistorical ClimoLayout = iota + 1
	// LayoutFutureOnly reads every period from the future dataset and
	// places period i in panel i+1, leaving panel 0 blank.
	LayoutFutureOnly
)

// ClimoRequest describes one per-period climatology figure
type ClimoRequest struct {
	Layout     ClimoLayout
	Future     *grid.Dataset
	Historical *grid.Dataset
	Periods    Periods
	Variable   string
	Metric     Metric
	VMin       float64
	VMax       float64
	DataType   string
	SSP        string
	Units      Units
}

// PeriodSummary is one reduced period and where it is drawn
type PeriodSummary struct {
	Label   string
	Panel   int
	Title   string
	Dataset string
	Field   *grid.Field
}

// ClimoResult holds everything needed to draw the climatology panels
type ClimoResult struct {
	Panels        int
	Summaries     []PeriodSummary
	ColorbarLabel string
	VMin          float64
	VMax          float64
}

func (r ClimoRequest) validate() error {
	switch r.Layout {
	case LayoutWithHistorical:
		if r.Historical == nil {
			return fmt.Errorf("historical layout without a historical dataset: %w", ErrMissingDataset)
		}
	case LayoutFutureOnly:
		if r.Historical != nil {
			return fmt.Errorf("future-only layout was given a historical dataset %s", r.Historical.Name)
		}
	default:
		return fmt.Errorf("climatology layout %d: %w", int(r.Layout), ErrUnknownSelector)
	}
	if r.Future == nil {
		return fmt.Errorf("future dataset: %w", ErrMissingDataset)
	}
	if len(r.Periods) == 0 {
		return fmt.Errorf("no periods to summarize")
	}
	if r.VMin > r.VMax {
		return fmt.Errorf("color range %v..%v is inverted", r.VMin, r.VMax)
	}
	return nil
}

// SummarizePeriods slices each period out of its dataset, materializes it and
// reduces it over time with the requested metric.
func SummarizePeriods(ctx context.Context, req ClimoRequest) (*ClimoResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	reduction, err := req.Metric.reduction()
	if err != nil {
		return nil, err
	}

	offset := 0
	if req.Layout == LayoutFutureOnly {
		offset = 1
	}

	res := &ClimoResult{
		Panels:        len(req.Periods) + offset,
		ColorbarLabel: req.Units.Label(req.Variable),
		VMin:          req.VMin,
		VMax:          req.VMax,
	}

	for i, p := range req.Periods {
		ds := req.Future
		if i == 0 && req.Layout == LayoutWithHistorical {
			ds = req.Historical
		}

		v, err := ds.Variable(req.Variable)
		if err != nil {
			return nil, err
		}
		sliced, err := grid.Select(ctx, v, p.Start, p.End)
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", p.Label, err)
		}
		summary, err := sliced.ReduceTime(reduction)
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", p.Label, err)
		}

		panel := i + offset
		title := p.Label
		if panel == titlePanel {
			title = fmt.Sprintf("%s %s, %s \n %s", req.Metric, req.DataType, req.SSP, p.Label)
		}
		res.Summaries = append(res.Summaries, PeriodSummary{
			Label:   p.Label,
			Panel:   panel,
			Title:   title,
			Dataset: ds.Name,
			Field:   summary,
		})
	}
	return res, nil
}
