// Package validation implements the downscaling diagnostics: per-period
// climatologies, the latitude-weighted global mean index and the
// bias-corrected/downscaled difference fields.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chrissnell/dsvalidate/pkg/grid"
)

var (
	ErrUnknownSelector = errors.New("unknown selector")
	ErrUnknownPeriod   = errors.New("unknown period")
	ErrMissingDataset  = errors.New("missing dataset")
)

// Metric is the reduction applied over a period's time steps
type Metric int

const (
	MetricMean Metric = iota + 1
	MetricMax
	MetricMin
)

// ParseMetric accepts "mean", "max" or "min"
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean":
		return MetricMean, nil
	case "max":
		return MetricMax, nil
	case "min":
		return MetricMin, nil
	}
	return 0, fmt.Errorf("metric %q (want mean, max or min): %w", s, ErrUnknownSelector)
}

func (m Metric) String() string {
	switch m {
	case MetricMean:
		return "mean"
	case MetricMax:
		return "max"
	case MetricMin:
		return "min"
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

func (m Metric) reduction() (grid.Reduction, error) {
	switch m {
	case MetricMean:
		return grid.ReduceMean, nil
	case MetricMax:
		return grid.ReduceMax, nil
	case MetricMin:
		return grid.ReduceMin, nil
	}
	return 0, fmt.Errorf("metric %s: %w", m, ErrUnknownSelector)
}

// DiffMode selects which pair of datasets a difference map compares
type DiffMode int

const (
	ChangeFromHistorical DiffMode = iota + 1
	DownscaledMinusBiasCorrected
)

// ParseDiffMode accepts "change_from_historical" or
// "downscaled_minus_biascorrected"
func ParseDiffMode(s string) (DiffMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "change_from_historical":
		return ChangeFromHistorical, nil
	case "downscaled_minus_biascorrected":
		return DownscaledMinusBiasCorrected, nil
	}
	return 0, fmt.Errorf("plot type %q: %w", s, ErrUnknownSelector)
}

func (m DiffMode) String() string {
	switch m {
	case ChangeFromHistorical:
		return "change_from_historical"
	case DownscaledMinusBiasCorrected:
		return "downscaled_minus_biascorrected"
	}
	return fmt.Sprintf("DiffMode(%d)", int(m))
}

// DataType names a stage of the pipeline output
type DataType int

const (
	BiasCorrected DataType = iota + 1
	Downscaled
)

// ParseDataType accepts "bias_corrected" or "downscaled"
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bias_corrected":
		return BiasCorrected, nil
	case "downscaled":
		return Downscaled, nil
	}
	return 0, fmt.Errorf("data type %q: %w", s, ErrUnknownSelector)
}

func (d DataType) String() string {
	switch d {
	case BiasCorrected:
		return "bias_corrected"
	case Downscaled:
		return "downscaled"
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// Colormap is the color scale family used to draw a map
type Colormap int

const (
	ColormapSequential Colormap = iota
	ColormapDiverging
)

// Units maps variable names to display units
type Units map[string]string

// Label formats "variable (units)" for colorbars
func (u Units) Label(variable string) string {
	return fmt.Sprintf("%s (%s)", variable, u[variable])
}
