package config

import (
	"fmt"
	"sort"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetStore() (*StoreData, error)
	GetDatasets() ([]DatasetData, error)
	GetPeriods() ([]PeriodData, error)
	GetUnits() (map[string]string, error)
	GetRuns() ([]RunData, error)

	IsReadOnly() bool
	Close() error
}

// Run kinds
const (
	KindClimo = "climo"
	KindGMST  = "gmst"
	KindDiff  = "diff"
)

// Defaults applied to runs that leave a field unset
const (
	DefaultVMin       = 240.0
	DefaultVMax       = 320.0
	DefaultSSP        = "370"
	DefaultTimePeriod = "2080_2100"
	DefaultVariable   = "tasmax"
	DefaultRobust     = true
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Store    StoreData         `json:"store"`
	Datasets []DatasetData     `json:"datasets"`
	Periods  []PeriodData      `json:"periods"`
	Units    map[string]string `json:"units,omitempty"`
	Runs     []RunData         `json:"runs"`
}

// StoreData holds the remote store access settings
type StoreData struct {
	Token string `json:"token,omitempty"`
	Check bool   `json:"check,omitempty"`
}

// DatasetData names a zarr store. URLs starting with gs:// are read from
// Cloud Storage, anything else is a local directory.
type DatasetData struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PeriodData is a labeled inclusive time window
type PeriodData struct {
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// RunData describes one figure to produce
type RunData struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Variable string `json:"variable,omitempty"`
	SSP      string `json:"ssp,omitempty"`
	Output   string `json:"output"`

	// Periods restricts the run to these labels, in this order. Empty
	// means every configured period.
	Periods []string `json:"periods,omitempty"`

	// Datasets maps a role (future, historical, bc_future, ...) to a
	// dataset id
	Datasets map[string]string `json:"datasets"`

	// climatology
	Metric   string  `json:"metric,omitempty"`
	DataType string  `json:"data_type,omitempty"`
	VMin     float64 `json:"vmin,omitempty"`
	VMax     float64 `json:"vmax,omitempty"`

	// differences
	PlotType   string `json:"plot_type,omitempty"`
	TimePeriod string `json:"time_period,omitempty"`
	Robust     bool   `json:"robust,omitempty"`
}

// Dataset roles by run kind
var (
	climoRoles = []string{"future", "historical"}
	gmstRoles  = []string{"cmip6_historical", "cmip6_future", "bc_historical", "bc_future", "ds_historical", "ds_future"}
	diffRoles  = []string{"bc_future", "ds_future", "bc_historical", "ds_historical"}
)

// Roles lists the dataset roles a run kind understands
func Roles(kind string) []string {
	switch kind {
	case KindClimo:
		return climoRoles
	case KindGMST:
		return gmstRoles
	case KindDiff:
		return diffRoles
	}
	return nil
}

// Validate checks cross references between runs, datasets and periods.
// Selector values are checked when a run is executed.
func (c *ConfigData) Validate() error {
	datasets := make(map[string]bool, len(c.Datasets))
	for _, d := range c.Datasets {
		if d.ID == "" || d.URL == "" {
			return fmt.Errorf("dataset %q needs both an id and a url", d.ID)
		}
		if datasets[d.ID] {
			return fmt.Errorf("dataset %q defined twice", d.ID)
		}
		datasets[d.ID] = true
	}

	periods := make(map[string]bool, len(c.Periods))
	for _, p := range c.Periods {
		periods[p.Label] = true
	}

	names := make(map[string]bool, len(c.Runs))
	for _, r := range c.Runs {
		if r.Name == "" {
			return fmt.Errorf("run without a name")
		}
		if names[r.Name] {
			return fmt.Errorf("run %q defined twice", r.Name)
		}
		names[r.Name] = true

		roles := Roles(r.Kind)
		if roles == nil {
			return fmt.Errorf("run %s: unknown kind %q", r.Name, r.Kind)
		}
		if r.Output == "" {
			return fmt.Errorf("run %s: no output file", r.Name)
		}
		for _, role := range sortedKeys(r.Datasets) {
			if !contains(roles, role) {
				return fmt.Errorf("run %s: %s runs have no dataset role %q", r.Name, r.Kind, role)
			}
			if id := r.Datasets[role]; !datasets[id] {
				return fmt.Errorf("run %s: %s dataset %q is not defined", r.Name, role, id)
			}
		}
		for _, label := range r.Periods {
			if !periods[label] {
				return fmt.Errorf("run %s: period %q is not defined", r.Name, label)
			}
		}
	}
	return nil
}

// applyDefaults fills unset string fields. The numeric and boolean
// defaults are applied by the providers, which can tell unset from zero.
func (r *RunData) applyDefaults() {
	if r.Variable == "" {
		r.Variable = DefaultVariable
	}
	if r.SSP == "" {
		r.SSP = DefaultSSP
	}
	if r.TimePeriod == "" {
		r.TimePeriod = DefaultTimePeriod
	}
	if r.Datasets == nil {
		r.Datasets = map[string]string{}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
