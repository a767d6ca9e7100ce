package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// RunYAML is a run as written in the YAML file. Pointer fields tell an
// unset value from a zero one.
type RunYAML struct {
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind"`
	Variable   string            `yaml:"variable,omitempty"`
	SSP        string            `yaml:"ssp,omitempty"`
	Output     string            `yaml:"output"`
	Periods    []string          `yaml:"periods,omitempty"`
	Datasets   map[string]string `yaml:"datasets"`
	Metric     string            `yaml:"metric,omitempty"`
	DataType   string            `yaml:"data_type,omitempty"`
	VMin       *float64          `yaml:"vmin,omitempty"`
	VMax       *float64          `yaml:"vmax,omitempty"`
	PlotType   string            `yaml:"plot_type,omitempty"`
	TimePeriod string            `yaml:"time_period,omitempty"`
	Robust     *bool             `yaml:"robust,omitempty"`
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Store struct {
			Token string `yaml:"token,omitempty"`
			Check bool   `yaml:"check,omitempty"`
		} `yaml:"store,omitempty"`
		Datasets []struct {
			ID  string `yaml:"id"`
			URL string `yaml:"url"`
		} `yaml:"datasets"`
		Periods []struct {
			Label string `yaml:"label"`
			Start string `yaml:"start"`
			End   string `yaml:"end"`
		} `yaml:"periods"`
		Units map[string]string `yaml:"units,omitempty"`
		Runs  []RunYAML         `yaml:"runs"`
	}

	err = yaml.Unmarshal(cfgFile, &yamlConfig)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", y.filename, err)
	}

	// Convert to our internal format
	config := &ConfigData{
		Store: StoreData{
			Token: yamlConfig.Store.Token,
			Check: yamlConfig.Store.Check,
		},
		Datasets: make([]DatasetData, len(yamlConfig.Datasets)),
		Periods:  make([]PeriodData, len(yamlConfig.Periods)),
		Units:    yamlConfig.Units,
		Runs:     make([]RunData, len(yamlConfig.Runs)),
	}
	if config.Units == nil {
		config.Units = map[string]string{}
	}

	for i, d := range yamlConfig.Datasets {
		config.Datasets[i] = DatasetData{ID: d.ID, URL: d.URL}
	}
	for i, p := range yamlConfig.Periods {
		config.Periods[i] = PeriodData{Label: p.Label, Start: p.Start, End: p.End}
	}
	for i, r := range yamlConfig.Runs {
		config.Runs[i] = r.toRunData()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", y.filename, err)
	}
	y.config = config
	return config, nil
}

func (r RunYAML) toRunData() RunData {
	run := RunData{
		Name:       r.Name,
		Kind:       r.Kind,
		Variable:   r.Variable,
		SSP:        r.SSP,
		Output:     r.Output,
		Periods:    r.Periods,
		Datasets:   r.Datasets,
		Metric:     r.Metric,
		DataType:   r.DataType,
		VMin:       DefaultVMin,
		VMax:       DefaultVMax,
		PlotType:   r.PlotType,
		TimePeriod: r.TimePeriod,
		Robust:     DefaultRobust,
	}
	if r.VMin != nil {
		run.VMin = *r.VMin
	}
	if r.VMax != nil {
		run.VMax = *r.VMax
	}
	if r.Robust != nil {
		run.Robust = *r.Robust
	}
	run.applyDefaults()
	return run
}

// GetStore returns the store access settings
func (y *YAMLProvider) GetStore() (*StoreData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Store, nil
}

// GetDatasets returns the dataset definitions
func (y *YAMLProvider) GetDatasets() ([]DatasetData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Datasets, nil
}

// GetPeriods returns the periods in file order
func (y *YAMLProvider) GetPeriods() ([]PeriodData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Periods, nil
}

// GetUnits returns the variable units table
func (y *YAMLProvider) GetUnits() (map[string]string, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Units, nil
}

// GetRuns returns the runs in file order
func (y *YAMLProvider) GetRuns() ([]RunData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Runs, nil
}

// IsReadOnly returns true since YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
