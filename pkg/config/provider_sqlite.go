package config

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/chrissnell/dsvalidate/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Migrate brings the configuration schema up to date
func (s *SQLiteProvider) Migrate() error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	return migrate.NewMigrator(s.db, migrate.NewFSProvider(sub, "schema_migrations")).MigrateUp()
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	store, err := s.GetStore()
	if err != nil {
		return nil, fmt.Errorf("failed to load store config: %w", err)
	}
	config.Store = *store

	if config.Datasets, err = s.GetDatasets(); err != nil {
		return nil, fmt.Errorf("failed to load datasets: %w", err)
	}
	if config.Periods, err = s.GetPeriods(); err != nil {
		return nil, fmt.Errorf("failed to load periods: %w", err)
	}
	if config.Units, err = s.GetUnits(); err != nil {
		return nil, fmt.Errorf("failed to load units: %w", err)
	}
	if config.Runs, err = s.GetRuns(); err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", s.dbPath, err)
	}
	return config, nil
}

// GetStore returns the store access settings. A missing row means defaults.
func (s *SQLiteProvider) GetStore() (*StoreData, error) {
	store := &StoreData{}
	var token sql.NullString
	err := s.db.QueryRow(`SELECT token, check_root FROM store WHERE id = 1`).Scan(&token, &store.Check)
	if err == sql.ErrNoRows {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query store: %w", err)
	}
	store.Token = token.String
	return store, nil
}

// GetDatasets returns dataset definitions ordered by id
func (s *SQLiteProvider) GetDatasets() ([]DatasetData, error) {
	rows, err := s.db.Query(`SELECT id, url FROM datasets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	var datasets []DatasetData
	for rows.Next() {
		var d DatasetData
		if err := rows.Scan(&d.ID, &d.URL); err != nil {
			return nil, fmt.Errorf("failed to scan dataset row: %w", err)
		}
		datasets = append(datasets, d)
	}
	return datasets, rows.Err()
}

// GetPeriods returns periods in their configured order
func (s *SQLiteProvider) GetPeriods() ([]PeriodData, error) {
	rows, err := s.db.Query(`SELECT label, start, end_date FROM periods ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var periods []PeriodData
	for rows.Next() {
		var p PeriodData
		if err := rows.Scan(&p.Label, &p.Start, &p.End); err != nil {
			return nil, fmt.Errorf("failed to scan period row: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// GetUnits returns the variable units table
func (s *SQLiteProvider) GetUnits() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT variable, units FROM units`)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	units := map[string]string{}
	for rows.Next() {
		var variable, u string
		if err := rows.Scan(&variable, &u); err != nil {
			return nil, fmt.Errorf("failed to scan units row: %w", err)
		}
		units[variable] = u
	}
	return units, rows.Err()
}

// GetRuns returns runs in their configured order with defaults applied
func (s *SQLiteProvider) GetRuns() ([]RunData, error) {
	query := `
		SELECT name, kind, variable, ssp, output, metric, data_type,
		       vmin, vmax, plot_type, time_period, robust
		FROM runs
		ORDER BY position
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunData
	for rows.Next() {
		var run RunData
		var variable, ssp, metric, dataType, plotType, timePeriod sql.NullString
		var vmin, vmax sql.NullFloat64
		var robust sql.NullBool

		err := rows.Scan(
			&run.Name, &run.Kind, &variable, &ssp, &run.Output, &metric, &dataType,
			&vmin, &vmax, &plotType, &timePeriod, &robust,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}

		run.Variable = variable.String
		run.SSP = ssp.String
		run.Metric = metric.String
		run.DataType = dataType.String
		run.PlotType = plotType.String
		run.TimePeriod = timePeriod.String

		// NULL columns take the defaults
		run.VMin, run.VMax, run.Robust = DefaultVMin, DefaultVMax, DefaultRobust
		if vmin.Valid {
			run.VMin = vmin.Float64
		}
		if vmax.Valid {
			run.VMax = vmax.Float64
		}
		if robust.Valid {
			run.Robust = robust.Bool
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range runs {
		if runs[i].Datasets, err = s.runDatasets(runs[i].Name); err != nil {
			return nil, err
		}
		if runs[i].Periods, err = s.runPeriods(runs[i].Name); err != nil {
			return nil, err
		}
		runs[i].applyDefaults()
	}
	return runs, nil
}

func (s *SQLiteProvider) runDatasets(name string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT role, dataset_id FROM run_datasets WHERE run_name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets of run %s: %w", name, err)
	}
	defer rows.Close()

	roles := map[string]string{}
	for rows.Next() {
		var role, id string
		if err := rows.Scan(&role, &id); err != nil {
			return nil, fmt.Errorf("failed to scan run dataset row: %w", err)
		}
		roles[role] = id
	}
	return roles, rows.Err()
}

func (s *SQLiteProvider) runPeriods(name string) ([]string, error) {
	rows, err := s.db.Query(`SELECT label FROM run_periods WHERE run_name = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods of run %s: %w", name, err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan run period row: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// SaveConfig replaces the stored configuration with config
func (s *SQLiteProvider) SaveConfig(config *ConfigData) error {
	if err := config.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"run_periods", "run_datasets", "runs", "units", "periods", "datasets", "store"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO store (id, token, check_root) VALUES (1, ?, ?)`,
		config.Store.Token, config.Store.Check); err != nil {
		return fmt.Errorf("failed to insert store: %w", err)
	}
	for _, d := range config.Datasets {
		if _, err := tx.Exec(`INSERT INTO datasets (id, url) VALUES (?, ?)`, d.ID, d.URL); err != nil {
			return fmt.Errorf("failed to insert dataset %s: %w", d.ID, err)
		}
	}
	for i, p := range config.Periods {
		if _, err := tx.Exec(`INSERT INTO periods (position, label, start, end_date) VALUES (?, ?, ?, ?)`,
			i, p.Label, p.Start, p.End); err != nil {
			return fmt.Errorf("failed to insert period %s: %w", p.Label, err)
		}
	}
	for variable, u := range config.Units {
		if _, err := tx.Exec(`INSERT INTO units (variable, units) VALUES (?, ?)`, variable, u); err != nil {
			return fmt.Errorf("failed to insert units of %s: %w", variable, err)
		}
	}

	for i, r := range config.Runs {
		_, err := tx.Exec(`
			INSERT INTO runs (position, name, kind, variable, ssp, output, metric, data_type,
			                  vmin, vmax, plot_type, time_period, robust)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i, r.Name, r.Kind, r.Variable, r.SSP, r.Output, r.Metric, r.DataType,
			r.VMin, r.VMax, r.PlotType, r.TimePeriod, r.Robust)
		if err != nil {
			return fmt.Errorf("failed to insert run %s: %w", r.Name, err)
		}
		for _, role := range sortedKeys(r.Datasets) {
			if _, err := tx.Exec(`INSERT INTO run_datasets (run_name, role, dataset_id) VALUES (?, ?, ?)`,
				r.Name, role, r.Datasets[role]); err != nil {
				return fmt.Errorf("failed to insert %s dataset of run %s: %w", role, r.Name, err)
			}
		}
		for j, label := range r.Periods {
			if _, err := tx.Exec(`INSERT INTO run_periods (run_name, position, label) VALUES (?, ?, ?)`,
				r.Name, j, label); err != nil {
				return fmt.Errorf("failed to insert period %s of run %s: %w", label, r.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit configuration: %w", err)
	}
	return nil
}

// IsReadOnly returns false since SQLite supports read-write operations
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
