package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/chrissnell/dsvalidate/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
		verify     = flag.Bool("verify", true, "Read the database back and compare it with the YAML")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	configData, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}
	printConfigSummary(configData)

	if *dryRun {
		fmt.Println("DRY RUN complete - no database created")
		return
	}

	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}

	if err := convert(*sqliteFile, configData, *verify); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", *sqliteFile)
}

func convert(dbPath string, configData *config.ConfigData, verify bool) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	provider, err := config.NewSQLiteProvider(dbPath)
	if err != nil {
		return err
	}
	defer provider.Close()

	fmt.Printf("Creating SQLite schema...\n")
	if err := provider.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	fmt.Printf("Loading configuration into SQLite database...\n")
	if err := provider.SaveConfig(configData); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}

	if !verify {
		return nil
	}
	stored, err := provider.LoadConfig()
	if err != nil {
		return fmt.Errorf("reading configuration back: %w", err)
	}
	return compare(configData, stored)
}

func compare(want, got *config.ConfigData) error {
	checks := []struct {
		name string
		want interface{}
		got  interface{}
	}{
		{"store", want.Store, got.Store},
		{"datasets", want.Datasets, got.Datasets},
		{"periods", want.Periods, got.Periods},
		{"units", want.Units, got.Units},
		{"runs", want.Runs, got.Runs},
	}
	for _, c := range checks {
		if !reflect.DeepEqual(c.want, c.got) && !bothEmpty(c.want, c.got) {
			return fmt.Errorf("%s differ after conversion:\n  yaml:   %+v\n  sqlite: %+v", c.name, c.want, c.got)
		}
		fmt.Printf("✓ %s match\n", c.name)
	}
	return nil
}

// bothEmpty treats nil and empty maps or slices as equal
func bothEmpty(a, b interface{}) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map, reflect.Slice:
		return va.Len() == 0 && vb.Len() == 0
	}
	return false
}

func printConfigSummary(configData *config.ConfigData) {
	fmt.Printf("  Loaded %d datasets, %d periods, %d runs\n", len(configData.Datasets), len(configData.Periods), len(configData.Runs))
	for _, r := range configData.Runs {
		fmt.Printf("    %-20s %-6s -> %s\n", r.Name, r.Kind, r.Output)
	}
}
