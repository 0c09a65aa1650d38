package config

import (
	"encoding/json"
	"errors"
)

const (
	DefaultSourceTable = "nyc"
	DefaultHourlyTable = "hourly_data"
	DefaultDailyTable  = "daily_data"
)

var (
	ErrMissingProject = errors.New("missing mandatory configuration: GCP_PROJECT_ID")
	ErrMissingDataset = errors.New("missing mandatory configuration: BQ_DATASET")
	ErrMissingTable   = errors.New("table names must not be empty")
)

// Config is a configuration object for the rollup generator.
type Config struct {
	// Project is the GCP project containing the dataset.
	Project string `json:"-"`
	// Dataset is the dataset containing the source and the rollup tables.
	Dataset string `json:"-"`
	// SourceTable is the raw ridership table.
	SourceTable string `json:"source_table"`
	// HourlyTable is the destination of the hourly rollup.
	HourlyTable string `json:"hourly_table"`
	// DailyTable is the destination of the daily rollup.
	DailyTable string `json:"daily_table"`
}

// New returns a Config for project and dataset with the default table names.
func New(project, dataset string) Config {
	return Config{
		Project:     project,
		Dataset:     dataset,
		SourceTable: DefaultSourceTable,
		HourlyTable: DefaultHourlyTable,
		DailyTable:  DefaultDailyTable,
	}
}

// Merge overrides the table names in c with the non-empty ones found in
// the JSON document content. Project and dataset are never read from the
// file.
func (c *Config) Merge(content []byte) error {
	if len(content) == 0 {
		return nil
	}
	var override Config
	if err := json.Unmarshal(content, &override); err != nil {
		return err
	}
	if override.SourceTable != "" {
		c.SourceTable = override.SourceTable
	}
	if override.HourlyTable != "" {
		c.HourlyTable = override.HourlyTable
	}
	if override.DailyTable != "" {
		c.DailyTable = override.DailyTable
	}
	return nil
}

// Validate checks that every identifier needed to render the rollup
// statements is present.
func (c Config) Validate() error {
	if c.Project == "" {
		return ErrMissingProject
	}
	if c.Dataset == "" {
		return ErrMissingDataset
	}
	if c.SourceTable == "" || c.HourlyTable == "" || c.DailyTable == "" {
		return ErrMissingTable
	}
	return nil
}

// QualifiedName returns the fully qualified name of table, i.e.
// project.dataset.table.
func (c Config) QualifiedName(table string) string {
	return c.Project + "." + c.Dataset + "." + table
}
