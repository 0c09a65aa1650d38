package rollup

import (
	"strings"
	"testing"

	"github.com/m-lab/rollup-generator/config"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name        string
		granularity Granularity
		want        []string
		notWant     []string
	}{
		{
			name:        "hourly",
			granularity: Hourly,
			want: []string{
				"CREATE OR REPLACE TABLE `proj.ds.hourly_data` AS",
				"PARSE_TIMESTAMP('%Y-%m-%d %H:%M:%S', transit_timestamp) AS transit_timestamp,",
				"FROM `proj.ds.nyc`",
				"CAST(ridership AS FLOAT64) AS ridership",
				"CAST(transfers AS FLOAT64) AS transfers",
				"SUM(CAST(ridership AS INT64)) AS ridership",
				"SUM(CAST(transfers AS INT64)) AS transfer",
				"GROUP BY\n    transit_timestamp,\n    borough,\n    station_complex,\n    transit_mode,\n    payment_method\n",
			},
			notWant: []string{"DATE(", "transit_date", "daily_data"},
		},
		{
			name:        "daily",
			granularity: Daily,
			want: []string{
				"CREATE OR REPLACE TABLE `proj.ds.daily_data` AS",
				"DATE(PARSE_TIMESTAMP('%Y-%m-%d %H:%M:%S', transit_timestamp)) AS transit_date,",
				"FROM `proj.ds.nyc`",
				"SUM(CAST(ridership AS INT64)) AS ridership",
				"SUM(CAST(transfers AS INT64)) AS transfer",
				"GROUP BY\n    transit_date,\n    borough,\n    station_complex,\n    transit_mode,\n    payment_method\n",
			},
			notWant: []string{"hourly_data", "SUM(CAST(transfer AS"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Render(config.New("proj", "ds"), tt.granularity)
			if err != nil {
				t.Fatalf("Render() returned err: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(q, w) {
					t.Errorf("Render(): missing %q in:\n%s", w, q)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(q, nw) {
					t.Errorf("Render(): unexpected %q in:\n%s", nw, q)
				}
			}
		})
	}
}

func TestRender_Deterministic(t *testing.T) {
	c := config.New("proj", "ds")
	first, err := Render(c, Hourly)
	if err != nil {
		t.Fatalf("Render() returned err: %v", err)
	}
	second, err := Render(c, Hourly)
	if err != nil {
		t.Fatalf("Render() returned err: %v", err)
	}
	if first != second {
		t.Errorf("Render() is not deterministic:\n%s\n%s", first, second)
	}
}

func TestRender_CustomTables(t *testing.T) {
	c := config.New("proj", "ds")
	c.SourceTable = "raw"
	c.DailyTable = "per_day"
	q, err := Render(c, Daily)
	if err != nil {
		t.Fatalf("Render() returned err: %v", err)
	}
	if !strings.Contains(q, "`proj.ds.per_day`") || !strings.Contains(q, "FROM `proj.ds.raw`") {
		t.Errorf("Render() did not use the configured tables:\n%s", q)
	}
}

func TestRender_Errors(t *testing.T) {
	if _, err := Render(config.New("", "ds"), Hourly); err != config.ErrMissingProject {
		t.Errorf("Render(): expected %v, got %v", config.ErrMissingProject, err)
	}
	if _, err := Render(config.New("proj", ""), Daily); err != config.ErrMissingDataset {
		t.Errorf("Render(): expected %v, got %v", config.ErrMissingDataset, err)
	}
	if _, err := Render(config.New("proj", "ds"), Granularity(7)); err == nil {
		t.Errorf("Render(): expected err for unknown granularity, got nil")
	}
}

func TestGranularity_String(t *testing.T) {
	if Hourly.String() != "hourly" || Daily.String() != "daily" {
		t.Errorf("String(): got %s, %s", Hourly, Daily)
	}
	if Granularity(3).String() != "Granularity(3)" {
		t.Errorf("String(): got %s", Granularity(3))
	}
}
