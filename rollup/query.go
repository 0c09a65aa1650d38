// Package rollup renders and runs the statements materializing the hourly and
// daily ridership rollups.
package rollup

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/m-lab/rollup-generator/config"
)

// Granularity is the time resolution of a rollup table.
type Granularity int

const (
	Hourly Granularity = iota
	Daily
)

// timestampFormat is the layout of transit_timestamp in the source table.
const timestampFormat = "%Y-%m-%d %H:%M:%S"

// rollupTpl builds a rollup table from the source table. Every column is
// read the same way for both granularities, only the time key changes.
// PARSE_TIMESTAMP fails the whole statement when a value does not match
// the expected layout.
const rollupTpl = `CREATE OR REPLACE TABLE ` + "`{{.Dest}}`" + ` AS
WITH relevant_cols_data AS (
    SELECT
        {{.TimeKey}} AS {{.TimeColumn}},
        borough,
        station_complex,
        transit_mode,
        payment_method,
        fare_class_category,
        CAST(ridership AS FLOAT64) AS ridership,
        CAST(transfers AS FLOAT64) AS transfers,
        latitude,
        longitude
    FROM ` + "`{{.Source}}`" + `
)
SELECT
    {{.TimeColumn}},
    borough,
    station_complex,
    transit_mode,
    payment_method,
    SUM(CAST(ridership AS INT64)) AS ridership,
    SUM(CAST(transfers AS INT64)) AS transfer
FROM relevant_cols_data
GROUP BY
    {{.TimeColumn}},
    borough,
    station_complex,
    transit_mode,
    payment_method
`

var queryTpl = template.Must(template.New("rollup").Parse(rollupTpl))

func (g Granularity) String() string {
	switch g {
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	}
	return fmt.Sprintf("Granularity(%d)", int(g))
}

// TimeColumn returns the name of the time key column of the rollup.
func (g Granularity) TimeColumn() string {
	if g == Daily {
		return "transit_date"
	}
	return "transit_timestamp"
}

// timeKey returns the expression computing the time key from a source row.
func (g Granularity) timeKey() string {
	ts := fmt.Sprintf("PARSE_TIMESTAMP('%s', transit_timestamp)", timestampFormat)
	if g == Daily {
		return "DATE(" + ts + ")"
	}
	return ts
}

// Destination returns the table a rollup of granularity g is written to.
func (g Granularity) Destination(c config.Config) string {
	if g == Daily {
		return c.DailyTable
	}
	return c.HourlyTable
}

// Render returns the statement replacing the rollup table of granularity g
// in the project and dataset configured in c.
func Render(c config.Config, g Granularity) (string, error) {
	if g != Hourly && g != Daily {
		return "", fmt.Errorf("unknown granularity: %v", g)
	}
	if err := c.Validate(); err != nil {
		return "", err
	}
	q := &bytes.Buffer{}
	err := queryTpl.Execute(q, map[string]string{
		"Dest":       c.QualifiedName(g.Destination(c)),
		"Source":     c.QualifiedName(c.SourceTable),
		"TimeKey":    g.timeKey(),
		"TimeColumn": g.TimeColumn(),
	})
	if err != nil {
		return "", err
	}
	return q.String(), nil
}
