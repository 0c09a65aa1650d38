package rollup

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/googleapis/google-cloud-go-testing/bigquery/bqiface"
	"github.com/m-lab/rollup-generator/config"
	"google.golang.org/api/iterator"
)

// ErrTotalsMismatch is returned by Verify when a rollup does not account for
// every source row.
var ErrTotalsMismatch = errors.New("rollup totals do not match the source table")

// Totals holds the ridership and transfer sums of a table.
type Totals struct {
	Ridership int64
	Transfers int64
}

// totalsQuery computes the totals of the source table with the same per-row
// conversion used by the rollups, next to the totals of both rollups.
const totalsQuery = `SELECT
    (SELECT SUM(CAST(CAST(ridership AS FLOAT64) AS INT64)) FROM ` + "`%[1]s`" + `) AS source_ridership,
    (SELECT SUM(CAST(CAST(transfers AS FLOAT64) AS INT64)) FROM ` + "`%[1]s`" + `) AS source_transfers,
    (SELECT SUM(ridership) FROM ` + "`%[2]s`" + `) AS hourly_ridership,
    (SELECT SUM(transfer) FROM ` + "`%[2]s`" + `) AS hourly_transfers,
    (SELECT SUM(ridership) FROM ` + "`%[3]s`" + `) AS daily_ridership,
    (SELECT SUM(transfer) FROM ` + "`%[3]s`" + `) AS daily_transfers`

// Verifier checks that the rollup tables preserve the source totals.
type Verifier struct {
	client bqiface.Client
	config config.Config
}

// NewVerifier returns a Verifier reading the tables configured in c.
func NewVerifier(client bqiface.Client, c config.Config) *Verifier {
	return &Verifier{client: client, config: c}
}

func (v *Verifier) query() string {
	c := v.config
	return fmt.Sprintf(totalsQuery, c.QualifiedName(c.SourceTable),
		c.QualifiedName(c.HourlyTable), c.QualifiedName(c.DailyTable))
}

// Verify reads the source and rollup totals and returns ErrTotalsMismatch if
// either rollup lost or double-counted rows.
func (v *Verifier) Verify(ctx context.Context) error {
	it, err := v.client.Query(v.query()).Read(ctx)
	if err != nil {
		return err
	}
	var row map[string]bigquery.Value
	err = it.Next(&row)
	if err == iterator.Done {
		return errors.New("totals query returned no rows")
	}
	if err != nil {
		return err
	}
	source := Totals{toInt(row["source_ridership"]), toInt(row["source_transfers"])}
	hourly := Totals{toInt(row["hourly_ridership"]), toInt(row["hourly_transfers"])}
	daily := Totals{toInt(row["daily_ridership"]), toInt(row["daily_transfers"])}
	if hourly != source {
		return fmt.Errorf("%w: %s has %+v, source has %+v", ErrTotalsMismatch,
			v.config.HourlyTable, hourly, source)
	}
	if daily != source {
		return fmt.Errorf("%w: %s has %+v, source has %+v", ErrTotalsMismatch,
			v.config.DailyTable, daily, source)
	}
	return nil
}

// toInt converts an INT64 column to int64. NULL sums (empty tables) are 0.
func toInt(v bigquery.Value) int64 {
	if i, ok := v.(int64); ok {
		return i
	}
	return 0
}
