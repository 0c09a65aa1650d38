package rollup

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"cloud.google.com/go/bigquery"
	"github.com/googleapis/google-cloud-go-testing/bigquery/bqiface"
	"github.com/m-lab/rollup-generator/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/api/googleapi"
)

var (
	queryBytesProcessMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rollup_generator_bytes_processed",
		Help: "Bytes processed by the last rollup statement",
	}, []string{
		"table",
	})
	updatesMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollup_generator_updates_total",
		Help: "Number of rollup table updates, by outcome",
	}, []string{
		"table", "status",
	})
)

// Executor runs a single SQL statement and blocks until it has been fully
// applied or has failed.
type Executor interface {
	Execute(ctx context.Context, sql string) (*bigquery.JobStatus, error)
}

// BigQueryExecutor runs statements as BigQuery query jobs.
type BigQueryExecutor struct {
	client bqiface.Client
}

// NewBigQueryExecutor returns an Executor backed by client.
func NewBigQueryExecutor(client bqiface.Client) *BigQueryExecutor {
	return &BigQueryExecutor{client: client}
}

// Execute submits sql and waits for the job to complete. Errors from the
// BigQuery client or from the job itself are returned as-is.
func (e *BigQueryExecutor) Execute(ctx context.Context, sql string) (*bigquery.JobStatus, error) {
	q := e.client.Query(sql)
	job, err := q.Run(ctx)
	if err != nil {
		return nil, err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if status.Err() != nil {
		return status, status.Err()
	}
	return status, nil
}

// Table is a rollup table generated from the source ridership table.
type Table struct {
	// Granularity is the time resolution of this table.
	Granularity Granularity

	config   config.Config
	executor Executor
}

// NewTable returns a new Table of granularity g written to the location
// described by c through executor.
func NewTable(c config.Config, g Granularity, executor Executor) *Table {
	return &Table{
		Granularity: g,
		config:      c,
		executor:    executor,
	}
}

// Name returns the fully qualified name of this table.
func (t *Table) Name() string {
	return t.config.QualifiedName(t.Granularity.Destination(t.config))
}

// Update recomputes the whole table from the source table, replacing any
// previous version of it.
func (t *Table) Update(ctx context.Context) error {
	q, err := Render(t.config, t.Granularity)
	if err != nil {
		return err
	}
	log.Printf("Generating %s rollup for table %s\n", t.Granularity, t.Name())
	status, err := t.executor.Execute(ctx, q)
	updatesMetric.WithLabelValues(t.Name(), statusLabel(err)).Inc()
	if status != nil && status.Statistics != nil {
		queryBytesProcessMetric.WithLabelValues(t.Name()).
			Set(float64(status.Statistics.TotalBytesProcessed))
	}
	return err
}

// statusLabel maps the outcome of a statement to a metric label. Errors
// returned by the BigQuery API are labelled with their HTTP status code.
func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusNotFound {
			return "notfound"
		}
		return strconv.Itoa(gerr.Code)
	}
	return "error"
}
