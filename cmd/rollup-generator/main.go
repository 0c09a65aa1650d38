package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"runtime"

	"cloud.google.com/go/bigquery"
	"github.com/googleapis/google-cloud-go-testing/bigquery/bqiface"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/rollup-generator/config"
	"github.com/m-lab/rollup-generator/pipeline"
	"github.com/m-lab/rollup-generator/rollup"
)

var (
	project     string
	dataset     string
	sourceTable string
	hourlyTable string
	dailyTable  string
	listenAddr  string
	concurrent  bool
	verify      bool

	configFile = flagx.File{}
	mainCtx    = context.Background()
)

func init() {
	// Flag names map to GCP_PROJECT_ID and BQ_DATASET through ArgsFromEnv.
	flag.StringVar(&project, "gcp.project_id", "", "GCP Project ID to use")
	flag.StringVar(&dataset, "bq.dataset", "",
		"Dataset containing the source table and the rollup tables")
	flag.StringVar(&sourceTable, "source.table", config.DefaultSourceTable,
		"Raw ridership table")
	flag.StringVar(&hourlyTable, "hourly.table", config.DefaultHourlyTable,
		"Destination table for the hourly rollup")
	flag.StringVar(&dailyTable, "daily.table", config.DefaultDailyTable,
		"Destination table for the daily rollup")
	flag.StringVar(&listenAddr, "listenaddr", "",
		"If set, serve /v0/rollup on this address instead of running once")
	flag.BoolVar(&concurrent, "concurrent", false,
		"Run the hourly and daily statements in parallel")
	flag.BoolVar(&verify, "verify", false,
		"Check that the rollup totals match the source table")
	flag.Var(&configFile, "config",
		"Optional JSON file overriding the table names")
}

// loadConfig builds the configuration from the command line, the environment
// and the optional config file.
func loadConfig() (config.Config, error) {
	c := config.New(project, dataset)
	c.SourceTable = sourceTable
	c.HourlyTable = hourlyTable
	c.DailyTable = dailyTable
	if err := c.Merge(configFile.Get()); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func newGenerator(c config.Config, client bqiface.Client) *pipeline.Generator {
	ex := rollup.NewBigQueryExecutor(client)
	g := pipeline.NewGenerator(rollup.NewTable(c, rollup.Hourly, ex),
		rollup.NewTable(c, rollup.Daily, ex))
	g.Concurrent = concurrent
	if verify {
		g.Verifier = rollup.NewVerifier(client, c)
	}
	return g
}

func makeHTTPServer(listenAddr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:    listenAddr,
		Handler: h,
	}
}

func main() {
	flag.Parse()
	log.SetFlags(log.LUTC | log.Lshortfile | log.LstdFlags)
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")

	// Configuration errors must stop the program before any BigQuery call.
	c, err := loadConfig()
	rtx.Must(err, "Invalid configuration")

	bqClient, err := bigquery.NewClient(mainCtx, c.Project)
	rtx.Must(err, "error initializing BQ client")
	defer bqClient.Close()

	gen := newGenerator(c, bqiface.AdaptClient(bqClient))

	if listenAddr == "" {
		_, err = gen.Run(mainCtx)
		rtx.Must(err, "Cannot generate rollup tables")
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/v0/rollup", pipeline.NewHandler(gen))

	log.Printf("GOMAXPROCS is %d", runtime.GOMAXPROCS(0))

	s := makeHTTPServer(listenAddr, mux)
	rtx.Must(httpx.ListenAndServeAsync(s), "Could not start HTTP server")
	defer s.Close()

	// Start Prometheus server for monitoring.
	promServer := prometheusx.MustServeMetrics()
	defer promServer.Close()

	// Keep serving until the context is canceled.
	<-mainCtx.Done()
}
