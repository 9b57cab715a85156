package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/datasource"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/datasource/httpds"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/ingest"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/parser/csv"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/schema"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/transformer"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/verify"
)

type ingestFlags struct {
	url              string
	chunkSize        int
	table            string
	createTable      bool
	keepDownload     bool
	downloadDir      string
	keepNegative     bool
	tolerance        float64
	hourlySample     int
	insertTimeout    time.Duration
	fetchTimeout     time.Duration
	failOnBatchError bool
}

func addIngestFlags(cmd *cobra.Command, f *ingestFlags) {
	fl := cmd.Flags()
	fl.StringVar(&f.url, "url", "", "CSV location: http(s) URL or local path")
	fl.IntVar(&f.chunkSize, "chunksize", csv.DefaultChunkSize, "Rows per batch")
	fl.StringVar(&f.table, "table", schema.TripsTable, "Target table")
	fl.BoolVar(&f.createTable, "create-table", false, "Create the target table when it does not exist")
	fl.BoolVar(&f.keepDownload, "keep-download", false, "Keep the downloaded file after the run")
	fl.StringVar(&f.downloadDir, "download-dir", "", "Directory for downloads (default system temp dir)")
	fl.BoolVar(&f.keepNegative, "keep-negative", false, "Accept rows with negative fare, distance or passenger count")
	fl.Float64Var(&f.tolerance, "tolerance", verify.DefaultTolerance, "Accepted difference on verified sums")
	fl.IntVar(&f.hourlySample, "hourly-sample", verify.DefaultHourlySample, "Hour-of-pickup rows to log after the load (negative disables)")
	fl.DurationVar(&f.insertTimeout, "insert-timeout", 2*time.Minute, "Timeout for each batch insert attempt")
	fl.DurationVar(&f.fetchTimeout, "fetch-timeout", 30*time.Second, "Timeout for each download attempt to return headers")
	fl.BoolVar(&f.failOnBatchError, "fail-on-batch-error", false, "Exit with code 14 when any batch failed or chunk was skipped")
	_ = cmd.MarkFlagRequired("url")
}

func (f *ingestFlags) validate() error {
	if f.chunkSize <= 0 {
		return fmt.Errorf("%w: --chunksize must be positive, got %d", ErrUsage, f.chunkSize)
	}
	if f.tolerance < 0 {
		return fmt.Errorf("%w: --tolerance must not be negative", ErrUsage)
	}
	if f.insertTimeout <= 0 || f.fetchTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrUsage)
	}
	return nil
}

// NewIngestCmd returns the standalone ingest command.
func NewIngestCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := newIngestCmd(g)
	addGlobalFlags(cmd, g)
	return cmd
}

func newIngestCmd(g *globalFlags) *cobra.Command {
	f := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load a TLC trip CSV into the trips table in batches",
		Long: `Streams a TLC trip record CSV (local path or http(s) URL) into the trips
table in fixed-size batches, retrying transient insert failures, then
verifies row count and fare sums against a pre-load baseline.

Failed batches are logged with their fingerprint and the run continues;
pass --fail-on-batch-error to turn a partial load into exit code 14.`,
		Example: `  ingest --url https://example.org/yellow_tripdata_2019-01.csv --chunksize 50000
  ingest --url ./trips.csv --chunksize 1000 --create-table -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := f.validate(); err != nil {
				return err
			}
			return runIngest(cmd, g, f)
		},
	}
	addIngestFlags(cmd, f)
	return cmd
}

func runIngest(cmd *cobra.Command, g *globalFlags, f *ingestFlags) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	repo, err := a.openRepo(ctx, f.table)
	if err != nil {
		return err
	}
	defer repo.Close()

	client := httpds.NewClient(httpds.Config{Timeout: f.fetchTimeout, Logger: a.logger})
	sum, err := ingest.Run(ctx, repo, ingest.Options{
		Location:    f.url,
		ChunkSize:   f.chunkSize,
		Kind:        a.cfg.DB.Driver,
		Table:       f.table,
		CreateTable: f.createTable,
		Source: datasource.Options{
			Client:       client,
			DownloadDir:  f.downloadDir,
			KeepDownload: f.keepDownload,
			Logger:       a.logger,
		},
		Normalizer:   transformer.Options{KeepNegative: f.keepNegative},
		Loader:       storage.LoaderConfig{InsertTimeout: f.insertTimeout, Logger: a.logger},
		Tolerance:    f.tolerance,
		HourlySample: f.hourlySample,
		Job:          a.cfg.Job,
		Logger:       a.logger,
	})
	fmt.Fprintln(cmd.OutOrStdout(), sum.String())
	if err != nil {
		return err
	}
	if f.failOnBatchError && sum.Partial() {
		return fmt.Errorf("%w: %d failed batches, %d skipped chunks",
			ErrPartialLoad, len(sum.FailedBatches), len(sum.SkippedChunks))
	}
	return nil
}
