package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixml/artsearch"
	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/infrastructure/source"
	"github.com/helixml/artsearch/infrastructure/tracking"
	"github.com/helixml/artsearch/internal/config"
)

// progressInterval is the minimum gap between progress log lines.
const progressInterval = 5 * time.Second

// ingestFlags holds command line overrides for an ingestion run.
type ingestFlags struct {
	source      string
	path        string
	target      string
	limit       int
	reset       bool
	chunkSize   int
	concurrency int
}

func ingestCmd(flags *globalFlags) *cobra.Command {
	f := &ingestFlags{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed collection records and write them to the index",
		Long: `Read artwork records from a source, embed each image and write the vectors to
the search index. Records that fail to embed and chunks that fail to write are
logged and skipped.

Sources:
  csv    A CSV export file, or a directory of them (SOURCE_CSV_PATH)
  blob   CSV files dropped in an S3-compatible bucket (SOURCE_BLOB_*)
  nga    The NGA open-data PostgreSQL database (SOURCE_NGA_DB_URL)
  met    Met objects cached by "artsearch preload met"

Environment variables:
  SOURCE_TYPE                  csv, blob, nga or met (default: csv)
  INGEST_RECORD_LIMIT          Records to read, -1 for all (default: -1)
  INGEST_CHUNK_SIZE            Documents per bulk write, at most 1000 (default: 1000)
  INGEST_CONCURRENCY           Records embedded at once (default: CPU count)
  INDEX_RESET                  Drop and recreate the index first (default: true)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			srcCfg, err := sourceOverrides(cfg.Source(), f)
			if err != nil {
				return err
			}
			target, err := artsearch.ParseTarget(f.target)
			if err != nil {
				return err
			}

			client, logger, err := openClient(cfg, "ingest")
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			ctx := cmd.Context()
			opened, err := source.Open(ctx, srcCfg, client.Database(), logger)
			if err != nil {
				return fmt.Errorf("open %s source: %w", srcCfg.Type(), err)
			}
			defer opened.Close()

			progress := tracking.NewCooldown(tracking.NewLoggingReporter(logger), progressInterval)
			defer func() { _ = progress.Close() }()

			opts := []artsearch.IngestOption{
				artsearch.WithTarget(target),
				artsearch.WithRunOptions(search.WithProgress(tracking.Callback(ctx, progress, string(target)))),
			}
			if cmd.Flags().Changed("limit") {
				opts = append(opts, artsearch.WithRecordLimit(f.limit))
			}
			if cmd.Flags().Changed("reset") {
				opts = append(opts, artsearch.WithReset(f.reset))
			}
			if f.chunkSize > 0 {
				opts = append(opts, artsearch.WithChunkSize(config.ClampChunkSize(f.chunkSize)))
			}
			if f.concurrency > 0 {
				opts = append(opts, artsearch.WithConcurrency(f.concurrency))
			}

			report, err := client.Ingest(ctx, opened.Source, opts...)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			logger.Info("ingestion finished", append([]any{slog.String("run_id", report.RunID)}, report.LogAttrs()...)...)
			fmt.Fprintf(cmd.OutOrStdout(), "records=%d embedded=%d failed=%d duplicates=%d written=%d chunks_failed=%d\n",
				report.Records, report.Embedded, report.Failed, report.Duplicates, report.Written, report.ChunksFailed)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.source, "source", "", "Record source: csv, blob, nga, met")
	cmd.Flags().StringVar(&f.path, "path", "", "CSV file or directory (csv source)")
	cmd.Flags().StringVar(&f.target, "target", string(artsearch.TargetImage), "Index to fill: image or description")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum records to read (<= 0 reads all)")
	cmd.Flags().BoolVar(&f.reset, "reset", true, "Drop and recreate the index before writing")
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", 0, "Documents per bulk write")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Records embedded at once")

	return cmd
}

// sourceOverrides applies --source and --path to the configured source.
func sourceOverrides(cfg config.SourceConfig, f *ingestFlags) (config.SourceConfig, error) {
	if f.source != "" {
		kind, err := config.ParseSourceType(f.source)
		if err != nil {
			return cfg, err
		}
		cfg = cfg.WithType(kind)
	}
	if f.path != "" {
		cfg = cfg.WithCSVPath(f.path)
	}
	return cfg, nil
}
