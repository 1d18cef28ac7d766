package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixml/artsearch/infrastructure/persistence"
	"github.com/helixml/artsearch/infrastructure/source"
)

func preloadCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preload",
		Short: "Cache remote collection data locally before ingestion",
	}
	cmd.AddCommand(preloadMetCmd(flags))
	return cmd
}

func preloadMetCmd(flags *globalFlags) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "met",
		Short: "Cache Met collection objects that have images",
		Long: `Search the Metropolitan Museum collection API for objects with images and
store the ones not yet cached in the index database. Run "artsearch ingest
--source met" afterwards to embed them.

Environment variables:
  SOURCE_MET_BASE_URL          Collection API base URL
  SOURCE_MET_RATE_LIMIT        Requests per second (default: 80)
  SOURCE_MET_WORKERS           Concurrent object fetches (default: 8)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			src := cfg.Source()
			if workers <= 0 {
				workers = src.MetWorkers()
			}

			client, logger, err := openClient(cfg, "preload met")
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			preloader := source.NewMetPreloader(persistence.NewMetObjectStore(client.Database()),
				source.WithMetBaseURL(src.MetBaseURL()),
				source.WithMetRateLimit(src.MetRateLimit()),
				source.WithMetWorkers(workers),
				source.WithMetLogger(logger),
			)
			report, err := preloader.Preload(cmd.Context())
			if err != nil {
				return fmt.Errorf("preload met: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "found=%d cached=%d fetched=%d stored=%d skipped=%d failed=%d\n",
				report.Found, report.Cached, report.Fetched, report.Stored, report.Skipped, report.Failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent object fetches (default: SOURCE_MET_WORKERS)")

	return cmd
}
