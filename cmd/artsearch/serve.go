package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/helixml/artsearch/infrastructure/api"
	"github.com/helixml/artsearch/internal/config"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Routes:
  POST /api/v1/search/image-url      Similar artworks for an image URL
  POST /api/v1/search/image-stream   Similar artworks for an uploaded image
  POST /api/v1/search/text           Artworks matching a text query
  POST /api/v1/search/description    Artworks whose catalogue text matches a query
  GET  /health/{startup,liveness,readiness}
  GET  /docs                         Swagger UI
  POST /mcp                          MCP over streamable HTTP

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATA_DIR                     Data directory (default: ~/.artsearch)
  DB_URL                       Database URL (default: sqlite:///{data_dir}/artsearch.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  CORS_ALLOWED_ORIGINS         Comma-separated allowed origins (default: *)
  SEARCH_TOP_K                 Default number of results (default: 3)

  VISION_ENDPOINT_*            Multimodal embedding service
    BASE_URL                   Service base URL
    API_KEY                    Subscription key (or TENANT_ID, CLIENT_ID, CLIENT_SECRET)
    TIMEOUT                    Request timeout in seconds (default: 10)
    MAX_RETRIES                Retries after a 429 with Retry-After (default: 3)

  TEXT_ENDPOINT_*              Optional description embedding service
    BASE_URL, MODEL, API_KEY

  INDEX_NAME                   Image index name (default: gallerydata-v)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			cfg = applyServeOverrides(cfg, host, port)

			client, logger, err := openClient(cfg, "serve")
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			apiServer := api.NewAPIServer(client, cfg.CORSOrigins(), version)
			logger.Info("starting server", slog.String("addr", cfg.Addr()))
			return apiServer.ListenAndServe(cmd.Context(), cfg.Addr())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
