// Package main is the entry point for the artsearch CLI.
//
//	@title			Artsearch API
//	@version		1.0
//	@description	Image similarity search over museum collections
//	@host			localhost:8080
//	@BasePath		/api/v1
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixml/artsearch"
	"github.com/helixml/artsearch/internal/config"
	"github.com/helixml/artsearch/internal/log"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command that talks to the index.
type globalFlags struct {
	envFile    string
	configFile string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "artsearch",
		Short: "Museum artwork similarity search",
		Long: `Artsearch indexes museum collection images with a multimodal embedding service
and answers "find artworks like this" queries over HTTP and MCP.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. YAML config file (--config)
  3. .env file (--env-file, or .env in the current directory)
  4. Environment variables
  5. Command line flags`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "Path to a YAML file of configuration variables")

	cmd.AddCommand(serveCmd(flags))
	cmd.AddCommand(ingestCmd(flags))
	cmd.AddCommand(preloadCmd(flags))
	cmd.AddCommand(stdioCmd(flags))
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from the YAML file, the .env file and
// environment variables.
func loadConfig(flags *globalFlags) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(flags.envFile, flags.configFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openClient configures logging and builds a Client from cfg.
func openClient(cfg config.AppConfig, command string) (*artsearch.Client, *slog.Logger, error) {
	logger := log.Configure(cfg).Slog()

	attrs := append([]slog.Attr{
		slog.String("version", version),
		slog.String("command", command),
	}, cfg.LogAttrs()...)
	logger.LogAttrs(context.Background(), slog.LevelInfo, "starting artsearch", attrs...)

	opts := append(artsearch.OptionsFromConfig(cfg), artsearch.WithLogger(logger))
	client, err := artsearch.New(opts...)
	if err != nil {
		return nil, logger, fmt.Errorf("create artsearch client: %w", err)
	}
	return client, logger, nil
}

func closeClient(client *artsearch.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Error("failed to close artsearch client", slog.Any("error", err))
	}
}
