package main

import (
	"github.com/spf13/cobra"

	"github.com/helixml/artsearch/internal/mcp"
)

func stdioCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio so assistants can
search the collection. Logs go to stderr.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			client, logger, err := openClient(cfg, "stdio")
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			return mcp.NewServer(client.Search, version, logger).ServeStdio()
		},
	}
}
