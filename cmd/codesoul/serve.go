package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/codesoul/internal/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := mcp.NewServer(a.cfg, a.logger)
			if err != nil {
				return err
			}

			a.logger.Info().Str("version", version).Msg("MCP server ready, listening on stdio")
			err = server.Serve(cmd.Context())
			a.logger.Info().Msg("server stopped")
			return err
		},
	}
}
