package cli

import (
	"github.com/spf13/cobra"

	"github.com/mark3labs/swagger2client/internal/mcpserver"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve client generation as MCP tools over stdio",
		Long:  "Start a Model Context Protocol server on stdin/stdout exposing the generate_client and describe_client tools.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			return mcpserver.Run(cmd.Context(), Version, newLogger(verbose))
		},
	}
}
