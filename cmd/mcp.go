package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vargaseous/sec-mcptest/cli"
	"github.com/vargaseous/sec-mcptest/internal/mcpserver"
	"github.com/vargaseous/sec-mcptest/logging"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the view state as MCP tools over stdio",
		Long: `Serve Model Context Protocol tools that read and change the shared view
state. The tools call the State API when it is running and the store
directly otherwise. Logs go to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withSession(cmd, func(_ context.Context, s *session) error {
				return mcpserver.New(s.client, logging.NewLogger("mcp")).Run(ctx)
			})
		},
	}

	cmd.AddCommand(newMCPConfigCmd())
	return cmd
}

func newMCPConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print an mcpServers entry that launches this binary",
		Example: `  viewsync mcp config > .mcp.json
  viewsync --config /etc/viewsync.yml mcp config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			executable, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to resolve executable: %w", err)
			}
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current directory: %w", err)
			}

			var extra []string
			if path := cli.GetOptions(cmd).ConfigFile; path != "" {
				extra = append(extra, "--config", path)
			}

			data, err := mcpserver.ClientConfig(executable, cwd, extra)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
