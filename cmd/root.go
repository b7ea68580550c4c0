// Package cmd wires the viewsync command tree.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vargaseous/sec-mcptest/cli"
	"github.com/vargaseous/sec-mcptest/pkg/profiling"
)

// NewRootCmd returns the viewsync root command with every subcommand.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"viewsync",
		"Shared map view state for dashboards, CLIs and agents",
	)
	root.Long = `viewsync keeps one shared view state (facility filters, map center and
zoom) in a key/value store and announces every change on a pub/sub channel.
Dashboards poll for changes while agents and scripts write through the HTTP
State API or the MCP tools.`

	root.AddCommand(
		newServeCmd(),
		newMCPCmd(),
		newWatchCmd(),
		newStateCmd(),
		newFiltersCmd(),
		newMapCmd(),
		newFClassesCmd(),
		newHealthCmd(),
		newConfigCmd(),
		newPathsCmd(),
		cli.NewVersionCommand("viewsync"),
	)

	profiling.New().Attach(root)
	return root
}
