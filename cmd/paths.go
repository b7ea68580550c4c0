package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vargaseous/sec-mcptest/cli"
	"github.com/vargaseous/sec-mcptest/pkg/paths"
)

// PathsOutput lists the XDG paths viewsync reads and writes.
type PathsOutput struct {
	ConfigDir  string `json:"config_dir"`
	StateDir   string `json:"state_dir"`
	PidFile    string `json:"pid_file"`
	SQLitePath string `json:"sqlite_path"`
}

func newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the XDG paths used by viewsync",
		Long: `Print the directories viewsync uses:
- config_dir: last place viewsync.yml is looked up
- state_dir: the sqlite store and the server PID file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := PathsOutput{
				ConfigDir:  paths.ConfigDir(),
				StateDir:   paths.StateDir(),
				PidFile:    paths.PidFilePath(),
				SQLitePath: paths.SQLitePath(),
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd, out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "config_dir:  %s\n", out.ConfigDir)
			fmt.Fprintf(w, "state_dir:   %s\n", out.StateDir)
			fmt.Fprintf(w, "pid_file:    %s\n", out.PidFile)
			fmt.Fprintf(w, "sqlite_path: %s\n", out.SQLitePath)
			return nil
		},
	}
}
