package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vargaseous/sec-mcptest/config"
	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/logging"
)

// CommandOptions holds the flags shared by every viewsync command.
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a command carrying the standard persistent
// flags and styled help.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to viewsync.yml config file")

	SetStyledHelp(cmd)
	return cmd
}

// GetOptions extracts the standard options from a command.
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// LoadConfig loads the file named by --config, or the first one found from
// the working directory upwards. It returns the path used ("" when running
// on defaults) and configures logging from the "logging" extension.
func LoadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	opts := GetOptions(cmd)

	var (
		cfg  *config.Config
		path string
		err  error
	)
	if opts.ConfigFile != "" {
		cfg, err = config.Load(opts.ConfigFile)
		path = opts.ConfigFile
	} else {
		var cwd string
		cwd, err = os.Getwd()
		if err != nil {
			return nil, "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
		}
		cfg, path, err = config.LoadFromWithLogger(cwd, logging.NewLogger("config").Logger)
	}
	if err != nil {
		return nil, "", err
	}

	var logCfg logging.Config
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		return nil, "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid logging section")
	}
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	logging.Configure(logCfg)

	return cfg, path, nil
}

// GetLogger returns a component logger honoring --verbose.
func GetLogger(cmd *cobra.Command, component string) *logrus.Entry {
	entry := logging.NewLogger(component)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		entry.Logger.SetLevel(logrus.DebugLevel)
	}
	return entry
}
