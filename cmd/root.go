package cmd

import (
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Ask the tarot Oracle for a reading",
	Long: `Oracle draws tarot cards and asks a language model to interpret them.
When the model cannot be reached the reading is composed offline from the
same cards, so a question is always answered.

Readings are kept in a local history that can be searched, renamed,
starred and summarised.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/oracle/config.toml)")

	RootCmd.AddCommand(validateCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}
