package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcanaland/oracle/internal/config"
)

// configCmd represents the config command group
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the Oracle configuration file",
	Long: `Commands for managing the Oracle configuration file.

Environment variables override the file: OPENROUTER_API_KEY (or
ORACLE_API_KEY), ORACLE_BASE_URL, ORACLE_MODEL, ORACLE_LOG_LEVEL and
ORACLE_DATABASE. A .env file in the working directory is read as well.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config file and history database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := currentConfigPath()
		if _, err := config.LoadFile(path); err != nil {
			return fmt.Errorf("error initializing config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Config file initialized at:", path)

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		store, err := a.openStore()
		if err != nil {
			return fmt.Errorf("error initializing history: %w", err)
		}
		defer store.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "History database initialized at:", store.Path())

		if a.cfg.Completion.APIKey == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "\nSet your API key with 'oracle config set completion.api_key KEY'")
			fmt.Fprintln(cmd.OutOrStdout(), "or export OPENROUTER_API_KEY.")
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), currentConfigPath())
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting in the config file",
	Long: `Set writes one setting to the config file. Keys use the dotted TOML
names, for example completion.model or log.level.`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.Keys, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := currentConfigPath()

		// Environment overrides must not be written back to the file.
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Save(path); err != nil {
			return err
		}

		value := args[1]
		if args[0] == "completion.api_key" {
			value = "(hidden)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s set to: %s\n", args[0], value)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
}

func currentConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.GetConfigFilePath()
}
