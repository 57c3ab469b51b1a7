package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alanmeadows/autodev/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage autodev configuration",
	Long:  `Show and modify autodev configuration values.`,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a config value by dotted key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		value, err := config.Get(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%v\n", value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Set a configuration value using a dotted key path. The value is written
to the user-level config file and merged on next load.

Examples:
  autodev config set ai.command claude
  autodev config set workflows.max_review_iterations 5
  autodev config set workflows.require_human_approval false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all config keys with their effective values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		keys, err := config.Keys(cfg)
		if err != nil {
			return err
		}
		for _, key := range keys {
			value, err := config.Get(cfg, key)
			if err != nil {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the merged configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		redacted := *cfg
		if redacted.GitHub.Token != "" {
			redacted.GitHub.Token = "***"
		}
		data, err := yaml.Marshal(redacted)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}
