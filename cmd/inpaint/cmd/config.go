package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/inpaint/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd groups the configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and generate configuration files",
	Long: `Inspect the effective configuration or write a default configuration file.

Configuration is resolved from flags, INPAINT_* environment variables,
the config file and built-in defaults, in that order.`,
}

var configInitCmd = &cobra.Command{
	Use:          "init [file]",
	Short:        "Write a configuration file with the default values",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			filename = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(filename); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", filename)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.GenerateDefaultConfigFile(filename); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", filename)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:          "show",
	Short:        "Print the effective configuration as YAML",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if used := GetConfigLoader().GetConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(out, "# config file: %s\n", used)
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
