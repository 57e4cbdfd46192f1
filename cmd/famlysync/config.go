package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"famlysync/pkg/config"
	"famlysync/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the settings file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings template",
	Long: `Write a settings file with the required keys and a placeholder token.

The file is created at --settings (default ` + config.DefaultSettingsPath + `) and is
never overwritten.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ResolvePath(settingsPath)
		if err := config.WriteTemplate(path); err != nil {
			return err
		}
		ui.PrintSuccess("Created " + path)
		fmt.Fprintf(ui.Out, "Replace %s with your token, or run `famlysync auth set-token`\n", config.TokenPlaceholder)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the settings file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(settingsPath)
		if err != nil {
			return err
		}
		ui.PrintSuccess("Settings OK: " + cfg.Source)
		if !cfg.HasToken() {
			ui.PrintWarning("access_token is not set, the stored token will be used")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}
