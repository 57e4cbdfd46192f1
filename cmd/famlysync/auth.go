package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"famlysync/pkg/auth"
	"famlysync/pkg/config"
	"famlysync/pkg/ui"
)

// authCmd groups the token commands
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Famly access token",
	Long: `Manage the Famly access token.

A token in the settings file always wins. When access_token is empty or
still the ` + config.TokenPlaceholder + ` placeholder, the token stored with
'famlysync auth set-token' in the system keychain is used, then the
` + auth.TokenEnv + ` environment variable.`,
}

var setTokenCmd = &cobra.Command{
	Use:   "set-token",
	Short: "Store the access token in the system keychain",
	Args:  cobra.NoArgs,
	RunE:  runSetToken,
}

var clearTokenCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := auth.NewManager().Delete(auth.DefaultAccount)
		if errors.Is(err, auth.ErrTokenNotFound) {
			ui.PrintWarning("No stored token")
			return nil
		}
		if err != nil {
			return err
		}
		ui.PrintSuccess("Stored token removed")
		return nil
	},
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which access token a sync would use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(settingsPath)
		if err != nil {
			if !errors.Is(err, config.ErrSettingsNotFound) {
				return err
			}
			cfg = config.DefaultConfig()
			cfg.Source = config.ResolvePath(settingsPath)
		}

		token, source, err := auth.NewManager().Resolve(cfg)
		if err != nil {
			ui.PrintWarning("No access token", err)
			return nil
		}
		ui.PrintInfo("Source", source)
		ui.PrintInfo("Token", auth.Mask(token))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(setTokenCmd)
	authCmd.AddCommand(clearTokenCmd)
	authCmd.AddCommand(tokenStatusCmd)
}

func runSetToken(cmd *cobra.Command, args []string) error {
	auth.ShowTokenGuide(ui.Out)

	fmt.Fprint(ui.Out, "\nAccess token (hidden): ")
	token, err := readPassword()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	if err := auth.NewManager().Store(auth.DefaultAccount, token); err != nil {
		return err
	}

	ui.PrintSuccess("Token stored: " + auth.Mask(strings.TrimSpace(token)))
	fmt.Fprintf(ui.Out, "\nLeave access_token as %q in settings.json to use it.\n", config.TokenPlaceholder)
	return nil
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Out)
		if err == nil {
			return string(password), nil
		}
	}

	// piped input
	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
