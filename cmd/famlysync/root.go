package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"famlysync/pkg/config"
	"famlysync/pkg/logger"
	"famlysync/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	settingsPath string
	logLevel     string
)

// rootCmd runs a sync when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "famlysync",
	Short: "Download the images your children are tagged in on Famly",
	Long: `famlysync downloads every image a child is tagged in on Famly into
<output_dir>/<child>/<year>/<month>/<imageId>.jpg and stamps each file with the
date it was taken.

Runs are incremental: a checkpoint file remembers the newest image seen per
child, so only newer images are fetched next time.

Settings are read from settings.json (see settings.example.json).`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), syncOptions{})
	},
}

// Execute runs the command tree and exits 1 on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError("Error", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "settings", "s", "",
		"settings file (default $"+config.SettingsPathEnv+" or "+config.DefaultSettingsPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the log level (debug, info, warn, error, disabled)")

	rootCmd.SetVersionTemplate(`famlysync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadSettings loads and validates the settings and initializes logging.
// Nothing touches the network before this succeeds.
func loadSettings() (*config.Config, error) {
	cfg, err := config.Load(settingsPath)
	if err != nil {
		if errors.Is(err, config.ErrSettingsNotFound) {
			return nil, fmt.Errorf("%w\nrun `famlysync config init` to create one", err)
		}
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"version":  version,
		"settings": cfg.Source,
	}).Debug("Settings loaded")

	return cfg, nil
}
