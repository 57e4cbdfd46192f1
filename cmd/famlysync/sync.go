package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"famlysync/pkg/auth"
	"famlysync/pkg/catalog"
	"famlysync/pkg/checkpoint"
	"famlysync/pkg/famly"
	"famlysync/pkg/logger"
	"famlysync/pkg/syncer"
	"famlysync/pkg/ui"
)

type syncOptions struct {
	dryRun   bool
	children []string
}

var syncFlags syncOptions

// syncCmd runs a sync with options
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download new images for every child",
	Long: `Download every image newer than each child's checkpoint.

With --dry-run nothing is written: the images that would be downloaded are
listed with their target paths and the checkpoint is left as is.`,
	Example: `  # Sync all children
  famlysync sync

  # See what would be downloaded for one child
  famlysync sync --dry-run --child Ada`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), syncFlags)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVarP(&syncFlags.dryRun, "dry-run", "n", false, "list new images without downloading")
	syncCmd.Flags().StringSliceVar(&syncFlags.children, "child", nil, "only sync these children (id or name, repeatable)")
}

func runSync(ctx context.Context, opts syncOptions) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	token, source, err := auth.NewManager().Resolve(cfg)
	if err != nil {
		return err
	}
	logger.WithField("token_source", source).Debug("Access token resolved")

	ui.PrintBanner()
	ui.PrintInfo("Output", cfg.OutputDir)
	ui.PrintInfo("Checkpoint", cfg.MetadataPath)

	var recorder syncer.Recorder
	if cfg.CatalogPath != "" {
		cat, err := catalog.Open(cfg.CatalogPath)
		if err != nil {
			// the catalog is optional, a broken one must not block downloads
			logger.WithError(err).Warn("Catalog unavailable, continuing without it")
			ui.PrintWarning("Catalog unavailable", err)
		} else {
			defer cat.Close()
			recorder = cat
		}
	}

	client := famly.NewClient(cfg, token, logger.GetLogger())
	store := checkpoint.NewStore(cfg.MetadataPath, logger.GetLogger())
	s := syncer.New(cfg, client, store, recorder, logger.GetLogger())

	report, err := s.Run(ctx, syncer.Options{DryRun: opts.dryRun, Children: opts.children})
	if report != nil {
		printReport(report)
	}
	if err != nil {
		if ctx.Err() != nil {
			ui.PrintWarning("Interrupted, checkpoints of completed children are saved")
			return fmt.Errorf("sync interrupted: %w", err)
		}
		return err
	}

	return nil
}

func printReport(r *syncer.Report) {
	fmt.Fprintln(ui.Out)
	if r.DryRun {
		planned := 0
		for _, c := range r.Children {
			planned += len(c.Planned)
		}
		ui.PrintHighlight(fmt.Sprintf("Dry run: %d images would be downloaded", planned))
		return
	}

	for _, c := range r.Children {
		line := fmt.Sprintf("%s: %d downloaded, %d failed", c.Name, c.Downloaded, c.Failed)
		if c.TagWarnings > 0 {
			line += fmt.Sprintf(", %d without capture date", c.TagWarnings)
		}
		ui.PrintInfo("Child", line)
	}

	elapsed := r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)
	msg := fmt.Sprintf("Done: %d images downloaded in %s", r.Downloaded(), elapsed)
	if r.Failed() > 0 {
		ui.PrintWarning(msg, fmt.Sprintf("%d failed", r.Failed()))
		return
	}
	ui.PrintSuccess(msg)
}
