package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"famlysync/pkg/catalog"
	"famlysync/pkg/ui"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Query the local catalog of downloaded images",
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show image counts per child and the last run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		if cfg.CatalogPath == "" {
			return errors.New("catalog disabled (catalog_path is empty)")
		}
		if _, err := os.Stat(cfg.CatalogPath); os.IsNotExist(err) {
			fmt.Fprintln(ui.Out, "No catalog yet, run a sync first")
			return nil
		}

		cat, err := catalog.Open(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer cat.Close()

		ctx := cmd.Context()
		stats, err := cat.Stats(ctx)
		if err != nil {
			return err
		}
		for _, s := range stats {
			ui.PrintInfo(s.ChildName, fmt.Sprintf("%d images, %s, newest %s",
				s.Images, humanBytes(s.Bytes), s.Newest.Local().Format("2006-01-02")))
		}

		last, err := cat.LastRun(ctx)
		if err != nil {
			return err
		}
		if last != nil {
			status := "unfinished"
			if last.FinishedAt != nil {
				status = fmt.Sprintf("%d downloaded, %d failed", last.Downloaded, last.Failed)
			}
			ui.PrintInfo("Last run", fmt.Sprintf("%s (%s)", last.StartedAt.Local().Format(time.RFC1123), status))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogStatsCmd)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
