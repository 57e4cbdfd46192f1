package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"famlysync/pkg/checkpoint"
	"famlysync/pkg/logger"
	"famlysync/pkg/ui"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or reset the sync checkpoint",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cutoff stored for each child",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCheckpoint()
		if err != nil {
			return err
		}
		state, err := store.Load()
		if err != nil {
			return err
		}

		ui.PrintInfo("File", store.Path())
		if state.IsEmpty() {
			fmt.Fprintln(ui.Out, "No checkpoint yet, the next sync downloads everything")
			return nil
		}
		if state.CutoffDate != "" {
			ui.PrintInfo("Legacy cutoff", state.CutoffDate)
		}
		for _, id := range state.ChildIDs() {
			ts := state.Children[id]
			if t := state.CutoffFor(id); t != nil {
				ts = t.Local().Format(time.RFC1123)
			}
			ui.PrintInfo(id, ts)
		}
		return nil
	},
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset [childId]",
	Short: "Forget the cutoff of one child, or of all children",
	Long: `Forget the stored cutoff so the next sync downloads the full history again.

Without a child id every entry is removed, including a legacy cutoff_date.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCheckpoint()
		if err != nil {
			return err
		}

		var childID string
		if len(args) == 1 {
			childID = args[0]
		}
		if err := store.Reset(childID); err != nil {
			return err
		}

		if childID == "" {
			ui.PrintSuccess("Checkpoint cleared")
		} else {
			ui.PrintSuccess("Checkpoint cleared for " + childID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointResetCmd)
}

func openCheckpoint() (*checkpoint.Store, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return checkpoint.NewStore(cfg.MetadataPath, logger.GetLogger()), nil
}
