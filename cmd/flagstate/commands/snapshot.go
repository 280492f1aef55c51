package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagstate/internal/cli"
)

var (
	snapshotLabel    string
	snapshotFeatures []string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage point-in-time snapshots of a context's state",
	Long:  `Capture, list, restore and delete snapshots of a context's feature state.`,
}

var snapshotCaptureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture the current state of a context",
	Long: `Capture the current feature state of a context into a snapshot.

Examples:
  flagstate snapshot capture --kind user --id u42
  flagstate snapshot capture --kind user --id u42 --label "before migration"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		snap, err := c.SnapshotCapture(context.Background(), ctxKind, ctxID, snapshotLabel)
		if err != nil {
			return fmt.Errorf("failed to capture snapshot: %w", err)
		}

		if !quiet {
			fmt.Printf("Captured snapshot %s (%s) with %d features\n", snap.ID, snap.Label, len(snap.Features))
		}
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a context's snapshots, newest first",
	Long: `List a context's snapshots, newest first.

Examples:
  flagstate snapshot list --kind user --id u42
  flagstate snapshot list --kind user --id u42 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		snaps, err := c.SnapshotList(context.Background(), ctxKind, ctxID)
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}

		if !quiet {
			return cli.PrintSnapshots(snaps, cli.OutputFormat(format))
		}
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot-id>",
	Short: "Rewind a context to a snapshot",
	Long: `Rewind a context's feature state to a snapshot. With --feature,
only the named features are restored.

Examples:
  flagstate snapshot restore 2f9c... --kind user --id u42
  flagstate snapshot restore 2f9c... --kind user --id u42 --feature premium --feature theme`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		err = c.SnapshotRestore(context.Background(), args[0], ctxKind, ctxID, snapshotFeatures)
		if err != nil {
			return fmt.Errorf("failed to restore snapshot: %w", err)
		}

		if !quiet {
			fmt.Printf("Restored snapshot %s for %s/%s\n", args[0], ctxKind, ctxID)
		}
		return nil
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <snapshot-id>",
	Short: "Discard a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		if err := c.SnapshotDelete(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete snapshot: %w", err)
		}

		if !quiet {
			fmt.Printf("Deleted snapshot %s\n", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotCaptureCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)

	snapshotCaptureCmd.Flags().StringVar(&snapshotLabel, "label", "", "Human-readable snapshot label")
	snapshotRestoreCmd.Flags().StringArrayVar(&snapshotFeatures, "feature", nil, "Restore only this feature (repeatable)")
}
