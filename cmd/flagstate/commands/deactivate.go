package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <feature>",
	Short: "Turn a feature off for a context",
	Long: `Turn a feature off for a context. The feature keeps a recorded
state of false; use 'forget' to remove the record entirely.

Examples:
  flagstate deactivate premium --kind user --id u42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		if err := c.Deactivate(context.Background(), args[0], ctxKind, ctxID); err != nil {
			return fmt.Errorf("failed to deactivate: %w", err)
		}

		if !quiet {
			fmt.Printf("Deactivated '%s' for %s/%s\n", args[0], ctxKind, ctxID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deactivateCmd)
}
