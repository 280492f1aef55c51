package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var forgetCmd = &cobra.Command{
	Use:   "forget <feature>",
	Short: "Remove a feature's recorded state for a context",
	Long: `Remove a feature's recorded state for a context. The feature
reads as inactive afterwards, same as if it had never been set.

Examples:
  flagstate forget premium --kind user --id u42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		if err := c.Forget(context.Background(), args[0], ctxKind, ctxID); err != nil {
			return fmt.Errorf("failed to forget: %w", err)
		}

		if !quiet {
			fmt.Printf("Forgot '%s' for %s/%s\n", args[0], ctxKind, ctxID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forgetCmd)
}
