package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagstate/internal/cli"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every feature with recorded state for a context",
	Long: `List every feature that has recorded state for a context.

Examples:
  flagstate list --kind user --id u42
  flagstate list --kind org --id acme --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		features, err := c.ContextFeatures(context.Background(), ctxKind, ctxID)
		if err != nil {
			return fmt.Errorf("failed to list features: %w", err)
		}

		if !quiet {
			return cli.PrintFeatures(features, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
