package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagstate/internal/client"
)

var applyCmd = &cobra.Command{
	Use:   "apply <batch.json>",
	Short: "Apply a batch of operations atomically",
	Long: `Apply a batch of operations to a context as one transaction.
Either every operation lands or none do; a mid-batch failure rolls
back the operations already applied.

The batch file is a JSON array of operations:

  [
    {"type": "activate", "features": ["premium", "beta_ui"]},
    {"type": "deactivate", "features": ["legacy_ui"]},
    {"type": "activate", "features": ["theme"], "value": "dark"}
  ]

Examples:
  flagstate apply batch.json --kind user --id u42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read batch file: %w", err)
		}

		var ops []client.TxnOp
		if err := json.Unmarshal(data, &ops); err != nil {
			return fmt.Errorf("invalid batch JSON: %w", err)
		}
		if len(ops) == 0 {
			return fmt.Errorf("batch file contains no operations")
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		if err := c.Transaction(context.Background(), ctxKind, ctxID, ops); err != nil {
			return fmt.Errorf("transaction failed: %w", err)
		}

		if !quiet {
			fmt.Printf("Applied %d operations for %s/%s\n", len(ops), ctxKind, ctxID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
}
