package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagstate/internal/client"
)

var (
	activateValue    string
	activateRequires []string
)

var activateCmd = &cobra.Command{
	Use:   "activate <feature>",
	Short: "Turn a feature on for a context",
	Long: `Turn a feature on for a context.

A --value is stored as the feature's state instead of plain true.
With --requires, activation is refused unless every named prerequisite
is already active for the same context.

Examples:
  flagstate activate premium --kind user --id u42
  flagstate activate theme --kind user --id u42 --value '"dark"'
  flagstate activate checkout --kind user --id u42 --requires auth --requires payment`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		c, err := newClient()
		if err != nil {
			return err
		}

		var value any
		if activateValue != "" {
			if err := json.Unmarshal([]byte(activateValue), &value); err != nil {
				return fmt.Errorf("invalid value JSON: %w", err)
			}
		}

		err = c.Activate(context.Background(), key, ctxKind, ctxID, value, activateRequires)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && len(apiErr.Missing) > 0 {
				return fmt.Errorf("prerequisites not met for '%s': %v", key, apiErr.Missing)
			}
			return fmt.Errorf("failed to activate: %w", err)
		}

		if !quiet {
			fmt.Printf("Activated '%s' for %s/%s\n", key, ctxKind, ctxID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activateCmd)

	activateCmd.Flags().StringVar(&activateValue, "value", "", "Feature value as JSON")
	activateCmd.Flags().StringArrayVar(&activateRequires, "requires", nil, "Prerequisite feature (repeatable)")
}
