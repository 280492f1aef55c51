package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagstate/internal/cli"
)

var stateScopes []string

var stateCmd = &cobra.Command{
	Use:   "state <feature>",
	Short: "Read the effective state of a feature for a context",
	Long: `Read the effective state of a feature for a context.

Scope dimensions narrow the lookup to a matching scoped record when
one exists; otherwise the plain per-context state is returned.

Examples:
  flagstate state premium --kind user --id u42
  flagstate state beta_ui --kind user --id u42 --scope company_id=10 --scope org_id=7`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		dims := make(map[string]string, len(stateScopes))
		for _, pair := range stateScopes {
			dim, val, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("invalid scope '%s', expected dim=value", pair)
			}
			dims[dim] = val
		}

		state, err := c.State(context.Background(), args[0], ctxKind, ctxID, dims)
		if err != nil {
			return fmt.Errorf("failed to read state: %w", err)
		}

		if !quiet {
			return cli.PrintFeatures(map[string]any{state.Feature: state.Value}, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.Flags().StringArrayVar(&stateScopes, "scope", nil, "Scope dimension as dim=value (repeatable)")
}
