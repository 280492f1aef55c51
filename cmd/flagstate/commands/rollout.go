package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	rolloutPercentage int
	rolloutSeed       string
)

var rolloutCmd = &cobra.Command{
	Use:   "rollout <feature>",
	Short: "Evaluate percentage rollout inclusion for a context",
	Long: `Evaluate whether a context falls inside a feature's rollout
percentage. The answer is deterministic for a given feature, context
and seed, and contexts included at N%% stay included at any higher
percentage.

Examples:
  flagstate rollout dark_mode --kind user --id u42 --percentage 25
  flagstate rollout dark_mode --kind user --id u42 --percentage 25 --seed experiment-2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		included, err := c.Rollout(context.Background(), args[0], ctxKind, ctxID, rolloutPercentage, rolloutSeed)
		if err != nil {
			return fmt.Errorf("failed to evaluate rollout: %w", err)
		}

		if !quiet {
			if included {
				fmt.Printf("%s/%s is included in '%s' at %d%%\n", ctxKind, ctxID, args[0], rolloutPercentage)
			} else {
				fmt.Printf("%s/%s is not included in '%s' at %d%%\n", ctxKind, ctxID, args[0], rolloutPercentage)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rolloutCmd)

	rolloutCmd.Flags().IntVar(&rolloutPercentage, "percentage", 100, "Rollout percentage (0-100)")
	rolloutCmd.Flags().StringVar(&rolloutSeed, "seed", "", "Bucketing seed override")
}
