package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagstate/internal/assign"
)

var (
	variantWeights []string
	variantSeed    string
)

var variantCmd = &cobra.Command{
	Use:   "variant <feature>",
	Short: "Assign a weighted variant for a context",
	Long: `Assign a context to one of a feature's weighted variants.
Weights must sum to 100. Assignment is deterministic for a given
feature, context and seed.

Examples:
  flagstate variant button_color --kind user --id u42 --variant red=50 --variant blue=50
  flagstate variant pricing --kind user --id u42 --variant control=90 --variant test=10 --seed exp-3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(variantWeights) == 0 {
			return fmt.Errorf("at least one --variant is required")
		}

		variants := make([]assign.Variant, 0, len(variantWeights))
		for _, pair := range variantWeights {
			name, weightStr, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("invalid variant '%s', expected name=weight", pair)
			}
			weight, err := strconv.Atoi(weightStr)
			if err != nil {
				return fmt.Errorf("invalid weight in '%s': %w", pair, err)
			}
			variants = append(variants, assign.Variant{Name: name, Weight: weight})
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		variant, err := c.Variant(context.Background(), args[0], ctxKind, ctxID, variants, variantSeed)
		if err != nil {
			return fmt.Errorf("failed to assign variant: %w", err)
		}

		if !quiet {
			fmt.Printf("%s/%s gets variant '%s' for '%s'\n", ctxKind, ctxID, variant, args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(variantCmd)

	variantCmd.Flags().StringArrayVar(&variantWeights, "variant", nil, "Variant as name=weight (repeatable, weights sum to 100)")
	variantCmd.Flags().StringVar(&variantSeed, "seed", "", "Bucketing seed override")
}
