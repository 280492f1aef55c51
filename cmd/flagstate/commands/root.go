package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagstate/internal/cli"
	"github.com/TimurManjosov/flagstate/internal/client"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	format  string
	quiet   bool

	// Context identity shared by every state command
	ctxKind string
	ctxID   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagstate",
	Short: "CLI tool for managing per-context feature state",
	Long: `Flagstate is a command-line tool for the flagstate service.

It reads and mutates feature state for a context (a kind plus an id),
evaluates rollouts and variants, applies atomic batches, and manages
snapshots.

Examples:
  flagstate state premium --kind user --id u42 --env prod
  flagstate activate premium --kind user --id u42
  flagstate rollout dark_mode --kind user --id u42 --percentage 25
  flagstate snapshot capture --kind user --id u42 --label "before migration"`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// newClient resolves environment configuration and builds an API client.
func newClient() (*client.Client, error) {
	envCfg, err := cli.GetEnvConfig(env, baseURL, apiKey)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return client.NewClient(envCfg.BaseURL, envCfg.APIKey), nil
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the flagstate API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Environment (dev, staging, prod)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().StringVar(&ctxKind, "kind", "user", "Context kind")
	rootCmd.PersistentFlags().StringVar(&ctxID, "id", "", "Context identifier")
}
