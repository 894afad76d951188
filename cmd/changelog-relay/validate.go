package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rulyen46/changelog-relay/config"
)

// validateCmd validates a config file without starting the relay.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a changelog-relay configuration file without starting the relay.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  changelog-relay validate -c relay.yaml
  changelog-relay validate --config /etc/changelog-relay/relay.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:           %d\n", cfg.Port)
	fmt.Printf("  Channel:        %s\n", cfg.Feed.ChannelID)
	fmt.Printf("  Store:          %s (max %d entries)\n", cfg.Store.Path, cfg.Store.MaxHistory)
	fmt.Printf("  Liveness:       %s initial x%d, then %s\n",
		cfg.Liveness.InitialInterval.Duration(), cfg.Liveness.NumInitialBeats,
		cfg.Liveness.SteadyInterval.Duration())
	fmt.Printf("  Feed heartbeat: %s initial x%d, then %s (offset %s)\n",
		cfg.FeedHeartbeat.InitialInterval.Duration(), cfg.FeedHeartbeat.NumInitialBeats,
		cfg.FeedHeartbeat.SteadyInterval.Duration(), cfg.FeedHeartbeat.Offset.Duration())

	return nil
}
