// Package main is the entry point for the changelog-relay CLI.
//
// Usage:
//
//	changelog-relay serve -c relay.yaml    # Start the relay
//	changelog-relay validate -c relay.yaml # Validate configuration
//	changelog-relay check --url http://localhost:8080 # Probe a running relay
//	changelog-relay version                # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "changelog-relay",
	Short: "Mirror a changelog feed channel behind a token-authenticated API",
	Long: `changelog-relay mirrors the messages of a changelog feed channel into a
durable markdown file and serves them over a token-authenticated HTTP API.

Quick start:
  1. Create a config file (relay.yaml)
  2. Export RELAY_TOKEN and DISCORD_TOKEN
  3. Run: changelog-relay serve -c relay.yaml

Example config:
  port: 8080
  shared_secret_token: ${RELAY_TOKEN}
  feed:
    bot_token: ${DISCORD_TOKEN}
    channel_id: "1234567890"`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this changelog-relay binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("changelog-relay %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
