package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for listingscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listingscan",
		Short: "Search and map classified listings through a proxy gateway",
		Long: `listingscan extracts classified listings from www.locanto.co.za.

Every navigation goes through the URL-prefix gateway
https://please.untaint.us/?url= and is rendered in a headless Chrome, so
client-side rendered result lists and anti-bot checks behave as they do in
a normal browser. Block pages (error pages, captchas, rate limits) are
reported as errors instead of empty results.

Settings for the target site (gateway, cookies, selector overrides, extra
block signatures, mapper patterns) live in a .listingscan profile; run
"listingscan init" to create one.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Profile file path (default: .listingscan in current or home directory)")

	// Add subcommands
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewDetailsCmd())
	cmd.AddCommand(NewMapCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewSlugsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
