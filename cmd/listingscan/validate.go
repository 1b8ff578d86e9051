package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/corrupt0303/listingscan/internal/config"
	"github.com/corrupt0303/listingscan/internal/report"
	"github.com/corrupt0303/listingscan/internal/validate"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Check selector strategies against saved HTML pages",
		Long: `Validate runs every field strategy of the listing and detail rule sets
against saved HTML snapshots and reports which strategies match ALWAYS,
SOMETIMES or NEVER. Use it after the site changes its markup to see which
selectors need an override in the profile.

Without a directory the debug directory is used, which is where
"search" writes debug_page_<n>.html and "map --save-html" writes mapped pages.

With --suggest, strategies guessed from the class names and text of
containers where a listing field stayed empty are written as a profile
"selectors:" block. Review the file and merge it into your profile.

Examples:
  listingscan validate
  listingscan validate ./snapshots --markdown -o selectors.md
  listingscan validate ./snapshots --suggest tuned.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: runValidateCmd,
	}

	cmd.Flags().String("debug-dir", "", "Directory of saved pages (default: XDG cache directory)")
	cmd.Flags().String("suggest", "", "Write guessed selector overrides as profile YAML to this file")
	addReportFlags(cmd)

	return cmd
}

// runValidateCmd executes the validate command.
func runValidateCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := prepare(cmd)
	if err != nil {
		return err
	}

	dir := cfg.DebugDir
	if len(args) > 0 {
		dir = args[0]
	}

	v := validate.NewValidator(cfg.Profile.ListingRules(), cfg.Profile.DetailRules(), validate.WithLogger(logger))
	rep, err := v.ValidateDir(cmd.Context(), dir)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var suggestPath string
	if err := stringFlag(cmd, "suggest", &suggestPath); err != nil {
		return err
	}
	if suggestPath != "" {
		overrides := rep.SuggestedOverrides()
		if len(overrides) == 0 {
			logger.Warn("no selector suggestions found", "dir", dir)
		} else {
			if err := writeSuggestions(suggestPath, overrides); err != nil {
				return err
			}
			logger.Info("wrote selector suggestions", "path", suggestPath, "fields", len(overrides))
		}
	}

	return writeReport(cfg, cmd.OutOrStdout(), func(w report.Writer) (int, error) {
		return w.WriteValidation(rep)
	})
}

// writeSuggestions writes listing overrides as a profile fragment that
// LoadConfigFile reads back.
func writeSuggestions(path string, overrides map[string][]string) error {
	profile := config.Profile{Selectors: config.SelectorOverrides{Listing: overrides}}

	var buf bytes.Buffer
	buf.WriteString("# Suggested by \"listingscan validate\". Review before use.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(profile); err != nil {
		return fmt.Errorf("failed to encode selector suggestions: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode selector suggestions: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write selector suggestions: %w", err)
	}
	return nil
}
