package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corrupt0303/listingscan/internal/slugs"
)

// NewSlugsCmd creates the slugs command.
func NewSlugsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slugs <html-file>...",
		Short: "Harvest location and category slugs from saved pages",
		Long: `Slugs reads saved HTML pages, collects the location, category, section
and tag slugs their links use, and writes a slug dataset as YAML.

The harvested slugs are merged into the current dataset unless --no-merge
is given. Point the profile's "slugs" key at the output to use it.

Examples:
  listingscan slugs ~/.cache/listingscan/debug/*.html -o slugs.yaml
  listingscan slugs home.html --no-merge`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSlugsCmd,
	}

	cmd.Flags().StringP("output", "o", "", "Write the dataset to this file instead of stdout")
	cmd.Flags().Bool("no-merge", false, "Write only the harvested slugs")

	return cmd
}

// runSlugsCmd executes the slugs command.
func runSlugsCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := prepare(cmd)
	if err != nil {
		return err
	}

	noMerge := false
	if err := boolFlag(cmd, "no-merge", &noMerge); err != nil {
		return err
	}

	proxy := cfg.Proxy()
	harvested := slugs.New(nil, nil, nil, nil)
	for _, path := range args {
		f, err := os.Open(path) //nolint:gosec // paths come from the command line
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		ds := slugs.Harvest(f, proxy)
		_ = f.Close()
		logger.Debug("harvested slugs", "file", filepath.Base(path), "slugs", ds.Len())
		harvested = harvested.Merge(ds)
	}

	result := harvested
	if !noMerge {
		base, err := loadSlugs(cfg)
		if err != nil {
			return fmt.Errorf("failed to load slugs: %w", err)
		}
		if base == nil {
			base = slugs.Default()
		}
		result = base.Merge(harvested)
	}
	logger.Info("slug dataset ready", "harvested", harvested.Len(), "total", result.Len())

	out, closeOut, err := openOutput(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	werr := result.WriteYAML(out)
	cerr := closeOut()
	if werr != nil {
		return fmt.Errorf("failed to write slugs: %w", werr)
	}
	return cerr
}
