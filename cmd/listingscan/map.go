package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/corrupt0303/listingscan/internal/browser"
	"github.com/corrupt0303/listingscan/internal/config"
	"github.com/corrupt0303/listingscan/internal/crawler"
	"github.com/corrupt0303/listingscan/internal/database"
	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/report"
)

// NewMapCmd creates the map command.
func NewMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map [seed-url]",
		Short: "Map the site's taxonomy and pagination links",
		Long: `Map walks category, personals and dating pages plus "next page" links
depth-first from a seed and records the shape of the site: every visited
page with its listing count, outgoing links and failures.

Without a seed the profile's mapper seed is used, falling back to the
generic dating search. With --save every node and link is written to the
local database as it is discovered, so an interrupted run keeps what it
found.

Examples:
  # Map two levels from the default seed
  listingscan map

  # Map a location, keep the rendered HTML for validate
  listingscan map https://www.locanto.co.za/cape-town/ -d 1 --save-html

  # Record the run for "listingscan history"
  listingscan map --save --max-nodes 50`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMapCmd,
	}

	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth, "Maximum link depth from the seed (0 visits only the seed)")
	cmd.Flags().Int("max-nodes", config.DefaultMaxNodes, "Maximum pages visited (0 for no limit)")
	cmd.Flags().Duration("map-timeout", config.DefaultMapTimeout, "Timeout for each mapped page")
	cmd.Flags().Bool("save-html", false, "Save the HTML of every visited page to the debug directory")

	addBrowserFlags(cmd)
	addReportFlags(cmd)
	addStoreFlags(cmd, "Record the run in the local database")

	return cmd
}

// runMapCmd executes the map command.
func runMapCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := prepare(cmd)
	if err != nil {
		return err
	}

	seed := mapSeed(cfg, args)

	ctx, cancel := signalContext(logger)
	defer cancel()

	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close database", "error", err)
			}
		}()
	}

	session, err := newSession(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	sm, mapErr := runMap(ctx, cfg, session, db, seed, logger)
	if sm == nil {
		return mapErr
	}

	if err := writeReport(cfg, cmd.OutOrStdout(), func(w report.Writer) (int, error) {
		return w.WriteSiteMap(sm)
	}); err != nil {
		return err
	}
	return mapErr
}

// mapSeed picks the seed: the argument, the profile's seed, or the default.
func mapSeed(cfg *config.Config, args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	if cfg.Profile != nil && cfg.Profile.Mapper.Seed != "" {
		return cfg.Profile.Mapper.Seed
	}
	return crawler.DefaultSeed(cfg.Proxy())
}

// runMap maps from seed and, when db is non-nil, records the run in it.
// The partial map is returned together with a cancellation error.
func runMap(ctx context.Context, cfg *config.Config, session browser.Session, db *database.ListingDB, seed string, logger *slog.Logger) (*model.SiteMap, error) {
	opts := []crawler.MapperOption{crawler.WithMapperLogger(logger)}

	var rec *database.RunRecorder
	if db != nil {
		proxy := cfg.Proxy()
		var err error
		rec, err = db.StartRun(ctx, proxy.Resolve(proxy.Canonicalize(seed)), cfg.MaxDepth)
		if err != nil {
			return nil, fmt.Errorf("failed to start map run: %w", err)
		}
		opts = append(opts, crawler.WithRecorder(rec))
		logger.Info("recording map run", "run_id", rec.RunID())
	}

	sm, err := crawler.NewMapper(session, cfg, opts...).Map(ctx, seed)
	if sm == nil {
		return nil, fmt.Errorf("map failed: %w", err)
	}

	if rec != nil {
		// The run totals are written even after cancellation.
		if ferr := rec.Finish(context.WithoutCancel(ctx), sm); ferr != nil {
			logger.Warn("failed to finish map run", "run_id", rec.RunID(), "error", ferr)
		}
	}
	return sm, err
}
