package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/corrupt0303/listingscan/internal/browser"
	"github.com/corrupt0303/listingscan/internal/config"
	"github.com/corrupt0303/listingscan/internal/database"
	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/report"
	"github.com/corrupt0303/listingscan/internal/search"
)

// seenWithin is how far back a saved listing counts as already seen.
const seenWithin = 7 * 24 * time.Hour

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search listings and print a summary",
		Long: `Search runs a listing search through the proxy gateway and prints the top
results.

Each result card is read from the rendered page and its detail page is
fetched concurrently to add contact information. A block page on any result
page ends the search with a single error.

Examples:
  # Search in a known location
  listingscan search dating -l cape-town

  # Search a category across three result pages
  listingscan search "coffee date" -l durban --category personals -p 3

  # Start from a URL copied out of the browser
  listingscan search --url "https://www.locanto.co.za/cape-town/personals/?query=dating"

  # Full records as JSON, saved to the local database
  listingscan search dating --json --save`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSearchCmd,
	}

	// Query flags
	cmd.Flags().StringP("location", "l", "", "Location slug or name (e.g. cape-town)")
	cmd.Flags().String("category", "", "Category slug placed after the location")
	cmd.Flags().String("section", "", "Section id used when no category is given")
	cmd.Flags().String("tag", "", "Search the tag listing instead of a location")
	cmd.Flags().String("url", "", "Seed URL the filters are merged into")
	cmd.Flags().IntP("pages", "p", 1, "Number of result pages to read")
	cmd.Flags().Int("age-min", 0, "Minimum advertiser age (default 18)")
	cmd.Flags().Int("age-max", 0, "Maximum advertiser age (default 40)")
	cmd.Flags().String("sort", "", "Result order (default date)")
	cmd.Flags().Int("dist", 0, "Search radius in kilometres (default 30)")
	cmd.Flags().Bool("no-description", false, "Match the query against titles only")

	// Extraction flags
	cmd.Flags().Int("limit", report.DefaultSummaryLimit, "Listings shown in the text summary (0 shows all)")
	cmd.Flags().Int("max-listings", config.DefaultMaxListingsPerPage, "Result cards read per page")
	cmd.Flags().Int("concurrency", config.DefaultDetailConcurrency, "Detail pages fetched at once")
	cmd.Flags().Int("retries", config.DefaultRetryAttempts, "Attempts per detail page")
	cmd.Flags().Duration("retry-delay", config.DefaultRetryDelay, "Pause between detail attempts")
	cmd.Flags().Duration("page-delay", config.DefaultPageDelay, "Pause between result pages")

	addBrowserFlags(cmd)
	addReportFlags(cmd)
	addStoreFlags(cmd, "Save listings to the local database")

	return cmd
}

// runSearchCmd executes the search command.
func runSearchCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := prepare(cmd)
	if err != nil {
		return err
	}

	q, err := queryFromFlags(cmd, args)
	if err != nil {
		return err
	}
	if err := config.ValidateQuery(q); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	limit := report.DefaultSummaryLimit
	if err := intFlag(cmd, "limit", &limit); err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	session, err := newSession(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	result, err := runSearch(ctx, cfg, session, q, logger)
	if err != nil && result == nil {
		return err
	}
	searchErr := err

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
		if err := saveListings(ctx, db, result, cmd.ErrOrStderr(), logger); err != nil {
			return err
		}
	}

	err = writeReport(cfg, cmd.OutOrStdout(), func(w report.Writer) (int, error) {
		return w.WriteSearch(result)
	}, report.WithLimit(limit))
	if err != nil {
		return err
	}
	return searchErr
}

// queryFromFlags builds the search query from the positional argument and
// the query flags.
func queryFromFlags(cmd *cobra.Command, args []string) (model.SearchQuery, error) {
	var q model.SearchQuery
	if len(args) > 0 {
		q.Query = args[0]
	}

	noDescription := false
	err := errors.Join(
		stringFlag(cmd, "location", &q.Location),
		stringFlag(cmd, "category", &q.Category),
		stringFlag(cmd, "section", &q.Section),
		stringFlag(cmd, "tag", &q.Tag),
		stringFlag(cmd, "url", &q.URL),
		intFlag(cmd, "pages", &q.MaxPages),
		intFlag(cmd, "age-min", &q.AgeMin),
		intFlag(cmd, "age-max", &q.AgeMax),
		stringFlag(cmd, "sort", &q.Sort),
		intFlag(cmd, "dist", &q.Distance),
		boolFlag(cmd, "no-description", &noDescription),
	)
	if err != nil {
		return model.SearchQuery{}, err
	}
	if noDescription {
		off := false
		q.QueryDescription = &off
	}
	return q, nil
}

// runSearch runs q over session with the profile's rules and slugs.
// On cancellation the partial result is returned together with the error.
func runSearch(ctx context.Context, cfg *config.Config, session browser.Session, q model.SearchQuery, logger *slog.Logger) (*model.SearchResult, error) {
	ds, err := loadSlugs(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load slugs: %w", err)
	}

	opts := []search.Option{search.WithLogger(logger)}
	if ds != nil {
		opts = append(opts, search.WithSlugs(ds))
	}
	searcher := search.NewSearcher(session, cfg, opts...)

	logger.Info("starting search",
		"query", q.Query,
		"location", q.Location,
		"url", searcher.URL(q, 1))

	records, err := searcher.Search(ctx, q)
	if err != nil && records == nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := model.NewSearchResult(q, records)
	logger.Info("search finished",
		"listings", len(result.Listings()),
		"with_contact", result.ContactCount())
	return result, err
}

// saveListings stores the listings of result and reports how many were new.
func saveListings(ctx context.Context, db *database.ListingDB, result *model.SearchResult, out io.Writer, logger *slog.Logger) error {
	listings := result.Listings()

	fresh := 0
	for _, l := range listings {
		seen, err := db.HasRecentListing(ctx, l.URL, seenWithin)
		if err != nil {
			logger.Warn("failed to check listing history", "url", l.URL, "error", err)
			continue
		}
		if !seen {
			fresh++
		}
	}

	saved, err := db.SaveListings(ctx, listings)
	if err != nil {
		return fmt.Errorf("failed to save listings: %w", err)
	}
	fmt.Fprintf(out, "Saved %d listings (%d new) to %s\n", saved, fresh, db.Path())
	return nil
}
