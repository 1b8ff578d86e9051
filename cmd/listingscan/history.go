package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/corrupt0303/listingscan/internal/config"
	"github.com/corrupt0303/listingscan/internal/database"
	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/report"
)

// defaultHistoryLimit is how many stored listings "history listings" shows.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command and its subcommands.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show saved listings and mapping runs",
		Long: `History reads the local database written by "search --save" and
"map --save".

Examples:
  # List recorded mapping runs
  listingscan history runs

  # Show one run as a site map
  listingscan history run 3 --markdown

  # Show the 50 most recently seen listings
  listingscan history listings --limit 50`,
	}

	cmd.PersistentFlags().String("db-dir", "", "Database directory (default: XDG data directory)")

	cmd.AddCommand(newHistoryRunsCmd())
	cmd.AddCommand(newHistoryRunCmd())
	cmd.AddCommand(newHistoryListingsCmd())

	return cmd
}

func newHistoryRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded mapping runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistory(cmd, func(ctx context.Context, cfg *config.Config, db *database.ListingDB) error {
				runs, err := db.ListRuns(ctx)
				if err != nil {
					return err
				}
				out, closeOut, err := openOutput(cfg, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				if cfg.JSONReport {
					err = writeRunsJSON(out, runs)
				} else {
					err = writeRuns(out, runs)
				}
				if cerr := closeOut(); err == nil {
					err = cerr
				}
				return err
			})
		},
	}
	addReportFlags(cmd)
	return cmd
}

func newHistoryRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Show one recorded mapping run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}
			return withHistory(cmd, func(ctx context.Context, cfg *config.Config, db *database.ListingDB) error {
				sm, err := db.LoadSiteMap(ctx, id)
				if err != nil {
					return err
				}
				if sm == nil {
					return fmt.Errorf("map run %d not found", id)
				}
				return writeReport(cfg, cmd.OutOrStdout(), func(w report.Writer) (int, error) {
					return w.WriteSiteMap(sm)
				})
			})
		},
	}
	addReportFlags(cmd)
	return cmd
}

func newHistoryListingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Show saved listings, most recently seen first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit := defaultHistoryLimit
			if err := intFlag(cmd, "limit", &limit); err != nil {
				return err
			}
			return withHistory(cmd, func(ctx context.Context, cfg *config.Config, db *database.ListingDB) error {
				records, err := db.ListListings(ctx, limit)
				if err != nil {
					return err
				}
				result := model.NewSearchResult(model.SearchQuery{}, records)
				return writeReport(cfg, cmd.OutOrStdout(), func(w report.Writer) (int, error) {
					return w.WriteSearch(result)
				}, report.WithLimit(0))
			})
		},
	}
	cmd.Flags().Int("limit", defaultHistoryLimit, "Maximum listings shown")
	addReportFlags(cmd)
	return cmd
}

// withHistory opens the existing database and runs fn with it.
// History commands never create a database.
func withHistory(cmd *cobra.Command, fn func(context.Context, *config.Config, *database.ListingDB) error) error {
	cfg, logger, err := prepare(cmd)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DBDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	return fn(cmd.Context(), cfg, db)
}

// writeRuns prints runs as an aligned text table.
func writeRuns(w io.Writer, runs []database.MapRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No mapping runs recorded.")
		return err
	}

	if _, err := fmt.Fprintf(w, "%-5s %-20s %-8s %-6s %-8s %s\n",
		"ID", "STARTED", "VISITED", "DEPTH", "STATUS", "SEED"); err != nil {
		return err
	}
	for i := range runs {
		r := &runs[i]
		status := "running"
		switch {
		case r.Finished() && r.Truncated:
			status = "limit"
		case r.Finished():
			status = "done"
		}
		if _, err := fmt.Fprintf(w, "%-5d %-20s %-8d %-6d %-8s %s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Visited, r.MaxDepth, status, r.Seed); err != nil {
			return err
		}
	}
	return nil
}

// runJSON is the JSON form of a stored run.
type runJSON struct {
	ID         int64      `json:"id"`
	Seed       string     `json:"seed"`
	MaxDepth   int        `json:"max_depth"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Visited    int        `json:"visited"`
	Skipped    int        `json:"skipped"`
	Truncated  bool       `json:"truncated"`
}

func writeRunsJSON(w io.Writer, runs []database.MapRun) error {
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		j := runJSON{
			ID:        r.ID,
			Seed:      r.Seed,
			MaxDepth:  r.MaxDepth,
			StartedAt: r.StartedAt,
			Visited:   r.Visited,
			Skipped:   r.Skipped,
			Truncated: r.Truncated,
		}
		if r.Finished() {
			finished := r.FinishedAt
			j.FinishedAt = &finished
		}
		out = append(out, j)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
