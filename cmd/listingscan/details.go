package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corrupt0303/listingscan/internal/config"
	"github.com/corrupt0303/listingscan/internal/report"
	"github.com/corrupt0303/listingscan/internal/search"
)

// NewDetailsCmd creates the details command.
func NewDetailsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "details <listing-url>",
		Short: "Fetch one listing's detail page",
		Long: `Details fetches a single listing page through the proxy gateway and prints
its fields: title, description, price, location, posting date, images,
contact information, age and ad id.

The URL may be bare, relative or already proxied; it is wrapped in the
gateway exactly once. Failed fetches are retried.

Examples:
  listingscan details https://www.locanto.co.za/cape-town/ID_12345/Coffee-date.html
  listingscan details /cape-town/ID_12345/Coffee-date.html --json`,
		Args: cobra.ExactArgs(1),
		RunE: runDetailsCmd,
	}

	cmd.Flags().Int("retries", config.DefaultRetryAttempts, "Attempts for the detail page")
	cmd.Flags().Duration("retry-delay", config.DefaultRetryDelay, "Pause between attempts")

	addBrowserFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

// runDetailsCmd executes the details command.
// A record carrying an error is still written, and the error is returned
// so the exit status reflects it.
func runDetailsCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := prepare(cmd)
	if err != nil {
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

	detail := search.NewSearcher(session, cfg, search.WithLogger(logger)).GetListingDetails(ctx, args[0])

	err = writeReport(cfg, cmd.OutOrStdout(), func(w report.Writer) (int, error) {
		return w.WriteDetail(&detail)
	})
	if err != nil {
		return err
	}
	if detail.HasError() {
		return fmt.Errorf("details failed: %s", detail.Error)
	}
	return nil
}
