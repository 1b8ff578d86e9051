package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corrupt0303/listingscan/internal/browser"
	"github.com/corrupt0303/listingscan/internal/config"
	"github.com/corrupt0303/listingscan/internal/database"
	"github.com/corrupt0303/listingscan/internal/log"
	"github.com/corrupt0303/listingscan/internal/report"
	"github.com/corrupt0303/listingscan/internal/slugs"
)

// addBrowserFlags registers the flags that shape the browser session and
// the gateway used by search, details and map.
func addBrowserFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("base-url", config.DefaultBaseURL, "Target site origin")
	f.String("proxy-prefix", config.DefaultProxyPrefix, "URL-prefix gateway every navigation goes through")
	f.String("browser-proxy", "", "Upstream proxy for browser connections (e.g. socks5://127.0.0.1:9050)")
	f.String("cookies", "", "JSON cookie export loaded into the browser at start")
	f.String("user-agent", "", "Browser User-Agent override")
	f.String("chrome-path", "", "Chrome executable (default: system lookup)")
	f.Bool("show-browser", false, "Run the browser with a window")
	f.Bool("no-stealth", false, "Disable the automation evasion script")
	f.DurationP("timeout", "t", config.DefaultPageTimeout, "Timeout for each page navigation")
	f.Duration("settle", config.DefaultSettleDelay, "Wait after each navigation for client-side rendering")
	f.Duration("interval", 0, "Minimum spacing between navigations (0 disables)")
	f.String("debug-dir", "", "Directory for HTML snapshots (default: XDG cache directory)")
}

// addReportFlags registers the output format flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write output to specified file path (creates directories if needed)")
}

// addStoreFlags registers the database flags.
func addStoreFlags(cmd *cobra.Command, saveUsage string) {
	cmd.Flags().Bool("save", false, saveUsage)
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")
}

// stringFlag copies the named flag into dst when the command has it.
// cmd.Flag also finds persistent flags of parent commands.
func stringFlag(cmd *cobra.Command, name string, dst *string) error {
	if f := cmd.Flag(name); f != nil {
		*dst = f.Value.String()
	}
	return nil
}

func boolFlag(cmd *cobra.Command, name string, dst *bool) error {
	f := cmd.Flag(name)
	if f == nil {
		return nil
	}
	v, err := strconv.ParseBool(f.Value.String())
	if err != nil {
		return fmt.Errorf("invalid --%s: %w", name, err)
	}
	*dst = v
	return nil
}

func intFlag(cmd *cobra.Command, name string, dst *int) error {
	f := cmd.Flag(name)
	if f == nil {
		return nil
	}
	v, err := strconv.Atoi(f.Value.String())
	if err != nil {
		return fmt.Errorf("invalid --%s: %w", name, err)
	}
	*dst = v
	return nil
}

func durationFlag(cmd *cobra.Command, name string, dst *time.Duration) error {
	f := cmd.Flag(name)
	if f == nil {
		return nil
	}
	v, err := time.ParseDuration(f.Value.String())
	if err != nil {
		return fmt.Errorf("invalid --%s: %w", name, err)
	}
	*dst = v
	return nil
}

// buildConfig creates a Config from the flags the command defines and the
// profile file. Flags a command does not define keep their defaults.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var (
		showBrowser bool
		debugDir    string
	)
	err := errors.Join(
		stringFlag(cmd, "base-url", &cfg.BaseURL),
		stringFlag(cmd, "proxy-prefix", &cfg.ProxyPrefix),
		stringFlag(cmd, "browser-proxy", &cfg.BrowserProxy),
		stringFlag(cmd, "cookies", &cfg.CookiesPath),
		stringFlag(cmd, "user-agent", &cfg.UserAgent),
		stringFlag(cmd, "chrome-path", &cfg.ChromePath),
		boolFlag(cmd, "show-browser", &showBrowser),
		boolFlag(cmd, "no-stealth", &cfg.DisableStealth),
		durationFlag(cmd, "timeout", &cfg.PageTimeout),
		durationFlag(cmd, "map-timeout", &cfg.MapTimeout),
		durationFlag(cmd, "settle", &cfg.SettleDelay),
		durationFlag(cmd, "interval", &cfg.NavigationInterval),
		durationFlag(cmd, "page-delay", &cfg.PageDelay),
		durationFlag(cmd, "retry-delay", &cfg.RetryDelay),
		stringFlag(cmd, "debug-dir", &debugDir),
		intFlag(cmd, "max-listings", &cfg.MaxListingsPerPage),
		intFlag(cmd, "concurrency", &cfg.DetailConcurrency),
		intFlag(cmd, "retries", &cfg.RetryAttempts),
		intFlag(cmd, "depth", &cfg.MaxDepth),
		intFlag(cmd, "max-nodes", &cfg.MaxNodes),
		boolFlag(cmd, "save-html", &cfg.SaveHTML),
		boolFlag(cmd, "save", &cfg.SaveToDB),
		stringFlag(cmd, "db-dir", &cfg.DBDir),
		boolFlag(cmd, "verbose", &cfg.Verbose),
		stringFlag(cmd, "config", &cfg.ConfigFilePath),
		boolFlag(cmd, "json", &cfg.JSONReport),
		boolFlag(cmd, "markdown", &cfg.MarkdownReport),
		stringFlag(cmd, "output", &cfg.ReportFile),
	)
	if err != nil {
		return nil, err
	}

	if cmd.Flag("show-browser") != nil {
		cfg.Headless = !showBrowser
	}
	if debugDir != "" {
		cfg.DebugDir = debugDir
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	// Load the site profile from the config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use built-in settings if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		profile, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyProfile(profile)
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	return cfg, nil
}

// prepare builds and validates the configuration and sets up logging.
func prepare(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	jsonLogs := false
	if err := boolFlag(cmd, "log-json", &jsonLogs); err != nil {
		return nil, nil, err
	}
	logger := setupLogger(os.Stderr, cfg.Verbose, jsonLogs)
	slog.SetDefault(logger)

	return cfg, logger, nil
}

// setupLogger creates a structured logger based on verbosity setting.
// Listing contact details and session cookies are masked in every record.
func setupLogger(w io.Writer, verbose, jsonLogs bool) *slog.Logger {
	if jsonLogs {
		return log.NewSecureJSONLogger(w, verbose)
	}
	return log.NewSecureLogger(w, verbose)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// newSession launches Chrome configured from cfg.
// An unreadable cookie file is a setup failure because the user asked for it.
func newSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (browser.Session, error) {
	opts := []browser.ChromeOption{
		browser.WithHeadless(cfg.Headless),
		browser.WithStealth(!cfg.DisableStealth),
		browser.WithConsentDismissal(cfg.Profile.DismissConsent()),
		browser.WithHeaders(cfg.Profile.ExtraHeaders()),
		browser.WithLogger(logger),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, browser.WithUserAgent(cfg.UserAgent))
	}
	if cfg.BrowserProxy != "" {
		opts = append(opts, browser.WithProxyServer(cfg.BrowserProxy))
	}
	if cfg.ChromePath != "" {
		opts = append(opts, browser.WithExecPath(cfg.ChromePath))
	}
	if cfg.CookiesPath != "" {
		cookies, err := browser.LoadCookies(cfg.CookiesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load cookies: %w", err)
		}
		opts = append(opts, browser.WithCookies(cookies))
	}

	session, err := browser.NewChromeSession(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.NavigationInterval > 0 {
		return browser.RateLimited(session, browser.NewLimiter(cfg.NavigationInterval, config.DefaultNavigationBurst)), nil
	}
	return session, nil
}

// loadSlugs returns the slug dataset named by the profile, or nil for the
// embedded one.
func loadSlugs(cfg *config.Config) (*slugs.Dataset, error) {
	if cfg.Profile == nil || cfg.Profile.Slugs == "" {
		return nil, nil
	}
	ds, err := slugs.Load(cfg.Profile.Slugs)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// openDB opens the listing database when saving is enabled.
// It returns nil when cfg.SaveToDB is false.
func openDB(cfg *config.Config, logger *slog.Logger) (*database.ListingDB, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database opened", "path", db.Path())
	return db, nil
}

// openOutput returns the report destination: cfg.ReportFile or stdout.
// The returned close function is always non-nil.
func openOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func() error, error) {
	if cfg.ReportFile == "" {
		return stdout, func() error { return nil }, nil
	}

	// Create directories if they don't exist
	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports hold contact details, so the file is readable by the owner only
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newWriter returns the report writer selected by cfg.
// Text options apply only to the plain text writer.
func newWriter(cfg *config.Config, w io.Writer, textOpts ...report.SimpleWriterOption) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		opts := append([]report.SimpleWriterOption{report.WithVerbose(cfg.Verbose)}, textOpts...)
		return report.NewSimpleWriter(w, opts...)
	}
}

// writeReport opens the output, runs write on the selected writer and
// closes the output.
func writeReport(cfg *config.Config, stdout io.Writer, write func(report.Writer) (int, error), textOpts ...report.SimpleWriterOption) error {
	out, closeOut, err := openOutput(cfg, stdout)
	if err != nil {
		return err
	}
	_, werr := write(newWriter(cfg, out, textOpts...))
	cerr := closeOut()
	if werr != nil {
		return fmt.Errorf("failed to write report: %w", werr)
	}
	return cerr
}
