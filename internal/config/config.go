package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/urlutil"
)

// Default configuration values.
// Timings follow what the target site needs behind the proxy gateway:
// the gateway adds a full round trip and rewrites every page, so loads
// are slower than the site alone.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "listingscan"

	// DefaultBaseURL is the target site origin.
	DefaultBaseURL = urlutil.DefaultBaseURL

	// DefaultProxyPrefix is the URL-prefix gateway every navigation goes through.
	DefaultProxyPrefix = urlutil.DefaultProxyPrefix

	// DefaultPageTimeout bounds a single navigation of a search or detail page.
	// The gateway often needs more than 10 seconds on the first request.
	DefaultPageTimeout = 30 * time.Second

	// DefaultMapTimeout bounds a single navigation while mapping.
	// Taxonomy pages are heavier than result pages and are not cached.
	DefaultMapTimeout = 60 * time.Second

	// DefaultSettleDelay is the fixed wait after a navigation completes,
	// giving client-side rendering time to populate the result list.
	DefaultSettleDelay = 2 * time.Second

	// DefaultSelectorTimeout bounds the wait for the listing container.
	// A page that has not rendered a container after this long is treated
	// as an empty or unexpected layout.
	DefaultSelectorTimeout = 8 * time.Second

	// DefaultMaxListingsPerPage caps how many result cards are read per page.
	DefaultMaxListingsPerPage = 10

	// DefaultDetailConcurrency is the number of detail pages fetched at once.
	// Higher values trigger the gateway's rate limiter.
	DefaultDetailConcurrency = 4

	// DefaultPageDelay is the pause between result pages.
	DefaultPageDelay = 0

	// DefaultRetryAttempts is how often a detail page is tried.
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the pause between detail attempts.
	DefaultRetryDelay = 2 * time.Second

	// DefaultMaxDepth is the mapper recursion depth. Depth 0 visits only the seed.
	DefaultMaxDepth = 2

	// DefaultMaxNodes bounds the number of pages visited in one mapping run.
	DefaultMaxNodes = 200

	// DefaultNavigationBurst is the burst size of the navigation rate limiter.
	DefaultNavigationBurst = 1
)

// Config holds all configuration options for listingscan.
// It is populated from CLI flags and the profile file and passed through
// the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct like the rest of the tool's
// configuration surface. Search, detail and mapping share most settings
// (gateway, browser, timeouts), so splitting them would duplicate fields.
type Config struct {
	// BaseURL is the origin of the target site, without a trailing slash.
	BaseURL string

	// ProxyPrefix is prepended to every absolute target URL.
	ProxyPrefix string

	// PageTimeout bounds a single search or detail navigation.
	PageTimeout time.Duration

	// MapTimeout bounds a single navigation while mapping.
	MapTimeout time.Duration

	// SettleDelay is the fixed wait after each navigation.
	SettleDelay time.Duration

	// SelectorTimeout bounds the wait for the listing container.
	SelectorTimeout time.Duration

	// MaxListingsPerPage caps the result cards read per page.
	MaxListingsPerPage int

	// DetailConcurrency is the number of detail pages fetched in parallel.
	DetailConcurrency int

	// PageDelay is the politeness pause between result pages.
	PageDelay time.Duration

	// RetryAttempts is how often a detail page is tried before giving up.
	RetryAttempts int

	// RetryDelay is the pause between detail attempts.
	RetryDelay time.Duration

	// NavigationInterval spaces all navigations of a session.
	// Zero disables the limiter.
	NavigationInterval time.Duration

	// CookiesPath is a JSON cookie export loaded into the browser at start.
	// Empty means no cookies.
	CookiesPath string

	// DebugDir receives HTML snapshots of pages that did not render a
	// listing container, and map snapshots when SaveHTML is set.
	// Defaults to XDGCacheDir()/debug.
	DebugDir string

	// BrowserProxy routes browser connections through an upstream proxy,
	// e.g. "socks5://127.0.0.1:9050". It is independent of ProxyPrefix.
	BrowserProxy string

	// Headless runs the browser without a window.
	Headless bool

	// UserAgent overrides the browser's User-Agent. Empty uses the default.
	UserAgent string

	// ChromePath is the browser executable. Empty uses the system lookup.
	ChromePath string

	// DisableStealth turns off the evasion script injected into every page.
	DisableStealth bool

	// MaxDepth is the mapper's maximum recursion depth.
	MaxDepth int

	// MaxNodes bounds the pages visited in one mapping run.
	MaxNodes int

	// SaveHTML writes a snapshot of every mapped page to DebugDir.
	SaveHTML bool

	// DBDir is the directory of the SQLite listing and map run database.
	// Defaults to XDG data directory (~/.local/share/listingscan on Linux).
	DBDir string

	// SaveToDB records search results and mapping runs in the database.
	SaveToDB bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the profile file.
	// If empty, the tool searches for .listingscan in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// Profile holds the site profile loaded from the config file.
	// Nil means built-in selectors and signatures only.
	Profile *Profile

	// JSONReport enables JSON output instead of the text summary.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown output instead of the text summary.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because most defaults are non-zero (timeouts, concurrency).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		BaseURL:            DefaultBaseURL,
		ProxyPrefix:        DefaultProxyPrefix,
		PageTimeout:        DefaultPageTimeout,
		MapTimeout:         DefaultMapTimeout,
		SettleDelay:        DefaultSettleDelay,
		SelectorTimeout:    DefaultSelectorTimeout,
		MaxListingsPerPage: DefaultMaxListingsPerPage,
		DetailConcurrency:  DefaultDetailConcurrency,
		PageDelay:          DefaultPageDelay,
		RetryAttempts:      DefaultRetryAttempts,
		RetryDelay:         DefaultRetryDelay,
		Headless:           true,
		MaxDepth:           DefaultMaxDepth,
		MaxNodes:           DefaultMaxNodes,
		DebugDir:           filepath.Join(XDGCacheDir(), "debug"),
	}
}

// Proxy returns the URL canonicalizer for the configured site and gateway.
func (c *Config) Proxy() urlutil.Proxy {
	return urlutil.NewProxy(c.ProxyPrefix, c.BaseURL)
}

// ApplyProfile copies the site-level settings of p onto c.
// Values already set away from their defaults by flags win over the profile.
func (c *Config) ApplyProfile(p *Profile) {
	if p == nil {
		return
	}
	c.Profile = p
	if p.BaseURL != "" && c.BaseURL == DefaultBaseURL {
		c.BaseURL = p.BaseURL
	}
	if p.ProxyPrefix != "" && c.ProxyPrefix == DefaultProxyPrefix {
		c.ProxyPrefix = p.ProxyPrefix
	}
	if p.Cookies != "" && c.CookiesPath == "" {
		c.CookiesPath = p.Cookies
	}
	if p.Mapper.MaxDepth > 0 && c.MaxDepth == DefaultMaxDepth {
		c.MaxDepth = p.Mapper.MaxDepth
	}
}

// XDGDataDir returns the XDG data directory for listingscan.
// On Linux: ~/.local/share/listingscan
// On macOS: ~/Library/Application Support/listingscan
// On Windows: %LOCALAPPDATA%\listingscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for listingscan.
// On Linux: ~/.config/listingscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for listingscan.
// On Linux: ~/.cache/listingscan
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// The first error found is returned because fixing one often makes
// others irrelevant.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}

	if c.PageTimeout <= 0 || c.MapTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.SelectorTimeout <= 0 {
		return ErrInvalidSelectorTimeout
	}

	if c.SettleDelay < 0 || c.PageDelay < 0 || c.RetryDelay < 0 || c.NavigationInterval < 0 {
		return ErrInvalidDelay
	}

	if c.DetailConcurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxListingsPerPage <= 0 {
		return ErrInvalidMaxListings
	}

	if c.RetryAttempts <= 0 {
		return ErrInvalidRetryAttempts
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.MaxNodes < 0 {
		return ErrInvalidMaxNodes
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

// ValidateQuery checks the numeric filters of a search query.
// Zero values are accepted and mean "use the default".
func ValidateQuery(q model.SearchQuery) error {
	if q.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if q.AgeMin < 0 || q.AgeMax < 0 || (q.AgeMin > 0 && q.AgeMax > 0 && q.AgeMin > q.AgeMax) {
		return ErrInvalidAgeRange
	}
	if q.Distance < 0 {
		return ErrInvalidDistance
	}
	return nil
}
