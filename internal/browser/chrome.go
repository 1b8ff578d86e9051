package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
)

// Session defaults.
const (
	// DefaultUserAgent is a current desktop Chrome on Windows. The proxy
	// gateway and the target site both serve reduced markup to unknown
	// agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// DefaultWindowWidth and DefaultWindowHeight size the viewport.
	DefaultWindowWidth  = 1366
	DefaultWindowHeight = 900

	// DefaultLocale is the browser UI and Accept-Language locale.
	DefaultLocale = "en-ZA"

	// DefaultTimezone matches the target market.
	DefaultTimezone = "Africa/Johannesburg"

	// contentTimeout bounds reading the DOM of an already loaded page.
	contentTimeout = 15 * time.Second
)

type chromeOptions struct {
	headless    bool
	userAgent   string
	width       int
	height      int
	locale      string
	timezone    string
	proxyServer string
	execPath    string
	cookies     []Cookie
	headers     map[string]string
	stealth     bool
	consent     bool
	logger      *slog.Logger
}

// ChromeOption configures a ChromeSession.
type ChromeOption func(*chromeOptions)

// WithHeadless toggles headless mode. Default: true.
func WithHeadless(headless bool) ChromeOption {
	return func(o *chromeOptions) {
		o.headless = headless
	}
}

// WithUserAgent sets the User-Agent of every page.
func WithUserAgent(ua string) ChromeOption {
	return func(o *chromeOptions) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithViewport sets the window and viewport size in CSS pixels.
func WithViewport(width, height int) ChromeOption {
	return func(o *chromeOptions) {
		if width > 0 && height > 0 {
			o.width = width
			o.height = height
		}
	}
}

// WithLocale sets the browser locale, e.g. "en-ZA".
func WithLocale(locale string) ChromeOption {
	return func(o *chromeOptions) {
		o.locale = locale
	}
}

// WithTimezone sets the IANA timezone reported to pages.
func WithTimezone(tz string) ChromeOption {
	return func(o *chromeOptions) {
		o.timezone = tz
	}
}

// WithProxyServer routes browser traffic through an upstream proxy
// such as "socks5://127.0.0.1:9050". This is independent of the URL
// prefix gateway, which is applied to URLs, not to connections.
func WithProxyServer(addr string) ChromeOption {
	return func(o *chromeOptions) {
		o.proxyServer = addr
	}
}

// WithExecPath sets the Chrome binary. Empty means chromedp's lookup.
func WithExecPath(path string) ChromeOption {
	return func(o *chromeOptions) {
		o.execPath = path
	}
}

// WithCookies installs cookies into the browser context at start.
func WithCookies(cookies []Cookie) ChromeOption {
	return func(o *chromeOptions) {
		o.cookies = cookies
	}
}

// WithHeaders sets extra HTTP headers sent with every request of every
// page, e.g. {"Accept-Language": "en-ZA"}.
func WithHeaders(headers map[string]string) ChromeOption {
	return func(o *chromeOptions) {
		o.headers = headers
	}
}

// WithConsentDismissal toggles clicking away cookie and consent popups
// after every navigation. Default: true.
func WithConsentDismissal(enabled bool) ChromeOption {
	return func(o *chromeOptions) {
		o.consent = enabled
	}
}

// WithStealth toggles the evasion script injected into every page.
// Default: true.
func WithStealth(enabled bool) ChromeOption {
	return func(o *chromeOptions) {
		o.stealth = enabled
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) ChromeOption {
	return func(o *chromeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// ChromeSession is a Session backed by a local Chrome process driven over
// the DevTools protocol.
//
// All pages are tabs of one browser context, so cookies installed at
// start are visible to every page, including concurrently opened ones.
type ChromeSession struct {
	opts chromeOptions

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewChromeSession launches Chrome and prepares the browser context.
//
// ctx governs the browser lifetime: cancelling it terminates the process.
// Launch failures are setup failures and are returned as errors.
func NewChromeSession(ctx context.Context, opts ...ChromeOption) (*ChromeSession, error) {
	o := chromeOptions{
		headless:  true,
		userAgent: DefaultUserAgent,
		width:     DefaultWindowWidth,
		height:    DefaultWindowHeight,
		locale:    DefaultLocale,
		timezone:  DefaultTimezone,
		stealth:   true,
		consent:   true,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	allocOpts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+8)
	allocOpts = append(allocOpts, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", o.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.UserAgent(o.userAgent),
		chromedp.WindowSize(o.width, o.height),
	)
	if o.locale != "" {
		allocOpts = append(allocOpts, chromedp.Flag("lang", o.locale))
	}
	if o.proxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(o.proxyServer))
	}
	if o.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(o.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)

	logger := o.logger
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug("chromedp: " + fmt.Sprintf(format, args...))
		}),
	)

	// The first Run allocates the browser; it must use browserCtx itself
	// so the process lives as long as the session.
	if err := chromedp.Run(browserCtx, network.Enable(), setCookies(o.cookies, logger)); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	logger.Debug("browser session started",
		"headless", o.headless,
		"cookies", len(o.cookies),
		"stealth", o.stealth,
		"headers", len(o.headers),
		"proxy_server", o.proxyServer != "")

	return &ChromeSession{
		opts:          o,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewPage opens a new tab in the shared browser context and applies the
// viewport, locale, timezone and evasion script to it.
func (s *ChromeSession) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	if err := chromedp.Run(tabCtx, s.pageSetup()...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &chromePage{
		ctx:     tabCtx,
		cancel:  tabCancel,
		consent: s.opts.consent,
		logger:  s.opts.logger,
	}, nil
}

func (s *ChromeSession) pageSetup() []chromedp.Action {
	o := s.opts
	actions := []chromedp.Action{
		network.Enable(),
		emulation.SetDeviceMetricsOverride(int64(o.width), int64(o.height), 1, false),
	}
	if o.locale != "" {
		actions = append(actions, emulation.SetLocaleOverride().WithLocale(o.locale))
	}
	if o.timezone != "" {
		actions = append(actions, emulation.SetTimezoneOverride(o.timezone))
	}
	if headers := extraHeaders(o.headers); len(headers) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	if o.stealth {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx)
			return err
		}))
	}
	return actions
}

// Close shuts the browser down. It is safe to call more than once.
func (s *ChromeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := chromedp.Cancel(s.browserCtx)
	s.browserCancel()
	s.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// chromePage is one chromedp tab.
type chromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	consent bool
	logger  *slog.Logger
}

// run executes actions on the tab with a timeout, aborting early when
// the caller's ctx is cancelled. Cancelling a derived context aborts the
// actions without closing the tab.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}
	if p.consent {
		p.dismissConsent(ctx)
	}
	return nil
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, contentTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

func (p *chromePage) WaitForSelector(ctx context.Context, css string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitReady(css, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrSelectorTimeout, css, timeout)
	}
	return fmt.Errorf("failed waiting for %s: %w", css, err)
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
