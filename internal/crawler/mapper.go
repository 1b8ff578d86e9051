package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/corrupt0303/listingscan/internal/browser"
	"github.com/corrupt0303/listingscan/internal/challenge"
	"github.com/corrupt0303/listingscan/internal/config"
	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/selector"
	"github.com/corrupt0303/listingscan/internal/urlutil"
)

// DefaultSeedPath is the search page a mapping run starts from when no
// seed is given.
const DefaultSeedPath = "/g/q/?query=dating"

// savedNameLimit bounds the sanitized URL part of a saved page name.
const savedNameLimit = 50

// LinkRecorder receives the nodes and edges of a mapping run as they are
// discovered. Recording errors are logged and never stop the run.
type LinkRecorder interface {
	RecordNode(ctx context.Context, node *model.MapNode) error
	RecordLink(ctx context.Context, from, to string) error
}

// Mapper walks the taxonomy and pagination links of the site through the
// proxy gateway and records what it finds.
//
// Design decision: We call it "Mapper" rather than "Spider" because:
//  1. It never collects listings, only the shape of the site
//  2. The result is a SiteMap, not a page archive
//  3. The search pipeline is the component that actually crawls results
type Mapper struct {
	session  browser.Session
	proxy    urlutil.Proxy
	detector *challenge.Detector
	logger   *slog.Logger

	// maxDepth limits how deep to walk from the seed.
	// 0 means only the seed, 1 means the seed and its links, etc.
	maxDepth int

	// maxNodes limits how many nodes one run visits.
	maxNodes int

	// timeout bounds each navigation.
	timeout time.Duration

	// settle is the pause after each navigation.
	settle time.Duration

	// saveDir receives the HTML of every visited node. Empty disables saving.
	saveDir string

	// ignorePatterns are glob patterns of paths never visited.
	ignorePatterns []string

	// followPatterns, when set, are the only paths visited.
	followPatterns []string

	recorder LinkRecorder
}

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithMaxDepth sets the maximum walk depth.
// 0 = only the seed, 1 = seed plus linked pages, etc.
func WithMaxDepth(depth int) MapperOption {
	return func(m *Mapper) {
		m.maxDepth = depth
	}
}

// WithMaxNodes sets the maximum number of nodes to visit.
func WithMaxNodes(n int) MapperOption {
	return func(m *Mapper) {
		m.maxNodes = n
	}
}

// WithMapTimeout sets the navigation timeout.
func WithMapTimeout(d time.Duration) MapperOption {
	return func(m *Mapper) {
		m.timeout = d
	}
}

// WithSettleDelay sets the pause after each navigation.
func WithSettleDelay(d time.Duration) MapperOption {
	return func(m *Mapper) {
		m.settle = d
	}
}

// WithSaveDir saves the HTML of every visited node into dir.
// An empty dir disables saving.
func WithSaveDir(dir string) MapperOption {
	return func(m *Mapper) {
		m.saveDir = dir
	}
}

// WithIgnorePatterns sets path patterns to skip.
// Patterns use glob syntax (e.g., "/g/tag/*", "*.pdf").
func WithIgnorePatterns(patterns []string) MapperOption {
	return func(m *Mapper) {
		m.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets path patterns to follow.
// If set, only paths matching at least one pattern are visited.
func WithFollowPatterns(patterns []string) MapperOption {
	return func(m *Mapper) {
		m.followPatterns = patterns
	}
}

// WithRecorder sets a recorder for nodes and edges.
func WithRecorder(r LinkRecorder) MapperOption {
	return func(m *Mapper) {
		m.recorder = r
	}
}

// WithMapperLogger sets the logger for the Mapper.
func WithMapperLogger(logger *slog.Logger) MapperOption {
	return func(m *Mapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMapperDetector replaces the block detector.
func WithMapperDetector(d *challenge.Detector) MapperOption {
	return func(m *Mapper) {
		if d != nil {
			m.detector = d
		}
	}
}

// NewMapper creates a Mapper over session.
// Limits, timeouts and patterns come from cfg and cfg.Profile unless
// overridden by options. A nil cfg means config.NewConfig().
func NewMapper(session browser.Session, cfg *config.Config, opts ...MapperOption) *Mapper {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	m := &Mapper{
		session:  session,
		proxy:    cfg.Proxy(),
		detector: cfg.Profile.Detector(),
		logger:   slog.Default(),
		maxDepth: cfg.MaxDepth,
		maxNodes: cfg.MaxNodes,
		timeout:  cfg.MapTimeout,
		settle:   cfg.SettleDelay,
	}
	if cfg.SaveHTML {
		m.saveDir = cfg.DebugDir
	}
	if cfg.Profile != nil {
		m.ignorePatterns = cfg.Profile.Mapper.IgnorePatterns
		m.followPatterns = cfg.Profile.Mapper.FollowPatterns
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultSeed returns the proxied default seed URL for proxy.
func DefaultSeed(proxy urlutil.Proxy) string {
	return proxy.Prefix + proxy.Base + DefaultSeedPath
}

// frontierItem is one pending visit.
type frontierItem struct {
	url    string
	parent string
	depth  int
}

// frontier is a LIFO stack of pending visits.
type frontier []frontierItem

func (f *frontier) push(item frontierItem) {
	*f = append(*f, item)
}

func (f *frontier) pop() frontierItem {
	old := *f
	item := old[len(old)-1]
	*f = old[:len(old)-1]
	return item
}

// Map walks the site depth-first from seedURL and returns the visited nodes.
// An empty seedURL starts from DefaultSeed.
//
// Design decision: We keep an explicit frontier rather than recursing because:
//  1. The node limit and cancellation are checked in one place
//  2. Depth and visited checks happen on pop, before any navigation
//  3. Deep sites cannot grow the goroutine stack
//
// Links are pushed in reverse document order, so the first link on a page
// is the next one visited. Node failures are recorded and the branch below
// them is abandoned. The returned error is non-nil only when no page could
// be opened or ctx was cancelled; in the latter case the partial map is
// returned too.
func (m *Mapper) Map(ctx context.Context, seedURL string) (*model.SiteMap, error) {
	if strings.TrimSpace(seedURL) == "" {
		seedURL = DefaultSeed(m.proxy)
	}
	seed := m.proxy.Resolve(m.proxy.Canonicalize(seedURL))

	sm := &model.SiteMap{
		Seed:      seed,
		MaxDepth:  m.maxDepth,
		Nodes:     make([]model.MapNode, 0),
		StartedAt: time.Now(),
	}
	finish := func(err error) (*model.SiteMap, error) {
		sm.FinishedAt = time.Now()
		return sm, err
	}

	if m.session == nil {
		return nil, fmt.Errorf("failed to open map page: %w", browser.ErrSessionClosed)
	}
	page, err := m.session.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open map page: %w", err)
	}
	defer page.Close()

	visited := make(map[string]bool)
	var stack frontier
	stack.push(frontierItem{url: seed})

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		if m.maxNodes > 0 && len(sm.Nodes) >= m.maxNodes {
			sm.Truncated = true
			m.logger.Info("node limit reached", "limit", m.maxNodes, "pending", len(stack))
			break
		}

		item := stack.pop()
		if visited[item.url] || item.depth > m.maxDepth {
			sm.Skipped++
			continue
		}
		visited[item.url] = true

		node := m.visit(ctx, page, item)
		if err := ctx.Err(); err != nil {
			// An interrupted visit is not a node failure.
			return finish(err)
		}
		sm.Nodes = append(sm.Nodes, node)
		m.record(ctx, &node)

		if node.Failed() {
			continue
		}
		for i := len(node.Links) - 1; i >= 0; i-- {
			link := node.Links[i]
			if visited[link] {
				sm.Skipped++
				continue
			}
			if !m.inScope(link) {
				sm.Skipped++
				continue
			}
			stack.push(frontierItem{url: link, parent: item.url, depth: item.depth + 1})
		}
	}

	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	stats := sm.Stats()
	m.logger.Info("map finished",
		"visited", stats.Visited,
		"failed", stats.Failed,
		"listings", stats.Listings,
		"skipped", sm.Skipped)
	return finish(nil)
}

// visit navigates to one node and fills in what was found there.
func (m *Mapper) visit(ctx context.Context, page browser.Page, item frontierItem) model.MapNode {
	node := model.MapNode{URL: item.url, Depth: item.depth, Parent: item.parent}
	proxied := m.proxy.Wrap(item.url)
	logger := m.logger.With("url", item.url, "depth", item.depth)
	logger.Debug("visiting node")

	if err := page.Goto(ctx, proxied, m.timeout); err != nil {
		logger.Warn("navigation failed", "error", err)
		node.Error = err.Error()
		return node
	}
	if err := browser.Settle(ctx, m.settle); err != nil {
		node.Error = err.Error()
		return node
	}

	html, err := page.Content(ctx)
	if err != nil {
		logger.Warn("failed to read page", "error", err)
		node.Error = err.Error()
		return node
	}
	snap := model.NewPage(item.url, proxied, html)
	node.Hash = snap.Hash

	if sig := m.detector.Classify(snap.HTML); sig != nil {
		logger.Warn("node blocked", "signal", sig.String())
		node.Block = sig.Kind
		return node
	}

	node.SavedAs = m.save(item, snap.HTML)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err == nil {
		node.Listings = doc.Find(selector.MapContainers).Length()
	}

	result, err := NewParser(m.proxy).Parse(strings.NewReader(snap.HTML), item.url)
	if err != nil {
		logger.Warn("failed to parse page", "error", err)
		return node
	}
	node.Links = result.Links()

	logger.Debug("node visited", "listings", node.Listings, "links", len(node.Links))
	return node
}

// save writes the node HTML when saving is enabled and returns the path.
func (m *Mapper) save(item frontierItem, html string) string {
	if m.saveDir == "" {
		return ""
	}
	if err := os.MkdirAll(m.saveDir, 0o750); err != nil {
		m.logger.Warn("failed to create save directory", "dir", m.saveDir, "error", err)
		return ""
	}
	name := fmt.Sprintf("map_debug_depth%d_%s.html", item.depth, urlutil.SanitizeFilename(item.url, savedNameLimit))
	path := filepath.Join(m.saveDir, name)
	if err := os.WriteFile(path, []byte(html), 0o600); err != nil {
		m.logger.Warn("failed to save page", "path", path, "error", err)
		return ""
	}
	return path
}

// record forwards the node and its edges to the recorder.
func (m *Mapper) record(ctx context.Context, node *model.MapNode) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordNode(ctx, node); err != nil {
		m.logger.Warn("failed to record node", "url", node.URL, "error", err)
		return
	}
	for _, link := range node.Links {
		if err := m.recorder.RecordLink(ctx, node.URL, link); err != nil {
			m.logger.Warn("failed to record link", "from", node.URL, "to", link, "error", err)
		}
	}
}

// inScope reports whether link is on the site and passes the patterns.
func (m *Mapper) inScope(link string) bool {
	return m.proxy.SameSite(link) && m.shouldVisit(link)
}

// shouldVisit checks a URL against the ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and the path matches none, skip it (return false)
//  3. Otherwise, visit it (return true)
func (m *Mapper) shouldVisit(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range m.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(m.followPatterns) > 0 {
		for _, pattern := range m.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}
	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a prefix
//
// Examples:
//   - "/g/*" matches "/g/personals/", "/g/q/"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/cape-town/?" matches "/cape-town/P"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}
	return false
}
