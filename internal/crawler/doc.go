// Package crawler maps the navigable structure of the target site.
//
// # Architecture
//
// The Mapper walks taxonomy links (category, personals and dating pages)
// and pagination links depth-first from a seed URL, entirely through the
// proxy gateway and a browser.Session. Each visited page becomes a
// model.MapNode carrying its depth, parent, listing container count and
// outgoing links; the run as a whole is a model.SiteMap.
//
// # Components
//
//   - Mapper: the walk itself, with an explicit LIFO frontier
//   - Parser: an x/net/html pass that extracts taxonomy and pagination links
//   - LinkRecorder: an optional sink for nodes and edges (see internal/database)
//
// # Politeness
//
//   - One page handle per run; nodes are visited one at a time
//   - A fixed settle pause after every navigation
//   - Navigation pacing is left to the session (browser.RateLimited)
//   - MaxDepth and MaxNodes bound every run
//
// # Usage
//
//	m := crawler.NewMapper(session, cfg, crawler.WithMaxDepth(2))
//	sm, err := m.Map(ctx, "")
package crawler
