package model

import "time"

// MapNode records one visited node of a site mapping run.
type MapNode struct {
	// URL is the canonical (unproxied) URL of the node.
	URL string `json:"url"`

	// Depth is the number of hops from the seed; the seed has depth 0.
	Depth int `json:"depth"`

	// Parent is the canonical URL of the node that linked here.
	// Empty for the seed.
	Parent string `json:"parent,omitempty"`

	// Listings is the number of listing containers found on the page.
	Listings int `json:"listings"`

	// Links are the canonical URLs of taxonomy and pagination links found
	// on the page, in document order.
	Links []string `json:"links,omitempty"`

	// Hash is the SHA-256 of the rendered HTML.
	Hash string `json:"hash,omitempty"`

	// SavedAs is the path of the HTML snapshot, when saving was enabled.
	SavedAs string `json:"saved_as,omitempty"`

	// Block is set when the node was a block page.
	Block BlockKind `json:"block,omitempty"`

	// Error describes a navigation failure; the branch below is abandoned.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the node could not be processed.
func (n *MapNode) Failed() bool {
	return n.Error != "" || n.Block != ""
}

// SiteMap is the result of one mapping run.
type SiteMap struct {
	// Seed is the canonical seed URL.
	Seed string `json:"seed"`

	// MaxDepth is the depth bound of the run.
	MaxDepth int `json:"max_depth"`

	// Nodes are the visited nodes in visit order.
	Nodes []MapNode `json:"nodes"`

	// Skipped counts frontier entries dropped without navigation
	// (already visited, too deep, out of scope, or filtered by pattern).
	Skipped int `json:"skipped"`

	// Truncated is true when the run stopped at the node limit.
	Truncated bool `json:"truncated,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Stats summarizes a SiteMap.
type SiteMapStats struct {
	Visited  int `json:"visited"`
	Failed   int `json:"failed"`
	Listings int `json:"listings"`
	Links    int `json:"links"`
	MaxDepth int `json:"max_depth_reached"`
}

// Stats computes summary statistics over the visited nodes.
func (m *SiteMap) Stats() SiteMapStats {
	var s SiteMapStats
	for i := range m.Nodes {
		n := &m.Nodes[i]
		s.Visited++
		if n.Failed() {
			s.Failed++
		}
		s.Listings += n.Listings
		s.Links += len(n.Links)
		if n.Depth > s.MaxDepth {
			s.MaxDepth = n.Depth
		}
	}
	return s
}

// Duration returns how long the run took.
func (m *SiteMap) Duration() time.Duration {
	if m.FinishedAt.IsZero() {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}
