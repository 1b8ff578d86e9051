// Package model defines the core data structures used throughout listingscan.
//
// This package contains the following main types:
//   - ListingRecord: One search result entry, optionally augmented from its detail page
//   - DetailRecord: The fields extracted from a single detail page
//   - SearchQuery: The filters of one search invocation
//   - BlockKind: Terminal classification of an anti-bot response
//   - SiteMap / MapNode: The result of a site mapping run
//   - Page: A rendered HTML snapshot
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The search, crawler, report, and database packages all use
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output.
package model
