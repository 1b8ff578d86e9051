// Package database provides SQLite-based storage for listingscan.
//
// This package implements the ListingDB, which stores:
//   - Listing records collected by searches, keyed by their proxied URL
//   - Site mapping runs with their nodes and the links between them
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for one scraper process
// 4. WAL mode lets reports read while a run is still writing
package database
