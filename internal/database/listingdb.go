package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/corrupt0303/listingscan/internal/model"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "listingscan.db"

// ListingDB provides SQLite-based storage for listings and map runs.
//
// Design decision: We use a single database file for both listings and
// map runs rather than one file per run. This keeps "which listings were
// seen where" queries to a join and backups to one file.
type ListingDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ListingDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ListingDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ListingDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ldb := &ListingDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := ldb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return ldb, nil
}

// Path returns the database file path.
func (ldb *ListingDB) Path() string {
	return ldb.dbPath
}

// Close closes the database connection.
func (ldb *ListingDB) Close() error {
	return ldb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (ldb *ListingDB) createTables() error {
	schema := `
	-- Listings hold the latest version of every search result
	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		title TEXT,
		location TEXT,
		description TEXT,
		age TEXT,
		category TEXT,
		contact_info TEXT,
		record_json TEXT NOT NULL,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_listings_location ON listings(location);
	CREATE INDEX IF NOT EXISTS idx_listings_last_seen ON listings(last_seen);

	-- Map runs are site mapping sessions
	CREATE TABLE IF NOT EXISTS map_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME,
		visited INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		truncated INTEGER DEFAULT 0
	);

	-- Map nodes are the pages visited by a run
	CREATE TABLE IF NOT EXISTS map_nodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES map_runs(id),
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		parent TEXT,
		listings INTEGER DEFAULT 0,
		hash TEXT,
		saved_as TEXT,
		block TEXT,
		error TEXT,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_run ON map_nodes(run_id);

	-- Map links are the edges discovered by a run
	CREATE TABLE IF NOT EXISTS map_links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES map_runs(id),
		from_url TEXT NOT NULL,
		to_url TEXT NOT NULL,
		UNIQUE(run_id, from_url, to_url)
	);

	CREATE INDEX IF NOT EXISTS idx_links_run ON map_links(run_id);
	CREATE INDEX IF NOT EXISTS idx_links_to ON map_links(to_url);
	`

	_, err := ldb.db.ExecContext(context.Background(), schema)
	return err
}

// StoredListing is a listing row.
type StoredListing struct {
	ID        int64
	Record    model.ListingRecord
	FirstSeen time.Time
	LastSeen  time.Time
}

// SaveListings inserts or updates every data record of records and returns
// how many were stored. Error and diagnostics-only records are skipped.
// Uses UPSERT so a listing seen again keeps its first_seen time.
func (ldb *ListingDB) SaveListings(ctx context.Context, records []model.ListingRecord) (int, error) {
	tx, err := ldb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO listings (url, title, location, description, age, category, contact_info, record_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		title = excluded.title,
		location = excluded.location,
		description = excluded.description,
		age = excluded.age,
		category = excluded.category,
		contact_info = COALESCE(excluded.contact_info, listings.contact_info),
		record_json = excluded.record_json,
		last_seen = CURRENT_TIMESTAMP
	`

	saved := 0
	for i := range records {
		r := records[i]
		if r.HasError() || r.URL == "" {
			continue
		}
		// Diagnostics belong to the search, not the listing.
		r.DebugURL, r.DebugProxiedURL = "", ""

		recordJSON, err := json.Marshal(r)
		if err != nil {
			return saved, fmt.Errorf("failed to serialize listing: %w", err)
		}

		var contact sql.NullString
		if r.ContactInfo != nil {
			contact = sql.NullString{String: *r.ContactInfo, Valid: true}
		}

		if _, err := tx.ExecContext(ctx, query,
			r.URL,
			r.Title,
			r.Location,
			r.Description,
			r.Age,
			r.Category,
			contact,
			string(recordJSON),
		); err != nil {
			return saved, fmt.Errorf("failed to save listing: %w", err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit listings: %w", err)
	}
	return saved, nil
}

// GetListing retrieves a listing by URL. It returns nil when not found.
func (ldb *ListingDB) GetListing(ctx context.Context, url string) (*StoredListing, error) {
	query := `
	SELECT id, record_json, first_seen, last_seen
	FROM listings
	WHERE url = ?
	`

	var (
		stored     StoredListing
		recordJSON string
		firstSeen  string
		lastSeen   string
	)
	err := ldb.db.QueryRowContext(ctx, query, url).Scan(&stored.ID, &recordJSON, &firstSeen, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	if err := json.Unmarshal([]byte(recordJSON), &stored.Record); err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}
	stored.FirstSeen = parseTimestamp(firstSeen)
	stored.LastSeen = parseTimestamp(lastSeen)
	return &stored, nil
}

// ListListings returns the most recently seen listings, newest first.
// A limit of zero or less returns every listing.
func (ldb *ListingDB) ListListings(ctx context.Context, limit int) ([]model.ListingRecord, error) {
	query := `SELECT record_json FROM listings ORDER BY last_seen DESC, id DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := ldb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var records []model.ListingRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		var r model.ListingRecord
		if err := json.Unmarshal([]byte(recordJSON), &r); err != nil {
			continue // Skip malformed rows
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// HasRecentListing checks if a listing was seen within the specified duration.
func (ldb *ListingDB) HasRecentListing(ctx context.Context, url string, duration time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM listings
	WHERE url = ? AND last_seen > datetime('now', ?)
	`

	// SQLite datetime modifier format
	modifier := fmt.Sprintf("-%d seconds", int(duration.Seconds()))

	var count int
	if err := ldb.db.QueryRowContext(ctx, query, url, modifier).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent listing: %w", err)
	}
	return count > 0, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
