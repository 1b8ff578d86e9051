package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/corrupt0303/listingscan/internal/model"
)

// MapRun is a stored site mapping run.
type MapRun struct {
	ID         int64
	Seed       string
	MaxDepth   int
	StartedAt  time.Time
	FinishedAt time.Time
	Visited    int
	Skipped    int
	Truncated  bool
}

// Finished reports whether the run completed and was closed with Finish.
func (r *MapRun) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Link is a stored edge of a mapping run.
type Link struct {
	From string
	To   string
}

// RunRecorder writes the nodes and links of one mapping run as they are
// discovered. It satisfies the mapper's link recorder interface.
//
// Design decision: Rows are written immediately instead of once at the end
// of the run. A run cancelled halfway or killed by a block page still
// leaves the explored part of the site in the database.
type RunRecorder struct {
	db    *ListingDB
	runID int64
}

// StartRun creates a map run row and returns a recorder bound to it.
func (ldb *ListingDB) StartRun(ctx context.Context, seed string, maxDepth int) (*RunRecorder, error) {
	result, err := ldb.db.ExecContext(ctx,
		`INSERT INTO map_runs (seed, max_depth) VALUES (?, ?)`,
		seed, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to start map run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get map run id: %w", err)
	}
	return &RunRecorder{db: ldb, runID: id}, nil
}

// RunID returns the id of the run being recorded.
func (r *RunRecorder) RunID() int64 {
	return r.runID
}

// RecordNode stores a visited node. A node recorded twice keeps the
// latest values.
func (r *RunRecorder) RecordNode(ctx context.Context, node *model.MapNode) error {
	query := `
	INSERT INTO map_nodes (run_id, url, depth, parent, listings, hash, saved_as, block, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		depth = excluded.depth,
		parent = excluded.parent,
		listings = excluded.listings,
		hash = excluded.hash,
		saved_as = excluded.saved_as,
		block = excluded.block,
		error = excluded.error
	`
	_, err := r.db.db.ExecContext(ctx, query,
		r.runID,
		node.URL,
		node.Depth,
		node.Parent,
		node.Listings,
		node.Hash,
		node.SavedAs,
		string(node.Block),
		node.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record node: %w", err)
	}
	return nil
}

// RecordLink stores an edge. Duplicate edges are ignored.
func (r *RunRecorder) RecordLink(ctx context.Context, from, to string) error {
	_, err := r.db.db.ExecContext(ctx,
		`INSERT INTO map_links (run_id, from_url, to_url) VALUES (?, ?, ?)
		ON CONFLICT(run_id, from_url, to_url) DO NOTHING`,
		r.runID, from, to)
	if err != nil {
		return fmt.Errorf("failed to record link: %w", err)
	}
	return nil
}

// Finish closes the run with the totals of sm.
func (r *RunRecorder) Finish(ctx context.Context, sm *model.SiteMap) error {
	truncated := 0
	if sm.Truncated {
		truncated = 1
	}
	_, err := r.db.db.ExecContext(ctx,
		`UPDATE map_runs SET finished_at = CURRENT_TIMESTAMP, visited = ?, skipped = ?, truncated = ?
		WHERE id = ?`,
		len(sm.Nodes), sm.Skipped, truncated, r.runID)
	if err != nil {
		return fmt.Errorf("failed to finish map run: %w", err)
	}
	return nil
}

// GetRun retrieves a map run by id. It returns nil when not found.
func (ldb *ListingDB) GetRun(ctx context.Context, id int64) (*MapRun, error) {
	row := ldb.db.QueryRowContext(ctx, `
	SELECT id, seed, max_depth, started_at, finished_at, visited, skipped, truncated
	FROM map_runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get map run: %w", err)
	}
	return run, nil
}

// ListRuns returns every map run, newest first.
func (ldb *ListingDB) ListRuns(ctx context.Context) ([]MapRun, error) {
	rows, err := ldb.db.QueryContext(ctx, `
	SELECT id, seed, max_depth, started_at, finished_at, visited, skipped, truncated
	FROM map_runs ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list map runs: %w", err)
	}
	defer rows.Close()

	var runs []MapRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan map run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*MapRun, error) {
	var (
		run       MapRun
		startedAt string
		finished  sql.NullString
		truncated int
	)
	if err := s.Scan(&run.ID, &run.Seed, &run.MaxDepth, &startedAt, &finished,
		&run.Visited, &run.Skipped, &truncated); err != nil {
		return nil, err
	}
	run.StartedAt = parseTimestamp(startedAt)
	if finished.Valid {
		run.FinishedAt = parseTimestamp(finished.String)
	}
	run.Truncated = truncated != 0
	return &run, nil
}

// RunNodes returns the nodes of a run in the order they were recorded.
// The Links of each node are filled from the run's edges.
func (ldb *ListingDB) RunNodes(ctx context.Context, runID int64) ([]model.MapNode, error) {
	rows, err := ldb.db.QueryContext(ctx, `
	SELECT url, depth, parent, listings, hash, saved_as, block, error
	FROM map_nodes WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run nodes: %w", err)
	}
	defer rows.Close()

	var nodes []model.MapNode
	for rows.Next() {
		var (
			n     model.MapNode
			block string
		)
		if err := rows.Scan(&n.URL, &n.Depth, &n.Parent, &n.Listings,
			&n.Hash, &n.SavedAs, &block, &n.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run node: %w", err)
		}
		n.Block = model.BlockKind(block)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links, err := ldb.RunLinks(ctx, runID)
	if err != nil {
		return nil, err
	}
	byFrom := make(map[string][]string)
	for _, l := range links {
		byFrom[l.From] = append(byFrom[l.From], l.To)
	}
	for i := range nodes {
		nodes[i].Links = byFrom[nodes[i].URL]
	}
	return nodes, nil
}

// RunLinks returns the edges of a run in the order they were recorded.
func (ldb *ListingDB) RunLinks(ctx context.Context, runID int64) ([]Link, error) {
	rows, err := ldb.db.QueryContext(ctx, `
	SELECT from_url, to_url FROM map_links WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.From, &l.To); err != nil {
			return nil, fmt.Errorf("failed to scan run link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// LoadSiteMap rebuilds the SiteMap of a stored run.
// It returns nil when the run does not exist.
func (ldb *ListingDB) LoadSiteMap(ctx context.Context, runID int64) (*model.SiteMap, error) {
	run, err := ldb.GetRun(ctx, runID)
	if err != nil || run == nil {
		return nil, err
	}
	nodes, err := ldb.RunNodes(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &model.SiteMap{
		Seed:       run.Seed,
		MaxDepth:   run.MaxDepth,
		Nodes:      nodes,
		Skipped:    run.Skipped,
		Truncated:  run.Truncated,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}, nil
}

// Inbound returns the distinct URLs that link to url across all runs.
func (ldb *ListingDB) Inbound(ctx context.Context, url string) ([]string, error) {
	rows, err := ldb.db.QueryContext(ctx, `
	SELECT DISTINCT from_url FROM map_links WHERE to_url = ? ORDER BY from_url
	`, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get inbound links: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var from string
		if err := rows.Scan(&from); err != nil {
			return nil, fmt.Errorf("failed to scan inbound link: %w", err)
		}
		out = append(out, from)
	}
	return out, rows.Err()
}
