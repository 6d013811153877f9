package eventlog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Index is a derived SQLite aggregation over the JSONL logs, giving
// get_log_summary-style queries across many workflows without re-scanning
// every file. It is never the source of truth: the JSONL log is, per
// spec.md §4.3 and §3's "log entries are auxiliary" note. Index can always
// be dropped and rebuilt from the JSONL files on disk.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if necessary) the SQLite summary index at path.
// Configured the way the teacher's SQLite driver configures its primary
// connection, since the same durability/concurrency tradeoffs apply to a
// single-writer append workload.
func OpenIndex(ctx context.Context, path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("eventlog: failed to open index %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: failed to ping index %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA synchronous = NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("eventlog: failed to apply pragma %q: %w", p, err)
		}
	}

	idx := &Index{db: db}
	if err := idx.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS log_summary (
	workflow_id TEXT PRIMARY KEY,
	total_events INTEGER NOT NULL,
	decisions INTEGER NOT NULL,
	alignment_checks INTEGER NOT NULL,
	performance_metrics INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);`
	if _, err := idx.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("eventlog: failed to migrate index: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (idx *Index) Close() error { return idx.db.Close() }

// Refresh recomputes and upserts workflowID's row from sum, the same value
// GetLogSummary would compute from the JSONL file directly. Call this after
// appending log entries whenever the index needs to stay current; callers
// that only ever read via GetLogSummary never need it.
func (idx *Index) Refresh(ctx context.Context, workflowID string, sum *Summary) error {
	const stmt = `
INSERT INTO log_summary (workflow_id, total_events, decisions, alignment_checks, performance_metrics, updated_at)
VALUES (?, ?, ?, ?, ?, datetime('now'))
ON CONFLICT(workflow_id) DO UPDATE SET
	total_events = excluded.total_events,
	decisions = excluded.decisions,
	alignment_checks = excluded.alignment_checks,
	performance_metrics = excluded.performance_metrics,
	updated_at = excluded.updated_at;`
	_, err := idx.db.ExecContext(ctx, stmt, workflowID, sum.TotalEvents,
		len(sum.Decisions), len(sum.AlignmentChecks), len(sum.PerformanceMetrics))
	if err != nil {
		return fmt.Errorf("eventlog: failed to refresh index for %s: %w", workflowID, err)
	}
	return nil
}

// IndexSummary is the lightweight row shape returned by Totals, distinct
// from Summary because the index never holds the individual entries.
type IndexSummary struct {
	WorkflowID         string
	TotalEvents        int
	Decisions          int
	AlignmentChecks    int
	PerformanceMetrics int
}

// Totals returns every workflow's indexed counts, ordered by workflow ID.
func (idx *Index) Totals(ctx context.Context) ([]IndexSummary, error) {
	rows, err := idx.db.QueryContext(ctx, `
SELECT workflow_id, total_events, decisions, alignment_checks, performance_metrics
FROM log_summary ORDER BY workflow_id;`)
	if err != nil {
		return nil, fmt.Errorf("eventlog: failed to query index totals: %w", err)
	}
	defer rows.Close()

	var out []IndexSummary
	for rows.Next() {
		var s IndexSummary
		if err := rows.Scan(&s.WorkflowID, &s.TotalEvents, &s.Decisions, &s.AlignmentChecks, &s.PerformanceMetrics); err != nil {
			return nil, fmt.Errorf("eventlog: failed to scan index row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: failed to iterate index rows: %w", err)
	}
	return out, nil
}
