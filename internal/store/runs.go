package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SyncRun is one attempt to refresh the working set from the sheet.
type SyncRun struct {
	ID         int64     `json:"id"`
	Trigger    string    `json:"trigger"` // poll | manual | startup
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	OK         bool      `json:"ok"`
	Leads      int       `json:"leads"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
}

func RecordSyncRun(ctx context.Context, db *sql.DB, r SyncRun) (int64, error) {
	ok := 0
	if r.OK {
		ok = 1
	}
	res, err := db.ExecContext(ctx, `
INSERT INTO sync_runs (trigger, started_at, finished_at, ok, leads, skipped, error)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
		r.Trigger,
		r.StartedAt.UTC().Format(timeLayout),
		r.FinishedAt.UTC().Format(timeLayout),
		ok, r.Leads, r.Skipped, r.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("record sync run: %w", err)
	}
	return res.LastInsertId()
}

// ListSyncRuns returns the most recent runs, newest first.
func ListSyncRuns(ctx context.Context, db *sql.DB, limit int) ([]SyncRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
SELECT id, trigger, started_at, finished_at, ok, leads, skipped, error
FROM sync_runs
ORDER BY started_at DESC, id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncRun
	for rows.Next() {
		var (
			r                 SyncRun
			started, finished string
			ok                int
		)
		if err := rows.Scan(&r.ID, &r.Trigger, &started, &finished, &ok, &r.Leads, &r.Skipped, &r.Error); err != nil {
			return nil, err
		}
		r.OK = ok == 1
		r.StartedAt, _ = time.Parse(timeLayout, started)
		r.FinishedAt, _ = time.Parse(timeLayout, finished)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CleanupOldRuns drops run history older than maxAge.
func CleanupOldRuns(db *sql.DB, maxAge time.Duration) (deleted int64, err error) {
	cutoff := time.Now().Add(-maxAge).UTC().Format(timeLayout)
	res, err := db.Exec(`
DELETE FROM sync_runs
WHERE started_at < ?;
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old sync runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
