package store

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 2

func Migrate(db *sql.DB) error {

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= schemaVersion {
		return tx.Commit()
	}

	// ---- Schema v1: tables ----

	// single row: the last successful fetch of the sheet
	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS lead_snapshots (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  leads TEXT NOT NULL DEFAULT '[]',
  lead_count INTEGER NOT NULL DEFAULT 0,
  fetched_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS sync_runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  trigger TEXT NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  ok INTEGER NOT NULL DEFAULT 0,
  leads INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT ''
);
`); err != nil {
		return err
	}

	// ---- Schema v1: indexes ----

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_sync_runs_started
ON sync_runs(started_at);
`); err != nil {
		return err
	}

	// ---- Schema v2: skipped-row counters on sync runs ----

	if !columnExists(tx, "sync_runs", "skipped") {
		if _, err := tx.Exec(`ALTER TABLE sync_runs ADD COLUMN skipped INTEGER NOT NULL DEFAULT 0;`); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

func columnExists(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	err := q.QueryRow(query, col).Scan(&one)
	return err == nil
}
