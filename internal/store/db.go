package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	Pool *sql.DB
}

// Open opens (or creates) the engine database in WAL mode. ":memory:" gives
// a private in-memory database.
func Open(path string) (*DB, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// sqlite wants one writer; this also keeps :memory: on a single connection
	pool.SetMaxOpenConns(1)
	if path != ":memory:" {
		pool.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return &DB{Pool: pool}, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

// CheckpointResult is the row returned by PRAGMA wal_checkpoint. LogFrames
// and Checkpointed are -1 when the database is not in WAL mode.
type CheckpointResult struct {
	Busy         bool `json:"busy"`
	LogFrames    int  `json:"logFrames"`
	Checkpointed int  `json:"checkpointed"`
}

// Checkpoint copies the WAL into the main database file and truncates it.
func Checkpoint(ctx context.Context, db *sql.DB) (CheckpointResult, error) {
	var busy, logFrames, done int
	err := db.QueryRowContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE);`).Scan(&busy, &logFrames, &done)
	if err != nil {
		return CheckpointResult{}, fmt.Errorf("wal checkpoint: %w", err)
	}
	return CheckpointResult{Busy: busy != 0, LogFrames: logFrames, Checkpointed: done}, nil
}
