package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadboard-engine/internal/domain"
)

// ErrNoSnapshot is returned by LoadSnapshot before the first save.
var ErrNoSnapshot = errors.New("store: no snapshot")

// Snapshot is the last successful sheet fetch.
type Snapshot struct {
	Leads     []domain.Lead `json:"leads"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// SnapshotStore persists the working set across restarts.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) (Snapshot, error)
	SaveSnapshot(ctx context.Context, s Snapshot) error
}

// Nop keeps nothing.
type Nop struct{}

func (Nop) LoadSnapshot(context.Context) (Snapshot, error) { return Snapshot{}, ErrNoSnapshot }
func (Nop) SaveSnapshot(context.Context, Snapshot) error { return nil }

// SQLiteSnapshots stores the snapshot as one JSON row.
type SQLiteSnapshots struct {
	db *sql.DB
}

func NewSQLiteSnapshots(db *sql.DB) *SQLiteSnapshots {
	return &SQLiteSnapshots{db: db}
}

func (s *SQLiteSnapshots) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var (
		leadsJSON string
		fetched   string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT leads, fetched_at
FROM lead_snapshots
WHERE id = 1;`).Scan(&leadsJSON, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(leadsJSON), &snap.Leads); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.FetchedAt, _ = time.Parse(timeLayout, fetched)
	return snap, nil
}

func (s *SQLiteSnapshots) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	leads := snap.Leads
	if leads == nil {
		leads = []domain.Lead{}
	}
	b, err := json.Marshal(leads)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO lead_snapshots (id, leads, lead_count, fetched_at)
VALUES (1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  leads = excluded.leads,
  lead_count = excluded.lead_count,
  fetched_at = excluded.fetched_at;`,
		string(b), len(leads), snap.FetchedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
