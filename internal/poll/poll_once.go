// Package poll keeps the working set in step with the sheet: one-shot sync
// runs with a recorded history, and the background refresh loop.
package poll

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"leadboard-engine/internal/ingest/mapping"
	"leadboard-engine/internal/store"
)

var ErrRunning = errors.New("sync already running")

// Run triggers.
const (
	TriggerStartup = "startup"
	TriggerPoll    = "poll"
	TriggerManual  = "manual"
)

// How long sync_runs history is kept.
const runRetention = 30 * 24 * time.Hour

type Refresher interface {
	Refresh(ctx context.Context) (mapping.Stats, error)
}

// Status is the latest sync outcome, as served by /sync/status.
type Status struct {
	LastRunAt   string `json:"last_run_at"`
	LastOkAt    string `json:"last_ok_at"`
	LastError   string `json:"last_error"`
	LastLeads   int    `json:"last_leads"`
	LastSkipped int    `json:"last_skipped"`
	LastTrigger string `json:"last_trigger"`
	Running     bool   `json:"running"`
}

// Syncer runs refreshes one at a time and records each in sync_runs.
type Syncer struct {
	repo Refresher
	db   *sql.DB
	log  *zap.Logger
	now  func() time.Time

	running atomic.Bool
	status  atomic.Value // Status
	wg      sync.WaitGroup
	onFail  func(trigger string, err error)
}

// NewSyncer builds a Syncer. db may be nil, in which case runs are not
// recorded.
func NewSyncer(repo Refresher, db *sql.DB, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Syncer{repo: repo, db: db, log: log, now: time.Now}
	s.status.Store(Status{})
	return s
}

// OnFailure registers fn to run after each failed refresh. Call it before
// the first run.
func (s *Syncer) OnFailure(fn func(trigger string, err error)) {
	s.onFail = fn
}

func (s *Syncer) Status() Status {
	return s.status.Load().(Status)
}

// RunOnce refreshes the working set now. It fails with ErrRunning when a run
// is already in flight.
func (s *Syncer) RunOnce(ctx context.Context, trigger string) (mapping.Stats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return mapping.Stats{}, ErrRunning
	}
	defer s.running.Store(false)

	started := s.now()
	st := s.Status()
	st.Running = true
	st.LastRunAt = started.Format(time.RFC3339)
	st.LastTrigger = trigger
	s.status.Store(st)

	stats, err := s.repo.Refresh(ctx)
	finished := s.now()

	st.Running = false
	st.LastLeads = stats.Mapped
	st.LastSkipped = stats.SkippedBlank + stats.SkippedNoContact
	if err != nil {
		st.LastError = err.Error()
		s.log.Warn("sync failed", zap.String("trigger", trigger), zap.Error(err))
	} else {
		st.LastError = ""
		st.LastOkAt = finished.Format(time.RFC3339)
		s.log.Info("sync ok",
			zap.String("trigger", trigger),
			zap.Int("leads", stats.Mapped),
			zap.Duration("took", finished.Sub(started)),
		)
	}
	s.status.Store(st)

	s.record(ctx, store.SyncRun{
		Trigger:    trigger,
		StartedAt:  started,
		FinishedAt: finished,
		OK:         err == nil,
		Leads:      stats.Mapped,
		Skipped:    st.LastSkipped,
		Error:      st.LastError,
	})
	if err != nil && s.onFail != nil {
		s.onFail(trigger, err)
	}
	return stats, err
}

// RunAsync starts a run in the background; Wait blocks until background runs
// finish.
func (s *Syncer) RunAsync(ctx context.Context, trigger string) error {
	if s.running.Load() {
		return ErrRunning
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.RunOnce(context.WithoutCancel(ctx), trigger)
	}()
	return nil
}

func (s *Syncer) Wait() { s.wg.Wait() }

func (s *Syncer) record(ctx context.Context, run store.SyncRun) {
	if s.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := store.RecordSyncRun(ctx, s.db, run); err != nil {
		s.log.Warn("record sync run failed", zap.Error(err))
		return
	}
	if n, err := store.CleanupOldRuns(s.db, runRetention); err != nil {
		s.log.Warn("sync run cleanup failed", zap.Error(err))
	} else if n > 0 {
		s.log.Debug("old sync runs removed", zap.Int64("deleted", n))
	}
}
