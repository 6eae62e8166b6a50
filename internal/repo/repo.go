// Package repo owns the working set of leads: a read-through cache over the
// leads sheet with explicit write semantics for each mutation.
package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"leadboard-engine/internal/config"
	"leadboard-engine/internal/domain"
	"leadboard-engine/internal/ingest/mapping"
	"leadboard-engine/internal/ingest/sheets"
	"leadboard-engine/internal/store"
)

var (
	ErrNotFound    = errors.New("lead not found")
	ErrDuplicateID = errors.New("lead id already exists")
	ErrNoSource    = errors.New("sheet not configured")
)

// Source is the remote system of record.
type Source interface {
	FetchRows(ctx context.Context) ([][]string, error)
	FindRow(ctx context.Context, id string) (int, error)
	UpdateRow(ctx context.Context, row int, values []any) error
	AppendRows(ctx context.Context, rows [][]any) error
	DeleteLead(ctx context.Context, id string) error
}

// Origin says where the working set came from.
type Origin string

const (
	OriginNone     Origin = ""
	OriginSheet    Origin = "sheet"
	OriginSnapshot Origin = "snapshot"
	OriginSample   Origin = "sample"
)

type ChangeKind string

const (
	LeadCreated   ChangeKind = "lead_created"
	LeadUpdated   ChangeKind = "lead_updated"
	LeadDeleted   ChangeKind = "lead_deleted"
	LeadsImported ChangeKind = "leads_imported"
	LeadsSynced   ChangeKind = "leads_synced"
)

// Change describes one mutation of the working set.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	IDs   []string   `json:"ids,omitempty"`
	Count int        `json:"count"`
}

type Options struct {
	// Freshness is the consistency window: List serves the cache without
	// contacting the sheet while the last fetch is younger than this.
	Freshness   time.Duration
	Mode        string
	AddDelay    time.Duration
	DeleteDelay time.Duration
	ImportDelay time.Duration

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func OptionsFrom(cfg config.Config) Options {
	o := Options{
		Freshness: cfg.Freshness(),
		Mode:      cfg.Sync.Mode,
	}
	if o.Mode == config.ModeCacheOnly {
		o.AddDelay = time.Duration(cfg.Sync.AddDelayMS) * time.Millisecond
		o.DeleteDelay = time.Duration(cfg.Sync.DeleteDelayMS) * time.Millisecond
		o.ImportDelay = time.Duration(cfg.Sync.ImportDelayMS) * time.Millisecond
	}
	return o
}

// State is a point-in-time view of the cache for status endpoints.
type State struct {
	Count     int           `json:"count"`
	FetchedAt time.Time     `json:"fetchedAt"`
	Fresh     bool          `json:"fresh"`
	Origin    Origin        `json:"origin"`
	Mode      string        `json:"mode"`
	LastError string        `json:"lastError,omitempty"`
	Stats     mapping.Stats `json:"stats"`
}

type Repository struct {
	src   Source
	snaps store.SnapshotStore
	opts  Options
	log   *zap.Logger

	fetch singleflight.Group

	mu        sync.RWMutex
	leads     []domain.Lead
	fetchedAt time.Time
	origin    Origin
	lastErr   error
	stats     mapping.Stats
	onChange  []func(Change)
	// ids of adds and imports still waiting on their delay or remote write
	pending map[string]bool
}

// New builds a repository. src may be nil when the sheet is not configured;
// reads then fall back to the snapshot or sample data and remote writes fail
// with ErrNoSource.
func New(src Source, snaps store.SnapshotStore, opts Options, log *zap.Logger) *Repository {
	if snaps == nil {
		snaps = store.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if opts.Mode == "" {
		opts.Mode = config.ModeCacheOnly
	}
	return &Repository{src: src, snaps: snaps, opts: opts, log: log, pending: map[string]bool{}}
}

// OnChange registers fn to run after every mutation. Callbacks run on the
// mutating goroutine, outside the repository lock.
func (r *Repository) OnChange(fn func(Change)) {
	r.mu.Lock()
	r.onChange = append(r.onChange, fn)
	r.mu.Unlock()
}

func (r *Repository) publish(c Change) {
	r.mu.RLock()
	fns := append([]func(Change){}, r.onChange...)
	r.mu.RUnlock()
	for _, fn := range fns {
		fn(c)
	}
}

// List returns the working set. Inside the consistency window the cache is
// served; otherwise the sheet is fetched. A failed fetch degrades to the
// cache, then the persisted snapshot, then the sample leads, so List always
// has something to return.
func (r *Repository) List(ctx context.Context) []domain.Lead {
	if leads, ok := r.cached(true); ok {
		return leads
	}

	_, err, _ := r.fetch.Do("sheet", func() (any, error) {
		return r.refresh(context.WithoutCancel(ctx))
	})
	if err == nil {
		leads, _ := r.cached(false)
		return leads
	}

	r.log.Warn("lead fetch failed, serving fallback", zap.Error(err))
	if leads, ok := r.cached(false); ok && r.Origin() != OriginNone {
		return leads
	}
	return r.fallback(ctx)
}

func (r *Repository) cached(requireFresh bool) ([]domain.Lead, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if requireFresh && !r.freshLocked() {
		return nil, false
	}
	return cloneAll(r.leads), true
}

// An empty working set is never fresh.
func (r *Repository) freshLocked() bool {
	if len(r.leads) == 0 || r.fetchedAt.IsZero() {
		return false
	}
	return r.opts.Now().Sub(r.fetchedAt) < r.opts.Freshness
}

func (r *Repository) fallback(ctx context.Context) []domain.Lead {
	snap, err := r.snaps.LoadSnapshot(ctx)
	if err == nil {
		r.mu.Lock()
		if r.origin == OriginNone {
			r.leads = cloneAll(snap.Leads)
			r.origin = OriginSnapshot
		}
		leads := cloneAll(r.leads)
		r.mu.Unlock()
		r.log.Info("serving persisted snapshot", zap.Int("leads", len(snap.Leads)), zap.Time("fetched_at", snap.FetchedAt))
		return leads
	}
	if !errors.Is(err, store.ErrNoSnapshot) {
		r.log.Warn("snapshot load failed", zap.Error(err))
	}

	r.mu.Lock()
	if r.origin == OriginNone {
		r.leads = SampleLeads()
		r.origin = OriginSample
	}
	leads := cloneAll(r.leads)
	r.mu.Unlock()
	return leads
}

// Refresh fetches the sheet now, bypassing the consistency window. Concurrent
// calls share one fetch.
func (r *Repository) Refresh(ctx context.Context) (mapping.Stats, error) {
	v, err, _ := r.fetch.Do("sheet", func() (any, error) {
		return r.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return mapping.Stats{}, err
	}
	return v.(mapping.Stats), nil
}

func (r *Repository) refresh(ctx context.Context) (mapping.Stats, error) {
	if r.src == nil {
		r.setErr(ErrNoSource)
		return mapping.Stats{}, ErrNoSource
	}
	rows, err := r.src.FetchRows(ctx)
	if err != nil {
		r.setErr(err)
		return mapping.Stats{}, err
	}
	now := r.opts.Now()
	leads, st := mapping.MapRows(rows, now)
	snap := store.Snapshot{Leads: cloneAll(leads), FetchedAt: now}

	r.mu.Lock()
	r.leads = leads
	r.fetchedAt = now
	r.origin = OriginSheet
	r.lastErr = nil
	r.stats = st
	r.mu.Unlock()

	if err := r.snaps.SaveSnapshot(ctx, snap); err != nil {
		r.log.Warn("snapshot save failed", zap.Error(err))
	}
	r.log.Info("leads synced",
		zap.Int("rows", st.Rows),
		zap.Int("mapped", st.Mapped),
		zap.Int("skipped_blank", st.SkippedBlank),
		zap.Int("skipped_no_contact", st.SkippedNoContact),
		zap.Int("duplicate_ids", st.DuplicateIDs),
	)
	r.publish(Change{Kind: LeadsSynced, Count: len(leads)})
	return st, nil
}

func (r *Repository) setErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Lead, error) {
	for _, l := range r.List(ctx) {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.Lead{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Update overwrites the lead's sheet row, then writes the lead through to the
// cache and expires the consistency window so the next List refetches.
func (r *Repository) Update(ctx context.Context, l domain.Lead) (domain.Lead, error) {
	if r.src == nil {
		return domain.Lead{}, ErrNoSource
	}
	row, err := r.src.FindRow(ctx, l.ID)
	if err != nil {
		if errors.Is(err, sheets.ErrRowNotFound) {
			return domain.Lead{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return domain.Lead{}, err
	}
	if err := r.src.UpdateRow(ctx, row, mapping.RowValues(l)); err != nil {
		return domain.Lead{}, err
	}

	r.mu.Lock()
	if i := indexOf(r.leads, l.ID); i >= 0 {
		r.leads[i] = l.Clone()
	}
	r.fetchedAt = time.Time{}
	r.mu.Unlock()

	r.log.Info("lead updated", zap.String("id", l.ID), zap.Int("row", row))
	r.publish(Change{Kind: LeadUpdated, IDs: []string{l.ID}, Count: 1})
	return l, nil
}

// Add assigns an id and creation date when missing, applies defaults and adds
// the lead to the working set. In write-through mode the row is appended to
// the sheet first.
func (r *Repository) Add(ctx context.Context, l domain.Lead) (domain.Lead, error) {
	r.List(ctx)

	if l.ID == "" {
		l.ID = "lead-" + uuid.NewString()
	}
	l.ApplyDefaults(r.opts.Now())

	r.mu.Lock()
	if r.takenLocked(l.ID) {
		r.mu.Unlock()
		return domain.Lead{}, fmt.Errorf("%w: %s", ErrDuplicateID, l.ID)
	}
	r.pending[l.ID] = true
	r.mu.Unlock()

	err := r.remoteOrDelay(ctx, r.opts.AddDelay, func() error {
		return r.src.AppendRows(ctx, [][]any{mapping.RowValues(l)})
	})

	r.mu.Lock()
	delete(r.pending, l.ID)
	// a refresh during the write may already hold the appended row
	if err == nil && indexOf(r.leads, l.ID) < 0 {
		r.leads = append(r.leads, l.Clone())
	}
	r.mu.Unlock()
	if err != nil {
		return domain.Lead{}, err
	}

	r.log.Info("lead added", zap.String("id", l.ID), zap.String("mode", r.opts.Mode))
	r.publish(Change{Kind: LeadCreated, IDs: []string{l.ID}, Count: 1})
	return l, nil
}

// Delete removes a lead from the working set, and from the sheet in
// write-through mode.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.List(ctx)

	r.mu.RLock()
	found := indexOf(r.leads, id) >= 0
	r.mu.RUnlock()
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	err := r.remoteOrDelay(ctx, r.opts.DeleteDelay, func() error {
		err := r.src.DeleteLead(ctx, id)
		if errors.Is(err, sheets.ErrRowNotFound) {
			// added while in cache_only mode; nothing to remove remotely
			r.log.Warn("lead missing from sheet, removing from cache only", zap.String("id", id))
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	if i := indexOf(r.leads, id); i >= 0 {
		r.leads = append(r.leads[:i:i], r.leads[i+1:]...)
	}
	r.mu.Unlock()

	r.log.Info("lead deleted", zap.String("id", id), zap.String("mode", r.opts.Mode))
	r.publish(Change{Kind: LeadDeleted, IDs: []string{id}, Count: 1})
	return nil
}

// Import appends parsed leads to the working set. Ids that collide with an
// existing lead get a random suffix.
func (r *Repository) Import(ctx context.Context, leads []domain.Lead) ([]domain.Lead, error) {
	if len(leads) == 0 {
		return nil, nil
	}
	r.List(ctx)

	now := r.opts.Now()
	out := make([]domain.Lead, 0, len(leads))
	rows := make([][]any, 0, len(leads))

	r.mu.Lock()
	for _, l := range leads {
		l = l.Clone()
		if l.ID == "" || r.takenLocked(l.ID) {
			l.ID = fmt.Sprintf("%s-%s", nonEmpty(l.ID, "imported"), uuid.NewString()[:8])
		}
		r.pending[l.ID] = true
		l.ApplyDefaults(now)
		out = append(out, l)
		rows = append(rows, mapping.RowValues(l))
	}
	r.mu.Unlock()

	err := r.remoteOrDelay(ctx, r.opts.ImportDelay, func() error {
		return r.src.AppendRows(ctx, rows)
	})

	r.mu.Lock()
	for _, l := range out {
		delete(r.pending, l.ID)
		if err == nil && indexOf(r.leads, l.ID) < 0 {
			r.leads = append(r.leads, l.Clone())
		}
	}
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(out))
	for i, l := range out {
		ids[i] = l.ID
	}
	r.log.Info("leads imported", zap.Int("count", len(out)), zap.String("mode", r.opts.Mode))
	r.publish(Change{Kind: LeadsImported, IDs: ids, Count: len(out)})
	return out, nil
}

// remoteOrDelay runs the remote write in write-through mode and the simulated
// latency in cache-only mode.
func (r *Repository) remoteOrDelay(ctx context.Context, delay time.Duration, remote func() error) error {
	if r.opts.Mode == config.ModeWriteThrough {
		if r.src == nil {
			return ErrNoSource
		}
		return remote()
	}
	return r.opts.Sleep(ctx, delay)
}

func (r *Repository) Origin() Origin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.origin
}

func (r *Repository) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := State{
		Count:     len(r.leads),
		FetchedAt: r.fetchedAt,
		Fresh:     r.freshLocked(),
		Origin:    r.origin,
		Mode:      r.opts.Mode,
		Stats:     r.stats,
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}

// takenLocked reports whether id is in the working set or reserved by an
// add or import in flight. Callers hold r.mu.
func (r *Repository) takenLocked(id string) bool {
	return r.pending[id] || indexOf(r.leads, id) >= 0
}

func indexOf(leads []domain.Lead, id string) int {
	for i := range leads {
		if leads[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(in []domain.Lead) []domain.Lead {
	out := make([]domain.Lead, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func nonEmpty(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
