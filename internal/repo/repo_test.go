package repo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"leadboard-engine/internal/config"
	"leadboard-engine/internal/domain"
	"leadboard-engine/internal/ingest/sheets"
	"leadboard-engine/internal/store"
)

type fakeSource struct {
	mu       sync.Mutex
	rows     [][]string
	fetchErr error
	writeErr error
	fetches  int
	delay    time.Duration
	appended [][]any
	updated  map[int][]any
	deleted  []string
}

func (f *fakeSource) FetchRows(ctx context.Context) ([][]string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([][]string, len(f.rows))
	for i, r := range f.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (f *fakeSource) FindRow(ctx context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 1; i < len(f.rows); i++ {
		if len(f.rows[i]) > 0 && f.rows[i][0] == id {
			return i + 1, nil
		}
	}
	return 0, sheets.ErrRowNotFound
}

func (f *fakeSource) UpdateRow(ctx context.Context, row int, values []any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.updated == nil {
		f.updated = map[int][]any{}
	}
	f.updated[row] = values
	return nil
}

func (f *fakeSource) AppendRows(ctx context.Context, rows [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.appended = append(f.appended, rows...)
	return nil
}

func (f *fakeSource) DeleteLead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.fetchErr = err
	f.mu.Unlock()
}

type memSnapshots struct {
	snap  *store.Snapshot
	saves int
}

func (m *memSnapshots) LoadSnapshot(context.Context) (store.Snapshot, error) {
	if m.snap == nil {
		return store.Snapshot{}, store.ErrNoSnapshot
	}
	return *m.snap, nil
}

func (m *memSnapshots) SaveSnapshot(_ context.Context, s store.Snapshot) error {
	m.snap = &s
	m.saves++
	return nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var errUpstream = errors.New("502 bad gateway")

func sheetRows() [][]string {
	return [][]string{
		{"ID", "Full Name", "Email", "Status", "Stage", "Created At"},
		{"L-1", "Asha Rao", "asha@example.com", "Warm", "Initial Contact", "2024-05-01"},
		{"L-2", "Ravi", "", "Hot", "Trial Scheduled", "2024-05-10"},
	}
}

type harness struct {
	repo   *Repository
	src    *fakeSource
	snaps  *memSnapshots
	clock  *clock
	sleeps []time.Duration
	events []Change
}

func newHarness(t *testing.T, mode string) *harness {
	t.Helper()
	h := &harness{
		src:   &fakeSource{rows: sheetRows()},
		snaps: &memSnapshots{},
		clock: &clock{t: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)},
	}
	opts := Options{
		Freshness:   5 * time.Minute,
		Mode:        mode,
		AddDelay:    800 * time.Millisecond,
		DeleteDelay: 600 * time.Millisecond,
		ImportDelay: time.Second,
		Now:         h.clock.Now,
		Sleep: func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
	}
	h.repo = New(h.src, h.snaps, opts, zaptest.NewLogger(t))
	h.repo.OnChange(func(c Change) { h.events = append(h.events, c) })
	return h
}

func ids(leads []domain.Lead) []string {
	out := make([]string, len(leads))
	for i, l := range leads {
		out[i] = l.ID
	}
	return out
}

func TestListServesCacheInsideWindow(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	ctx := context.Background()

	assert.Equal(t, []string{"L-1", "L-2"}, ids(h.repo.List(ctx)))
	h.clock.Advance(4 * time.Minute)
	h.repo.List(ctx)
	assert.Equal(t, 1, h.src.fetchCount())

	h.clock.Advance(2 * time.Minute)
	h.repo.List(ctx)
	assert.Equal(t, 2, h.src.fetchCount())

	assert.Equal(t, 2, h.snaps.saves)
	assert.Equal(t, OriginSheet, h.repo.State().Origin)
	assert.True(t, h.repo.State().Fresh)
}

func TestListCallersShareOneFetch(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	h.src.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, h.repo.List(context.Background()), 2)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, h.src.fetchCount())
}

func TestListFallsBackToSample(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	h.src.fail(errUpstream)

	leads := h.repo.List(context.Background())
	assert.Equal(t, []string{"lead-1", "lead-2"}, ids(leads))
	assert.Equal(t, "John Smith", leads[0].FullName)
	assert.Equal(t, OriginSample, h.repo.Origin())
	assert.Equal(t, errUpstream.Error(), h.repo.State().LastError)
}

func TestListFallsBackToSnapshot(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	h.snaps.snap = &store.Snapshot{Leads: []domain.Lead{{ID: "S-1", FullName: "Saved"}}}
	h.src.fail(errUpstream)

	assert.Equal(t, []string{"S-1"}, ids(h.repo.List(context.Background())))
	assert.Equal(t, OriginSnapshot, h.repo.Origin())
}

func TestListKeepsStaleCacheOnFailure(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	ctx := context.Background()
	h.repo.List(ctx)

	h.src.fail(errUpstream)
	h.clock.Advance(time.Hour)
	assert.Equal(t, []string{"L-1", "L-2"}, ids(h.repo.List(ctx)))
	assert.Equal(t, 2, h.src.fetchCount())
}

func TestListWithoutSource(t *testing.T) {
	r := New(nil, nil, Options{}, nil)
	assert.Len(t, r.List(context.Background()), 2)
	assert.Equal(t, ErrNoSource.Error(), r.State().LastError)

	_, err := r.Update(context.Background(), domain.Lead{ID: "lead-1"})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestEmptySheet(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	h.src.rows = h.src.rows[:1]
	ctx := context.Background()

	assert.Empty(t, h.repo.List(ctx))
	assert.Empty(t, h.repo.List(ctx))
	// an empty set is never fresh
	assert.Equal(t, 2, h.src.fetchCount())
}

func TestGet(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	l, err := h.repo.Get(context.Background(), "L-2")
	require.NoError(t, err)
	assert.Equal(t, "Ravi", l.FullName)

	_, err = h.repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRoundTrip(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	ctx := context.Background()
	l, err := h.repo.Get(ctx, "L-1")
	require.NoError(t, err)

	l.Status = "Hot"
	l.FollowUps[0].Date = "2024-05-02"
	_, err = h.repo.Update(ctx, l)
	require.NoError(t, err)

	require.Contains(t, h.src.updated, 2)
	assert.Equal(t, "L-1", h.src.updated[2][0])
	assert.Equal(t, "Hot", h.src.updated[2][23])
	assert.False(t, h.repo.State().Fresh)

	// the refetch fails; the written-through lead is still served
	h.src.fail(errUpstream)
	got, err := h.repo.Get(ctx, "L-1")
	require.NoError(t, err)
	assert.Equal(t, "Hot", got.Status)
	assert.Equal(t, "2024-05-02", got.FollowUps[0].Date)
	assert.Equal(t, 2, h.src.fetchCount())
	assert.Equal(t, LeadUpdated, h.events[len(h.events)-1].Kind)
}

func TestUpdateMissingRow(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	_, err := h.repo.Update(context.Background(), domain.Lead{ID: "L-9"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, sheets.ErrRowNotFound)
}

func TestUpdateRemoteFailure(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	h.src.writeErr = errUpstream
	_, err := h.repo.Update(context.Background(), domain.Lead{ID: "L-1"})
	assert.ErrorIs(t, err, errUpstream)
}

func TestAddCacheOnly(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	ctx := context.Background()

	l, err := h.repo.Add(ctx, domain.Lead{FullName: "Nina", Email: "nina@example.com"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(l.ID, "lead-"), l.ID)
	assert.Equal(t, "2024-05-20", l.CreatedAt)
	assert.Equal(t, domain.DefaultSource, l.Source)
	assert.Equal(t, domain.DefaultStage, l.Stage)

	assert.Equal(t, []time.Duration{800 * time.Millisecond}, h.sleeps)
	assert.Empty(t, h.src.appended)
	assert.Len(t, h.repo.List(ctx), 3)

	_, err = h.repo.Add(ctx, domain.Lead{ID: l.ID})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestAddWriteThrough(t *testing.T) {
	h := newHarness(t, config.ModeWriteThrough)
	l, err := h.repo.Add(context.Background(), domain.Lead{ID: "L-7", FullName: "Nina"})
	require.NoError(t, err)
	require.Len(t, h.src.appended, 1)
	assert.Equal(t, "L-7", h.src.appended[0][0])
	assert.Empty(t, h.sleeps)
	assert.Equal(t, LeadCreated, h.events[len(h.events)-1].Kind)
	assert.Equal(t, []string{"L-7"}, h.events[len(h.events)-1].IDs)
	assert.Equal(t, "L-7", l.ID)

	h.src.writeErr = errUpstream
	_, err = h.repo.Add(context.Background(), domain.Lead{FullName: "Fails"})
	assert.ErrorIs(t, err, errUpstream)
	assert.Len(t, h.repo.List(context.Background()), 3)
}

func TestDeleteCacheOnly(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	ctx := context.Background()

	require.NoError(t, h.repo.Delete(ctx, "L-1"))
	assert.Equal(t, []string{"L-2"}, ids(h.repo.List(ctx)))
	assert.Empty(t, h.src.deleted)
	assert.Equal(t, []time.Duration{600 * time.Millisecond}, h.sleeps)

	assert.ErrorIs(t, h.repo.Delete(ctx, "L-1"), ErrNotFound)
}

func TestDeleteWriteThrough(t *testing.T) {
	h := newHarness(t, config.ModeWriteThrough)
	require.NoError(t, h.repo.Delete(context.Background(), "L-2"))
	assert.Equal(t, []string{"L-2"}, h.src.deleted)
	assert.Equal(t, LeadDeleted, h.events[len(h.events)-1].Kind)
}

func TestImport(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	ctx := context.Background()

	out, err := h.repo.Import(ctx, []domain.Lead{
		{ID: "imported-1", FullName: "A"},
		{ID: "L-1", FullName: "Clash"},
		{FullName: "NoID"},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "imported-1", out[0].ID)
	assert.True(t, strings.HasPrefix(out[1].ID, "L-1-"), out[1].ID)
	assert.True(t, strings.HasPrefix(out[2].ID, "imported-"), out[2].ID)
	assert.Equal(t, []time.Duration{time.Second}, h.sleeps)

	// a second import of the same file keeps ids unique
	again, err := h.repo.Import(ctx, []domain.Lead{{ID: "imported-1", FullName: "A"}})
	require.NoError(t, err)
	assert.NotEqual(t, "imported-1", again[0].ID)

	seen := map[string]bool{}
	for _, l := range h.repo.List(ctx) {
		assert.False(t, seen[l.ID], "duplicate id %s", l.ID)
		seen[l.ID] = true
	}
	assert.Len(t, seen, 6)

	last := h.events[len(h.events)-1]
	assert.Equal(t, LeadsImported, last.Kind)
	assert.Equal(t, 1, last.Count)
}

func TestImportWriteThroughAppendsRows(t *testing.T) {
	h := newHarness(t, config.ModeWriteThrough)
	_, err := h.repo.Import(context.Background(), []domain.Lead{{ID: "x-1"}, {ID: "x-2"}})
	require.NoError(t, err)
	assert.Len(t, h.src.appended, 2)
}

// gatedRepo blocks every simulated delay until release is closed.
func gatedRepo(t *testing.T) (*Repository, *atomic.Int32, chan struct{}) {
	t.Helper()
	var waiting atomic.Int32
	release := make(chan struct{})
	r := New(&fakeSource{rows: sheetRows()}, &memSnapshots{}, Options{
		Freshness: 5 * time.Minute,
		Mode:      config.ModeCacheOnly,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			waiting.Add(1)
			<-release
			return nil
		},
	}, zaptest.NewLogger(t))
	r.List(context.Background())
	return r, &waiting, release
}

func countID(leads []domain.Lead, id string) int {
	n := 0
	for _, l := range leads {
		if l.ID == id {
			n++
		}
	}
	return n
}

func TestConcurrentAddsKeepIDsUnique(t *testing.T) {
	r, waiting, release := gatedRepo(t)
	ctx := context.Background()

	var finished atomic.Int32
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Add(ctx, domain.Lead{ID: "dup", FullName: "Dup"})
			finished.Add(1)
		}(i)
	}
	require.Eventually(t, func() bool {
		return waiting.Load() == 1 && finished.Load() == 1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	var dup, ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateID):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
	assert.Equal(t, 1, countID(r.List(ctx), "dup"))
}

func TestImportDoesNotReuseIDInFlight(t *testing.T) {
	r, waiting, release := gatedRepo(t)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := r.Add(ctx, domain.Lead{ID: "L-9", FullName: "Nina"})
		done <- err
	}()
	require.Eventually(t, func() bool { return waiting.Load() == 1 }, time.Second, time.Millisecond)

	var imported []domain.Lead
	var importErr error
	importDone := make(chan struct{})
	go func() {
		defer close(importDone)
		imported, importErr = r.Import(ctx, []domain.Lead{
			{ID: "L-9", FullName: "Other Nina"},
			{ID: "batch", FullName: "One"},
			{ID: "batch", FullName: "Two"},
		})
	}()
	require.Eventually(t, func() bool { return waiting.Load() == 2 }, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, <-done)
	<-importDone
	require.NoError(t, importErr)

	require.Len(t, imported, 3)
	assert.NotEqual(t, "L-9", imported[0].ID)
	assert.Equal(t, "batch", imported[1].ID)
	assert.NotEqual(t, "batch", imported[2].ID)

	leads := r.List(ctx)
	for _, id := range []string{"L-9", "batch", imported[0].ID, imported[2].ID} {
		assert.Equal(t, 1, countID(leads, id), id)
	}
}

func TestRefreshRenamesRepeatedSheetIDs(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	h.src.rows = append(h.src.rows, []string{"L-1", "Asha Again", "again@example.com", "Warm", "Initial Contact", "2024-05-10"})

	stats, err := h.repo.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DuplicateIDs)

	leads := h.repo.List(context.Background())
	assert.Equal(t, 1, countID(leads, "L-1"))
	assert.Equal(t, 1, countID(leads, "L-1-2"))
}

func TestRefresh(t *testing.T) {
	h := newHarness(t, config.ModeCacheOnly)
	ctx := context.Background()
	h.repo.List(ctx)

	st, err := h.repo.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Mapped)
	assert.Equal(t, 2, h.src.fetchCount())
	assert.Equal(t, LeadsSynced, h.events[len(h.events)-1].Kind)

	h.src.fail(errUpstream)
	_, err = h.repo.Refresh(ctx)
	assert.ErrorIs(t, err, errUpstream)
}

func TestOptionsFrom(t *testing.T) {
	cfg := config.Default()
	o := OptionsFrom(cfg)
	assert.Equal(t, 5*time.Minute, o.Freshness)
	assert.Equal(t, 800*time.Millisecond, o.AddDelay)

	cfg.Sync.Mode = config.ModeWriteThrough
	o = OptionsFrom(cfg)
	assert.Zero(t, o.AddDelay)
	assert.Zero(t, o.ImportDelay)
}

func TestSleepCtxHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepCtx(context.Background(), 0))
}
