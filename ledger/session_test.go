package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/labor-engine/ledger"
)

// sessionStore serves scripted attendance rows and can hold a fetch open
// until released, to reproduce in-flight invalidation.
type sessionStore struct {
	mu      sync.Mutex
	rows    []ledger.RawRecord
	err     error
	fetches int

	gate chan struct{} // when set, FetchAttendance blocks until closed

	upserts [][]ledger.LaborUpsert
}

func (s *sessionStore) FetchAttendance(ctx context.Context, _ ledger.Identity, _ ledger.DateRange) ([]ledger.RawRecord, error) {
	s.mu.Lock()
	s.fetches++
	gate := s.gate
	rows, err := s.rows, s.err
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return rows, err
}

func (s *sessionStore) UpsertLabor(_ context.Context, _ ledger.Identity, batch []ledger.LaborUpsert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, batch)
	return nil
}

func (s *sessionStore) ListSites(context.Context) ([]ledger.Site, error) { return nil, nil }
func (s *sessionStore) ListAssignments(context.Context, ledger.Identity) ([]ledger.Assignment, error) {
	return nil, nil
}

func (s *sessionStore) setRows(rows []ledger.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
}

func fixedClock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }
}

func newTestSession(store *sessionStore) *ledger.Session {
	s := ledger.NewSession(store, "w1")
	s.SetClock(fixedClock(2024, time.March, 15))
	s.SetMonths(month(2024, time.March), month(2024, time.March))
	return s
}

// =============================================================================
// REFRESH
// =============================================================================

func TestSession_RefreshReplacesWholesale(t *testing.T) {
	store := &sessionStore{rows: []ledger.RawRecord{
		{ID: "r1", WorkDate: "2024-03-04", SiteID: "s1", UserID: "w1", WorkHours: ledger.Num(8), Status: "approved"},
	}}
	s := newTestSession(store)
	defer s.Close()

	require.NoError(t, s.Refresh(context.Background()))
	require.Len(t, s.Records(), 1)

	// The next fetch returns a disjoint set; nothing from the old set survives.
	store.setRows([]ledger.RawRecord{
		{ID: "r2", WorkDate: "2024-03-06", SiteID: "s2", UserID: "w1", WorkHours: ledger.Num(4), Status: "submitted"},
	})
	require.NoError(t, s.Refresh(context.Background()))

	records := s.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "r2", records[0].ID)
}

func TestSession_StaleResponseDiscarded(t *testing.T) {
	gate := make(chan struct{})
	store := &sessionStore{gate: gate, rows: []ledger.RawRecord{
		{ID: "old", WorkDate: "2024-03-04", SiteID: "s1", UserID: "w1", WorkHours: ledger.Num(8), Status: "approved"},
	}}
	s := newTestSession(store)
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background()) }()

	// Wait for the fetch to be in flight, then change the view.
	for {
		store.mu.Lock()
		started := store.fetches > 0
		store.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}
	s.SetMonths(month(2024, time.April), month(2024, time.April))
	close(gate)

	err := <-done
	assert.ErrorIs(t, err, ledger.ErrStaleFetch)
	assert.Empty(t, s.Records(), "superseded fetch must not install records")
}

func TestSession_FetchFailureDegradesToEmpty(t *testing.T) {
	store := &sessionStore{rows: []ledger.RawRecord{
		{ID: "r1", WorkDate: "2024-03-04", SiteID: "s1", UserID: "w1", WorkHours: ledger.Num(8), Status: "approved"},
	}}
	s := newTestSession(store)
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))
	require.Len(t, s.Records(), 1)

	store.mu.Lock()
	store.err = errors.New("upstream 502")
	store.mu.Unlock()

	err := s.Refresh(context.Background())

	require.NoError(t, err, "fetch failure is not a session fault")
	assert.Empty(t, s.Records())
	assert.Error(t, s.LastFetchErr())

	// Recovery clears the retained error.
	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	require.NoError(t, s.Refresh(context.Background()))
	assert.NoError(t, s.LastFetchErr())
	assert.Len(t, s.Records(), 1)
}

func TestSession_CloseCancelsInFlightFetch(t *testing.T) {
	gate := make(chan struct{})
	store := &sessionStore{gate: gate}
	s := newTestSession(store)

	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background()) }()

	for {
		store.mu.Lock()
		started := store.fetches > 0
		store.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}
	s.Close()

	err := <-done
	assert.ErrorIs(t, err, ledger.ErrSessionClosed)

	assert.ErrorIs(t, s.Refresh(context.Background()), ledger.ErrSessionClosed)
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

func TestSession_CalendarAndStatsFollowFilter(t *testing.T) {
	store := &sessionStore{rows: []ledger.RawRecord{
		{ID: "r1", WorkDate: "2024-03-04", SiteID: "s1", UserID: "w1", WorkHours: ledger.Num(8), Status: "approved"},
		{ID: "r2", WorkDate: "2024-03-05", SiteID: "s2", UserID: "w1", WorkHours: ledger.Num(8), Status: "approved"},
	}}
	s := newTestSession(store)
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))

	assert.Equal(t, 2, s.MonthStats().WorkDays)

	s.SetFilter(ledger.Filter{SiteID: "s1"})
	assert.Equal(t, 1, s.MonthStats().WorkDays, "filter applies without refetching")

	store.mu.Lock()
	fetches := store.fetches
	store.mu.Unlock()
	assert.Equal(t, 1, fetches)
}

func TestSession_PayrollIgnoresFilter(t *testing.T) {
	store := &sessionStore{rows: []ledger.RawRecord{
		{ID: "r1", WorkDate: "2024-03-04", SiteID: "s1", UserID: "w1", WorkHours: ledger.Num(8), Status: "approved"},
		{ID: "r2", WorkDate: "2023-10-10", SiteID: "s2", UserID: "w1", WorkHours: ledger.Num(8), Status: "approved"},
	}}
	s := newTestSession(store)
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))
	s.SetFilter(ledger.Filter{SiteID: "s1"})

	entries := s.Payroll()

	require.Len(t, entries, 12)
	assert.Equal(t, month(2023, time.April), entries[0].Month, "oldest month first")
	assert.Equal(t, month(2024, time.March), entries[11].Month)

	var worked int
	for _, e := range entries {
		worked += e.Stats.WorkDays
	}
	assert.Equal(t, 2, worked, "payroll counts all sites regardless of filter")
}

// =============================================================================
// EDITING
// =============================================================================

func TestSession_SubmitDayRefreshes(t *testing.T) {
	store := &sessionStore{rows: []ledger.RawRecord{
		{ID: "r1", WorkDate: "2024-03-04", SiteID: "s1", UserID: "w1", WorkHours: ledger.Num(8), Status: "submitted"},
	}}
	s := newTestSession(store)
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))

	editor := s.OpenDay(day(2024, time.March, 4))
	require.Equal(t, ledger.EditorEditing, editor.State())
	require.NoError(t, editor.Set("s1", 1.5))

	res, err := s.SubmitDay(context.Background(), editor)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Submitted)
	require.Len(t, store.upserts, 1)

	store.mu.Lock()
	fetches := store.fetches
	store.mu.Unlock()
	assert.Equal(t, 2, fetches, "successful submit triggers a refetch")
}

func TestSession_SubmitDayNoopSkipsRefresh(t *testing.T) {
	store := &sessionStore{rows: []ledger.RawRecord{
		{ID: "r1", WorkDate: "2024-03-04", SiteID: "s1", UserID: "w1", WorkHours: ledger.Num(8), Status: "submitted"},
	}}
	s := newTestSession(store)
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))

	editor := s.OpenDay(day(2024, time.March, 4))
	require.NoError(t, editor.Remove("s1"))

	res, err := s.SubmitDay(context.Background(), editor)

	require.NoError(t, err)
	assert.True(t, res.Noop)
	assert.Empty(t, store.upserts)

	store.mu.Lock()
	fetches := store.fetches
	store.mu.Unlock()
	assert.Equal(t, 1, fetches, "noop submit must not refetch")
}
