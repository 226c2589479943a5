/*
session.go - One caller's view of the ledger

PURPOSE:
  A Session owns the canonical record set for a single UI session: the
  displayed calendar month, the selected salary month, the active filter,
  and the records fetched for the planned window. All derived views
  (calendar grid, monthly stats, payroll lookback) are pure functions of
  that state, recomputed on demand.

REFRESH SEMANTICS:
  - Wholesale replacement: every successful fetch replaces the working
    set. Edits never patch records locally; after a submit the session
    refetches so server-side derived fields cannot drift.
  - Stale-response suppression: each refresh carries a generation number.
    If the view inputs change while a fetch is in flight, the late result
    is discarded instead of overwriting fresher state.
  - Cancellation: the in-flight fetch is cancelled when inputs change or
    the session is closed.
  - Fetch failure degrades to an empty working set with the error
    retained for a retry affordance. It never propagates as a fault.

CONCURRENCY:
  Safe for concurrent use; a mutex guards the view state and record set.
  Aggregation itself never blocks on the store.
*/
package ledger

import (
	"context"
	"sync"
	"time"
)

// Session holds one caller's record set and view state.
type Session struct {
	store     Store
	identity  Identity
	weekStart time.Weekday
	now       func() time.Time

	mu      sync.Mutex
	display Month
	salary  Month
	filter  Filter
	records []Record
	gen     uint64
	cancel  context.CancelFunc
	closed  bool
	lastErr error
}

// NewSession creates a session for the identity, initially showing the
// current month with week start on Sunday.
func NewSession(store Store, identity Identity) *Session {
	s := &Session{
		store:     store,
		identity:  identity,
		weekStart: time.Sunday,
		now:       time.Now,
	}
	current := MonthOfTime(s.now())
	s.display = current
	s.salary = current
	return s
}

// SetWeekStart changes the first day of the calendar week.
func (s *Session) SetWeekStart(d time.Weekday) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weekStart = d
}

// SetClock overrides the time source. Intended for tests.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetMonths changes the displayed calendar month and the selected salary
// month, invalidating any fetch in flight. The caller refreshes afterwards.
func (s *Session) SetMonths(display, salary Month) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.display == display && s.salary == salary {
		return
	}
	s.display = display
	s.salary = salary
	s.invalidateLocked()
}

// SetFilter changes the active site/status filter. Filtering happens at
// aggregation time, so no refetch is needed.
func (s *Session) SetFilter(f Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
}

// invalidateLocked bumps the generation and cancels the in-flight fetch so
// its result will be discarded.
func (s *Session) invalidateLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Refresh fetches the planned window and installs the normalized result as
// the new working set. A result superseded while in flight is discarded
// and reported as ErrStaleFetch. A store failure installs an empty set and
// returns nil; the error is retained for LastFetchErr.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.invalidateLocked()
	gen := s.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	window := PlanFetchWindow(s.display, s.salary, DayOf(s.now()), s.weekStart)
	identity := s.identity
	s.mu.Unlock()

	rows, err := s.store.FetchAttendance(fetchCtx, identity, window)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.gen != gen {
		return ErrStaleFetch
	}
	if err != nil {
		// Degrade to an empty set; the caller gets a retry affordance
		// via LastFetchErr, never a fault.
		s.records = nil
		s.lastErr = err
		return nil
	}
	s.records = NormalizeAll(rows, identity)
	s.lastErr = nil
	return nil
}

// LastFetchErr returns the error of the most recent failed refresh, or nil
// after a successful one.
func (s *Session) LastFetchErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Records returns a copy of the current working set.
func (s *Session) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Calendar returns the day summaries for the displayed month's grid under
// the active filter.
func (s *Session) Calendar() []DaySummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BuildCalendar(s.records, s.display, s.filter, s.weekStart)
}

// MonthStats returns the displayed month's statistics under the active
// filter.
func (s *Session) MonthStats() MonthlyStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeMonthlyStats(s.records, s.display, s.filter)
}

// MonthStatsEntry pairs a lookback month with its statistics.
type MonthStatsEntry struct {
	Month Month
	Stats MonthlyStats
}

// Payroll returns per-month statistics across the salary lookback, oldest
// first. The site/status filter does not apply to payroll figures.
func (s *Session) Payroll() []MonthStatsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	months := PayrollMonths(s.salary, DayOf(s.now()))
	entries := make([]MonthStatsEntry, 0, len(months))
	for _, m := range months {
		entries = append(entries, MonthStatsEntry{
			Month: m,
			Stats: ComputeMonthlyStats(s.records, m, Filter{}),
		})
	}
	return entries
}

// OpenDay opens the batch editor for a date against the current working
// set.
func (s *Session) OpenDay(date Day) *DayEditor {
	s.mu.Lock()
	records := s.records
	identity := s.identity
	s.mu.Unlock()

	editor := NewDayEditor(identity)
	editor.Open(date, records)
	return editor
}

// SubmitDay submits the editor's batch and, on a successful non-empty
// submit, refreshes the working set from the store.
func (s *Session) SubmitDay(ctx context.Context, editor *DayEditor) (SubmitResult, error) {
	result, err := editor.Submit(ctx, s.store)
	if err != nil || result.Noop {
		return result, err
	}
	if err := s.Refresh(ctx); err != nil && err != ErrStaleFetch {
		return result, err
	}
	return result, nil
}

// Close tears the session down, cancelling any fetch in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.invalidateLocked()
	s.closed = true
	s.records = nil
}
