// Package store provides in-memory implementations of the ledger store
// contracts, for tests and development.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fieldline/labor-engine/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements ledger.Store and ledger.WorkLogStore over plain slices.
// Upserts are keyed (owner, site, date) like the production store.
type Memory struct {
	mu             sync.RWMutex
	rows           []ledger.RawRecord
	sites          []ledger.Site
	assignments    map[ledger.Identity][]ledger.Assignment
	logAssignments map[ledger.Identity][]ledger.WorkLogEntry
	authoredLogs   map[ledger.Identity][]ledger.WorkLogEntry
}

func NewMemory() *Memory {
	return &Memory{
		assignments:    make(map[ledger.Identity][]ledger.Assignment),
		logAssignments: make(map[ledger.Identity][]ledger.WorkLogEntry),
		authoredLogs:   make(map[ledger.Identity][]ledger.WorkLogEntry),
	}
}

// -----------------------------------------------------------------------------
// Seeding
// -----------------------------------------------------------------------------

func (m *Memory) SeedAttendance(rows ...ledger.RawRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
}

func (m *Memory) SeedSites(sites ...ledger.Site) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites = append(m.sites, sites...)
}

func (m *Memory) SeedAssignments(identity ledger.Identity, assignments ...ledger.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[identity] = append(m.assignments[identity], assignments...)
}

func (m *Memory) SeedLogAssignments(identity ledger.Identity, entries ...ledger.WorkLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logAssignments[identity] = append(m.logAssignments[identity], entries...)
}

func (m *Memory) SeedAuthoredLogs(identity ledger.Identity, entries ...ledger.WorkLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authoredLogs[identity] = append(m.authoredLogs[identity], entries...)
}

// RowCount reports the number of stored attendance rows.
func (m *Memory) RowCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// -----------------------------------------------------------------------------
// ledger.Store
// -----------------------------------------------------------------------------

func (m *Memory) FetchAttendance(ctx context.Context, identity ledger.Identity, window ledger.DateRange) ([]ledger.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.RawRecord
	for _, row := range m.rows {
		if !owns(identity, row) {
			continue
		}
		d, ok := ledger.ParseDay(row.WorkDate)
		if !ok || !window.Contains(d) {
			continue
		}
		out = append(out, row)
		if len(out) >= ledger.FetchLimit {
			break
		}
	}
	return out, nil
}

func (m *Memory) UpsertLabor(ctx context.Context, identity ledger.Identity, batch []ledger.LaborUpsert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range batch {
		hours := entry.Hours.InexactFloat64()
		idx := m.findRowLocked(identity, entry.SiteID, entry.Date.ISO())
		if idx >= 0 {
			m.rows[idx].WorkHours = ledger.Num(hours)
			m.rows[idx].ManDays = ledger.Num(hours / ledger.HoursPerManDay)
			m.rows[idx].LaborHours = ledger.RawNumber{}
			m.rows[idx].Status = string(ledger.StatusSubmitted)
			continue
		}
		m.rows = append(m.rows, ledger.RawRecord{
			ID:        uuid.NewString(),
			UserID:    string(identity),
			SiteID:    entry.SiteID,
			SiteName:  m.siteNameLocked(entry.SiteID),
			WorkDate:  entry.Date.ISO(),
			WorkHours: ledger.Num(hours),
			ManDays:   ledger.Num(hours / ledger.HoursPerManDay),
			Status:    string(ledger.StatusSubmitted),
		})
	}
	return nil
}

func (m *Memory) ListSites(ctx context.Context) ([]ledger.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Site, len(m.sites))
	copy(out, m.sites)
	return out, nil
}

func (m *Memory) ListAssignments(ctx context.Context, identity ledger.Identity) ([]ledger.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Assignment, len(m.assignments[identity]))
	copy(out, m.assignments[identity])
	return out, nil
}

// -----------------------------------------------------------------------------
// ledger.WorkLogStore
// -----------------------------------------------------------------------------

func (m *Memory) ListLogAssignments(ctx context.Context, identity ledger.Identity, window ledger.DateRange) ([]ledger.WorkLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterLogs(m.logAssignments[identity], window), nil
}

func (m *Memory) ListAuthoredLogs(ctx context.Context, identity ledger.Identity, window ledger.DateRange) ([]ledger.WorkLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterLogs(m.authoredLogs[identity], window), nil
}

func (m *Memory) AttendanceExistsForReport(ctx context.Context, identity ledger.Identity, reportID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.rows {
		if row.ReportID == reportID && owns(identity, row) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) InsertFromWorkLog(ctx context.Context, row ledger.BackfillRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, ledger.RawRecord{
		ID:        uuid.NewString(),
		UserID:    string(row.Identity),
		ReportID:  row.ReportID,
		SiteID:    row.SiteID,
		SiteName:  row.SiteName,
		WorkDate:  row.Date.ISO(),
		WorkHours: ledger.Num(row.Hours.InexactFloat64()),
		ManDays:   ledger.Num(row.ManDays.InexactFloat64()),
		Status:    string(row.Status),
	})
	return nil
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func owns(identity ledger.Identity, row ledger.RawRecord) bool {
	return !identity.IsZero() &&
		(row.UserID == string(identity) || row.ProfileID == string(identity))
}

func (m *Memory) findRowLocked(identity ledger.Identity, siteID, iso string) int {
	for i, row := range m.rows {
		if owns(identity, row) && row.SiteID == siteID && row.WorkDate == iso {
			return i
		}
	}
	return -1
}

func (m *Memory) siteNameLocked(siteID string) string {
	for _, s := range m.sites {
		if s.ID == siteID {
			return s.Name
		}
	}
	return ""
}

func filterLogs(entries []ledger.WorkLogEntry, window ledger.DateRange) []ledger.WorkLogEntry {
	var out []ledger.WorkLogEntry
	for _, e := range entries {
		if window.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}
