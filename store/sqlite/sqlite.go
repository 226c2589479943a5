/*
Package sqlite provides the SQLite-backed implementation of the ledger
store contracts.

PURPOSE:
  Implements ledger.Store and ledger.WorkLogStore over SQLite. The same
  patterns apply to PostgreSQL in production; only minor dialect
  differences.

KEY TABLES:
  attendance:           Ledger rows, one per (worker, site, date). The
                        numeric columns are nullable on purpose: the table
                        preserves the heterogeneous raw shapes the engine
                        normalizes (work_hours / man_days / the legacy
                        labor_hours column).
  sites:                Site directory for filter options.
  site_assignments:     Worker-to-site links.
  work_logs:            Daily work reports, source data for recovery.
  work_log_assignments: Per-report worker assignments.

UPSERT KEYING:
  idx_attendance_worker_site_date enforces one row per
  (worker_id, site_id, work_date); UpsertLabor relies on it via
  ON CONFLICT DO UPDATE, so resubmission overwrites rather than
  duplicates. The whole batch runs in one SQL transaction.

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer, better crash recovery.

MIGRATION:
  Schema is auto-migrated on New(). For production use a versioned
  migration tool instead.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fieldline/labor-engine/ledger"
)

// Store implements the ledger store contracts using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		site_id TEXT NOT NULL DEFAULT '',
		site_name TEXT NOT NULL DEFAULT '',
		site_address TEXT NOT NULL DEFAULT '',
		work_date TEXT NOT NULL,
		work_hours REAL,
		man_days REAL,
		labor_hours REAL,
		overtime_hours REAL,
		status TEXT NOT NULL DEFAULT '',
		check_in_time TEXT NOT NULL DEFAULT '',
		check_out_time TEXT NOT NULL DEFAULT '',
		report_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One ledger row per (worker, site, date); batch upserts depend on it.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_worker_site_date
		ON attendance(worker_id, site_id, work_date);

	-- Window fetches (hot path)
	CREATE INDEX IF NOT EXISTS idx_attendance_worker_date
		ON attendance(worker_id, work_date);

	-- Recovery existence checks
	CREATE INDEX IF NOT EXISTS idx_attendance_worker_report
		ON attendance(worker_id, report_id) WHERE report_id != '';

	CREATE TABLE IF NOT EXISTS sites (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS site_assignments (
		worker_id TEXT NOT NULL,
		site_id TEXT NOT NULL,
		site_name TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (worker_id, site_id)
	);

	CREATE TABLE IF NOT EXISTS work_logs (
		report_id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL,
		site_id TEXT NOT NULL DEFAULT '',
		site_name TEXT NOT NULL DEFAULT '',
		work_date TEXT NOT NULL,
		hours REAL,
		man_days REAL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_logs_author_date
		ON work_logs(author_id, work_date);

	CREATE TABLE IF NOT EXISTS work_log_assignments (
		report_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		hours REAL,
		man_days REAL,
		PRIMARY KEY (report_id, worker_id)
	);

	CREATE INDEX IF NOT EXISTS idx_log_assignments_worker
		ON work_log_assignments(worker_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ledger.Store
// =============================================================================

// FetchAttendance returns the worker's raw rows within the inclusive
// window, capped at ledger.FetchLimit.
func (s *Store) FetchAttendance(ctx context.Context, identity ledger.Identity, window ledger.DateRange) ([]ledger.RawRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, work_date, work_hours, man_days, labor_hours, overtime_hours,
		       status, check_in_time, check_out_time,
		       site_id, site_name, site_address, worker_id, report_id, notes
		FROM attendance
		WHERE worker_id = ? AND work_date >= ? AND work_date <= ?
		ORDER BY work_date
		LIMIT ?`,
		string(identity), window.From.ISO(), window.To.ISO(), ledger.FetchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching attendance: %w", err)
	}
	defer rows.Close()

	var out []ledger.RawRecord
	for rows.Next() {
		var r ledger.RawRecord
		var workHours, manDays, laborHours, overtime sql.NullFloat64
		if err := rows.Scan(
			&r.ID, &r.WorkDate, &workHours, &manDays, &laborHours, &overtime,
			&r.Status, &r.CheckInTime, &r.CheckOutTime,
			&r.SiteID, &r.SiteName, &r.SiteAddress, &r.UserID, &r.ReportID, &r.Notes,
		); err != nil {
			return nil, fmt.Errorf("scanning attendance row: %w", err)
		}
		r.WorkHours = toRawNumber(workHours)
		r.ManDays = toRawNumber(manDays)
		r.LaborHours = toRawNumber(laborHours)
		r.OvertimeHours = toRawNumber(overtime)
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertLabor applies the batch in one SQL transaction. Each entry inserts
// or overwrites the (worker, site, date) row, stamping it "submitted".
func (s *Store) UpsertLabor(ctx context.Context, identity ledger.Identity, batch []ledger.LaborUpsert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, entry := range batch {
		hours := entry.Hours.InexactFloat64()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attendance (id, worker_id, site_id, site_name, work_date,
			                        work_hours, man_days, labor_hours, status,
			                        created_at, updated_at)
			VALUES (?, ?, ?, COALESCE((SELECT name FROM sites WHERE id = ?), ''), ?,
			        ?, ?, NULL, ?, ?, ?)
			ON CONFLICT (worker_id, site_id, work_date) DO UPDATE SET
				work_hours  = excluded.work_hours,
				man_days    = excluded.man_days,
				labor_hours = NULL,
				status      = excluded.status,
				updated_at  = excluded.updated_at`,
			uuid.NewString(), string(identity), entry.SiteID, entry.SiteID, entry.Date.ISO(),
			hours, hours/ledger.HoursPerManDay, string(ledger.StatusSubmitted), now, now)
		if err != nil {
			return fmt.Errorf("upserting labor for site %s: %w", entry.SiteID, err)
		}
	}
	return tx.Commit()
}

// ListSites returns the site directory.
func (s *Store) ListSites(ctx context.Context) ([]ledger.Site, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, address FROM sites ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	defer rows.Close()

	var out []ledger.Site
	for rows.Next() {
		var site ledger.Site
		if err := rows.Scan(&site.ID, &site.Name, &site.Address); err != nil {
			return nil, fmt.Errorf("scanning site: %w", err)
		}
		out = append(out, site)
	}
	return out, rows.Err()
}

// ListAssignments returns the worker's site assignments.
func (s *Store) ListAssignments(ctx context.Context, identity ledger.Identity) ([]ledger.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT site_id, site_name, active
		FROM site_assignments
		WHERE worker_id = ?
		ORDER BY site_id`, string(identity))
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	defer rows.Close()

	var out []ledger.Assignment
	for rows.Next() {
		var a ledger.Assignment
		if err := rows.Scan(&a.SiteID, &a.SiteName, &a.Active); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// ledger.WorkLogStore
// =============================================================================

// ListLogAssignments returns work-log assignments of the worker in the
// window. Per-assignment hour overrides win over report-level values.
func (s *Store) ListLogAssignments(ctx context.Context, identity ledger.Identity, window ledger.DateRange) ([]ledger.WorkLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.report_id, l.site_id, l.site_name, l.work_date,
		       COALESCE(a.hours, l.hours), COALESCE(a.man_days, l.man_days)
		FROM work_log_assignments a
		JOIN work_logs l ON l.report_id = a.report_id
		WHERE a.worker_id = ? AND l.work_date >= ? AND l.work_date <= ?
		ORDER BY l.work_date`,
		string(identity), window.From.ISO(), window.To.ISO())
	if err != nil {
		return nil, fmt.Errorf("listing work-log assignments: %w", err)
	}
	defer rows.Close()
	return scanWorkLogEntries(rows)
}

// ListAuthoredLogs returns work logs the worker authored in the window.
func (s *Store) ListAuthoredLogs(ctx context.Context, identity ledger.Identity, window ledger.DateRange) ([]ledger.WorkLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_id, site_id, site_name, work_date, hours, man_days
		FROM work_logs
		WHERE author_id = ? AND work_date >= ? AND work_date <= ?
		ORDER BY work_date`,
		string(identity), window.From.ISO(), window.To.ISO())
	if err != nil {
		return nil, fmt.Errorf("listing authored work logs: %w", err)
	}
	defer rows.Close()
	return scanWorkLogEntries(rows)
}

// AttendanceExistsForReport checks for a ledger row tied to the
// (report, worker) pair.
func (s *Store) AttendanceExistsForReport(ctx context.Context, identity ledger.Identity, reportID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM attendance WHERE worker_id = ? AND report_id = ? LIMIT 1`,
		string(identity), reportID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking attendance for report %s: %w", reportID, err)
	}
	return true, nil
}

// InsertFromWorkLog creates the recovered ledger row. The unique
// (worker, site, date) index may reject a collision with an existing
// unrelated row; the caller treats that as a per-candidate failure.
func (s *Store) InsertFromWorkLog(ctx context.Context, row ledger.BackfillRow) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (id, worker_id, site_id, site_name, work_date,
		                        work_hours, man_days, status, report_id,
		                        created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), string(row.Identity), row.SiteID, row.SiteName, row.Date.ISO(),
		row.Hours.InexactFloat64(), row.ManDays.InexactFloat64(),
		string(row.Status), row.ReportID, now, now)
	if err != nil {
		return fmt.Errorf("inserting recovered row for report %s: %w", row.ReportID, err)
	}
	return nil
}

// =============================================================================
// SEEDING / ADMINISTRATION
// =============================================================================

// Reset clears all data. Demo scenarios use it; never expose it in
// production wiring.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"attendance", "sites", "site_assignments", "work_logs", "work_log_assignments"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// InsertRawRecord stores an attendance row exactly as given. Used by seed
// data and tests to reproduce historical row shapes.
func (s *Store) InsertRawRecord(ctx context.Context, workerID string, r ledger.RawRecord) error {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (id, worker_id, site_id, site_name, site_address,
		                        work_date, work_hours, man_days, labor_hours,
		                        overtime_hours, status, check_in_time,
		                        check_out_time, report_id, notes,
		                        created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, workerID, r.SiteID, r.SiteName, r.SiteAddress,
		r.WorkDate, fromRawNumber(r.WorkHours), fromRawNumber(r.ManDays),
		fromRawNumber(r.LaborHours), fromRawNumber(r.OvertimeHours),
		r.Status, r.CheckInTime, r.CheckOutTime, r.ReportID, r.Notes, now, now)
	if err != nil {
		return fmt.Errorf("inserting attendance row: %w", err)
	}
	return nil
}

// CreateSite adds a site to the directory.
func (s *Store) CreateSite(ctx context.Context, site ledger.Site) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sites (id, name, address) VALUES (?, ?, ?)`,
		site.ID, site.Name, site.Address)
	if err != nil {
		return fmt.Errorf("creating site %s: %w", site.ID, err)
	}
	return nil
}

// AssignWorker links a worker to a site.
func (s *Store) AssignWorker(ctx context.Context, identity ledger.Identity, a ledger.Assignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO site_assignments (worker_id, site_id, site_name, active)
		VALUES (?, ?, ?, ?)`,
		string(identity), a.SiteID, a.SiteName, a.Active)
	if err != nil {
		return fmt.Errorf("assigning worker to site %s: %w", a.SiteID, err)
	}
	return nil
}

// InsertWorkLog stores a work report authored by the given worker.
func (s *Store) InsertWorkLog(ctx context.Context, authorID ledger.Identity, e ledger.WorkLogEntry) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO work_logs (report_id, author_id, site_id, site_name,
		                                  work_date, hours, man_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ReportID, string(authorID), e.SiteID, e.SiteName, e.Date.ISO(),
		fromRawNumber(e.Hours), fromRawNumber(e.ManDays), now)
	if err != nil {
		return fmt.Errorf("inserting work log %s: %w", e.ReportID, err)
	}
	return nil
}

// AssignWorkerToLog records that a worker took part in a report.
func (s *Store) AssignWorkerToLog(ctx context.Context, reportID string, identity ledger.Identity, hours, manDays ledger.RawNumber) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO work_log_assignments (report_id, worker_id, hours, man_days)
		VALUES (?, ?, ?, ?)`,
		reportID, string(identity), fromRawNumber(hours), fromRawNumber(manDays))
	if err != nil {
		return fmt.Errorf("assigning worker to log %s: %w", reportID, err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func toRawNumber(v sql.NullFloat64) ledger.RawNumber {
	if !v.Valid {
		return ledger.RawNumber{}
	}
	return ledger.Num(v.Float64)
}

func fromRawNumber(n ledger.RawNumber) any {
	if !n.Valid {
		return nil
	}
	return n.Value
}

func scanWorkLogEntries(rows *sql.Rows) ([]ledger.WorkLogEntry, error) {
	var out []ledger.WorkLogEntry
	for rows.Next() {
		var e ledger.WorkLogEntry
		var date string
		var hours, manDays sql.NullFloat64
		if err := rows.Scan(&e.ReportID, &e.SiteID, &e.SiteName, &date, &hours, &manDays); err != nil {
			return nil, fmt.Errorf("scanning work-log entry: %w", err)
		}
		if d, ok := ledger.ParseDay(date); ok {
			e.Date = d
		}
		e.Hours = toRawNumber(hours)
		e.ManDays = toRawNumber(manDays)
		out = append(out, e)
	}
	return out, rows.Err()
}
