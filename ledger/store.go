/*
store.go - External store contracts

PURPOSE:
  The engine consumes the upstream tabular store through these narrow
  interfaces. No wire format or query surface leaks into the core: a store
  fetches raw rows for a window, persists a labor batch, and answers the
  existence checks the recovery routine needs.

CONTRACTS:
  Store:        Read path (row fetch, filter options) and the batch upsert.
  WorkLogStore: Work-log queries used only by reconciliation.

UPSERT KEYING:
  UpsertLabor must be keyed per (identity, siteID, date) so that
  resubmission overwrites instead of duplicating, and must apply the whole
  batch atomically. A store that can only partially apply a batch must fail
  it entirely.

IMPLEMENTATIONS:
  - store/sqlite: production store
  - ledger/store (Memory): in-memory store for tests and dev
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// FetchLimit is the minimum row capacity a store must support per fetch.
const FetchLimit = 1000

// Site is one entry of the site directory.
type Site struct {
	ID      string
	Name    string
	Address string
}

// Assignment links a worker to a site, for populating filter options.
type Assignment struct {
	SiteID   string
	SiteName string
	Active   bool
}

// LaborUpsert is one entry of a batch labor submission. Hours is the
// already-converted hour value (man-day value * 8).
type LaborUpsert struct {
	SiteID string
	Date   Day
	Hours  decimal.Decimal
}

// Store is the read/write surface of the upstream attendance store.
type Store interface {
	// FetchAttendance returns raw rows for the identity within the
	// inclusive window. Order is not significant; fetches are idempotent.
	FetchAttendance(ctx context.Context, identity Identity, window DateRange) ([]RawRecord, error)

	// UpsertLabor applies the batch atomically, keyed per
	// (identity, siteID, date). Resubmission overwrites.
	UpsertLabor(ctx context.Context, identity Identity, batch []LaborUpsert) error

	// ListSites returns the site directory.
	ListSites(ctx context.Context) ([]Site, error)

	// ListAssignments returns the identity's site assignments.
	ListAssignments(ctx context.Context, identity Identity) ([]Assignment, error)
}

// WorkLogEntry is an attendance candidate derived from work-log data:
// either an explicit assignment of the identity to a report, or a report
// the identity authored.
type WorkLogEntry struct {
	ReportID string
	SiteID   string
	SiteName string
	Date     Day
	Hours    RawNumber // missing defaults to 8
	ManDays  RawNumber // missing defaults to 1
}

// BackfillRow is a ledger row recovered from work-log data.
type BackfillRow struct {
	Identity Identity
	ReportID string
	SiteID   string
	SiteName string
	Date     Day
	Hours    decimal.Decimal
	ManDays  decimal.Decimal
	Status   Status
}

// WorkLogStore exposes the work-log side of the upstream store. Used only
// by the reconciliation routine.
type WorkLogStore interface {
	// ListLogAssignments returns work-log assignments of the identity in
	// the window.
	ListLogAssignments(ctx context.Context, identity Identity, window DateRange) ([]WorkLogEntry, error)

	// ListAuthoredLogs returns work logs authored by the identity in the
	// window, covering reports without an explicit assignment row.
	ListAuthoredLogs(ctx context.Context, identity Identity, window DateRange) ([]WorkLogEntry, error)

	// AttendanceExistsForReport reports whether a ledger row already
	// exists for the (report, identity) pair.
	AttendanceExistsForReport(ctx context.Context, identity Identity, reportID string) (bool, error)

	// InsertFromWorkLog creates the missing ledger row.
	InsertFromWorkLog(ctx context.Context, row BackfillRow) error
}
