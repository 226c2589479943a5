/*
reconcile.go - Recovery of ledger rows lost to partial failures

PURPOSE:
  A work-log submission and the creation of its attendance ledger row are
  two writes against the upstream store. When the second write was lost
  (crash, network cut), the worker's calendar silently misses days they
  demonstrably worked. This routine detects and backfills those rows.

TRIGGER:
  Explicit user action only. This is a corrective tool, not a background
  job; the engine never runs it on its own.

ALGORITHM:
  1. Window: 12 months before through 12 months after the visible month.
  2. Fetch the identity's work-log assignments in the window, and
     separately the logs the identity authored (authors do not always get
     an assignment row). Union the two, de-duplicating by report ID,
     assignments first.
  3. Missing hours default to 8, missing man-days to 1.
  4. For each candidate: if no ledger row exists for (report, identity),
     insert one with status "submitted".

IDEMPOTENCY:
  The check-then-insert makes a repeated run produce zero new rows.
  Per-candidate insert failures are logged, counted, and skipped; one bad
  candidate never aborts the pass.
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ReconcileLookbackMonths is the half-width of the recovery window on each
// side of the visible month.
const ReconcileLookbackMonths = 12

// Backfill defaults for candidates missing an hours or man-day value.
var (
	defaultBackfillHours   = decimal.NewFromInt(HoursPerManDay)
	defaultBackfillManDays = decimal.NewFromInt(1)
)

// ReconcileResult summarizes one recovery pass.
type ReconcileResult struct {
	Checked int // candidates examined
	Created int // ledger rows inserted
	Failed  int // candidates skipped due to a store error
	Message string
}

// Reconciler backfills missing attendance rows from work-log data.
type Reconciler struct {
	store WorkLogStore
	log   logrus.FieldLogger
}

func NewReconciler(store WorkLogStore, log logrus.FieldLogger) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{store: store, log: log}
}

// Run executes one recovery pass for the identity around the visible
// month. Running it twice over unchanged data creates no duplicate rows.
func (r *Reconciler) Run(ctx context.Context, identity Identity, visible Month) (ReconcileResult, error) {
	window := DateRange{
		From: visible.AddMonths(-ReconcileLookbackMonths).First(),
		To:   visible.AddMonths(ReconcileLookbackMonths).Last(),
	}

	assigned, err := r.store.ListLogAssignments(ctx, identity, window)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("listing work-log assignments: %w", err)
	}
	authored, err := r.store.ListAuthoredLogs(ctx, identity, window)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("listing authored work logs: %w", err)
	}

	candidates := dedupeByReport(assigned, authored)

	var result ReconcileResult
	for _, c := range candidates {
		result.Checked++

		exists, err := r.store.AttendanceExistsForReport(ctx, identity, c.ReportID)
		if err != nil {
			r.log.WithError(err).WithField("report_id", c.ReportID).
				Warn("reconcile: existence check failed, skipping candidate")
			result.Failed++
			continue
		}
		if exists {
			continue
		}

		row := backfillRow(identity, c)
		if err := r.store.InsertFromWorkLog(ctx, row); err != nil {
			r.log.WithError(err).WithField("report_id", c.ReportID).
				Warn("reconcile: insert failed, skipping candidate")
			result.Failed++
			continue
		}
		result.Created++
	}

	if result.Created == 0 {
		result.Message = "already up to date"
	} else {
		result.Message = fmt.Sprintf("recovered %d attendance rows", result.Created)
	}
	return result, nil
}

// dedupeByReport unions the two candidate sets keyed by report ID.
// Assignment rows win over authored-log rows for the same report.
func dedupeByReport(assigned, authored []WorkLogEntry) []WorkLogEntry {
	seen := make(map[string]bool, len(assigned)+len(authored))
	var out []WorkLogEntry
	for _, set := range [][]WorkLogEntry{assigned, authored} {
		for _, e := range set {
			if e.ReportID == "" || e.Date.IsZero() || seen[e.ReportID] {
				continue
			}
			seen[e.ReportID] = true
			out = append(out, e)
		}
	}
	return out
}

func backfillRow(identity Identity, c WorkLogEntry) BackfillRow {
	hours := defaultBackfillHours
	if c.Hours.Valid {
		hours = decimal.NewFromFloat(c.Hours.Value).Round(2)
	}
	manDays := defaultBackfillManDays
	if c.ManDays.Valid {
		manDays = decimal.NewFromFloat(c.ManDays.Value).Round(2)
	}
	return BackfillRow{
		Identity: identity,
		ReportID: c.ReportID,
		SiteID:   c.SiteID,
		SiteName: c.SiteName,
		Date:     c.Date,
		Hours:    hours,
		ManDays:  manDays,
		Status:   StatusSubmitted,
	}
}
