/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates sites, workers,
	attendance rows, and work logs that demonstrate specific features.

AVAILABLE SCENARIOS:

	mixed-units:     One worker, one month, every historical row shape
	                 (work_hours, man_days, legacy labor_hours)
	multi-site:      One worker split across three sites with filters
	                 worth using
	lost-attendance: Work logs whose ledger rows were lost, for the
	                 reconcile endpoint

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create sites and assignments
 3. Insert attendance rows in their raw historical shapes
 4. Optionally insert work logs with missing ledger rows

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "mixed-units"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Request handling, session plumbing
  - store/sqlite/sqlite.go: Seeding helpers
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fieldline/labor-engine/ledger"
)

// Seeder is the write surface scenarios need. The SQLite store satisfies
// it; production store implementations do not have to.
type Seeder interface {
	Reset(ctx context.Context) error
	InsertRawRecord(ctx context.Context, workerID string, r ledger.RawRecord) error
	CreateSite(ctx context.Context, site ledger.Site) error
	AssignWorker(ctx context.Context, identity ledger.Identity, a ledger.Assignment) error
	InsertWorkLog(ctx context.Context, authorID ledger.Identity, e ledger.WorkLogEntry) error
	AssignWorkerToLog(ctx context.Context, reportID string, identity ledger.Identity, hours, manDays ledger.RawNumber) error
}

// EnableScenarios turns on the demo endpoints against the given seeder.
// Without it the scenario routes answer 404.
func (h *Handler) EnableScenarios(s Seeder) {
	h.seeder = s
}

// DemoWorkerID is the identity every scenario seeds data for.
const DemoWorkerID = "worker-demo"

// DemoMonth is the calendar month every scenario centers on.
var DemoMonth = ledger.Month{Year: 2024, Month: 3}

type scenarioInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []scenarioInfo{
	{"mixed-units", "Mixed units", "Every historical row shape in one month: work_hours, man_days, and the legacy labor_hours column"},
	{"multi-site", "Multi-site month", "One worker split across three sites, with statuses across all buckets"},
	{"lost-attendance", "Lost attendance", "Work logs whose ledger rows were lost; run reconcile to recover them"},
}

// ListScenarios handles GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	if h.seeder == nil {
		writeError(w, http.StatusNotFound, "Scenarios are not enabled", nil)
		return
	}
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario handles POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.seeder == nil {
		writeError(w, http.StatusNotFound, "Scenarios are not enabled", nil)
		return
	}

	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.seeder.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	// Cached sessions hold record sets from the previous scenario.
	h.resetSessions()

	var err error
	switch req.ScenarioID {
	case "mixed-units":
		err = h.loadMixedUnitsScenario(ctx)
	case "multi-site":
		err = h.loadMultiSiteScenario(ctx)
	case "lost-attendance":
		err = h.loadLostAttendanceScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"scenario_id": req.ScenarioID,
		"worker_id":   DemoWorkerID,
		"month":       DemoMonth.String(),
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) seedSites(ctx context.Context, sites ...ledger.Site) error {
	for _, s := range sites {
		if err := h.seeder.CreateSite(ctx, s); err != nil {
			return err
		}
		err := h.seeder.AssignWorker(ctx, DemoWorkerID, ledger.Assignment{
			SiteID: s.ID, SiteName: s.Name, Active: true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// loadMixedUnitsScenario seeds one week where every row uses a different
// unit convention, so the calendar demonstrates normalization.
func (h *Handler) loadMixedUnitsScenario(ctx context.Context) error {
	if err := h.seedSites(ctx, ledger.Site{ID: "site-north", Name: "North Tower"}); err != nil {
		return err
	}

	rows := []ledger.RawRecord{
		{ID: "mx-1", WorkDate: "2024-03-04", SiteID: "site-north", SiteName: "North Tower", WorkHours: ledger.Num(8), Status: "approved"},
		{ID: "mx-2", WorkDate: "2024-03-05", SiteID: "site-north", SiteName: "North Tower", ManDays: ledger.Num(1), Status: "approved"},
		{ID: "mx-3", WorkDate: "2024-03-06", SiteID: "site-north", SiteName: "North Tower", LaborHours: ledger.Num(1), Status: "submitted"},
		{ID: "mx-4", WorkDate: "2024-03-07", SiteID: "site-north", SiteName: "North Tower", LaborHours: ledger.Num(12), Status: "submitted"},
		{ID: "mx-5", WorkDate: "2024-03-08", SiteID: "site-north", SiteName: "North Tower", CheckInTime: "08:00", CheckOutTime: "17:00", WorkHours: ledger.Num(8), OvertimeHours: ledger.Num(1.5)},
	}
	for _, r := range rows {
		if err := h.seeder.InsertRawRecord(ctx, DemoWorkerID, r); err != nil {
			return err
		}
	}
	return nil
}

// loadMultiSiteScenario seeds three sites with rows in every status
// bucket, so site and status filters have something to bite on.
func (h *Handler) loadMultiSiteScenario(ctx context.Context) error {
	err := h.seedSites(ctx,
		ledger.Site{ID: "site-north", Name: "North Tower"},
		ledger.Site{ID: "site-harbor", Name: "Harbor Project"},
		ledger.Site{ID: "site-depot", Name: "Depot Yard"},
	)
	if err != nil {
		return err
	}

	rows := []ledger.RawRecord{
		{ID: "ms-1", WorkDate: "2024-03-04", SiteID: "site-north", SiteName: "North Tower", WorkHours: ledger.Num(8), Status: "approved"},
		{ID: "ms-2", WorkDate: "2024-03-04", SiteID: "site-harbor", SiteName: "Harbor Project", WorkHours: ledger.Num(4), Status: "submitted"},
		{ID: "ms-3", WorkDate: "2024-03-05", SiteID: "site-harbor", SiteName: "Harbor Project", WorkHours: ledger.Num(8), Status: "rejected"},
		{ID: "ms-4", WorkDate: "2024-03-06", SiteID: "site-depot", SiteName: "Depot Yard", WorkHours: ledger.Num(8), Status: "approved"},
		{ID: "ms-5", WorkDate: "2024-03-07", SiteID: "site-depot", SiteName: "Depot Yard", WorkHours: ledger.Num(8), Status: "submitted"},
		{ID: "ms-6", WorkDate: "2024-03-08", SiteID: "site-north", SiteName: "North Tower", Status: "absent"},
	}
	for _, r := range rows {
		if err := h.seeder.InsertRawRecord(ctx, DemoWorkerID, r); err != nil {
			return err
		}
	}
	return nil
}

// loadLostAttendanceScenario seeds work logs where only some reports got
// their ledger row, leaving the rest for the reconcile endpoint.
func (h *Handler) loadLostAttendanceScenario(ctx context.Context) error {
	if err := h.seedSites(ctx, ledger.Site{ID: "site-north", Name: "North Tower"}); err != nil {
		return err
	}

	logs := []struct {
		reportID string
		date     string
		hours    ledger.RawNumber
		hasRow   bool
	}{
		{"rep-ok", "2024-03-04", ledger.Num(8), true},
		{"rep-lost-1", "2024-03-05", ledger.Num(8), false},
		{"rep-lost-2", "2024-03-06", ledger.RawNumber{}, false}, // hours missing, defaults apply
	}
	for _, l := range logs {
		d, _ := ledger.ParseDay(l.date)
		err := h.seeder.InsertWorkLog(ctx, DemoWorkerID, ledger.WorkLogEntry{
			ReportID: l.reportID, SiteID: "site-north", SiteName: "North Tower",
			Date: d, Hours: l.hours,
		})
		if err != nil {
			return err
		}
		if err := h.seeder.AssignWorkerToLog(ctx, l.reportID, DemoWorkerID, l.hours, ledger.RawNumber{}); err != nil {
			return err
		}
		if !l.hasRow {
			continue
		}
		err = h.seeder.InsertRawRecord(ctx, DemoWorkerID, ledger.RawRecord{
			ID: "att-" + l.reportID, WorkDate: l.date, SiteID: "site-north",
			SiteName: "North Tower", WorkHours: l.hours, Status: "submitted",
			ReportID: l.reportID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
