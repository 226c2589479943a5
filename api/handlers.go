/*
handlers.go - HTTP API handlers for the labor ledger

PURPOSE:
  Exposes the ledger engine over REST. Handlers parse HTTP input,
  delegate to the engine, and serialize responses; no aggregation or
  reconciliation logic lives here.

ENDPOINTS:
  GET  /api/workers/{id}/calendar     Calendar grid + monthly stats
  GET  /api/workers/{id}/payroll      Salary-lookback stats per month
  POST /api/workers/{id}/labor        Batch labor submit for one date
  POST /api/workers/{id}/reconcile    Recovery pass (manual trigger)
  GET  /api/workers/{id}/assignments  Worker's site assignments
  GET  /api/sites                     Site directory

SESSIONS:
  The handler keeps one ledger.Session per worker so consecutive calls
  share the working set and its staleness bookkeeping. Sessions are
  created lazily and torn down with the handler.

ERROR HANDLING:
  - 400: malformed input (dates, months, bodies)
  - 409: day has no records (work-log creation required first)
  - 422: entry names a locked/foreign site, or the store rejected the
         batch (edit state preserved client-side)
  - 500: store failures on non-degradable paths
  A failed calendar/payroll fetch is NOT an error status: the view
  degrades to empty data with fetch_error set, per the engine's
  fetch-failure policy.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/fieldline/labor-engine/ledger"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	store     ledger.Store
	workLogs  ledger.WorkLogStore
	log       *logrus.Logger
	weekStart time.Weekday
	seeder    Seeder
	clock     func() time.Time

	mu       sync.Mutex
	sessions map[ledger.Identity]*ledger.Session
}

// NewHandler creates a handler over the given stores.
func NewHandler(store ledger.Store, workLogs ledger.WorkLogStore, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		store:     store,
		workLogs:  workLogs,
		log:       log,
		weekStart: time.Sunday,
		sessions:  make(map[ledger.Identity]*ledger.Session),
	}
}

// SetWeekStart changes the calendar week start for new and existing
// sessions.
func (h *Handler) SetWeekStart(d time.Weekday) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.weekStart = d
	for _, s := range h.sessions {
		s.SetWeekStart(d)
	}
}

// SetClock overrides the time source for payroll/window anchoring.
// Intended for tests; existing sessions are reset.
func (h *Handler) SetClock(now func() time.Time) {
	h.resetSessions()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clock = now
}

// Close tears down all sessions.
func (h *Handler) Close() {
	h.resetSessions()
}

func (h *Handler) resetSessions() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sessions {
		s.Close()
	}
	h.sessions = make(map[ledger.Identity]*ledger.Session)
}

func (h *Handler) session(identity ledger.Identity) *ledger.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[identity]; ok {
		return s
	}
	s := ledger.NewSession(h.store, identity)
	s.SetWeekStart(h.weekStart)
	if h.clock != nil {
		s.SetClock(h.clock)
	}
	h.sessions[identity] = s
	return s
}

// =============================================================================
// CALENDAR
// =============================================================================

// Calendar handles GET /api/workers/{id}/calendar?month=&salary_month=&site=&bucket=
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	identity := ledger.Identity(chi.URLParam(r, "id"))

	display, ok := h.monthParam(r, "month")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", nil)
		return
	}
	salary := display
	if s, ok := h.monthParam(r, "salary_month"); ok && r.URL.Query().Get("salary_month") != "" {
		salary = s
	}

	sess := h.session(identity)
	sess.SetMonths(display, salary)
	sess.SetFilter(ledger.Filter{
		SiteID: r.URL.Query().Get("site"),
		Bucket: ledger.ParseBucket(r.URL.Query().Get("bucket")),
	})

	if err := sess.Refresh(r.Context()); err != nil && !errors.Is(err, ledger.ErrStaleFetch) {
		writeError(w, http.StatusInternalServerError, "Failed to refresh attendance", err)
		return
	}

	days := sess.Calendar()
	dtos := make([]DaySummaryDTO, 0, len(days))
	for _, d := range days {
		dtos = append(dtos, toDaySummaryDTO(d))
	}

	resp := CalendarResponse{
		Month: display.String(),
		Days:  dtos,
		Stats: toMonthlyStatsDTO(display, sess.MonthStats()),
	}
	if err := sess.LastFetchErr(); err != nil {
		h.log.WithError(err).WithField("worker", identity).Warn("calendar served degraded (empty) data")
		resp.FetchError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Payroll handles GET /api/workers/{id}/payroll?month=
func (h *Handler) Payroll(w http.ResponseWriter, r *http.Request) {
	identity := ledger.Identity(chi.URLParam(r, "id"))

	salary, ok := h.monthParam(r, "month")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", nil)
		return
	}

	sess := h.session(identity)
	sess.SetMonths(salary, salary)
	if err := sess.Refresh(r.Context()); err != nil && !errors.Is(err, ledger.ErrStaleFetch) {
		writeError(w, http.StatusInternalServerError, "Failed to refresh attendance", err)
		return
	}

	entries := sess.Payroll()
	months := make([]MonthlyStatsDTO, 0, len(entries))
	for _, e := range entries {
		months = append(months, toMonthlyStatsDTO(e.Month, e.Stats))
	}

	resp := PayrollResponse{Months: months}
	if err := sess.LastFetchErr(); err != nil {
		resp.FetchError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// LABOR SUBMISSION
// =============================================================================

// SubmitLabor handles POST /api/workers/{id}/labor
func (h *Handler) SubmitLabor(w http.ResponseWriter, r *http.Request) {
	identity := ledger.Identity(chi.URLParam(r, "id"))

	var req SubmitLaborRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, ok := ledger.ParseDay(req.Date)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", nil)
		return
	}

	sess := h.session(identity)
	if err := sess.Refresh(r.Context()); err != nil && !errors.Is(err, ledger.ErrStaleFetch) {
		writeError(w, http.StatusInternalServerError, "Failed to refresh attendance", err)
		return
	}

	editor := sess.OpenDay(date)
	if editor.State() == ledger.EditorConfirmCreate {
		writeError(w, http.StatusConflict,
			"No attendance records for this date; create a work log first", nil)
		return
	}

	for _, entry := range req.Entries {
		if err := editor.Set(entry.SiteID, entry.Value); err != nil {
			if errors.Is(err, ledger.ErrSiteNotEditable) {
				writeError(w, http.StatusUnprocessableEntity,
					"Site has a locked or foreign record for this date", err)
				return
			}
			writeError(w, http.StatusBadRequest, "Failed to stage labor entry", err)
			return
		}
	}

	result, err := sess.SubmitDay(r.Context(), editor)
	if err != nil {
		var submitErr *ledger.SubmitError
		if errors.As(err, &submitErr) {
			writeError(w, http.StatusUnprocessableEntity, submitErr.Message, err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to submit labor batch", err)
		return
	}

	writeJSON(w, http.StatusOK, SubmitLaborResponse{
		Submitted: result.Submitted,
		Noop:      result.Noop,
		Message:   result.Message,
	})
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconcile handles POST /api/workers/{id}/reconcile?month=
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	identity := ledger.Identity(chi.URLParam(r, "id"))

	month, ok := h.monthParam(r, "month")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", nil)
		return
	}

	result, err := ledger.NewReconciler(h.workLogs, h.log).Run(r.Context(), identity, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Reconciliation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ReconcileResponse{
		Checked: result.Checked,
		Created: result.Created,
		Failed:  result.Failed,
		Message: result.Message,
	})
}

// =============================================================================
// DIRECTORY
// =============================================================================

// ListSites handles GET /api/sites
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.store.ListSites(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sites", err)
		return
	}
	dtos := make([]SiteDTO, 0, len(sites))
	for _, s := range sites {
		dtos = append(dtos, SiteDTO{ID: s.ID, Name: s.Name, Address: s.Address})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAssignments handles GET /api/workers/{id}/assignments
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	identity := ledger.Identity(chi.URLParam(r, "id"))

	assignments, err := h.store.ListAssignments(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assignments", err)
		return
	}
	dtos := make([]AssignmentDTO, 0, len(assignments))
	for _, a := range assignments {
		dtos = append(dtos, AssignmentDTO{SiteID: a.SiteID, SiteName: a.SiteName, Active: a.Active})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clock != nil {
		return h.clock()
	}
	return time.Now()
}

// monthParam reads a YYYY-MM query parameter, defaulting to the current
// month per the handler's clock when absent.
func (h *Handler) monthParam(r *http.Request, name string) (ledger.Month, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return ledger.MonthOfTime(h.now()), true
	}
	return ledger.ParseMonth(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
