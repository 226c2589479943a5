/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the engine's decimal
  amounts and internal types from the external contract. Decimal values
  are flattened to float64 at the boundary; they are already rounded by
  the engine when they get here.

NAMING CONVENTION:
  - *DTO: Response element types
  - *Request: Request body types from clients
  - *Response: Response wrappers

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/fieldline/labor-engine/ledger"
)

// =============================================================================
// CALENDAR
// =============================================================================

// DaySummaryDTO is one cell of the calendar grid.
type DaySummaryDTO struct {
	Date             string   `json:"date"`
	IsCurrentMonth   bool     `json:"is_current_month"`
	IsSunday         bool     `json:"is_sunday"`
	TotalHours       float64  `json:"total_hours"`
	TotalManDays     float64  `json:"total_man_days"`
	ApprovedManDays  float64  `json:"approved_man_days"`
	SubmittedManDays float64  `json:"submitted_man_days"`
	RejectedManDays  float64  `json:"rejected_man_days"`
	Sites            []string `json:"sites,omitempty"`
	HasRecords       bool     `json:"has_records"`
}

// MonthlyStatsDTO is the aggregate for one strict calendar month.
type MonthlyStatsDTO struct {
	Month        string  `json:"month"`
	WorkDays     int     `json:"work_days"`
	SiteCount    int     `json:"site_count"`
	TotalManDays float64 `json:"total_man_days"`
}

// CalendarResponse is the calendar view: grid cells plus the month's
// stats. FetchError is set when the store fetch failed and the view
// degraded to an empty set.
type CalendarResponse struct {
	Month      string          `json:"month"`
	Days       []DaySummaryDTO `json:"days"`
	Stats      MonthlyStatsDTO `json:"stats"`
	FetchError string          `json:"fetch_error,omitempty"`
}

// PayrollResponse carries per-month stats over the salary lookback,
// oldest first.
type PayrollResponse struct {
	Months     []MonthlyStatsDTO `json:"months"`
	FetchError string            `json:"fetch_error,omitempty"`
}

// =============================================================================
// LABOR SUBMISSION
// =============================================================================

// LaborEntryDTO is one pending labor value, in man-days.
type LaborEntryDTO struct {
	SiteID string  `json:"site_id"`
	Value  float64 `json:"value"`
}

// SubmitLaborRequest submits the edit set for one date.
type SubmitLaborRequest struct {
	Date    string          `json:"date"`
	Entries []LaborEntryDTO `json:"entries"`
}

// SubmitLaborResponse reports the submit outcome.
type SubmitLaborResponse struct {
	Submitted int    `json:"submitted"`
	Noop      bool   `json:"noop,omitempty"`
	Message   string `json:"message"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileResponse reports one recovery pass.
type ReconcileResponse struct {
	Checked int    `json:"checked"`
	Created int    `json:"created"`
	Failed  int    `json:"failed,omitempty"`
	Message string `json:"message"`
}

// =============================================================================
// DIRECTORY
// =============================================================================

type SiteDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type AssignmentDTO struct {
	SiteID   string `json:"site_id"`
	SiteName string `json:"site_name"`
	Active   bool   `json:"active"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toDaySummaryDTO(s ledger.DaySummary) DaySummaryDTO {
	return DaySummaryDTO{
		Date:             s.ISO,
		IsCurrentMonth:   s.IsCurrentMonth,
		IsSunday:         s.IsSunday,
		TotalHours:       s.TotalHours.InexactFloat64(),
		TotalManDays:     s.TotalManDays.InexactFloat64(),
		ApprovedManDays:  s.ApprovedManDays.InexactFloat64(),
		SubmittedManDays: s.SubmittedManDays.InexactFloat64(),
		RejectedManDays:  s.RejectedManDays.InexactFloat64(),
		Sites:            s.Sites,
		HasRecords:       s.HasRecords,
	}
}

func toMonthlyStatsDTO(m ledger.Month, stats ledger.MonthlyStats) MonthlyStatsDTO {
	return MonthlyStatsDTO{
		Month:        m.String(),
		WorkDays:     stats.WorkDays,
		SiteCount:    stats.SiteCount,
		TotalManDays: stats.TotalManDays.InexactFloat64(),
	}
}
