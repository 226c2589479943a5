/*
normalize.go - RawRecord to canonical Record conversion

PURPOSE:
  Collapses every historical row shape into one canonical Record. The
  normalizer is a pure function and never fails: malformed numeric fields
  degrade to zero so a single bad upstream row cannot block the calendar.

THE UNIT PROBLEM:
  Three generations of writers stored labor amounts differently:
    - man_days:    explicit man-day count (newest rows)
    - labor_hours: AMBIGUOUS. Older rows stored man-days in this column
                   when the value is small, raw hours when it is large,
                   with no type tag. The empirical boundary is 3.
    - work_hours:  plain hours
  resolveLaborHours isolates the disambiguation rule in one place so the
  boundary can be revisited without touching aggregation.

OWNERSHIP:
  IsMe is computed here, and only here, from a verified identity match
  against user_id or profile_id. Raw input claiming ownership is ignored.
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// HoursPerManDay converts between the two labor units: 1 man-day = 8 hours.
const HoursPerManDay = 8

var hoursPerManDayDec = decimal.NewFromInt(HoursPerManDay)

// legacyManDayCutoff is the undocumented boundary separating man-day values
// from raw-hour values in the double-duty labor_hours column. Kept at 3 for
// compatibility with existing data; nothing principled about the number.
// TODO: retire once the last pre-2024 rows are migrated to man_days.
const legacyManDayCutoff = 3

// UnassignedSiteName is the sentinel used when a row has no site name.
const UnassignedSiteName = "Unassigned"

// resolveLaborHours picks the labor amount, in hours on the man-day basis,
// from whichever field the row's writer populated. First applicable rule
// wins:
//  1. man_days is authoritative: hours = man_days * 8.
//  2. labor_hours <= cutoff is a legacy man-day value; above the cutoff it
//     is already hours.
//  3. work_hours is used as-is.
//  4. Nothing usable: zero.
func resolveLaborHours(raw RawRecord) float64 {
	switch {
	case raw.ManDays.Valid:
		return raw.ManDays.Value * HoursPerManDay
	case raw.LaborHours.Valid:
		if raw.LaborHours.Value <= legacyManDayCutoff {
			return raw.LaborHours.Value * HoursPerManDay
		}
		return raw.LaborHours.Value
	case raw.WorkHours.Valid:
		return raw.WorkHours.Value
	default:
		return 0
	}
}

// resolveWorkHours returns the hours actually worked. A dedicated
// work_hours field wins; otherwise the row falls back to the same
// resolution used for labor hours.
func resolveWorkHours(raw RawRecord) float64 {
	if raw.WorkHours.Valid {
		return raw.WorkHours.Value
	}
	return resolveLaborHours(raw)
}

// inferStatus derives a status from check-in/check-out presence when the
// row carries no explicit status.
func inferStatus(raw RawRecord) Status {
	switch {
	case raw.CheckInTime != "" && raw.CheckOutTime == "":
		return StatusInProgress
	case raw.CheckInTime != "" && raw.CheckOutTime != "":
		return StatusPresent
	default:
		return StatusAbsent
	}
}

// Normalize converts one raw row into exactly one canonical Record. It is
// pure and never fails; degraded fields become zero values.
func Normalize(raw RawRecord, me Identity) Record {
	rec := Record{
		ID:          raw.ID,
		WorkHours:   decimal.NewFromFloat(resolveWorkHours(raw)).Round(2),
		LaborHours:  decimal.NewFromFloat(resolveLaborHours(raw)).Round(2),
		SiteID:      raw.SiteID,
		SiteName:    raw.SiteName,
		SiteAddress: raw.SiteAddress,
		ReportID:    raw.ReportID,
		Notes:       raw.Notes,
	}

	if raw.OvertimeHours.Valid {
		rec.OvertimeHours = decimal.NewFromFloat(raw.OvertimeHours.Value).Round(2)
	} else {
		rec.OvertimeHours = decimal.Zero
	}

	if d, ok := ParseDay(raw.WorkDate); ok {
		rec.Date = d
	}

	if raw.Status != "" {
		rec.Status = ParseStatus(raw.Status)
	} else {
		rec.Status = inferStatus(raw)
	}

	if rec.SiteName == "" {
		rec.SiteName = UnassignedSiteName
	}

	rec.IsMe = !me.IsZero() && (raw.UserID == string(me) || raw.ProfileID == string(me))

	return rec
}

// NormalizeAll converts a fetched batch. The result is a fresh working set;
// callers replace any previous set wholesale rather than merging.
func NormalizeAll(rows []RawRecord, me Identity) []Record {
	records := make([]Record, 0, len(rows))
	for _, raw := range rows {
		records = append(records, Normalize(raw, me))
	}
	return records
}
