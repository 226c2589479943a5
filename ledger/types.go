/*
Package ledger provides the core attendance and labor ledger engine.

PURPOSE:
  This package contains the store-agnostic types and algorithms that turn
  heterogeneous raw attendance rows into canonical records, calendar-day
  summaries, monthly aggregates, and batch-editable labor entries. The
  upstream store is consumed through narrow contracts (see store.go); the
  engine itself never talks to a database or the network.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identity: The requesting worker. Ownership of a record is always
    computed locally against this value, never trusted from raw input.
  - RawRecord: One row as the upstream store emits it. Fields are
    heterogeneous: hours may arrive as numbers, numeric strings, or be
    missing entirely, and the labor_hours column serves double duty as
    hours or man-days depending on the era of the row.
  - Record: The canonical in-memory representation. Produced fresh on
    every fetch, never mutated in place.
  - Status: Closed vocabulary for record state, with an explicit mapping
    to the three display buckets (approved / submitted / rejected).

DESIGN PRINCIPLES:
  1. Wholesale replacement: the record set is replaced on every refresh,
     never patched from edit operations.
  2. Precision: hour and man-day amounts use decimal.Decimal to avoid
     floating-point drift in sums.
  3. Degradation over failure: malformed upstream values become zero,
     not errors. A bad row must not block the whole calendar.

SEE ALSO:
  - normalize.go: RawRecord -> Record conversion
  - aggregate.go: Day summaries and monthly statistics
  - editor.go: Per-day batch labor editing
  - reconcile.go: Recovery of ledger rows lost to partial failures
*/
package ledger

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTITY
// =============================================================================

// Identity is the verified identifier of the requesting worker.
// An empty Identity owns nothing.
type Identity string

func (id Identity) IsZero() bool { return id == "" }

// =============================================================================
// STATUS - Closed vocabulary with display-bucket mapping
// =============================================================================

type Status string

const (
	StatusPresent    Status = "present"
	StatusInProgress Status = "in-progress"
	StatusAbsent     Status = "absent"
	StatusSubmitted  Status = "submitted"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"

	// Legacy values still present in older rows. They are recognized for
	// worked-day counting but have no display bucket of their own.
	StatusLate      Status = "late"
	StatusCompleted Status = "completed"
)

// ParseStatus normalizes a raw status string. Unknown values pass through
// lowercased so they can still round-trip; they simply match no bucket.
func ParseStatus(s string) Status {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	return Status(s)
}

// CountsAsWorked reports whether a record with this status marks its date
// as a work day regardless of recorded hours.
func (s Status) CountsAsWorked() bool {
	switch s {
	case StatusPresent, StatusLate, StatusInProgress, StatusSubmitted, StatusCompleted:
		return true
	}
	return false
}

// Locked reports whether a record in this status is closed to editing.
func (s Status) Locked() bool {
	return s == StatusApproved
}

// Bucket is the display grouping used by the calendar breakdown and the
// status filter.
type Bucket string

const (
	BucketAll       Bucket = "all"
	BucketApproved  Bucket = "approved"
	BucketSubmitted Bucket = "submitted"
	BucketRejected  Bucket = "rejected"

	bucketNone Bucket = ""
)

// BucketOf maps a status to its display bucket. Statuses outside the three
// groups (absent, legacy values, unknowns) map to no bucket and are only
// visible under the "all" filter.
func BucketOf(s Status) Bucket {
	switch s {
	case StatusApproved, StatusPresent:
		return BucketApproved
	case StatusSubmitted, StatusInProgress:
		return BucketSubmitted
	case StatusRejected:
		return BucketRejected
	}
	return bucketNone
}

// ParseBucket interprets a filter parameter. Anything unrecognized or empty
// means "all".
func ParseBucket(s string) Bucket {
	switch Bucket(strings.ToLower(strings.TrimSpace(s))) {
	case BucketApproved:
		return BucketApproved
	case BucketSubmitted:
		return BucketSubmitted
	case BucketRejected:
		return BucketRejected
	}
	return BucketAll
}

// =============================================================================
// RAW NUMBER - Tolerant numeric decoding for upstream rows
// =============================================================================

// RawNumber is a numeric field as the upstream store delivers it: possibly
// a JSON number, possibly a numeric string, possibly null, possibly garbage.
// Invalid or non-finite input yields Valid=false rather than an error.
type RawNumber struct {
	Value float64
	Valid bool
}

// Num builds a valid RawNumber. Mostly useful in tests and seed data.
func Num(v float64) RawNumber { return RawNumber{Value: v, Valid: true} }

// UnmarshalJSON never fails: anything that is not a finite number simply
// leaves the field invalid.
func (n *RawNumber) UnmarshalJSON(b []byte) error {
	*n = RawNumber{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var unquoted string
		if err := json.Unmarshal(b, &unquoted); err != nil {
			return nil
		}
		s = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n.Value = v
	n.Valid = true
	return nil
}

func (n RawNumber) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// =============================================================================
// RAW RECORD - Upstream row shape
// =============================================================================

// RawRecord is one attendance row exactly as fetched. Several historical
// writers produced these, so any subset of the numeric fields may be set
// and work_date may carry a time component.
type RawRecord struct {
	ID            string    `json:"id"`
	WorkDate      string    `json:"work_date"`
	WorkHours     RawNumber `json:"work_hours"`
	ManDays       RawNumber `json:"man_days"`
	LaborHours    RawNumber `json:"labor_hours"`
	OvertimeHours RawNumber `json:"overtime_hours"`
	Status        string    `json:"status"`
	CheckInTime   string    `json:"check_in_time"`
	CheckOutTime  string    `json:"check_out_time"`
	SiteID        string    `json:"site_id"`
	SiteName      string    `json:"site_name"`
	SiteAddress   string    `json:"site_address"`
	UserID        string    `json:"user_id"`
	ProfileID     string    `json:"profile_id"`
	ReportID      string    `json:"report_id"`
	Notes         string    `json:"notes"`
}

// =============================================================================
// RECORD - Canonical attendance record
// =============================================================================

// Record is the engine's normalized attendance entry: one worker, one site,
// one calendar date. Hours are rounded to 2 decimals; LaborHours is on the
// man-day basis (8 hours = 1 man-day).
type Record struct {
	ID            string
	Date          Day
	WorkHours     decimal.Decimal
	LaborHours    decimal.Decimal
	OvertimeHours decimal.Decimal
	Status        Status
	SiteID        string
	SiteName      string
	SiteAddress   string
	ReportID      string
	Notes         string

	// IsMe gates mutation eligibility. It is computed by the normalizer
	// from a verified identity match and never read from raw input.
	IsMe bool
}

// ManDays converts the record's labor hours to man-days.
func (r Record) ManDays() decimal.Decimal {
	return r.LaborHours.Div(hoursPerManDayDec).Round(2)
}
