/*
aggregate.go - Calendar-day summaries and monthly statistics

PURPOSE:
  Folds the canonical record set into the two derived views:
    - DaySummary: per-date totals and status breakdown for every cell of
      the week-aligned calendar grid (including adjacent-month overflow)
    - MonthlyStats: work-day count, distinct-site count, and total
      man-days over the strict calendar month

  Everything here is a pure function of (records, filter, month). Derived
  views are recomputed on any dependency change and never persisted;
  running the same aggregation twice over an unchanged set yields
  identical output.

FILTER ORDER:
  Site filter first, then status-bucket filter. A record passes the
  bucket filter only if its bucket matches, or the filter is "all".

SITE LABELS:
  Calendar cells show at most two-character site labels. The shortener
  strips bracketed substrings and organizational suffix words, collapses
  whitespace, and keeps the first two runes. First-seen order, duplicates
  suppressed.
*/
package ledger

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// UnassignedLabel is the two-character marker shown when a site name
// shortens to nothing.
const UnassignedLabel = "--"

// =============================================================================
// FILTER
// =============================================================================

// Filter narrows the record set before aggregation. Zero value means no
// filtering (all sites, all buckets).
type Filter struct {
	SiteID string // "" = all sites
	Bucket Bucket // BucketAll or "" = all statuses
}

func (f Filter) match(r Record) bool {
	if f.SiteID != "" && r.SiteID != f.SiteID {
		return false
	}
	if f.Bucket != "" && f.Bucket != BucketAll && BucketOf(r.Status) != f.Bucket {
		return false
	}
	return true
}

func filterRecords(records []Record, f Filter) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// DAY SUMMARY
// =============================================================================

// DaySummary is the derived state of one calendar cell. Recomputed, never
// persisted.
type DaySummary struct {
	ISO            string
	Date           Day
	IsCurrentMonth bool
	IsSunday       bool

	TotalHours   decimal.Decimal
	TotalManDays decimal.Decimal

	ApprovedManDays  decimal.Decimal
	SubmittedManDays decimal.Decimal
	RejectedManDays  decimal.Decimal

	Sites      []string
	HasRecords bool
}

// BuildCalendar produces one DaySummary per cell of the week-aligned grid
// covering the displayed month.
func BuildCalendar(records []Record, display Month, f Filter, weekStart time.Weekday) []DaySummary {
	matched := filterRecords(records, f)

	byDay := make(map[string][]Record, len(matched))
	for _, r := range matched {
		byDay[r.Date.ISO()] = append(byDay[r.Date.ISO()], r)
	}

	grid := MonthGrid(display, weekStart)
	summaries := make([]DaySummary, 0, len(grid))
	for _, d := range grid {
		summaries = append(summaries, summarizeDay(d, display, byDay[d.ISO()]))
	}
	return summaries
}

func summarizeDay(d Day, display Month, recs []Record) DaySummary {
	s := DaySummary{
		ISO:            d.ISO(),
		Date:           d,
		IsCurrentMonth: display.Contains(d),
		IsSunday:       d.IsSunday(),
		TotalHours:     decimal.Zero,
		TotalManDays:   decimal.Zero,

		ApprovedManDays:  decimal.Zero,
		SubmittedManDays: decimal.Zero,
		RejectedManDays:  decimal.Zero,
	}

	seen := make(map[string]bool)
	for _, r := range recs {
		s.HasRecords = true
		s.TotalHours = s.TotalHours.Add(r.WorkHours)

		manDays := r.LaborHours.Div(hoursPerManDayDec)
		s.TotalManDays = s.TotalManDays.Add(manDays)
		switch BucketOf(r.Status) {
		case BucketApproved:
			s.ApprovedManDays = s.ApprovedManDays.Add(manDays)
		case BucketSubmitted:
			s.SubmittedManDays = s.SubmittedManDays.Add(manDays)
		case BucketRejected:
			s.RejectedManDays = s.RejectedManDays.Add(manDays)
		}

		label := ShortSiteLabel(r.SiteName)
		if !seen[label] {
			seen[label] = true
			s.Sites = append(s.Sites, label)
		}
	}

	s.TotalHours = s.TotalHours.Round(2)
	s.TotalManDays = s.TotalManDays.Round(2)
	s.ApprovedManDays = s.ApprovedManDays.Round(2)
	s.SubmittedManDays = s.SubmittedManDays.Round(2)
	s.RejectedManDays = s.RejectedManDays.Round(2)
	return s
}

// =============================================================================
// MONTHLY STATISTICS
// =============================================================================

// MonthlyStats aggregates one strict calendar month (no grid overflow).
type MonthlyStats struct {
	// WorkDays counts distinct dates with at least one qualifying record:
	// a worked status, or any positive hours.
	WorkDays int

	// SiteCount counts distinct non-empty site identifiers.
	SiteCount int

	// TotalManDays is sum(workHours)/8, rounded to 1 decimal.
	TotalManDays decimal.Decimal
}

// ComputeMonthlyStats aggregates records within the strict bounds of the
// given month, after filtering.
func ComputeMonthlyStats(records []Record, month Month, f Filter) MonthlyStats {
	workDays := make(map[string]bool)
	sites := make(map[string]bool)
	totalHours := decimal.Zero

	for _, r := range records {
		if !f.match(r) || !month.Contains(r.Date) {
			continue
		}
		if r.Status.CountsAsWorked() || r.WorkHours.IsPositive() {
			workDays[r.Date.ISO()] = true
		}
		if r.SiteID != "" {
			sites[r.SiteID] = true
		}
		totalHours = totalHours.Add(r.WorkHours)
	}

	return MonthlyStats{
		WorkDays:     len(workDays),
		SiteCount:    len(sites),
		TotalManDays: totalHours.Div(hoursPerManDayDec).Round(1),
	}
}

// =============================================================================
// SITE LABEL SHORTENING
// =============================================================================

var bracketPairs = map[rune]rune{
	'(': ')',
	'[': ']',
	'（': '）',
	'［': '］',
	'【': '】',
	'「': '」',
}

// Organizational suffix words that carry no identity. Matched as whole
// words, case-insensitively.
var siteSuffixWords = map[string]bool{
	"site":         true,
	"project":      true,
	"branch":       true,
	"construction": true,
	"office":       true,
}

// ShortSiteLabel derives the at-most-two-character calendar label for a
// site name: bracketed substrings and suffix words are stripped,
// whitespace collapsed, and the first two runes kept. An empty result
// falls back to UnassignedLabel.
func ShortSiteLabel(name string) string {
	stripped := stripBrackets(name)

	var words []string
	for _, w := range strings.Fields(stripped) {
		if siteSuffixWords[strings.ToLower(w)] {
			continue
		}
		words = append(words, w)
	}
	compact := strings.Join(words, " ")

	runes := []rune(compact)
	if len(runes) == 0 {
		return UnassignedLabel
	}
	if len(runes) > 2 {
		runes = runes[:2]
	}
	label := strings.TrimFunc(string(runes), unicode.IsSpace)
	if label == "" {
		return UnassignedLabel
	}
	return label
}

// stripBrackets removes bracketed substrings, including the brackets.
// Nested and unbalanced brackets degrade gracefully: an unclosed bracket
// drops the rest of the string.
func stripBrackets(s string) string {
	var b strings.Builder
	depth := 0
	var closer rune
	for _, r := range s {
		if depth == 0 {
			if c, ok := bracketPairs[r]; ok {
				depth = 1
				closer = c
				continue
			}
			b.WriteRune(r)
			continue
		}
		switch r {
		case closer:
			depth--
		default:
			if _, ok := bracketPairs[r]; ok {
				depth++
			}
		}
	}
	return b.String()
}
