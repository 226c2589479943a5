/*
day.go - Date-only time points, months, and the fetch-window planner

PURPOSE:
  Calendar math for the engine. A Day is a date with no time component
  (normalized to UTC midnight); a Month is a year/month pair. The planner
  computes the single date window that covers both the visible calendar
  grid and the salary lookback, so one bounded fetch serves both views.

WHY ONE WINDOW:
  The calendar view needs the week-aligned grid of the displayed month;
  the payroll view needs month-aligned data going back a year. Fetching
  them separately would duplicate rows and double request volume. Taking
  the union lets the aggregator serve both from one in-memory set.

SEE ALSO:
  - aggregate.go: Consumes MonthGrid for the visible calendar
  - session.go: Drives PlanFetchWindow on every refresh
*/
package ledger

import (
	"strings"
	"time"
)

// SalaryLookbackMonths is how far back the payroll view reaches, counting
// the anchor month itself.
const SalaryLookbackMonths = 12

// =============================================================================
// DAY - Calendar date with no time component
// =============================================================================

type Day struct {
	t time.Time // always UTC midnight
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates any timestamp to its calendar date.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

// ParseDay parses an upstream date string. Any time component delimited by
// 'T' or a space is discarded before parsing.
func ParseDay(s string) (Day, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, false
	}
	return DayOf(t), true
}

func (d Day) IsZero() bool          { return d.t.IsZero() }
func (d Day) Before(o Day) bool     { return d.t.Before(o.t) }
func (d Day) After(o Day) bool      { return d.t.After(o.t) }
func (d Day) Equal(o Day) bool      { return d.t.Equal(o.t) }
func (d Day) AddDays(n int) Day     { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) AddMonths(n int) Day   { return Day{t: d.t.AddDate(0, n, 0)} }
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }
func (d Day) IsSunday() bool        { return d.t.Weekday() == time.Sunday }
func (d Day) Time() time.Time       { return d.t }

// ISO returns the date key used throughout the engine ("2006-01-02").
func (d Day) ISO() string    { return d.t.Format("2006-01-02") }
func (d Day) String() string { return d.ISO() }

func (d Day) MonthOf() Month {
	return Month{Year: d.t.Year(), Month: d.t.Month()}
}

// StartOfWeek walks back to the most recent occurrence of weekStart,
// including d itself.
func (d Day) StartOfWeek(weekStart time.Weekday) Day {
	delta := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return d.AddDays(-delta)
}

// EndOfWeek walks forward to the last day of the week that starts on
// weekStart.
func (d Day) EndOfWeek(weekStart time.Weekday) Day {
	return d.StartOfWeek(weekStart).AddDays(6)
}

func minDay(a, b Day) Day {
	if a.Before(b) {
		return a
	}
	return b
}

func maxDay(a, b Day) Day {
	if a.After(b) {
		return a
	}
	return b
}

// =============================================================================
// MONTH
// =============================================================================

type Month struct {
	Year  int
	Month time.Month
}

func MonthOfTime(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "2006-01".
func ParseMonth(s string) (Month, bool) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, false
	}
	return MonthOfTime(t), true
}

func (m Month) First() Day { return NewDay(m.Year, m.Month, 1) }

func (m Month) Last() Day {
	return Day{t: time.Date(m.Year, m.Month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
}

func (m Month) AddMonths(n int) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return MonthOfTime(t)
}

func (m Month) Contains(d Day) bool {
	return d.t.Year() == m.Year && d.t.Month() == m.Month
}

func (m Month) After(o Month) bool {
	if m.Year != o.Year {
		return m.Year > o.Year
	}
	return m.Month > o.Month
}

func (m Month) Equal(o Month) bool { return m == o }

func (m Month) String() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// MonthGrid returns every date of the week-aligned calendar grid covering
// the month, including overflow days from adjacent months.
func MonthGrid(m Month, weekStart time.Weekday) []Day {
	start := m.First().StartOfWeek(weekStart)
	end := m.Last().EndOfWeek(weekStart)

	var grid []Day
	for d := start; !d.After(end); d = d.AddDays(1) {
		grid = append(grid, d)
	}
	return grid
}

// =============================================================================
// FETCH WINDOW PLANNER
// =============================================================================

// DateRange is an inclusive [From, To] span.
type DateRange struct {
	From Day
	To   Day
}

func (r DateRange) Contains(d Day) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// PlanFetchWindow computes the minimal window covering both the displayed
// calendar month and the salary lookback. The two candidate ranges are
// computed independently; the result takes the earlier start and the later
// end.
//
// The salary range is anchored at the later of today's month and the
// selected salary month, then extended SalaryLookbackMonths back, aligned
// to month bounds.
func PlanFetchWindow(display, salary Month, today Day, weekStart time.Weekday) DateRange {
	calendar := DateRange{
		From: display.First().StartOfWeek(weekStart),
		To:   display.Last().EndOfWeek(weekStart),
	}

	anchor := salary
	if today.MonthOf().After(anchor) {
		anchor = today.MonthOf()
	}
	payroll := DateRange{
		From: anchor.AddMonths(-(SalaryLookbackMonths - 1)).First(),
		To:   anchor.Last(),
	}

	return DateRange{
		From: minDay(calendar.From, payroll.From),
		To:   maxDay(calendar.To, payroll.To),
	}
}

// PayrollMonths lists the months of the salary lookback, oldest first,
// ending at the later of today's month and the selected salary month.
func PayrollMonths(salary Month, today Day) []Month {
	anchor := salary
	if today.MonthOf().After(anchor) {
		anchor = today.MonthOf()
	}
	months := make([]Month, 0, SalaryLookbackMonths)
	for i := SalaryLookbackMonths - 1; i >= 0; i-- {
		months = append(months, anchor.AddMonths(-i))
	}
	return months
}
