/*
editor.go - Batch ledger editor for one calendar day

PURPOSE:
  Manages the in-memory edit set for a single selected date: per-site
  labor values in man-days, validated and submitted as one atomic upsert
  batch. Edits are value replacements, not deltas.

STATE MACHINE:
  Closed -> Open(date):
      no records for the date  -> ConfirmCreate (offer work-log creation,
                                  no edit set)
      records exist            -> Editing (seeded from own, unlocked rows)
  Editing -> Submit:
      empty set                -> no store call, "nothing to change"
      success                  -> Closed (caller refreshes wholesale)
      failure                  -> Editing, edit set intact for retry
  Any state -> Cancel -> Closed

VALUE DOMAIN:
  Labor values move in 0.5 man-day steps through [0.5, 3.0]. Out-of-domain
  input is clamped to the nearest bound, never rejected.

OWNERSHIP:
  The edit set is seeded only from records with IsMe=true that are not in
  a locked status. Open also remembers which sites on the date are
  off-limits (locked or foreign rows); Set and Step refuse those with
  ErrSiteNotEditable, so a client cannot stage an overwrite of an
  approved row. The store enforces row-level ownership as the last line;
  a rejection there surfaces as an ordinary submit failure.
*/
package ledger

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATES
// =============================================================================

type EditorState int

const (
	EditorClosed EditorState = iota
	EditorConfirmCreate
	EditorEditing
	EditorSubmitting
)

func (s EditorState) String() string {
	switch s {
	case EditorClosed:
		return "closed"
	case EditorConfirmCreate:
		return "confirm-create"
	case EditorEditing:
		return "editing"
	case EditorSubmitting:
		return "submitting"
	}
	return "unknown"
}

// Labor value domain, in man-days.
var (
	LaborMin  = decimal.NewFromFloat(0.5)
	LaborMax  = decimal.NewFromFloat(3.0)
	LaborStep = decimal.NewFromFloat(0.5)
)

// =============================================================================
// EDITOR
// =============================================================================

// DayEditor holds the pending per-site labor values for exactly one date.
// It is session-scoped and never outlives a successful submit.
type DayEditor struct {
	identity Identity
	state    EditorState
	date     Day

	values  map[string]decimal.Decimal
	order   []string        // site insertion order, for deterministic batches
	blocked map[string]bool // sites with a locked or foreign row on the date
}

func NewDayEditor(identity Identity) *DayEditor {
	return &DayEditor{identity: identity, state: EditorClosed}
}

func (e *DayEditor) State() EditorState { return e.state }
func (e *DayEditor) Date() Day          { return e.date }

// LaborEntry is one pending edit, value in man-days.
type LaborEntry struct {
	SiteID string
	Value  decimal.Decimal
}

// Entries returns the pending edit set in insertion order.
func (e *DayEditor) Entries() []LaborEntry {
	entries := make([]LaborEntry, 0, len(e.order))
	for _, siteID := range e.order {
		entries = append(entries, LaborEntry{SiteID: siteID, Value: e.values[siteID]})
	}
	return entries
}

// Open selects a date. With no records for that date the editor moves to
// ConfirmCreate and no edit set is created; otherwise it seeds the edit
// set from the caller's own unlocked records, one value per site,
// round(laborHours/8, 1). Sites whose rows on the date are locked or
// belong to someone else are remembered as off-limits for Set/Step.
func (e *DayEditor) Open(date Day, records []Record) EditorState {
	e.date = date
	e.values = make(map[string]decimal.Decimal)
	e.order = nil
	e.blocked = make(map[string]bool)

	any := false
	for _, r := range records {
		if !r.Date.Equal(date) {
			continue
		}
		any = true
		if !r.IsMe || r.Status.Locked() {
			e.blocked[r.SiteID] = true
			continue
		}
		seed := r.LaborHours.Div(hoursPerManDayDec).Round(1)
		if _, exists := e.values[r.SiteID]; !exists {
			e.order = append(e.order, r.SiteID)
		}
		e.values[r.SiteID] = seed
	}
	// An own unlocked row wins over a blocking row for the same site.
	for siteID := range e.values {
		delete(e.blocked, siteID)
	}

	if !any {
		e.values = nil
		e.blocked = nil
		e.state = EditorConfirmCreate
		return e.state
	}
	e.state = EditorEditing
	return e.state
}

// Set replaces the pending value for a site. The value is snapped to the
// 0.5 step grid and clamped into [LaborMin, LaborMax]. Sites with a
// locked or foreign row on the date are rejected.
func (e *DayEditor) Set(siteID string, value float64) error {
	if e.state != EditorEditing {
		return ErrNotEditing
	}
	if e.blocked[siteID] {
		return ErrSiteNotEditable
	}
	if _, exists := e.values[siteID]; !exists {
		e.order = append(e.order, siteID)
	}
	e.values[siteID] = clampLabor(value)
	return nil
}

// Step moves a site's value by n half-day increments, clamped at the
// domain bounds. A site with no pending value starts from the minimum.
func (e *DayEditor) Step(siteID string, n int) error {
	if e.state != EditorEditing {
		return ErrNotEditing
	}
	if e.blocked[siteID] {
		return ErrSiteNotEditable
	}
	current, ok := e.values[siteID]
	if !ok {
		return e.Set(siteID, LaborMin.InexactFloat64())
	}
	next := current.Add(LaborStep.Mul(decimal.NewFromInt(int64(n))))
	e.values[siteID] = clampDec(next)
	return nil
}

// Remove drops a site from the edit set.
func (e *DayEditor) Remove(siteID string) error {
	if e.state != EditorEditing {
		return ErrNotEditing
	}
	if _, ok := e.values[siteID]; !ok {
		return nil
	}
	delete(e.values, siteID)
	for i, id := range e.order {
		if id == siteID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// Cancel discards the edit set.
func (e *DayEditor) Cancel() {
	e.state = EditorClosed
	e.values = nil
	e.order = nil
	e.blocked = nil
	e.date = Day{}
}

// SubmitResult reports the outcome of a submit.
type SubmitResult struct {
	Submitted int
	Noop      bool
	Message   string
}

// Submit converts every pending value back to hours (value * 8) and issues
// one atomic batch upsert keyed (siteID, date). An empty edit set is a
// no-op that never reaches the store. On failure the editor returns to
// Editing with the edit set intact.
func (e *DayEditor) Submit(ctx context.Context, store Store) (SubmitResult, error) {
	if e.state != EditorEditing {
		return SubmitResult{}, ErrNotEditing
	}
	if len(e.values) == 0 {
		return SubmitResult{Noop: true, Message: "nothing to change"}, nil
	}

	batch := make([]LaborUpsert, 0, len(e.order))
	for _, siteID := range e.order {
		batch = append(batch, LaborUpsert{
			SiteID: siteID,
			Date:   e.date,
			Hours:  e.values[siteID].Mul(hoursPerManDayDec),
		})
	}

	e.state = EditorSubmitting
	if err := store.UpsertLabor(ctx, e.identity, batch); err != nil {
		e.state = EditorEditing
		return SubmitResult{}, &SubmitError{Message: err.Error(), Err: err}
	}

	n := len(batch)
	e.Cancel()
	return SubmitResult{Submitted: n, Message: "labor submitted"}, nil
}

// =============================================================================
// VALUE CLAMPING
// =============================================================================

func clampLabor(v float64) decimal.Decimal {
	snapped := math.Round(v*2) / 2
	return clampDec(decimal.NewFromFloat(snapped))
}

func clampDec(v decimal.Decimal) decimal.Decimal {
	if v.LessThan(LaborMin) {
		return LaborMin
	}
	if v.GreaterThan(LaborMax) {
		return LaborMax
	}
	return v
}
