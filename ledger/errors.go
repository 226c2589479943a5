/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All engine error values in one place. Callers branch with errors.Is;
  the structured SubmitError carries the store's message for display.

TAXONOMY:
  - Fetch failures are NOT here: a failed fetch degrades to an empty
    working set (see session.go), it never propagates as a fault.
  - Editor misuse (operations outside the Editing state) is a programming
    error surfaced via ErrNotEditing.
  - Submit failures wrap the store error and preserve edit state for
    retry.
*/
package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotEditing is returned when an edit or submit is attempted while
	// the editor is not in the Editing state.
	ErrNotEditing = errors.New("editor is not in editing state")

	// ErrSubmitFailed is the sentinel wrapped by SubmitError.
	ErrSubmitFailed = errors.New("labor batch submit failed")

	// ErrSiteNotEditable is returned when an edit names a site whose row
	// for the date is locked or belongs to another worker.
	ErrSiteNotEditable = errors.New("site is not editable for this date")

	// ErrStaleFetch is returned by a refresh whose result was discarded
	// because newer inputs superseded it in flight.
	ErrStaleFetch = errors.New("fetch result discarded as stale")

	// ErrSessionClosed is returned by operations on a torn-down session.
	ErrSessionClosed = errors.New("session closed")
)

// SubmitError reports a rejected labor batch. The edit set is preserved by
// the editor so the caller may retry without re-entering values.
type SubmitError struct {
	Message string // store-provided message when available
	Err     error
}

func (e *SubmitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("submit rejected: %s", e.Message)
	}
	return fmt.Sprintf("submit rejected: %v", e.Err)
}

// Unwrap exposes the store's underlying error so callers can match it
// with errors.Is; the ErrSubmitFailed sentinel matches via Is below.
func (e *SubmitError) Unwrap() error { return e.Err }

func (e *SubmitError) Is(target error) bool { return target == ErrSubmitFailed }
