package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/labor-engine/ledger"
)

// recordingStore captures upsert batches and optionally fails them.
type recordingStore struct {
	batches [][]ledger.LaborUpsert
	fail    error
}

func (s *recordingStore) UpsertLabor(_ context.Context, _ ledger.Identity, batch []ledger.LaborUpsert) error {
	if s.fail != nil {
		return s.fail
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingStore) FetchAttendance(context.Context, ledger.Identity, ledger.DateRange) ([]ledger.RawRecord, error) {
	return nil, nil
}
func (s *recordingStore) ListSites(context.Context) ([]ledger.Site, error) { return nil, nil }
func (s *recordingStore) ListAssignments(context.Context, ledger.Identity) ([]ledger.Assignment, error) {
	return nil, nil
}

func ownDayRecords(t *testing.T) []ledger.Record {
	t.Helper()
	raws := []ledger.RawRecord{
		{ID: "r1", WorkDate: "2024-03-04", SiteID: "s1", UserID: "w1", WorkHours: ledger.Num(8), Status: "submitted"},
		{ID: "r2", WorkDate: "2024-03-04", SiteID: "s2", UserID: "w1", WorkHours: ledger.Num(4), Status: "rejected"},
		{ID: "r3", WorkDate: "2024-03-04", SiteID: "s3", UserID: "w1", WorkHours: ledger.Num(8), Status: "approved"}, // locked
		{ID: "r4", WorkDate: "2024-03-04", SiteID: "s4", UserID: "w9", WorkHours: ledger.Num(8), Status: "submitted"}, // not mine
	}
	return ledger.NormalizeAll(raws, "w1")
}

// =============================================================================
// OPEN
// =============================================================================

func TestDayEditor_OpenEmptyDayOffersCreate(t *testing.T) {
	e := ledger.NewDayEditor("w1")

	state := e.Open(day(2024, time.March, 4), nil)

	assert.Equal(t, ledger.EditorConfirmCreate, state)
	assert.Empty(t, e.Entries())
}

func TestDayEditor_OpenSeedsOwnUnlockedRows(t *testing.T) {
	e := ledger.NewDayEditor("w1")

	state := e.Open(day(2024, time.March, 4), ownDayRecords(t))

	require.Equal(t, ledger.EditorEditing, state)
	entries := e.Entries()
	require.Len(t, entries, 2, "locked and foreign rows must not seed")
	assert.Equal(t, "s1", entries[0].SiteID)
	assert.Equal(t, "1", entries[0].Value.String())
	assert.Equal(t, "s2", entries[1].SiteID)
	assert.Equal(t, "0.5", entries[1].Value.String())
}

func TestDayEditor_OpenIgnoresOtherDates(t *testing.T) {
	e := ledger.NewDayEditor("w1")

	// Records exist, but none on the selected date.
	state := e.Open(day(2024, time.March, 10), ownDayRecords(t))

	assert.Equal(t, ledger.EditorConfirmCreate, state)
}

// =============================================================================
// VALUE DOMAIN
// =============================================================================

func TestDayEditor_SetSnapsAndClamps(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1.3, "1.5"},
		{1.24, "1"},
		{0.1, "0.5"},
		{-2, "0.5"},
		{9, "3"},
		{2.75, "3"}, // rounds to 3.0, already at the cap
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%v", c.in), func(t *testing.T) {
			e := ledger.NewDayEditor("w1")
			e.Open(day(2024, time.March, 4), ownDayRecords(t))

			require.NoError(t, e.Set("s1", c.in))
			assert.Equal(t, c.want, e.Entries()[0].Value.String())
		})
	}
}

func TestDayEditor_StepClampsAtBounds(t *testing.T) {
	e := ledger.NewDayEditor("w1")
	e.Open(day(2024, time.March, 4), ownDayRecords(t))
	require.NoError(t, e.Set("s1", 3.0))

	require.NoError(t, e.Step("s1", 1))
	assert.Equal(t, "3", e.Entries()[0].Value.String(), "step past max stays at max")

	require.NoError(t, e.Step("s1", -10))
	assert.Equal(t, "0.5", e.Entries()[0].Value.String(), "step past min stays at min")
}

func TestDayEditor_StepOnUnsetSiteStartsAtMin(t *testing.T) {
	e := ledger.NewDayEditor("w1")
	e.Open(day(2024, time.March, 4), ownDayRecords(t))

	require.NoError(t, e.Step("s9", 1))

	entries := e.Entries()
	assert.Equal(t, "0.5", entries[len(entries)-1].Value.String())
}

func TestDayEditor_SetRefusesLockedAndForeignSites(t *testing.T) {
	// GIVEN: a day where s3 is approved (locked) and s4 belongs to w9
	store := &recordingStore{}
	e := ledger.NewDayEditor("w1")
	e.Open(day(2024, time.March, 4), ownDayRecords(t))

	// WHEN: staging values for those sites
	// THEN: both are refused and never enter the edit set
	assert.ErrorIs(t, e.Set("s3", 1.0), ledger.ErrSiteNotEditable)
	assert.ErrorIs(t, e.Set("s4", 1.0), ledger.ErrSiteNotEditable)
	assert.ErrorIs(t, e.Step("s3", 1), ledger.ErrSiteNotEditable)
	require.Len(t, e.Entries(), 2)

	res, err := e.Submit(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Submitted)
	require.Len(t, store.batches, 1)
	for _, up := range store.batches[0] {
		if up.SiteID == "s3" || up.SiteID == "s4" {
			t.Errorf("locked/foreign site %s reached the store", up.SiteID)
		}
	}
}

func TestDayEditor_SetAllowsSiteWithoutRecords(t *testing.T) {
	// A site with no row at all on the date is a legitimate addition.
	e := ledger.NewDayEditor("w1")
	e.Open(day(2024, time.March, 4), ownDayRecords(t))

	require.NoError(t, e.Set("s9", 1.0))

	entries := e.Entries()
	assert.Equal(t, "s9", entries[len(entries)-1].SiteID)
}

func TestDayEditor_SetOutsideEditingRejected(t *testing.T) {
	e := ledger.NewDayEditor("w1")

	err := e.Set("s1", 1.0)

	assert.ErrorIs(t, err, ledger.ErrNotEditing)
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestDayEditor_SubmitConvertsManDaysToHours(t *testing.T) {
	store := &recordingStore{}
	e := ledger.NewDayEditor("w1")
	e.Open(day(2024, time.March, 4), ownDayRecords(t))
	require.NoError(t, e.Set("s1", 1.5))
	require.NoError(t, e.Remove("s2"))

	res, err := e.Submit(context.Background(), store)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Submitted)
	assert.False(t, res.Noop)
	assert.Equal(t, ledger.EditorClosed, e.State(), "successful submit closes the editor")

	require.Len(t, store.batches, 1)
	batch := store.batches[0]
	require.Len(t, batch, 1)
	assert.Equal(t, "s1", batch[0].SiteID)
	assert.Equal(t, "2024-03-04", batch[0].Date.ISO())
	assert.Equal(t, "12", batch[0].Hours.String())
}

func TestDayEditor_SubmitEmptySetNeverReachesStore(t *testing.T) {
	store := &recordingStore{}
	e := ledger.NewDayEditor("w1")
	e.Open(day(2024, time.March, 4), ownDayRecords(t))
	require.NoError(t, e.Remove("s1"))
	require.NoError(t, e.Remove("s2"))

	res, err := e.Submit(context.Background(), store)

	require.NoError(t, err)
	assert.True(t, res.Noop)
	assert.Equal(t, "nothing to change", res.Message)
	assert.Empty(t, store.batches, "empty edit set must not hit the store")
	assert.Equal(t, ledger.EditorEditing, e.State())
}

func TestDayEditor_SubmitFailurePreservesEditSet(t *testing.T) {
	cause := errors.New("row locked by payroll")
	store := &recordingStore{fail: cause}
	e := ledger.NewDayEditor("w1")
	e.Open(day(2024, time.March, 4), ownDayRecords(t))

	_, err := e.Submit(context.Background(), store)

	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrSubmitFailed)
	assert.ErrorIs(t, err, cause, "the store's error stays reachable through the wrap")
	assert.Equal(t, ledger.EditorEditing, e.State(), "failure returns to editing for retry")
	assert.Len(t, e.Entries(), 2, "edit set survives a failed submit")

	// Retry after the store recovers.
	store.fail = nil
	res, err := e.Submit(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Submitted)
}

func TestDayEditor_SubmitWithoutOpenRejected(t *testing.T) {
	e := ledger.NewDayEditor("w1")

	_, err := e.Submit(context.Background(), &recordingStore{})

	assert.ErrorIs(t, err, ledger.ErrNotEditing)
}

func TestDayEditor_CancelDiscardsEverything(t *testing.T) {
	e := ledger.NewDayEditor("w1")
	e.Open(day(2024, time.March, 4), ownDayRecords(t))

	e.Cancel()

	assert.Equal(t, ledger.EditorClosed, e.State())
	assert.Empty(t, e.Entries())
}
