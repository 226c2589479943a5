package ledger_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fieldline/labor-engine/ledger"
)

func laborHours(t *testing.T, raw ledger.RawRecord) decimal.Decimal {
	t.Helper()
	return ledger.Normalize(raw, "w1").LaborHours
}

// =============================================================================
// UNIT RESOLUTION
// =============================================================================

func TestNormalize_ManDaysWinOverEverything(t *testing.T) {
	// GIVEN: a row with every numeric field populated
	// THEN: man_days is authoritative, laborHours = man_days * 8 exactly
	raw := ledger.RawRecord{
		ManDays:    ledger.Num(1.5),
		LaborHours: ledger.Num(2),
		WorkHours:  ledger.Num(7),
	}

	if got := laborHours(t, raw); !got.Equal(decimal.NewFromInt(12)) {
		t.Errorf("laborHours = %s, want 12", got)
	}
}

func TestNormalize_LegacyLaborHoursBoundary(t *testing.T) {
	// The double-duty labor_hours column: values at or below 3 are legacy
	// man-day values, values above are already hours.
	cases := []struct {
		laborHours float64
		want       int64
	}{
		{2.5, 20}, // man-day interpretation: 2.5 * 8
		{3, 24},   // boundary value is still man-days
		{5, 5},    // hours interpretation
		{8, 8},
	}

	for _, c := range cases {
		raw := ledger.RawRecord{LaborHours: ledger.Num(c.laborHours)}
		if got := laborHours(t, raw); !got.Equal(decimal.NewFromInt(c.want)) {
			t.Errorf("labor_hours=%v: laborHours = %s, want %d", c.laborHours, got, c.want)
		}
	}
}

func TestNormalize_WorkHoursFallback(t *testing.T) {
	// GIVEN: only work_hours
	// THEN: both hour fields mirror it
	rec := ledger.Normalize(ledger.RawRecord{WorkHours: ledger.Num(7.5)}, "w1")

	want := decimal.NewFromFloat(7.5)
	if !rec.LaborHours.Equal(want) || !rec.WorkHours.Equal(want) {
		t.Errorf("workHours=%s laborHours=%s, want both 7.5", rec.WorkHours, rec.LaborHours)
	}
}

func TestNormalize_WorkHoursMirrorsResolvedLaborHours(t *testing.T) {
	// GIVEN: man_days but no dedicated work_hours field
	// THEN: workHours falls back to the resolved labor hours
	rec := ledger.Normalize(ledger.RawRecord{ManDays: ledger.Num(1)}, "w1")

	if !rec.WorkHours.Equal(decimal.NewFromInt(8)) {
		t.Errorf("workHours = %s, want 8", rec.WorkHours)
	}
}

func TestNormalize_NothingUsableIsZeroNotError(t *testing.T) {
	rec := ledger.Normalize(ledger.RawRecord{}, "w1")

	if !rec.WorkHours.IsZero() || !rec.LaborHours.IsZero() || !rec.OvertimeHours.IsZero() {
		t.Errorf("empty row should normalize to zero hours, got %+v", rec)
	}
}

func TestNormalize_MalformedJSONNumbersDegradeToZero(t *testing.T) {
	// GIVEN: upstream JSON with a garbage number, a numeric string, and a null
	// THEN: decoding never fails and garbage degrades to zero
	payload := `{
		"id": "r1",
		"work_date": "2024-03-05",
		"man_days": "garbage",
		"labor_hours": "2.5",
		"work_hours": null
	}`

	var raw ledger.RawRecord
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if raw.ManDays.Valid {
		t.Error("garbage man_days should be invalid")
	}
	if !raw.LaborHours.Valid || raw.LaborHours.Value != 2.5 {
		t.Errorf("numeric-string labor_hours = %+v, want valid 2.5", raw.LaborHours)
	}

	// 2.5 <= 3, so man-day interpretation applies.
	if got := laborHours(t, raw); !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("laborHours = %s, want 20", got)
	}
}

// =============================================================================
// DATE, STATUS, OWNERSHIP
// =============================================================================

func TestNormalize_DateTruncation(t *testing.T) {
	rec := ledger.Normalize(ledger.RawRecord{WorkDate: "2024-03-05T08:30:00"}, "w1")

	if rec.Date.ISO() != "2024-03-05" {
		t.Errorf("date = %s, want 2024-03-05", rec.Date.ISO())
	}
}

func TestNormalize_StatusExplicitWins(t *testing.T) {
	rec := ledger.Normalize(ledger.RawRecord{
		Status:      "APPROVED",
		CheckInTime: "08:00", // would infer in-progress, must be ignored
	}, "w1")

	if rec.Status != ledger.StatusApproved {
		t.Errorf("status = %s, want approved", rec.Status)
	}
}

func TestNormalize_StatusInference(t *testing.T) {
	cases := []struct {
		in, out string
		want    ledger.Status
	}{
		{"08:00", "", ledger.StatusInProgress},
		{"08:00", "17:00", ledger.StatusPresent},
		{"", "", ledger.StatusAbsent},
	}

	for _, c := range cases {
		rec := ledger.Normalize(ledger.RawRecord{CheckInTime: c.in, CheckOutTime: c.out}, "w1")
		if rec.Status != c.want {
			t.Errorf("check-in=%q check-out=%q: status = %s, want %s", c.in, c.out, rec.Status, c.want)
		}
	}
}

func TestNormalize_OwnershipComputedLocally(t *testing.T) {
	cases := []struct {
		name     string
		raw      ledger.RawRecord
		identity ledger.Identity
		want     bool
	}{
		{"user_id match", ledger.RawRecord{UserID: "w1"}, "w1", true},
		{"profile_id match", ledger.RawRecord{ProfileID: "w1"}, "w1", true},
		{"no match", ledger.RawRecord{UserID: "w2", ProfileID: "w3"}, "w1", false},
		{"empty identity owns nothing", ledger.RawRecord{UserID: ""}, "", false},
	}

	for _, c := range cases {
		if got := ledger.Normalize(c.raw, c.identity).IsMe; got != c.want {
			t.Errorf("%s: isMe = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestNormalize_SiteNameDefaultsToSentinel(t *testing.T) {
	rec := ledger.Normalize(ledger.RawRecord{}, "w1")

	if rec.SiteName != ledger.UnassignedSiteName {
		t.Errorf("siteName = %q, want %q", rec.SiteName, ledger.UnassignedSiteName)
	}
}

func TestNormalize_RoundsToTwoDecimals(t *testing.T) {
	rec := ledger.Normalize(ledger.RawRecord{WorkHours: ledger.Num(7.333333)}, "w1")

	if got := rec.WorkHours.String(); got != "7.33" {
		t.Errorf("workHours = %s, want 7.33", got)
	}
}
