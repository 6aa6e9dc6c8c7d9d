package availability

import (
	"encoding/json"
	"testing"
	"time"

	"slotbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmed(companyID, date, tm string) *models.Reservation {
	return &models.Reservation{ID: date + tm, CompanyID: companyID, Date: date, Time: tm, Status: models.StatusConfirmed}
}

func TestIsTaken(t *testing.T) {
	reservations := []*models.Reservation{
		confirmed("c1", "2024-05-06", "14:00"),
		{CompanyID: "c1", Date: "2024-05-06", Time: "15:00", Status: models.StatusCancelled},
		{CompanyID: "c1", Date: "2024-05-06", Time: "16:00", Status: models.StatusPending},
		confirmed("c2", "2024-05-06", "10:00"),
	}

	assert.True(t, IsTaken("c1", "2024-05-06", clock("14:00"), reservations))
	assert.False(t, IsTaken("c1", "2024-05-06", clock("15:00"), reservations), "cancelled never blocks")
	assert.False(t, IsTaken("c1", "2024-05-06", clock("16:00"), reservations), "pending never blocks")
	assert.False(t, IsTaken("c1", "2024-05-06", clock("10:00"), reservations), "other company")
	assert.False(t, IsTaken("c1", "2024-05-07", clock("14:00"), reservations), "other date")
}

func TestFilterAvailable_LeadTimeToday(t *testing.T) {
	cfg := scheduleWithBreak()
	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

	got := FilterAvailable("c1", monday, Slots(cfg, monday), nil, now)

	for _, s := range got {
		assert.True(t, models.DateTime(monday, s).After(now.Add(LeadTime)), "slot %s too soon", s)
	}
	assert.NotContains(t, got, clock("10:30"), "slot exactly at now+30m is excluded")
	assert.Equal(t, clock("11:00"), got[0])
}

func TestFilterAvailable_FutureDateHasNoLeadTimeExclusions(t *testing.T) {
	cfg := scheduleWithBreak()
	now := time.Date(2024, 5, 5, 23, 45, 0, 0, time.UTC)

	got := FilterAvailable("c1", monday, Slots(cfg, monday), nil, now)

	assert.Equal(t, GenerateSlots(cfg, monday), got)
}

func TestFilterAvailable_DropsTakenAndKeepsOrder(t *testing.T) {
	cfg := scheduleWithBreak()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	reservations := []*models.Reservation{
		confirmed("c1", "2024-05-06", "14:00"),
		confirmed("c1", "2024-05-06", "08:00"),
	}

	got := FilterAvailable("c1", monday, Slots(cfg, monday), reservations, now)

	assert.Len(t, got, 16)
	assert.NotContains(t, got, clock("14:00"))
	assert.NotContains(t, got, clock("08:00"))
	assert.IsIncreasing(t, got)
}

func TestFilterAvailable_MatchesGate(t *testing.T) {
	cfg := scheduleWithBreak()
	now := time.Date(2024, 5, 6, 11, 10, 0, 0, time.UTC)
	reservations := []*models.Reservation{confirmed("c1", "2024-05-06", "15:30")}

	filtered := FilterAvailable("c1", monday, Slots(cfg, monday), reservations, now)

	var bookable []models.Clock
	for _, st := range SlotStatuses(cfg, "c1", monday, reservations, now) {
		if st.Available() {
			bookable = append(bookable, st.Time)
		}
	}
	assert.Equal(t, bookable, filtered)
}

func TestEvaluate_TakenOnlyAffectsBookedTime(t *testing.T) {
	cfg := scheduleWithBreak()
	now := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	reservations := []*models.Reservation{confirmed("c1", "2024-05-06", "14:00")}

	assert.Equal(t, RejectedTaken, Evaluate(cfg, "c1", monday, clock("14:00"), reservations, now))
	assert.Equal(t, Bookable, Evaluate(cfg, "c1", monday, clock("14:30"), reservations, now))
	assert.Equal(t, Bookable, Evaluate(cfg, "c2", monday, clock("14:00"), reservations, now))
}

func TestEvaluate(t *testing.T) {
	cfg := scheduleWithBreak()
	now := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	reservations := []*models.Reservation{confirmed("c1", "2024-05-06", "10:00")}

	tests := []struct {
		name string
		date time.Time
		time string
		want Decision
	}{
		{name: "bookable", date: monday, time: "17:30", want: Bookable},
		{name: "closed sunday", date: monday.AddDate(0, 0, -1), time: "10:00", want: RejectedClosed},
		{name: "before open", date: monday, time: "07:30", want: RejectedClosed},
		{name: "at close", date: monday, time: "18:00", want: RejectedClosed},
		{name: "runs past close", date: monday, time: "17:45", want: RejectedClosed},
		{name: "inside break", date: monday, time: "12:00", want: RejectedClosed},
		{name: "overlaps break", date: monday, time: "11:45", want: RejectedClosed},
		{name: "off grid", date: monday, time: "09:15", want: RejectedInvalidSlot},
		{name: "taken", date: monday, time: "10:00", want: RejectedTaken},
		{name: "too soon", date: monday, time: "09:30", want: RejectedTooSoon},
		{name: "already past", date: monday, time: "08:00", want: RejectedTooSoon},
		{name: "past day", date: monday.AddDate(0, 0, -7), time: "10:00", want: RejectedTooSoon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(cfg, "c1", tt.date, clock(tt.time), reservations, now)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestEvaluate_GridAfterUnalignedBreak(t *testing.T) {
	cfg := models.DefaultSchedule("c1")
	cfg.Days[time.Monday].BreakStart = clockPtr("12:00")
	cfg.Days[time.Monday].BreakEnd = clockPtr("12:45")
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, Bookable, Evaluate(cfg, "c1", monday, clock("12:45"), nil, now))
	assert.Equal(t, RejectedInvalidSlot, Evaluate(cfg, "c1", monday, clock("13:00"), nil, now))
}

func TestEvaluate_TakenBeforeTooSoon(t *testing.T) {
	cfg := scheduleWithBreak()
	now := time.Date(2024, 5, 6, 9, 50, 0, 0, time.UTC)
	reservations := []*models.Reservation{confirmed("c1", "2024-05-06", "10:00")}

	assert.Equal(t, RejectedTaken, Evaluate(cfg, "c1", monday, clock("10:00"), reservations, now))
}

func TestSlotStatuses(t *testing.T) {
	cfg := scheduleWithBreak()
	now := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	reservations := []*models.Reservation{confirmed("c1", "2024-05-06", "14:00")}

	statuses := SlotStatuses(cfg, "c1", monday, reservations, now)
	require.Len(t, statuses, 18)

	byTime := make(map[string]Decision, len(statuses))
	for _, st := range statuses {
		byTime[st.Time.String()] = st.Decision
	}
	assert.Equal(t, RejectedTooSoon, byTime["08:00"])
	assert.Equal(t, RejectedTooSoon, byTime["09:30"])
	assert.Equal(t, Bookable, byTime["10:00"])
	assert.Equal(t, RejectedTaken, byTime["14:00"])
}

func TestDecision_Text(t *testing.T) {
	raw, err := json.Marshal(SlotStatus{Time: clock("09:30"), Decision: RejectedTooSoon})
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":"09:30","decision":"too_soon"}`, string(raw))

	var d Decision
	require.NoError(t, d.UnmarshalText([]byte("invalid_slot")))
	assert.Equal(t, RejectedInvalidSlot, d)
	assert.Error(t, d.UnmarshalText([]byte("nope")))
	assert.Equal(t, "decision(42)", Decision(42).String())
}
