package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clockPtr(s string) *Clock {
	c := MustParseClock(s)
	return &c
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "08:30", want: 8*60 + 30},
		{in: "23:59", want: 23*60 + 59},
		{in: "24:00", want: MinutesPerDay},
		{in: "24:01", wantErr: true},
		{in: "25:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "8:30", wantErr: true},
		{in: "08-30", wantErr: true},
		{in: "+8:30", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestClock_JSON(t *testing.T) {
	day := DaySchedule{Open: true, OpenTime: MustParseClock("09:00"), CloseTime: MustParseClock("17:30"), BreakStart: clockPtr("12:00"), BreakEnd: clockPtr("12:30")}

	raw, err := json.Marshal(day)
	require.NoError(t, err)
	assert.JSONEq(t, `{"open":true,"open_time":"09:00","close_time":"17:30","break_start":"12:00","break_end":"12:30"}`, string(raw))

	var decoded DaySchedule
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, day, decoded)

	err = json.Unmarshal([]byte(`{"open":true,"open_time":"9am"}`), &decoded)
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestDaySchedule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		day     DaySchedule
		wantErr bool
	}{
		{name: "closed day ignores hours", day: DaySchedule{Open: false, OpenTime: 600, CloseTime: 60}},
		{name: "plain day", day: DaySchedule{Open: true, OpenTime: 480, CloseTime: 1080}},
		{name: "with break", day: DaySchedule{Open: true, OpenTime: 480, CloseTime: 1080, BreakStart: clockPtr("12:00"), BreakEnd: clockPtr("13:00")}},
		{name: "break touching open and close", day: DaySchedule{Open: true, OpenTime: 480, CloseTime: 1080, BreakStart: clockPtr("08:00"), BreakEnd: clockPtr("18:00")}},
		{name: "open equals close", day: DaySchedule{Open: true, OpenTime: 480, CloseTime: 480}, wantErr: true},
		{name: "open after close", day: DaySchedule{Open: true, OpenTime: 600, CloseTime: 480}, wantErr: true},
		{name: "half break", day: DaySchedule{Open: true, OpenTime: 480, CloseTime: 1080, BreakStart: clockPtr("12:00")}, wantErr: true},
		{name: "break before open", day: DaySchedule{Open: true, OpenTime: 480, CloseTime: 1080, BreakStart: clockPtr("07:00"), BreakEnd: clockPtr("09:00")}, wantErr: true},
		{name: "break after close", day: DaySchedule{Open: true, OpenTime: 480, CloseTime: 1080, BreakStart: clockPtr("17:30"), BreakEnd: clockPtr("18:30")}, wantErr: true},
		{name: "empty break", day: DaySchedule{Open: true, OpenTime: 480, CloseTime: 1080, BreakStart: clockPtr("12:00"), BreakEnd: clockPtr("12:00")}, wantErr: true},
		{name: "past midnight", day: DaySchedule{Open: true, OpenTime: 480, CloseTime: MinutesPerDay + 30}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.day.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduleConfig_Validate(t *testing.T) {
	cfg := DefaultSchedule("c1")
	require.NoError(t, cfg.Validate())

	cfg.SlotGranularityMinutes = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidSchedule)

	cfg = DefaultSchedule("c1")
	cfg.Days[time.Wednesday].CloseTime = cfg.Days[time.Wednesday].OpenTime
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidSchedule)
	assert.Contains(t, err.Error(), "Wednesday")
}

func TestDefaultSchedule(t *testing.T) {
	cfg := DefaultSchedule("c1")

	assert.Equal(t, "c1", cfg.CompanyID)
	assert.Equal(t, 30, cfg.SlotGranularityMinutes)
	assert.False(t, cfg.Day(time.Sunday).Open)
	assert.Equal(t, "08:00", cfg.Day(time.Monday).OpenTime.String())
	assert.Equal(t, "18:00", cfg.Day(time.Friday).CloseTime.String())
	assert.Equal(t, "16:00", cfg.Day(time.Saturday).CloseTime.String())
	assert.False(t, cfg.Day(time.Tuesday).HasBreak())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-05-06", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())
	assert.Equal(t, "2024-05-06", FormatDate(d))

	for _, bad := range []string{"2024-5-6", "06/05/2024", "2024-02-30", ""} {
		_, err := ParseDate(bad, time.UTC)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
	}
}

func TestReservation_Upcoming(t *testing.T) {
	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

	r := &Reservation{Date: "2024-05-06", Time: "11:00", Status: StatusConfirmed}
	assert.True(t, r.Upcoming(now))

	r.Time = "09:30"
	assert.False(t, r.Upcoming(now))

	r = &Reservation{Date: "2024-05-07", Time: "09:00", Status: StatusCancelled}
	assert.False(t, r.Upcoming(now))

	start, err := (&Reservation{Date: "2024-05-07", Time: "09:15"}).StartsAt(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 7, 9, 15, 0, 0, time.UTC), start)
}

func TestIsValidStatus(t *testing.T) {
	assert.True(t, IsValidStatus(StatusConfirmed))
	assert.True(t, IsValidStatus(StatusPending))
	assert.True(t, IsValidStatus(StatusCancelled))
	assert.False(t, IsValidStatus("completed"))
}
