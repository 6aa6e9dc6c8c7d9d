package models

import (
	"errors"
	"fmt"
	"time"
)

const (
	MinutesPerDay = 24 * 60

	// DefaultSlotGranularity is the slot length used when a schedule does not set one.
	DefaultSlotGranularity = 30
)

var (
	ErrInvalidTime     = errors.New("invalid time, expected HH:MM")
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrInvalidInput    = errors.New("invalid input")
)

// Clock is a company-local time of day in minutes since midnight.
type Clock int

// ParseClock parses a zero-padded "HH:MM" string. "24:00" is accepted so a day can close at midnight.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	return Clock(h*60 + m), nil
}

// MustParseClock is ParseClock for compile-time constants.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns the clock shifted by the given number of minutes.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// DaySchedule holds the opening hours of one weekday. The break is optional but must be
// fully specified when present.
type DaySchedule struct {
	Open       bool   `json:"open"`
	OpenTime   Clock  `json:"open_time"`
	CloseTime  Clock  `json:"close_time"`
	BreakStart *Clock `json:"break_start,omitempty"`
	BreakEnd   *Clock `json:"break_end,omitempty"`
}

func (d DaySchedule) HasBreak() bool {
	return d.BreakStart != nil && d.BreakEnd != nil
}

// Validate checks open < close and open <= breakStart < breakEnd <= close.
// Closed days are always valid.
func (d DaySchedule) Validate() error {
	if !d.Open {
		return nil
	}
	if d.OpenTime < 0 || d.CloseTime > MinutesPerDay {
		return fmt.Errorf("hours %s-%s out of range", d.OpenTime, d.CloseTime)
	}
	if d.OpenTime >= d.CloseTime {
		return fmt.Errorf("open time %s must be before close time %s", d.OpenTime, d.CloseTime)
	}
	if (d.BreakStart == nil) != (d.BreakEnd == nil) {
		return errors.New("break requires both start and end")
	}
	if !d.HasBreak() {
		return nil
	}

	bs, be := *d.BreakStart, *d.BreakEnd
	if bs < d.OpenTime || be > d.CloseTime {
		return fmt.Errorf("break %s-%s outside hours %s-%s", bs, be, d.OpenTime, d.CloseTime)
	}
	if bs >= be {
		return fmt.Errorf("break start %s must be before break end %s", bs, be)
	}
	return nil
}

// ScheduleConfig is a company's weekly operating-hours policy. Days is indexed by
// time.Weekday, Sunday first.
type ScheduleConfig struct {
	CompanyID              string         `json:"company_id"`
	SlotGranularityMinutes int            `json:"slot_granularity_minutes"`
	Days                   [7]DaySchedule `json:"days"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

func (c ScheduleConfig) Day(weekday time.Weekday) DaySchedule {
	return c.Days[weekday]
}

func (c ScheduleConfig) Validate() error {
	if c.SlotGranularityMinutes < 1 || c.SlotGranularityMinutes > MinutesPerDay {
		return fmt.Errorf("%w: slot granularity %d out of range", ErrInvalidSchedule, c.SlotGranularityMinutes)
	}
	for i, day := range c.Days {
		if err := day.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, time.Weekday(i), err)
		}
	}
	return nil
}

// DefaultSchedule is assigned to every new company: Monday to Friday 08:00-18:00,
// Saturday 08:00-16:00, Sunday closed, 30 minute slots.
func DefaultSchedule(companyID string) ScheduleConfig {
	weekday := DaySchedule{Open: true, OpenTime: MustParseClock("08:00"), CloseTime: MustParseClock("18:00")}
	saturday := DaySchedule{Open: true, OpenTime: MustParseClock("08:00"), CloseTime: MustParseClock("16:00")}

	cfg := ScheduleConfig{
		CompanyID:              companyID,
		SlotGranularityMinutes: DefaultSlotGranularity,
	}
	cfg.Days[time.Sunday] = DaySchedule{Open: false}
	for d := time.Monday; d <= time.Friday; d++ {
		cfg.Days[d] = weekday
	}
	cfg.Days[time.Saturday] = saturday
	return cfg
}
