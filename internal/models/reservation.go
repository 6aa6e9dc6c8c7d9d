package models

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Reservation holds one client's claim on a (company, date, time) slot.
// Date and Time are stored in their wire form: "YYYY-MM-DD" and "HH:MM".
type Reservation struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"company_id"`
	ClientID    string     `json:"client_id"`
	ServiceID   string     `json:"service_id"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// StartsAt resolves the reservation's start in loc.
func (r *Reservation) StartsAt(loc *time.Location) (time.Time, error) {
	date, err := ParseDate(r.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	clock, err := ParseClock(r.Time)
	if err != nil {
		return time.Time{}, err
	}
	return DateTime(date, clock), nil
}

// Upcoming reports whether the reservation is still ahead of now and not cancelled.
func (r *Reservation) Upcoming(now time.Time) bool {
	if r.Status == StatusCancelled {
		return false
	}
	start, err := r.StartsAt(now.Location())
	if err != nil {
		return false
	}
	return start.After(now)
}

// ReservationFilter narrows reservation listings. Empty fields are ignored.
type ReservationFilter struct {
	CompanyID string
	ClientID  string
	Status    string
	DateFrom  string
	DateTo    string
	Limit     uint64
}

// ParseDate parses a strict "YYYY-MM-DD" date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateTime places a clock on the calendar day of date, in date's location.
func DateTime(date time.Time, c Clock) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, date.Location())
}
