package export

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"slotbook/internal/models"
)

const (
	googleCalendarURL  = "https://calendar.google.com/calendar/render"
	calendarTimeLayout = "20060102T150405Z"

	// UnknownLocation is shown when the company has no address on file.
	UnknownLocation = "Location to be confirmed"
)

// CalendarEvent is a reservation as it should appear in the client's calendar.
type CalendarEvent struct {
	Title    string    `json:"title"`
	Details  string    `json:"details"`
	Location string    `json:"location"`
	Start    time.Time `json:"starts_at"`
	End      time.Time `json:"ends_at"`
}

// NewCalendarEvent spans the reservation start plus the service duration. A missing
// service or duration falls back to one default slot.
func NewCalendarEvent(r *models.Reservation, company *models.Company, svc *models.Service, loc *time.Location) (CalendarEvent, error) {
	start, err := r.StartsAt(loc)
	if err != nil {
		return CalendarEvent{}, err
	}

	duration := models.DefaultSlotGranularity
	serviceName := "Appointment"
	if svc != nil {
		serviceName = svc.Name
		if svc.DurationMinutes > 0 {
			duration = svc.DurationMinutes
		}
	}

	location := strings.TrimSpace(company.Address)
	if location == "" {
		location = UnknownLocation
	}

	details := fmt.Sprintf("Reservation at %s\nService: %s", company.Name, serviceName)
	if svc != nil {
		details += fmt.Sprintf("\nPrice: %.2f", svc.Price)
	}

	return CalendarEvent{
		Title:    serviceName + " - " + company.Name,
		Details:  details,
		Location: location,
		Start:    start,
		End:      start.Add(time.Duration(duration) * time.Minute),
	}, nil
}

// Dates renders the event span in the start/end form calendar templates expect.
func (e CalendarEvent) Dates() string {
	return e.Start.UTC().Format(calendarTimeLayout) + "/" + e.End.UTC().Format(calendarTimeLayout)
}

// GoogleCalendarURL builds an "add event" template link.
func (e CalendarEvent) GoogleCalendarURL() string {
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", e.Title)
	q.Set("dates", e.Dates())
	q.Set("details", e.Details)
	q.Set("location", e.Location)
	return googleCalendarURL + "?" + q.Encode()
}
