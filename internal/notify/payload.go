package notify

import (
	"time"

	"slotbook/internal/models"
)

// Payload is the JSON envelope shared by the webhook and Kafka channels.
type Payload struct {
	Type        string         `json:"type"`
	Appointment *Appointment   `json:"appointment,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type Appointment struct {
	ID          string       `json:"id"`
	CompanyID   string       `json:"company_id"`
	CompanyName string       `json:"company_name,omitempty"`
	ClientID    string       `json:"client_id"`
	Service     *ServiceInfo `json:"service,omitempty"`
	Date        string       `json:"date"`
	Time        string       `json:"time"`
	Status      string       `json:"status"`
}

type ServiceInfo struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Duration int     `json:"duration"`
}

// Reminder is a point before the appointment at which the client should be reminded.
type Reminder struct {
	Type         string    `json:"type"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

var reminderOffsets = []struct {
	name   string
	before time.Duration
}{
	{"1_day_before", 24 * time.Hour},
	{"1_hour_before", time.Hour},
	{"30_min_before", 30 * time.Minute},
}

// Reminders lists the reminder times for an appointment starting at start. Reminders
// that would already be in the past at now are left out.
func Reminders(start, now time.Time) []Reminder {
	out := make([]Reminder, 0, len(reminderOffsets))
	for _, o := range reminderOffsets {
		at := start.Add(-o.before)
		if !at.After(now) {
			continue
		}
		out = append(out, Reminder{Type: o.name, ScheduledFor: at})
	}
	return out
}

// BuildPayload renders n as the outbound envelope. Confirmations carry the reminder
// schedule in metadata.
func BuildPayload(n *Notification, loc *time.Location) Payload {
	r := n.Reservation
	a := &Appointment{
		ID:        r.ReservationID,
		CompanyID: r.CompanyID,
		ClientID:  r.ClientID,
		Date:      r.Date,
		Time:      r.Time,
		Status:    r.Status,
	}
	if n.Company != nil {
		a.CompanyName = n.Company.Name
	}
	if n.Service != nil {
		a.Service = &ServiceInfo{
			ID:       n.Service.ID,
			Name:     n.Service.Name,
			Price:    n.Service.Price,
			Duration: n.Service.DurationMinutes,
		}
	}

	p := Payload{Type: n.Type, Appointment: a, Timestamp: n.Timestamp}
	if n.Type != TypeAppointmentConfirmed {
		return p
	}

	res := models.Reservation{Date: r.Date, Time: r.Time}
	start, err := res.StartsAt(loc)
	if err != nil {
		return p
	}
	p.Metadata = map[string]any{"reminders": Reminders(start, n.Timestamp)}
	return p
}
