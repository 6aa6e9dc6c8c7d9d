package availability

import (
	"iter"
	"time"

	"slotbook/internal/models"
)

// LeadTime is the minimum distance between now and a bookable slot start.
const LeadTime = 30 * time.Minute

// IsTaken reports whether a confirmed reservation already holds (companyID, date, t).
// Pending and cancelled reservations never block a slot.
func IsTaken(companyID, date string, t models.Clock, reservations []*models.Reservation) bool {
	slot := t.String()
	for _, r := range reservations {
		if r.Status == models.StatusConfirmed && r.CompanyID == companyID && r.Date == date && r.Time == slot {
			return true
		}
	}
	return false
}

// IsTooSoon reports whether the slot starts no later than now + LeadTime.
func IsTooSoon(date time.Time, t models.Clock, now time.Time) bool {
	return !models.DateTime(date, t).After(now.Add(LeadTime))
}

// FilterAvailable keeps the slots that are neither taken nor too soon, preserving order.
func FilterAvailable(
	companyID string,
	date time.Time,
	slots iter.Seq[models.Clock],
	reservations []*models.Reservation,
	now time.Time,
) []models.Clock {
	taken := takenSet(companyID, models.FormatDate(date), reservations)

	var out []models.Clock
	for t := range slots {
		if _, ok := taken[t.String()]; ok {
			continue
		}
		if IsTooSoon(date, t, now) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func takenSet(companyID, date string, reservations []*models.Reservation) map[string]struct{} {
	set := make(map[string]struct{}, len(reservations))
	for _, r := range reservations {
		if r.Status == models.StatusConfirmed && r.CompanyID == companyID && r.Date == date {
			set[r.Time] = struct{}{}
		}
	}
	return set
}
