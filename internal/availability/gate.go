package availability

import (
	"fmt"
	"time"

	"slotbook/internal/models"
)

// Decision is the outcome of evaluating a candidate slot.
type Decision int

const (
	Bookable Decision = iota
	RejectedClosed
	RejectedTaken
	RejectedTooSoon
	RejectedInvalidSlot
)

var decisionNames = map[Decision]string{
	Bookable:            "bookable",
	RejectedClosed:      "closed",
	RejectedTaken:       "taken",
	RejectedTooSoon:     "too_soon",
	RejectedInvalidSlot: "invalid_slot",
}

func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Decision) UnmarshalText(text []byte) error {
	for k, v := range decisionNames {
		if v == string(text) {
			*d = k
			return nil
		}
	}
	return fmt.Errorf("unknown decision %q", text)
}

// Evaluate decides whether (date, t) can be reserved for companyID. Checks run in a fixed
// order: slot grid, taken, lead time. It performs no writes; the caller still has to insert
// under the storage uniqueness guarantee.
func Evaluate(
	cfg models.ScheduleConfig,
	companyID string,
	date time.Time,
	t models.Clock,
	reservations []*models.Reservation,
	now time.Time,
) Decision {
	day := cfg.Day(date.Weekday())
	if !day.Open {
		return RejectedClosed
	}

	if !isGridSlot(day, cfg.SlotGranularityMinutes, t) {
		return classifyOffGrid(day, cfg.SlotGranularityMinutes, t)
	}

	if IsTaken(companyID, models.FormatDate(date), t, reservations) {
		return RejectedTaken
	}

	if IsTooSoon(date, t, now) {
		return RejectedTooSoon
	}

	return Bookable
}

func isGridSlot(day models.DaySchedule, granularity int, t models.Clock) bool {
	for slot := range DaySlots(day, granularity) {
		if slot == t {
			return true
		}
		if slot > t {
			return false
		}
	}
	return false
}

// classifyOffGrid separates times that fall outside working hours (or into the break)
// from times that are inside hours but not aligned with the grid.
func classifyOffGrid(day models.DaySchedule, granularity int, t models.Clock) Decision {
	end := t + models.Clock(granularity)
	if t < day.OpenTime || end > day.CloseTime || overlapsBreak(day, t, end) {
		return RejectedClosed
	}
	return RejectedInvalidSlot
}

// SlotStatus pairs a generated slot with the gate's verdict on it.
type SlotStatus struct {
	Time     models.Clock `json:"time"`
	Decision Decision     `json:"decision"`
}

func (s SlotStatus) Available() bool {
	return s.Decision == Bookable
}

// SlotStatuses evaluates every generated slot of date with the same gate used for booking,
// so a slot shown as available is exactly one the gate would accept at now.
func SlotStatuses(
	cfg models.ScheduleConfig,
	companyID string,
	date time.Time,
	reservations []*models.Reservation,
	now time.Time,
) []SlotStatus {
	var out []SlotStatus
	for t := range Slots(cfg, date) {
		out = append(out, SlotStatus{Time: t, Decision: Evaluate(cfg, companyID, date, t, reservations, now)})
	}
	return out
}
