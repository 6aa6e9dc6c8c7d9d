// Package availability turns a weekly schedule and the confirmed reservations of a day into
// bookable slots, and decides whether a single (date, time) may be reserved.
//
// Everything here is pure: the current time is always passed in and nothing is cached
// between calls.
package availability

import (
	"iter"
	"slices"
	"time"

	"slotbook/internal/models"
)

// Slots yields the slot start times of date's weekday in ascending order. The sequence is
// lazy and can be ranged over any number of times. cfg is expected to be valid.
func Slots(cfg models.ScheduleConfig, date time.Time) iter.Seq[models.Clock] {
	return DaySlots(cfg.Day(date.Weekday()), cfg.SlotGranularityMinutes)
}

// GenerateSlots collects Slots into a slice.
func GenerateSlots(cfg models.ScheduleConfig, date time.Time) []models.Clock {
	return slices.Collect(Slots(cfg, date))
}

// DaySlots walks from the opening time in steps of granularity minutes. A slot is emitted
// only if it ends by closing time and does not overlap the break. When the walk lands inside
// the break it resumes at the break end, so the grid after a break is anchored there.
func DaySlots(day models.DaySchedule, granularity int) iter.Seq[models.Clock] {
	return func(yield func(models.Clock) bool) {
		if !day.Open || granularity <= 0 {
			return
		}

		step := models.Clock(granularity)
		for t := day.OpenTime; t < day.CloseTime; {
			if day.HasBreak() && t >= *day.BreakStart && t < *day.BreakEnd {
				t = *day.BreakEnd
				continue
			}

			end := t + step
			if end > day.CloseTime {
				return
			}
			if !overlapsBreak(day, t, end) {
				if !yield(t) {
					return
				}
			}
			t = end
		}
	}
}

func overlapsBreak(day models.DaySchedule, start, end models.Clock) bool {
	if !day.HasBreak() {
		return false
	}
	return start < *day.BreakEnd && end > *day.BreakStart
}
