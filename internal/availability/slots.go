// Package availability computes candidate meeting slots from a search window,
// a set of busy calendar intervals, and working-hour constraints. It is pure:
// identical inputs always produce identical slot lists, which keeps the
// decision engine deterministic.
package availability

import (
	"sort"
	"time"

	"schedbot-backend/internal/negotiation/domain"
)

// WorkingHours bounds the hours of a business day, e.g. {9, 17}.
type WorkingHours struct {
	StartHour int
	EndHour   int
}

// Valid reports whether the hours describe a non-empty day span
func (w WorkingHours) Valid() bool {
	return w.StartHour >= 0 && w.EndHour <= 24 && w.StartHour < w.EndHour
}

// FreeSlots returns duration-sized candidate slots inside the window, clipped
// to working hours on weekdays, excluding anything that overlaps a busy
// interval. The result is sorted by start time and non-overlapping; every
// slot has exactly the requested duration. Free gaps are chopped into
// consecutive slots so guests pick from discrete, bookable intervals.
func FreeSlots(window domain.Slot, busy []domain.Slot, hours WorkingHours, duration time.Duration, loc *time.Location) []domain.Slot {
	if duration <= 0 || !hours.Valid() || !window.Start.Before(window.End) {
		return nil
	}

	merged := mergeIntervals(busy)
	var slots []domain.Slot

	// Walk the window one business day at a time.
	day := window.Start.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	for day.Before(window.End) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			workStart := day.Add(time.Duration(hours.StartHour) * time.Hour)
			workEnd := day.Add(time.Duration(hours.EndHour) * time.Hour)
			if workStart.Before(window.Start) {
				workStart = window.Start
			}
			if workEnd.After(window.End) {
				workEnd = window.End
			}
			for _, gap := range subtractBusy(domain.Slot{Start: workStart, End: workEnd}, merged) {
				slots = append(slots, chop(gap, duration)...)
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}

// mergeIntervals sorts and coalesces overlapping or touching intervals
func mergeIntervals(in []domain.Slot) []domain.Slot {
	if len(in) == 0 {
		return nil
	}
	sorted := make([]domain.Slot, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := []domain.Slot{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// subtractBusy removes the merged busy intervals from the work interval and
// returns the remaining free gaps in order.
func subtractBusy(work domain.Slot, busy []domain.Slot) []domain.Slot {
	if !work.Start.Before(work.End) {
		return nil
	}
	var gaps []domain.Slot
	cursor := work.Start
	for _, b := range busy {
		if !b.End.After(work.Start) || !b.Start.Before(work.End) {
			continue
		}
		if b.Start.After(cursor) {
			end := b.Start
			if end.After(work.End) {
				end = work.End
			}
			gaps = append(gaps, domain.Slot{Start: cursor, End: end})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(work.End) {
		gaps = append(gaps, domain.Slot{Start: cursor, End: work.End})
	}
	return gaps
}

// chop splits a free gap into consecutive duration-length slots, discarding
// any trailing remainder shorter than the duration.
func chop(gap domain.Slot, duration time.Duration) []domain.Slot {
	var slots []domain.Slot
	for start := gap.Start; !start.Add(duration).After(gap.End); start = start.Add(duration) {
		slots = append(slots, domain.Slot{Start: start, End: start.Add(duration)})
	}
	return slots
}
