package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// GenerateSlots builds the 30-minute grid of a dentist's day.
//
// target is any instant on the wanted day; its location is the clinic
// calendar. Slots run from the start of operating hours up to (not
// including) the end, and each is classified, first match wins, as lunch,
// break, past (target is today and the slot has started), booked (overlaps
// a non-cancelled appointment of this dentist, other than excludeID) or
// open. A closed day yields an empty, non-nil slice.
func GenerateSlots(sched *Schedule, target time.Time, appts []*Appointment, excludeID uuid.UUID, now time.Time) []Slot {
	slots := []Slot{}
	cal := &sched.Calendar
	if cal.ClosedOn(target) {
		return slots
	}

	loc := target.Location()
	date := LocalISODate(target)
	now = now.In(loc)
	isToday := LocalISODate(now) == date
	nowMinute := MinuteOfDay(now)

	var lunch0, lunch1 int
	hasLunch := cal.Lunch != nil
	if hasLunch {
		lunch0, lunch1 = cal.Lunch.Minutes()
	}

	type window struct{ start, end int }
	var booked []window
	for _, a := range appts {
		if a.ID == excludeID && excludeID != uuid.Nil {
			continue
		}
		if a.DentistID == nil || *a.DentistID != sched.DentistID || isCancelled(a.Status) {
			continue
		}
		if a.StartTime != nil && LocalISODate(a.StartTime.In(loc)) != date {
			continue
		}
		s, e := a.window(loc)
		booked = append(booked, window{s, e})
	}

	open0, open1 := cal.OperatingHours.Minutes()
	for m := open0; m < open1; m += SlotMinutes {
		end := m + SlotMinutes
		kind := SlotOpen

		switch {
		case hasLunch && Overlaps(m, end, lunch0, lunch1):
			kind = SlotLunch
		case overlapsAny(m, end, cal.Breaks):
			kind = SlotBreak
		case isToday && m <= nowMinute:
			kind = SlotPast
		default:
			for _, b := range booked {
				if Overlaps(m, end, b.start, b.end) {
					kind = SlotBooked
					break
				}
			}
		}

		slots = append(slots, Slot{
			Minute:     m,
			Time:       FormatMinutes24(m),
			Label:      FormatMinutes12(m),
			Type:       kind,
			Selectable: kind == SlotOpen,
		})
	}
	return slots
}

func overlapsAny(start, end int, intervals []Interval) bool {
	for _, iv := range intervals {
		b0, b1 := iv.Minutes()
		if Overlaps(start, end, b0, b1) {
			return true
		}
	}
	return false
}
