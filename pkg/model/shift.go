package model

import "time"

// Shift enumeration for a rental day.
const (
	ShiftDay       = "day"
	ShiftNight     = "night"
	ShiftFullDay   = "full_day"
	ShiftFullNight = "full_night"
)

// slot is one occupied half-day unit: the day half or the night half of a date.
type slot struct {
	date  time.Time
	night bool
}

// DateOnly truncates t to midnight UTC so date comparisons are stable regardless
// of the time-of-day the caller supplied.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// occupiedSlots maps a shift on a date to the half-day units it consumes:
//
//	day        -> day(D)
//	night      -> night(D)
//	full_day   -> day(D) + night(D)
//	full_night -> night(D) + day(D+1)
func occupiedSlots(date time.Time, shift string) []slot {
	d := DateOnly(date)
	switch shift {
	case ShiftDay:
		return []slot{{date: d}}
	case ShiftNight:
		return []slot{{date: d, night: true}}
	case ShiftFullDay:
		return []slot{{date: d}, {date: d, night: true}}
	case ShiftFullNight:
		return []slot{{date: d, night: true}, {date: d.AddDate(0, 0, 1)}}
	}
	return nil
}

// ShiftsConflict reports whether two shift bookings occupy any common half-day
// unit. A full_night on D spills into day(D+1), so it conflicts with a day shift
// booked for the following date.
func ShiftsConflict(dateA time.Time, shiftA string, dateB time.Time, shiftB string) bool {
	for _, a := range occupiedSlots(dateA, shiftA) {
		for _, b := range occupiedSlots(dateB, shiftB) {
			if a.date.Equal(b.date) && a.night == b.night {
				return true
			}
		}
	}
	return false
}

// ConflictDateRange returns the inclusive [from, to] date window that can contain
// bookings conflicting with the given slot. Used to bound the availability scan:
// a full_night the day before can spill into our date, and our full_night can
// spill into the next date.
func ConflictDateRange(date time.Time, shift string) (time.Time, time.Time) {
	d := DateOnly(date)
	from := d.AddDate(0, 0, -1)
	to := d
	if shift == ShiftFullNight {
		to = d.AddDate(0, 0, 1)
	}
	return from, to
}

// ValidShift reports whether s is a known shift value.
func ValidShift(s string) bool {
	switch s {
	case ShiftDay, ShiftNight, ShiftFullDay, ShiftFullNight:
		return true
	}
	return false
}
