package attendance

import (
	"time"
)

// =============================================================================
// WORK DATES - Day and month attribution
// =============================================================================

// WorkDate truncates a timestamp to midnight in its own location. A work
// span that crosses midnight belongs to the calendar day of the "in" punch.
func WorkDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MonthStart returns the first day of the timestamp's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// NextMonth returns the first day of the following month.
func NextMonth(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0)
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// =============================================================================
// LATE-NIGHT WINDOW - [22:00, 24:00) U [00:00, 05:00)
// =============================================================================

const (
	lateNightEveningStart = 22
	lateNightMorningEnd   = 5
)

// LateNightHours returns the portion of [start, end) that falls inside the
// late-night windows [22:00, 24:00) and [00:00, 05:00), walking every
// calendar day the span touches so cross-midnight shifts are covered.
func LateNightHours(start, end time.Time) Hours {
	if !end.After(start) {
		return ZeroHours()
	}

	var total time.Duration
	for day := WorkDate(start); day.Before(end); day = day.AddDate(0, 0, 1) {
		morningEnd := day.Add(time.Duration(lateNightMorningEnd) * time.Hour)
		eveningStart := day.Add(time.Duration(lateNightEveningStart) * time.Hour)
		nextMidnight := day.AddDate(0, 0, 1)

		total += overlap(start, end, day, morningEnd)
		total += overlap(start, end, eveningStart, nextMidnight)
	}
	return HoursFromDuration(total)
}

// overlap returns the length of the intersection of [aFrom, aTo) and
// [bFrom, bTo).
func overlap(aFrom, aTo, bFrom, bTo time.Time) time.Duration {
	from := aFrom
	if bFrom.After(from) {
		from = bFrom
	}
	to := aTo
	if bTo.Before(to) {
		to = bTo
	}
	if !to.After(from) {
		return 0
	}
	return to.Sub(from)
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is a non-working date. Recurring holidays match on (month, day)
// every year; one-off holidays match the exact date.
type Holiday struct {
	ID        string
	Date      time.Time
	Name      string
	Recurring bool
	CreatedAt time.Time
}

// Matches reports whether the holiday applies to the given work date.
func (h Holiday) Matches(date time.Time) bool {
	if h.Recurring {
		return h.Date.Month() == date.Month() && h.Date.Day() == date.Day()
	}
	return h.Date.Year() == date.Year() &&
		h.Date.Month() == date.Month() &&
		h.Date.Day() == date.Day()
}

// HolidayCalendar answers whether a work date is a flagged non-working day.
// Weekends are handled by the aggregator itself, not the calendar.
type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
}

// ListCalendar is a HolidayCalendar over a fixed holiday list, typically
// loaded from the holiday store once per job run.
type ListCalendar struct {
	holidays []Holiday
}

func NewListCalendar(holidays []Holiday) *ListCalendar {
	return &ListCalendar{holidays: holidays}
}

func (c *ListCalendar) IsHoliday(date time.Time) bool {
	for _, h := range c.holidays {
		if h.Matches(date) {
			return true
		}
	}
	return false
}

// NoHolidays is the calendar used when holiday tracking is disabled.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(time.Time) bool { return false }
