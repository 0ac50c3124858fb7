// Package calendar gates collection runs on market business days. The
// exchange follows the South African holiday calendar; only the fixed-date
// holidays are listed, which matches how the operations team plans the
// schedule.
package calendar

import "time"

// holiday is a fixed month/day public holiday.
type holiday struct {
	month time.Month
	day   int
}

var publicHolidays = []holiday{
	{time.January, 1},    // New Year's Day
	{time.March, 21},     // Human Rights Day
	{time.April, 18},     // Good Friday
	{time.April, 21},     // Family Day
	{time.April, 28},     // Freedom Day
	{time.May, 1},        // Workers Day
	{time.June, 16},      // Youth Day
	{time.August, 9},     // National Women's Day
	{time.September, 24}, // Heritage Day
	{time.December, 16},  // Day of Reconciliation
	{time.December, 25},  // Christmas Day
	{time.December, 26},  // Day of Goodwill
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsPublicHoliday reports whether t falls on a listed public holiday.
func IsPublicHoliday(t time.Time) bool {
	for _, h := range publicHolidays {
		if t.Month() == h.month && t.Day() == h.day {
			return true
		}
	}
	return false
}

// IsBusinessDay reports whether t is a weekday that is not a public holiday.
func IsBusinessDay(t time.Time) bool {
	return !IsWeekend(t) && !IsPublicHoliday(t)
}
