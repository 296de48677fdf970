// Package schedule holds the calendar math the client runs before touching
// the API: slot validation, interval-overlap checks, and the month grid the
// date picker renders.
package schedule

import (
	"time"

	"shelterlink/internal/domain"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ValidSlot reports whether a slot has well-formed date/time fields and a
// positive duration.
func ValidSlot(s domain.TimeSlot) bool {
	if _, err := time.Parse(dateLayout, s.Date); err != nil {
		return false
	}
	start, err := time.Parse(timeLayout, s.Start)
	if err != nil {
		return false
	}
	end, err := time.Parse(timeLayout, s.End)
	if err != nil {
		return false
	}
	return start.Before(end)
}

// Overlaps reports whether two slots share any time on the same day.
// Touching endpoints (one ends exactly when the other starts) do not
// overlap. Zero-padded HH:MM strings compare correctly as strings.
func Overlaps(a, b domain.TimeSlot) bool {
	if a.Date != b.Date {
		return false
	}
	return a.Start < b.End && b.Start < a.End
}

// Within reports whether the slot's date falls inside the recruiting window
// [startDate, endDate], both inclusive.
func Within(s domain.TimeSlot, startDate, endDate string) bool {
	return s.Date >= startDate && s.Date <= endDate
}

// ConflictsWith reports whether the slot overlaps any live application.
// Canceled and rejected applications do not block a new slot.
func ConflictsWith(s domain.TimeSlot, existing []domain.Application) bool {
	for _, app := range existing {
		if app.Status == domain.ApplicationCanceled || app.Status == domain.ApplicationRejected {
			continue
		}
		if Overlaps(s, app.Slot) {
			return true
		}
	}
	return false
}

// Day is one cell of the month grid.
type Day struct {
	Date    time.Time
	InMonth bool
}

// MonthGrid builds the 6x7 calendar grid for a month, padded with the
// leading and trailing days the picker shows greyed out. Weeks start on
// Sunday.
func MonthGrid(year int, month time.Month) [][]Day {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	grid := make([][]Day, 6)
	day := start
	for w := 0; w < 6; w++ {
		week := make([]Day, 7)
		for d := 0; d < 7; d++ {
			week[d] = Day{Date: day, InMonth: day.Month() == month}
			day = day.AddDate(0, 0, 1)
		}
		grid[w] = week
	}
	return grid
}
