package schedule

import (
	"testing"
	"time"

	"shelterlink/internal/domain"
)

func slot(date, start, end string) domain.TimeSlot {
	return domain.TimeSlot{Date: date, Start: start, End: end}
}

func TestValidSlot(t *testing.T) {
	tests := []struct {
		name string
		s    domain.TimeSlot
		want bool
	}{
		{"valid", slot("2026-09-05", "10:00", "12:00"), true},
		{"end before start", slot("2026-09-05", "12:00", "10:00"), false},
		{"zero duration", slot("2026-09-05", "10:00", "10:00"), false},
		{"bad date", slot("2026-13-05", "10:00", "12:00"), false},
		{"bad time", slot("2026-09-05", "25:00", "26:00"), false},
		{"empty", domain.TimeSlot{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidSlot(tt.s); got != tt.want {
				t.Errorf("ValidSlot() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.TimeSlot
		want bool
	}{
		{"identical", slot("2026-09-05", "10:00", "12:00"), slot("2026-09-05", "10:00", "12:00"), true},
		{"partial overlap", slot("2026-09-05", "10:00", "12:00"), slot("2026-09-05", "11:00", "13:00"), true},
		{"contained", slot("2026-09-05", "10:00", "14:00"), slot("2026-09-05", "11:00", "12:00"), true},
		{"touching endpoints", slot("2026-09-05", "10:00", "12:00"), slot("2026-09-05", "12:00", "14:00"), false},
		{"different days", slot("2026-09-05", "10:00", "12:00"), slot("2026-09-06", "10:00", "12:00"), false},
		{"disjoint same day", slot("2026-09-05", "08:00", "09:00"), slot("2026-09-05", "10:00", "11:00"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.a, tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			// Overlap is symmetric
			if got := Overlaps(tt.b, tt.a); got != tt.want {
				t.Errorf("Overlaps() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		name string
		s    domain.TimeSlot
		want bool
	}{
		{"inside", slot("2026-09-15", "10:00", "12:00"), true},
		{"first day", slot("2026-09-01", "10:00", "12:00"), true},
		{"last day", slot("2026-09-30", "10:00", "12:00"), true},
		{"before", slot("2026-08-31", "10:00", "12:00"), false},
		{"after", slot("2026-10-01", "10:00", "12:00"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Within(tt.s, "2026-09-01", "2026-09-30"); got != tt.want {
				t.Errorf("Within() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConflictsWith(t *testing.T) {
	existing := []domain.Application{
		{Slot: slot("2026-09-05", "10:00", "12:00"), Status: domain.ApplicationApproved},
		{Slot: slot("2026-09-06", "10:00", "12:00"), Status: domain.ApplicationCanceled},
		{Slot: slot("2026-09-07", "10:00", "12:00"), Status: domain.ApplicationRejected},
	}

	t.Run("conflicts with live application", func(t *testing.T) {
		if !ConflictsWith(slot("2026-09-05", "11:00", "13:00"), existing) {
			t.Error("expected conflict with approved application")
		}
	})

	t.Run("canceled application does not block", func(t *testing.T) {
		if ConflictsWith(slot("2026-09-06", "10:00", "12:00"), existing) {
			t.Error("canceled application should not conflict")
		}
	})

	t.Run("rejected application does not block", func(t *testing.T) {
		if ConflictsWith(slot("2026-09-07", "10:00", "12:00"), existing) {
			t.Error("rejected application should not conflict")
		}
	})

	t.Run("free slot", func(t *testing.T) {
		if ConflictsWith(slot("2026-09-08", "10:00", "12:00"), existing) {
			t.Error("unrelated slot should not conflict")
		}
	})
}

func TestMonthGrid(t *testing.T) {
	grid := MonthGrid(2026, time.September)

	if len(grid) != 6 {
		t.Fatalf("expected 6 weeks, got %d", len(grid))
	}
	for i, week := range grid {
		if len(week) != 7 {
			t.Fatalf("week %d has %d days", i, len(week))
		}
	}

	// September 1st 2026 is a Tuesday; the grid starts on the prior Sunday.
	first := grid[0][0]
	if first.Date.Weekday() != time.Sunday {
		t.Errorf("grid starts on %s, want Sunday", first.Date.Weekday())
	}
	if got := first.Date.Format("2006-01-02"); got != "2026-08-30" {
		t.Errorf("grid starts at %s, want 2026-08-30", got)
	}
	if first.InMonth {
		t.Error("leading August day must be marked out of month")
	}

	// All 30 September days appear, in order, marked in-month.
	var inMonth int
	for _, week := range grid {
		for _, d := range week {
			if d.InMonth {
				inMonth++
			}
		}
	}
	if inMonth != 30 {
		t.Errorf("expected 30 in-month days, got %d", inMonth)
	}

	// Days are consecutive across the whole grid.
	prev := grid[0][0].Date
	for w := 0; w < 6; w++ {
		for d := 0; d < 7; d++ {
			if w == 0 && d == 0 {
				continue
			}
			cur := grid[w][d].Date
			if !cur.Equal(prev.AddDate(0, 0, 1)) {
				t.Fatalf("grid not consecutive at week %d day %d", w, d)
			}
			prev = cur
		}
	}
}
