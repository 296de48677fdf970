package testutil

import (
	"time"

	"shelterlink/internal/domain"
)

// SampleRecruitment returns an open posting with two bookable slots.
func SampleRecruitment() domain.Recruitment {
	return domain.Recruitment{
		ID:          "rec-1",
		ShelterID:   "shelter-1",
		ShelterName: "Happy Paws Shelter",
		Title:       "Weekend dog walking",
		Description: "Help walk and socialize our dogs",
		Region:      "Seoul",
		Species:     []string{"dog"},
		StartDate:   "2026-09-01",
		EndDate:     "2026-09-30",
		Slots: []domain.TimeSlot{
			{Date: "2026-09-05", Start: "10:00", End: "12:00"},
			{Date: "2026-09-06", Start: "14:00", End: "16:00"},
		},
		Capacity:  8,
		Status:    domain.RecruitmentOpen,
		CreatedAt: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
	}
}

// SampleUser returns a volunteer identity.
func SampleUser() domain.User {
	return domain.User{
		ID:    "user-1",
		Email: "vol@example.com",
		Name:  "Vol Unteer",
		Role:  domain.RoleVolunteer,
	}
}

// SampleShelterUser returns a shelter identity.
func SampleShelterUser() domain.User {
	return domain.User{
		ID:    "user-2",
		Email: "shelter@example.com",
		Name:  "Happy Paws",
		Role:  domain.RoleShelter,
	}
}
