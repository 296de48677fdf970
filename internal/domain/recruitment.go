package domain

import (
	"errors"
	"time"
)

var (
	ErrRecruitmentClosed = errors.New("recruitment closed")
	ErrSlotUnavailable   = errors.New("time slot unavailable")
)

// RecruitmentStatus is the lifecycle state of a posting.
type RecruitmentStatus string

const (
	RecruitmentOpen   RecruitmentStatus = "OPEN"
	RecruitmentClosed RecruitmentStatus = "CLOSED"
	RecruitmentEnded  RecruitmentStatus = "ENDED"
)

// TimeSlot is a single bookable shift inside a posting's recruiting window.
type TimeSlot struct {
	Date  string `json:"date"`  // 2006-01-02
	Start string `json:"start"` // 15:04
	End   string `json:"end"`   // 15:04
}

// StartTime returns the slot's opening instant in the given location.
func (s TimeSlot) StartTime(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", s.Date+" "+s.Start, loc)
}

// EndTime returns the slot's closing instant in the given location.
func (s TimeSlot) EndTime(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", s.Date+" "+s.End, loc)
}

// Recruitment is a shelter's volunteer posting.
type Recruitment struct {
	ID          string            `json:"id"`
	ShelterID   string            `json:"shelterId"`
	ShelterName string            `json:"shelterName"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Region      string            `json:"region"`
	Species     []string          `json:"species,omitempty"`
	StartDate   string            `json:"startDate"` // recruiting window, 2006-01-02
	EndDate     string            `json:"endDate"`
	Slots       []TimeSlot        `json:"slots,omitempty"`
	Capacity    int               `json:"capacity"`
	Applicants  int               `json:"applicants"`
	Status      RecruitmentStatus `json:"status"`
	ImageURLs   []string          `json:"imageUrls,omitempty"`
	CreatedAt   time.Time         `json:"createdAt,omitzero"`
}

// ApplicationStatus tracks a volunteer application through review.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationApproved ApplicationStatus = "APPROVED"
	ApplicationRejected ApplicationStatus = "REJECTED"
	ApplicationCanceled ApplicationStatus = "CANCELED"
)

// Application is a volunteer's claim on one time slot of a recruitment.
type Application struct {
	ID            string            `json:"id"`
	RecruitmentID string            `json:"recruitmentId"`
	VolunteerID   string            `json:"volunteerId"`
	VolunteerName string            `json:"volunteerName,omitempty"`
	Slot          TimeSlot          `json:"slot"`
	Status        ApplicationStatus `json:"status"`
	Attended      *bool             `json:"attended,omitempty"`
	CreatedAt     time.Time         `json:"createdAt,omitzero"`
}
