package marketplace

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"shelterlink/internal/domain"
	"shelterlink/internal/schedule"
	"shelterlink/internal/transport"
)

// ApplicationService submits and manages slot applications.
type ApplicationService struct {
	api *transport.Client
}

func NewApplicationService(api *transport.Client) *ApplicationService {
	return &ApplicationService{api: api}
}

type applyRequest struct {
	Slot domain.TimeSlot `json:"slot"`
}

type attendanceRequest struct {
	Attended bool `json:"attended"`
}

// Apply validates the slot client-side, then submits it against the
// posting. The slot must be well formed, inside the recruiting window, and
// free of conflicts with the volunteer's live applications.
func (s *ApplicationService) Apply(ctx context.Context, rec *domain.Recruitment, slot domain.TimeSlot) (*domain.Application, error) {
	if rec.Status != domain.RecruitmentOpen {
		return nil, domain.ErrRecruitmentClosed
	}
	if !schedule.ValidSlot(slot) {
		return nil, fmt.Errorf("%w: malformed slot", domain.ErrSlotUnavailable)
	}
	if !schedule.Within(slot, rec.StartDate, rec.EndDate) {
		return nil, fmt.Errorf("%w: outside recruiting window %s..%s",
			domain.ErrSlotUnavailable, rec.StartDate, rec.EndDate)
	}

	mine, err := s.Mine(ctx, 0)
	if err != nil {
		return nil, err
	}
	if schedule.ConflictsWith(slot, mine.Items) {
		return nil, fmt.Errorf("%w: conflicts with an existing application", domain.ErrSlotUnavailable)
	}

	var app domain.Application
	if err := s.api.Post(ctx, "/recruitments/"+rec.ID+"/apply", applyRequest{Slot: slot}, &app); err != nil {
		return nil, fmt.Errorf("failed to apply: %w", err)
	}
	return &app, nil
}

// Mine lists the caller's own applications.
func (s *ApplicationService) Mine(ctx context.Context, pageNum int) (*Page[domain.Application], error) {
	v := url.Values{}
	if pageNum > 0 {
		v.Set("page", strconv.Itoa(pageNum))
	}
	var page Page[domain.Application]
	if err := s.api.Get(ctx, "/applications/mine"+transport.BuildQuery(v), &page); err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return &page, nil
}

// Cancel withdraws an application.
func (s *ApplicationService) Cancel(ctx context.Context, applicationID string) error {
	if err := s.api.Post(ctx, "/applications/"+applicationID+"/cancel", nil, nil); err != nil {
		return fmt.Errorf("failed to cancel application: %w", err)
	}
	return nil
}

// Approve accepts a pending application. Shelter accounts only.
func (s *ApplicationService) Approve(ctx context.Context, applicationID string) error {
	if err := s.api.Post(ctx, "/applications/"+applicationID+"/approve", nil, nil); err != nil {
		return fmt.Errorf("failed to approve application: %w", err)
	}
	return nil
}

// Reject declines a pending application. Shelter accounts only.
func (s *ApplicationService) Reject(ctx context.Context, applicationID string) error {
	if err := s.api.Post(ctx, "/applications/"+applicationID+"/reject", nil, nil); err != nil {
		return fmt.Errorf("failed to reject application: %w", err)
	}
	return nil
}

// MarkAttendance records whether the volunteer showed up.
func (s *ApplicationService) MarkAttendance(ctx context.Context, applicationID string, attended bool) error {
	if err := s.api.Post(ctx, "/applications/"+applicationID+"/attendance", attendanceRequest{Attended: attended}, nil); err != nil {
		return fmt.Errorf("failed to mark attendance: %w", err)
	}
	return nil
}
