// Package marketplace wraps the recruitment and application endpoints in
// typed client services. All calls go through the shared transport, which
// attaches the session credential.
package marketplace

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"shelterlink/internal/domain"
	"shelterlink/internal/transport"
)

// Page is the backend's pagination envelope.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// SearchParams filter and paginate the recruitment listing.
type SearchParams struct {
	Keyword string
	Region  string
	Species string
	From    string // 2006-01-02
	To      string
	Page    int
	Size    int
}

func (p SearchParams) query() string {
	v := url.Values{}
	if p.Keyword != "" {
		v.Set("keyword", p.Keyword)
	}
	if p.Region != "" {
		v.Set("region", p.Region)
	}
	if p.Species != "" {
		v.Set("species", p.Species)
	}
	if p.From != "" {
		v.Set("from", p.From)
	}
	if p.To != "" {
		v.Set("to", p.To)
	}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Size > 0 {
		v.Set("size", strconv.Itoa(p.Size))
	}
	return transport.BuildQuery(v)
}

// RecruitmentDraft is the shelter-side payload for creating a posting.
type RecruitmentDraft struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Region      string            `json:"region"`
	Species     []string          `json:"species,omitempty"`
	StartDate   string            `json:"startDate"`
	EndDate     string            `json:"endDate"`
	Slots       []domain.TimeSlot `json:"slots,omitempty"`
	Capacity    int               `json:"capacity"`
	ImageURLs   []string          `json:"imageUrls,omitempty"`
}

// RecruitmentService reads and writes volunteer postings.
type RecruitmentService struct {
	api *transport.Client
}

func NewRecruitmentService(api *transport.Client) *RecruitmentService {
	return &RecruitmentService{api: api}
}

// List searches postings. Anonymous browsing is allowed; the credential is
// attached when present.
func (s *RecruitmentService) List(ctx context.Context, params SearchParams) (*Page[domain.Recruitment], error) {
	var page Page[domain.Recruitment]
	if err := s.api.Get(ctx, "/recruitments"+params.query(), &page); err != nil {
		return nil, fmt.Errorf("failed to list recruitments: %w", err)
	}
	return &page, nil
}

// Get fetches one posting by id.
func (s *RecruitmentService) Get(ctx context.Context, id string) (*domain.Recruitment, error) {
	var rec domain.Recruitment
	if err := s.api.Get(ctx, "/recruitments/"+id, &rec); err != nil {
		return nil, fmt.Errorf("failed to get recruitment %s: %w", id, err)
	}
	return &rec, nil
}

// Create posts a new recruitment. Shelter accounts only; the backend
// enforces the role.
func (s *RecruitmentService) Create(ctx context.Context, draft RecruitmentDraft) (*domain.Recruitment, error) {
	var rec domain.Recruitment
	if err := s.api.Post(ctx, "/recruitments", draft, &rec); err != nil {
		return nil, fmt.Errorf("failed to create recruitment: %w", err)
	}
	return &rec, nil
}

// Applicants lists the applications on one posting.
func (s *RecruitmentService) Applicants(ctx context.Context, recruitmentID string, pageNum int) (*Page[domain.Application], error) {
	v := url.Values{}
	if pageNum > 0 {
		v.Set("page", strconv.Itoa(pageNum))
	}
	var page Page[domain.Application]
	if err := s.api.Get(ctx, "/recruitments/"+recruitmentID+"/applications"+transport.BuildQuery(v), &page); err != nil {
		return nil, fmt.Errorf("failed to list applicants: %w", err)
	}
	return &page, nil
}
