package marketplace

import (
	"context"
	"testing"

	"shelterlink/internal/credstore"
	"shelterlink/internal/domain"
	"shelterlink/internal/session"
	"shelterlink/internal/testutil"
	"shelterlink/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore satisfies credstore.Store for wiring the session manager.
type memStore struct {
	snap *credstore.Snapshot
}

func (s *memStore) Load() (*credstore.Snapshot, error) { return s.snap, nil }
func (s *memStore) Save(snap *credstore.Snapshot) error {
	s.snap = snap
	return nil
}
func (s *memStore) Clear() error {
	s.snap = nil
	return nil
}

func loggedInClient(t *testing.T, backend *testutil.FakeBackend) *transport.Client {
	t.Helper()
	api := transport.New(backend.URL())
	mgr := session.NewManager(api, &memStore{})
	_, err := mgr.Login(context.Background(), backend.Email, backend.Password)
	require.NoError(t, err)
	return api
}

func TestSearchParams_Query(t *testing.T) {
	tests := []struct {
		name   string
		params SearchParams
		want   string
	}{
		{"empty", SearchParams{}, ""},
		{"keyword only", SearchParams{Keyword: "dog"}, "?keyword=dog"},
		{
			"full",
			SearchParams{Keyword: "dog walk", Region: "Seoul", Species: "dog", From: "2026-09-01", To: "2026-09-30", Page: 2, Size: 10},
			"?from=2026-09-01&keyword=dog+walk&page=2&region=Seoul&size=10&species=dog&to=2026-09-30",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.params.query())
		})
	}
}

func TestRecruitmentService_List(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	svc := NewRecruitmentService(transport.New(backend.URL()))

	t.Run("anonymous browsing allowed", func(t *testing.T) {
		page, err := svc.List(context.Background(), SearchParams{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, "rec-1", page.Items[0].ID)
	})

	t.Run("keyword filter", func(t *testing.T) {
		page, err := svc.List(context.Background(), SearchParams{Keyword: "dog walking"})
		require.NoError(t, err)
		assert.Len(t, page.Items, 1)

		page, err = svc.List(context.Background(), SearchParams{Keyword: "cats only"})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})

	t.Run("region filter", func(t *testing.T) {
		page, err := svc.List(context.Background(), SearchParams{Region: "Busan"})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})
}

func TestRecruitmentService_Get(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	svc := NewRecruitmentService(transport.New(backend.URL()))

	rec, err := svc.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "Weekend dog walking", rec.Title)
	assert.Equal(t, domain.RecruitmentOpen, rec.Status)

	_, err = svc.Get(context.Background(), "rec-404")
	apiErr, ok := domain.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestRecruitmentService_Create(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	api := loggedInClient(t, backend)
	svc := NewRecruitmentService(api)

	rec, err := svc.Create(context.Background(), RecruitmentDraft{
		Title:     "Cat socialization",
		Region:    "Busan",
		StartDate: "2026-10-01",
		EndDate:   "2026-10-31",
		Capacity:  4,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, domain.RecruitmentOpen, rec.Status)

	got, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cat socialization", got.Title)
}

func TestApplicationService_ApplyLifecycle(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	api := loggedInClient(t, backend)
	recs := NewRecruitmentService(api)
	apps := NewApplicationService(api)

	rec, err := recs.Get(context.Background(), "rec-1")
	require.NoError(t, err)

	slot := domain.TimeSlot{Date: "2026-09-05", Start: "10:00", End: "12:00"}
	app, err := apps.Apply(context.Background(), rec, slot)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationPending, app.Status)
	assert.Equal(t, "rec-1", app.RecruitmentID)

	mine, err := apps.Mine(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, app.ID, mine.Items[0].ID)

	// A second overlapping application is rejected client-side.
	_, err = apps.Apply(context.Background(), rec, domain.TimeSlot{Date: "2026-09-05", Start: "11:00", End: "13:00"})
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)

	// Approval and attendance are shelter-side operations.
	require.NoError(t, apps.Approve(context.Background(), app.ID))
	require.NoError(t, apps.MarkAttendance(context.Background(), app.ID, true))

	applicants, err := recs.Applicants(context.Background(), "rec-1", 1)
	require.NoError(t, err)
	require.Len(t, applicants.Items, 1)
	assert.Equal(t, domain.ApplicationApproved, applicants.Items[0].Status)
	require.NotNil(t, applicants.Items[0].Attended)
	assert.True(t, *applicants.Items[0].Attended)
}

func TestApplicationService_ApplyValidation(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	api := loggedInClient(t, backend)
	apps := NewApplicationService(api)

	open := testutil.SampleRecruitment()

	t.Run("closed recruitment", func(t *testing.T) {
		closed := open
		closed.Status = domain.RecruitmentClosed
		_, err := apps.Apply(context.Background(), &closed, domain.TimeSlot{Date: "2026-09-05", Start: "10:00", End: "12:00"})
		assert.ErrorIs(t, err, domain.ErrRecruitmentClosed)
	})

	t.Run("malformed slot", func(t *testing.T) {
		_, err := apps.Apply(context.Background(), &open, domain.TimeSlot{Date: "2026-09-05", Start: "12:00", End: "10:00"})
		assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
	})

	t.Run("outside window", func(t *testing.T) {
		_, err := apps.Apply(context.Background(), &open, domain.TimeSlot{Date: "2026-10-02", Start: "10:00", End: "12:00"})
		assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
	})
}

func TestApplicationService_Cancel(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	api := loggedInClient(t, backend)
	apps := NewApplicationService(api)

	rec := testutil.SampleRecruitment()
	app, err := apps.Apply(context.Background(), &rec, domain.TimeSlot{Date: "2026-09-05", Start: "10:00", End: "12:00"})
	require.NoError(t, err)

	require.NoError(t, apps.Cancel(context.Background(), app.ID))

	mine, err := apps.Mine(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, domain.ApplicationCanceled, mine.Items[0].Status)

	// The slot frees up once the application is canceled.
	_, err = apps.Apply(context.Background(), &rec, domain.TimeSlot{Date: "2026-09-05", Start: "10:00", End: "12:00"})
	require.NoError(t, err)
}
