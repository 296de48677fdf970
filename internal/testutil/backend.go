package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"shelterlink/internal/domain"

	"github.com/go-chi/chi/v5"
)

// FakeBackend is an in-process stand-in for the marketplace backend. It
// implements the identity endpoints, the recruitment/application endpoints,
// and enough token bookkeeping to exercise expiry, refresh, and revocation.
type FakeBackend struct {
	Server *httptest.Server

	mu sync.Mutex

	// Accepted credentials
	Email         string
	Password      string
	ProviderToken string
	User          domain.User

	// Currently valid tokens; rotated on login/refresh
	accessToken  string
	refreshToken string
	tokenSeq     int

	// Call counters
	LoginCalls   int
	RefreshCalls int
	LogoutCalls  int
	MeCalls      int

	// Failure injection
	FailRefresh  bool
	RefreshDelay time.Duration

	Recruitments []domain.Recruitment
	Applications []domain.Application
	appSeq       int
}

// NewFakeBackend starts a fake backend with one known account. The server
// is shut down automatically when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	b := &FakeBackend{
		Email:         "vol@example.com",
		Password:      "hunter22",
		ProviderToken: "kakao-token-xyz",
		User: domain.User{
			ID:    "user-1",
			Email: "vol@example.com",
			Name:  "Vol Unteer",
			Role:  domain.RoleVolunteer,
		},
		Recruitments: []domain.Recruitment{SampleRecruitment()},
	}

	r := chi.NewRouter()
	r.Post("/auth/login", b.handleLogin)
	r.Post("/auth/social/{provider}", b.handleSocialLogin)
	r.Post("/auth/token/refresh", b.handleRefresh)
	r.Post("/auth/logout", b.handleLogout)
	r.Get("/users/me", b.handleMe)
	r.Get("/recruitments", b.handleListRecruitments)
	r.Get("/recruitments/{id}", b.handleGetRecruitment)
	r.Post("/recruitments", b.handleCreateRecruitment)
	r.Post("/recruitments/{id}/apply", b.handleApply)
	r.Get("/recruitments/{id}/applications", b.handleApplicants)
	r.Get("/applications/mine", b.handleMine)
	r.Post("/applications/{id}/cancel", b.handleCancel)
	r.Post("/applications/{id}/approve", b.handleDecision(domain.ApplicationApproved))
	r.Post("/applications/{id}/reject", b.handleDecision(domain.ApplicationRejected))
	r.Post("/applications/{id}/attendance", b.handleAttendance)

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the backend base URL.
func (b *FakeBackend) URL() string { return b.Server.URL }

// CurrentAccessToken returns the access token the backend accepts right now.
func (b *FakeBackend) CurrentAccessToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accessToken
}

// CurrentRefreshToken returns the refresh token the backend accepts right now.
func (b *FakeBackend) CurrentRefreshToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshToken
}

// SeedTokens makes the backend accept the given pair, as if from a previous
// process's login.
func (b *FakeBackend) SeedTokens(access, refresh string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessToken = access
	b.refreshToken = refresh
}

// ExpireAccessToken invalidates the current access token so the next
// authenticated request gets a 401, while the refresh token stays valid.
func (b *FakeBackend) ExpireAccessToken() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokenSeq++
	b.accessToken = fmt.Sprintf("access-%d", b.tokenSeq)
}

// RevokeAll invalidates both tokens; refresh attempts will fail.
func (b *FakeBackend) RevokeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessToken = ""
	b.refreshToken = ""
}

// Counts returns the identity endpoint call counters.
func (b *FakeBackend) Counts() (login, refresh, logout, me int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LoginCalls, b.RefreshCalls, b.LogoutCalls, b.MeCalls
}

func (b *FakeBackend) issueTokensLocked() (string, string) {
	b.tokenSeq++
	b.accessToken = fmt.Sprintf("access-%d", b.tokenSeq)
	b.refreshToken = fmt.Sprintf("refresh-%d", b.tokenSeq)
	return b.accessToken, b.refreshToken
}

func (b *FakeBackend) authorized(r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accessToken != "" && r.Header.Get("Authorization") == "Bearer "+b.accessToken
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

func (b *FakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	b.LoginCalls++
	if req.Email != b.Email || req.Password != b.Password {
		b.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "email or password incorrect")
		return
	}
	access, refresh := b.issueTokensLocked()
	user := b.User
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  access,
		"refreshToken": refresh,
		"user":         user,
	})
}

func (b *FakeBackend) handleSocialLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessToken string `json:"accessToken"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	b.LoginCalls++
	if req.AccessToken != b.ProviderToken {
		b.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "INVALID_PROVIDER_TOKEN", "provider token rejected")
		return
	}
	access, refresh := b.issueTokensLocked()
	user := b.User
	user.Provider = chi.URLParam(r, "provider")
	user.ProviderUserID = "provider-user-9"
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  access,
		"refreshToken": refresh,
		"user":         user,
	})
}

func (b *FakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	b.RefreshCalls++
	fail := b.FailRefresh || b.refreshToken == "" || req.RefreshToken != b.refreshToken
	delay := b.RefreshDelay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if fail {
		writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "refresh token expired or revoked")
		return
	}

	b.mu.Lock()
	b.tokenSeq++
	b.accessToken = fmt.Sprintf("access-%d", b.tokenSeq)
	access := b.accessToken
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"accessToken": access})
}

func (b *FakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.LogoutCalls++
	b.accessToken = ""
	b.refreshToken = ""
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (b *FakeBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.MeCalls++
	b.mu.Unlock()

	if !b.authorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token")
		return
	}

	b.mu.Lock()
	user := b.User
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (b *FakeBackend) handleListRecruitments(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	region := r.URL.Query().Get("region")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	b.mu.Lock()
	var items []domain.Recruitment
	for _, rec := range b.Recruitments {
		if keyword != "" && !contains(rec.Title, keyword) && !contains(rec.Description, keyword) {
			continue
		}
		if region != "" && rec.Region != region {
			continue
		}
		items = append(items, rec)
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"page":  page,
		"size":  20,
		"total": len(items),
	})
}

func (b *FakeBackend) handleGetRecruitment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range b.Recruitments {
		if rec.ID == id {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "recruitment not found")
}

func (b *FakeBackend) handleCreateRecruitment(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token")
		return
	}
	var rec domain.Recruitment
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed recruitment")
		return
	}

	b.mu.Lock()
	rec.ID = fmt.Sprintf("rec-%d", len(b.Recruitments)+1)
	rec.Status = domain.RecruitmentOpen
	rec.CreatedAt = time.Now()
	b.Recruitments = append(b.Recruitments, rec)
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, rec)
}

func (b *FakeBackend) handleApply(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token")
		return
	}
	var req struct {
		Slot domain.TimeSlot `json:"slot"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed application")
		return
	}

	b.mu.Lock()
	b.appSeq++
	app := domain.Application{
		ID:            fmt.Sprintf("app-%d", b.appSeq),
		RecruitmentID: chi.URLParam(r, "id"),
		VolunteerID:   b.User.ID,
		Slot:          req.Slot,
		Status:        domain.ApplicationPending,
		CreatedAt:     time.Now(),
	}
	b.Applications = append(b.Applications, app)
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, app)
}

func (b *FakeBackend) handleApplicants(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token")
		return
	}
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	var items []domain.Application
	for _, app := range b.Applications {
		if app.RecruitmentID == id {
			items = append(items, app)
		}
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items, "page": 1, "size": 20, "total": len(items),
	})
}

func (b *FakeBackend) handleMine(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token")
		return
	}

	b.mu.Lock()
	var items []domain.Application
	for _, app := range b.Applications {
		if app.VolunteerID == b.User.ID {
			items = append(items, app)
		}
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items, "page": 1, "size": 20, "total": len(items),
	})
}

func (b *FakeBackend) handleCancel(w http.ResponseWriter, r *http.Request) {
	b.updateApplication(w, r, func(app *domain.Application) {
		app.Status = domain.ApplicationCanceled
	})
}

func (b *FakeBackend) handleDecision(status domain.ApplicationStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.updateApplication(w, r, func(app *domain.Application) {
			app.Status = status
		})
	}
}

func (b *FakeBackend) handleAttendance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attended bool `json:"attended"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	b.updateApplication(w, r, func(app *domain.Application) {
		attended := req.Attended
		app.Attended = &attended
	})
}

func (b *FakeBackend) updateApplication(w http.ResponseWriter, r *http.Request, mutate func(*domain.Application)) {
	if !b.authorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token")
		return
	}
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Applications {
		if b.Applications[i].ID == id {
			mutate(&b.Applications[i])
			writeJSON(w, http.StatusOK, b.Applications[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "application not found")
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
