// Package session owns the client's credential pair, cached identity, and
// authenticated/unauthenticated lifecycle. A single Manager instance is
// constructed at startup and injected into whatever needs it; it installs
// itself into the shared transport as the credential source.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shelterlink/internal/credstore"
	"shelterlink/internal/domain"
	"shelterlink/internal/observability"
	"shelterlink/internal/transport"

	"golang.org/x/sync/singleflight"
)

const defaultVerifyTimeout = 10 * time.Second

// Manager is the process-wide session state machine.
//
// States: Anonymous, Authenticating, Authenticated, Refreshing. The
// authenticated flag only flips after tokens and identity have been
// persisted together, so storage can never lag a session memory claims
// to have.
type Manager struct {
	api   *transport.Client
	store credstore.Store

	verifyTimeout time.Duration

	mu     sync.Mutex
	state  domain.SessionState
	tokens domain.TokenPair
	user   *domain.User
	// gen is bumped by Logout; in-flight exchanges compare the generation
	// they started under before committing, so a stale result cannot
	// resurrect a cleared session.
	gen uint64

	refreshGroup singleflight.Group
	bg           sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithVerifyTimeout bounds the background identity check after Restore.
func WithVerifyTimeout(d time.Duration) Option {
	return func(m *Manager) { m.verifyTimeout = d }
}

// NewManager creates the session manager and installs its transport hooks.
func NewManager(api *transport.Client, store credstore.Store, opts ...Option) *Manager {
	m := &Manager{
		api:           api,
		store:         store,
		state:         domain.StateAnonymous,
		verifyTimeout: defaultVerifyTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	api.SetCredentialSource(m)
	return m
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type socialLoginRequest struct {
	AccessToken string `json:"accessToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *domain.User `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login exchanges an email/password pair for a session. On failure the
// session stays Anonymous; errors.Is distinguishes ErrInvalidCredentials
// from ErrNetworkUnavailable.
func (m *Manager) Login(ctx context.Context, email, password string) (*domain.User, error) {
	return m.exchange(ctx, "password", "/auth/login", loginRequest{Email: email, Password: password})
}

// SocialLogin exchanges a third-party provider token for a session. The
// provider handshake that produced the token is a separate step; this is
// only the exchange.
func (m *Manager) SocialLogin(ctx context.Context, provider, providerToken string) (*domain.User, error) {
	return m.exchange(ctx, provider, "/auth/social/"+provider, socialLoginRequest{AccessToken: providerToken})
}

func (m *Manager) exchange(ctx context.Context, method, path string, body any) (*domain.User, error) {
	ctx = observability.WithOperation(ctx, "login")

	m.mu.Lock()
	gen := m.gen
	m.setStateLocked(domain.StateAuthenticating)
	m.mu.Unlock()

	var resp authResponse
	err := m.api.Post(ctx, path, body, &resp, transport.WithoutAuth())
	if err != nil {
		m.mu.Lock()
		if m.gen == gen && m.state == domain.StateAuthenticating {
			m.setStateLocked(domain.StateAnonymous)
		}
		m.mu.Unlock()
		observability.SessionLogins.WithLabelValues(method, "failure").Inc()
		return nil, err
	}

	if resp.AccessToken == "" || resp.User == nil {
		m.mu.Lock()
		if m.gen == gen {
			m.clearLocked()
		}
		m.mu.Unlock()
		observability.SessionLogins.WithLabelValues(method, "failure").Inc()
		return nil, fmt.Errorf("identity service returned incomplete credentials")
	}

	user, err := m.commit(gen, resp.AccessToken, resp.RefreshToken, resp.User)
	if err != nil {
		observability.SessionLogins.WithLabelValues(method, "failure").Inc()
		return nil, err
	}

	observability.SessionLogins.WithLabelValues(method, "success").Inc()
	observability.FromContext(ctx).Info("logged in",
		"user_id", user.ID,
		"role", string(user.Role))
	return user, nil
}

// commit persists the credential set and only then flips the in-memory
// state. A persistence failure leaves the session Anonymous.
func (m *Manager) commit(gen uint64, access, refresh string, user *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		// Logged out while the exchange was in flight; discard the result.
		return nil, domain.ErrNotAuthenticated
	}

	snap := &credstore.Snapshot{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
		UserType:     user.Role,
	}
	if err := m.store.Save(snap); err != nil {
		m.clearLocked()
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	m.tokens = domain.TokenPair{AccessToken: access, RefreshToken: refresh}
	u := *user
	m.user = &u
	m.setStateLocked(domain.StateAuthenticated)

	out := *user
	return &out, nil
}

// Logout invalidates the refresh token remotely on a best-effort basis and
// unconditionally clears local state. It never reports an error: from the
// caller's point of view logout always succeeds.
func (m *Manager) Logout(ctx context.Context) {
	ctx = observability.WithOperation(ctx, "logout")

	m.mu.Lock()
	refresh := m.tokens.RefreshToken
	m.gen++
	m.clearLocked()
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		observability.FromContext(ctx).Warn("failed to clear stored credentials", "error", err)
	}
	observability.SessionLogouts.Inc()

	if refresh == "" {
		return
	}
	if err := m.api.Post(ctx, "/auth/logout", logoutRequest{RefreshToken: refresh}, nil, transport.WithoutAuth()); err != nil {
		observability.FromContext(ctx).Warn("remote logout failed", "error", err)
	}
}

// Refresh mints a new access token from the stored refresh token.
// Concurrent callers share one in-flight refresh and observe the same
// outcome. Any failure clears the session and its persisted credentials.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	v, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context) (string, error) {
	ctx = observability.WithOperation(ctx, "refresh")

	m.mu.Lock()
	gen := m.gen
	refresh := m.tokens.RefreshToken
	if refresh == "" {
		m.clearLocked()
		m.mu.Unlock()
		if err := m.store.Clear(); err != nil {
			observability.FromContext(ctx).Warn("failed to clear stored credentials", "error", err)
		}
		observability.SessionRefreshes.WithLabelValues("failure").Inc()
		return "", domain.ErrTokenExpired
	}
	m.setStateLocked(domain.StateRefreshing)
	m.mu.Unlock()

	var resp refreshResponse
	err := m.api.Post(ctx, "/auth/token/refresh", refreshRequest{RefreshToken: refresh}, &resp, transport.WithoutAuth())

	m.mu.Lock()
	if m.gen != gen {
		// Logout won while the refresh was in flight; its result, success
		// or not, no longer matters.
		m.mu.Unlock()
		observability.SessionRefreshes.WithLabelValues("stale").Inc()
		return "", domain.ErrNotAuthenticated
	}

	if err != nil || resp.AccessToken == "" {
		m.clearLocked()
		m.mu.Unlock()
		if cerr := m.store.Clear(); cerr != nil {
			observability.FromContext(ctx).Warn("failed to clear stored credentials", "error", cerr)
		}
		observability.SessionRefreshes.WithLabelValues("failure").Inc()
		if err == nil {
			return "", fmt.Errorf("%w: empty access token in refresh response", domain.ErrTokenExpired)
		}
		if errors.Is(err, domain.ErrNetworkUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
	}

	m.tokens.AccessToken = resp.AccessToken
	snap := m.snapshotLocked()
	m.setStateLocked(domain.StateAuthenticated)
	m.mu.Unlock()

	// The in-memory token is authoritative; a failed persistence write is
	// logged and retried implicitly on the next successful commit.
	if snap != nil {
		if err := m.store.Save(snap); err != nil {
			observability.FromContext(ctx).Warn("failed to persist refreshed token", "error", err)
		}
	}

	observability.SessionRefreshes.WithLabelValues("success").Inc()
	return resp.AccessToken, nil
}

// Restore reads the persisted session once at process start. A shape-valid
// snapshot authenticates optimistically and kicks off a background identity
// check that demotes to Anonymous on 401. A corrupt blob is discarded and
// reported as domain.ErrPersistenceCorrupt, never a crash.
func (m *Manager) Restore(ctx context.Context) error {
	ctx = observability.WithOperation(ctx, "restore")

	snap, err := m.store.Load()
	if err != nil {
		if errors.Is(err, domain.ErrPersistenceCorrupt) {
			observability.FromContext(ctx).Warn("discarding corrupt stored session", "error", err)
			if cerr := m.store.Clear(); cerr != nil {
				observability.FromContext(ctx).Warn("failed to clear stored credentials", "error", cerr)
			}
			return err
		}
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if snap == nil {
		return nil
	}

	m.mu.Lock()
	if m.state != domain.StateAnonymous {
		m.mu.Unlock()
		return nil
	}
	gen := m.gen
	m.tokens = domain.TokenPair{AccessToken: snap.AccessToken, RefreshToken: snap.RefreshToken}
	u := *snap.User
	m.user = &u
	m.setStateLocked(domain.StateAuthenticated)
	m.mu.Unlock()

	observability.FromContext(ctx).Info("session restored", "user_id", snap.User.ID)

	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		verifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.verifyTimeout)
		defer cancel()
		m.verifyIdentity(verifyCtx, gen)
	}()

	return nil
}

// Wait blocks until background work (the restore verification) finishes.
func (m *Manager) Wait() {
	m.bg.Wait()
}

func (m *Manager) verifyIdentity(ctx context.Context, gen uint64) {
	user, err := m.fetchIdentity(ctx)
	if err != nil {
		if isAuthRejection(err) {
			observability.FromContext(ctx).Warn("restored session rejected by identity service")
			m.mu.Lock()
			if m.gen == gen {
				m.clearLocked()
			}
			m.mu.Unlock()
			if cerr := m.store.Clear(); cerr != nil {
				observability.FromContext(ctx).Warn("failed to clear stored credentials", "error", cerr)
			}
			return
		}
		// Network trouble keeps the optimistic session; the next 401 will
		// sort it out.
		observability.FromContext(ctx).Debug("identity verification inconclusive", "error", err)
		return
	}

	m.commitIdentity(ctx, gen, user)
}

// RefreshIdentity fetches the current user from the identity service and
// replaces the cached identity wholesale.
func (m *Manager) RefreshIdentity(ctx context.Context) (*domain.User, error) {
	m.mu.Lock()
	gen := m.gen
	authed := m.state == domain.StateAuthenticated || m.state == domain.StateRefreshing
	m.mu.Unlock()
	if !authed {
		return nil, domain.ErrNotAuthenticated
	}

	user, err := m.fetchIdentity(ctx)
	if err != nil {
		return nil, err
	}
	m.commitIdentity(ctx, gen, user)
	return user, nil
}

func (m *Manager) fetchIdentity(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := m.api.Get(ctx, "/users/me", &user); err != nil {
		return nil, err
	}
	user.Role = domain.ParseRole(string(user.Role))
	return &user, nil
}

func (m *Manager) commitIdentity(ctx context.Context, gen uint64, user *domain.User) {
	m.mu.Lock()
	if m.gen != gen || m.state != domain.StateAuthenticated {
		m.mu.Unlock()
		return
	}
	u := *user
	m.user = &u
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if snap != nil {
		if err := m.store.Save(snap); err != nil {
			observability.FromContext(ctx).Warn("failed to persist identity", "error", err)
		}
	}
}

// UpdateIdentity merges a profile edit into the cached and persisted
// identity. Tokens are untouched.
func (m *Manager) UpdateIdentity(patch domain.UserPatch) error {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return domain.ErrNotAuthenticated
	}
	updated := patch.Apply(*m.user)
	m.user = &updated
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if snap != nil {
		if err := m.store.Save(snap); err != nil {
			observability.Warn("failed to persist identity update", "error", err)
		}
	}
	return nil
}

// CurrentUser returns a copy of the cached identity, or nil when anonymous.
// No network involved.
func (m *Manager) CurrentUser() *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// IsAuthenticated reports whether a usable session is present.
func (m *Manager) IsAuthenticated() bool {
	return m.Snapshot().IsAuthenticated()
}

// State returns the current lifecycle state.
func (m *Manager) State() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a copy of the session for inspection.
func (m *Manager) Snapshot() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := domain.Session{
		State:  m.state,
		Tokens: m.tokens,
	}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}

// AccessToken implements transport.CredentialSource.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens.AccessToken
}

// HandleUnauthorized implements transport.CredentialSource by driving the
// Refreshing transition.
func (m *Manager) HandleUnauthorized(ctx context.Context) (string, error) {
	return m.Refresh(ctx)
}

// snapshotLocked builds a persistence snapshot of the current session, or
// nil when the session is incomplete. Callers hold m.mu.
func (m *Manager) snapshotLocked() *credstore.Snapshot {
	if m.tokens.AccessToken == "" || m.tokens.RefreshToken == "" || m.user == nil {
		return nil
	}
	u := *m.user
	return &credstore.Snapshot{
		AccessToken:  m.tokens.AccessToken,
		RefreshToken: m.tokens.RefreshToken,
		User:         &u,
		UserType:     u.Role,
	}
}

func (m *Manager) setStateLocked(s domain.SessionState) {
	m.state = s
	observability.SessionState.Set(float64(s))
}

func (m *Manager) clearLocked() {
	m.tokens = domain.TokenPair{}
	m.user = nil
	m.setStateLocked(domain.StateAnonymous)
}

// isAuthRejection reports whether err means the backend no longer accepts
// this session, as opposed to a transient transport failure.
func isAuthRejection(err error) bool {
	if errors.Is(err, domain.ErrTokenExpired) || errors.Is(err, domain.ErrNotAuthenticated) {
		return true
	}
	if apiErr, ok := domain.AsAPIError(err); ok {
		return apiErr.IsUnauthorized()
	}
	return false
}
