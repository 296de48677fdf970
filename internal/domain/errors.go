package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Expected failure modes of session and marketplace operations. Callers are
// meant to branch on these with errors.Is; anything else is an unexpected
// condition surfaced as a wrapped generic error.
var (
	// ErrInvalidCredentials is returned when the identity service rejects a
	// login or social-login exchange.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNetworkUnavailable is returned when a request got no response at
	// all. The session is left untouched and the call may be retried.
	ErrNetworkUnavailable = errors.New("service unreachable")

	// ErrTokenExpired is returned when the refresh token is rejected. The
	// local session has already been cleared when callers see this.
	ErrTokenExpired = errors.New("session expired")

	// ErrProviderFailure is returned when the third-party handshake fails
	// (flow abandoned, provider error, timeout) before any token exchange.
	ErrProviderFailure = errors.New("social provider failure")

	// ErrPersistenceCorrupt is returned when the stored session blob fails
	// shape validation on restore.
	ErrPersistenceCorrupt = errors.New("persisted session corrupt")

	// ErrNotAuthenticated is returned when an operation needs a session and
	// there is none, or the session was logged out while it ran.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// APIError is a decoded error response from the backend.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Is maps backend rejections onto the sentinel taxonomy so callers can use
// errors.Is without inspecting status codes.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrInvalidCredentials:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusBadRequest
	case ErrNotAuthenticated:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsUnauthorized reports whether the response carried a 401 status.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// AsAPIError unwraps err into an *APIError if one is in its chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
