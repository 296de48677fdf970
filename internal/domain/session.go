package domain

// SessionState is the lifecycle state of the single process-wide session.
type SessionState int

const (
	StateAnonymous SessionState = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	}
	return "unknown"
}

// TokenPair is the credential pair issued by the identity service: a
// short-lived bearer access token and the refresh token used solely to mint
// new access tokens.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session is a point-in-time snapshot of the session manager's state, used
// for inspection and logging. It is a copy; mutating it has no effect on the
// live session.
type Session struct {
	State  SessionState
	Tokens TokenPair
	User   *User
}

// IsAuthenticated reports whether the snapshot represents a usable session.
// It is true only when both an access token and an identity are present.
func (s Session) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.Tokens.AccessToken != "" && s.User != nil
}
