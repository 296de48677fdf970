// Package provider runs the third-party half of social login: building the
// authorization URL and collecting the provider's code on a loopback
// redirect. The session manager only sees the finished token; the handshake
// here is a separate, composable step.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shelterlink/internal/domain"
	"shelterlink/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultKakaoAuthURL = "https://kauth.kakao.com/oauth/authorize"
	defaultTimeout      = 2 * time.Minute
	callbackPath        = "/callback"
)

// Config describes one social provider.
type Config struct {
	Name     string
	ClientID string
	AuthURL  string
	Scopes   []string

	// ListenAddr is the loopback address the redirect listener binds to.
	ListenAddr string

	// Timeout bounds the whole handshake; an abandoned flow fails instead
	// of waiting forever.
	Timeout time.Duration
}

// Provider drives the authorize-and-callback handshake.
type Provider struct {
	cfg Config
}

// New creates a provider from config, filling in defaults.
func New(cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("provider name required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("provider client id required")
	}
	if cfg.AuthURL == "" {
		return nil, fmt.Errorf("provider auth url required")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8910"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Provider{cfg: cfg}, nil
}

// NewKakao creates the Kakao provider with its standard authorize endpoint.
func NewKakao(clientID, listenAddr string) (*Provider, error) {
	return New(Config{
		Name:       "kakao",
		ClientID:   clientID,
		AuthURL:    defaultKakaoAuthURL,
		ListenAddr: listenAddr,
	})
}

// Name returns the provider identifier used in the backend exchange path.
func (p *Provider) Name() string { return p.cfg.Name }

// redirectURI is where the provider sends the user back to.
func (p *Provider) redirectURI() string {
	return "http://" + p.cfg.ListenAddr + callbackPath
}

// AuthorizeURL builds the URL the user opens to grant access. state must be
// echoed back on the callback.
func (p *Provider) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":     {p.cfg.ClientID},
		"redirect_uri":  {p.redirectURI()},
		"response_type": {"code"},
		"state":         {state},
	}
	if len(p.cfg.Scopes) > 0 {
		params.Set("scope", strings.Join(p.cfg.Scopes, " "))
	}
	return p.cfg.AuthURL + "?" + params.Encode()
}

type callbackResult struct {
	code string
	err  error
}

// Handshake starts the loopback listener, reports the URL to open through
// promptURL, and waits for the provider to redirect back with a code. It
// resolves exactly once: with the code, with domain.ErrProviderFailure on a
// provider error or timeout, or with ctx's error.
func (p *Provider) Handshake(ctx context.Context, promptURL func(authorizeURL string)) (string, error) {
	state := uuid.New().String()

	results := make(chan callbackResult, 1)

	r := chi.NewRouter()
	r.Get(callbackPath, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		switch {
		case q.Get("state") != state:
			// Stale or forged callback; keep waiting for the real one.
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			select {
			case results <- callbackResult{err: fmt.Errorf("%w: %s: %s",
				domain.ErrProviderFailure, q.Get("error"), q.Get("error_description"))}:
			default:
			}
			http.Error(w, "login failed, you can close this window", http.StatusBadRequest)
		case q.Get("code") == "":
			select {
			case results <- callbackResult{err: fmt.Errorf("%w: callback without code", domain.ErrProviderFailure)}:
			default:
			}
			http.Error(w, "missing code", http.StatusBadRequest)
		default:
			select {
			case results <- callbackResult{code: q.Get("code")}:
			default:
			}
			fmt.Fprintln(w, "Signed in, you can close this window.")
		}
	})

	srv := &http.Server{Addr: p.cfg.ListenAddr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%w: callback listener: %v", domain.ErrProviderFailure, err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if promptURL != nil {
		promptURL(p.AuthorizeURL(state))
	}

	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.err != nil {
			observability.FromContext(ctx).Warn("social handshake failed",
				"provider", p.cfg.Name,
				"error", res.err.Error())
			return "", res.err
		}
		return res.code, nil
	case err := <-errCh:
		return "", err
	case <-timer.C:
		return "", fmt.Errorf("%w: handshake timed out after %s", domain.ErrProviderFailure, p.cfg.Timeout)
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", domain.ErrProviderFailure, ctx.Err())
	}
}
