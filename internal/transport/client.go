// Package transport provides the shared HTTP client every backend call goes
// through. The session manager installs itself as the CredentialSource; the
// client then attaches the bearer token to outgoing requests and drives a
// single refresh-and-replay on 401 responses.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"shelterlink/internal/domain"
	"shelterlink/internal/observability"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerRequestID     = "X-Request-ID"
	headerUserAgent     = "User-Agent"
	contentTypeJSON     = "application/json"
	defaultUserAgent    = "shelterlink-go/1.0.0"
)

// CredentialSource supplies the bearer credential and handles 401 responses.
// The session manager implements it.
type CredentialSource interface {
	// AccessToken returns the current access token, or "" when anonymous.
	AccessToken() string
	// HandleUnauthorized is invoked after an unauthorized response. It must
	// return a fresh access token to replay the request with, or an error
	// when the session cannot be recovered. Concurrent callers are expected
	// to share one underlying refresh.
	HandleUnauthorized(ctx context.Context) (string, error)
}

// Client is a pre-configured JSON API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string

	mu    sync.RWMutex
	creds CredentialSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout on the underlying client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit paces outgoing requests.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst) }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCredentialSource installs the attach/unauthorized hooks. Passing nil
// detaches them.
func (c *Client) SetCredentialSource(src CredentialSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = src
}

func (c *Client) credentialSource() CredentialSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

type requestOptions struct {
	noAuth bool
}

// RequestOption tweaks a single request.
type RequestOption func(*requestOptions)

// WithoutAuth sends the request unauthenticated and exempts it from the 401
// refresh hook. Identity endpoints (login, refresh, logout) use this so a
// failing refresh cannot recurse.
func WithoutAuth() RequestOption {
	return func(o *requestOptions) { o.noAuth = true }
}

// Get performs a GET request, decoding the response into result.
func (c *Client) Get(ctx context.Context, path string, result any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodGet, path, nil, result, opts...)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, result any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPost, path, body, result, opts...)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, result any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPatch, path, body, result, opts...)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, opts...)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, opts ...RequestOption) error {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var token string
	src := c.credentialSource()
	if !ro.noAuth && src != nil {
		token = src.AccessToken()
	}

	status, respBody, err := c.roundTrip(ctx, method, path, bodyBytes, token)
	if err != nil {
		return err
	}

	// One refresh-and-replay per logical request; a second 401 surfaces.
	// An anonymous request had nothing to refresh, so its 401 stands.
	if status == http.StatusUnauthorized && !ro.noAuth && src != nil && token != "" {
		newToken, rerr := src.HandleUnauthorized(ctx)
		if rerr != nil {
			return rerr
		}
		observability.APIRetriesTotal.Inc()
		status, respBody, err = c.roundTrip(ctx, method, path, bodyBytes, newToken)
		if err != nil {
			return err
		}
	}

	if status >= 400 {
		return parseError(status, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, token string) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set(headerUserAgent, c.userAgent)
	if body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}
	if token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.APIRequestsTotal.WithLabelValues(method, metricPath(path), "error").Inc()
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading response: %v", domain.ErrNetworkUnavailable, err)
	}

	statusLabel := strconv.Itoa(resp.StatusCode)
	observability.APIRequestsTotal.WithLabelValues(method, metricPath(path), statusLabel).Inc()
	observability.APIRequestDuration.WithLabelValues(method, metricPath(path), statusLabel).
		Observe(time.Since(start).Seconds())

	observability.FromContext(observability.WithRequestID(ctx, requestID)).Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode)

	return resp.StatusCode, respBody, nil
}

// metricPath keeps label cardinality bounded by truncating to the first
// path segment.
func metricPath(path string) string {
	if q := strings.IndexByte(path, '?'); q >= 0 {
		path = path[:q]
	}
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return "/" + trimmed
}

// parseError decodes an error payload from the backend.
func parseError(statusCode int, body []byte) error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	apiErr := &domain.APIError{StatusCode: statusCode}

	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
	}
	return apiErr
}

// BuildQuery encodes non-empty values into a query suffix, or "" when empty.
func BuildQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}
