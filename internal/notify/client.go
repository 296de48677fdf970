// Package notify streams application-status events (approvals, rejections,
// attendance) over the backend's websocket endpoint so the client can react
// without polling.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shelterlink/internal/domain"
	"shelterlink/internal/observability"

	"github.com/gorilla/websocket"
)

const notificationsPath = "/ws/notifications"

// Event is one status notification.
type Event struct {
	Type          string    `json:"type"` // APPLICATION_APPROVED, APPLICATION_REJECTED, ATTENDANCE_MARKED
	ApplicationID string    `json:"applicationId"`
	RecruitmentID string    `json:"recruitmentId"`
	Message       string    `json:"message,omitempty"`
	At            time.Time `json:"at,omitzero"`
}

// TokenFunc supplies the current access token; the session manager's
// AccessToken method fits.
type TokenFunc func() string

// Client subscribes to the notification stream.
type Client struct {
	baseURL string
	token   TokenFunc
	dialer  *websocket.Dialer
}

// NewClient creates a notification client for the given API base URL.
func NewClient(baseURL string, token TokenFunc) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// wsURL rewrites the HTTP base URL to its websocket scheme.
func (c *Client) wsURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + notificationsPath
}

// Listen connects and delivers decoded events until ctx is canceled or the
// connection drops. The returned channel is closed when the stream ends.
func (c *Client) Listen(ctx context.Context) (<-chan Event, error) {
	token := ""
	if c.token != nil {
		token = c.token()
	}
	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: notification stream rejected", domain.ErrNotAuthenticated)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNetworkUnavailable, err)
	}

	events := make(chan Event)

	// Reader goroutine; closed by ctx cancellation or a read error.
	go func() {
		defer close(events)
		defer conn.Close()

		go func() {
			<-ctx.Done()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		}()

		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.FromContext(ctx).Warn("notification stream closed", "error", err)
				}
				return
			}
			observability.NotifyEventsReceived.WithLabelValues(ev.Type).Inc()
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
