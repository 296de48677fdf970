package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shelterlink/internal/domain"
	"shelterlink/internal/testutil"

	"github.com/gorilla/websocket"
)

func notifyServer(t *testing.T, wantToken string, send []Event) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/notifications", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+wantToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, ev := range send {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ReceivesEvents(t *testing.T) {
	sent := []Event{
		{Type: "APPLICATION_APPROVED", ApplicationID: "app-1", RecruitmentID: "rec-1"},
		{Type: "ATTENDANCE_MARKED", ApplicationID: "app-1", RecruitmentID: "rec-1", Message: "thanks for coming"},
	}
	srv := notifyServer(t, "tok-1", sent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewClient(srv.URL, func() string { return "tok-1" })
	events, err := c.Listen(ctx)
	testutil.AssertNoError(t, err)

	for i, want := range sent {
		select {
		case got, ok := <-events:
			if !ok {
				t.Fatalf("stream closed before event %d", i)
			}
			testutil.AssertEqual(t, got.Type, want.Type)
			testutil.AssertEqual(t, got.ApplicationID, want.ApplicationID)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestClient_RequiresToken(t *testing.T) {
	c := NewClient("http://localhost:0", func() string { return "" })
	_, err := c.Listen(context.Background())
	testutil.AssertErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestClient_RejectedToken(t *testing.T) {
	srv := notifyServer(t, "good", nil)

	c := NewClient(srv.URL, func() string { return "bad" })
	_, err := c.Listen(context.Background())
	testutil.AssertErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestClient_ClosesOnCancel(t *testing.T) {
	srv := notifyServer(t, "tok-1", nil)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL, func() string { return "tok-1" })
	events, err := c.Listen(ctx)
	testutil.AssertNoError(t, err)

	cancel()

	select {
	case _, ok := <-events:
		testutil.AssertFalse(t, ok, "channel should close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}

func TestWSURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://api.example.com", "ws://api.example.com/ws/notifications"},
		{"https://api.example.com/", "wss://api.example.com/ws/notifications"},
	}
	for _, tt := range tests {
		c := NewClient(tt.base, nil)
		testutil.AssertEqual(t, c.wsURL(), tt.want)
	}
}
