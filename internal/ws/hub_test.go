package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"boathub/pkg/domain"
)

func newTestHub(t *testing.T, origins []string) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(testWriter{t}, nil)), origins)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, srv
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcast(t *testing.T) {
	hub, srv := newTestHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	sent := domain.BoatUpdate{Type: "boat_approved", BoatID: "b1", Status: domain.StatusApproved}
	hub.Broadcast(sent)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got domain.BoatUpdate
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != sent.Type || got.BoatID != sent.BoatID || got.Status != sent.Status {
		t.Fatalf("got %+v, want %+v", got, sent)
	}
	if got.Timestamp.IsZero() {
		t.Fatal("timestamp should be filled in when absent")
	}
}

func TestHubRejectsUnknownOrigin(t *testing.T) {
	_, srv := newTestHub(t, []string{"https://boathub.example"})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err == nil {
		t.Fatal("expected upgrade to fail for unknown origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}

func TestHubAllowsListedOrigin(t *testing.T) {
	hub, srv := newTestHub(t, []string{"https://boathub.example"})

	header := http.Header{"Origin": []string{"https://boathub.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("dial with allowed origin: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)
}

func TestHubForgetsDisconnectedClient(t *testing.T) {
	hub, srv := newTestHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	// A broadcast with nobody listening must not block or panic.
	hub.Broadcast(domain.BoatUpdate{Type: "boat_rejected", BoatID: "b2", Status: domain.StatusRejected})
}
