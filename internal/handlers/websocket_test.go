package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/recognition"
)

type wsFrame struct {
	Command   string                `json:"command"`
	Data      *recognition.Snapshot `json:"data"`
	ErrorCode *int                  `json:"e"`
	Info      string                `json:"info"`
}

func dialWebsocket(t *testing.T, h *WebsocketHandler) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(h.InitialiseWebsocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f wsFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return f
}

func newWebsocketHandler(rec *fakeRecognizer) *WebsocketHandler {
	cfg := &config.Config{Websocket: config.WebsocketConfig{
		PollInterval: 10 * time.Millisecond,
		PingInterval: time.Minute,
		PongWait:     3 * time.Minute,
	}}
	return NewWebsocketHandler(cfg, rec)
}

func TestWebsocketStreamsSnapshots(t *testing.T) {
	rec := &fakeRecognizer{}
	rec.set(func(s *recognition.Snapshot) { s.Teacher.Status = recognition.StatusIdle })
	conn := dialWebsocket(t, newWebsocketHandler(rec))

	first := readFrame(t, conn)
	if first.Command != "snapshot" || first.Data == nil || first.Data.Seq != 1 {
		t.Fatalf("expected the current snapshot on connect, got %+v", first)
	}

	rec.set(func(s *recognition.Snapshot) {
		s.Teacher = recognition.TeacherResult{Status: recognition.StatusSuccess, ID: "T1"}
	})
	next := readFrame(t, conn)
	if next.Data == nil || next.Data.Seq != 2 || next.Data.Teacher.ID != "T1" {
		t.Fatalf("expected the changed snapshot, got %+v", next)
	}
}

func TestWebsocketCommands(t *testing.T) {
	rec := &fakeRecognizer{}
	h := newWebsocketHandler(rec)
	conn := dialWebsocket(t, h)
	readFrame(t, conn) // initial snapshot

	tests := []struct {
		name    string
		message string
		check   func(f wsFrame) bool
	}{
		{"ping", `{"command":"ping"}`, func(f wsFrame) bool { return f.Command == "pong" }},
		{"snapshot", `{"command":"snapshot"}`, func(f wsFrame) bool { return f.Command == "snapshot" && f.Data != nil }},
		{"unknown", `{"command":"dance"}`, func(f wsFrame) bool {
			return f.ErrorCode != nil && *f.ErrorCode == wsErrBadRequest && strings.Contains(f.Info, "dance")
		}},
		{"invalid json", `{`, func(f wsFrame) bool { return f.ErrorCode != nil && *f.ErrorCode == wsErrBadRequest }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.message)); err != nil {
				t.Fatalf("write: %v", err)
			}
			if f := readFrame(t, conn); !tt.check(f) {
				t.Errorf("unexpected reply %+v", f)
			}
		})
	}

	if h.Connections() != 1 {
		t.Errorf("expected one open connection, got %d", h.Connections())
	}
}

func TestHeartbeatTimings(t *testing.T) {
	tests := []struct {
		name      string
		ping      time.Duration
		pong      time.Duration
		wantDelay time.Duration
		wantKill  time.Duration
	}{
		{"defaults", 0, 0, 20 * time.Second, time.Minute},
		{"configured", 10 * time.Second, 45 * time.Second, 10 * time.Second, 45 * time.Second},
		{"kill not after delay", 10 * time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebsocketHandler(&config.Config{Websocket: config.WebsocketConfig{PingInterval: tt.ping, PongWait: tt.pong}}, &fakeRecognizer{})
			delay, kill := h.heartbeatTimings()
			if delay != tt.wantDelay || kill != tt.wantKill {
				t.Errorf("expected %s/%s, got %s/%s", tt.wantDelay, tt.wantKill, delay, kill)
			}
		})
	}
}
