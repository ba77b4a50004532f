package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

// Websocket error codes
const (
	wsErrBadRequest    = 0
	wsErrHeartbeatMiss = 1
)

type websocketMessage struct {
	Command string         `json:"command"`
	Data    map[string]any `json:"data,omitempty"`
}

type websocketSnapshotMessage struct {
	Command string `json:"command"`
	Data    any    `json:"data"`
}

type websocketErrorMessage struct {
	ErrorCode int     `json:"e"`
	Info      *string `json:"info,omitempty"`
}

// WebsocketHandler streams recognition snapshots to the kiosk front end.
// A snapshot is pushed whenever its sequence number changes.
type WebsocketHandler struct {
	config     *config.Config
	recognizer Recognizer
	upgrader   websocket.Upgrader

	nextID      atomic.Uint64
	mu          sync.Mutex
	connections map[uint64]*websocketConnection
}

func NewWebsocketHandler(cfg *config.Config, recognizer Recognizer) *WebsocketHandler {
	return &WebsocketHandler{
		config:     cfg,
		recognizer: recognizer,
		upgrader: websocket.Upgrader{
			// the front end is served from another origin on the same device
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		connections: map[uint64]*websocketConnection{},
	}
}

type websocketConnection struct {
	connectionID uint64
	ws           *websocket.Conn
	writeMu      sync.Mutex

	stateMu         sync.Mutex
	latestMessage   time.Time
	latestHeartbeat time.Time
	pingsSent       uint
	pongsReceived   uint

	heartbeatCancel context.CancelFunc
	closeOnce       sync.Once
	done            chan struct{}
}

// send serializes writes, gorilla allows one concurrent writer
func (conn *websocketConnection) send(v any) error {
	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()
	conn.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.ws.WriteJSON(v)
}

func (conn *websocketConnection) touch() {
	conn.stateMu.Lock()
	conn.latestMessage = time.Now()
	conn.stateMu.Unlock()
}

func (conn *websocketConnection) close() {
	conn.closeOnce.Do(func() {
		conn.stopHeartbeatMonitor()
		close(conn.done)
		conn.ws.Close()
	})
}

// Connections is the number of open streams
func (h *WebsocketHandler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// InitialiseWebsocket
//
// @Summary		Recognition event stream
// @Description	Upgrades to a websocket that pushes {"command":"snapshot","data":Snapshot} on every change. Clients may send {"command":"snapshot"} to request the current one and must answer {"command":"ping"} with {"command":"pong"}.
// @Tags			recognition
// @Success		101
// @Router			/ws [get]
func (h *WebsocketHandler) InitialiseWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Err(fmt.Sprintf("Websocket: upgrade failed: %s", err.Error()))
		return
	}

	conn := &websocketConnection{
		connectionID:  h.nextID.Add(1),
		ws:            ws,
		latestMessage: time.Now(),
		done:          make(chan struct{}),
	}
	h.mu.Lock()
	h.connections[conn.connectionID] = conn
	h.mu.Unlock()
	logger.Info(fmt.Sprintf("Websocket: connection %d opened", conn.connectionID))

	defer func() {
		conn.close()
		h.mu.Lock()
		delete(h.connections, conn.connectionID)
		h.mu.Unlock()
		logger.Info(fmt.Sprintf("Websocket: connection %d closed", conn.connectionID))
	}()

	h.startHeartbeatMonitor(conn)
	go h.streamSnapshots(conn)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug(fmt.Sprintf("Websocket: read on %d: %s", conn.connectionID, err.Error()))
			}
			return
		}
		conn.touch()
		h.handleMessage(conn, raw)
	}
}

func (h *WebsocketHandler) handleMessage(conn *websocketConnection, raw []byte) {
	var message websocketMessage
	if err := json.Unmarshal(raw, &message); err != nil {
		info := "Invalid JSON"
		conn.send(websocketErrorMessage{ErrorCode: wsErrBadRequest, Info: &info})
		return
	}

	switch message.Command {
	case "pong":
		conn.stateMu.Lock()
		conn.pongsReceived++
		conn.stateMu.Unlock()
	case "ping":
		conn.send(websocketMessage{Command: "pong"})
	case "snapshot":
		conn.send(websocketSnapshotMessage{Command: "snapshot", Data: h.recognizer.Snapshot()})
	default:
		info := fmt.Sprintf("Unknown command '%s'", message.Command)
		conn.send(websocketErrorMessage{ErrorCode: wsErrBadRequest, Info: &info})
	}
}

// streamSnapshots polls the sequence number and pushes a snapshot whenever
// it moved. The first snapshot is sent right away.
func (h *WebsocketHandler) streamSnapshots(conn *websocketConnection) {
	interval := h.config.Websocket.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSeq uint64
	first := true
	for {
		if seq := h.recognizer.Seq(); first || seq != lastSeq {
			snap := h.recognizer.Snapshot()
			if err := conn.send(websocketSnapshotMessage{Command: "snapshot", Data: snap}); err != nil {
				conn.close()
				return
			}
			lastSeq, first = snap.Seq, false
		}
		select {
		case <-conn.done:
			return
		case <-ticker.C:
		}
	}
}
