package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

const HEARTBEAT_CHECK_INTERVAL = 5 * time.Second

// heartbeatTimings returns the idle time before a ping is sent and the idle
// time after which the connection is dropped
func (h *WebsocketHandler) heartbeatTimings() (time.Duration, time.Duration) {
	delay, kill := h.config.Websocket.PingInterval, h.config.Websocket.PongWait
	if delay <= 0 {
		delay = 20 * time.Second
	}
	if kill <= delay {
		kill = 3 * delay
	}
	return delay, kill
}

func (h *WebsocketHandler) startHeartbeatMonitor(conn *websocketConnection) {
	ctx, cancel := context.WithCancel(context.Background())
	conn.heartbeatCancel = cancel
	delay, kill := h.heartbeatTimings()
	check := min(HEARTBEAT_CHECK_INTERVAL, delay/2)
	if check <= 0 {
		check = delay
	}

	go func() {
		ticker := time.NewTicker(check)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				conn.stateMu.Lock()
				age := time.Since(conn.latestMessage)
				heartbeatAge := time.Since(conn.latestHeartbeat)
				sent, received := conn.pingsSent, conn.pongsReceived
				conn.stateMu.Unlock()

				if age >= kill {
					info := "Heartbeat missed"
					conn.send(websocketErrorMessage{ErrorCode: wsErrHeartbeatMiss, Info: &info})
					logger.Info(fmt.Sprintf(
						"Websocket: disconnected %d, heartbeat missed. %d/%d pongs",
						conn.connectionID, received, sent,
					))
					go conn.close()
					return
				} else if age >= delay && heartbeatAge >= delay {
					if err := conn.send(websocketMessage{Command: "ping"}); err != nil {
						go conn.close()
						return
					}
					conn.stateMu.Lock()
					conn.pingsSent++
					conn.latestHeartbeat = time.Now()
					conn.stateMu.Unlock()
					logger.Debug(fmt.Sprintf("Websocket: heartbeat sent to %d", conn.connectionID))
				}
			}
		}
	}()
}

func (conn *websocketConnection) stopHeartbeatMonitor() {
	if conn.heartbeatCancel != nil {
		conn.heartbeatCancel()
	}
}
