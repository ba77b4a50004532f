package handlers

import (
	"net/http"

	"github.com/MonkyMars/gecho"

	"github.com/CLDWare/attendance-kiosk/internal/telemetry"
)

// HealthSource is implemented by telemetry.Monitor
type HealthSource interface {
	Status() telemetry.Status
}

type MonitorHandler struct {
	health HealthSource
}

func NewMonitorHandler(health HealthSource) *MonitorHandler {
	return &MonitorHandler{health: health}
}

type MonitorStatusResponse struct {
	Status telemetry.Status `json:"status"`
}

// GetStatus
//
// @Summary		Hardware health
// @Description	Last reading of connectivity, under-voltage and CPU temperature
// @Tags			monitor
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=MonitorStatusResponse}
// @Router			/monitor/status [get]
func (h *MonitorHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	gecho.Success(w).WithData(MonitorStatusResponse{Status: h.health.Status()}).Send()
}
