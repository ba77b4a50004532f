package handlers

import (
	"net/http"
	"time"

	"github.com/MonkyMars/gecho"

	"github.com/CLDWare/attendance-kiosk/config"
)

// KioskSource names the kiosk this process runs on
type KioskSource interface {
	KioskID() string
}

// VersionHandler reports build and runtime information
type VersionHandler struct {
	config  *config.Config
	kiosk   KioskSource
	started time.Time
}

func NewVersionHandler(cfg *config.Config, kiosk KioskSource) *VersionHandler {
	return &VersionHandler{
		config:  cfg,
		kiosk:   kiosk,
		started: time.Now(),
	}
}

type GetVersionSuccessResponse struct {
	Name        string `json:"name" example:"attendance-kiosk"`
	Version     string `json:"version" example:"1.0.0"`
	Environment string `json:"environment" example:"development"`
	KioskID     string `json:"kiosk_id" example:"kiosk-201"`
	Uptime      string `json:"uptime" example:"3h12m5s"`
}

// GetVersion
//
// @Summary		Get the api version
// @Description	Get current api name, version, deployment env and the kiosk this process serves
// @Tags			version
// @Accept			json
// @Produce		json
// @Success		200	{object} apiResponses.BaseResponse{data=GetVersionSuccessResponse}
// @Router 			/v		[get]
func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	versionInfo := GetVersionSuccessResponse{
		Name:        h.config.App.Name,
		Version:     h.config.App.Version,
		Environment: h.config.App.Environment,
		Uptime:      time.Since(h.started).Round(time.Second).String(),
	}
	if h.kiosk != nil {
		versionInfo.KioskID = h.kiosk.KioskID()
	}

	gecho.Success(w).WithData(versionInfo).Send()
}
