package handlers

import (
	"net/http"

	"github.com/MonkyMars/gecho"
	"gorm.io/gorm"

	models "github.com/CLDWare/attendance-kiosk/pkg/db"
)

// RegistryHandler lists the rooms and kiosks mirrored from the remote store
type RegistryHandler struct {
	db *gorm.DB
}

func NewRegistryHandler(db *gorm.DB) *RegistryHandler {
	return &RegistryHandler{db: db}
}

type RoomsResponse struct {
	Rooms []models.Room `json:"rooms"`
}

type KiosksResponse struct {
	Kiosks []models.Kiosk `json:"kiosks"`
}

// GetRooms
//
// @Summary		List rooms
// @Description	List the rooms from the last reconciliation, optionally only the ones served by a kiosk
// @Tags			registry
// @Accept			json
// @Produce		json
// @Param			kioskid	query		string	false	"Only rooms assigned to this kiosk"
// @Success		200	{object}	apiResponses.BaseResponse{data=RoomsResponse}
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/rooms [get]
func (h *RegistryHandler) GetRooms(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	query := gorm.G[models.Room](h.db).Order("id")
	if kioskID := r.URL.Query().Get("kioskid"); kioskID != "" {
		query = query.Where("kiosk_id = ?", kioskID)
	}
	rooms, err := query.Find(r.Context())
	if err != nil {
		sendError(w, err, "Registry: list rooms")
		return
	}

	gecho.Success(w).WithData(RoomsResponse{Rooms: rooms}).Send()
}

// GetKiosks
//
// @Summary		List kiosks
// @Description	List the kiosk registry, filtered by serial number or kiosk id. serial wins when both are given.
// @Tags			registry
// @Accept			json
// @Produce		json
// @Param			serial	query		string	false	"Hardware serial number"
// @Param			kioskid	query		string	false	"Kiosk id"
// @Success		200	{object}	apiResponses.BaseResponse{data=KiosksResponse}
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/kiosks [get]
func (h *RegistryHandler) GetKiosks(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	query := r.URL.Query()
	dbQuery := gorm.G[models.Kiosk](h.db).Order("id")
	if serial := query.Get("serial"); serial != "" {
		dbQuery = dbQuery.Where("serial_number = ?", serial)
	} else if kioskID := query.Get("kioskid"); kioskID != "" {
		dbQuery = dbQuery.Where("id = ?", kioskID)
	}
	kiosks, err := dbQuery.Find(r.Context())
	if err != nil {
		sendError(w, err, "Registry: list kiosks")
		return
	}

	gecho.Success(w).WithData(KiosksResponse{Kiosks: kiosks}).Send()
}
