package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/MonkyMars/gecho"
	"gorm.io/gorm"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/identity"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
)

// RoomUnavailable is reported when the assigned room is not in the local store
const RoomUnavailable = "Unavailable"

// DeviceHandler exposes this kiosk's own registry record
type DeviceHandler struct {
	config   *config.Config
	db       *gorm.DB
	identity *identity.Resolver
}

func NewDeviceHandler(cfg *config.Config, db *gorm.DB, resolver *identity.Resolver) *DeviceHandler {
	return &DeviceHandler{
		config:   cfg,
		db:       db,
		identity: resolver,
	}
}

type KioskInfo struct {
	ID               string    `json:"id" example:"kiosk-201"`
	Name             string    `json:"name" example:"raspberrypi"`
	SerialNumber     *string   `json:"serialNumber" example:"10000000a3b2c1d0"`
	AssignedRoomID   string    `json:"assignedRoomId" example:"room-101"`
	AssignedRoomName string    `json:"assignedRoomName" example:"Room 101"`
	IPAddress        string    `json:"ipAddress" example:"192.168.1.40"`
	MACAddress       string    `json:"macAddress" example:"dc:a6:32:01:02:03"`
	Status           string    `json:"status" example:"online"`
	InstalledAt      time.Time `json:"installedAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// DeviceInfoResponse has a nil kiosk while the device is unregistered
type DeviceInfoResponse struct {
	Kiosk *KioskInfo `json:"kiosk"`
}

func (h *DeviceHandler) toKioskInfo(r *http.Request, kiosk *models.Kiosk) *KioskInfo {
	if kiosk == nil {
		return nil
	}
	info := &KioskInfo{
		ID:               kiosk.ID,
		Name:             kiosk.Name,
		SerialNumber:     kiosk.SerialNumber,
		AssignedRoomID:   kiosk.AssignedRoomID,
		AssignedRoomName: RoomUnavailable,
		IPAddress:        kiosk.IPAddress,
		MACAddress:       kiosk.MACAddress,
		Status:           kiosk.Status,
		InstalledAt:      kiosk.InstalledAt,
		UpdatedAt:        kiosk.UpdatedAt,
	}
	if kiosk.AssignedRoomID != "" {
		room, err := gorm.G[models.Room](h.db).Where("id = ?", kiosk.AssignedRoomID).First(r.Context())
		if err == nil && room.Name != "" {
			info.AssignedRoomName = room.Name
		}
	}
	return info
}

// PostDeviceRegister
//
// @Summary		Register this device
// @Description	Resolve this device's kiosk record, adopting a remote record with the same serial or allocating the next kiosk id
// @Tags			device
// @Accept			json
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=DeviceInfoResponse}
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/device/register [post]
func (h *DeviceHandler) PostDeviceRegister(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	kiosk, err := h.identity.Resolve(r.Context())
	if err != nil {
		sendError(w, err, "Device: register")
		return
	}

	gecho.Success(w).WithData(DeviceInfoResponse{Kiosk: h.toKioskInfo(r, kiosk)}).Send()
}

// PostDeviceNetwork
//
// @Summary		Refresh network details
// @Description	Detect the current IP and MAC address, store them on this kiosk's record and patch the remote document when reachable
// @Tags			device
// @Accept			json
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=DeviceInfoResponse}
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/device/network [post]
func (h *DeviceHandler) PostDeviceNetwork(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	kiosk, err := h.identity.UpdateNetworkInfo(r.Context())
	if err != nil {
		sendError(w, err, "Device: network update")
		return
	}

	gecho.Success(w).WithData(DeviceInfoResponse{Kiosk: h.toKioskInfo(r, kiosk)}).Send()
}

// GetDeviceInfo
//
// @Summary		Get this device's kiosk record
// @Description	Returns the resolved kiosk with its assigned room name, or a null kiosk before registration
// @Tags			device
// @Accept			json
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=DeviceInfoResponse}
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/device/info [get]
func (h *DeviceHandler) GetDeviceInfo(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	id := h.identity.KioskID()
	if id == "" {
		gecho.Success(w).WithData(DeviceInfoResponse{}).Send()
		return
	}
	kiosk, err := gorm.G[models.Kiosk](h.db).Where("id = ?", id).First(r.Context())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		gecho.Success(w).WithData(DeviceInfoResponse{}).Send()
		return
	}
	if err != nil {
		sendError(w, err, "Device: info")
		return
	}

	gecho.Success(w).WithData(DeviceInfoResponse{Kiosk: h.toKioskInfo(r, &kiosk)}).Send()
}
