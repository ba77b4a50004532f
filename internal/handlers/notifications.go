package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MonkyMars/gecho"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/CLDWare/attendance-kiosk/internal/notify"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
)

// Notifications is implemented by notify.Service
type Notifications interface {
	Notify(ctx context.Context, in notify.Input) (bool, error)
	List(ctx context.Context, limit int) ([]models.Notification, error)
}

type NotificationHandler struct {
	notifications Notifications
	validate      *validator.Validate
}

func NewNotificationHandler(notifications Notifications) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		validate:      validator.New(),
	}
}

// NotificationRequest is a notification raised by the kiosk front end
type NotificationRequest struct {
	NotifID   string         `json:"notif_id" validate:"omitempty,max=200" example:"door-open-1718000000"`
	Title     string         `json:"title" validate:"required,max=200" example:"Camera disconnected"`
	Type      string         `json:"type" validate:"required,max=32" example:"warning"`
	Details   map[string]any `json:"details"`
	Timestamp *time.Time     `json:"timestamp"`
}

type NotificationCreatedResponse struct {
	NotifID  string `json:"notif_id"`
	Inserted bool   `json:"inserted"`
}

type NotificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

// GetNotifications
//
// @Summary		List kiosk notifications
// @Description	Most recent notifications first, including their sync status
// @Tags			notifications
// @Accept			json
// @Produce		json
// @Param			limit	query		int	false	"Amount of notifications to return" default(100) maximum(100)
// @Success		200	{object}	apiResponses.BaseResponse{data=NotificationsResponse}
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/kiosk_notifications [get]
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	limit, err := queryInt(r, "limit", notify.MaxList)
	if err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	list, err := h.notifications.List(r.Context(), limit)
	if err != nil {
		sendError(w, err, "Notifications: list")
		return
	}
	gecho.Success(w).WithData(NotificationsResponse{Notifications: list}).Send()
}

// PostNotification
//
// @Summary		Record a notification
// @Description	Insert a notification unless one with the same notif_id exists. It is pushed to the remote store by the janitor.
// @Tags			notifications
// @Accept			json
// @Produce		json
// @Param			notification	body		NotificationRequest	true	"Notification"
// @Success		201	{object}	apiResponses.BaseResponse{data=NotificationCreatedResponse}
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/kiosk_notifications [post]
func (h *NotificationHandler) PostNotification(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var body NotificationRequest
	if err := decodeBody(r, &body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if err := h.validate.Struct(body); err != nil {
		sendError(w, err, "Notifications: validate")
		return
	}
	if body.NotifID == "" {
		body.NotifID = uuid.NewString()
	}
	in := notify.Input{
		NotifID: body.NotifID,
		Title:   body.Title,
		Type:    body.Type,
		Details: body.Details,
	}
	if body.Timestamp != nil {
		in.Timestamp = body.Timestamp.UTC()
	}

	inserted, err := h.notifications.Notify(r.Context(), in)
	if err != nil {
		sendError(w, err, "Notifications: insert")
		return
	}
	gecho.Created(w).WithData(NotificationCreatedResponse{NotifID: body.NotifID, Inserted: inserted}).Send()
}

// Notifications answers both verbs on the same path
func (h *NotificationHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		h.PostNotification(w, r)
		return
	}
	h.GetNotifications(w, r)
}
