package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MonkyMars/gecho"

	"github.com/CLDWare/attendance-kiosk/internal/outbox"
	"github.com/CLDWare/attendance-kiosk/internal/reconcile"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

// MessageNotConfigured is returned when no remote store credentials are set
const MessageNotConfigured = "remote store not configured, set FIRESTORE_CREDENTIALS and FIRESTORE_PROJECT_ID"

// Reconciler is implemented by reconcile.Engine
type Reconciler interface {
	Configured() bool
	Full(ctx context.Context) (reconcile.Result, error)
	Partial(ctx context.Context) (reconcile.Result, error)
}

// RosterReloader is implemented by recognition.Pipeline
type RosterReloader interface {
	Reload(ctx context.Context) error
	RosterSize() (int, int)
}

// OutboxDrainer is implemented by outbox.Drainer
type OutboxDrainer interface {
	DrainOnce(ctx context.Context) (outbox.Report, error)
	Status(ctx context.Context, limit int) (outbox.StatusReport, error)
}

type SyncHandler struct {
	reconciler Reconciler
	roster     RosterReloader
	outbox     OutboxDrainer
}

func NewSyncHandler(reconciler Reconciler, roster RosterReloader, drainer OutboxDrainer) *SyncHandler {
	return &SyncHandler{
		reconciler: reconciler,
		roster:     roster,
		outbox:     drainer,
	}
}

type ReloadResponse struct {
	Message  string `json:"message" example:"local_embeddings_reloaded"`
	Teachers int    `json:"teachers" example:"12"`
	Students int    `json:"students" example:"340"`
}

// GetSync
//
// @Summary		Run a full sync
// @Description	Back up the local database, pull every remote collection, refresh profile photos and embeddings, then reload the recognition roster
// @Tags			sync
// @Accept			json
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=reconcile.Result}
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/sync [get]
// @Router			/sync [post]
func (h *SyncHandler) GetSync(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	h.run(w, r, reconcile.ModeFull)
}

// GetPartialSync
//
// @Summary		Run a partial sync
// @Description	Pull teachers, classes, students and kiosks without touching photos or embeddings
// @Tags			sync
// @Accept			json
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=reconcile.Result}
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/sync/partial [get]
// @Router			/sync/partial [post]
func (h *SyncHandler) GetPartialSync(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	h.run(w, r, reconcile.ModePartial)
}

func (h *SyncHandler) run(w http.ResponseWriter, r *http.Request, mode string) {
	if !h.reconciler.Configured() {
		gecho.BadRequest(w).WithMessage(MessageNotConfigured).Send()
		return
	}

	// a pass that already started finishes even if the caller goes away
	ctx := context.WithoutCancel(r.Context())
	var (
		result reconcile.Result
		err    error
	)
	if mode == reconcile.ModeFull {
		result, err = h.reconciler.Full(ctx)
	} else {
		result, err = h.reconciler.Partial(ctx)
	}
	if err != nil {
		logger.Err(fmt.Sprintf("Sync: %s pass failed: %s", mode, err.Error()))
		gecho.InternalServerError(w).WithMessage("sync_failed: " + err.Error()).Send()
		return
	}

	gecho.Success(w).WithData(result).Send()
}

// GetLocalReload
//
// @Summary		Reload the recognition roster
// @Description	Re-read embeddings from the local store without contacting the remote store
// @Tags			sync
// @Accept			json
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=ReloadResponse}
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/sync/local_reload [get]
func (h *SyncHandler) GetLocalReload(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if err := h.roster.Reload(r.Context()); err != nil {
		sendError(w, err, "Sync: local reload")
		return
	}
	teachers, students := h.roster.RosterSize()
	gecho.Success(w).WithData(ReloadResponse{
		Message:  "local_embeddings_reloaded",
		Teachers: teachers,
		Students: students,
	}).Send()
}

// GetOutboxStatus
//
// @Summary		Get outbox status
// @Description	Latest outbox rows with a per status summary
// @Tags			sync
// @Accept			json
// @Produce		json
// @Param			limit	query		int	false	"Amount of rows to return" default(50) maximum(200)
// @Success		200	{object}	apiResponses.BaseResponse{data=outbox.StatusReport}
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/sync/outbox/status [get]
func (h *SyncHandler) GetOutboxStatus(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}

	report, err := h.outbox.Status(r.Context(), limit)
	if err != nil {
		sendError(w, err, "Sync: outbox status")
		return
	}
	gecho.Success(w).WithData(report).Send()
}

// ProcessOutbox
//
// @Summary		Drain the outbox now
// @Description	Publish queued attendance sessions to the remote store without waiting for the background drainer
// @Tags			sync
// @Accept			json
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=outbox.Report}
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/sync/outbox/process [get]
// @Router			/sync/outbox/process [post]
func (h *SyncHandler) ProcessOutbox(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	report, err := h.outbox.DrainOnce(context.WithoutCancel(r.Context()))
	if err != nil {
		sendError(w, err, "Sync: outbox drain")
		return
	}
	gecho.Success(w).WithData(report).Send()
}
