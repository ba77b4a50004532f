package handlers

import (
	"errors"
	"net/http"

	"github.com/MonkyMars/gecho"

	"github.com/CLDWare/attendance-kiosk/internal/session"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
)

// SessionHandler drives the classroom session state machine
type SessionHandler struct {
	sessions *session.Manager
}

func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type SessionResponse struct {
	Session *session.State `json:"session"`
}

type SessionStartResponse struct {
	Status  string        `json:"status" example:"started"`
	Session session.State `json:"session"`
}

type SessionStopResponse struct {
	Status string `json:"status" example:"stopped"`
	session.StopResult
}

type ClassesResponse struct {
	Classes []models.Class `json:"classes"`
}

type MarkRequest struct {
	StudentID string `json:"student_id" example:"S-2001"`
}

type EntriesResponse struct {
	Entries []models.AttendanceEntry `json:"entries"`
}

type HistoryResponse struct {
	History []models.SessionHistory `json:"history"`
}

// GetSession
//
// @Summary		Get the active session
// @Description	Returns the session held in memory, or null while idle
// @Tags			session
// @Accept			json
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=SessionResponse}
// @Router			/session [get]
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var resp SessionResponse
	if state, ok := h.sessions.Current(); ok {
		resp.Session = &state
	}
	gecho.Success(w).WithData(resp).Send()
}

// GetClasses
//
// @Summary		List a teacher's classes
// @Tags			session
// @Accept			json
// @Produce		json
// @Param			teacher_id	query		string	true	"Teacher id"
// @Success		200	{object}	apiResponses.BaseResponse{data=ClassesResponse}
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/session/classes [get]
func (h *SessionHandler) GetClasses(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	teacherID := r.URL.Query().Get("teacher_id")
	if teacherID == "" {
		gecho.BadRequest(w).WithMessage("missing teacher_id").Send()
		return
	}
	classes, err := h.sessions.ClassesForTeacher(r.Context(), teacherID)
	if err != nil {
		sendError(w, err, "Session: list classes")
		return
	}
	gecho.Success(w).WithData(ClassesResponse{Classes: classes}).Send()
}

// PostStart
//
// @Summary		Start a session
// @Description	Start a class session. A session already active for the same teacher and class, or held in memory, is closed first.
// @Tags			session
// @Accept			json
// @Produce		json
// @Param			session	body		session.StartRequest	true	"Teacher and class"
// @Success		201	{object}	apiResponses.BaseResponse{data=SessionStartResponse}
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/session/start [post]
func (h *SessionHandler) PostStart(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var body session.StartRequest
	if err := decodeBody(r, &body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	state, err := h.sessions.Start(r.Context(), body)
	if err != nil {
		sendError(w, err, "Session: start")
		return
	}
	gecho.Created(w).WithData(SessionStartResponse{Status: "started", Session: state}).Send()
}

// PostMark
//
// @Summary		Mark a student present
// @Description	Record a student in the active session. Marks before the late cutoff are present, later ones late. A repeated mark changes nothing.
// @Tags			session
// @Accept			json
// @Produce		json
// @Param			mark	body		MarkRequest	true	"Student to mark"
// @Success		200	{object}	apiResponses.BaseResponse{data=session.MarkResult}
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		404	{object}	apiResponses.NotFoundError
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/session/mark [post]
func (h *SessionHandler) PostMark(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var body MarkRequest
	if err := decodeBody(r, &body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	result, err := h.sessions.Mark(r.Context(), body.StudentID)
	if err != nil {
		sendError(w, err, "Session: mark")
		return
	}
	gecho.Success(w).WithData(result).Send()
}

// PostStop
//
// @Summary		Stop the active session
// @Description	Requires a recent face match of the session's teacher. Unmarked students are recorded absent and the session is queued for publishing.
// @Tags			session
// @Accept			json
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=SessionStopResponse}
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		403	{object}	apiResponses.ForbiddenError
// @Failure		503	{object}	apiResponses.ServiceUnavailableError
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/session/stop [post]
func (h *SessionHandler) PostStop(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	result, err := h.sessions.Stop(r.Context())
	if err != nil {
		sendError(w, err, "Session: stop")
		return
	}
	gecho.Success(w).WithData(SessionStopResponse{Status: "stopped", StopResult: result}).Send()
}

// GetAttendance
//
// @Summary		Get live attendance
// @Description	Every enrolled student of the active class with the status recorded so far. Idle kiosks return an empty list.
// @Tags			session
// @Accept			json
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=session.Attendance}
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/session/attendance [get]
func (h *SessionHandler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	view, err := h.sessions.Attendance(r.Context())
	if errors.Is(err, session.ErrNoActiveSession) {
		gecho.Success(w).WithData(session.Attendance{Attendees: []session.Attendee{}}).Send()
		return
	}
	if err != nil {
		sendError(w, err, "Session: attendance")
		return
	}
	gecho.Success(w).WithData(view).Send()
}

// GetAttendanceEntries
//
// @Summary		Get attendance entries
// @Description	Entries of the given session, or of the active one when no id is passed
// @Tags			session
// @Accept			json
// @Produce		json
// @Param			session_id	query		int	false	"Local session id"
// @Success		200	{object}	apiResponses.BaseResponse{data=EntriesResponse}
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/session/attendance_entries [get]
func (h *SessionHandler) GetAttendanceEntries(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	sessionID, err := queryInt(r, "session_id", 0)
	if err != nil || sessionID < 0 {
		gecho.BadRequest(w).WithMessage("Invalid session_id, expected positive integer").Send()
		return
	}
	entries, err := h.sessions.Entries(r.Context(), uint(sessionID))
	if errors.Is(err, session.ErrNoActiveSession) {
		entries, err = []models.AttendanceEntry{}, nil
	}
	if err != nil {
		sendError(w, err, "Session: attendance entries")
		return
	}
	gecho.Success(w).WithData(EntriesResponse{Entries: entries}).Send()
}

// GetHistory
//
// @Summary		List completed sessions
// @Tags			session
// @Accept			json
// @Produce		json
// @Param			limit	query		int	false	"Amount of sessions to return" default(20) maximum(100)
// @Param			offset	query		int	false	"How many sessions to skip" default(0) minimum(0)
// @Success		200	{object}	apiResponses.BaseResponse{data=HistoryResponse}
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/session/history [get]
func (h *SessionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	history, err := h.sessions.History(r.Context(), limit, offset)
	if err != nil {
		sendError(w, err, "Session: history")
		return
	}
	gecho.Success(w).WithData(HistoryResponse{History: history}).Send()
}
