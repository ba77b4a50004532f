package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MonkyMars/gecho"

	"github.com/CLDWare/attendance-kiosk/internal/recognition"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

// Recognizer is implemented by recognition.Pipeline
type Recognizer interface {
	Snapshot() recognition.Snapshot
	Seq() uint64
	Frame() ([]byte, time.Time, bool)
}

// RecognitionHandler serves the cached pipeline results. None of these
// endpoints run inference themselves.
type RecognitionHandler struct {
	recognizer Recognizer
}

func NewRecognitionHandler(recognizer Recognizer) *RecognitionHandler {
	return &RecognitionHandler{recognizer: recognizer}
}

// GetTeacher
//
// @Summary		Latest teacher recognition
// @Description	Result of the last frame matched against teachers, with the classes they can start on this kiosk
// @Tags			recognition
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=recognition.TeacherResult}
// @Router			/recognize-teacher [get]
func (h *RecognitionHandler) GetTeacher(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	gecho.Success(w).WithData(h.recognizer.Snapshot().Teacher).Send()
}

// GetStudent
//
// @Summary		Latest student recognition
// @Description	Result of the last frame matched against students, gated by the active session
// @Tags			recognition
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=recognition.StudentResult}
// @Router			/recognize-camera [get]
func (h *RecognitionHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	gecho.Success(w).WithData(h.recognizer.Snapshot().Student).Send()
}

// GetUnrecognized
//
// @Summary		Unrecognized face signal
// @Tags			recognition
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=recognition.Signal}
// @Router			/unrecognized [get]
func (h *RecognitionHandler) GetUnrecognized(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	gecho.Success(w).WithData(h.recognizer.Snapshot().Unrecognized).Send()
}

// GetAntiSpoof
//
// @Summary		Liveness signal
// @Tags			recognition
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=recognition.Signal}
// @Router			/anti_spoof [get]
func (h *RecognitionHandler) GetAntiSpoof(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	gecho.Success(w).WithData(h.recognizer.Snapshot().Spoof).Send()
}

// GetDetection
//
// @Summary		Last face detection
// @Description	Face count of the last inferred frame and the person it matched, if any
// @Tags			recognition
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse{data=recognition.Detection}
// @Router			/detect [get]
func (h *RecognitionHandler) GetDetection(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	gecho.Success(w).WithData(h.recognizer.Snapshot().Detection).Send()
}

// GetCameraFeed
//
// @Summary		Latest camera frame
// @Description	The newest preview JPEG, or a black frame while the camera is unavailable
// @Tags			recognition
// @Produce		jpeg
// @Success		200
// @Router			/camera-feed [get]
func (h *RecognitionHandler) GetCameraFeed(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	frame, at, ok := h.recognizer.Frame()
	if !ok {
		frame = recognition.BlankJPEG()
		at = time.Now()
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Time", at.UTC().Format(time.RFC3339Nano))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(frame); err != nil {
		logger.Debug("Recognition: camera feed write failed:", err)
	}
}
