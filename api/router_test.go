package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/identity"
	"github.com/CLDWare/attendance-kiosk/internal/notify"
	"github.com/CLDWare/attendance-kiosk/internal/outbox"
	"github.com/CLDWare/attendance-kiosk/internal/recognition"
	"github.com/CLDWare/attendance-kiosk/internal/reconcile"
	"github.com/CLDWare/attendance-kiosk/internal/remote"
	"github.com/CLDWare/attendance-kiosk/internal/session"
	"github.com/CLDWare/attendance-kiosk/internal/telemetry"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

type stubProbe struct{}

func (stubProbe) Serial() string     { return "" }
func (stubProbe) Hostname() string   { return "kiosk-205" }
func (stubProbe) IPAddress() string  { return "" }
func (stubProbe) MACAddress() string { return "" }

type stubRecognizer struct{}

func (stubRecognizer) Snapshot() recognition.Snapshot   { return recognition.Snapshot{} }
func (stubRecognizer) Seq() uint64                      { return 0 }
func (stubRecognizer) Frame() ([]byte, time.Time, bool) { return nil, time.Time{}, false }
func (stubRecognizer) Reload(context.Context) error     { return nil }
func (stubRecognizer) RosterSize() (int, int)           { return 0, 0 }

type stubReconciler struct{}

func (stubReconciler) Configured() bool { return false }
func (stubReconciler) Full(context.Context) (reconcile.Result, error) {
	return reconcile.Result{}, nil
}
func (stubReconciler) Partial(context.Context) (reconcile.Result, error) {
	return reconcile.Result{}, nil
}
func (stubReconciler) PhotoPath(role, id string) string { return filepath.Join(role, id+".jpg") }

type stubHealth struct{}

func (stubHealth) Status() telemetry.Status { return telemetry.Status{Online: true} }

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger.Init()

	db, err := models.OpenAt(filepath.Join(t.TempDir(), "kiosk.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { models.Close(db) })

	store := remote.Unavailable{}
	cfg := &config.Config{App: config.AppConfig{Name: "attendance-kiosk", Version: "test"}}
	deps := Dependencies{
		DB:            db,
		Identity:      identity.NewResolver(db, store, stubProbe{}),
		Sessions:      session.NewManager(db, store, config.SessionConfig{}),
		Recognizer:    stubRecognizer{},
		Reconciler:    stubReconciler{},
		Outbox:        outbox.NewDrainer(db, store, config.OutboxConfig{}),
		Notifications: notify.NewService(db, store, nil),
		Health:        stubHealth{},
	}
	return ApplyMiddleware(NewAPI(cfg, deps).CreateMux())
}

func TestAPI_WithMiddleware(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// Check that the request went through middleware and reached the handler
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	// Check CORS headers are present (from CORSMiddleware)
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS headers to be set by middleware")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id to be assigned")
	}
}

func TestAPI_Routes(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/device/info", http.StatusOK},
		{http.MethodGet, "/session", http.StatusOK},
		{http.MethodGet, "/session/attendance", http.StatusOK},
		{http.MethodGet, "/sync", http.StatusBadRequest},
		{http.MethodGet, "/sync/outbox/status", http.StatusOK},
		{http.MethodGet, "/rooms", http.StatusOK},
		{http.MethodGet, "/notifications", http.StatusOK},
		{http.MethodGet, "/monitor/status", http.StatusOK},
		{http.MethodGet, "/camera-feed", http.StatusOK},
		{http.MethodGet, "/photos/teachers/T1", http.StatusNotFound},
		{http.MethodGet, "/swagger/doc.json", http.StatusOK},
		{http.MethodGet, "/does-not-exist", http.StatusNotFound},
		{http.MethodOptions, "/session/start", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, nil))
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAPI_KeepsCallerRequestID(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected the caller's request id, got %q", got)
	}
}
