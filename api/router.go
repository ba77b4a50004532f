package api

import (
	"net/http"

	"github.com/MonkyMars/gecho"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"gorm.io/gorm"

	"github.com/CLDWare/attendance-kiosk/config"
	_ "github.com/CLDWare/attendance-kiosk/docs"
	"github.com/CLDWare/attendance-kiosk/internal/handlers"
	"github.com/CLDWare/attendance-kiosk/internal/identity"
	"github.com/CLDWare/attendance-kiosk/internal/middleware"
	"github.com/CLDWare/attendance-kiosk/internal/session"
)

// Dependencies are the running services the API exposes
type Dependencies struct {
	DB            *gorm.DB
	Identity      *identity.Resolver
	Sessions      *session.Manager
	Recognizer    Recognizer
	Reconciler    Reconciler
	Outbox        handlers.OutboxDrainer
	Notifications handlers.Notifications
	Health        handlers.HealthSource
}

// Recognizer is implemented by recognition.Pipeline
type Recognizer interface {
	handlers.Recognizer
	handlers.RosterReloader
}

// Reconciler is implemented by reconcile.Engine
type Reconciler interface {
	handlers.Reconciler
	handlers.PhotoStore
}

// API holds the API dependencies
type API struct {
	versionHandler      *handlers.VersionHandler
	deviceHandler       *handlers.DeviceHandler
	registryHandler     *handlers.RegistryHandler
	peopleHandler       *handlers.PeopleHandler
	photoHandler        *handlers.PhotoHandler
	syncHandler         *handlers.SyncHandler
	sessionHandler      *handlers.SessionHandler
	recognitionHandler  *handlers.RecognitionHandler
	notificationHandler *handlers.NotificationHandler
	monitorHandler      *handlers.MonitorHandler
	websocketHandler    *handlers.WebsocketHandler
}

// NewAPI creates a new API instance
func NewAPI(cfg *config.Config, deps Dependencies) *API {
	return &API{
		versionHandler:      handlers.NewVersionHandler(cfg, deps.Identity),
		deviceHandler:       handlers.NewDeviceHandler(cfg, deps.DB, deps.Identity),
		registryHandler:     handlers.NewRegistryHandler(deps.DB),
		peopleHandler:       handlers.NewPeopleHandler(deps.DB),
		photoHandler:        handlers.NewPhotoHandler(deps.Reconciler),
		syncHandler:         handlers.NewSyncHandler(deps.Reconciler, deps.Recognizer, deps.Outbox),
		sessionHandler:      handlers.NewSessionHandler(deps.Sessions),
		recognitionHandler:  handlers.NewRecognitionHandler(deps.Recognizer),
		notificationHandler: handlers.NewNotificationHandler(deps.Notifications),
		monitorHandler:      handlers.NewMonitorHandler(deps.Health),
		websocketHandler:    handlers.NewWebsocketHandler(cfg, deps.Recognizer),
	}
}

// CreateMux creates and configures the HTTP mux
func (api *API) CreateMux() *http.ServeMux {
	mux := http.NewServeMux()
	api.setupRoutes(mux)
	return mux
}

// setupRoutes configures all the routes.
func (api *API) setupRoutes(mux *http.ServeMux) {
	// Version route
	mux.HandleFunc("/v", api.versionHandler.GetVersion)

	// This device
	mux.HandleFunc("/device/register", api.deviceHandler.PostDeviceRegister)
	mux.HandleFunc("/device/network", api.deviceHandler.PostDeviceNetwork)
	mux.HandleFunc("/device/info", api.deviceHandler.GetDeviceInfo)

	// Registry and people mirrored from the remote store
	mux.HandleFunc("/rooms", api.registryHandler.GetRooms)
	mux.HandleFunc("/kiosks", api.registryHandler.GetKiosks)
	mux.HandleFunc("/teachers", api.peopleHandler.GetTeachers)
	mux.HandleFunc("/students", api.peopleHandler.GetStudents)
	mux.HandleFunc("/photos/{role}/{id}", api.photoHandler.GetPhoto)

	// Sync
	mux.HandleFunc("/sync", api.syncHandler.GetSync)
	mux.HandleFunc("/sync/partial", api.syncHandler.GetPartialSync)
	mux.HandleFunc("/sync/local_reload", api.syncHandler.GetLocalReload)
	mux.HandleFunc("/sync/outbox/status", api.syncHandler.GetOutboxStatus)
	mux.HandleFunc("/sync/outbox/process", api.syncHandler.ProcessOutbox)

	// Session
	mux.HandleFunc("/session", api.sessionHandler.GetSession)
	mux.HandleFunc("/session/classes", api.sessionHandler.GetClasses)
	mux.HandleFunc("/session/start", api.sessionHandler.PostStart)
	mux.HandleFunc("/session/mark", api.sessionHandler.PostMark)
	mux.HandleFunc("/session/stop", api.sessionHandler.PostStop)
	mux.HandleFunc("/session/attendance", api.sessionHandler.GetAttendance)
	mux.HandleFunc("/session/attendance_entries", api.sessionHandler.GetAttendanceEntries)
	mux.HandleFunc("/session/history", api.sessionHandler.GetHistory)

	// Recognition results
	mux.HandleFunc("/recognize-teacher", api.recognitionHandler.GetTeacher)
	mux.HandleFunc("/recognize-camera", api.recognitionHandler.GetStudent)
	mux.HandleFunc("/unrecognized", api.recognitionHandler.GetUnrecognized)
	mux.HandleFunc("/anti_spoof", api.recognitionHandler.GetAntiSpoof)
	mux.HandleFunc("/detect", api.recognitionHandler.GetDetection)
	mux.HandleFunc("/camera-feed", api.recognitionHandler.GetCameraFeed)
	// Websocket connection
	mux.HandleFunc("/ws", api.websocketHandler.InitialiseWebsocket)

	// Notifications and health
	mux.HandleFunc("/kiosk_notifications", api.notificationHandler.Notifications)
	mux.HandleFunc("/notifications", api.notificationHandler.Notifications)
	mux.HandleFunc("/monitor/status", api.monitorHandler.GetStatus)

	// API docs
	mux.Handle("/swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// fallback route - must be last because it matches all routes.
	mux.HandleFunc("/", fallBack)
}

// ApplyMiddleware applies middleware to a handler
func ApplyMiddleware(handler http.Handler) http.Handler {
	return middleware.RequestIDMiddleware(
		middleware.LoggingMiddleware(
			middleware.CORSMiddleware(handler),
		),
	)
}

func fallBack(w http.ResponseWriter, r *http.Request) {
	gecho.NotFound(w).Send()
}
