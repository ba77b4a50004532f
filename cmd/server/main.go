package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/CLDWare/attendance-kiosk/api"
	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/embedding"
	"github.com/CLDWare/attendance-kiosk/internal/hwinfo"
	"github.com/CLDWare/attendance-kiosk/internal/identity"
	"github.com/CLDWare/attendance-kiosk/internal/janitor"
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

//	@title			attendance-kiosk
//	@version		1.0.0
//	@description	Local API of a classroom attendance kiosk: device identity, sync, sessions and face recognition results.
//	@BasePath		/

func main() {
	flags := pflag.NewFlagSet("kiosk-server", pflag.ExitOnError)
	configFile := flags.String("config", "", "YAML file applied on top of the defaults, before environment variables")
	logLevel := flags.String("log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	flags.Parse(os.Args[1:])

	// Initialize logger with the updated configuration
	logger.Init()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logger.Info(".env file not found, proceeding with environment variables")
	}
	if *configFile != "" {
		os.Setenv("CONFIG_FILE", *configFile)
	}

	// Force reload configuration after .env is loaded
	config.ForceReload()

	// Load configuration
	cfg := config.Get()
	logger.SetLevel(cfg.Logging.Level)
	if *logLevel != "" {
		logger.SetLevel(*logLevel)
	}

	// Ensure the data dir exists for the database, backups and cached photos
	for _, dir := range []string{cfg.App.DataDir, cfg.App.PhotosDir} {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			logger.Err(fmt.Errorf("failed to create directory '%s': %s", dir, err.Error()))
			os.Exit(1)
		}
	}

	// Initialise Database
	db, err := models.Open(cfg)
	if err != nil {
		logger.Err(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := remote.New(ctx, cfg)
	if !store.Configured() {
		logger.Warn("Remote store not configured, running from the local store only")
	}

	// Device identity
	probe := hwinfo.New(cfg.Monitor)
	resolver := identity.NewResolver(db, store, probe)
	if kiosk, err := resolver.Resolve(ctx); err != nil {
		logger.Warn("Kiosk identity unresolved:", err)
	} else {
		logger.Info("Running as", kiosk.ID)
	}

	// Notifications, optionally mirrored to MQTT
	var publisher notify.Publisher
	var mqtt *notify.MQTTPublisher
	if cfg.MQTT.Broker != "" {
		mqtt = notify.NewMQTTPublisher(cfg.MQTT)
		if err := mqtt.Connect(ctx); err != nil {
			logger.Warn("MQTT broker unreachable, events stay local:", err)
		}
		publisher = mqtt
	}
	notifications := notify.NewService(db, store, publisher)
	notifications.SetKiosk(resolver.KioskID())

	drainer := outbox.NewDrainer(db, store, cfg.Outbox)
	drainer.Start()

	// Sessions
	sessions := session.NewManager(db, store, cfg.Session)
	sessions.SetKiosk(resolver)
	if restored, err := sessions.Restore(ctx); err != nil {
		logger.Warn("Session restore failed:", err)
	} else if restored {
		logger.Info("Resumed the active session")
	}

	// Recognition
	model := embedding.New(cfg.Recognition)
	directory := recognition.NewDirectory(db, resolver, cfg.Recognition.KioskRoomNumber)
	pipeline := recognition.NewPipeline(cfg, model, directory, sessions)
	sessions.SetMatcher(pipeline)
	if err := pipeline.Reload(ctx); err != nil {
		logger.Warn(err)
	}
	pipeline.Start(ctx)

	// Reconciliation
	engine := reconcile.NewEngine(db, store, model, cfg)
	engine.SetKiosk(resolver)
	engine.SetNotifier(notifications)
	engine.SetReloader(pipeline)
	scheduler := reconcile.NewScheduler(engine, cfg.Sync)
	if err := scheduler.Start(); err != nil {
		logger.Err("Sync scheduler not started:", err)
	}

	// Hardware health
	monitor := telemetry.NewMonitor(probe, notifications, cfg.Monitor)
	monitor.SetSyncer(scheduler)
	monitor.Start()

	// Initialize the janitor
	jan := janitor.NewJanitor(cfg, notifications, drainer, false)
	jan.Start()

	// Create API instance
	apiInstance := api.NewAPI(cfg, api.Dependencies{
		DB:            db,
		Identity:      resolver,
		Sessions:      sessions,
		Recognizer:    pipeline,
		Reconciler:    engine,
		Outbox:        drainer,
		Notifications: notifications,
		Health:        monitor,
	})

	// Create mux with routes
	mux := apiInstance.CreateMux()

	// Apply middleware
	handler := api.ApplyMiddleware(mux)

	// Server configuration
	server := &http.Server{
		Addr:        cfg.GetServerAddress(),
		Handler:     handler,
		ReadTimeout: cfg.Server.ReadTimeout,
		// the camera feed and websocket stream stay open
		WriteTimeout: 0,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server on", server.Addr)
		logger.Info("Environment:", cfg.App.Environment)
		logger.Info("Debug mode:", cfg.App.Debug)
		logger.Info("Application:", cfg.App.Name, "v"+cfg.App.Version)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Err("Server failed to start:", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	stop()

	logger.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Err("Server forced to shutdown:", err)
	}

	jan.Stop()
	monitor.Stop()
	scheduler.Stop()
	pipeline.Stop()
	drainer.Stop()
	sessions.Wait()
	if mqtt != nil {
		mqtt.Disconnect()
	}
	if err := store.Close(); err != nil {
		logger.Warn("Remote store close:", err)
	}
	if err := models.Close(db); err != nil {
		logger.Warn("Database close:", err)
	}

	logger.Info("Server exited")
}
