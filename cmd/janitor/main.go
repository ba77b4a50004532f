package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/janitor"
	"github.com/CLDWare/attendance-kiosk/internal/notify"
	"github.com/CLDWare/attendance-kiosk/internal/outbox"
	"github.com/CLDWare/attendance-kiosk/internal/remote"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

func main() {
	flags := pflag.NewFlagSet("kiosk-janitor", pflag.ExitOnError)
	full := flags.Bool("full", false, "also prune synced notifications and outbox rows past retention")
	flags.Parse(os.Args[1:])

	// Initialize logger with the updated configuration
	logger.Init()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logger.Info(".env file not found, proceeding with environment variables")
	}

	// Force reload configuration after .env is loaded
	config.ForceReload()

	// Load configuration
	cfg := config.Get()

	// Initialise Database
	db, err := models.Open(cfg)
	if err != nil {
		logger.Err(err)
		os.Exit(1)
	}
	defer models.Close(db)

	store := remote.New(context.Background(), cfg)
	defer store.Close()

	notifications := notify.NewService(db, store, nil)
	jan := janitor.NewJanitor(cfg, notifications, outbox.NewDrainer(db, store, cfg.Outbox), true)

	if *full {
		jan.RunFull()
		return
	}
	jan.RunShort()
}
