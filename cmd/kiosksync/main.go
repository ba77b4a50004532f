package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/embedding"
	"github.com/CLDWare/attendance-kiosk/internal/hwinfo"
	"github.com/CLDWare/attendance-kiosk/internal/identity"
	"github.com/CLDWare/attendance-kiosk/internal/notify"
	"github.com/CLDWare/attendance-kiosk/internal/outbox"
	"github.com/CLDWare/attendance-kiosk/internal/reconcile"
	"github.com/CLDWare/attendance-kiosk/internal/remote"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

// kiosksync runs one reconciliation pass against the remote store without
// starting the API, for use from cron or by hand.
func main() {
	flags := pflag.NewFlagSet("kiosksync", pflag.ExitOnError)
	mode := flags.String("mode", reconcile.ModePartial, "pass to run: full or partial")
	drain := flags.Bool("drain", false, "publish queued attendance sessions after the pass")
	flags.Parse(os.Args[1:])

	if *mode != reconcile.ModeFull && *mode != reconcile.ModePartial {
		fmt.Fprintf(os.Stderr, "invalid --mode %q, expected full or partial\n", *mode)
		os.Exit(2)
	}

	logger.Init()
	if err := godotenv.Load(); err != nil {
		logger.Info(".env file not found, proceeding with environment variables")
	}
	config.ForceReload()
	cfg := config.Get()

	if err := os.MkdirAll(cfg.App.PhotosDir, os.ModePerm); err != nil {
		logger.Err(err)
		os.Exit(1)
	}
	db, err := models.Open(cfg)
	if err != nil {
		logger.Err(err)
		os.Exit(1)
	}
	defer models.Close(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := remote.New(ctx, cfg)
	defer store.Close()
	if !store.Configured() {
		logger.Err("Remote store not configured, nothing to sync")
		os.Exit(1)
	}

	resolver := identity.NewResolver(db, store, hwinfo.New(cfg.Monitor))
	if _, err := resolver.Resolve(ctx); err != nil {
		logger.Warn("Kiosk identity unresolved:", err)
	}
	notifications := notify.NewService(db, store, nil)
	notifications.SetKiosk(resolver.KioskID())

	engine := reconcile.NewEngine(db, store, embedding.New(cfg.Recognition), cfg)
	engine.SetKiosk(resolver)
	engine.SetNotifier(notifications)

	var result reconcile.Result
	if *mode == reconcile.ModeFull {
		result, err = engine.Full(ctx)
	} else {
		result, err = engine.Partial(ctx)
	}
	if err != nil {
		logger.Err(fmt.Sprintf("Sync: %s pass failed: %s", *mode, err.Error()))
		os.Exit(1)
	}
	printJSON(result)

	if *drain {
		report, err := outbox.NewDrainer(db, store, cfg.Outbox).DrainOnce(ctx)
		if err != nil {
			logger.Err(fmt.Sprintf("Outbox: drain failed: %s", err.Error()))
			os.Exit(1)
		}
		printJSON(report)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
