package main

import (
	"context"
	"os"

	"github.com/spf13/pflag"
	"gorm.io/gorm"

	"github.com/CLDWare/attendance-kiosk/config"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

func main() {
	flags := pflag.NewFlagSet("dummy_db", pflag.ExitOnError)
	path := flags.String("db", "", "database file to seed (default: the configured DB_PATH)")
	flags.Parse(os.Args[1:])

	logger.Init()

	var (
		db  *gorm.DB
		err error
	)
	if *path != "" {
		db, err = models.OpenAt(*path)
	} else {
		db, err = models.Open(config.Get())
	}
	if err != nil {
		logger.Err("failed to connect to database:", err)
		os.Exit(1)
	}
	defer models.Close(db)

	// DUMMY DATA
	if err := models.SeedDemo(context.Background(), db); err != nil {
		logger.Err(err)
		os.Exit(1)
	}
	logger.Info("Seeded demo classroom")
}
