package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/CLDWare/attendance-kiosk/config"
)

// column is an additive migration applied after AutoMigrate
type column struct {
	model any
	field string
}

// columnMigrations are the notification bookkeeping columns added after
// the first kiosk release.
var columnMigrations = []column{
	{&Notification{}, "Attempts"},
	{&Notification{}, "LastAttemptAt"},
	{&Notification{}, "LastError"},
	{&Notification{}, "LastNotifiedAt"},
}

// statements are idempotent DDL gorm tags cannot express
var statements = []string{
	// at most one active session per teacher and class
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_session
		ON attendance_sessions(teacher_id, class_id) WHERE is_active = 'true'`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending
		ON attendance_sessions_outbox(status, attempts, id)`,
}

// Open opens the kiosk database described by the configuration, creating
// its directory when needed.
func Open(cfg *config.Config) (*gorm.DB, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory '%s': %w", dir, err)
		}
	}
	return open(cfg.Database.Path, cfg.Database, cfg.App.Debug)
}

// OpenAt opens a database file at path with the default pool settings
func OpenAt(path string) (*gorm.DB, error) {
	return open(path, config.DatabaseConfig{
		Path:            path,
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}, false)
}

func open(path string, dbCfg config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	logLevel := gormlogger.Silent
	if debug {
		logLevel = gormlogger.Warn
	}

	db, err := gorm.Open(sqlite.Open(dsn(path, dbCfg.BusyTimeout)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)

	if err := Migrate(db); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// dsn enables foreign keys and a busy timeout on every pooled connection
func dsn(path string, busyTimeout time.Duration) string {
	return fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=%d&_journal_mode=WAL",
		path, busyTimeout.Milliseconds())
}

// Migrate converges the schema. It only ever adds tables, columns and
// indexes, so running it against a populated database is safe.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	migrator := db.Migrator()
	for _, c := range columnMigrations {
		if migrator.HasColumn(c.model, c.field) {
			continue
		}
		if err := migrator.AddColumn(c.model, c.field); err != nil && !migrator.HasColumn(c.model, c.field) {
			return fmt.Errorf("failed to add column %s: %w", c.field, err)
		}
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
