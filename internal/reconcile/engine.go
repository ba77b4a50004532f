// Package reconcile pulls the remote collections into the local store. The
// remote store is authoritative: every enumerated document is upserted and
// local rows it no longer lists are deleted. Local deletions are never sent
// back.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/embedding"
	"github.com/CLDWare/attendance-kiosk/internal/notify"
	"github.com/CLDWare/attendance-kiosk/internal/remote"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

const (
	ModeFull    = "full"
	ModePartial = "partial"

	// MessageNothingSynced is set on a result that wrote no rows
	MessageNothingSynced = "no_records_synced"
)

// Reloader is refreshed after a pass changed local data
type Reloader interface {
	Reload(ctx context.Context) error
}

// Notifier records kiosk notifications
type Notifier interface {
	Notify(ctx context.Context, in notify.Input) (bool, error)
}

// KioskSource names this kiosk's registry row
type KioskSource interface {
	KioskID() string
}

type Result struct {
	Configured bool           `json:"configured"`
	Mode       string         `json:"mode"`
	Synced     map[string]int `json:"synced"`
	Deleted    map[string]int `json:"deleted"`
	Embedded   int            `json:"embedded"`
	Failed     int            `json:"failed"`
	Message    string         `json:"message,omitempty"`
}

func newResult(mode string) Result {
	return Result{Mode: mode, Synced: map[string]int{}, Deleted: map[string]int{}}
}

func (r *Result) total() int {
	n := 0
	for _, v := range r.Synced {
		n += v
	}
	for _, v := range r.Deleted {
		n += v
	}
	return n
}

type Engine struct {
	db           *gorm.DB
	remote       remote.Store
	model        embedding.Model
	client       *http.Client
	photosDir    string
	photoTimeout time.Duration
	backupPath   string
	now          func() time.Time

	kiosk    KioskSource
	notifier Notifier
	reloader Reloader

	// a full and a partial pass never run at the same time
	mu sync.Mutex
}

func NewEngine(db *gorm.DB, store remote.Store, model embedding.Model, cfg *config.Config) *Engine {
	if model == nil {
		model = embedding.Unavailable{}
	}
	e := &Engine{
		db:           db,
		remote:       store,
		model:        model,
		client:       &http.Client{},
		photosDir:    cfg.App.PhotosDir,
		photoTimeout: cfg.Sync.PhotoTimeout,
		now:          time.Now,
	}
	if e.photoTimeout <= 0 {
		e.photoTimeout = 15 * time.Second
	}
	if cfg.Sync.BackupEnabled && cfg.App.DataDir != "" {
		e.backupPath = filepath.Join(cfg.App.DataDir, "kiosk-backup.db.zst")
	}
	return e
}

func (e *Engine) SetKiosk(k KioskSource) { e.kiosk = k }

func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

func (e *Engine) SetReloader(r Reloader) { e.reloader = r }

func (e *Engine) Configured() bool { return e.remote.Configured() }

// PhotoPath is where the local copy of a profile photo lives
func (e *Engine) PhotoPath(role, id string) string {
	return filepath.Join(e.photosDir, role, id+".jpg")
}

// Full backs up the database, then pulls every collection and refreshes
// profile photos and embeddings.
func (e *Engine) Full(ctx context.Context) (Result, error) {
	return e.run(ctx, ModeFull)
}

// Partial pulls teachers, classes, students and kiosks without touching
// photos or embeddings.
func (e *Engine) Partial(ctx context.Context) (Result, error) {
	return e.run(ctx, ModePartial)
}

func (e *Engine) run(ctx context.Context, mode string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := newResult(mode)
	if !e.remote.Configured() {
		return res, nil
	}
	res.Configured = true

	if mode == ModeFull && e.backupPath != "" {
		if err := models.Backup(ctx, e.db, e.backupPath); err != nil {
			logger.Warn(fmt.Sprintf("Sync: backup failed, continuing: %s", err.Error()))
		}
	}

	started := e.now()
	passes := e.passes(mode)
	var errs []error
	for _, p := range passes {
		if err := p(ctx, &res); err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	if res.total() == 0 {
		res.Message = MessageNothingSynced
	}
	logger.Info(fmt.Sprintf("Sync: %s pass finished in %s, synced=%v deleted=%v failed=%d",
		mode, e.now().Sub(started).Round(time.Millisecond), res.Synced, res.Deleted, res.Failed))

	// nothing to reload when no collection could be enumerated
	if len(errs) < len(passes) && e.reloader != nil {
		if err := e.reloader.Reload(ctx); err != nil {
			logger.Warn(fmt.Sprintf("Sync: reload after %s pass failed: %s", mode, err.Error()))
		}
	}
	return res, errors.Join(errs...)
}

type pass func(ctx context.Context, res *Result) error

func (e *Engine) passes(mode string) []pass {
	if mode == ModeFull {
		return []pass{e.syncTeachers(true), e.syncClasses, e.syncStudents(true), e.syncSessions, e.syncRooms, e.syncKiosks}
	}
	return []pass{e.syncTeachers(false), e.syncClasses, e.syncStudents(false), e.syncKiosks}
}

func (e *Engine) ownKioskID() string {
	if e.kiosk == nil {
		return ""
	}
	return e.kiosk.KioskID()
}
