// Package outbox publishes finalized attendance sessions to the remote store.
// Sessions are queued locally in the same transaction that finalizes them and
// drained in the background with a bounded number of attempts.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/remote"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

var ErrSessionMissing = errors.New("attendance session no longer exists")

// Enqueue queues a finalized session. Pass the transaction that finalizes
// the session so both commit together.
func Enqueue(ctx context.Context, tx *gorm.DB, sessionID uint) (*models.OutboxEntry, error) {
	now := time.Now().UTC()
	entry := models.OutboxEntry{
		LocalSessionID: sessionID,
		QueuedAt:       now,
		Status:         models.OutboxQueued,
		UpdatedAt:      now,
	}
	if err := gorm.G[models.OutboxEntry](tx).Create(ctx, &entry); err != nil {
		return nil, fmt.Errorf("enqueue session %d: %w", sessionID, err)
	}
	return &entry, nil
}

// StudentCollection is the per-student attendance subcollection
func StudentCollection(studentID string) string {
	return remote.Students + "/" + studentID + "/attendance"
}

// SessionDoc is the remote representation of a local session
func SessionDoc(s models.AttendanceSession) map[string]any {
	doc := map[string]any{
		"classId":         s.ClassID,
		"className":       s.ClassName,
		"teacherId":       s.TeacherID,
		"teacherName":     s.TeacherName,
		"roomId":          s.RoomID,
		"date":            s.Date,
		"isActive":        s.IsActive == models.ActiveTrue,
		"studentsPresent": []string(s.StudentsPresent),
		"studentsAbsent":  []string(s.StudentsAbsent),
		"timeStarted":     s.TimeStarted,
		"localSessionId":  s.ID,
	}
	if s.TimeEnded != nil {
		doc["timeEnded"] = *s.TimeEnded
	}
	return doc
}

// Report summarizes one drain pass
type Report struct {
	Configured bool `json:"configured"`
	Processed  int  `json:"processed"`
	Synced     int  `json:"synced"`
	Requeued   int  `json:"requeued"`
	Failed     int  `json:"failed"`
}

// Summary counts outbox rows by status
type Summary struct {
	Total  int64 `json:"total"`
	Queued int64 `json:"queued"`
	Failed int64 `json:"failed"`
	Synced int64 `json:"synced"`
}

type StatusReport struct {
	Entries []models.OutboxEntry `json:"entries"`
	Summary Summary              `json:"summary"`
}

type Drainer struct {
	db     *gorm.DB
	remote remote.Store
	cfg    config.OutboxConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDrainer(db *gorm.DB, store remote.Store, cfg config.OutboxConfig) *Drainer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > remote.MaxBatch {
		cfg.BatchSize = remote.MaxBatch
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Drainer{db: db, remote: store, cfg: cfg}
}

// Start runs DrainOnce on the configured interval until Stop
func (d *Drainer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.tick(ctx)
			}
		}
	}()
}

func (d *Drainer) Stop() {
	if d.cancel != nil {
		d.cancel()
		<-d.done
		d.cancel = nil
	}
}

func (d *Drainer) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Err(fmt.Sprintf("Outbox: drain panicked: %v", r))
		}
	}()
	report, err := d.DrainOnce(ctx)
	if err != nil {
		logger.Err(fmt.Sprintf("Outbox: drain failed: %s", err.Error()))
		return
	}
	if report.Processed > 0 {
		logger.Info(fmt.Sprintf("Outbox: processed %d rows, %d synced, %d requeued, %d failed",
			report.Processed, report.Synced, report.Requeued, report.Failed))
	}
}

// DrainOnce publishes every eligible row in id order. A failing row is
// recorded and skipped; the error return is reserved for the selection
// query itself.
func (d *Drainer) DrainOnce(ctx context.Context) (Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	report := Report{Configured: d.remote.Configured()}

	rows, err := gorm.G[models.OutboxEntry](d.db).
		Where("status = ? OR (status = ? AND attempts < ?)", models.OutboxQueued, models.OutboxFailed, d.cfg.MaxAttempts).
		Order("id").
		Find(ctx)
	if err != nil {
		return report, fmt.Errorf("select outbox rows: %w", err)
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		report.Processed++

		err := d.deliver(ctx, row)
		status, attempts := d.next(row, err)
		switch status {
		case models.OutboxSynced:
			report.Synced++
		case models.OutboxQueued:
			report.Requeued++
		default:
			report.Failed++
		}
		if err != nil {
			logger.Warn(fmt.Sprintf("Outbox: row %d (session %d) attempt %d: %s", row.ID, row.LocalSessionID, attempts, err.Error()))
		}
		if uerr := d.record(ctx, row.ID, status, attempts, err); uerr != nil {
			logger.Err(fmt.Sprintf("Outbox: failed to record row %d: %s", row.ID, uerr.Error()))
		}
	}
	return report, nil
}

// next decides the row's status and attempt count after a delivery
func (d *Drainer) next(row models.OutboxEntry, err error) (string, int) {
	attempts := row.Attempts + 1
	switch {
	case err == nil:
		return models.OutboxSynced, attempts
	case errors.Is(err, ErrSessionMissing):
		return models.OutboxFailed, max(attempts, d.cfg.MaxAttempts)
	case errors.Is(err, remote.ErrNotConfigured):
		return models.OutboxFailed, attempts
	case attempts < d.cfg.MaxAttempts:
		return models.OutboxQueued, attempts
	default:
		return models.OutboxFailed, attempts
	}
}

func (d *Drainer) record(ctx context.Context, id uint, status string, attempts int, cause error) error {
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	return d.db.WithContext(ctx).Model(&models.OutboxEntry{}).Where("id = ?", id).Updates(map[string]any{
		"status":     status,
		"attempts":   attempts,
		"last_error": lastError,
		"updated_at": time.Now().UTC(),
	}).Error
}

// deliver writes the session document and one document per student entry
func (d *Drainer) deliver(ctx context.Context, row models.OutboxEntry) error {
	session, err := gorm.G[models.AttendanceSession](d.db).Where("id = ?", row.LocalSessionID).First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSessionMissing
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !d.remote.Configured() {
		return remote.ErrNotConfigured
	}

	entries, err := gorm.G[models.AttendanceEntry](d.db).Where("session_id = ?", session.ID).Order("id").Find(ctx)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}

	meta := ClassMeta{ClassID: session.ClassID}
	if class, err := gorm.G[models.Class](d.db).Where("id = ?", session.ClassID).First(ctx); err == nil {
		meta = MetaOf(class)
	}
	docID := DocID(meta, session.Date)

	writes := make([]remote.Write, 0, len(entries)+1)
	writes = append(writes, remote.Write{
		Collection: remote.AttendanceSessions,
		ID:         docID,
		Data:       SessionDoc(session),
	})
	for _, e := range entries {
		var logged any
		if e.TimeLogged != nil {
			logged = *e.TimeLogged
		}
		writes = append(writes, remote.Write{
			Collection: StudentCollection(e.StudentID),
			ID:         docID,
			Data: map[string]any{
				"classId":    session.ClassID,
				"teacherId":  session.TeacherID,
				"roomId":     session.RoomID,
				"date":       session.Date,
				"timeLogged": logged,
				"status":     e.Status,
			},
		})
	}

	for _, chunk := range remote.Chunk(writes, d.cfg.BatchSize) {
		if err := d.remote.BatchSet(ctx, chunk); err != nil {
			return fmt.Errorf("batch write: %w", err)
		}
	}
	return nil
}

// Status returns the newest rows and counts per status
func (d *Drainer) Status(ctx context.Context, limit int) (StatusReport, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var report StatusReport

	entries, err := gorm.G[models.OutboxEntry](d.db).Order("id DESC").Limit(limit).Find(ctx)
	if err != nil {
		return report, fmt.Errorf("list outbox rows: %w", err)
	}
	report.Entries = entries

	var counts []struct {
		Status string
		Count  int64
	}
	err = d.db.WithContext(ctx).Model(&models.OutboxEntry{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&counts).Error
	if err != nil {
		return report, fmt.Errorf("count outbox rows: %w", err)
	}
	for _, c := range counts {
		report.Summary.Total += c.Count
		switch c.Status {
		case models.OutboxQueued:
			report.Summary.Queued = c.Count
		case models.OutboxFailed:
			report.Summary.Failed = c.Count
		case models.OutboxSynced:
			report.Summary.Synced = c.Count
		}
	}
	return report, nil
}

// PruneSynced deletes synced rows last touched before cutoff
func (d *Drainer) PruneSynced(ctx context.Context, cutoff time.Time) (int, error) {
	return gorm.G[models.OutboxEntry](d.db).Where("status = ? AND updated_at < ?", models.OutboxSynced, cutoff).Delete(ctx)
}
