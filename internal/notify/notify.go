// Package notify records kiosk notifications locally and forwards them to
// the remote store and, when configured, an MQTT broker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CLDWare/attendance-kiosk/internal/remote"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

const (
	// MaxList caps List results
	MaxList = 100
	// maxPushAttempts stops retrying a notification the remote keeps rejecting
	maxPushAttempts = 5
	pushBatch       = 100
)

// Publisher forwards freshly inserted notifications
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Input describes a notification to record. An empty NotifID gets a random
// one, which makes the insert non-idempotent.
type Input struct {
	NotifID   string
	Title     string
	Type      string
	Details   map[string]any
	Timestamp time.Time
}

type Service struct {
	db        *gorm.DB
	remote    remote.Store
	publisher Publisher
	kioskID   atomic.Value
	pushMu    sync.Mutex
}

func NewService(db *gorm.DB, store remote.Store, publisher Publisher) *Service {
	s := &Service{db: db, remote: store, publisher: publisher}
	s.kioskID.Store("")
	return s
}

// SetKiosk attaches the resolved kiosk id to future notifications
func (s *Service) SetKiosk(id string) {
	s.kioskID.Store(id)
}

func (s *Service) kiosk() string {
	return s.kioskID.Load().(string)
}

// Notify inserts the notification unless one with the same NotifID already
// exists. It reports whether a row was written.
func (s *Service) Notify(ctx context.Context, in Input) (bool, error) {
	if in.NotifID == "" {
		in.NotifID = uuid.NewString()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}

	details, err := json.Marshal(in.Details)
	if err != nil {
		return false, fmt.Errorf("encode details: %w", err)
	}

	kioskID := s.kiosk()
	n := models.Notification{
		NotifID:    in.NotifID,
		KioskID:    kioskID,
		Room:       s.roomFor(ctx, kioskID),
		Title:      in.Title,
		Type:       in.Type,
		Details:    details,
		Timestamp:  in.Timestamp,
		SyncStatus: models.NotificationPending,
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "notif_id"}}, DoNothing: true}).
		Create(&n)
	if result.Error != nil {
		return false, fmt.Errorf("insert notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	logger.Info(fmt.Sprintf("Notify: %s (%s)", n.Title, n.NotifID))
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, n); err != nil {
			logger.Warn(fmt.Sprintf("Notify: publish %s failed: %s", n.NotifID, err.Error()))
		}
	}
	return true, nil
}

// roomFor resolves the room name assigned to the kiosk, or "" when unknown
func (s *Service) roomFor(ctx context.Context, kioskID string) string {
	if kioskID == "" {
		return ""
	}
	kiosk, err := gorm.G[models.Kiosk](s.db).Where("id = ?", kioskID).First(ctx)
	if err != nil || kiosk.AssignedRoomID == "" {
		return ""
	}
	room, err := gorm.G[models.Room](s.db).Where("id = ?", kiosk.AssignedRoomID).First(ctx)
	if err != nil || room.Name == "" {
		return kiosk.AssignedRoomID
	}
	return room.Name
}

// PushPending sends unsynced notifications to the remote store using the
// notif_id as document id, so a repeated push overwrites. Concurrent calls
// are collapsed into the one already running.
func (s *Service) PushPending(ctx context.Context) (int, error) {
	if !s.remote.Configured() {
		return 0, nil
	}
	if !s.pushMu.TryLock() {
		return 0, nil
	}
	defer s.pushMu.Unlock()

	var pending []models.Notification
	err := s.db.WithContext(ctx).
		Where("sync_status <> ? AND attempts < ?", models.NotificationSynced, maxPushAttempts).
		Order("id").Limit(pushBatch).
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("select pending notifications: %w", err)
	}

	pushed := 0
	for _, n := range pending {
		now := time.Now().UTC()
		updates := map[string]any{
			"attempts":        n.Attempts + 1,
			"last_attempt_at": now,
		}
		if err := s.remote.Set(ctx, remote.Notifications, n.NotifID, remoteDoc(n)); err != nil {
			updates["sync_status"] = models.NotificationFailed
			updates["last_error"] = err.Error()
			logger.Warn(fmt.Sprintf("Notify: push %s failed: %s", n.NotifID, err.Error()))
		} else {
			updates["sync_status"] = models.NotificationSynced
			updates["fs_id"] = n.NotifID
			updates["last_error"] = ""
			updates["last_notified_at"] = now
			pushed++
		}
		if err := s.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", n.ID).Updates(updates).Error; err != nil {
			logger.Err(fmt.Sprintf("Notify: record push of %s: %s", n.NotifID, err.Error()))
		}
	}
	return pushed, nil
}

func remoteDoc(n models.Notification) map[string]any {
	var details any
	if len(n.Details) > 0 {
		json.Unmarshal(n.Details, &details)
	}
	return map[string]any{
		"notif_id":  n.NotifID,
		"kioskId":   n.KioskID,
		"room":      n.Room,
		"title":     n.Title,
		"type":      n.Type,
		"details":   details,
		"timestamp": n.Timestamp,
		"createdAt": n.CreatedAt,
	}
}

// List returns the newest notifications first
func (s *Service) List(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > MaxList {
		limit = MaxList
	}
	return gorm.G[models.Notification](s.db).Order("id DESC").Limit(limit).Find(ctx)
}

// Prune deletes synced notifications created before cutoff
func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	return gorm.G[models.Notification](s.db).
		Where("sync_status = ? AND created_at < ?", models.NotificationSynced, cutoff).
		Delete(ctx)
}
