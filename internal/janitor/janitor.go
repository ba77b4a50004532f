package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

// Notifications is implemented by notify.Service
type Notifications interface {
	PushPending(ctx context.Context) (int, error)
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// Outbox is implemented by outbox.Drainer
type Outbox interface {
	PruneSynced(ctx context.Context, cutoff time.Time) (int, error)
}

type Janitor struct {
	cfg              *config.Config
	notifications    Notifications
	outbox           Outbox
	announceNoAction bool
	now              func() time.Time
	cancel           context.CancelFunc
}

func NewJanitor(cfg *config.Config, notifications Notifications, outbox Outbox, announceNoAction bool) *Janitor {
	return &Janitor{
		cfg:              cfg,
		notifications:    notifications,
		outbox:           outbox,
		announceNoAction: announceNoAction,
		now:              time.Now,
	}
}

func (jan *Janitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	jan.cancel = cancel

	go func() {
		shortTicker := time.NewTicker(jan.cfg.Janitor.ShortCleanInterval)
		defer shortTicker.Stop()
		fullTicker := time.NewTicker(jan.cfg.Janitor.FullCleanInterval)
		defer fullTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-shortTicker.C:
				jan.RunShort()
			case <-fullTicker.C:
				jan.RunFull()
			}
		}
	}()
}

func (jan *Janitor) Stop() {
	if jan.cancel != nil {
		jan.cancel()
		jan.cancel = nil
	}
}

func (jan *Janitor) RunShort() {
	logger.Debug("Janitor: Running short cleaning sequence.")
	jan.PushNotifications()
}

func (jan *Janitor) RunFull() {
	logger.Info("Janitor: Running full cleaning sequence.")
	jan.RunShort()

	jan.PruneHistory()
}

// PushNotifications retries notifications that have not reached the remote
// store yet
func (jan *Janitor) PushNotifications() {
	if jan.notifications == nil {
		return
	}
	pushed, err := jan.notifications.PushPending(context.Background())
	if err != nil {
		logger.Err(fmt.Sprintf("Janitor: Error while pushing notifications: %s", err.Error()))
		return
	}
	if jan.announceNoAction || pushed != 0 {
		logger.Info(fmt.Sprintf("Janitor: pushed %d pending notifications", pushed))
	}
}

// PruneHistory deletes synced outbox rows and notifications older than the
// retention window. Rows that never synced are kept.
func (jan *Janitor) PruneHistory() {
	ctx := context.Background()
	cutoff := jan.now().Add(-jan.cfg.Janitor.Retention)

	if jan.outbox != nil {
		deleted, err := jan.outbox.PruneSynced(ctx, cutoff)
		if err != nil {
			logger.Err(fmt.Sprintf("Janitor: Error while pruning the outbox: %s", err.Error()))
		} else if jan.announceNoAction || deleted != 0 {
			logger.Info(fmt.Sprintf("Janitor: Deleted %d synced outbox rows", deleted))
		}
	}

	if jan.notifications != nil {
		deleted, err := jan.notifications.Prune(ctx, cutoff)
		if err != nil {
			logger.Err(fmt.Sprintf("Janitor: Error while pruning notifications: %s", err.Error()))
		} else if jan.announceNoAction || deleted != 0 {
			logger.Info(fmt.Sprintf("Janitor: Deleted %d synced notifications", deleted))
		}
	}
}
