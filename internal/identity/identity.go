// Package identity decides which kiosk record this device is.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/CLDWare/attendance-kiosk/internal/mapping"
	"github.com/CLDWare/attendance-kiosk/internal/remote"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

// FirstKioskNumber is the lowest number handed out to a new kiosk
const FirstKioskNumber = 201

const StatusOnline = "online"

var kioskPattern = regexp.MustCompile(`(?i)kiosk[-_]?([0-9]+)$`)

// Probe reads the hardware fingerprint
type Probe interface {
	Serial() string
	Hostname() string
	IPAddress() string
	MACAddress() string
}

type Resolver struct {
	db     *gorm.DB
	remote remote.Store
	probe  Probe
	now    func() time.Time

	mu      sync.Mutex
	current *models.Kiosk
}

func NewResolver(db *gorm.DB, store remote.Store, probe Probe) *Resolver {
	return &Resolver{
		db:     db,
		remote: store,
		probe:  probe,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NextKioskID returns kiosk-<n> where n is one more than the highest
// numbered id, and never below FirstKioskNumber.
func NextKioskID(ids []string) string {
	next := FirstKioskNumber
	for _, id := range ids {
		m := kioskPattern.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return fmt.Sprintf("kiosk-%d", next)
}

// KioskID returns the resolved id, or "" before a successful Resolve
func (r *Resolver) KioskID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return ""
	}
	return r.current.ID
}

// Current returns the resolved kiosk row, re-read from the local store so
// changes made by reconciliation are visible. It resolves on first use.
func (r *Resolver) Current(ctx context.Context) (*models.Kiosk, error) {
	id := r.KioskID()
	if id == "" {
		return r.Resolve(ctx)
	}
	kiosk, err := gorm.G[models.Kiosk](r.db).Where("id = ?", id).First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.Resolve(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &kiosk, nil
}

// Resolve finds or creates this device's kiosk row. A nil kiosk means the
// device is unregistered; the error says why.
func (r *Resolver) Resolve(ctx context.Context) (*models.Kiosk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kiosk, err := r.resolve(ctx)
	if err != nil {
		logger.Err(fmt.Sprintf("Identity: resolve failed: %s", err.Error()))
		return nil, err
	}
	r.current = kiosk
	return kiosk, nil
}

func (r *Resolver) resolve(ctx context.Context) (*models.Kiosk, error) {
	serial := r.probe.Serial()
	hostname := r.probe.Hostname()

	if serial != "" {
		kiosk, err := gorm.G[models.Kiosk](r.db).Where("serial_number = ?", serial).First(ctx)
		if err == nil {
			return &kiosk, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup by serial: %w", err)
		}
	}

	if hostname != "" {
		kiosk, err := gorm.G[models.Kiosk](r.db).Where("id = ? OR name = ?", hostname, hostname).First(ctx)
		if err == nil {
			return &kiosk, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup by hostname: %w", err)
		}
	}

	if serial != "" && r.remote.Configured() {
		docs, err := r.remote.GetByField(ctx, remote.Kiosks, "serialNumber", serial)
		if err != nil {
			logger.Warn(fmt.Sprintf("Identity: remote lookup failed: %s", err.Error()))
		} else if len(docs) > 0 {
			kiosk := mapping.Kiosk(docs[0])
			if err := r.save(ctx, &kiosk); err != nil {
				return nil, err
			}
			logger.Info(fmt.Sprintf("Identity: adopted remote kiosk %s", kiosk.ID))
			return &kiosk, nil
		}
	}

	return r.create(ctx, serial, hostname)
}

// create allocates a new id over local and remote ids and persists it
func (r *Resolver) create(ctx context.Context, serial, hostname string) (*models.Kiosk, error) {
	ids, err := r.knownIDs(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	id := NextKioskID(ids)
	kiosk := models.Kiosk{
		ID:          id,
		Name:        id,
		IPAddress:   r.probe.IPAddress(),
		MACAddress:  r.probe.MACAddress(),
		Status:      StatusOnline,
		InstalledAt: now,
		UpdatedAt:   now,
	}
	if hostname != "" {
		kiosk.Name = hostname
	}
	if serial != "" {
		kiosk.SerialNumber = &serial
	}
	kiosk.RawDoc = mapping.Raw(mapping.KioskDoc(kiosk))

	if r.remote.Configured() {
		if err := r.remote.Set(ctx, remote.Kiosks, kiosk.ID, mapping.KioskDoc(kiosk)); err != nil {
			logger.Warn(fmt.Sprintf("Identity: remote create of %s failed, continuing locally: %s", kiosk.ID, err.Error()))
		}
	}

	if err := r.save(ctx, &kiosk); err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("Identity: registered new kiosk %s", kiosk.ID))
	return &kiosk, nil
}

func (r *Resolver) knownIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.Kiosk{}).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list local kiosk ids: %w", err)
	}
	if r.remote.Configured() {
		docs, err := r.remote.ListAll(ctx, remote.Kiosks)
		if err != nil {
			logger.Warn(fmt.Sprintf("Identity: remote kiosk listing failed: %s", err.Error()))
		}
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

func (r *Resolver) save(ctx context.Context, kiosk *models.Kiosk) error {
	if err := r.db.WithContext(ctx).Save(kiosk).Error; err != nil {
		return fmt.Errorf("save kiosk %s: %w", kiosk.ID, err)
	}
	return nil
}

// UpdateNetworkInfo stores the current IP and MAC on this kiosk's row,
// creating the row when none exists, then patches the remote document.
func (r *Resolver) UpdateNetworkInfo(ctx context.Context) (*models.Kiosk, error) {
	kiosk, err := r.Current(ctx)
	if err != nil {
		return nil, err
	}

	kiosk.IPAddress = r.probe.IPAddress()
	kiosk.MACAddress = r.probe.MACAddress()
	kiosk.UpdatedAt = r.now()

	err = r.db.WithContext(ctx).Model(&models.Kiosk{}).Where("id = ?", kiosk.ID).Updates(map[string]any{
		"ip_address":  kiosk.IPAddress,
		"mac_address": kiosk.MACAddress,
		"updated_at":  kiosk.UpdatedAt,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("update network info: %w", err)
	}

	if r.remote.Configured() {
		patch := map[string]any{
			"ipAddress":  kiosk.IPAddress,
			"macAddress": kiosk.MACAddress,
			"updatedAt":  kiosk.UpdatedAt,
		}
		if err := r.remote.Update(ctx, remote.Kiosks, kiosk.ID, patch); err != nil {
			logger.Warn(fmt.Sprintf("Identity: remote network patch failed: %s", err.Error()))
		}
	}
	return kiosk, nil
}
