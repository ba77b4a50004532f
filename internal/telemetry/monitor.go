// Package telemetry polls the kiosk's health sensors and raises a
// notification whenever a condition changes.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/internal/notify"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

// Notification types
const (
	TypeWarning = "warning"
	TypeAlert   = "alert"
	TypeSuccess = "success"
)

// Sensors is implemented by hwinfo.Prober
type Sensors interface {
	CPUTemp() *float64
	Undervolted(ctx context.Context) bool
	Online(ctx context.Context) bool
}

type Notifier interface {
	Notify(ctx context.Context, in notify.Input) (bool, error)
}

// Syncer is asked for a background pass when the network comes back
type Syncer interface {
	Trigger()
}

type Status struct {
	Online      bool      `json:"online"`
	Undervolt   bool      `json:"undervolt"`
	TempC       *float64  `json:"temp_c"`
	Hot         *bool     `json:"hot"`
	LastChecked time.Time `json:"last_checked"`
}

type Monitor struct {
	sensors  Sensors
	notifier Notifier
	syncer   Syncer
	interval time.Duration
	hotAt    float64
	now      func() time.Time

	mu      sync.RWMutex
	status  Status
	checked bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(sensors Sensors, notifier Notifier, cfg config.MonitorConfig) *Monitor {
	m := &Monitor{
		sensors:  sensors,
		notifier: notifier,
		interval: cfg.Interval,
		hotAt:    cfg.HotThresholdC,
		now:      time.Now,
	}
	if m.interval <= 0 {
		m.interval = 15 * time.Second
	}
	if m.hotAt <= 0 {
		m.hotAt = 75
	}
	return m
}

func (m *Monitor) SetSyncer(s Syncer) { m.syncer = s }

// Start checks once right away, reporting conditions already present at
// boot, then keeps polling in the background.
func (m *Monitor) Start() {
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		m.safeCheck(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.safeCheck(ctx)
			}
		}
	}()
}

func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}

func (m *Monitor) safeCheck(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Err(fmt.Sprintf("Monitor: check panicked: %v", r))
		}
	}()
	m.Check(ctx)
}

// Check reads every sensor once and emits notifications for transitions.
// The first check reports any problem that is already present.
func (m *Monitor) Check(ctx context.Context) Status {
	next := Status{
		Online:      m.sensors.Online(ctx),
		Undervolt:   m.sensors.Undervolted(ctx),
		TempC:       m.sensors.CPUTemp(),
		LastChecked: m.now().UTC(),
	}
	if next.TempC != nil {
		hot := *next.TempC >= m.hotAt
		next.Hot = &hot
	}

	m.mu.Lock()
	prev, first := m.status, !m.checked
	m.status = next
	m.checked = true
	m.mu.Unlock()

	if first {
		m.startup(ctx, next)
		return next
	}
	m.transitions(ctx, prev, next)
	return next
}

func (m *Monitor) startup(ctx context.Context, s Status) {
	if s.Hot != nil && *s.Hot {
		m.emit(ctx, "startup-device-hot", "Device overheating", TypeWarning, tempDetails(s))
	}
	if s.Undervolt {
		m.emit(ctx, "startup-low-voltage", "Low voltage detected", TypeWarning, nil)
	}
	if !s.Online {
		m.emit(ctx, "startup-internet-lost", "Internet connection lost", TypeAlert, nil)
	}
}

func (m *Monitor) transitions(ctx context.Context, prev, next Status) {
	// an unreadable sensor is not a transition
	if prev.Hot != nil && next.Hot != nil && *prev.Hot != *next.Hot {
		if *next.Hot {
			m.emit(ctx, "device-hot", "Device overheating", TypeWarning, tempDetails(next))
		} else {
			m.emit(ctx, "device-temp-normal", "Device temperature normalized", TypeSuccess, tempDetails(next))
		}
	}

	switch {
	case !prev.Online && next.Online:
		m.emit(ctx, "internet-restored", "Internet restored", TypeSuccess, nil)
		if m.syncer != nil {
			m.syncer.Trigger()
		}
	case prev.Online && !next.Online:
		m.emit(ctx, "internet-lost", "Internet connection lost", TypeAlert, nil)
	}

	switch {
	case !prev.Undervolt && next.Undervolt:
		m.emit(ctx, "low-voltage", "Low voltage detected", TypeWarning, nil)
	case prev.Undervolt && !next.Undervolt:
		m.emit(ctx, "low-voltage-restored", "Low voltage restored", TypeSuccess, nil)
	}
}

func tempDetails(s Status) map[string]any {
	if s.TempC == nil {
		return nil
	}
	return map[string]any{"tempC": *s.TempC}
}

func (m *Monitor) emit(ctx context.Context, prefix, title, kind string, details map[string]any) {
	logger.Info(fmt.Sprintf("Monitor: %s", title))
	if m.notifier == nil {
		return
	}
	now := m.now().UTC()
	_, err := m.notifier.Notify(ctx, notify.Input{
		NotifID:   fmt.Sprintf("%s-%d", prefix, now.Unix()),
		Title:     title,
		Type:      kind,
		Details:   details,
		Timestamp: now,
	})
	if err != nil {
		logger.Warn(fmt.Sprintf("Monitor: notification %s failed: %s", prefix, err.Error()))
	}
}

// Status returns the last reading. Before the first check it is the zero
// value.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
