package reconcile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CLDWare/attendance-kiosk/config"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

const passTimeout = 10 * time.Minute

// Scheduler runs partial passes on an interval and full passes on an
// optional cron schedule. A run that finds another one in progress is
// skipped rather than queued.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	schedule string

	busy   atomic.Bool
	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(engine *Engine, cfg config.SyncConfig) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{engine: engine, interval: interval, schedule: cfg.FullSyncSchedule}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	if s.schedule != "" {
		c := cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(logger.ErrorLogger)),
			cron.SkipIfStillRunning(cron.PrintfLogger(logger.WarningLogger)),
		))
		if _, err := c.AddFunc(s.schedule, func() { s.Run(ModeFull) }); err != nil {
			return fmt.Errorf("invalid full sync schedule %q: %w", s.schedule, err)
		}
		c.Start()
		s.cron = c
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Run(ModePartial)
			}
		}
	}()

	logger.Info(fmt.Sprintf("Sync: scheduler started, partial every %s, full schedule %q", s.interval, s.schedule))
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}
	s.cancel = nil
}

// Run performs one pass unless another scheduled pass is still running. It
// reports whether the pass ran.
func (s *Scheduler) Run(mode string) bool {
	if !s.busy.CompareAndSwap(false, true) {
		logger.Debug(fmt.Sprintf("Sync: %s pass skipped, previous pass still running", mode))
		return false
	}
	defer s.busy.Store(false)
	defer func() {
		if r := recover(); r != nil {
			logger.Err(fmt.Sprintf("Sync: %s pass panicked: %v", mode, r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	var err error
	if mode == ModeFull {
		_, err = s.engine.Full(ctx)
	} else {
		_, err = s.engine.Partial(ctx)
	}
	if err != nil {
		logger.Warn(fmt.Sprintf("Sync: scheduled %s pass failed: %s", mode, err.Error()))
	}
	return true
}

// Trigger starts a partial pass in the background, for example after the
// network came back.
func (s *Scheduler) Trigger() {
	go s.Run(ModePartial)
}
