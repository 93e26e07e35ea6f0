package scheduler

import (
	"fmt"
	"time"

	"github.com/LuminLynx/misty/pkg/logger"
	"github.com/go-co-op/gocron"
)

// Refresher is the work the scheduler drives on each tick.
type Refresher interface {
	RefreshNow()
	IsStarted() bool
}

// PowerGuard reports whether background work should be skipped, for
// example on battery-constrained hosts. A skipped run still counts as
// a successful run.
type PowerGuard interface {
	Constrained() bool
}

// StaticGuard is a configuration-driven PowerGuard: true skips every
// scheduled refresh. For hosts without a runtime power signal.
type StaticGuard bool

// Constrained implements PowerGuard.
func (g StaticGuard) Constrained() bool { return bool(g) }

// Config holds the scheduler settings.
type Config struct {
	IntervalMinutes int  `toml:"interval_minutes"`
	Enabled         bool `toml:"enabled"`
	PowerSave       bool `toml:"power_save"` // Skip scheduled refreshes to conserve power
}

// Validate checks the scheduler configuration. Intervals below the
// 15-minute floor are raised to it.
func (c *Config) Validate() error {
	if c.IntervalMinutes < 0 {
		return fmt.Errorf("scheduler interval cannot be negative")
	}
	if c.IntervalMinutes == 0 {
		c.IntervalMinutes = 30
	}
	if c.IntervalMinutes < 15 {
		c.IntervalMinutes = 15
	}
	return nil
}

// Scheduler drives periodic background weather refreshes.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	guard     PowerGuard
	config    Config
	logger    *logger.Logger
}

// New creates a scheduler. guard may be nil when the host has no power
// constraints to honor.
func New(cfg Config, refresher Refresher, guard PowerGuard, log *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		guard:     guard,
		config:    cfg,
		logger:    log.Named("scheduler"),
	}
}

// Start schedules the periodic refresh job and starts the underlying
// scheduler. Overlapping runs are collapsed to one.
func (s *Scheduler) Start() error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler disabled, periodic refresh off")
		return nil
	}

	s.scheduler.SingletonModeAll()
	_, err := s.scheduler.Every(s.config.IntervalMinutes).Minutes().Do(s.runOnce)
	if err != nil {
		return fmt.Errorf("scheduling refresh job: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info("Scheduler started",
		logger.Int("interval_minutes", s.config.IntervalMinutes))
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runOnce() {
	if s.guard != nil && s.guard.Constrained() {
		s.logger.Info("Refresh skipped, host is power constrained")
		return
	}
	if !s.refresher.IsStarted() {
		s.logger.Debug("Refresh skipped, weather service not running")
		return
	}

	s.logger.Debug("Running scheduled weather refresh")
	s.refresher.RefreshNow()
}
