// Package cron runs the background maintenance jobs: expiring pending
// confirmations and rolling recurring reminders forward.
package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gmsas95/myrai-care/internal/config"
	"github.com/gmsas95/myrai-care/internal/skills/health"
)

// Sweeper drops expired pending confirmations
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// ReminderStore is the part of the health repository the runner moves forward
type ReminderStore interface {
	DueReminders(ctx context.Context, now time.Time) ([]health.Reminder, error)
	UpdateReminderSchedule(ctx context.Context, reminder *health.Reminder) error
}

// Config holds cron runner configuration
type Config struct {
	SweepSpec    string
	ReminderSpec string
	Location     *time.Location
	// JobTimeout bounds a single job run
	JobTimeout time.Duration
}

// ConfigFrom converts scheduler settings
func ConfigFrom(cfg config.SchedulerConfig) (Config, error) {
	c := Config{SweepSpec: cfg.SweepSpec, ReminderSpec: cfg.ReminderSpec}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return Config{}, fmt.Errorf("scheduler timezone: %w", err)
		}
		c.Location = loc
	}
	return c, nil
}

// Runner manages scheduled job execution
type Runner struct {
	config    Config
	sweeper   Sweeper
	reminders ReminderStore
	logger    *zap.Logger
	now       func() time.Time

	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	mu      sync.RWMutex
}

// NewRunner creates a new cron runner. Either job source may be nil.
func NewRunner(cfg Config, sweeper Sweeper, reminders ReminderStore, logger *zap.Logger) *Runner {
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = "@every 1m"
	}
	if cfg.ReminderSpec == "" {
		cfg.ReminderSpec = "@every 1m"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		config:    cfg,
		sweeper:   sweeper,
		reminders: reminders,
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the jobs
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("cron runner already running")
	}

	c := cron.New(
		cron.WithLocation(r.config.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if r.sweeper != nil {
		if _, err := c.AddFunc(r.config.SweepSpec, r.runSweep); err != nil {
			return fmt.Errorf("schedule confirmation sweep %q: %w", r.config.SweepSpec, err)
		}
	}
	if r.reminders != nil {
		if _, err := c.AddFunc(r.config.ReminderSpec, r.runReminders); err != nil {
			return fmt.Errorf("schedule reminder roll %q: %w", r.config.ReminderSpec, err)
		}
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.cron = c
	r.running = true
	c.Start()

	r.logger.Info("Cron runner started",
		zap.String("sweep", r.config.SweepSpec),
		zap.String("reminders", r.config.ReminderSpec),
		zap.String("location", r.config.Location.String()))
	return nil
}

// Stop stops the cron runner and waits for running jobs
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	c, cancel := r.cron, r.cancel
	r.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	r.logger.Info("Cron runner stopped")
}

// IsRunning returns whether the runner is active
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

func (r *Runner) jobContext() (context.Context, context.CancelFunc) {
	r.mu.RLock()
	parent := r.ctx
	r.mu.RUnlock()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, r.config.JobTimeout)
}

func (r *Runner) runSweep() {
	ctx, cancel := r.jobContext()
	defer cancel()
	if _, err := r.Sweep(ctx); err != nil {
		r.logger.Error("Confirmation sweep failed", zap.Error(err))
	}
}

func (r *Runner) runReminders() {
	ctx, cancel := r.jobContext()
	defer cancel()
	if _, err := r.RollReminders(ctx); err != nil {
		r.logger.Error("Reminder roll failed", zap.Error(err))
	}
}

// Sweep drops expired confirmations once
func (r *Runner) Sweep(ctx context.Context) (int, error) {
	if r.sweeper == nil {
		return 0, nil
	}
	n, err := r.sweeper.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info("Expired confirmations dropped", zap.Int("count", n))
	}
	return n, nil
}

// RollReminders advances every due reminder past now. Recurring reminders
// get their next fire time; one-time reminders are deactivated. Reminders
// are not delivered from here.
func (r *Runner) RollReminders(ctx context.Context) (int, error) {
	if r.reminders == nil {
		return 0, nil
	}
	now := r.now().In(r.config.Location)

	due, err := r.reminders.DueReminders(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("load due reminders: %w", err)
	}

	rolled := 0
	for i := range due {
		reminder := &due[i]
		health.Advance(reminder, now)
		if err := r.reminders.UpdateReminderSchedule(ctx, reminder); err != nil {
			r.logger.Error("Failed to update reminder schedule",
				zap.String("reminder_id", reminder.ID),
				zap.Error(err))
			continue
		}
		rolled++
		r.logger.Debug("Reminder rolled forward",
			zap.String("reminder_id", reminder.ID),
			zap.String("user_id", reminder.UserID),
			zap.Bool("active", reminder.Active))
	}
	return rolled, nil
}
