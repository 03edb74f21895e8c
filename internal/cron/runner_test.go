package cron

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gmsas95/myrai-care/internal/config"
	"github.com/gmsas95/myrai-care/internal/skills/health"
)

var refNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

type countingSweeper struct {
	calls int32
	err   error
}

func (s *countingSweeper) SweepExpired(context.Context) (int, error) {
	atomic.AddInt32(&s.calls, 1)
	return 2, s.err
}

func setupHealthStore(t *testing.T) *health.Store {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	hs, err := health.NewStore(db)
	require.NoError(t, err)
	return hs
}

func at(t time.Time) *time.Time { return &t }

func TestRollReminders(t *testing.T) {
	ctx := context.Background()
	hs := setupHealthStore(t)

	daily := &health.Reminder{UserID: "margaret", Title: "Lisinopril", CronSpec: "0 8 * * *", NextFireAt: at(refNow.Add(-2 * time.Hour))}
	weekly := &health.Reminder{UserID: "margaret", Title: "Weigh in", IntervalDays: 7, TimeOfDay: "09:00", NextFireAt: at(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))}
	once := &health.Reminder{UserID: "margaret", Title: "Call the clinic", RemindAt: at(refNow.Add(-time.Hour)), NextFireAt: at(refNow.Add(-time.Hour))}
	later := &health.Reminder{UserID: "margaret", Title: "Evening walk", CronSpec: "0 18 * * *", NextFireAt: at(refNow.Add(8 * time.Hour))}
	for _, r := range []*health.Reminder{daily, weekly, once, later} {
		require.NoError(t, hs.CreateReminder(ctx, r))
	}

	r := NewRunner(Config{Location: time.UTC}, nil, hs, zap.NewNop())
	r.now = func() time.Time { return refNow }

	n, err := r.RollReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	due, err := hs.DueReminders(ctx, refNow)
	require.NoError(t, err)
	assert.Empty(t, due, "nothing is left due after a roll")

	due, err = hs.DueReminders(ctx, time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "Evening walk", due[0].Title)
	assert.Equal(t, "Lisinopril", due[1].Title)
	assert.Equal(t, time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC), due[1].NextFireAt.UTC())

	due, err = hs.DueReminders(ctx, time.Date(2024, 1, 22, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	var titles []string
	for _, d := range due {
		titles = append(titles, d.Title)
		if d.Title == "Weigh in" {
			assert.Equal(t, time.Date(2024, 1, 22, 9, 0, 0, 0, time.UTC), d.NextFireAt.UTC())
		}
	}
	assert.Contains(t, titles, "Weigh in")
	assert.NotContains(t, titles, "Call the clinic", "one-time reminders are deactivated")
}

type failingReminders struct{}

func (failingReminders) DueReminders(context.Context, time.Time) ([]health.Reminder, error) {
	return nil, errors.New("database is locked")
}

func (failingReminders) UpdateReminderSchedule(context.Context, *health.Reminder) error { return nil }

func TestRollReminders_LoadError(t *testing.T) {
	r := NewRunner(Config{}, nil, failingReminders{}, nil)
	_, err := r.RollReminders(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load due reminders")
}

func TestSweep(t *testing.T) {
	s := &countingSweeper{}
	r := NewRunner(Config{}, s, nil, zap.NewNop())

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s.err = errors.New("redis down")
	_, err = r.Sweep(context.Background())
	assert.Error(t, err)

	n, err = NewRunner(Config{}, nil, nil, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunner_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := &countingSweeper{}
	r := NewRunner(Config{SweepSpec: "@every 1s"}, s, nil, zap.NewNop())

	require.NoError(t, r.Start())
	assert.True(t, r.IsRunning())
	assert.Error(t, r.Start(), "second start is refused")

	require.Eventually(t, func() bool { return atomic.LoadInt32(&s.calls) > 0 }, 3*time.Second, 50*time.Millisecond)

	r.Stop()
	assert.False(t, r.IsRunning())
	r.Stop()
}

func TestRunner_BadSpec(t *testing.T) {
	r := NewRunner(Config{SweepSpec: "every now and then"}, &countingSweeper{}, nil, nil)
	err := r.Start()
	require.Error(t, err)
	assert.False(t, r.IsRunning())
}

func TestConfigFrom(t *testing.T) {
	c, err := ConfigFrom(config.SchedulerConfig{SweepSpec: "@every 5m", Timezone: "UTC"})
	require.NoError(t, err)
	assert.Equal(t, "@every 5m", c.SweepSpec)
	assert.Equal(t, time.UTC, c.Location)

	_, err = ConfigFrom(config.SchedulerConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}
