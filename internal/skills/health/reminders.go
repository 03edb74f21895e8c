package health

import (
	"time"

	"github.com/gmsas95/myrai-care/internal/extract"
	"github.com/robfig/cron/v3"
)

// NextFire returns when a recurring reminder should next go off after the
// given moment. One-time reminders have no next occurrence.
func NextFire(r *Reminder, after time.Time) (time.Time, bool) {
	switch {
	case r.CronSpec != "":
		schedule, err := cron.ParseStandard(r.CronSpec)
		if err != nil {
			return time.Time{}, false
		}
		next := schedule.Next(after)
		return next, !next.IsZero()

	case r.IntervalDays > 0:
		tod := extract.DefaultReminderTime
		if parsed, ok := extract.ParseTimeOfDay(r.TimeOfDay); ok {
			tod = parsed
		}
		var next time.Time
		if r.NextFireAt != nil {
			next = r.NextFireAt.In(after.Location())
		} else {
			next = time.Date(after.Year(), after.Month(), after.Day(), tod.Hour, tod.Minute, 0, 0, after.Location())
		}
		for !next.After(after) {
			next = next.AddDate(0, 0, r.IntervalDays)
		}
		return next, true
	}

	return time.Time{}, false
}

// Advance moves a reminder past now: recurring reminders get their next
// fire time, one-time reminders are deactivated.
func Advance(r *Reminder, now time.Time) {
	next, ok := NextFire(r, now)
	if !ok {
		r.Active = false
		r.NextFireAt = nil
		return
	}
	next = next.UTC()
	r.NextFireAt = &next
}
