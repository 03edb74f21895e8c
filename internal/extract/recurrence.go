package extract

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Frequency names the shape of a recurring schedule.
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekdays Frequency = "weekdays"
	FrequencyWeekends Frequency = "weekends"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyInterval Frequency = "interval"
)

// Recurrence is a parsed repeating schedule.
type Recurrence struct {
	Frequency    Frequency
	Days         []time.Weekday
	IntervalDays int
	Time         TimeOfDay
	TimeGiven    bool
	Confidence   float64
}

var (
	everyDayRe      = regexp.MustCompile(`\b(?:every\s*day|everyday|each\s+day|daily|every\s+(?:morning|evening|night))\b`)
	everyWeekdayRe  = regexp.MustCompile(`\b(?:every\s+weekday|weekdays|on\s+weekdays|monday\s+(?:to|through|thru)\s+friday)\b`)
	everyWeekendRe  = regexp.MustCompile(`\b(?:every\s+weekend|weekends|on\s+weekends)\b`)
	everyOtherDayRe = regexp.MustCompile(`\bevery\s+other\s+day\b`)
	everyNRe        = regexp.MustCompile(`\bevery\s+(\d+|` + numberWordPattern + `)\s+(day|week)s?\b`)
	weeklyRe        = regexp.MustCompile(`\b(?:every\s+week|weekly|once\s+a\s+week)\b`)
	namedDayRe      = regexp.MustCompile(`\b(sun|mon|tues|wednes|thurs|fri|satur)days?\b`)
	repeatCueRe     = regexp.MustCompile(`\b(?:every|each|on)\b|days\b`)
)

var dayPrefixes = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseRecurrence parses schedules such as "every weekday at 8am",
// "every monday and thursday" or "every 3 days". The time defaults to
// 09:00 when none is given.
func ParseRecurrence(text string) (*Recurrence, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil, false
	}

	r, ok := parseRecurrenceShape(text)
	if !ok {
		return nil, false
	}

	if tod, ok := ParseTimeOfDay(text); ok {
		r.Time = tod
		r.TimeGiven = true
		// a part of day like "morning" is only a guess at the clock time
		r.Confidence = math.Min(r.Confidence, tod.Confidence)
	} else {
		r.Time = DefaultReminderTime
	}

	return r, true
}

func parseRecurrenceShape(text string) (*Recurrence, bool) {
	switch {
	case everyWeekdayRe.MatchString(text):
		return &Recurrence{
			Frequency:  FrequencyWeekdays,
			Days:       []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
			Confidence: 0.95,
		}, true

	case everyWeekendRe.MatchString(text):
		return &Recurrence{
			Frequency:  FrequencyWeekends,
			Days:       []time.Weekday{time.Saturday, time.Sunday},
			Confidence: 0.95,
		}, true

	case everyOtherDayRe.MatchString(text):
		return &Recurrence{Frequency: FrequencyInterval, IntervalDays: 2, Confidence: 0.9}, true
	}

	if m := everyNRe.FindStringSubmatch(text); m != nil {
		n, ok := parseCount(m[1])
		if !ok || n <= 0 {
			return nil, false
		}
		days := n
		if m[2] == "week" {
			days = n * DaysPerWeek
		}
		if days == 1 {
			return &Recurrence{Frequency: FrequencyDaily, IntervalDays: 1, Confidence: 0.9}, true
		}
		return &Recurrence{Frequency: FrequencyInterval, IntervalDays: days, Confidence: 0.9}, true
	}

	if days := namedDays(text); len(days) > 0 && repeatCueRe.MatchString(text) {
		return &Recurrence{Frequency: FrequencyWeekly, Days: days, Confidence: 0.9}, true
	}

	if everyDayRe.MatchString(text) {
		return &Recurrence{Frequency: FrequencyDaily, IntervalDays: 1, Confidence: 0.95}, true
	}

	if weeklyRe.MatchString(text) {
		return &Recurrence{Frequency: FrequencyWeekly, IntervalDays: DaysPerWeek, Confidence: 0.8}, true
	}

	return nil, false
}

func namedDays(text string) []time.Weekday {
	seen := map[time.Weekday]bool{}
	for _, m := range namedDayRe.FindAllStringSubmatch(text, -1) {
		if d, ok := dayPrefixes[m[1][:3]]; ok {
			seen[d] = true
		}
	}

	days := make([]time.Weekday, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// CronSpec renders the schedule as a standard five-field cron expression.
// Interval schedules longer than a day have no exact cron form and return
// false.
func (r *Recurrence) CronSpec() (string, bool) {
	prefix := fmt.Sprintf("%d %d", r.Time.Minute, r.Time.Hour)

	switch {
	case r.Frequency == FrequencyDaily:
		return prefix + " * * *", true
	case len(r.Days) > 0:
		parts := make([]string, len(r.Days))
		for i, d := range r.Days {
			parts[i] = strconv.Itoa(int(d))
		}
		return prefix + " * * " + strings.Join(parts, ","), true
	}

	return "", false
}

// Summary describes the schedule for confirmation prompts.
func (r *Recurrence) Summary() string {
	var when string
	switch r.Frequency {
	case FrequencyDaily:
		when = "every day"
	case FrequencyWeekdays:
		when = "every weekday"
	case FrequencyWeekends:
		when = "every weekend"
	case FrequencyInterval:
		when = fmt.Sprintf("every %d days", r.IntervalDays)
	case FrequencyWeekly:
		if len(r.Days) == 0 {
			when = "every week"
			break
		}
		names := make([]string, len(r.Days))
		for i, d := range r.Days {
			names[i] = d.String()
		}
		when = "every " + strings.Join(names, ", ")
	}
	return when + " at " + r.Time.String()
}
