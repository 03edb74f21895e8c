package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour       int
	Minute     int
	Confidence float64
}

// String renders the time as 24-hour HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// DefaultReminderTime is used when a schedule names no time.
var DefaultReminderTime = TimeOfDay{Hour: 9, Minute: 0, Confidence: 0.5}

var (
	time12hRe = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*([ap])\.?\s?m\b\.?`)
	time24hRe = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)

	partsOfDay = []struct {
		re   *regexp.Regexp
		hour int
	}{
		{regexp.MustCompile(`\bnoon\b|\bmidday\b|\blunch(?:time)?\b`), 12},
		{regexp.MustCompile(`\bmidnight\b`), 0},
		{regexp.MustCompile(`\bmorning\b|\bbreakfast\b`), 8},
		{regexp.MustCompile(`\bafternoon\b`), 15},
		{regexp.MustCompile(`\bevening\b|\bdinner\b|\bsupper\b`), 18},
		{regexp.MustCompile(`\bbedtime\b|\bbed\b|\btonight\b|\bnight\b`), 22},
	}
)

// ParseTimeOfDay finds a clock time in text. It understands "9am",
// "9:30 pm", "21:15" and named parts of the day. A clock token outside
// 00:00-23:59 is rejected rather than clamped.
func ParseTimeOfDay(text string) (TimeOfDay, bool) {
	text = strings.ToLower(text)

	if m := time12hRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return TimeOfDay{}, false
		}
		if m[3] == "p" && hour != 12 {
			hour += 12
		} else if m[3] == "a" && hour == 12 {
			hour = 0
		}
		return TimeOfDay{Hour: hour, Minute: minute, Confidence: 0.95}, true
	}

	if m := time24hRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return TimeOfDay{}, false
		}
		return TimeOfDay{Hour: hour, Minute: minute, Confidence: 0.95}, true
	}

	for _, part := range partsOfDay {
		if part.re.MatchString(text) {
			return TimeOfDay{Hour: part.hour, Confidence: 0.6}, true
		}
	}

	return TimeOfDay{}, false
}
