package persona

import (
	"fmt"
	"strings"
	"time"
)

// TimeAwareness provides time-based context for the system prompt
type TimeAwareness struct {
	location *time.Location
}

// NewTimeAwareness creates a time awareness helper for loc (nil means local)
func NewTimeAwareness(loc *time.Location) *TimeAwareness {
	if loc == nil {
		loc = time.Local
	}
	return &TimeAwareness{location: loc}
}

// Context returns the "current context" block for the given instant
func (ta *TimeAwareness) Context(now time.Time) string {
	now = now.In(ta.location)

	parts := []string{
		"## Current Context",
		fmt.Sprintf("Current time: %s", now.Format("Monday, January 2, 2006 3:04 PM")),
		fmt.Sprintf("Time of day: %s", TimeOfDay(now)),
	}
	if guidance := careGuidance(now); guidance != "" {
		parts = append(parts, "Context: "+guidance)
	}
	return strings.Join(parts, "\n")
}

// Greeting returns a time-appropriate greeting
func (ta *TimeAwareness) Greeting(now time.Time) string {
	hour := now.In(ta.location).Hour()

	switch {
	case hour >= 5 && hour < 12:
		return "Good morning"
	case hour >= 12 && hour < 17:
		return "Good afternoon"
	case hour >= 17 && hour < 22:
		return "Good evening"
	default:
		return "Hello"
	}
}

// TimeOfDay names the period t falls in
func TimeOfDay(t time.Time) string {
	hour := t.Hour()

	switch {
	case hour >= 5 && hour < 8:
		return "early morning"
	case hour >= 8 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 14:
		return "midday"
	case hour >= 14 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 20:
		return "evening"
	case hour >= 20 && hour < 22:
		return "night"
	default:
		return "late night"
	}
}

func careGuidance(t time.Time) string {
	hour := t.Hour()

	switch {
	case hour >= 6 && hour < 10:
		return "Morning medications and a morning check-in are common now."
	case hour >= 11 && hour < 14:
		return "Around lunch. A gentle nudge about water is welcome if hydration is low."
	case hour >= 17 && hour < 21:
		return "Evening. Evening doses and how the day went are natural topics."
	case hour >= 22 || hour < 5:
		return "It's late. Keep replies short and calm, and take any sign of distress seriously."
	default:
		return ""
	}
}

// FormatSince formats the time between then and now in a human-friendly way
func FormatSince(then, now time.Time) string {
	d := now.Sub(then)
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "yesterday"
	}
	if days < 7 {
		return fmt.Sprintf("%d days ago", days)
	}
	if days < 30 {
		weeks := days / 7
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	}
	return fmt.Sprintf("%d days ago", days)
}
