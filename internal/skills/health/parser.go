package health

import (
	"sort"
	"strings"

	"github.com/gmsas95/myrai-care/internal/extract"
)

// MedicationSchedule is what a free-text schedule like "twice daily with
// meals" says about when a medication is taken.
type MedicationSchedule struct {
	Frequency  string
	Times      []string
	DaysOfWeek []int
	WithFood   bool
	BeforeBed  bool
}

// frequencyKeywords are checked longest first so "twice daily" is not read
// as "daily".
var frequencyKeywords = map[string]string{
	"once daily":        "daily",
	"once a day":        "daily",
	"every day":         "daily",
	"daily":             "daily",
	"every morning":     "daily",
	"every night":       "daily",
	"twice daily":       "twice_daily",
	"twice a day":       "twice_daily",
	"two times a day":   "twice_daily",
	"bid":               "twice_daily",
	"three times daily": "three_times_daily",
	"three times a day": "three_times_daily",
	"tid":               "three_times_daily",
	"four times a day":  "four_times_daily",
	"every other day":   "every_other_day",
	"weekly":            "weekly",
	"once a week":       "weekly",
	"every week":        "weekly",
	"as needed":         "as_needed",
	"when needed":       "as_needed",
	"prn":               "as_needed",
}

var sortedFrequencyKeywords = func() []string {
	keys := make([]string, 0, len(frequencyKeywords))
	for k := range frequencyKeywords {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// default dose times when the schedule names a frequency but no clock time
var defaultTimes = map[string][]string{
	"daily":             {"08:00"},
	"twice_daily":       {"08:00", "20:00"},
	"three_times_daily": {"08:00", "14:00", "20:00"},
	"four_times_daily":  {"08:00", "12:00", "16:00", "20:00"},
}

var partOfDayTimes = []struct {
	keyword string
	time    string
}{
	{"morning", "08:00"},
	{"breakfast", "08:00"},
	{"noon", "12:00"},
	{"lunch", "12:00"},
	{"evening", "18:00"},
	{"dinner", "18:00"},
	{"bedtime", "22:00"},
	{"before bed", "22:00"},
	{"night", "22:00"},
}

// ParseMedicationSchedule reads frequency, dose times, days and food
// instructions from a schedule phrase. An empty phrase yields an empty
// schedule.
func ParseMedicationSchedule(text string) MedicationSchedule {
	text = strings.ToLower(strings.TrimSpace(text))
	var result MedicationSchedule
	if text == "" {
		return result
	}

	result.Frequency = extractFrequency(text)
	result.Times = extractTimes(text)
	if len(result.Times) == 0 {
		result.Times = append(result.Times, defaultTimes[result.Frequency]...)
	}

	if rec, ok := extract.ParseRecurrence(text); ok && len(rec.Days) > 0 && len(rec.Days) < 7 {
		for _, d := range rec.Days {
			result.DaysOfWeek = append(result.DaysOfWeek, int(d))
		}
		if result.Frequency == "daily" && !strings.Contains(text, "daily") {
			result.Frequency = "weekly"
		}
	}

	result.WithFood = strings.Contains(text, "with food") || strings.Contains(text, "after meal") ||
		strings.Contains(text, "with meals") || strings.Contains(text, "with breakfast") ||
		strings.Contains(text, "with dinner")
	result.BeforeBed = strings.Contains(text, "before bed") || strings.Contains(text, "at bedtime") ||
		extract.ContainsWord(text, "night")

	return result
}

func extractFrequency(text string) string {
	for _, keyword := range sortedFrequencyKeywords {
		if extract.ContainsWord(text, keyword) {
			return frequencyKeywords[keyword]
		}
	}
	return "daily"
}

// extractTimes returns every clock time in text in order of appearance,
// falling back to named parts of the day.
func extractTimes(text string) []string {
	var times []string
	seen := make(map[string]bool)
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			times = append(times, t)
		}
	}

	for _, chunk := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ';' }) {
		for _, part := range strings.Split(chunk, " and ") {
			if tod, ok := extract.ParseTimeOfDay(part); ok && tod.Confidence >= 0.9 {
				add(tod.String())
			}
		}
	}
	if len(times) > 0 {
		return times
	}

	for _, p := range partOfDayTimes {
		if extract.ContainsWord(text, p.keyword) {
			add(p.time)
		}
	}
	sort.Strings(times)
	return times
}
