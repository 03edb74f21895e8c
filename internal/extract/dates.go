package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Day counts used when converting intervals to dates. Months and years are
// approximations and do not follow the calendar.
const (
	DaysPerWeek  = 7
	DaysPerMonth = 30
	DaysPerYear  = 365
)

// DateResult contains a parsed date
type DateResult struct {
	Date        time.Time
	HasTime     bool
	Confidence  float64
	Description string
}

// Summary describes the date for confirmation prompts.
func (r *DateResult) Summary() string {
	if r.HasTime {
		return r.Date.Format("Mon Jan 2, 2006 at 15:04")
	}
	return r.Date.Format("Mon Jan 2, 2006")
}

// DateParser parses natural language dates relative to a reference time
type DateParser struct {
	referenceTime time.Time
}

// NewDateParser creates a date parser anchored at now
func NewDateParser() *DateParser {
	return &DateParser{referenceTime: time.Now()}
}

// WithReference sets the reference time for relative parsing
func (p *DateParser) WithReference(t time.Time) *DateParser {
	p.referenceTime = t
	return p
}

// ParseInterval is a convenience wrapper anchored at ref.
func ParseInterval(text string, ref time.Time) (*DateResult, bool) {
	return NewDateParser().WithReference(ref).Parse(text)
}

var (
	weekdays = map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}

	inDurationRe   = regexp.MustCompile(`\bin\s+(\d+|` + numberWordPattern + `)\s+(day|week|month|year)s?\b`)
	nextWeekdayRe  = regexp.MustCompile(`\bnext\s+(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	plainWeekdayRe = regexp.MustCompile(`\b(?:on\s+|this\s+)?(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	nextPeriodRe   = regexp.MustCompile(`\bnext\s+(week|month|year)\b`)
	isoDateRe      = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	usDateRe       = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`)
	monthDayRe     = regexp.MustCompile(`\b(` + monthPattern + `)\.?\s+(\d{1,2})(st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	dayMonthRe     = regexp.MustCompile(`\b(\d{1,2})(st|nd|rd|th)?\s+(of\s+)?(` + monthPattern + `)\b\.?(?:\s+(\d{4}))?`)
	dateAnchorRe   = regexp.MustCompile(`\b(?:on|by|for|until|till|from|since|before|after|due|through)\s+(?:the\s+)?$`)

	unitDays = map[string]int{
		"day":   1,
		"week":  DaysPerWeek,
		"month": DaysPerMonth,
		"year":  DaysPerYear,
	}

	monthAbbrev = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
		"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
		"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
	}
)

const monthPattern = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

// Parse finds a date expression anywhere in text. A clock time in the same
// text is attached to the date.
func (p *DateParser) Parse(input string) (*DateResult, bool) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return nil, false
	}

	steps := []func(string) (*DateResult, bool){
		p.parseExactDate,
		p.parseRelativeDay,
		p.parseInDuration,
		p.parseNextWeekday,
		p.parseNextPeriod,
		p.parsePlainWeekday,
	}

	for _, step := range steps {
		result, ok := step(text)
		if !ok {
			continue
		}
		if tod, ok := ParseTimeOfDay(text); ok {
			d := result.Date
			result.Date = time.Date(d.Year(), d.Month(), d.Day(), tod.Hour, tod.Minute, 0, 0, d.Location())
			result.HasTime = true
		}
		return result, true
	}

	return nil, false
}

func (p *DateParser) today() time.Time {
	now := p.referenceTime
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// parseExactDate parses "2024-01-15", "01/15/2024", "Jan 15, 2024", "15 January"
func (p *DateParser) parseExactDate(text string) (*DateResult, bool) {
	loc := p.referenceTime.Location()

	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		if t, err := time.ParseInLocation("2006-01-02", m[1], loc); err == nil {
			return &DateResult{Date: t, Confidence: 1.0, Description: m[1]}, true
		}
		return nil, false
	}

	if m := usDateRe.FindStringSubmatch(text); m != nil {
		if t, err := time.ParseInLocation("1/2/2006", m[1], loc); err == nil {
			return &DateResult{Date: t, Confidence: 0.9, Description: m[1]}, true
		}
		return nil, false
	}

	monthKey, dayStr, yearStr, ok := findMonthDay(text)
	if !ok {
		return nil, false
	}

	month := monthAbbrev[monthKey[:3]]
	var day, year int
	fmt.Sscanf(dayStr, "%d", &day)
	yearGiven := yearStr != ""
	if yearGiven {
		fmt.Sscanf(yearStr, "%d", &year)
	} else {
		year = p.referenceTime.Year()
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	// time.Date normalizes Feb 30 into March; treat that as invalid
	if t.Month() != month || t.Day() != day {
		return nil, false
	}
	if !yearGiven && t.Before(p.today()) {
		t = t.AddDate(1, 0, 0)
	}

	return &DateResult{Date: t, Confidence: 0.95, Description: t.Format("January 2, 2006")}, true
}

// findMonthDay locates "Jan 15", "15th of May" and similar. "may" is also a
// verb, so it only counts as a month with an ordinal, "of", a year or a
// leading anchor such as "on" or "by".
func findMonthDay(text string) (month, day, year string, ok bool) {
	for _, idx := range monthDayRe.FindAllStringSubmatchIndex(text, -1) {
		m := submatches(text, idx)
		if m[1] != "may" || m[3] != "" || m[4] != "" || dateAnchorRe.MatchString(text[:idx[0]]) {
			return m[1], m[2], m[4], true
		}
	}
	for _, idx := range dayMonthRe.FindAllStringSubmatchIndex(text, -1) {
		m := submatches(text, idx)
		if m[4] != "may" || m[2] != "" || m[3] != "" || m[5] != "" || dateAnchorRe.MatchString(text[:idx[0]]) {
			return m[4], m[1], m[5], true
		}
	}
	return "", "", "", false
}

func submatches(text string, idx []int) []string {
	out := make([]string, len(idx)/2)
	for i := range out {
		if idx[2*i] >= 0 {
			out[i] = text[idx[2*i]:idx[2*i+1]]
		}
	}
	return out
}

// parseRelativeDay parses "today", "tomorrow", "yesterday", "day after tomorrow"
func (p *DateParser) parseRelativeDay(text string) (*DateResult, bool) {
	today := p.today()

	switch {
	case strings.Contains(text, "day after tomorrow"):
		return &DateResult{Date: today.AddDate(0, 0, 2), Confidence: 1.0, Description: "day after tomorrow"}, true
	case containsWord(text, "tomorrow") || containsWord(text, "tmrw"):
		return &DateResult{Date: today.AddDate(0, 0, 1), Confidence: 1.0, Description: "tomorrow"}, true
	case containsWord(text, "today") || containsWord(text, "tonight"):
		return &DateResult{Date: today, Confidence: 1.0, Description: "today"}, true
	case containsWord(text, "yesterday"):
		return &DateResult{Date: today.AddDate(0, 0, -1), Confidence: 1.0, Description: "yesterday"}, true
	}

	return nil, false
}

// parseInDuration parses "in 3 days", "in two weeks", "in a month"
func (p *DateParser) parseInDuration(text string) (*DateResult, bool) {
	m := inDurationRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}

	n, ok := parseCount(m[1])
	if !ok {
		return nil, false
	}

	days := n * unitDays[m[2]]
	return &DateResult{
		Date:        p.today().AddDate(0, 0, days),
		Confidence:  0.9,
		Description: fmt.Sprintf("in %d days", days),
	}, true
}

// parseNextWeekday parses "next tuesday". The result is always after today.
func (p *DateParser) parseNextWeekday(text string) (*DateResult, bool) {
	m := nextWeekdayRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return &DateResult{
		Date:        p.nextOccurrence(weekdays[m[1]]),
		Confidence:  0.9,
		Description: "next " + m[1],
	}, true
}

// parsePlainWeekday parses "monday" or "on friday" as the next occurrence.
func (p *DateParser) parsePlainWeekday(text string) (*DateResult, bool) {
	m := plainWeekdayRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return &DateResult{
		Date:        p.nextOccurrence(weekdays[m[1]]),
		Confidence:  0.85,
		Description: m[1],
	}, true
}

func (p *DateParser) nextOccurrence(target time.Weekday) time.Time {
	today := p.today()
	daysUntil := int(target) - int(today.Weekday())
	if daysUntil <= 0 {
		daysUntil += 7
	}
	return today.AddDate(0, 0, daysUntil)
}

// parseNextPeriod parses "next week/month/year"
func (p *DateParser) parseNextPeriod(text string) (*DateResult, bool) {
	m := nextPeriodRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}

	today := p.today()
	var date time.Time
	switch m[1] {
	case "week":
		date = p.nextOccurrence(time.Monday)
	case "month":
		date = time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, today.Location())
	case "year":
		date = time.Date(today.Year()+1, 1, 1, 0, 0, 0, 0, today.Location())
	}

	return &DateResult{Date: date, Confidence: 0.8, Description: "next " + m[1]}, true
}

// containsWord reports whether word appears in text on word boundaries.
func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	for idx >= 0 {
		before := idx == 0 || !isWordByte(text[idx-1])
		end := idx + len(word)
		after := end == len(text) || !isWordByte(text[end])
		if before && after {
			return true
		}
		next := strings.Index(text[idx+1:], word)
		if next < 0 {
			break
		}
		idx += next + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// ContainsWord reports whether word appears in text as a whole word, case-insensitively.
func ContainsWord(text, word string) bool {
	return containsWord(strings.ToLower(text), strings.ToLower(word))
}
