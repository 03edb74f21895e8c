package extract

import (
	"strconv"
	"strings"
)

var numberWords = map[string]float64{
	"a":       1,
	"an":      1,
	"one":     1,
	"single":  1,
	"two":     2,
	"couple":  2,
	"three":   3,
	"four":    4,
	"five":    5,
	"six":     6,
	"seven":   7,
	"eight":   8,
	"nine":    9,
	"ten":     10,
	"eleven":  11,
	"twelve":  12,
	"half":    0.5,
	"quarter": 0.25,
}

// numberWordPattern is the regex alternation for spelled-out quantities.
const numberWordPattern = `a|an|one|single|two|couple|three|four|five|six|seven|eight|nine|ten|eleven|twelve`

// parseQuantity turns "2", "1.5", "two", "half a", "one and a half" into a number.
func parseQuantity(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, v > 0
	}

	if strings.HasSuffix(s, " and a half") {
		base, ok := parseQuantity(strings.TrimSuffix(s, " and a half"))
		if !ok {
			return 0, false
		}
		return base + 0.5, true
	}

	fields := strings.Fields(s)
	// "half a", "quarter of a", "couple of"
	lead := fields[0]
	if v, ok := numberWords[lead]; ok {
		for _, f := range fields[1:] {
			if f != "of" && f != "a" && f != "an" {
				return 0, false
			}
		}
		return v, true
	}

	return 0, false
}

// parseCount parses whole numbers written as digits or words.
func parseCount(s string) (int, bool) {
	v, ok := parseQuantity(s)
	if !ok || v != float64(int(v)) {
		return 0, false
	}
	return int(v), true
}
