package security

import (
	"regexp"
)

// SecretMatch is one sensitive value found in text
type SecretMatch struct {
	Type     string
	Start    int
	End      int
	Redacted string
}

// SecretScanner finds credentials and personal identifiers so they can be
// kept out of logs.
type SecretScanner struct {
	patterns []*secretPattern
}

type secretPattern struct {
	name       string
	regex      *regexp.Regexp
	redactWith string
}

var defaultSecretPatterns = []struct {
	name       string
	pattern    string
	redactWith string
}{
	{"OpenAI API Key", `sk-[a-zA-Z0-9_-]{20,}`, "sk-****"},
	{"Google API Key", `AIza[0-9A-Za-z\-_]{35}`, "AIza****"},
	{"Generic API Key", `(?i)(api[_-]?key|apikey|access[_-]?key)['\"]?\s*[:=]\s*['\"]?[0-9a-zA-Z\-_]{20,}['\"]?`, "API_KEY****"},
	{"Generic Secret", `(?i)(secret|password|passwd|pwd|token)['\"]?\s*[:=]\s*['\"]?[^\s'\"]{8,}['\"]?`, "SECRET****"},
	{"JWT Token", `eyJ[a-zA-Z0-9\-_]+\.eyJ[a-zA-Z0-9\-_]+\.[a-zA-Z0-9\-_]+`, "eyJ****"},
	{"Database URL", `(?i)(postgres|mysql|mongodb|redis)://[^\s'\"]+:[^\s'\"]+@[^\s'\"]+`, "DB_URL****"},
	{"Email", `[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`, "EMAIL****"},
	{"SSN", `\b\d{3}-\d{2}-\d{4}\b`, "SSN****"},
	{"Card Number", `\b(?:\d{4}[ -]?){3}\d{4}\b`, "CARD****"},
	{"Phone", `(?:\+\d{1,3}[ .-]?)?\(?\d{3}\)?[ .-]\d{3}[ .-]\d{4}\b`, "PHONE****"},
	{"Medical Record Number", `(?i)\b(mrn|medical record( number)?)[:#\s]*\d{6,10}\b`, "MRN****"},
}

func NewSecretScanner() *SecretScanner {
	scanner := &SecretScanner{
		patterns: make([]*secretPattern, 0, len(defaultSecretPatterns)),
	}

	for _, p := range defaultSecretPatterns {
		scanner.patterns = append(scanner.patterns, &secretPattern{
			name:       p.name,
			regex:      regexp.MustCompile(p.pattern),
			redactWith: p.redactWith,
		})
	}

	return scanner
}

func (s *SecretScanner) Scan(input string) []SecretMatch {
	var matches []SecretMatch

	for _, pattern := range s.patterns {
		locs := pattern.regex.FindAllStringIndex(input, -1)
		for _, loc := range locs {
			matches = append(matches, SecretMatch{
				Type:     pattern.name,
				Start:    loc[0],
				End:      loc[1],
				Redacted: pattern.redactWith,
			})
		}
	}

	return matches
}

func (s *SecretScanner) HasSecrets(input string) bool {
	for _, pattern := range s.patterns {
		if pattern.regex.MatchString(input) {
			return true
		}
	}
	return false
}

// Redact replaces every match. Patterns run in order, so credentials are
// replaced before the broader identifier patterns see them.
func (s *SecretScanner) Redact(input string) string {
	result := input

	for _, pattern := range s.patterns {
		result = pattern.regex.ReplaceAllString(result, pattern.redactWith)
	}

	return result
}
