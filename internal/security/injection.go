package security

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrPromptInjection = errors.New("potential prompt injection detected")
)

// PromptInjectionDetector flags messages that try to rewrite the assistant's
// instructions. Role-play phrasing alone is not flagged; people say "act as
// if" and "you are now" in ordinary conversation.
type PromptInjectionDetector struct {
	literalPatterns []string
	regexPatterns   []*regexp.Regexp
}

var injectionLiterals = []string{
	"ignore previous instructions",
	"ignore all previous",
	"disregard all previous",
	"forget all previous",
	"ignore the above",
	"disregard the above",
	"your new instructions",
	"new directive",
	"system override",
	"jailbreak",
	"developer mode",
}

var injectionRegexes = []string{
	`(?i)ignore\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?|rules?|directives?)`,
	`(?i)disregard\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?|rules?)`,
	`(?i)forget\s+(all\s+)?(previous|above|prior)\s+(instructions?|context)`,
	`(?i)(pretend|act)\s+(as\s+if\s+|that\s+)?you\s+are\s+(an?\s+)?(admin|root|developer|system|unrestricted|jailbroken)`,
	`(?i)(override|bypass)\s+(all\s+|your\s+)?(rules?|restrictions?|filters?|safety|guardrails?)`,
	`(?i)system:\s*you\s+must`,
	`(?i)<\|.*\|>`,
	`(?i)\[system\].*\[\/system\]`,
	`(?i)###\s*instruction`,
	`(?i)###\s*system`,
	`(?i)(without|skip(ping)?)\s+(asking\s+)?(for\s+)?(my\s+)?confirm(ation)?`,
	`(?i)set\s+(the\s+)?confidence\s+to\s+1`,
}

func NewPromptInjectionDetector() *PromptInjectionDetector {
	detector := &PromptInjectionDetector{
		literalPatterns: make([]string, len(injectionLiterals)),
		regexPatterns:   make([]*regexp.Regexp, 0, len(injectionRegexes)),
	}

	for i, lit := range injectionLiterals {
		detector.literalPatterns[i] = strings.ToLower(lit)
	}

	for _, pattern := range injectionRegexes {
		detector.regexPatterns = append(detector.regexPatterns, regexp.MustCompile(pattern))
	}

	return detector
}

func (d *PromptInjectionDetector) Detect(input string) bool {
	inputLower := strings.ToLower(input)

	for _, lit := range d.literalPatterns {
		if strings.Contains(inputLower, lit) {
			return true
		}
	}

	for _, re := range d.regexPatterns {
		if re.MatchString(input) {
			return true
		}
	}

	return false
}

func (d *PromptInjectionDetector) Validate(input string) error {
	if d.Detect(input) {
		return ErrPromptInjection
	}
	return nil
}
