package security

import (
	"regexp"
	"strings"
)

// Flags attached to a checked message
const (
	FlagPromptInjection = "prompt_injection"
	FlagActionMarker    = "action_marker"
	FlagSensitiveData   = "sensitive_data"
)

// markers the action engine reads from assistant replies; a user has no
// business sending them
var userMarkerRe = regexp.MustCompile(`(?is)\[/?(?:TOOL_CALL|ACTION)\]`)

// SecurityGuard screens user messages before they reach the assistant
type SecurityGuard struct {
	input            *InputValidator
	secrets          *SecretScanner
	injection        *PromptInjectionDetector
	blockOnInjection bool
}

// NewSecurityGuard creates a guard. With blockOnInjection false, injection
// attempts are flagged but still allowed through.
func NewSecurityGuard(maxInputLength int, blockOnInjection bool) *SecurityGuard {
	return &SecurityGuard{
		input:            NewInputValidator(maxInputLength),
		secrets:          NewSecretScanner(),
		injection:        NewPromptInjectionDetector(),
		blockOnInjection: blockOnInjection,
	}
}

// CheckResult is the verdict on one message
type CheckResult struct {
	Allowed bool
	Err     error
	Flags   []string
	// Message has any embedded action markers removed
	Message string
	// Redacted is safe to log
	Redacted string
}

func (r *CheckResult) flag(f string) {
	r.Flags = append(r.Flags, f)
}

// HasFlag reports whether f was raised
func (r *CheckResult) HasFlag(f string) bool {
	for _, have := range r.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// Check validates a user message. Embedded action markers are stripped
// rather than rejected.
func (g *SecurityGuard) Check(message string) *CheckResult {
	result := &CheckResult{Allowed: true, Message: message}

	if err := g.input.Validate(message); err != nil {
		result.Allowed = false
		result.Err = err
		result.Redacted = g.secrets.Redact(message)
		return result
	}

	if userMarkerRe.MatchString(message) {
		result.flag(FlagActionMarker)
		result.Message = strings.TrimSpace(userMarkerRe.ReplaceAllString(message, " "))
		if result.Message == "" {
			result.Allowed = false
			result.Err = ErrEmptyInput
			return result
		}
	}

	if g.injection.Detect(message) {
		result.flag(FlagPromptInjection)
		if g.blockOnInjection {
			result.Allowed = false
			result.Err = ErrPromptInjection
		}
	}

	if g.secrets.HasSecrets(message) {
		result.flag(FlagSensitiveData)
	}
	result.Redacted = g.secrets.Redact(result.Message)

	return result
}

// Redact masks credentials and identifiers in s
func (g *SecurityGuard) Redact(s string) string {
	return g.secrets.Redact(s)
}
