package security

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrEmptyInput          = errors.New("input is empty")
	ErrInputTooLarge       = errors.New("input exceeds maximum size")
	ErrNullByteDetected    = errors.New("null byte detected in input")
	ErrInvalidUTF8         = errors.New("input is not valid UTF-8")
	ErrHighWhitespaceRatio = errors.New("suspicious whitespace ratio")
	ErrRepetitiveContent   = errors.New("excessive repetition detected")
)

// InputValidator rejects user messages that are empty, oversized or junk
type InputValidator struct {
	MaxSize            int
	MaxWhitespaceRatio float64
	MaxRepetition      int
}

// NewInputValidator creates a validator for messages up to maxSize bytes.
// maxSize <= 0 uses 4000.
func NewInputValidator(maxSize int) *InputValidator {
	if maxSize <= 0 {
		maxSize = 4000
	}
	return &InputValidator{
		MaxSize:            maxSize,
		MaxWhitespaceRatio: 0.8,
		MaxRepetition:      100,
	}
}

func (v *InputValidator) Validate(input string) error {
	if strings.TrimSpace(input) == "" {
		return ErrEmptyInput
	}

	if len(input) > v.MaxSize {
		return ErrInputTooLarge
	}

	if strings.IndexByte(input, 0) >= 0 {
		return ErrNullByteDetected
	}

	if !utf8.ValidString(input) {
		return ErrInvalidUTF8
	}

	if v.MaxWhitespaceRatio > 0 && len(input) > 20 {
		whitespaceCount := 0
		for _, r := range input {
			if unicode.IsSpace(r) {
				whitespaceCount++
			}
		}
		ratio := float64(whitespaceCount) / float64(utf8.RuneCountInString(input))
		if ratio > v.MaxWhitespaceRatio {
			return ErrHighWhitespaceRatio
		}
	}

	if v.MaxRepetition > 0 && len(input) > v.MaxRepetition {
		if hasExcessiveRepetition(input, v.MaxRepetition) {
			return ErrRepetitiveContent
		}
	}

	return nil
}

func hasExcessiveRepetition(input string, maxLen int) bool {
	var prev rune
	consecutiveCount := 0

	for i, r := range input {
		if i > 0 && r == prev {
			consecutiveCount++
			if consecutiveCount > maxLen {
				return true
			}
		} else {
			consecutiveCount = 1
		}
		prev = r
	}

	return false
}
