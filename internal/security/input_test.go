package security

import (
	"errors"
	"strings"
	"testing"
)

func TestInputValidator_Valid(t *testing.T) {
	v := NewInputValidator(0)
	inputs := []string{
		"I took my aspirin this morning",
		"BP was 120/80, pulse 72",
		"Had two bottles of water 💧",
		"Feeling a bit low today.\nSlept maybe 5 hours.",
	}

	for _, input := range inputs {
		if err := v.Validate(input); err != nil {
			t.Errorf("Valid input rejected: %q (%v)", input, err)
		}
	}
}

func TestInputValidator_Rejects(t *testing.T) {
	v := NewInputValidator(50)
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "   ", ErrEmptyInput},
		{"too large", strings.Repeat("ab", 30), ErrInputTooLarge},
		{"null byte", "hello\x00world", ErrNullByteDetected},
		{"invalid utf8", "caf\xe9 latte", ErrInvalidUTF8},
		{"whitespace", "a" + strings.Repeat(" ", 40) + "b", ErrHighWhitespaceRatio},
	}

	for _, tt := range tests {
		if err := v.Validate(tt.input); !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestInputValidator_Repetition(t *testing.T) {
	v := NewInputValidator(1000)
	v.MaxRepetition = 10

	if err := v.Validate("ok " + strings.Repeat("a", 11)); !errors.Is(err, ErrRepetitiveContent) {
		t.Errorf("Repetition not detected: %v", err)
	}
	if err := v.Validate("sooooo tired today, really tired"); err != nil {
		t.Errorf("Short repetition rejected: %v", err)
	}
}
