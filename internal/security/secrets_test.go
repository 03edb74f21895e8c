package security

import (
	"strings"
	"testing"
)

func TestSecretScanner_Detects(t *testing.T) {
	scanner := NewSecretScanner()
	tests := []struct {
		input string
		typ   string
	}{
		{"my key is sk-abcdefghijklmnopqrstuvwx", "OpenAI API Key"},
		{"password: hunter2hunter2", "Generic Secret"},
		{"ssn 123-45-6789", "SSN"},
		{"card 4111 1111 1111 1111", "Card Number"},
		{"reach me at (555) 123-4567", "Phone"},
		{"MRN: 00123456", "Medical Record Number"},
		{"write to nurse@clinic.org", "Email"},
	}

	for _, tt := range tests {
		matches := scanner.Scan(tt.input)
		found := false
		for _, m := range matches {
			if m.Type == tt.typ {
				found = true
			}
		}
		if !found {
			t.Errorf("%s not detected in %q (got %v)", tt.typ, tt.input, matches)
		}
	}
}

func TestSecretScanner_IgnoresHealthReadings(t *testing.T) {
	scanner := NewSecretScanner()
	inputs := []string{
		"BP 120/80 pulse 72",
		"follow-up on 2024-04-14",
		"took 500mg at 08:00",
		"drank 1500 ml today",
	}

	for _, input := range inputs {
		if scanner.HasSecrets(input) {
			t.Errorf("False positive: %q -> %v", input, scanner.Scan(input))
		}
	}
}

func TestSecretScanner_Redact(t *testing.T) {
	scanner := NewSecretScanner()
	out := scanner.Redact("ssn 123-45-6789, phone 555-123-4567")

	if strings.Contains(out, "6789") || strings.Contains(out, "4567") {
		t.Errorf("Not redacted: %q", out)
	}
	if !strings.Contains(out, "SSN****") {
		t.Errorf("Missing SSN placeholder: %q", out)
	}
}
