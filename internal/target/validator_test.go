package target

import "testing"

func TestValidPhoneNumber(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"+15551234567", true},
		{"+1 (555) 123-4567", true},
		{"+1.555.123.4567", true},
		{"  +15551234567  ", true},
		{"+442071838750", true},
		{"15551234567", false},      // no leading +
		{"+1555123", false},         // too short
		{"+1234567890123456789", false}, // too long
		{"+1555abc4567", false},
		{"", false},
		{"not a number", false},
		{"+", false},
	}
	for _, c := range cases {
		if got := ValidPhoneNumber(c.in); got != c.want {
			t.Fatalf("ValidPhoneNumber(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestValidPhoneNumber_NonPrintable(t *testing.T) {
	// zero-width space and control chars must be stripped before validation
	if !ValidPhoneNumber("+1555\u200b1234567") {
		t.Fatalf("expected number with zero-width space to validate")
	}
	if !ValidPhoneNumber("\x00+15551234567\x1f") {
		t.Fatalf("expected number with control chars to validate")
	}
}

func TestValidPhoneNumber_IdempotentUnderNormalization(t *testing.T) {
	// any accepted string, stripped of formatting, must validate again
	accepted := []string{"+15551234567", "+1 (555) 123-4567", "+44 20 7183 8750"}
	for _, s := range accepted {
		if !ValidPhoneNumber(s) {
			t.Fatalf("precondition: %q should validate", s)
		}
		norm := NormalizePhoneNumber(s)
		if !ValidPhoneNumber(norm) {
			t.Fatalf("normalized form %q of %q should validate", norm, s)
		}
	}
}
