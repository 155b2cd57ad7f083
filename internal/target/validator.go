package target

import (
	"strings"
	"unicode"
)

// CallTarget is a single outbound call destination.
//
// Invariant: Number has passed ValidPhoneNumber before a CallTarget leaves this
// package or is accepted by the request builder.
type CallTarget struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// formatting characters stripped before validation. These are display
// conventions, not part of the number.
const formattingChars = " -()."

// ValidPhoneNumber reports whether raw is an acceptable E.164-like number:
// leading "+", 10..18 characters total after formatting is removed, and only
// decimal digits after the "+".
//
// Pure function; never panics on malformed input. Used by both the single-call
// and bulk paths so validation is identical everywhere.
func ValidPhoneNumber(raw string) bool {
	clean := NormalizePhoneNumber(raw)
	if !strings.HasPrefix(clean, "+") {
		return false
	}
	if len(clean) < 10 || len(clean) > 18 {
		return false
	}
	for _, r := range clean[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizePhoneNumber strips non-printable runes, trims whitespace, and
// removes common formatting characters.
func NormalizePhoneNumber(raw string) string {
	s := StripNonPrintable(raw)
	s = strings.TrimSpace(s)
	for _, c := range formattingChars {
		s = strings.ReplaceAll(s, string(c), "")
	}
	return s
}

// StripNonPrintable drops every non-printable rune from s. Spreadsheet exports
// and copy-pasted text regularly carry zero-width and control characters that
// corrupt outbound payloads.
func StripNonPrintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
}
