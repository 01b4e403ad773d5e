// Package redact masks caller contact details before they reach logs.
package redact

import (
	"crypto/sha256"
	"fmt"
	"regexp"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// Ten or more digits, optionally grouped by spaces, dots or dashes.
	phoneRe = regexp.MustCompile(`\+?\d(?:[-.\s]?\d){9,}`)
)

// HashPhone returns a short stable fingerprint of a phone number so log lines
// for one caller can be correlated without storing the number.
func HashPhone(phone string) string {
	if phone == "" {
		return ""
	}
	h := sha256.Sum256([]byte(phone))
	return fmt.Sprintf("%x", h[:6])
}

// Scrub replaces emails with [EMAIL] and phone numbers with [PHONE].
func Scrub(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	return phoneRe.ReplaceAllString(text, "[PHONE]")
}
