package slots

import (
	"regexp"
	"strings"
)

var (
	phoneStrictRE = regexp.MustCompile(`^\d{10}$`)
	emailRE       = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	zipRE         = regexp.MustCompile(`\b\d{5,6}\b`)
	yearRE        = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	dontKnowRE    = regexp.MustCompile(`(?i)\b(?:don'?t know|do not know|dunno|not sure|no idea)\b`)

	// local part and domain around a spoken " at ", with " dot " joins on either side
	spokenEmailRE = regexp.MustCompile(`(?i)\b((?:[a-z0-9._%+-]+\s+dot\s+)*[a-z0-9._%+-]+)\s+at\s+([a-z0-9-]+(?:\s+dot\s+[a-z0-9-]+)+)\b`)
	spokenDotRE   = regexp.MustCompile(`(?i)\s+dot\s+`)
)

// ValidPhone reports whether value is exactly ten digits.
func ValidPhone(value string) bool {
	return phoneStrictRE.MatchString(value)
}

// NormalizePhone strips everything but digits and keeps the trailing ten.
// Fewer than ten digits yields "".
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return ""
	}
	return digits[len(digits)-10:]
}

// FormatPhone renders a ten digit number as two groups of five for read-back.
func FormatPhone(phone string) string {
	if !ValidPhone(phone) {
		return phone
	}
	return phone[:5] + " " + phone[5:]
}

// MatchEmail finds an email address, also accepting the spoken
// "name at domain dot com" form transcribers often produce.
func MatchEmail(text string) string {
	if m := emailRE.FindString(text); m != "" {
		return strings.ToLower(m)
	}
	m := spokenEmailRE.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	addr := strings.ToLower(spokenDotRE.ReplaceAllString(m[1], ".") + "@" + spokenDotRE.ReplaceAllString(m[2], "."))
	if !ValidEmail(addr) {
		return ""
	}
	return addr
}

// ValidEmail reports whether value is a single well formed email address.
func ValidEmail(value string) bool {
	return value != "" && emailRE.FindString(value) == value
}

// MatchZip finds a five or six digit postal code.
func MatchZip(text string) string {
	return zipRE.FindString(text)
}

// ValidZip reports whether value is a five or six digit postal code.
func ValidZip(value string) bool {
	return value != "" && zipRE.FindString(value) == value
}

// MatchYear finds a 19xx or 20xx year.
func MatchYear(text string) string {
	return yearRE.FindString(text)
}

// DontKnow reports whether the caller said they do not know the answer.
func DontKnow(text string) bool {
	return dontKnowRE.MatchString(strings.ReplaceAll(text, "’", "'"))
}
