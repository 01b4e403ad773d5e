package voice

import (
	"strings"

	"github.com/wolfman30/autoparts-voice-agent/internal/slots"
)

// NormalizeCaller turns a Twilio From value into a ten digit local number.
// The configured country prefix is removed first; anything that does not
// leave ten digits yields "".
func NormalizeCaller(from, countryPrefix string) string {
	digits := digitsOnly(from)
	prefix := digitsOnly(countryPrefix)
	if prefix != "" && len(digits) > 10 && strings.HasPrefix(digits, prefix) {
		digits = strings.TrimPrefix(digits, prefix)
	}
	digits = strings.TrimLeft(digits, "0")
	if len(digits) != 10 {
		return slots.NormalizePhone(digits)
	}
	return digits
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
