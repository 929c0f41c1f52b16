// Package secret masks API key values for display and logging.
package secret

import (
	"strings"

	masker "github.com/goliatone/go-masker"

	"github.com/joshuadavidthomas/aikeys/internal/models"
)

const maskRule = "preserveEnds(2,2)"

var keyFields = []string{"api_key", "shared_api_key", "personal_api_key_value", "token"}

func init() {
	for _, field := range keyFields {
		masker.Default.RegisterMaskField(field, maskRule)
	}
}

// Mask returns a display-safe rendering of a key. The sentinel is passed
// through unchanged so callers can tell "hidden by the server" apart from a
// locally held key.
func Mask(value string) string {
	v := strings.TrimSpace(value)
	if v == "" || v == models.MaskSentinel {
		return v
	}
	if masked, err := masker.Default.String(maskRule, v); err == nil && masked != v {
		return masked
	}
	runes := []rune(v)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}

// Redact is Mask for log fields: it never returns the raw value, even for
// short keys.
func Redact(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	if len([]rune(strings.TrimSpace(value))) <= 8 {
		return "[REDACTED]"
	}
	return Mask(value)
}

// Display chooses what to show for a key: the raw value when reveal is set
// and a real key is held, the masked form otherwise, and "" when no key is
// known.
func Display(value string, reveal bool) string {
	switch {
	case strings.TrimSpace(value) == "":
		return ""
	case value == models.MaskSentinel:
		return models.MaskSentinel
	case reveal:
		return value
	default:
		return Mask(value)
	}
}
