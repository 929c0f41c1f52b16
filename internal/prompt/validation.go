package prompt

import (
	"errors"
	"strings"

	"github.com/joshuadavidthomas/aikeys/internal/models"
)

// ValidateNotEmpty returns an error if the string is empty or whitespace-only.
func ValidateNotEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("value cannot be empty")
	}
	return nil
}

// ValidateAPIKey accepts a non-empty key without inner whitespace that is not
// the mask placeholder.
func ValidateAPIKey(s string) error {
	v := strings.TrimSpace(s)
	switch {
	case v == "":
		return errors.New("API key cannot be empty")
	case v == models.MaskSentinel:
		return errors.New("paste the real key, not the masked placeholder")
	case strings.ContainsAny(v, " \t\r\n"):
		return errors.New("API key cannot contain whitespace")
	}
	return nil
}
