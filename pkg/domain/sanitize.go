package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxEventNameSize bounds the length in bytes of an external event name.
const MaxEventNameSize = 256

// SanitizeEventName validates an event name received from the outside and strips
// control characters from it.
func SanitizeEventName(name string) (string, error) {
	if len(name) > MaxEventNameSize {
		return "", fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidEvent, MaxEventNameSize)
	}
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidEvent)
	}

	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		name = strings.Map(func(r rune) rune {
			if unicode.IsControl(r) {
				return -1
			}
			return r
		}, name)
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidEvent)
	}
	return name, nil
}
