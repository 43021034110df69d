package sanitise

import (
	"errors"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var ErrUnstableSanitisation = errors.New("sanitisation unstable")

const maxStabilisationRounds = 10

// String strips markup from a user supplied string. The strict policy is
// re-applied until the output stabilises, so nested payloads cannot survive a
// single pass.
func String(value string) (string, error) {
	p := bluemonday.StrictPolicy()

	var sanitised string

	for round := 0; ; round++ {
		if round == maxStabilisationRounds {
			return "", ErrUnstableSanitisation
		}

		sanitised = p.Sanitize(value)
		if sanitised == value {
			break
		}

		value = sanitised
	}

	return sanitised, nil
}

// DisplayName sanitises a human readable name: markup is stripped and
// surrounding whitespace including control characters is trimmed.
func DisplayName(value string) (string, error) {
	sanitised, err := String(value)
	if err != nil {
		return "", err
	}

	return strings.TrimFunc(sanitised, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}), nil
}
