package domain

import (
	"errors"
	"strings"
)

// ErrUnparseablePhoneNumber indicates a number could not be normalized to E.164.
var ErrUnparseablePhoneNumber = errors.New("phone number cannot be normalized to E.164")

// NormalizeE164 normalizes a user-supplied phone number to E.164. Ten-digit
// numbers are assumed to be US/Canada and prefixed with +1, matching the
// signup form's audience.
func NormalizeE164(raw string) (string, error) {
	var digits strings.Builder
	hasPlus := false
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && i == 0:
			hasPlus = true
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separator, skip
		default:
			return "", ErrUnparseablePhoneNumber
		}
	}

	d := digits.String()
	switch {
	case hasPlus:
		if len(d) < 8 || len(d) > 15 {
			return "", ErrUnparseablePhoneNumber
		}
		return "+" + d, nil
	case len(d) == 10:
		return "+1" + d, nil
	case len(d) == 11 && strings.HasPrefix(d, "1"):
		return "+" + d, nil
	default:
		return "", ErrUnparseablePhoneNumber
	}
}
