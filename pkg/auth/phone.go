package auth

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned for inputs that cannot be a phone number.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone strips formatting characters and validates the result.
// "8 (912) 345-67-89" and "+79123456789" normalize to the same value.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
			// formatting, ignored
		default:
			return "", ErrInvalidPhone
		}
	}
	phone := b.String()
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 10 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	// Russian numbers written with a leading 8 are canonicalized to +7.
	if len(digits) == 11 && strings.HasPrefix(digits, "8") {
		return "+7" + digits[1:], nil
	}
	if !strings.HasPrefix(phone, "+") {
		return "+" + digits, nil
	}
	return phone, nil
}
