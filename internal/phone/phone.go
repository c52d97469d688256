// Package phone normalizes contact numbers to E.164.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// Normalize parses raw using defaultRegion for numbers without a country
// code and returns the E.164 form.
func Normalize(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, "@") {
		return "", ErrInvalidPhone
	}
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return "", ErrInvalidPhone
		}
	}
	num, err := phonenumbers.Parse(raw, strings.ToUpper(defaultRegion))
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// IsPhoneNumber reports whether s normalizes under defaultRegion.
func IsPhoneNumber(s, defaultRegion string) bool {
	_, err := Normalize(s, defaultRegion)
	return err == nil
}
