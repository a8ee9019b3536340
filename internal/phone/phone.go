// Package phone normalizes and validates subscriber numbers. The normalized
// form is the only key used for OTP state and user lookup.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

// CountryCode is stripped from 12-digit numbers during normalization.
const CountryCode = "91"

var (
	ErrInvalidPhone = errors.New("invalid phone number")

	nonDigits    = regexp.MustCompile(`\D`)
	localPattern = regexp.MustCompile(`^[6-9]\d{9}$`)
)

// Normalize drops every non-digit and strips a leading country code from a
// 12-digit number. It is idempotent.
func Normalize(raw string) string {
	digits := nonDigits.ReplaceAllString(strings.TrimSpace(raw), "")
	if len(digits) == 12 && strings.HasPrefix(digits, CountryCode) {
		return digits[len(CountryCode):]
	}
	return digits
}

// IsValid accepts a bare 10-digit mobile number starting with 6-9, or the
// same number prefixed with the country code.
func IsValid(digits string) bool {
	if len(digits) == 12 && strings.HasPrefix(digits, CountryCode) {
		digits = digits[len(CountryCode):]
	}
	return localPattern.MatchString(digits)
}

// Parse normalizes raw and returns the storage key, or ErrInvalidPhone.
func Parse(raw string) (string, error) {
	normalized := Normalize(raw)
	if !IsValid(normalized) {
		return "", ErrInvalidPhone
	}
	return normalized, nil
}
