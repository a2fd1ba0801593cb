package domain

import (
	"strings"

	dErrors "citeline/pkg/domain-errors"
)

// Country is an ISO 3166-1 alpha-2 country code. It scopes verifier authority
// and notification audiences.
//
// Invariant: two uppercase ASCII letters. The empty value means "unscoped" and
// is only valid for admins.
type Country string

// ParseCountry normalizes and validates an external country code.
//
// Errors: returns CodeInvalidInput when the value is not two ASCII letters.
func ParseCountry(s string) (Country, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 2 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "country must be a two-letter code")
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "country must contain only letters")
		}
	}
	return Country(s), nil
}

// IsZero reports whether no country is set.
func (c Country) IsZero() bool { return c == "" }

func (c Country) String() string { return string(c) }
