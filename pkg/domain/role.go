package domain

import dErrors "citeline/pkg/domain-errors"

// Role is the capability level attached to an authenticated actor.
// Invariant: the value must be one of the supported roles.
//
// Usage: construct via ParseRole at trust boundaries (token claims, connect
// handshakes); direct casting bypasses validation.
type Role string

const (
	RoleContributor Role = "contributor"
	RoleVerifier    Role = "verifier"
	RoleAdmin       Role = "admin"
)

var validRoles = map[Role]bool{
	RoleContributor: true,
	RoleVerifier:    true,
	RoleAdmin:       true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported role: "+s)
	}
	return r, nil
}

// IsValid reports whether the role is one of the supported values.
func (r Role) IsValid() bool { return validRoles[r] }

func (r Role) String() string { return string(r) }
