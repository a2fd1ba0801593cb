// Package policy centralizes capability checks so authorization rules are
// unit-testable independent of HTTP and never scattered across handlers.
package policy

import (
	submission "citeline/internal/submission/models"
	id "citeline/pkg/domain"
)

// Actor is the authenticated identity a request acts as.
type Actor struct {
	ID      id.UserID
	Role    id.Role
	Country id.Country
}

// IsAdmin reports whether the actor carries the admin capability.
func (a Actor) IsAdmin() bool { return a.Role == id.RoleAdmin }

// CanVerify reports whether the actor may judge the given submission.
// Admins verify anything; verifiers only submissions from their own country.
func CanVerify(actor Actor, s *submission.Submission) bool {
	switch actor.Role {
	case id.RoleAdmin:
		return true
	case id.RoleVerifier:
		return actor.Country == s.Country
	default:
		return false
	}
}

// CanOverride reports whether the actor may re-open an already-reviewed
// submission. Only admins may apply terminal-to-terminal transitions.
func CanOverride(actor Actor) bool { return actor.IsAdmin() }

// CanDelete reports whether the actor may delete the given submission.
// Submitters may delete their own pending submissions; admins any submission.
func CanDelete(actor Actor, s *submission.Submission) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.ID == s.SubmitterID && s.Status == submission.StatusPending
}
