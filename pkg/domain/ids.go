package domain

import (
	"github.com/google/uuid"

	dErrors "citeline/pkg/domain-errors"
)

// Typed IDs prevent cross-entity assignment at compile time. Construct via the
// Parse* functions at trust boundaries; direct casting bypasses validation.
type (
	// UserID identifies a contributor, verifier, or admin account.
	UserID uuid.UUID

	// SubmissionID identifies a citation source submission.
	SubmissionID uuid.UUID
)

// NewUserID returns a freshly generated user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewSubmissionID returns a freshly generated submission ID.
func NewSubmissionID() SubmissionID { return SubmissionID(uuid.New()) }

// ParseUserID validates and converts an external string into a UserID.
// Rejects empty strings, malformed UUIDs, and the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

// ParseSubmissionID validates and converts an external string into a SubmissionID.
func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parseUUID(s, "submission_id")
	return SubmissionID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be the nil UUID")
	}
	return u, nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id SubmissionID) String() string { return uuid.UUID(id).String() }
func (id SubmissionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText implementations keep the IDs JSON-friendly as plain UUID strings.
func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id SubmissionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *SubmissionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSubmissionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
