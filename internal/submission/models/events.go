package models

// EventAction is the wire name of a domain event pushed over the live channel.
type EventAction string

const (
	EventSubmissionCreated  EventAction = "new-submission"
	EventSubmissionVerified EventAction = "submission-verified"
	EventSubmissionUpdated  EventAction = "submission-updated"
	EventSubmissionDeleted  EventAction = "submission-deleted"
)

// Event is a transient domain event. It carries a snapshot of the submission
// at commit time and is fanned out to scoped live connections; it is never
// persisted.
type Event struct {
	Action     EventAction `json:"action"`
	Submission Submission  `json:"submission"`
	Message    string      `json:"message,omitempty"`
}
