// Package audit keeps a durable trail of moderation activity. The live event
// stream is transient by design; this is the part operations can query after
// the fact.
package audit

import (
	"time"

	id "citeline/pkg/domain"
)

// Entry is one recorded moderation action. Keep it transport-agnostic so
// stores and sinks can fan out.
type Entry struct {
	Timestamp    time.Time       `json:"timestamp"`
	SubmissionID id.SubmissionID `json:"submission_id"`
	ActorID      id.UserID       `json:"actor_id"`
	Action       string          `json:"action"`
	Status       string          `json:"status"`
	Credibility  string          `json:"credibility,omitempty"`
	Country      string          `json:"country"`
}
