package audit

import (
	"context"
	"sync"

	id "citeline/pkg/domain"
)

// Store is the append-only persistence abstraction for the audit trail.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListBySubmission(ctx context.Context, submissionID id.SubmissionID) ([]Entry, error)
}

// InMemory is the non-durable store used in tests and DSN-less deployments.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemory) ListBySubmission(_ context.Context, submissionID id.SubmissionID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.SubmissionID == submissionID {
			out = append(out, e)
		}
	}
	return out, nil
}
