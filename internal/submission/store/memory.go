package store

import (
	"context"
	"sync"

	"citeline/internal/submission/models"
	id "citeline/pkg/domain"
	"citeline/pkg/platform/sentinel"
)

// InMemory keeps submissions in a map guarded by a single RWMutex. Execute
// holds the write lock across validate and mutate, which gives the
// per-submission serialization the workflow needs without per-id lock
// bookkeeping. It intentionally favors clarity over performance.
type InMemory struct {
	mu          sync.RWMutex
	submissions map[id.SubmissionID]*models.Submission
}

func NewInMemory() *InMemory {
	return &InMemory{submissions: make(map[id.SubmissionID]*models.Submission)}
}

func (s *InMemory) Create(_ context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.submissions[sub.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := sub.Clone()
	cp.Version = 1
	s.submissions[sub.ID] = cp
	sub.Version = 1
	return nil
}

func (s *InMemory) FindByID(_ context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[submissionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return sub.Clone(), nil
}

func (s *InMemory) ListByIDs(_ context.Context, ids []id.SubmissionID) ([]*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Submission, 0, len(ids))
	for _, submissionID := range ids {
		if sub, ok := s.submissions[submissionID]; ok {
			out = append(out, sub.Clone())
		}
	}
	return out, nil
}

func (s *InMemory) Delete(_ context.Context, submissionID id.SubmissionID,
	validate func(*models.Submission) error) (*models.Submission, error) {

	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[submissionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	// Validate under the write lock so a concurrent transition cannot slip
	// in between the authorization check and the removal.
	snapshot := sub.Clone()
	if err := validate(snapshot); err != nil {
		return nil, err
	}
	delete(s.submissions, submissionID)
	return snapshot, nil
}

func (s *InMemory) Execute(_ context.Context, submissionID id.SubmissionID,
	validate func(*models.Submission) error,
	mutate func(*models.Submission)) (*models.Submission, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[submissionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	// Validate against a copy so a failing validation can never leave a
	// half-applied mutation behind.
	work := sub.Clone()
	if err := validate(work); err != nil {
		return nil, err
	}
	mutate(work)
	work.Version = sub.Version + 1

	s.submissions[submissionID] = work
	return work.Clone(), nil
}
