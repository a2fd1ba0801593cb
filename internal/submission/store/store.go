// Package store persists submissions. Stores are interface-driven so domain
// logic stays testable and the in-memory and Postgres backends are
// interchangeable.
//
// Concurrency contract: Execute serializes the validate-then-mutate sequence
// against any concurrent transition attempt on the same submission id. The
// in-memory store holds its lock across both callbacks; the Postgres store
// uses an optimistic version check and reports ErrVersionMismatch when a
// concurrent writer won. Operations on distinct ids never serialize against
// each other.
package store

import (
	"context"

	"citeline/internal/submission/models"
	id "citeline/pkg/domain"
)

// Store is the persistence abstraction for submission records.
type Store interface {
	// Create inserts a new submission. Returns sentinel.ErrConflict when the
	// id already exists.
	Create(ctx context.Context, s *models.Submission) error

	// FindByID returns a snapshot of the submission, or sentinel.ErrNotFound.
	FindByID(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error)

	// ListByIDs returns snapshots for the ids that exist, in input order.
	// Missing ids are simply absent from the result.
	ListByIDs(ctx context.Context, ids []id.SubmissionID) ([]*models.Submission, error)

	// Delete atomically runs validate against the current record and removes
	// it when validate passes, serialized against concurrent Execute calls on
	// the same id. The returned snapshot is the record as deleted. Returns
	// sentinel.ErrNotFound when absent, the validate error unchanged when
	// validation fails, and sentinel.ErrVersionMismatch when a concurrent
	// writer committed between the read and the removal.
	Delete(ctx context.Context, submissionID id.SubmissionID,
		validate func(*models.Submission) error) (*models.Submission, error)

	// Execute atomically runs validate then mutate against the current record
	// and commits the result with an incremented version. The returned
	// snapshot reflects the committed state. Returns sentinel.ErrNotFound for
	// unknown ids, the validate error unchanged when validation fails, and
	// sentinel.ErrVersionMismatch when a concurrent writer committed first.
	Execute(ctx context.Context, submissionID id.SubmissionID,
		validate func(*models.Submission) error,
		mutate func(*models.Submission)) (*models.Submission, error)
}
