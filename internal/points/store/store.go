// Package store persists point accounts and the applied-award ledger.
package store

import (
	"context"

	"citeline/internal/points/models"
	id "citeline/pkg/domain"
)

// Store is the persistence abstraction for the point ledger.
type Store interface {
	// Get returns the account for the user. Unknown users get a zero-valued
	// account rather than an error; an account exists implicitly for every
	// user id.
	Get(ctx context.Context, userID id.UserID) (*models.Account, error)

	// Apply atomically records the award and runs update against the user's
	// account as one logical unit. When the award's (user, submission, rule)
	// triple was already applied, update is skipped and applied is false.
	// This is the at-most-once guarantee.
	//
	// The update callback runs while the store holds the account, so
	// increment-and-check-badges cannot lose updates under concurrent awards
	// to the same user.
	Apply(ctx context.Context, award models.Award, update func(acc *models.Account)) (acc *models.Account, applied bool, err error)
}
