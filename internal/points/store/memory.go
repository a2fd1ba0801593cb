package store

import (
	"context"
	"sync"

	"citeline/internal/points/models"
	id "citeline/pkg/domain"
)

type awardKey struct {
	userID       id.UserID
	submissionID id.SubmissionID
	rule         models.RuleID
}

// InMemory keeps accounts and the applied-award set in maps guarded by one
// mutex, so Apply is atomic with respect to concurrent awards to the same user.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[id.UserID]*models.Account
	applied  map[awardKey]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		accounts: make(map[id.UserID]*models.Account),
		applied:  make(map[awardKey]struct{}),
	}
}

func (s *InMemory) Get(_ context.Context, userID id.UserID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if acc, ok := s.accounts[userID]; ok {
		return cloneAccount(acc), nil
	}
	return &models.Account{UserID: userID}, nil
}

func (s *InMemory) Apply(_ context.Context, award models.Award, update func(acc *models.Account)) (*models.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := awardKey{userID: award.UserID, submissionID: award.SubmissionID, rule: award.Rule}
	acc, ok := s.accounts[award.UserID]
	if !ok {
		acc = &models.Account{UserID: award.UserID}
		s.accounts[award.UserID] = acc
	}

	if _, seen := s.applied[key]; seen {
		return cloneAccount(acc), false, nil
	}

	update(acc)
	acc.UpdatedAt = award.AwardedAt
	s.applied[key] = struct{}{}
	return cloneAccount(acc), true, nil
}

func cloneAccount(acc *models.Account) *models.Account {
	cp := *acc
	cp.Badges = append([]models.Badge(nil), acc.Badges...)
	return &cp
}
