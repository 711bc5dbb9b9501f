// Package memory is an in-process record store. It backs the local
// environment and the flow tests; every method is safe for concurrent use.
package memory

import (
	"context"
	"sync"
	"time"

	"messenger_auth/internal/models"
	"messenger_auth/internal/storage"
)

type Storage struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*models.Account
	byEmail map[string]int64
}

func New() *Storage {
	return &Storage{
		byID:    make(map[int64]*models.Account),
		byEmail: make(map[string]int64),
	}
}

func (s *Storage) SaveUser(_ context.Context, email, username, passHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return 0, storage.ErrUserExists
	}

	s.nextID++
	s.byID[s.nextID] = &models.Account{
		ID:        s.nextID,
		Email:     email,
		Username:  username,
		PassHash:  passHash,
		CreatedAt: time.Now().UTC(),
	}
	s.byEmail[email] = s.nextID

	return s.nextID, nil
}

func (s *Storage) User(_ context.Context, email string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return models.Account{}, storage.ErrUserNotFound
	}

	return s.snapshot(id), nil
}

func (s *Storage) UserByID(_ context.Context, id int64) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return models.Account{}, storage.ErrUserNotFound
	}

	return s.snapshot(id), nil
}

func (s *Storage) SetEmailConfirmed(_ context.Context, id int64) error {
	return s.mutate(id, func(a *models.Account) {
		a.Confirmed = true
	})
}

func (s *Storage) SetTOTPSecret(_ context.Context, id int64, secret string) error {
	return s.mutate(id, func(a *models.Account) {
		a.TOTPSecret = secret
	})
}

// UpdatePassword stores the new hash and drops the refresh token in one step.
func (s *Storage) UpdatePassword(_ context.Context, id int64, passHash string) error {
	return s.mutate(id, func(a *models.Account) {
		a.PassHash = passHash
		a.RefreshToken = nil
	})
}

func (s *Storage) SetRefreshToken(_ context.Context, id int64, token *string) error {
	return s.mutate(id, func(a *models.Account) {
		a.RefreshToken = copyToken(token)
	})
}

// SwapRefreshToken replaces the stored token with next only if it equals
// current. On mismatch the stored token is cleared and false is returned.
func (s *Storage) SwapRefreshToken(_ context.Context, id int64, current string, next *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return false, storage.ErrUserNotFound
	}

	if a.RefreshToken == nil || *a.RefreshToken != current {
		a.RefreshToken = nil
		return false, nil
	}

	a.RefreshToken = copyToken(next)

	return true, nil
}

func (s *Storage) mutate(id int64, fn func(a *models.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return storage.ErrUserNotFound
	}

	fn(a)

	return nil
}

func (s *Storage) snapshot(id int64) models.Account {
	a := *s.byID[id]
	a.RefreshToken = copyToken(a.RefreshToken)
	return a
}

func copyToken(t *string) *string {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
