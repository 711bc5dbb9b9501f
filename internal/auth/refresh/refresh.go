// Package refresh tracks the single valid refresh token of each account.
//
// The stored value is the source of truth: a presented token that does not
// match it is treated as replayed and the stored token is cleared, which
// ends the session for every holder.
package refresh

import (
	"context"
	"fmt"
)

type Repo interface {
	SetRefreshToken(ctx context.Context, id int64, token *string) error
	SwapRefreshToken(ctx context.Context, id int64, current string, next *string) (bool, error)
}

type Store struct {
	repo Repo
}

func New(repo Repo) *Store {
	return &Store{repo: repo}
}

// Rotate overwrites the stored token unconditionally. A nil token revokes.
func (s *Store) Rotate(ctx context.Context, accountID int64, token *string) error {
	const op = "refresh.Rotate"

	if err := s.repo.SetRefreshToken(ctx, accountID, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Validate compares presented with the stored token. On mismatch the stored
// token is cleared. On match the token stays in place.
func (s *Store) Validate(ctx context.Context, accountID int64, presented string) (bool, error) {
	const op = "refresh.Validate"

	ok, err := s.repo.SwapRefreshToken(ctx, accountID, presented, &presented)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return ok, nil
}

// Exchange atomically replaces presented with next. Of several concurrent
// calls presenting the same token at most one succeeds.
func (s *Store) Exchange(ctx context.Context, accountID int64, presented, next string) (bool, error) {
	const op = "refresh.Exchange"

	ok, err := s.repo.SwapRefreshToken(ctx, accountID, presented, &next)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return ok, nil
}

// Revoke clears the stored token if it equals presented. A mismatch clears
// it as well and reports false.
func (s *Store) Revoke(ctx context.Context, accountID int64, presented string) (bool, error) {
	const op = "refresh.Revoke"

	ok, err := s.repo.SwapRefreshToken(ctx, accountID, presented, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return ok, nil
}
