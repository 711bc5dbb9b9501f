package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"messenger_auth/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *memory.Storage, int64) {
	t.Helper()

	repo := memory.New()
	id, err := repo.SaveUser(context.Background(), "a@x.com", "u1", "hash")
	require.NoError(t, err)

	return New(repo), repo, id
}

func stored(t *testing.T, repo *memory.Storage, id int64) *string {
	t.Helper()

	u, err := repo.UserByID(context.Background(), id)
	require.NoError(t, err)

	return u.RefreshToken
}

func TestRotateOverwritesAndRevokes(t *testing.T) {
	s, repo, id := newStore(t)
	ctx := context.Background()

	first, second := "rt-1", "rt-2"
	require.NoError(t, s.Rotate(ctx, id, &first))
	require.NoError(t, s.Rotate(ctx, id, &second))
	assert.Equal(t, "rt-2", *stored(t, repo, id))

	require.NoError(t, s.Rotate(ctx, id, nil))
	assert.Nil(t, stored(t, repo, id))

	assert.Error(t, s.Rotate(ctx, id+1, nil))
}

func TestValidate(t *testing.T) {
	s, repo, id := newStore(t)
	ctx := context.Background()

	token := "rt-1"
	require.NoError(t, s.Rotate(ctx, id, &token))

	ok, err := s.Validate(ctx, id, "rt-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rt-1", *stored(t, repo, id))

	ok, err = s.Validate(ctx, id, "guessed")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, stored(t, repo, id))

	ok, err = s.Validate(ctx, id, "rt-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExchangeSingleWinner(t *testing.T) {
	s, repo, id := newStore(t)
	ctx := context.Background()

	token := "rt-1"
	require.NoError(t, s.Rotate(ctx, id, &token))

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.Exchange(ctx, id, "rt-1", "rt-next")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	// losers burn the session
	assert.Nil(t, stored(t, repo, id))
}

func TestExchangeRotates(t *testing.T) {
	s, repo, id := newStore(t)
	ctx := context.Background()

	token := "rt-1"
	require.NoError(t, s.Rotate(ctx, id, &token))

	ok, err := s.Exchange(ctx, id, "rt-1", "rt-2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rt-2", *stored(t, repo, id))

	ok, err = s.Exchange(ctx, id, "rt-1", "rt-3")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, stored(t, repo, id))
}

func TestRevoke(t *testing.T) {
	s, repo, id := newStore(t)
	ctx := context.Background()

	token := "rt-1"
	require.NoError(t, s.Rotate(ctx, id, &token))

	ok, err := s.Revoke(ctx, id, "rt-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, stored(t, repo, id))

	// a refresh that already rotated the token makes the revoke a mismatch
	require.NoError(t, s.Rotate(ctx, id, &token))
	ok, err = s.Exchange(ctx, id, "rt-1", "rt-2")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Revoke(ctx, id, "rt-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, stored(t, repo, id))
}
