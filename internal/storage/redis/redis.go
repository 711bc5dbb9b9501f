package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"messenger_auth/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "user:"
	DefaultTTL = time.Hour
	scanBatch  = 100
)

// UserCache is a cache-aside store of account snapshots keyed by email.
// It is never authoritative; callers repopulate it from the record store.
type UserCache struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*UserCache, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &UserCache{
		client: client,
	}, nil
}

// * Get returns the cached snapshot; ok is false on a miss or expired entry
func (c *UserCache) Get(ctx context.Context, email string) (models.Account, bool, error) {
	const op = "storage.redis.Get"

	raw, err := c.client.Get(ctx, key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Account{}, false, nil
		}

		return models.Account{}, false, fmt.Errorf("%s: %w", op, err)
	}

	var acc models.Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return models.Account{}, false, fmt.Errorf("%s: %w", op, err)
	}

	return acc, true, nil
}

// * Put overwrites the entry. Used by writers with a post-commit snapshot
func (c *UserCache) Put(ctx context.Context, email string, acc models.Account, ttl time.Duration) error {
	const op = "storage.redis.Put"

	raw, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.client.Set(ctx, key(email), raw, ttlOrDefault(ttl)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * PutIfAbsent stores the entry only when the key is missing. A reader's
// snapshot never replaces one written by a writer.
func (c *UserCache) PutIfAbsent(ctx context.Context, email string, acc models.Account, ttl time.Duration) (bool, error) {
	const op = "storage.redis.PutIfAbsent"

	raw, err := json.Marshal(acc)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	stored, err := c.client.SetNX(ctx, key(email), raw, ttlOrDefault(ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return stored, nil
}

func (c *UserCache) Delete(ctx context.Context, email string) error {
	const op = "storage.redis.Delete"

	if err := c.client.Del(ctx, key(email)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * Clear drops every cached snapshot; other keys in the same DB are left alone
func (c *UserCache) Clear(ctx context.Context) error {
	const op = "storage.redis.Clear"

	var cursor uint64

	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}

		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// * Close releases the connection pool
func (c *UserCache) Close() {
	c.client.Close()
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}

	return ttl
}

func key(email string) string {
	return keyPrefix + email
}
