package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dco5/users-service/internal/model"
)

// Cache key prefixes and TTLs.
const (
	userKeyPrefix = "user:"

	// DefaultUserTTL is the TTL for cached user data.
	DefaultUserTTL = 1 * time.Hour

	flushBatchSize = 100
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetUser retrieves a user from cache by ID.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetUser(ctx context.Context, id int64) (*model.User, error) {
	result, err := c.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	user, err := userFromFields(id, result)
	if err != nil {
		// Corrupt entry; drop it so the next read goes to the store.
		c.client.Del(ctx, userKey(id))
		return nil, ErrCacheMiss
	}

	return user, nil
}

// SetUser stores a user in cache.
func (c *Cache) SetUser(ctx context.Context, user *model.User) error {
	key := userKey(user.ID)

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, userToFields(user))
	pipe.Expire(ctx, key, c.userTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache user: %w", err)
	}

	return nil
}

// FlushUsers removes every cached user.
// Used after the users table is recreated, since IDs restart from 1.
func (c *Cache) FlushUsers(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, userKeyPrefix+"*", flushBatchSize).Iterator()

	batch := make([]string, 0, flushBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == flushBatchSize {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to flush users: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan users: %w", err)
	}

	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to flush users: %w", err)
		}
	}

	return nil
}

func userKey(id int64) string {
	return userKeyPrefix + strconv.FormatInt(id, 10)
}

func userToFields(user *model.User) map[string]any {
	return map[string]any{
		"username":   user.Username,
		"email":      user.Email,
		"active":     strconv.FormatBool(user.Active),
		"created_at": user.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func userFromFields(id int64, fields map[string]string) (*model.User, error) {
	username, ok := fields["username"]
	if !ok {
		return nil, errors.New("missing username")
	}
	email, ok := fields["email"]
	if !ok {
		return nil, errors.New("missing email")
	}

	active, err := strconv.ParseBool(fields["active"])
	if err != nil {
		return nil, fmt.Errorf("parse active: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &model.User{
		ID:        id,
		Username:  username,
		Email:     email,
		Active:    active,
		CreatedAt: createdAt,
	}, nil
}
