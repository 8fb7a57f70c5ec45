package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "pixstore:session:"

// RedisStore keeps cursors in Redis so several bot replicas share them.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(userID int64) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10)
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, userID int64) (*Cursor, error) {
	raw, err := s.client.Get(ctx, redisKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	var cursor Cursor
	if errUnmarshal := json.Unmarshal(raw, &cursor); errUnmarshal != nil {
		return nil, fmt.Errorf("session: decode cursor: %w", errUnmarshal)
	}
	return &cursor, nil
}

// Put implements Store and refreshes the expiry.
func (s *RedisStore) Put(ctx context.Context, userID int64, cursor *Cursor) error {
	if cursor == nil {
		return nil
	}
	raw, errMarshal := json.Marshal(cursor)
	if errMarshal != nil {
		return fmt.Errorf("session: encode cursor: %w", errMarshal)
	}
	if errSet := s.client.Set(ctx, redisKey(userID), raw, s.ttl).Err(); errSet != nil {
		return fmt.Errorf("session: redis set: %w", errSet)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	if errDel := s.client.Del(ctx, redisKey(userID)).Err(); errDel != nil {
		return fmt.Errorf("session: redis del: %w", errDel)
	}
	return nil
}
