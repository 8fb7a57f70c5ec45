package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	store := NewRedisStore(client, time.Minute)
	userID := time.Now().UnixNano()
	t.Cleanup(func() { _ = store.Delete(ctx, userID) })

	if err := store.Put(ctx, userID, &Cursor{Category: "GOLD", ItemIDs: []uint64{3, 4}, Index: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if id, _ := got.Current(); id != 4 {
		t.Fatalf("expected current 4, got %d", id)
	}
	ttl := client.TTL(ctx, redisKey(userID)).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %s", ttl)
	}
	if err := store.Delete(ctx, userID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, userID); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected no session, got %v", err)
	}
}
