package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	return client
}

func TestRedisAdapter_ListedRoundTrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	mint := "test-mint-" + uuid.New().String()
	defer client.Del(ctx, listedKeyPrefix+mint)

	_, ok, err := adapter.Listed(ctx, mint)
	if err != nil {
		t.Fatalf("listed failed: %v", err)
	}
	if ok {
		t.Error("expected cache miss for unknown mint")
	}

	if err := adapter.SetListed(ctx, mint, 10); err != nil {
		t.Fatalf("set listed failed: %v", err)
	}

	amount, ok, err := adapter.Listed(ctx, mint)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if amount != 10 {
		t.Errorf("expected 10, got %d", amount)
	}

	if err := adapter.RemoveListed(ctx, mint); err != nil {
		t.Fatalf("remove listed failed: %v", err)
	}
	_, ok, _ = adapter.Listed(ctx, mint)
	if ok {
		t.Error("expected miss after remove")
	}
}

func TestRedisAdapter_DecrementListed(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	mint := "test-mint-" + uuid.New().String()
	defer client.Del(ctx, listedKeyPrefix+mint)

	// Missing key falls through to the store.
	ok, err := adapter.DecrementListed(ctx, mint, 5)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if !ok {
		t.Error("expected fall-through on missing key")
	}

	if err := adapter.SetListed(ctx, mint, 10); err != nil {
		t.Fatalf("set listed failed: %v", err)
	}

	ok, err = adapter.DecrementListed(ctx, mint, 4)
	if err != nil || !ok {
		t.Fatalf("expected decrement to succeed, got ok=%v err=%v", ok, err)
	}

	amount, _, _ := adapter.Listed(ctx, mint)
	if amount != 6 {
		t.Errorf("expected 6, got %d", amount)
	}

	// Over-reservation rejected.
	ok, err = adapter.DecrementListed(ctx, mint, 7)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if ok {
		t.Error("expected rejection when quantity exceeds cached amount")
	}
}

func TestRedisAdapter_IncrementListed(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	mint := "test-mint-" + uuid.New().String()
	defer client.Del(ctx, listedKeyPrefix+mint)

	// Rollback on a missing key must not resurrect it.
	if err := adapter.IncrementListed(ctx, mint, 3); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	_, ok, _ := adapter.Listed(ctx, mint)
	if ok {
		t.Error("expected increment on missing key to be a no-op")
	}

	adapter.SetListed(ctx, mint, 5)
	if err := adapter.IncrementListed(ctx, mint, 3); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	amount, _, _ := adapter.Listed(ctx, mint)
	if amount != 8 {
		t.Errorf("expected 8, got %d", amount)
	}
}

func TestRedisAdapter_SetIdempotency(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	key := "purchase:test-" + uuid.New().String()
	defer client.Del(ctx, key)

	ok, err := adapter.SetIdempotency(ctx, key)
	if err != nil {
		t.Fatalf("set idempotency failed: %v", err)
	}
	if !ok {
		t.Error("expected first set to succeed")
	}

	ok, err = adapter.SetIdempotency(ctx, key)
	if err != nil {
		t.Fatalf("set idempotency failed: %v", err)
	}
	if ok {
		t.Error("expected second set to report duplicate")
	}
}
