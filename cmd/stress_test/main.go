package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/asset-custody/internal/adapter/storage"
	"github.com/rl1809/asset-custody/internal/adapter/token"
	"github.com/rl1809/asset-custody/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	mint          = "stress-mint"
	unitPrice     = 1_000_000
	initialSupply = 20
	totalRequests = 50
	queueSize     = 100
)

func main() {
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// In-process store and token bank; only the cache layer is shared.
	store := storage.NewMemoryStore()
	bank := token.NewBank()
	bank.Mint(mint, "seller", initialSupply)

	cache := storage.NewRedisAdapter(rdb)
	settlement := service.NewSettlementService(
		store, bank, cache,
		service.Config{QueueSize: queueSize}, nil, nil,
	)
	defer settlement.Close()

	// Drain the receipt queue in background
	go func() {
		for range settlement.GetReceiptQueue() {
		}
	}()

	if err := settlement.Initialize(ctx, "authority"); err != nil {
		log.Fatalf("initialize failed: %v", err)
	}
	if err := settlement.CreateInventory(ctx, "seller", mint, unitPrice); err != nil {
		log.Fatalf("create inventory failed: %v", err)
	}
	if err := settlement.AddAsset(ctx, "seller", mint, initialSupply); err != nil {
		log.Fatalf("add asset failed: %v", err)
	}

	// Counters
	var successCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent buyers
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(buyerID int) {
			defer wg.Done()

			buyer := fmt.Sprintf("buyer-%d", buyerID)
			bank.Mint("USDC", buyer, unitPrice)

			_, err := settlement.BuyAsset(ctx, uuid.New().String(), buyer, mint, 1)
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("=== Stress Test Results ===\n")
	fmt.Printf("Total requests:  %d\n", totalRequests)
	fmt.Printf("Successful buys: %d\n", successCount.Load())
	fmt.Printf("Rejected buys:   %d\n", failCount.Load())
	fmt.Printf("Elapsed:         %v\n", elapsed)

	if successCount.Load() != initialSupply {
		log.Fatalf("OVERSELL CHECK FAILED: expected %d successes, got %d", initialSupply, successCount.Load())
	}
	fmt.Println("Oversell check passed: sold exactly the listed supply")

	// A sold-out listing is torn down, so its cached counter must be gone.
	if amount, ok, err := cache.Listed(ctx, mint); err != nil {
		log.Fatalf("cache check failed: %v", err)
	} else if ok {
		log.Fatalf("CACHE CHECK FAILED: listing still cached with %d units", amount)
	}
	fmt.Println("Cache check passed: sold-out listing removed from cache")
}
