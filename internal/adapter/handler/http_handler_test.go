package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/asset-custody/internal/adapter/storage"
	"github.com/rl1809/asset-custody/internal/adapter/token"
	"github.com/rl1809/asset-custody/internal/core/service"
)

// In-memory cache standing in for Redis.
type fakeCache struct {
	mu     sync.Mutex
	listed map[string]uint64
	seen   map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{listed: make(map[string]uint64), seen: make(map[string]bool)}
}

func (f *fakeCache) SetListed(ctx context.Context, mint string, amount uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed[mint] = amount
	return nil
}

func (f *fakeCache) Listed(ctx context.Context, mint string) (uint64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	amount, ok := f.listed[mint]
	return amount, ok, nil
}

func (f *fakeCache) DecrementListed(ctx context.Context, mint string, quantity uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.listed[mint]
	if !ok {
		return true, nil
	}
	if current >= quantity {
		f.listed[mint] = current - quantity
		return true, nil
	}
	return false, nil
}

func (f *fakeCache) IncrementListed(ctx context.Context, mint string, quantity uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listed[mint]; ok {
		f.listed[mint] += quantity
	}
	return nil
}

func (f *fakeCache) RemoveListed(ctx context.Context, mint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listed, mint)
	return nil
}

func (f *fakeCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *token.Bank) {
	t.Helper()

	bank := token.NewBank()
	svc := service.NewSettlementService(storage.NewMemoryStore(), bank, newFakeCache(), service.Config{}, nil, nil)
	t.Cleanup(svc.Close)

	go func() {
		for range svc.GetReceiptQueue() {
		}
	}()

	mux := http.NewServeMux()
	NewHTTPHandler(svc).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, bank
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func TestHTTP_FullListingFlow(t *testing.T) {
	server, bank := newTestServer(t)
	bank.Mint("mint-a", "alice", 10)
	bank.Mint("USDC", "bob", 100_000_000)

	resp := postJSON(t, server.URL+"/api/initialize", map[string]interface{}{"caller": "authority"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Second initialize conflicts.
	resp = postJSON(t, server.URL+"/api/initialize", map[string]interface{}{"caller": "authority"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/inventory", map[string]interface{}{
		"caller": "alice", "mint": "mint-a", "price": 10_000_000,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/inventory/deposit", map[string]interface{}{
		"caller": "alice", "mint": "mint-a", "amount": 10,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/purchase", map[string]interface{}{
		"request_id": "req-1", "buyer": "bob", "mint": "mint-a", "quantity": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var purchase purchaseResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&purchase))
	resp.Body.Close()
	assert.True(t, purchase.Success)
	assert.Equal(t, uint64(10_000_000), purchase.TotalCost)
	assert.Equal(t, "10", purchase.TotalCostDisplay)
	assert.NotEmpty(t, purchase.ReceiptID)

	// List reflects the remaining supply.
	listResp, err := http.Get(server.URL + "/api/inventory")
	require.NoError(t, err)
	var listing struct {
		Assets []assetView `json:"assets"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&listing))
	listResp.Body.Close()
	require.Len(t, listing.Assets, 1)
	assert.Equal(t, uint64(9), listing.Assets[0].Amount)
	assert.Equal(t, "10", listing.Assets[0].PriceDisplay)
}

func TestHTTP_PurchaseErrors(t *testing.T) {
	server, bank := newTestServer(t)
	bank.Mint("mint-a", "alice", 5)
	bank.Mint("USDC", "bob", 1_000_000)

	postJSON(t, server.URL+"/api/initialize", map[string]interface{}{"caller": "authority"}).Body.Close()
	postJSON(t, server.URL+"/api/inventory", map[string]interface{}{
		"caller": "alice", "mint": "mint-a", "price": 10_000_000,
	}).Body.Close()
	postJSON(t, server.URL+"/api/inventory/deposit", map[string]interface{}{
		"caller": "alice", "mint": "mint-a", "amount": 5,
	}).Body.Close()

	// Over the listed supply.
	resp := postJSON(t, server.URL+"/api/purchase", map[string]interface{}{
		"request_id": "req-1", "buyer": "bob", "mint": "mint-a", "quantity": 6,
	})
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	resp.Body.Close()

	// Buyer cannot cover the cost.
	resp = postJSON(t, server.URL+"/api/purchase", map[string]interface{}{
		"request_id": "req-2", "buyer": "bob", "mint": "mint-a", "quantity": 1,
	})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	resp.Body.Close()

	// Unknown mint.
	resp = postJSON(t, server.URL+"/api/purchase", map[string]interface{}{
		"request_id": "req-3", "buyer": "bob", "mint": "mint-x", "quantity": 1,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Missing fields.
	resp = postJSON(t, server.URL+"/api/purchase", map[string]interface{}{"buyer": "bob"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestHTTP_UnauthorizedTeardown(t *testing.T) {
	server, bank := newTestServer(t)
	bank.Mint("mint-a", "alice", 5)

	postJSON(t, server.URL+"/api/initialize", map[string]interface{}{"caller": "authority"}).Body.Close()
	postJSON(t, server.URL+"/api/inventory", map[string]interface{}{
		"caller": "alice", "mint": "mint-a", "price": 10_000_000,
	}).Body.Close()

	resp := postJSON(t, server.URL+"/api/inventory/withdraw", map[string]interface{}{
		"caller": "mallory", "mint": "mint-a",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/inventory/close", map[string]interface{}{
		"caller": "alice", "mint": "mint-a",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
