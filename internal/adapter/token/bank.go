package token

import (
	"context"
	"sync"

	"github.com/rl1809/asset-custody/internal/core/domain"
)

type accountKey struct {
	asset  string
	holder string
}

// Bank is an in-process fungible token ledger keyed by (asset, holder).
// Each Transfer is all-or-nothing under a single lock, mirroring the
// transfer primitive the settlement engine delegates to in production.
type Bank struct {
	mu       sync.Mutex
	balances map[accountKey]uint64
	accounts map[accountKey]bool
}

func NewBank() *Bank {
	return &Bank{
		balances: make(map[accountKey]uint64),
		accounts: make(map[accountKey]bool),
	}
}

// Mint credits freshly issued units to a holder, provisioning the account.
func (b *Bank) Mint(asset, holder string, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := accountKey{asset, holder}
	b.accounts[key] = true
	b.balances[key] += amount
}

func (b *Bank) EnsureAccount(ctx context.Context, asset, holder string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[accountKey{asset, holder}] = true
	return nil
}

func (b *Bank) Transfer(ctx context.Context, asset, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	fromKey := accountKey{asset, from}
	if !b.accounts[fromKey] {
		return domain.ErrNotFound
	}
	toKey := accountKey{asset, to}
	if !b.accounts[toKey] {
		return domain.ErrNotFound
	}
	if b.balances[fromKey] < amount {
		return domain.ErrInsufficientFunds
	}

	b.balances[fromKey] -= amount
	b.balances[toKey] += amount
	return nil
}

func (b *Bank) Balance(ctx context.Context, asset, holder string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[accountKey{asset, holder}], nil
}
