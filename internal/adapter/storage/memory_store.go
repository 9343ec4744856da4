package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/asset-custody/internal/core/domain"
	"github.com/rl1809/asset-custody/internal/port"
)

type custodyKey struct {
	mint      string
	depositor string
}

// MemoryStore is the in-process keyed store behind the settlement engine:
// singleton index, asset entries keyed by mint, custody balances keyed by
// (mint, depositor). Every composite method mutates under one lock, so the
// records it touches change together or not at all.
type MemoryStore struct {
	mu      sync.RWMutex
	index   *domain.Inventory
	assets  map[string]*domain.AssetInfo
	custody map[custodyKey]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets:  make(map[string]*domain.AssetInfo),
		custody: make(map[custodyKey]uint64),
	}
}

func (m *MemoryStore) CreateIndex(ctx context.Context, authority string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index != nil {
		return domain.ErrAlreadyInitialized
	}
	m.index = domain.NewInventory(authority)
	return nil
}

func (m *MemoryStore) Index(ctx context.Context) (*domain.Inventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.index == nil {
		return nil, domain.ErrNotFound
	}
	out := domain.Inventory{
		Authority: m.index.Authority,
		Assets:    append([]string(nil), m.index.Assets...),
	}
	return &out, nil
}

func (m *MemoryStore) Asset(ctx context.Context, mint string) (*domain.AssetInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.assets[mint]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *entry
	return &out, nil
}

func (m *MemoryStore) ListAssets(ctx context.Context) ([]domain.AssetInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.index == nil {
		return nil, nil
	}
	out := make([]domain.AssetInfo, 0, len(m.index.Assets))
	for _, mint := range m.index.Assets {
		if entry, ok := m.assets[mint]; ok {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (m *MemoryStore) CustodyBalance(ctx context.Context, mint, depositor string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.custody[custodyKey{mint, depositor}], nil
}

func (m *MemoryStore) CreateAsset(ctx context.Context, info *domain.AssetInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index == nil {
		return domain.ErrNotFound
	}
	if _, ok := m.assets[info.Mint]; ok {
		return domain.ErrDuplicateAsset
	}
	if err := m.index.AddAsset(info.Mint); err != nil {
		return err
	}

	stored := *info
	m.assets[info.Mint] = &stored
	return nil
}

func (m *MemoryStore) UpdateAsset(ctx context.Context, prevOwner string, info *domain.AssetInfo, custody uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.assets[info.Mint]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != info.Version {
		return port.ErrOptimisticLock
	}

	stored := *info
	stored.Version++
	stored.UpdatedAt = time.Now()
	m.assets[info.Mint] = &stored

	if prevOwner != info.Owner {
		delete(m.custody, custodyKey{info.Mint, prevOwner})
	}
	m.custody[custodyKey{info.Mint, info.Owner}] = custody
	return nil
}

func (m *MemoryStore) RemoveAsset(ctx context.Context, mint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.assets[mint]
	if !ok {
		return domain.ErrNotFound
	}
	if err := m.index.RemoveAsset(mint); err != nil {
		return err
	}
	delete(m.assets, mint)
	delete(m.custody, custodyKey{mint, entry.Owner})
	return nil
}
