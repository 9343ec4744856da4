package domain

import "time"

// AssetInfo is the registry entry for one listed mint. Amount must equal the
// escrowed custody balance for (Mint, Owner) outside of a running settlement.
type AssetInfo struct {
	Mint      string
	Price     uint64 // quote minor units per asset unit
	Amount    uint64 // units currently escrowed and listed
	Owner     string
	Version   int // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewAssetInfo(mint string, price uint64, owner string) *AssetInfo {
	now := time.Now()
	return &AssetInfo{
		Mint:      mint,
		Price:     price,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AssetUpdate is a partial update of a listing. Nil fields are left unchanged.
type AssetUpdate struct {
	Amount *uint64
	Owner  *string
}
