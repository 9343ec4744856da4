package domain

import "time"

// Receipt records one committed purchase. Receipts are audit bookkeeping,
// not settlement state: losing one never un-settles the trade.
type Receipt struct {
	ID        string
	Buyer     string
	Mint      string
	Quantity  uint64
	UnitPrice uint64
	TotalCost uint64
	Fee       uint64
	CreatedAt time.Time
}
