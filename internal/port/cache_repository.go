package port

import (
	"context"

	"github.com/rl1809/asset-custody/internal/core/domain"
)

// CacheRepository fronts the store with a fast availability view and
// transport-level idempotency. The cache is never authoritative: a miss falls
// through to the settlement engine, which re-validates against the store.
type CacheRepository interface {
	// SetListed mirrors the listed amount for a mint.
	SetListed(ctx context.Context, mint string, amount uint64) error

	// Listed returns the cached listed amount; ok is false on a miss.
	Listed(ctx context.Context, mint string) (amount uint64, ok bool, err error)

	// DecrementListed atomically reserves quantity from the cached amount.
	// Returns false when the cache holds the key but the amount is too small;
	// a missing key reports true so the engine can decide.
	DecrementListed(ctx context.Context, mint string, quantity uint64) (bool, error)

	// IncrementListed restores quantity (rollback after a failed settlement).
	IncrementListed(ctx context.Context, mint string, quantity uint64) error

	// RemoveListed drops the cached amount for a delisted mint.
	RemoveListed(ctx context.Context, mint string) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists.
	SetIdempotency(ctx context.Context, key string) (bool, error)
}

// ReceiptRepository persists purchase receipts for audit.
type ReceiptRepository interface {
	SaveReceipt(ctx context.Context, receipt domain.Receipt) error
}
