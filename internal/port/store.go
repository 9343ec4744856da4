package port

import (
	"context"
	"errors"

	"github.com/rl1809/asset-custody/internal/core/domain"
)

// ErrOptimisticLock is returned when a versioned write loses against a
// concurrent writer from another process.
var ErrOptimisticLock = errors.New("optimistic lock conflict")

// Store is the keyed record store behind the settlement engine: the singleton
// inventory index, one asset entry per mint, and one custody balance per
// (mint, depositor). Composite methods are atomic: either every record they
// touch is written or none is.
type Store interface {
	// CreateIndex creates the singleton index, failing with
	// domain.ErrAlreadyInitialized if it already exists.
	CreateIndex(ctx context.Context, authority string) error

	// Index returns the singleton index, domain.ErrNotFound before initialize.
	Index(ctx context.Context) (*domain.Inventory, error)

	// Asset returns the entry for mint, domain.ErrNotFound if unlisted.
	Asset(ctx context.Context, mint string) (*domain.AssetInfo, error)

	// ListAssets returns all entries in listing order.
	ListAssets(ctx context.Context) ([]domain.AssetInfo, error)

	// CustodyBalance returns the escrowed balance for (mint, depositor),
	// zero when no custody record exists.
	CustodyBalance(ctx context.Context, mint, depositor string) (uint64, error)

	// CreateAsset writes a new entry and appends its mint to the index.
	// Fails with domain.ErrDuplicateAsset if the mint is already listed.
	CreateAsset(ctx context.Context, info *domain.AssetInfo) error

	// UpdateAsset writes the entry and sets the custody balance for
	// (info.Mint, info.Owner) to custody. When prevOwner differs from
	// info.Owner the custody record is re-keyed from prevOwner. The write is
	// version-checked against info.Version.
	UpdateAsset(ctx context.Context, prevOwner string, info *domain.AssetInfo, custody uint64) error

	// RemoveAsset deletes the entry, its custody record, and its index
	// membership together.
	RemoveAsset(ctx context.Context, mint string) error
}
