package port

import "context"

// TokenLedger is the external fungible-value transfer primitive. The
// settlement engine never mutates raw balances itself; every movement of
// asset units or quote currency goes through Transfer, which is all-or-nothing
// per call.
type TokenLedger interface {
	// EnsureAccount provisions a holding account for (asset, holder) if one
	// does not exist yet.
	EnsureAccount(ctx context.Context, asset, holder string) error

	// Transfer moves amount of asset from one holder to another. Fails with
	// domain.ErrInsufficientFunds when the source balance is too small;
	// no partial movement is ever observable.
	Transfer(ctx context.Context, asset, from, to string, amount uint64) error

	// Balance returns the holder's balance of asset, zero for unknown accounts.
	Balance(ctx context.Context, asset, holder string) (uint64, error)
}
