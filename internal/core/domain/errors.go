package domain

import "errors"

var (
	// ErrAlreadyInitialized is returned when initialize is called after the
	// inventory index already exists. The existing index is never overwritten.
	ErrAlreadyInitialized = errors.New("inventory already initialized")

	// ErrNotFound is returned when no record exists for the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateAsset is returned when creating a listing for a mint that
	// is already listed.
	ErrDuplicateAsset = errors.New("asset already listed")

	// ErrUnauthorized is returned when the caller is not the recorded owner
	// of the listing it tries to mutate.
	ErrUnauthorized = errors.New("caller is not the asset owner")

	// ErrInvalidPrice is returned when a listing price is zero.
	ErrInvalidPrice = errors.New("price must be positive")

	// ErrInvalidAmount is returned when a deposit or purchase quantity is zero.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientSupply is returned when a purchase asks for more units
	// than the listing holds in escrow.
	ErrInsufficientSupply = errors.New("insufficient listed supply")

	// ErrInsufficientCustody is returned when an update claims a listed
	// amount larger than the escrowed custody balance.
	ErrInsufficientCustody = errors.New("amount exceeds custody balance")

	// ErrInsufficientAsset is returned when a depositor does not hold the
	// units it tries to escrow.
	ErrInsufficientAsset = errors.New("insufficient asset balance")

	// ErrInsufficientFunds is returned when a buyer cannot cover the
	// purchase cost in quote currency.
	ErrInsufficientFunds = errors.New("insufficient quote balance")

	// ErrOverflow is returned when price times quantity does not fit in 64 bits.
	ErrOverflow = errors.New("cost overflows uint64")

	// ErrAlreadyClosed is returned by a settlement service that has been shut down.
	ErrAlreadyClosed = errors.New("settlement service closed")
)
