package types

import "errors"

// Validation errors: rejected synchronously, never persisted.
var (
	ErrInvalidPricing  = errors.New("invalid listing pricing")
	ErrInvalidDuration = errors.New("invalid listing duration")
	ErrBelowMinimum    = errors.New("bid below minimum increment")
	ErrSelfBid         = errors.New("cannot bid on your own listing")
	ErrSelfBuyout      = errors.New("cannot buy out your own listing")
	ErrNoBuyout        = errors.New("listing has no buyout price")
	ErrClanRestricted  = errors.New("listing is restricted to clan members")
)

// Conflict errors: expected under concurrency, recoverable by the caller
// re-fetching state and retrying.
var (
	ErrNotActive    = errors.New("listing is no longer active")
	ErrStaleListing = errors.New("listing state has changed, refresh for the current price")
	ErrExpired      = errors.New("listing has expired")
	ErrHasBids      = errors.New("listing already has bids")
)

// Resource errors: surfaced verbatim, no partial state is committed.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrItemNotOwned      = errors.New("item not owned by player")
)

var ErrNotFound = errors.New("listing not found")
