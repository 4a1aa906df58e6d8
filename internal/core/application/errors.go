package application

import "errors"

var (
	// ErrOfferNotFound ...
	ErrOfferNotFound = errors.New("offer not found")
	// ErrListingNotFound ...
	ErrListingNotFound = errors.New("listing not found")
	// ErrOwnershipMismatch is returned whenever the on-chain location of an
	// inscription contradicts the address claiming to control it.
	ErrOwnershipMismatch = errors.New("inscription is not owned by the given address")
	// ErrUnauthorized is returned when the requester is neither side of the
	// trade they try to operate on.
	ErrUnauthorized = errors.New("requester is not a party of the trade")
	// ErrOfferConflict is returned when a signature lands on an offer that
	// already moved past the expected status, typically because of a
	// concurrent submission.
	ErrOfferConflict = errors.New("offer already processed")
	// ErrBroadcastFailed is returned when the final transaction is rejected
	// by the network. The offer is marked failed and must be regenerated.
	ErrBroadcastFailed = errors.New("transaction broadcast failed")
	// ErrInvalidExpiry is returned for an expiry spec not matching ^\d+[mhd]$.
	ErrInvalidExpiry = errors.New("invalid expiry format, must be like 30m, 12h or 7d")
	// ErrNullPrice is returned when creating a listing with a zero price.
	ErrNullPrice = errors.New("price must be greater than zero")
	// ErrServiceUnavailable is returned when the chain gateway cannot serve
	// the request.
	ErrServiceUnavailable = errors.New("chain gateway unavailable, retry later")
)
