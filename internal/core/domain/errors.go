package domain

import "errors"

var (
	// ErrOfferMustBeCreated is thrown when submitting a buyer signature for
	// an offer that already moved past the Created status.
	ErrOfferMustBeCreated = errors.New("offer must be in Created status")
	// ErrOfferMustBeSigned is thrown when submitting an owner signature for
	// an offer that is not currently in Signed status.
	ErrOfferMustBeSigned = errors.New("offer must be in Signed status")
	// ErrOfferMustBeAccepted is thrown when recording a push outcome for an
	// offer whose owner signature was never taken in.
	ErrOfferMustBeAccepted = errors.New("offer must be in Accepted status")
	// ErrOfferTerminal is thrown when any transition is attempted on an
	// offer that already reached one of the terminal statuses.
	ErrOfferTerminal = errors.New("offer reached a terminal status")
	// ErrOfferExpired is thrown when a transition is attempted on an offer
	// past its deadline.
	ErrOfferExpired = errors.New("offer is expired")
	// ErrOfferExpiryNotReached is thrown when expiring an offer whose
	// deadline has not passed yet.
	ErrOfferExpiryNotReached = errors.New("offer expiry time not reached")
	// ErrOfferNullExpiry is thrown when expiring an offer with no deadline.
	ErrOfferNullExpiry = errors.New("offer expiry time not set")
	// ErrListingNotActive is thrown when operating on a listing that is no
	// longer in Created status.
	ErrListingNotActive = errors.New("listing is not active")
)
