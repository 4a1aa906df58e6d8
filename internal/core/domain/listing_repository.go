package domain

import (
	"context"

	"github.com/google/uuid"
)

// ListingRepository is the abstraction for any kind of database intended to
// persist Listings.
type ListingRepository interface {
	// AddListing inserts a new listing after soft-deleting any prior
	// non-deleted listing for the same inscription, so that exactly one
	// active listing per inscription exists at any time.
	AddListing(ctx context.Context, listing *Listing) error
	// GetListing returns the listing with the given id, deleted or not.
	GetListing(ctx context.Context, id uuid.UUID) (*Listing, error)
	// GetActiveListingByInscription returns the non-deleted listing for the
	// given inscription, or nil if there is none.
	GetActiveListingByInscription(ctx context.Context, inscriptionId string) (*Listing, error)
	// GetListingsForSeller returns the page of active listings of the given
	// seller.
	GetListingsForSeller(ctx context.Context, sellerAddress string, page Page) ([]Listing, error)
	// UpdateListing allows to commit multiple changes to the same listing in
	// a transactional way.
	UpdateListing(
		ctx context.Context,
		id uuid.UUID,
		updateFn func(l *Listing) (*Listing, error),
	) error
}
