package domain

import (
	"context"

	"github.com/google/uuid"
)

// OfferRepository is the abstraction for any kind of database intended to
// persist Offers.
type OfferRepository interface {
	// AddOffer inserts a new offer.
	AddOffer(ctx context.Context, offer *Offer) error
	// GetOffer returns the offer with the given id, soft-deleted or not.
	GetOffer(ctx context.Context, id uuid.UUID) (*Offer, error)
	// GetOpenOfferForTrade returns the non-terminal, non-deleted offer for
	// the given (trade, buyer) pair, or nil if there is none. At most one
	// such offer exists at any time.
	GetOpenOfferForTrade(ctx context.Context, tradeKey, buyerAddress string) (*Offer, error)
	// GetOffersForSeller returns the page of non-deleted offers whose seller
	// matches the given address, most recent first.
	GetOffersForSeller(ctx context.Context, sellerAddress string, page Page) ([]Offer, error)
	// GetOffersForBuyer returns the page of non-deleted offers whose buyer
	// matches the given address, most recent first.
	GetOffersForBuyer(ctx context.Context, buyerAddress string, page Page) ([]Offer, error)
	// GetExpirableOffers returns every non-deleted offer whose deadline
	// precedes the given time and that has not reached the Pushed status.
	GetExpirableOffers(ctx context.Context, now int64) ([]Offer, error)
	// UpdateOffer allows to commit multiple changes to the same offer in a
	// transactional way.
	UpdateOffer(
		ctx context.Context,
		id uuid.UUID,
		updateFn func(o *Offer) (*Offer, error),
	) error
}
