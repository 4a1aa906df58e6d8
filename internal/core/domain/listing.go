package domain

import (
	"time"

	"github.com/google/uuid"
)

// ListingStatus ...
type ListingStatus int

// Listing is the data structure representing an active sell offer for one
// inscription at a fixed price, independent of any particular buyer. At most
// one non-deleted listing exists per inscription at any time.
type Listing struct {
	Id            uuid.UUID
	InscriptionId string
	SellerAddress string
	SellerPubkey  string
	PriceSats     uint64
	Status        ListingStatus
	Deleted       bool
	CreatedAt     int64
	UpdatedAt     int64
}

// NewListing returns a listing in Created status.
func NewListing(
	inscriptionId, sellerAddress, sellerPubkey string, priceSats uint64,
) *Listing {
	now := time.Now().Unix()
	return &Listing{
		Id:            uuid.New(),
		InscriptionId: inscriptionId,
		SellerAddress: sellerAddress,
		SellerPubkey:  sellerPubkey,
		PriceSats:     priceSats,
		Status:        ListingStatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsActive returns whether the listing can still back new offers.
func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusCreated && !l.Deleted
}

// Complete marks the listing as consumed by a pushed trade and soft-deletes
// it.
func (l *Listing) Complete() error {
	if !l.IsActive() {
		return ErrListingNotActive
	}

	l.Status = ListingStatusCompleted
	l.Deleted = true
	l.UpdatedAt = time.Now().Unix()
	return nil
}

// Remove withdraws the listing and soft-deletes it.
func (l *Listing) Remove() error {
	if !l.IsActive() {
		return ErrListingNotActive
	}

	l.Status = ListingStatusRemoved
	l.Deleted = true
	l.UpdatedAt = time.Now().Unix()
	return nil
}
