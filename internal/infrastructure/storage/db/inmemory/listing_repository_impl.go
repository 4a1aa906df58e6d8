package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ordex-network/ordex-daemon/internal/core/domain"
)

type listingRepositoryImpl struct {
	listings map[uuid.UUID]*domain.Listing
	lock     *sync.Mutex
}

// NewListingRepositoryImpl returns a new empty in-memory listing repository.
func NewListingRepositoryImpl() domain.ListingRepository {
	return &listingRepositoryImpl{
		listings: map[uuid.UUID]*domain.Listing{},
		lock:     &sync.Mutex{},
	}
}

func (r *listingRepositoryImpl) AddListing(_ context.Context, listing *domain.Listing) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, l := range r.listings {
		if l.InscriptionId == listing.InscriptionId && !l.Deleted && l.IsActive() {
			if err := l.Remove(); err != nil {
				return err
			}
		}
	}

	l := *listing
	r.listings[listing.Id] = &l
	return nil
}

func (r *listingRepositoryImpl) GetListing(_ context.Context, id uuid.UUID) (*domain.Listing, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.getListing(id)
}

func (r *listingRepositoryImpl) GetActiveListingByInscription(
	_ context.Context, inscriptionId string,
) (*domain.Listing, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, l := range r.listings {
		if l.InscriptionId == inscriptionId && !l.Deleted && l.IsActive() {
			res := *l
			return &res, nil
		}
	}
	return nil, nil
}

func (r *listingRepositoryImpl) GetListingsForSeller(
	_ context.Context, sellerAddress string, page domain.Page,
) ([]domain.Listing, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	listings := make([]domain.Listing, 0)
	for _, l := range r.listings {
		if l.SellerAddress == sellerAddress && !l.Deleted {
			listings = append(listings, *l)
		}
	}
	sort.Slice(listings, func(i, j int) bool {
		return listings[i].CreatedAt > listings[j].CreatedAt
	})

	from := (page.Number - 1) * page.Size
	if from >= len(listings) {
		return []domain.Listing{}, nil
	}
	to := from + page.Size
	if to > len(listings) {
		to = len(listings)
	}
	return listings[from:to], nil
}

func (r *listingRepositoryImpl) UpdateListing(
	_ context.Context,
	id uuid.UUID,
	updateFn func(l *domain.Listing) (*domain.Listing, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	currentListing, err := r.getListing(id)
	if err != nil {
		return err
	}

	updatedListing, err := updateFn(currentListing)
	if err != nil {
		return err
	}

	r.listings[id] = updatedListing
	return nil
}

func (r *listingRepositoryImpl) getListing(id uuid.UUID) (*domain.Listing, error) {
	listing, ok := r.listings[id]
	if !ok {
		return nil, errors.New("listing not found")
	}
	res := *listing
	return &res, nil
}
