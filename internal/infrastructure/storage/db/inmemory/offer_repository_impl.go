package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ordex-network/ordex-daemon/internal/core/domain"
)

type offerRepositoryImpl struct {
	offers map[uuid.UUID]*domain.Offer
	lock   *sync.Mutex
}

// NewOfferRepositoryImpl returns a new empty in-memory offer repository.
func NewOfferRepositoryImpl() domain.OfferRepository {
	return &offerRepositoryImpl{
		offers: map[uuid.UUID]*domain.Offer{},
		lock:   &sync.Mutex{},
	}
}

func (r *offerRepositoryImpl) AddOffer(_ context.Context, offer *domain.Offer) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.offers[offer.Id]; ok {
		return nil
	}
	o := *offer
	r.offers[offer.Id] = &o
	return nil
}

func (r *offerRepositoryImpl) GetOffer(_ context.Context, id uuid.UUID) (*domain.Offer, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.getOffer(id)
}

func (r *offerRepositoryImpl) GetOpenOfferForTrade(
	_ context.Context, tradeKey, buyerAddress string,
) (*domain.Offer, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, o := range r.offers {
		if o.TradeKey == tradeKey && o.BuyerAddress == buyerAddress &&
			!o.Deleted && !o.IsTerminal() {
			res := *o
			return &res, nil
		}
	}
	return nil, nil
}

func (r *offerRepositoryImpl) GetOffersForSeller(
	_ context.Context, sellerAddress string, page domain.Page,
) ([]domain.Offer, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.filterOffers(func(o *domain.Offer) bool {
		return o.SellerAddress == sellerAddress && !o.Deleted
	}, page), nil
}

func (r *offerRepositoryImpl) GetOffersForBuyer(
	_ context.Context, buyerAddress string, page domain.Page,
) ([]domain.Offer, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.filterOffers(func(o *domain.Offer) bool {
		return o.BuyerAddress == buyerAddress && !o.Deleted
	}, page), nil
}

func (r *offerRepositoryImpl) GetExpirableOffers(
	_ context.Context, now int64,
) ([]domain.Offer, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	offers := make([]domain.Offer, 0)
	for _, o := range r.offers {
		if o.ExpiryTime > 0 && o.ExpiryTime < now && !o.Deleted && !o.IsPushed() {
			offers = append(offers, *o)
		}
	}
	return offers, nil
}

func (r *offerRepositoryImpl) UpdateOffer(
	_ context.Context,
	id uuid.UUID,
	updateFn func(o *domain.Offer) (*domain.Offer, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	currentOffer, err := r.getOffer(id)
	if err != nil {
		return err
	}

	updatedOffer, err := updateFn(currentOffer)
	if err != nil {
		return err
	}

	r.offers[id] = updatedOffer
	return nil
}

func (r *offerRepositoryImpl) getOffer(id uuid.UUID) (*domain.Offer, error) {
	offer, ok := r.offers[id]
	if !ok {
		return nil, errors.New("offer not found")
	}
	res := *offer
	return &res, nil
}

func (r *offerRepositoryImpl) filterOffers(
	match func(o *domain.Offer) bool, page domain.Page,
) []domain.Offer {
	offers := make([]domain.Offer, 0)
	for _, o := range r.offers {
		if match(o) {
			offers = append(offers, *o)
		}
	}
	sort.Slice(offers, func(i, j int) bool {
		return offers[i].CreatedAt > offers[j].CreatedAt
	})

	from := (page.Number - 1) * page.Size
	if from >= len(offers) {
		return []domain.Offer{}
	}
	to := from + page.Size
	if to > len(offers) {
		to = len(offers)
	}
	return offers[from:to]
}
