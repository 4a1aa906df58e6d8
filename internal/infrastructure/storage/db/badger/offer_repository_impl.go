package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ordex-network/ordex-daemon/internal/core/domain"
)

type offerRepositoryImpl struct {
	db *DbManager
}

// NewOfferRepositoryImpl returns a badger implementation of the domain
// OfferRepository interface.
func NewOfferRepositoryImpl(db *DbManager) domain.OfferRepository {
	return offerRepositoryImpl{db}
}

func (r offerRepositoryImpl) AddOffer(ctx context.Context, offer *domain.Offer) error {
	return r.insertOffer(ctx, *offer)
}

func (r offerRepositoryImpl) GetOffer(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	return r.getOffer(ctx, id)
}

func (r offerRepositoryImpl) GetOpenOfferForTrade(
	ctx context.Context, tradeKey, buyerAddress string,
) (*domain.Offer, error) {
	query := badgerhold.Where("TradeKey").Eq(tradeKey).
		And("BuyerAddress").Eq(buyerAddress).
		And("Deleted").Eq(false)

	offers, err := r.findOffers(ctx, query)
	if err != nil {
		return nil, err
	}

	for i := range offers {
		if !offers[i].IsTerminal() {
			return &offers[i], nil
		}
	}
	return nil, nil
}

func (r offerRepositoryImpl) GetOffersForSeller(
	ctx context.Context, sellerAddress string, page domain.Page,
) ([]domain.Offer, error) {
	query := badgerhold.Where("SellerAddress").Eq(sellerAddress).
		And("Deleted").Eq(false).
		SortBy("CreatedAt").Reverse().
		Skip((page.Number - 1) * page.Size).Limit(page.Size)

	return r.findOffers(ctx, query)
}

func (r offerRepositoryImpl) GetOffersForBuyer(
	ctx context.Context, buyerAddress string, page domain.Page,
) ([]domain.Offer, error) {
	query := badgerhold.Where("BuyerAddress").Eq(buyerAddress).
		And("Deleted").Eq(false).
		SortBy("CreatedAt").Reverse().
		Skip((page.Number - 1) * page.Size).Limit(page.Size)

	return r.findOffers(ctx, query)
}

func (r offerRepositoryImpl) GetExpirableOffers(
	ctx context.Context, now int64,
) ([]domain.Offer, error) {
	query := badgerhold.Where("ExpiryTime").Gt(int64(0)).
		And("ExpiryTime").Lt(now).
		And("Deleted").Eq(false)

	offers, err := r.findOffers(ctx, query)
	if err != nil {
		return nil, err
	}

	expirable := make([]domain.Offer, 0, len(offers))
	for _, o := range offers {
		if o.IsPushed() {
			continue
		}
		expirable = append(expirable, o)
	}
	return expirable, nil
}

func (r offerRepositoryImpl) UpdateOffer(
	ctx context.Context,
	id uuid.UUID,
	updateFn func(o *domain.Offer) (*domain.Offer, error),
) error {
	if ctx.Value("tx") != nil {
		return r.updateOfferInTx(ctx, id, updateFn)
	}

	// Read, apply and write share one transaction so the status guards inside
	// updateFn act as a compare-and-swap. The loser of two concurrent updates
	// conflicts at commit, re-reads the winner's row and lets the guards
	// decide.
	for {
		tx := r.db.Store.Badger().NewTransaction(true)
		txCtx := context.WithValue(ctx, "tx", tx)

		if err := r.updateOfferInTx(txCtx, id, updateFn); err != nil {
			tx.Discard()
			return err
		}

		err := tx.Commit()
		if err == nil {
			return nil
		}
		tx.Discard()
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

func (r offerRepositoryImpl) updateOfferInTx(
	ctx context.Context,
	id uuid.UUID,
	updateFn func(o *domain.Offer) (*domain.Offer, error),
) error {
	currentOffer, err := r.getOffer(ctx, id)
	if err != nil {
		return err
	}

	updatedOffer, err := updateFn(currentOffer)
	if err != nil {
		return err
	}

	return r.updateOffer(ctx, updatedOffer.Id, *updatedOffer)
}

func (r offerRepositoryImpl) findOffers(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Offer, error) {
	var offers []domain.Offer
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.db.Store.TxFind(tx, &offers, query)
	} else {
		err = r.db.Store.Find(&offers, query)
	}

	return offers, err
}

func (r offerRepositoryImpl) getOffer(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	var offer domain.Offer
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.db.Store.TxGet(tx, id, &offer)
	} else {
		err = r.db.Store.Get(id, &offer)
	}
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, errors.New("offer not found")
		}
		return nil, err
	}

	return &offer, nil
}

func (r offerRepositoryImpl) updateOffer(
	ctx context.Context, id uuid.UUID, offer domain.Offer,
) error {
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		return r.db.Store.TxUpdate(tx, id, offer)
	}
	return r.db.Store.Update(id, offer)
}

func (r offerRepositoryImpl) insertOffer(ctx context.Context, offer domain.Offer) error {
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.db.Store.TxInsert(tx, offer.Id, &offer)
	} else {
		err = r.db.Store.Insert(offer.Id, &offer)
	}
	if err != nil && err != badgerhold.ErrKeyExists {
		return err
	}
	return nil
}
