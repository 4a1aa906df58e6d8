package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ordex-network/ordex-daemon/internal/core/domain"
)

type listingRepositoryImpl struct {
	db *DbManager
}

// NewListingRepositoryImpl returns a badger implementation of the domain
// ListingRepository interface.
func NewListingRepositoryImpl(db *DbManager) domain.ListingRepository {
	return listingRepositoryImpl{db}
}

func (r listingRepositoryImpl) AddListing(ctx context.Context, listing *domain.Listing) error {
	if ctx.Value("tx") != nil {
		return r.addListingInTx(ctx, listing)
	}
	return r.inTx(ctx, func(txCtx context.Context) error {
		return r.addListingInTx(txCtx, listing)
	})
}

func (r listingRepositoryImpl) addListingInTx(ctx context.Context, listing *domain.Listing) error {
	// One active listing per inscription: soft-delete any prior row first.
	prior, err := r.GetActiveListingByInscription(ctx, listing.InscriptionId)
	if err != nil {
		return err
	}
	if prior != nil {
		if err := prior.Remove(); err != nil {
			return err
		}
		if err := r.updateListing(ctx, prior.Id, *prior); err != nil {
			return err
		}
	}

	return r.insertListing(ctx, *listing)
}

func (r listingRepositoryImpl) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	var listing domain.Listing
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.db.Store.TxGet(tx, id, &listing)
	} else {
		err = r.db.Store.Get(id, &listing)
	}
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, errors.New("listing not found")
		}
		return nil, err
	}

	return &listing, nil
}

func (r listingRepositoryImpl) GetActiveListingByInscription(
	ctx context.Context, inscriptionId string,
) (*domain.Listing, error) {
	query := badgerhold.Where("InscriptionId").Eq(inscriptionId).
		And("Deleted").Eq(false)

	listings, err := r.findListings(ctx, query)
	if err != nil {
		return nil, err
	}

	for i := range listings {
		if listings[i].IsActive() {
			return &listings[i], nil
		}
	}
	return nil, nil
}

func (r listingRepositoryImpl) GetListingsForSeller(
	ctx context.Context, sellerAddress string, page domain.Page,
) ([]domain.Listing, error) {
	query := badgerhold.Where("SellerAddress").Eq(sellerAddress).
		And("Deleted").Eq(false).
		SortBy("CreatedAt").Reverse().
		Skip((page.Number - 1) * page.Size).Limit(page.Size)

	return r.findListings(ctx, query)
}

func (r listingRepositoryImpl) UpdateListing(
	ctx context.Context,
	id uuid.UUID,
	updateFn func(l *domain.Listing) (*domain.Listing, error),
) error {
	if ctx.Value("tx") != nil {
		return r.updateListingInTx(ctx, id, updateFn)
	}
	return r.inTx(ctx, func(txCtx context.Context) error {
		return r.updateListingInTx(txCtx, id, updateFn)
	})
}

func (r listingRepositoryImpl) updateListingInTx(
	ctx context.Context,
	id uuid.UUID,
	updateFn func(l *domain.Listing) (*domain.Listing, error),
) error {
	currentListing, err := r.GetListing(ctx, id)
	if err != nil {
		return err
	}

	updatedListing, err := updateFn(currentListing)
	if err != nil {
		return err
	}

	return r.updateListing(ctx, updatedListing.Id, *updatedListing)
}

// inTx runs fn inside one transaction so read-then-write sequences on the
// same row behave as a compare-and-swap, retrying on a commit conflict.
func (r listingRepositoryImpl) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	for {
		tx := r.db.Store.Badger().NewTransaction(true)
		txCtx := context.WithValue(ctx, "tx", tx)

		if err := fn(txCtx); err != nil {
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

func (r listingRepositoryImpl) findListings(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Listing, error) {
	var listings []domain.Listing
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.db.Store.TxFind(tx, &listings, query)
	} else {
		err = r.db.Store.Find(&listings, query)
	}

	return listings, err
}

func (r listingRepositoryImpl) updateListing(
	ctx context.Context, id uuid.UUID, listing domain.Listing,
) error {
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		return r.db.Store.TxUpdate(tx, id, listing)
	}
	return r.db.Store.Update(id, listing)
}

func (r listingRepositoryImpl) insertListing(ctx context.Context, listing domain.Listing) error {
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.db.Store.TxInsert(tx, listing.Id, &listing)
	} else {
		err = r.db.Store.Insert(listing.Id, &listing)
	}
	if err != nil && err != badgerhold.ErrKeyExists {
		return err
	}
	return nil
}
