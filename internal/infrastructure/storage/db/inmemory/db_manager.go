package inmemory

import (
	"github.com/ordex-network/ordex-daemon/internal/core/domain"
	"github.com/ordex-network/ordex-daemon/internal/core/ports"
)

// DbManager is the in-memory counterpart of the badger one, used in tests.
type DbManager struct {
	offerRepository   domain.OfferRepository
	listingRepository domain.ListingRepository
}

func NewDbManager() *DbManager {
	return &DbManager{
		offerRepository:   NewOfferRepositoryImpl(),
		listingRepository: NewListingRepositoryImpl(),
	}
}

func (d *DbManager) OfferRepository() domain.OfferRepository {
	return d.offerRepository
}

func (d *DbManager) ListingRepository() domain.ListingRepository {
	return d.listingRepository
}

func (d *DbManager) NewTransaction() ports.Transaction {
	return inMemoryTx{}
}

func (d *DbManager) Close() {}

// inMemoryTx is a no-op transaction: the in-memory repositories apply their
// changes immediately.
type inMemoryTx struct{}

func (t inMemoryTx) Commit() error { return nil }
func (t inMemoryTx) Discard()      {}
