package ports

import (
	"github.com/ordex-network/ordex-daemon/internal/core/domain"
)

// RepoManager groups the repositories backed by a single store in one data
// structure.
type RepoManager interface {
	OfferRepository() domain.OfferRepository
	ListingRepository() domain.ListingRepository

	Close()

	NewTransaction() Transaction
}

// Transaction interface defines the method to commit or discard a database
// transaction.
type Transaction interface {
	Commit() error
	Discard()
}
