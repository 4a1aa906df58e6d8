package dbbadger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ordex-network/ordex-daemon/internal/core/domain"
	"github.com/ordex-network/ordex-daemon/internal/core/ports"
)

// DbManager holds the badgerhold store backing both the offer and listing
// repositories. Keeping them in a single store lets a pushed trade consume
// its listing within the same transaction.
type DbManager struct {
	Store *badgerhold.Store

	offerRepository   domain.OfferRepository
	listingRepository domain.ListingRepository
}

// NewDbManager opens (or creates if not exists) the badger store on disk. It
// expects a base data dir and an optional logger.
func NewDbManager(baseDbDir string, logger badger.Logger) (*DbManager, error) {
	store, err := createDb(filepath.Join(baseDbDir, "trades"), logger)
	if err != nil {
		return nil, fmt.Errorf("opening trades db: %w", err)
	}

	db := &DbManager{Store: store}
	db.offerRepository = NewOfferRepositoryImpl(db)
	db.listingRepository = NewListingRepositoryImpl(db)
	return db, nil
}

// OfferRepository implements the ports.RepoManager interface.
func (d *DbManager) OfferRepository() domain.OfferRepository {
	return d.offerRepository
}

// ListingRepository implements the ports.RepoManager interface.
func (d *DbManager) ListingRepository() domain.ListingRepository {
	return d.listingRepository
}

// NewTransaction implements the ports.RepoManager interface.
func (d *DbManager) NewTransaction() ports.Transaction {
	return d.Store.Badger().NewTransaction(true)
}

// Close closes the underlying store.
func (d *DbManager) Close() {
	d.Store.Close()
}

// JSONEncode is a custom JSON based encoder for badger.
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer

	en := json.NewEncoder(&buff)

	err := en.Encode(value)
	if err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger.
func JSONDecode(data []byte, value interface{}) error {
	var buff bytes.Buffer
	de := json.NewDecoder(&buff)

	_, err := buff.Write(data)
	if err != nil {
		return err
	}

	return de.Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (db *badgerhold.Store, err error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	db, err = badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})

	return
}
