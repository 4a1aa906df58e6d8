package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ordex-network/ordex-daemon/internal/core/application"
	"github.com/ordex-network/ordex-daemon/internal/core/domain"
	dbbadger "github.com/ordex-network/ordex-daemon/internal/infrastructure/storage/db/badger"
	"github.com/ordex-network/ordex-daemon/pkg/explorer"
	"github.com/ordex-network/ordex-daemon/pkg/txbuilder"
)

// badgerTestEnv runs the service against the on-disk store, whose
// transactions decide the winner of concurrent submissions.
type badgerTestEnv struct {
	svc      application.OfferService
	repoMgr  *dbbadger.DbManager
	explorer *mockExplorer
	seller   *party
	buyer    *party
}

func newBadgerTestEnv(t *testing.T) *badgerTestEnv {
	t.Helper()

	repoMgr, err := dbbadger.NewDbManager(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(repoMgr.Close)

	mock := newMockExplorer()
	svc := application.NewOfferService(
		repoMgr, mock, txbuilder.NewBuilder(testNetParams), time.Hour,
	)

	return &badgerTestEnv{
		svc:      svc,
		repoMgr:  repoMgr,
		explorer: mock,
		seller:   newParty(t),
		buyer:    newParty(t),
	}
}

func (e *badgerTestEnv) listInscription(t *testing.T, priceSats uint64) *domain.Listing {
	t.Helper()

	e.explorer.addInscription(
		testInscriptionId, e.seller.address, e.seller.utxo(t, 546), "image/png",
	)

	listing, err := e.svc.CreateListing(context.Background(), application.ListingRequest{
		InscriptionId: testInscriptionId,
		SellerAddress: e.seller.address,
		SellerPubkey:  e.seller.pubkeyHex,
		PriceSats:     priceSats,
	})
	require.NoError(t, err)
	return listing
}

func (e *badgerTestEnv) tradeRequest(t *testing.T, listing *domain.Listing) application.TradeRequest {
	t.Helper()

	e.explorer.unspents[e.buyer.address] = []explorer.Utxo{
		e.buyer.utxo(t, 100000),
		e.buyer.utxo(t, 250000),
	}

	return application.TradeRequest{
		ListingId:    listing.Id.String(),
		BuyerAddress: e.buyer.address,
		BuyerPubkey:  e.buyer.pubkeyHex,
		BuyerWallet:  "unisat",
		Expiry:       "2h",
	}
}

func TestConcurrentGenerateOffer(t *testing.T) {
	ctx := context.Background()
	env := newBadgerTestEnv(t)
	listing := env.listInscription(t, 300000)
	req := env.tradeRequest(t, listing)

	type result struct {
		preview *application.TradePreview
		err     error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			preview, err := env.svc.GenerateOffer(ctx, req)
			results <- result{preview, err}
		}()
	}

	first, second := <-results, <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	require.Equal(t, first.preview.OfferId, second.preview.OfferId)

	// One request inserted, the other superseded: a single open row remains.
	pending, err := env.svc.ListPendingOffers(ctx, env.buyer.address, domain.NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestConcurrentSubmitOwnerSignature(t *testing.T) {
	ctx := context.Background()
	env := newBadgerTestEnv(t)
	listing := env.listInscription(t, 300000)

	preview, err := env.svc.GenerateOffer(ctx, env.tradeRequest(t, listing))
	require.NoError(t, err)

	offer, err := env.repoMgr.OfferRepository().GetOffer(ctx, preview.OfferId)
	require.NoError(t, err)

	buyerSigned := signInputs(t, offer.UnsignedPsbt, offer.BuyerInputIndices(), env.buyer.privKey)
	buyerRaw, err := txbuilder.ToWalletFormat(buyerSigned, txbuilder.WalletUnisat)
	require.NoError(t, err)
	require.NoError(t, env.svc.SubmitBuyerSignature(ctx, offer.Id, buyerRaw, "unisat"))

	ownerSigned := signInputs(t, offer.UnsignedPsbt, offer.OwnerInputIndices(), env.seller.privKey)
	ownerRaw, err := txbuilder.ToWalletFormat(ownerSigned, txbuilder.WalletUnisat)
	require.NoError(t, err)

	// The ownership re-check runs right before the status swap: hold both
	// submissions there so each has read the offer while still Signed.
	var barrier sync.WaitGroup
	barrier.Add(2)
	env.explorer.onInscriptionLookup = func() {
		barrier.Done()
		barrier.Wait()
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := env.svc.SubmitOwnerSignature(
				ctx, offer.Id, ownerRaw, "unisat", env.seller.address,
			)
			errs <- err
		}()
	}

	first, second := <-errs, <-errs
	if first == nil {
		require.ErrorIs(t, second, application.ErrOfferConflict)
	} else {
		require.NoError(t, second)
		require.ErrorIs(t, first, application.ErrOfferConflict)
	}
	require.Len(t, env.explorer.broadcasted, 1)

	pushed, err := env.repoMgr.OfferRepository().GetOffer(ctx, offer.Id)
	require.NoError(t, err)
	require.True(t, pushed.IsPushed())
}
