package application_test

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ordex-network/ordex-daemon/internal/core/application"
	"github.com/ordex-network/ordex-daemon/internal/core/domain"
	"github.com/ordex-network/ordex-daemon/internal/infrastructure/storage/db/inmemory"
	"github.com/ordex-network/ordex-daemon/pkg/explorer"
	"github.com/ordex-network/ordex-daemon/pkg/txbuilder"
)

const testInscriptionId = "e199a1d32b8b3c4f9c1f2a55ab6a3fd86b3f2d5c4e199a1d32b8b3c4f9c1f2aai0"

type testEnv struct {
	svc      application.OfferService
	repoMgr  *inmemory.DbManager
	explorer *mockExplorer
	seller   *party
	buyer    *party
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repoMgr := inmemory.NewDbManager()
	mock := newMockExplorer()
	svc := application.NewOfferService(
		repoMgr, mock, txbuilder.NewBuilder(testNetParams), time.Hour,
	)

	return &testEnv{
		svc:      svc,
		repoMgr:  repoMgr,
		explorer: mock,
		seller:   newParty(t),
		buyer:    newParty(t),
	}
}

// listInscription publishes the test inscription on chain at the seller's
// address and creates the backing listing.
func (e *testEnv) listInscription(t *testing.T, priceSats uint64) *domain.Listing {
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

func (e *testEnv) generateOffer(t *testing.T, listing *domain.Listing) *application.TradePreview {
	t.Helper()

	e.explorer.unspents[e.buyer.address] = []explorer.Utxo{
		e.buyer.utxo(t, 100000),
		e.buyer.utxo(t, 250000),
	}

	preview, err := e.svc.GenerateOffer(context.Background(), application.TradeRequest{
		ListingId:    listing.Id.String(),
		BuyerAddress: e.buyer.address,
		BuyerPubkey:  e.buyer.pubkeyHex,
		BuyerWallet:  "unisat",
		Expiry:       "2h",
	})
	require.NoError(t, err)
	return preview
}

func TestCreateListing(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		env := newTestEnv(t)
		listing := env.listInscription(t, 300000)

		require.True(t, listing.IsActive())
		require.EqualValues(t, 300000, listing.PriceSats)

		stored, err := env.repoMgr.ListingRepository().GetActiveListingByInscription(
			ctx, testInscriptionId,
		)
		require.NoError(t, err)
		require.NotNil(t, stored)
		require.Equal(t, listing.Id, stored.Id)
	})

	t.Run("relisting supersedes the previous one", func(t *testing.T) {
		env := newTestEnv(t)
		first := env.listInscription(t, 300000)
		second := env.listInscription(t, 250000)
		require.NotEqual(t, first.Id, second.Id)

		active, err := env.repoMgr.ListingRepository().GetActiveListingByInscription(
			ctx, testInscriptionId,
		)
		require.NoError(t, err)
		require.Equal(t, second.Id, active.Id)
		require.EqualValues(t, 250000, active.PriceSats)
	})

	t.Run("decimal btc price floors to satoshis", func(t *testing.T) {
		env := newTestEnv(t)
		env.explorer.addInscription(
			testInscriptionId, env.seller.address, env.seller.utxo(t, 546), "image/png",
		)

		listing, err := env.svc.CreateListing(ctx, application.ListingRequest{
			InscriptionId: testInscriptionId,
			SellerAddress: env.seller.address,
			SellerPubkey:  env.seller.pubkeyHex,
			PriceBtc:      "0.000000019",
		})
		require.NoError(t, err)
		require.EqualValues(t, 1, listing.PriceSats)
	})

	t.Run("ownership mismatch", func(t *testing.T) {
		env := newTestEnv(t)
		thief := newParty(t)
		env.explorer.addInscription(
			testInscriptionId, env.seller.address, env.seller.utxo(t, 546), "image/png",
		)

		_, err := env.svc.CreateListing(ctx, application.ListingRequest{
			InscriptionId: testInscriptionId,
			SellerAddress: thief.address,
			SellerPubkey:  thief.pubkeyHex,
			PriceSats:     300000,
		})
		require.ErrorIs(t, err, application.ErrOwnershipMismatch)
	})

	t.Run("null price", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.CreateListing(ctx, application.ListingRequest{
			InscriptionId: testInscriptionId,
			SellerAddress: env.seller.address,
		})
		require.ErrorIs(t, err, application.ErrNullPrice)
	})
}

func TestRemoveListing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.listInscription(t, 300000)

	require.ErrorIs(
		t,
		env.svc.RemoveListing(ctx, testInscriptionId, env.buyer.address),
		application.ErrUnauthorized,
	)

	require.NoError(t, env.svc.RemoveListing(ctx, testInscriptionId, env.seller.address))

	active, err := env.repoMgr.ListingRepository().GetActiveListingByInscription(
		ctx, testInscriptionId,
	)
	require.NoError(t, err)
	require.Nil(t, active)

	require.ErrorIs(
		t,
		env.svc.RemoveListing(ctx, testInscriptionId, env.seller.address),
		application.ErrListingNotFound,
	)
}

func TestGenerateOffer(t *testing.T) {
	ctx := context.Background()

	t.Run("buy-now offer with the listing price", func(t *testing.T) {
		env := newTestEnv(t)
		listing := env.listInscription(t, 300000)
		preview := env.generateOffer(t, listing)

		require.EqualValues(t, 300000, preview.PriceSats)
		require.Equal(t, 3, preview.InputCount)

		// Unisat displays PSBTs in raw hex.
		_, err := hex.DecodeString(preview.Psbt)
		require.NoError(t, err)

		offer, err := env.repoMgr.OfferRepository().GetOffer(ctx, preview.OfferId)
		require.NoError(t, err)
		require.Equal(t, domain.OfferStatusCodeCreated, offer.Status.Code)
		require.Equal(t, 1, offer.OwnerInputCount)
		require.Equal(t, env.seller.address, offer.SellerAddress)
	})

	t.Run("regenerating supersedes in place", func(t *testing.T) {
		env := newTestEnv(t)
		listing := env.listInscription(t, 300000)

		first := env.generateOffer(t, listing)
		second := env.generateOffer(t, listing)
		require.Equal(t, first.OfferId, second.OfferId)

		offers, err := env.repoMgr.OfferRepository().GetOffersForBuyer(
			ctx, env.buyer.address, domain.NewPage(1, 10),
		)
		require.NoError(t, err)
		require.Len(t, offers, 1)
	})

	t.Run("unknown listing", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.GenerateOffer(ctx, application.TradeRequest{
			ListingId:    uuid.NewString(),
			BuyerAddress: env.buyer.address,
			BuyerPubkey:  env.buyer.pubkeyHex,
			BuyerWallet:  "unisat",
		})
		require.ErrorIs(t, err, application.ErrListingNotFound)
	})

	t.Run("invalid expiry spec", func(t *testing.T) {
		env := newTestEnv(t)
		listing := env.listInscription(t, 300000)

		_, err := env.svc.GenerateOffer(ctx, application.TradeRequest{
			ListingId:    listing.Id.String(),
			BuyerAddress: env.buyer.address,
			BuyerPubkey:  env.buyer.pubkeyHex,
			BuyerWallet:  "unisat",
			Expiry:       "2w",
		})
		require.ErrorIs(t, err, application.ErrInvalidExpiry)
	})

	t.Run("unknown wallet", func(t *testing.T) {
		env := newTestEnv(t)
		listing := env.listInscription(t, 300000)

		_, err := env.svc.GenerateOffer(ctx, application.TradeRequest{
			ListingId:    listing.Id.String(),
			BuyerAddress: env.buyer.address,
			BuyerPubkey:  env.buyer.pubkeyHex,
			BuyerWallet:  "metamask",
		})
		require.ErrorIs(t, err, txbuilder.ErrUnknownWallet)
	})
}

func TestGenerateSwapOffer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	sellerInscription := "aaa0000000000000000000000000000000000000000000000000000000000000i0"
	buyerInscription := "bbb0000000000000000000000000000000000000000000000000000000000000i0"
	env.explorer.addInscription(
		sellerInscription, env.seller.address, env.seller.utxo(t, 546), "image/png",
	)
	env.explorer.addInscription(
		buyerInscription, env.buyer.address, env.buyer.utxo(t, 600), "image/png",
	)

	preview, err := env.svc.GenerateOffer(ctx, application.TradeRequest{
		SellerInscriptionIds: []string{sellerInscription},
		BuyerInscriptionIds:  []string{buyerInscription},
		SellerAddress:        env.seller.address,
		SellerPubkey:         env.seller.pubkeyHex,
		BuyerAddress:         env.buyer.address,
		BuyerPubkey:          env.buyer.pubkeyHex,
		BuyerWallet:          "xverse",
	})
	require.NoError(t, err)
	require.Equal(t, 2, preview.InputCount)
	require.EqualValues(t, 0, preview.PriceSats)

	offer, err := env.repoMgr.OfferRepository().GetOffer(ctx, preview.OfferId)
	require.NoError(t, err)
	require.Equal(t, domain.SwapOffer, offer.Kind)
	require.Equal(t, 1, offer.OwnerInputCount)
	require.Equal(
		t,
		domain.SwapTradeKey([]string{sellerInscription}, []string{buyerInscription}),
		offer.TradeKey,
	)

	t.Run("buyer side ownership is verified too", func(t *testing.T) {
		_, err := env.svc.GenerateOffer(ctx, application.TradeRequest{
			SellerInscriptionIds: []string{sellerInscription},
			BuyerInscriptionIds:  []string{sellerInscription},
			SellerAddress:        env.seller.address,
			SellerPubkey:         env.seller.pubkeyHex,
			BuyerAddress:         env.buyer.address,
			BuyerPubkey:          env.buyer.pubkeyHex,
			BuyerWallet:          "xverse",
		})
		require.ErrorIs(t, err, application.ErrOwnershipMismatch)
	})
}

func TestBuyNowTradeEndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	listing := env.listInscription(t, 300000)
	preview := env.generateOffer(t, listing)

	offer, err := env.repoMgr.OfferRepository().GetOffer(ctx, preview.OfferId)
	require.NoError(t, err)

	// The buyer signs its own inputs and submits in unisat's hex format.
	buyerSigned := signInputs(t, offer.UnsignedPsbt, offer.BuyerInputIndices(), env.buyer.privKey)
	buyerRaw, err := txbuilder.ToWalletFormat(buyerSigned, txbuilder.WalletUnisat)
	require.NoError(t, err)

	require.NoError(
		t, env.svc.SubmitBuyerSignature(ctx, offer.Id, buyerRaw, "unisat"),
	)

	// A duplicate submission must not overwrite anything.
	require.ErrorIs(
		t,
		env.svc.SubmitBuyerSignature(ctx, offer.Id, buyerRaw, "unisat"),
		application.ErrOfferConflict,
	)

	// The seller signs the inscription input and triggers the broadcast.
	ownerSigned := signInputs(t, offer.UnsignedPsbt, offer.OwnerInputIndices(), env.seller.privKey)
	ownerRaw, err := txbuilder.ToWalletFormat(ownerSigned, txbuilder.WalletUnisat)
	require.NoError(t, err)

	txid, err := env.svc.SubmitOwnerSignature(
		ctx, offer.Id, ownerRaw, "unisat", env.seller.address,
	)
	require.NoError(t, err)
	require.Len(t, txid, 64)
	require.Len(t, env.explorer.broadcasted, 1)

	pushed, err := env.repoMgr.OfferRepository().GetOffer(ctx, offer.Id)
	require.NoError(t, err)
	require.True(t, pushed.IsPushed())
	require.Equal(t, txid, pushed.TxId)

	// The listing is consumed by the trade.
	consumed, err := env.repoMgr.ListingRepository().GetListing(ctx, listing.Id)
	require.NoError(t, err)
	require.Equal(t, domain.ListingStatus(domain.ListingStatusCompleted), consumed.Status)

	// A pushed offer no longer shows up as active.
	active, err := env.svc.ListActiveOffers(ctx, env.seller.address, domain.NewPage(1, 10))
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestSubmitOwnerSignatureGuards(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	listing := env.listInscription(t, 300000)
	preview := env.generateOffer(t, listing)

	offer, err := env.repoMgr.OfferRepository().GetOffer(ctx, preview.OfferId)
	require.NoError(t, err)

	ownerSigned := signInputs(t, offer.UnsignedPsbt, offer.OwnerInputIndices(), env.seller.privKey)
	ownerRaw, err := txbuilder.ToWalletFormat(ownerSigned, txbuilder.WalletUnisat)
	require.NoError(t, err)

	t.Run("unauthorized requester", func(t *testing.T) {
		_, err := env.svc.SubmitOwnerSignature(
			ctx, offer.Id, ownerRaw, "unisat", env.buyer.address,
		)
		require.ErrorIs(t, err, application.ErrUnauthorized)
	})

	t.Run("buyer signature must come first", func(t *testing.T) {
		_, err := env.svc.SubmitOwnerSignature(
			ctx, offer.Id, ownerRaw, "unisat", env.seller.address,
		)
		require.ErrorIs(t, err, application.ErrOfferConflict)
	})

	t.Run("ownership re-verified before accepting", func(t *testing.T) {
		buyerSigned := signInputs(t, offer.UnsignedPsbt, offer.BuyerInputIndices(), env.buyer.privKey)
		buyerRaw, err := txbuilder.ToWalletFormat(buyerSigned, txbuilder.WalletUnisat)
		require.NoError(t, err)
		require.NoError(
			t, env.svc.SubmitBuyerSignature(ctx, offer.Id, buyerRaw, "unisat"),
		)

		// The inscription moved to another address in the meantime.
		env.explorer.addInscription(
			testInscriptionId, newParty(t).address, env.seller.utxo(t, 546), "image/png",
		)

		_, err = env.svc.SubmitOwnerSignature(
			ctx, offer.Id, ownerRaw, "unisat", env.seller.address,
		)
		require.ErrorIs(t, err, application.ErrOwnershipMismatch)
	})
}

func TestBroadcastFailureMarksOfferFailed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.explorer.broadcastErr = application.ErrServiceUnavailable

	listing := env.listInscription(t, 300000)
	preview := env.generateOffer(t, listing)

	offer, err := env.repoMgr.OfferRepository().GetOffer(ctx, preview.OfferId)
	require.NoError(t, err)

	buyerSigned := signInputs(t, offer.UnsignedPsbt, offer.BuyerInputIndices(), env.buyer.privKey)
	buyerRaw, err := txbuilder.ToWalletFormat(buyerSigned, txbuilder.WalletUnisat)
	require.NoError(t, err)
	require.NoError(t, env.svc.SubmitBuyerSignature(ctx, offer.Id, buyerRaw, "unisat"))

	ownerSigned := signInputs(t, offer.UnsignedPsbt, offer.OwnerInputIndices(), env.seller.privKey)
	ownerRaw, err := txbuilder.ToWalletFormat(ownerSigned, txbuilder.WalletUnisat)
	require.NoError(t, err)

	_, err = env.svc.SubmitOwnerSignature(
		ctx, offer.Id, ownerRaw, "unisat", env.seller.address,
	)
	require.ErrorIs(t, err, application.ErrBroadcastFailed)

	failed, err := env.repoMgr.OfferRepository().GetOffer(ctx, offer.Id)
	require.NoError(t, err)
	require.True(t, failed.Status.Failed)
	require.True(t, failed.IsTerminal())

	// The listing survives a failed trade.
	stillActive, err := env.repoMgr.ListingRepository().GetListing(ctx, listing.Id)
	require.NoError(t, err)
	require.True(t, stillActive.IsActive())
}

func TestCombineFailureMarksOfferFailed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	listing := env.listInscription(t, 300000)
	preview := env.generateOffer(t, listing)

	offer, err := env.repoMgr.OfferRepository().GetOffer(ctx, preview.OfferId)
	require.NoError(t, err)

	buyerSigned := signInputs(t, offer.UnsignedPsbt, offer.BuyerInputIndices(), env.buyer.privKey)
	buyerRaw, err := txbuilder.ToWalletFormat(buyerSigned, txbuilder.WalletUnisat)
	require.NoError(t, err)
	require.NoError(t, env.svc.SubmitBuyerSignature(ctx, offer.Id, buyerRaw, "unisat"))

	// Corrupt the stored buyer fragment with one from an unrelated trade so
	// the final combination cannot match the template.
	other := newTestEnv(t)
	otherOffer, err := other.repoMgr.OfferRepository().GetOffer(
		ctx, other.generateOffer(t, other.listInscription(t, 200000)).OfferId,
	)
	require.NoError(t, err)
	require.NoError(t, env.repoMgr.OfferRepository().UpdateOffer(
		ctx, offer.Id, func(o *domain.Offer) (*domain.Offer, error) {
			o.BuyerSignedPsbt = otherOffer.UnsignedPsbt
			return o, nil
		},
	))

	ownerSigned := signInputs(t, offer.UnsignedPsbt, offer.OwnerInputIndices(), env.seller.privKey)
	ownerRaw, err := txbuilder.ToWalletFormat(ownerSigned, txbuilder.WalletUnisat)
	require.NoError(t, err)

	_, err = env.svc.SubmitOwnerSignature(
		ctx, offer.Id, ownerRaw, "unisat", env.seller.address,
	)
	require.ErrorIs(t, err, application.ErrBroadcastFailed)
	require.Empty(t, env.explorer.broadcasted)

	failed, err := env.repoMgr.OfferRepository().GetOffer(ctx, offer.Id)
	require.NoError(t, err)
	require.True(t, failed.Status.Failed)
	require.True(t, failed.IsTerminal())
}

func TestCancelOffer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	listing := env.listInscription(t, 300000)
	preview := env.generateOffer(t, listing)

	stranger := newParty(t)
	require.ErrorIs(
		t,
		env.svc.CancelOffer(ctx, preview.OfferId, stranger.address),
		application.ErrUnauthorized,
	)

	require.NoError(t, env.svc.CancelOffer(ctx, preview.OfferId, env.buyer.address))

	offer, err := env.repoMgr.OfferRepository().GetOffer(ctx, preview.OfferId)
	require.NoError(t, err)
	require.Equal(t, domain.OfferStatusCodeCanceled, offer.Status.Code)

	require.ErrorIs(
		t,
		env.svc.CancelOffer(ctx, preview.OfferId, env.buyer.address),
		application.ErrOfferConflict,
	)
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	listing := env.listInscription(t, 300000)
	preview := env.generateOffer(t, listing)

	// Backdate the deadline, then sweep.
	require.NoError(t, env.repoMgr.OfferRepository().UpdateOffer(
		ctx, preview.OfferId, func(o *domain.Offer) (*domain.Offer, error) {
			o.ExpiryTime = time.Now().Add(-time.Minute).Unix()
			return o, nil
		},
	))

	env.svc.SweepExpired(ctx)

	offer, err := env.repoMgr.OfferRepository().GetOffer(ctx, preview.OfferId)
	require.NoError(t, err)
	require.Equal(t, domain.OfferStatusCodeExpired, offer.Status.Code)
	require.True(t, offer.Deleted)

	pending, err := env.svc.ListPendingOffers(ctx, env.buyer.address, domain.NewPage(1, 10))
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestListInscriptions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	owner := newParty(t)
	env.explorer.addInscription(
		"displayable1i0", owner.address, owner.utxo(t, 546), "image/png",
	)
	env.explorer.addInscription(
		"displayable2i0", owner.address, owner.utxo(t, 546), "text/plain;charset=utf-8",
	)
	env.explorer.addInscription(
		"hiddeni0", owner.address, owner.utxo(t, 546), "text/html",
	)

	inventory, err := env.svc.ListInscriptions(ctx, owner.address)
	require.NoError(t, err)
	require.Len(t, inventory, 2)
	for _, loc := range inventory {
		require.NotEqual(t, "hiddeni0", loc.InscriptionID)
	}
}
