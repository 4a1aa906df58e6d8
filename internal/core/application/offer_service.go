package application

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ordex-network/ordex-daemon/internal/core/domain"
	"github.com/ordex-network/ordex-daemon/internal/core/ports"
	"github.com/ordex-network/ordex-daemon/pkg/explorer"
	"github.com/ordex-network/ordex-daemon/pkg/txbuilder"
)

// OfferService is the application layer driving the whole trade lifecycle:
// listing management, offer generation, the two signature submissions, the
// final broadcast and the expiry sweep.
type OfferService interface {
	CreateListing(ctx context.Context, req ListingRequest) (*domain.Listing, error)
	RemoveListing(ctx context.Context, inscriptionId, requester string) error
	ListListings(ctx context.Context, sellerAddress string, page domain.Page) ([]domain.Listing, error)

	GenerateOffer(ctx context.Context, req TradeRequest) (*TradePreview, error)
	SubmitBuyerSignature(
		ctx context.Context, offerId uuid.UUID, signedPsbt, walletName string,
	) error
	SubmitOwnerSignature(
		ctx context.Context, offerId uuid.UUID, signedPsbt, walletName, requester string,
	) (string, error)
	CancelOffer(ctx context.Context, offerId uuid.UUID, requester string) error

	ListActiveOffers(ctx context.Context, sellerAddress string, page domain.Page) ([]domain.Offer, error)
	ListPendingOffers(ctx context.Context, buyerAddress string, page domain.Page) ([]domain.Offer, error)
	ListInscriptions(ctx context.Context, address string) ([]*explorer.InscriptionLocation, error)

	SweepExpired(ctx context.Context)
}

type offerService struct {
	repoManager   ports.RepoManager
	explorerSvc   explorer.Service
	builder       *txbuilder.Builder
	defaultExpiry time.Duration

	upsertMtx sync.Mutex
}

// NewOfferService returns a new service using the given repositories, chain
// gateway and transaction builder. defaultExpiry is applied to offers whose
// request does not carry an expiry spec.
func NewOfferService(
	repoManager ports.RepoManager,
	explorerSvc explorer.Service,
	builder *txbuilder.Builder,
	defaultExpiry time.Duration,
) OfferService {
	return &offerService{
		repoManager:   repoManager,
		explorerSvc:   explorerSvc,
		builder:       builder,
		defaultExpiry: defaultExpiry,
	}
}

func (s *offerService) CreateListing(
	ctx context.Context, req ListingRequest,
) (*domain.Listing, error) {
	priceSats, err := req.priceSats()
	if err != nil {
		return nil, err
	}
	if priceSats == 0 {
		return nil, ErrNullPrice
	}
	if _, err := s.verifyOwnership(req.InscriptionId, req.SellerAddress); err != nil {
		return nil, err
	}

	listing := domain.NewListing(
		req.InscriptionId, req.SellerAddress, req.SellerPubkey, priceSats,
	)
	if err := s.repoManager.ListingRepository().AddListing(ctx, listing); err != nil {
		return nil, err
	}

	log.WithField("listing_id", listing.Id).WithField(
		"inscription", listing.InscriptionId,
	).Debug("listing created")
	return listing, nil
}

func (s *offerService) RemoveListing(
	ctx context.Context, inscriptionId, requester string,
) error {
	listing, err := s.repoManager.ListingRepository().GetActiveListingByInscription(
		ctx, inscriptionId,
	)
	if err != nil {
		return err
	}
	if listing == nil {
		return ErrListingNotFound
	}
	if listing.SellerAddress != requester {
		return ErrUnauthorized
	}

	return s.repoManager.ListingRepository().UpdateListing(
		ctx, listing.Id, func(l *domain.Listing) (*domain.Listing, error) {
			if err := l.Remove(); err != nil {
				return nil, err
			}
			return l, nil
		},
	)
}

func (s *offerService) ListListings(
	ctx context.Context, sellerAddress string, page domain.Page,
) ([]domain.Listing, error) {
	return s.repoManager.ListingRepository().GetListingsForSeller(ctx, sellerAddress, page)
}

func (s *offerService) GenerateOffer(
	ctx context.Context, req TradeRequest,
) (*TradePreview, error) {
	buyerWallet, err := txbuilder.ParseWalletKind(req.BuyerWallet)
	if err != nil {
		return nil, err
	}
	expiry, err := parseExpiry(req.Expiry, s.defaultExpiry)
	if err != nil {
		return nil, err
	}
	expiryTime := time.Now().Add(expiry).Unix()

	if req.ListingId != "" {
		return s.generateBuyNowOffer(ctx, req, buyerWallet, expiryTime)
	}
	return s.generateSwapOffer(ctx, req, buyerWallet, expiryTime)
}

func (s *offerService) generateBuyNowOffer(
	ctx context.Context, req TradeRequest,
	buyerWallet txbuilder.WalletKind, expiryTime int64,
) (*TradePreview, error) {
	listingId, err := uuid.Parse(req.ListingId)
	if err != nil {
		return nil, ErrListingNotFound
	}
	listing, err := s.repoManager.ListingRepository().GetListing(ctx, listingId)
	if err != nil || !listing.IsActive() {
		return nil, ErrListingNotFound
	}

	loc, err := s.verifyOwnership(listing.InscriptionId, listing.SellerAddress)
	if err != nil {
		return nil, err
	}

	feeRate, err := s.explorerSvc.GetFeeRate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	buyerUtxos, err := s.explorerSvc.GetUnspents(req.BuyerAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	unsignedPsbt, inputCount, err := s.builder.BuildBuyNow(txbuilder.BuyNowOpts{
		SellerPubkey:  listing.SellerPubkey,
		SellerAddress: listing.SellerAddress,
		BuyerPubkey:   req.BuyerPubkey,
		BuyerAddress:  req.BuyerAddress,
		Inscription:   loc.Utxo,
		BuyerUtxos:    buyerUtxos,
		PriceSats:     listing.PriceSats,
		FeeRate:       feeRate,
	})
	if err != nil {
		return nil, err
	}

	offer := domain.NewBuyNowOffer(
		listing, req.BuyerAddress, buyerWallet, txbuilder.WalletUnisat,
		unsignedPsbt, inputCount, expiryTime,
	)
	return s.upsertOffer(ctx, offer, buyerWallet)
}

func (s *offerService) generateSwapOffer(
	ctx context.Context, req TradeRequest,
	buyerWallet txbuilder.WalletKind, expiryTime int64,
) (*TradePreview, error) {
	sellerUtxos, err := s.verifyOwnershipAll(req.SellerInscriptionIds, req.SellerAddress)
	if err != nil {
		return nil, err
	}
	buyerInsUtxos, err := s.verifyOwnershipAll(req.BuyerInscriptionIds, req.BuyerAddress)
	if err != nil {
		return nil, err
	}

	var feeRate uint64
	var buyerUtxos []explorer.Utxo
	if req.PriceSats > 0 {
		if feeRate, err = s.explorerSvc.GetFeeRate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		if buyerUtxos, err = s.explorerSvc.GetUnspents(req.BuyerAddress); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
	}

	unsignedPsbt, inputCount, err := s.builder.BuildSwap(txbuilder.SwapOpts{
		SellerPubkey:       req.SellerPubkey,
		SellerAddress:      req.SellerAddress,
		BuyerPubkey:        req.BuyerPubkey,
		BuyerAddress:       req.BuyerAddress,
		SellerInscriptions: sellerUtxos,
		BuyerInscriptions:  buyerInsUtxos,
		BuyerUtxos:         buyerUtxos,
		PriceSats:          req.PriceSats,
		FeeRate:            feeRate,
	})
	if err != nil {
		return nil, err
	}

	offer := domain.NewSwapOffer(
		req.SellerInscriptionIds, req.BuyerInscriptionIds,
		req.SellerAddress, req.BuyerAddress,
		buyerWallet, txbuilder.WalletUnisat,
		req.PriceSats, unsignedPsbt, inputCount, expiryTime,
	)
	return s.upsertOffer(ctx, offer, buyerWallet)
}

// upsertOffer persists the freshly built offer, superseding in place any open
// offer for the same (trade, buyer) pair so that at most one exists. The
// lookup and the write are serialized: a storage transaction cannot catch two
// concurrent inserts of a pair that has no row yet, only the daemon can.
func (s *offerService) upsertOffer(
	ctx context.Context, offer *domain.Offer, buyerWallet txbuilder.WalletKind,
) (*TradePreview, error) {
	s.upsertMtx.Lock()
	defer s.upsertMtx.Unlock()

	repo := s.repoManager.OfferRepository()

	prior, err := repo.GetOpenOfferForTrade(ctx, offer.TradeKey, offer.BuyerAddress)
	if err != nil {
		return nil, err
	}

	offerId := offer.Id
	if prior != nil {
		offerId = prior.Id
		if err := repo.UpdateOffer(
			ctx, prior.Id, func(o *domain.Offer) (*domain.Offer, error) {
				if err := o.Supersede(
					offer.UnsignedPsbt, offer.InputCount, offer.PriceSats, offer.ExpiryTime,
				); err != nil {
					return nil, err
				}
				o.BuyerWallet = buyerWallet
				return o, nil
			},
		); err != nil {
			return nil, err
		}
	} else if err := repo.AddOffer(ctx, offer); err != nil {
		return nil, err
	}

	displayPsbt, err := txbuilder.ToWalletFormat(offer.UnsignedPsbt, buyerWallet)
	if err != nil {
		return nil, err
	}

	log.WithField("offer_id", offerId).WithField(
		"superseded", prior != nil,
	).Debug("offer generated")

	return &TradePreview{
		OfferId:    offerId,
		Psbt:       displayPsbt,
		InputCount: offer.InputCount,
		PriceSats:  offer.PriceSats,
		ExpiryTime: offer.ExpiryTime,
	}, nil
}

func (s *offerService) SubmitBuyerSignature(
	ctx context.Context, offerId uuid.UUID, signedPsbt, walletName string,
) error {
	wallet, err := txbuilder.ParseWalletKind(walletName)
	if err != nil {
		return err
	}

	offer, err := s.repoManager.OfferRepository().GetOffer(ctx, offerId)
	if err != nil {
		return ErrOfferNotFound
	}

	canonical, err := txbuilder.FromWalletFormat(signedPsbt, wallet)
	if err != nil {
		return err
	}
	if err := txbuilder.MatchesTemplate(offer.UnsignedPsbt, canonical); err != nil {
		return err
	}

	finalized, err := txbuilder.FinalizeForWallet(wallet, canonical, offer.BuyerInputIndices())
	if err != nil {
		return err
	}

	err = s.repoManager.OfferRepository().UpdateOffer(
		ctx, offerId, func(o *domain.Offer) (*domain.Offer, error) {
			if err := o.Sign(finalized); err != nil {
				return nil, err
			}
			o.BuyerWallet = wallet
			return o, nil
		},
	)
	if errors.Is(err, domain.ErrOfferMustBeCreated) || errors.Is(err, domain.ErrOfferTerminal) {
		return ErrOfferConflict
	}
	return err
}

func (s *offerService) SubmitOwnerSignature(
	ctx context.Context, offerId uuid.UUID, signedPsbt, walletName, requester string,
) (string, error) {
	wallet, err := txbuilder.ParseWalletKind(walletName)
	if err != nil {
		return "", err
	}

	offerRepo := s.repoManager.OfferRepository()
	offer, err := offerRepo.GetOffer(ctx, offerId)
	if err != nil {
		return "", ErrOfferNotFound
	}
	if offer.SellerAddress != requester {
		return "", ErrUnauthorized
	}

	// Ownership can have changed since the offer was generated, re-verify
	// right before accepting.
	if offer.Kind == domain.BuyNowOffer {
		if _, err := s.verifyOwnership(offer.InscriptionId, offer.SellerAddress); err != nil {
			return "", err
		}
	} else {
		if _, err := s.verifyOwnershipAll(
			offer.SellerInscriptionIds, offer.SellerAddress,
		); err != nil {
			return "", err
		}
	}

	canonical, err := txbuilder.FromWalletFormat(signedPsbt, wallet)
	if err != nil {
		return "", err
	}
	if err := txbuilder.MatchesTemplate(offer.UnsignedPsbt, canonical); err != nil {
		return "", err
	}

	finalized, err := txbuilder.FinalizeForWallet(wallet, canonical, offer.OwnerInputIndices())
	if err != nil {
		return "", err
	}

	// Compare-and-swap on the Signed status: of two concurrent submissions
	// only one passes, the other gets a conflict.
	err = offerRepo.UpdateOffer(
		ctx, offerId, func(o *domain.Offer) (*domain.Offer, error) {
			if err := o.Accept(finalized); err != nil {
				return nil, err
			}
			o.OwnerWallet = wallet
			return o, nil
		},
	)
	if err != nil {
		if errors.Is(err, domain.ErrOfferMustBeSigned) || errors.Is(err, domain.ErrOfferTerminal) {
			return "", ErrOfferConflict
		}
		return "", err
	}

	// Reload to pick up the buyer fragment as persisted at the CAS point.
	if offer, err = offerRepo.GetOffer(ctx, offerId); err != nil {
		return "", err
	}

	// From here on both signatures are collected: any failure is of the
	// broadcast class, telling the buyer to re-initiate on a fresh template.
	packet, err := txbuilder.Combine(offer.UnsignedPsbt, offer.BuyerSignedPsbt, finalized)
	if err != nil {
		s.failOffer(ctx, offerId)
		return "", fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	txHex, txid, err := txbuilder.Extract(packet)
	if err != nil {
		s.failOffer(ctx, offerId)
		return "", fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}

	if _, err := s.explorerSvc.BroadcastTransaction(txHex); err != nil {
		s.failOffer(ctx, offerId)
		log.WithError(err).WithField("offer_id", offerId).Warn("broadcast rejected")
		return "", fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}

	if err := s.pushOffer(ctx, offer, txid); err != nil {
		return "", err
	}

	log.WithField("offer_id", offerId).WithField("txid", txid).Info("trade pushed")
	return txid, nil
}

// pushOffer records the broadcast outcome: the offer reaches Pushed and, for
// buy-now trades, the backing listing is consumed in the same transaction.
func (s *offerService) pushOffer(ctx context.Context, offer *domain.Offer, txid string) error {
	tx := s.repoManager.NewTransaction()
	defer tx.Discard()
	ctx = context.WithValue(ctx, "tx", tx)

	if err := s.repoManager.OfferRepository().UpdateOffer(
		ctx, offer.Id, func(o *domain.Offer) (*domain.Offer, error) {
			if err := o.Push(txid); err != nil {
				return nil, err
			}
			return o, nil
		},
	); err != nil {
		return err
	}

	if offer.Kind == domain.BuyNowOffer {
		if err := s.repoManager.ListingRepository().UpdateListing(
			ctx, offer.ListingId, func(l *domain.Listing) (*domain.Listing, error) {
				if err := l.Complete(); err != nil {
					return nil, err
				}
				return l, nil
			},
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *offerService) failOffer(ctx context.Context, offerId uuid.UUID) {
	if err := s.repoManager.OfferRepository().UpdateOffer(
		ctx, offerId, func(o *domain.Offer) (*domain.Offer, error) {
			o.Fail()
			return o, nil
		},
	); err != nil {
		log.WithError(err).WithField("offer_id", offerId).Error("marking offer failed")
	}
}

func (s *offerService) CancelOffer(
	ctx context.Context, offerId uuid.UUID, requester string,
) error {
	offer, err := s.repoManager.OfferRepository().GetOffer(ctx, offerId)
	if err != nil {
		return ErrOfferNotFound
	}
	if requester != offer.BuyerAddress && requester != offer.SellerAddress {
		return ErrUnauthorized
	}

	err = s.repoManager.OfferRepository().UpdateOffer(
		ctx, offerId, func(o *domain.Offer) (*domain.Offer, error) {
			if err := o.Cancel(); err != nil {
				return nil, err
			}
			return o, nil
		},
	)
	if errors.Is(err, domain.ErrOfferTerminal) {
		return ErrOfferConflict
	}
	return err
}

func (s *offerService) ListActiveOffers(
	ctx context.Context, sellerAddress string, page domain.Page,
) ([]domain.Offer, error) {
	offers, err := s.repoManager.OfferRepository().GetOffersForSeller(ctx, sellerAddress, page)
	if err != nil {
		return nil, err
	}
	return filterOpenOffers(offers), nil
}

func (s *offerService) ListPendingOffers(
	ctx context.Context, buyerAddress string, page domain.Page,
) ([]domain.Offer, error) {
	offers, err := s.repoManager.OfferRepository().GetOffersForBuyer(ctx, buyerAddress, page)
	if err != nil {
		return nil, err
	}
	return filterOpenOffers(offers), nil
}

func (s *offerService) ListInscriptions(
	_ context.Context, address string,
) ([]*explorer.InscriptionLocation, error) {
	locations, err := s.explorerSvc.GetInscriptionUnspents(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	inventory := make([]*explorer.InscriptionLocation, 0, len(locations))
	for _, loc := range locations {
		if isDisplayable(loc.ContentType) {
			inventory = append(inventory, loc)
		}
	}
	return inventory, nil
}

// SweepExpired expires every offer past its deadline, skipping pushed ones.
// Rows failing to update are logged and do not stop the sweep.
func (s *offerService) SweepExpired(ctx context.Context) {
	repo := s.repoManager.OfferRepository()

	offers, err := repo.GetExpirableOffers(ctx, time.Now().Unix())
	if err != nil {
		log.WithError(err).Error("fetching expirable offers")
		return
	}

	for i := range offers {
		offerId := offers[i].Id
		if err := repo.UpdateOffer(
			ctx, offerId, func(o *domain.Offer) (*domain.Offer, error) {
				if err := o.Expire(); err != nil {
					return nil, err
				}
				return o, nil
			},
		); err != nil {
			log.WithError(err).WithField("offer_id", offerId).Warn("expiring offer")
			continue
		}
		log.WithField("offer_id", offerId).Debug("offer expired")
	}
}

func (s *offerService) verifyOwnership(
	inscriptionId, address string,
) (*explorer.InscriptionLocation, error) {
	loc, err := s.explorerSvc.GetInscription(inscriptionId)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if loc.Address != address {
		return nil, ErrOwnershipMismatch
	}
	return loc, nil
}

func (s *offerService) verifyOwnershipAll(
	inscriptionIds []string, address string,
) ([]explorer.Utxo, error) {
	utxos := make([]explorer.Utxo, 0, len(inscriptionIds))
	for _, id := range inscriptionIds {
		loc, err := s.verifyOwnership(id, address)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, loc.Utxo)
	}
	return utxos, nil
}

func filterOpenOffers(offers []domain.Offer) []domain.Offer {
	open := make([]domain.Offer, 0, len(offers))
	for i := range offers {
		if !offers[i].IsTerminal() {
			open = append(open, offers[i])
		}
	}
	return open
}

var expiryRegexp = regexp.MustCompile(`^(\d+)([mhd])$`)

func parseExpiry(spec string, defaultExpiry time.Duration) (time.Duration, error) {
	if spec == "" {
		return defaultExpiry, nil
	}

	matches := expiryRegexp.FindStringSubmatch(spec)
	if matches == nil {
		return 0, ErrInvalidExpiry
	}
	amount, err := strconv.Atoi(matches[1])
	if err != nil || amount == 0 {
		return 0, ErrInvalidExpiry
	}

	switch matches[2] {
	case "m":
		return time.Duration(amount) * time.Minute, nil
	case "h":
		return time.Duration(amount) * time.Hour, nil
	default:
		return time.Duration(amount) * 24 * time.Hour, nil
	}
}
