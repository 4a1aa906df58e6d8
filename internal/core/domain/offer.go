package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ordex-network/ordex-daemon/pkg/txbuilder"
)

// OfferStatus represents the different statuses that an offer can assume.
type OfferStatus struct {
	Code   int
	Failed bool
}

// OfferKind discriminates the two trade shapes sharing the offer lifecycle.
type OfferKind int

const (
	// BuyNowOffer trades one inscription for BTC against an active listing.
	BuyNowOffer OfferKind = iota
	// SwapOffer trades inscriptions for inscriptions with an optional BTC
	// delta.
	SwapOffer
)

// Offer is the data structure representing a trade offer entity, either
// buy-now or swap. The unsigned PSBT is immutable once persisted; only the
// two signed fragments and the status mutate afterwards.
type Offer struct {
	Id   uuid.UUID
	Kind OfferKind

	// TradeKey identifies the traded pair: the listing id for buy-now, the
	// sorted inscription sets for swaps. Together with BuyerAddress it keys
	// the at-most-one-open-offer invariant.
	TradeKey string

	ListingId            uuid.UUID
	InscriptionId        string
	SellerInscriptionIds []string
	BuyerInscriptionIds  []string

	BuyerAddress  string
	SellerAddress string
	BuyerWallet   txbuilder.WalletKind
	OwnerWallet   txbuilder.WalletKind

	PriceSats uint64

	UnsignedPsbt    string
	BuyerSignedPsbt string
	OwnerSignedPsbt string
	// InputCount is the total number of inputs of the unsigned PSBT.
	InputCount int
	// OwnerInputCount is the number of leading inputs controlled by the
	// seller: 1 for buy-now, the seller inscription count for swaps.
	OwnerInputCount int

	TxId string

	Status     OfferStatus
	ExpiryTime int64
	CreatedAt  int64
	UpdatedAt  int64
	Deleted    bool
}

// NewBuyNowOffer returns a buy-now offer in Created status for the given
// listing and buyer.
func NewBuyNowOffer(
	listing *Listing, buyerAddress string,
	buyerWallet, ownerWallet txbuilder.WalletKind,
	unsignedPsbt string, inputCount int, expiryTime int64,
) *Offer {
	now := time.Now().Unix()
	return &Offer{
		Id:              uuid.New(),
		Kind:            BuyNowOffer,
		TradeKey:        listing.Id.String(),
		ListingId:       listing.Id,
		InscriptionId:   listing.InscriptionId,
		BuyerAddress:    buyerAddress,
		SellerAddress:   listing.SellerAddress,
		BuyerWallet:     buyerWallet,
		OwnerWallet:     ownerWallet,
		PriceSats:       listing.PriceSats,
		UnsignedPsbt:    unsignedPsbt,
		InputCount:      inputCount,
		OwnerInputCount: 1,
		Status:          OfferStatus{Code: OfferStatusCodeCreated},
		ExpiryTime:      expiryTime,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewSwapOffer returns a swap offer in Created status.
func NewSwapOffer(
	sellerInscriptionIds, buyerInscriptionIds []string,
	sellerAddress, buyerAddress string,
	buyerWallet, ownerWallet txbuilder.WalletKind,
	priceSats uint64,
	unsignedPsbt string, inputCount int, expiryTime int64,
) *Offer {
	now := time.Now().Unix()
	return &Offer{
		Id:                   uuid.New(),
		Kind:                 SwapOffer,
		TradeKey:             SwapTradeKey(sellerInscriptionIds, buyerInscriptionIds),
		SellerInscriptionIds: sellerInscriptionIds,
		BuyerInscriptionIds:  buyerInscriptionIds,
		BuyerAddress:         buyerAddress,
		SellerAddress:        sellerAddress,
		BuyerWallet:          buyerWallet,
		OwnerWallet:          ownerWallet,
		PriceSats:            priceSats,
		UnsignedPsbt:         unsignedPsbt,
		InputCount:           inputCount,
		OwnerInputCount:      len(sellerInscriptionIds),
		Status:               OfferStatus{Code: OfferStatusCodeCreated},
		ExpiryTime:           expiryTime,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Supersede overwrites the PSBT, price and deadline of a prior open offer for
// the same (trade, buyer) pair instead of creating a duplicate row. Signed
// fragments collected against the old template are dropped.
func (o *Offer) Supersede(
	unsignedPsbt string, inputCount int, priceSats uint64, expiryTime int64,
) error {
	if o.IsTerminal() {
		return ErrOfferTerminal
	}

	o.UnsignedPsbt = unsignedPsbt
	o.InputCount = inputCount
	o.PriceSats = priceSats
	o.ExpiryTime = expiryTime
	o.BuyerSignedPsbt = ""
	o.OwnerSignedPsbt = ""
	o.Status = OfferStatus{Code: OfferStatusCodeCreated}
	o.UpdatedAt = time.Now().Unix()
	return nil
}

// Sign brings the offer from Created to Signed by taking in the buyer's
// finalized fragment. The deadline is re-checked here: the sweep only catches
// stale offers between transitions.
func (o *Offer) Sign(buyerSignedPsbt string) error {
	if o.IsTerminal() {
		return ErrOfferTerminal
	}
	if o.Status.Code != OfferStatusCodeCreated {
		return ErrOfferMustBeCreated
	}
	if o.IsExpired() {
		return ErrOfferExpired
	}

	o.BuyerSignedPsbt = buyerSignedPsbt
	o.Status.Code = OfferStatusCodeSigned
	o.UpdatedAt = time.Now().Unix()
	return nil
}

// Accept brings the offer from Signed to Accepted by taking in the owner's
// finalized fragment. This is the compare-and-swap point guarding against
// concurrent owner submissions: only one of them finds the offer in Signed
// status.
func (o *Offer) Accept(ownerSignedPsbt string) error {
	if o.IsTerminal() {
		return ErrOfferTerminal
	}
	if o.Status.Code != OfferStatusCodeSigned {
		return ErrOfferMustBeSigned
	}
	if o.IsExpired() {
		return ErrOfferExpired
	}

	o.OwnerSignedPsbt = ownerSignedPsbt
	o.Status.Code = OfferStatusCodeAccepted
	o.UpdatedAt = time.Now().Unix()
	return nil
}

// Push brings the offer from Accepted to the terminal Pushed status after a
// successful broadcast.
func (o *Offer) Push(txid string) error {
	if o.Status.Code != OfferStatusCodeAccepted || o.Status.Failed {
		return ErrOfferMustBeAccepted
	}

	o.TxId = txid
	o.Status.Code = OfferStatusCodePushed
	o.UpdatedAt = time.Now().Unix()
	return nil
}

// Fail marks the offer as permanently failed. The collected signatures are
// not reusable against a stale template, so a failed offer is never retried;
// the buyer must generate a fresh one.
func (o *Offer) Fail() {
	if o.IsTerminal() {
		return
	}

	o.Status.Failed = true
	o.UpdatedAt = time.Now().Unix()
}

// Expire brings the offer to the terminal Expired status, provided a deadline
// was set and has passed. Pushed offers are never expired regardless of age.
func (o *Offer) Expire() error {
	if o.Status.Code == OfferStatusCodeExpired {
		return nil
	}
	if o.IsTerminal() {
		return ErrOfferTerminal
	}
	if o.ExpiryTime <= 0 {
		return ErrOfferNullExpiry
	}
	if time.Now().Before(time.Unix(o.ExpiryTime, 0)) {
		return ErrOfferExpiryNotReached
	}

	o.Status.Code = OfferStatusCodeExpired
	o.Deleted = true
	o.UpdatedAt = time.Now().Unix()
	return nil
}

// Cancel brings any non-terminal offer to the terminal Canceled status.
func (o *Offer) Cancel() error {
	if o.IsTerminal() {
		return ErrOfferTerminal
	}

	o.Status.Code = OfferStatusCodeCanceled
	o.UpdatedAt = time.Now().Unix()
	return nil
}

// IsTerminal returns whether the offer reached a status that admits no
// further transition.
func (o *Offer) IsTerminal() bool {
	switch o.Status.Code {
	case OfferStatusCodePushed, OfferStatusCodeExpired, OfferStatusCodeCanceled:
		return true
	}
	return o.Status.Failed
}

// IsExpired returns whether the offer is in Expired status or its deadline
// has passed.
func (o *Offer) IsExpired() bool {
	return o.Status.Code == OfferStatusCodeExpired ||
		(o.ExpiryTime > 0 && time.Now().After(time.Unix(o.ExpiryTime, 0)))
}

// IsPushed returns whether the offer is in the Pushed status.
func (o *Offer) IsPushed() bool {
	return o.Status.Code == OfferStatusCodePushed
}

// BuyerInputIndices returns the indices of the inputs the buyer must sign,
// ie. everything after the owner-controlled ones.
func (o *Offer) BuyerInputIndices() []int {
	indices := make([]int, 0, o.InputCount-o.OwnerInputCount)
	for i := o.OwnerInputCount; i < o.InputCount; i++ {
		indices = append(indices, i)
	}
	return indices
}

// OwnerInputIndices returns the indices of the owner-controlled inputs.
func (o *Offer) OwnerInputIndices() []int {
	indices := make([]int, 0, o.OwnerInputCount)
	for i := 0; i < o.OwnerInputCount; i++ {
		indices = append(indices, i)
	}
	return indices
}

// SwapTradeKey derives an order-independent identifier for the swapped pair
// of inscription sets.
func SwapTradeKey(sellerIds, buyerIds []string) string {
	s := append([]string{}, sellerIds...)
	b := append([]string{}, buyerIds...)
	sort.Strings(s)
	sort.Strings(b)
	return strings.Join(s, ",") + "|" + strings.Join(b, ",")
}
