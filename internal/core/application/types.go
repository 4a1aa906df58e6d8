package application

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordex-network/ordex-daemon/pkg/mathutil"
)

// TradeRequest carries everything needed to build the unsigned PSBT of a new
// offer. ListingId discriminates buy-now from swap: when set, price, seller
// address and pubkey are resolved from the active listing and the inscription
// sets must be empty.
type TradeRequest struct {
	ListingId string

	SellerInscriptionIds []string
	BuyerInscriptionIds  []string
	SellerAddress        string
	SellerPubkey         string
	PriceSats            uint64

	BuyerAddress string
	BuyerPubkey  string
	BuyerWallet  string

	// Expiry is the offer lifetime as <number><unit> with unit one of m, h,
	// d. Empty means the daemon default.
	Expiry string
}

// TradePreview is what the buyer gets back to sign: the unsigned PSBT in
// their wallet's display format plus the offer handle.
type TradePreview struct {
	OfferId    uuid.UUID
	Psbt       string
	InputCount int
	PriceSats  uint64
	ExpiryTime int64
}

// ListingRequest carries the parameters of a new fixed-price listing. The
// price can be given either in satoshis or as a decimal BTC amount; when both
// are set the satoshi one wins.
type ListingRequest struct {
	InscriptionId string
	SellerAddress string
	SellerPubkey  string
	PriceSats     uint64
	PriceBtc      string
}

func (r ListingRequest) priceSats() (uint64, error) {
	if r.PriceSats > 0 || r.PriceBtc == "" {
		return r.PriceSats, nil
	}

	price, err := decimal.NewFromString(r.PriceBtc)
	if err != nil {
		return 0, ErrNullPrice
	}
	return mathutil.BtcToSats(price), nil
}

// displayableContentTypes is the allow list applied to inscription
// inventories before they are shown as tradable items.
var displayableContentTypes = map[string]struct{}{
	"image/png":     {},
	"image/jpeg":    {},
	"image/webp":    {},
	"image/gif":     {},
	"image/svg+xml": {},
	"text/plain":    {},
}

// isDisplayable matches the media type ignoring any charset parameter, eg.
// "text/plain;charset=utf-8" is displayable.
func isDisplayable(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	_, ok := displayableContentTypes[mediaType]
	return ok
}
