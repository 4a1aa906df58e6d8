package domain

const (
	// OfferStatusCodeCreated is the status of an offer whose unsigned PSBT
	// has been built and handed to the buyer for signing.
	OfferStatusCodeCreated = iota
	// OfferStatusCodeSigned is the status of an offer whose buyer-owned
	// inputs have been signed and finalized.
	OfferStatusCodeSigned
	// OfferStatusCodeAccepted is the status of an offer whose owner-owned
	// inputs have been signed, right before broadcasting.
	OfferStatusCodeAccepted
	// OfferStatusCodePushed is the terminal status of an offer whose final
	// transaction has been accepted by the network.
	OfferStatusCodePushed
	// OfferStatusCodeExpired is the terminal status of an offer swept past
	// its deadline.
	OfferStatusCodeExpired
	// OfferStatusCodeCanceled is the terminal status of an offer canceled by
	// either party.
	OfferStatusCodeCanceled
)

const (
	// ListingStatusCreated is the status of an active listing.
	ListingStatusCreated = iota
	// ListingStatusCompleted is the status of a listing consumed by a pushed
	// trade.
	ListingStatusCompleted
	// ListingStatusRemoved is the status of a listing withdrawn by its
	// seller or superseded by a newer one.
	ListingStatusRemoved
)
