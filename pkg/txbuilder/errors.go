package txbuilder

import "errors"

var (
	// ErrInsufficientFunds is returned when the payer's whole utxo set cannot
	// cover the requested amount plus network fees.
	ErrInsufficientFunds = errors.New("insufficient funds to cover price and network fees")
	// ErrUnknownWallet is returned when a wallet kind outside the supported
	// set is requested.
	ErrUnknownWallet = errors.New("unknown wallet kind")
	// ErrInvalidPsbt is returned when a PSBT cannot be decoded in any of the
	// supported encodings.
	ErrInvalidPsbt = errors.New("invalid psbt encoding")
	// ErrPsbtMismatch is returned when combining PSBTs that do not refer to
	// the same unsigned transaction.
	ErrPsbtMismatch = errors.New("psbts do not refer to the same transaction")
	// ErrMissingInscriptionUtxo ...
	ErrMissingInscriptionUtxo = errors.New("missing inscription utxo")
	// ErrMissingAddress ...
	ErrMissingAddress = errors.New("missing address")
	// ErrNullFeeRate ...
	ErrNullFeeRate = errors.New("fee rate must be positive")
	// ErrInputIndexOutOfRange ...
	ErrInputIndexOutOfRange = errors.New("input index out of range")
	// ErrUnexpectedFinalInput is returned when a wallet that only ever emits
	// partial signatures submits a packet carrying final scripts.
	ErrUnexpectedFinalInput = errors.New("unexpected finalized input in wallet submission")
)
