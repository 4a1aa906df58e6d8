package txbuilder

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

// WalletKind identifies one of the supported wallet families. Each family has
// its own expectations about PSBT encoding and input finalization, captured
// here once instead of being scattered across call sites.
type WalletKind int

const (
	// WalletUnisat ...
	WalletUnisat WalletKind = iota
	// WalletXverse ...
	WalletXverse
	// WalletLeather ...
	WalletLeather
)

// ParseWalletKind maps a wallet name in its usual lowercase form to the
// matching kind.
func ParseWalletKind(name string) (WalletKind, error) {
	switch strings.ToLower(name) {
	case "unisat":
		return WalletUnisat, nil
	case "xverse":
		return WalletXverse, nil
	case "leather", "hiro":
		return WalletLeather, nil
	default:
		return 0, ErrUnknownWallet
	}
}

func (k WalletKind) String() string {
	switch k {
	case WalletUnisat:
		return "unisat"
	case WalletXverse:
		return "xverse"
	case WalletLeather:
		return "leather"
	default:
		return "unknown"
	}
}

// displaysBase64 reports whether the wallet family exchanges PSBTs in base64.
// The others expect raw hex.
func (k WalletKind) displaysBase64() bool {
	return k == WalletXverse
}

// ToWalletFormat converts a PSBT from its canonical base64 form to the
// encoding the given wallet expects. The conversion is lossless.
func ToWalletFormat(psbtB64 string, kind WalletKind) (string, error) {
	p, err := psbt.NewFromRawBytes(strings.NewReader(psbtB64), true)
	if err != nil {
		return "", ErrInvalidPsbt
	}
	if kind.displaysBase64() {
		return psbtB64, nil
	}

	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// FromWalletFormat converts a PSBT received from a wallet back to the
// canonical base64 form. It is the exact inverse of ToWalletFormat.
func FromWalletFormat(raw string, kind WalletKind) (string, error) {
	if kind.displaysBase64() {
		p, err := psbt.NewFromRawBytes(strings.NewReader(raw), true)
		if err != nil {
			return "", ErrInvalidPsbt
		}
		return p.B64Encode()
	}

	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return "", ErrInvalidPsbt
	}
	p, err := psbt.NewFromRawBytes(bytes.NewReader(decoded), false)
	if err != nil {
		return "", ErrInvalidPsbt
	}
	return p.B64Encode()
}

// FinalizeForWallet produces the final scripts for the given input indices of
// a signed PSBT, honouring the quirks of the signing wallet: the Xverse
// family only ever emits partial signatures, so every given index is
// finalized here and a pre-finalized input marks a packet this flow never
// produced. Unisat and Leather auto-finalize the inputs they sign, so final
// scripts they already produced are kept as-is and only the pending indices
// are finalized.
func FinalizeForWallet(kind WalletKind, psbtB64 string, indices []int) (string, error) {
	p, err := psbt.NewFromRawBytes(strings.NewReader(psbtB64), true)
	if err != nil {
		return "", ErrInvalidPsbt
	}

	for _, idx := range indices {
		if idx < 0 || idx >= len(p.Inputs) {
			return "", ErrInputIndexOutOfRange
		}
	}

	switch kind {
	case WalletXverse:
		for _, idx := range indices {
			if isInputFinal(&p.Inputs[idx]) {
				return "", ErrUnexpectedFinalInput
			}
			if _, err := psbt.MaybeFinalize(p, idx); err != nil {
				return "", err
			}
		}
	case WalletUnisat, WalletLeather:
		for _, idx := range indices {
			if isInputFinal(&p.Inputs[idx]) {
				continue
			}
			if _, err := psbt.MaybeFinalize(p, idx); err != nil {
				return "", err
			}
		}
	default:
		return "", ErrUnknownWallet
	}

	return p.B64Encode()
}

func isInputFinal(in *psbt.PInput) bool {
	return len(in.FinalScriptSig) > 0 || len(in.FinalScriptWitness) > 0
}
