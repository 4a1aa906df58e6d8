package txbuilder

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

// InputCount returns the number of inputs of a base64 PSBT.
func InputCount(psbtB64 string) (int, error) {
	p, err := psbt.NewFromRawBytes(strings.NewReader(psbtB64), true)
	if err != nil {
		return 0, ErrInvalidPsbt
	}
	return len(p.Inputs), nil
}

// FinalizeInputs produces the final scripts for the given input indices and
// returns the re-encoded PSBT. Inputs must carry complete signature data.
func FinalizeInputs(psbtB64 string, indices []int) (string, error) {
	p, err := psbt.NewFromRawBytes(strings.NewReader(psbtB64), true)
	if err != nil {
		return "", ErrInvalidPsbt
	}

	for _, idx := range indices {
		if idx < 0 || idx >= len(p.Inputs) {
			return "", ErrInputIndexOutOfRange
		}
		if _, err := psbt.MaybeFinalize(p, idx); err != nil {
			return "", err
		}
	}

	return p.B64Encode()
}

// MatchesTemplate verifies the candidate PSBT carries the exact unsigned
// transaction of the template, returning ErrPsbtMismatch when it does not.
func MatchesTemplate(templateB64, candidateB64 string) error {
	tmpl, err := psbt.NewFromRawBytes(strings.NewReader(templateB64), true)
	if err != nil {
		return ErrInvalidPsbt
	}
	candidate, err := psbt.NewFromRawBytes(strings.NewReader(candidateB64), true)
	if err != nil {
		return ErrInvalidPsbt
	}
	if candidate.UnsignedTx.TxHash() != tmpl.UnsignedTx.TxHash() {
		return ErrPsbtMismatch
	}
	return nil
}

// Combine merges the signature data two independent signers injected at
// different input positions of the same template into a single packet, then
// finalizes every input. The result is ready for extraction.
func Combine(unsignedB64, fragmentA, fragmentB string) (*psbt.Packet, error) {
	base, err := psbt.NewFromRawBytes(strings.NewReader(unsignedB64), true)
	if err != nil {
		return nil, ErrInvalidPsbt
	}

	for _, fragment := range []string{fragmentA, fragmentB} {
		frag, err := psbt.NewFromRawBytes(strings.NewReader(fragment), true)
		if err != nil {
			return nil, ErrInvalidPsbt
		}
		if frag.UnsignedTx.TxHash() != base.UnsignedTx.TxHash() {
			return nil, ErrPsbtMismatch
		}
		if len(frag.Inputs) != len(base.Inputs) {
			return nil, ErrPsbtMismatch
		}
		for i := range frag.Inputs {
			mergeInput(&base.Inputs[i], &frag.Inputs[i])
		}
	}

	if err := psbt.MaybeFinalizeAll(base); err != nil {
		return nil, err
	}
	return base, nil
}

// Extract finalizes nothing: it expects a fully finalized packet and returns
// the raw transaction in hex format along with its txid.
func Extract(p *psbt.Packet) (string, string, error) {
	tx, err := psbt.Extract(p)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", "", err
	}
	return hex.EncodeToString(buf.Bytes()), tx.TxHash().String(), nil
}

// mergeInput copies the signature material of src into dst, leaving dst
// untouched where it already carries final scripts.
func mergeInput(dst, src *psbt.PInput) {
	if isInputFinal(dst) {
		return
	}
	if isInputFinal(src) {
		dst.FinalScriptSig = src.FinalScriptSig
		dst.FinalScriptWitness = src.FinalScriptWitness
		return
	}
	if len(src.PartialSigs) > 0 {
		dst.PartialSigs = append(dst.PartialSigs, src.PartialSigs...)
	}
	if len(src.TaprootKeySpendSig) > 0 {
		dst.TaprootKeySpendSig = src.TaprootKeySpendSig
	}
	if len(src.TaprootScriptSpendSig) > 0 {
		dst.TaprootScriptSpendSig = append(dst.TaprootScriptSpendSig, src.TaprootScriptSpendSig...)
	}
	if len(src.TaprootInternalKey) > 0 {
		dst.TaprootInternalKey = src.TaprootInternalKey
	}
}
