package txbuilder_test

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/ordex-network/ordex-daemon/pkg/explorer"
)

var testNetParams = &chaincfg.RegressionNetParams

// party is a taproot key holder with its p2tr address and script.
type party struct {
	privKey   *btcec.PrivateKey
	pubkeyHex string
	address   string
	pkScript  []byte
}

func newParty(t *testing.T) *party {
	t.Helper()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	taprootKey := txscript.ComputeTaprootKeyNoScript(privKey.PubKey())
	addr, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(taprootKey), testNetParams,
	)
	require.NoError(t, err)

	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return &party{
		privKey:   privKey,
		pubkeyHex: hex.EncodeToString(schnorr.SerializePubKey(privKey.PubKey())),
		address:   addr.EncodeAddress(),
		pkScript:  pkScript,
	}
}

func (p *party) utxo(t *testing.T, value uint64) explorer.Utxo {
	t.Helper()

	buf := make([]byte, 32)
	_, err := rand.Read(buf)
	require.NoError(t, err)

	return explorer.Utxo{
		Txid:   hex.EncodeToString(buf),
		Vout:   0,
		Value:  value,
		Script: p.pkScript,
	}
}

func decodePsbt(t *testing.T, psbtB64 string) *psbt.Packet {
	t.Helper()

	p, err := psbt.NewFromRawBytes(strings.NewReader(psbtB64), true)
	require.NoError(t, err)
	return p
}

// signInput injects a taproot key-spend signature for the given input of the
// base64 PSBT and returns the re-encoded packet, still unfinalized.
func signInput(t *testing.T, psbtB64 string, idx int, privKey *btcec.PrivateKey) string {
	t.Helper()

	p := decodePsbt(t, psbtB64)

	prevOuts := make(map[wire.OutPoint]*wire.TxOut)
	for i, in := range p.UnsignedTx.TxIn {
		prevOuts[in.PreviousOutPoint] = p.Inputs[i].WitnessUtxo
	}
	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := txscript.NewTxSigHashes(p.UnsignedTx, fetcher)

	sig, err := txscript.RawTxInTaprootSignature(
		p.UnsignedTx, sigHashes, idx,
		p.Inputs[idx].WitnessUtxo.Value,
		p.Inputs[idx].WitnessUtxo.PkScript,
		nil, txscript.SigHashDefault, privKey,
	)
	require.NoError(t, err)
	p.Inputs[idx].TaprootKeySpendSig = sig

	encoded, err := p.B64Encode()
	require.NoError(t, err)
	return encoded
}
