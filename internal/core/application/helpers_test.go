package application_test

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
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

// signInputs injects taproot key-spend signatures for the given inputs of a
// base64 PSBT and returns the re-encoded, unfinalized packet.
func signInputs(t *testing.T, psbtB64 string, indices []int, privKey *btcec.PrivateKey) string {
	t.Helper()

	p, err := psbt.NewFromRawBytes(strings.NewReader(psbtB64), true)
	require.NoError(t, err)

	prevOuts := make(map[wire.OutPoint]*wire.TxOut)
	for i, in := range p.UnsignedTx.TxIn {
		prevOuts[in.PreviousOutPoint] = p.Inputs[i].WitnessUtxo
	}
	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := txscript.NewTxSigHashes(p.UnsignedTx, fetcher)

	for _, idx := range indices {
		sig, err := txscript.RawTxInTaprootSignature(
			p.UnsignedTx, sigHashes, idx,
			p.Inputs[idx].WitnessUtxo.Value,
			p.Inputs[idx].WitnessUtxo.PkScript,
			nil, txscript.SigHashDefault, privKey,
		)
		require.NoError(t, err)
		p.Inputs[idx].TaprootKeySpendSig = sig
	}

	encoded, err := p.B64Encode()
	require.NoError(t, err)
	return encoded
}

// mockExplorer serves canned chain data and records broadcasts. The optional
// onInscriptionLookup hook runs at the start of every GetInscription call.
type mockExplorer struct {
	inscriptions        map[string]*explorer.InscriptionLocation
	unspents            map[string][]explorer.Utxo
	feeRate             uint64
	broadcastErr        error
	broadcasted         []string
	onInscriptionLookup func()
}

func newMockExplorer() *mockExplorer {
	return &mockExplorer{
		inscriptions: map[string]*explorer.InscriptionLocation{},
		unspents:     map[string][]explorer.Utxo{},
		feeRate:      10,
	}
}

func (m *mockExplorer) addInscription(id, address string, utxo explorer.Utxo, contentType string) {
	m.inscriptions[id] = &explorer.InscriptionLocation{
		InscriptionID: id,
		Address:       address,
		ContentType:   contentType,
		Utxo:          utxo,
	}
}

func (m *mockExplorer) GetInscription(inscriptionID string) (*explorer.InscriptionLocation, error) {
	if m.onInscriptionLookup != nil {
		m.onInscriptionLookup()
	}
	loc, ok := m.inscriptions[inscriptionID]
	if !ok {
		return nil, errors.New("inscription not found")
	}
	return loc, nil
}

func (m *mockExplorer) GetUnspents(addr string) ([]explorer.Utxo, error) {
	return m.unspents[addr], nil
}

func (m *mockExplorer) GetInscriptionUnspents(addr string) ([]*explorer.InscriptionLocation, error) {
	locations := make([]*explorer.InscriptionLocation, 0)
	for _, loc := range m.inscriptions {
		if loc.Address == addr {
			locations = append(locations, loc)
		}
	}
	return locations, nil
}

func (m *mockExplorer) GetFeeRate() (uint64, error) {
	return m.feeRate, nil
}

func (m *mockExplorer) BroadcastTransaction(txHex string) (string, error) {
	if m.broadcastErr != nil {
		return "", m.broadcastErr
	}
	m.broadcasted = append(m.broadcasted, txHex)
	return "broadcasted", nil
}
