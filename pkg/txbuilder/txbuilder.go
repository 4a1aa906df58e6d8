package txbuilder

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/ordex-network/ordex-daemon/pkg/explorer"
)

const (
	// txVersion defines transaction version for this builder.
	txVersion int32 = 2

	// inputSizeVBytes is the rough virtual size charged per input by the fee
	// bound used during coin selection.
	inputSizeVBytes = 60
	// headroomInputs pads the fee bound with extra input slots so the final
	// transaction never underpays. A heuristic, tunable without breaking
	// compatibility.
	headroomInputs = 5
)

// Builder provides PSBT construction for trades. The network is fixed at
// construction time.
type Builder struct {
	netParams *chaincfg.Params
}

// NewBuilder is a constructor for Builder.
func NewBuilder(netParams *chaincfg.Params) *Builder {
	return &Builder{netParams: netParams}
}

// BuyNowOpts is the struct given to the BuildBuyNow method.
type BuyNowOpts struct {
	// SellerPubkey is the hex public key controlling the inscription utxo.
	SellerPubkey string
	// SellerAddress receives the payment output.
	SellerAddress string
	// BuyerPubkey is the hex public key controlling the buyer utxos.
	BuyerPubkey string
	// BuyerAddress receives the change output.
	BuyerAddress string
	// Inscription is the utxo currently holding the inscription on sale.
	Inscription explorer.Utxo
	// BuyerUtxos is the buyer's spendable utxo set, in upstream order.
	BuyerUtxos []explorer.Utxo
	// PriceSats is the listing price in satoshis.
	PriceSats uint64
	// FeeRate is the fee rate in sat/vByte.
	FeeRate uint64
}

func (o BuyNowOpts) validate() error {
	if o.Inscription.Txid == "" {
		return ErrMissingInscriptionUtxo
	}
	if o.SellerAddress == "" || o.BuyerAddress == "" {
		return ErrMissingAddress
	}
	if o.FeeRate == 0 {
		return ErrNullFeeRate
	}
	return nil
}

// BuildBuyNow constructs the unsigned PSBT for a direct buy-now trade.
//
//	inputs:                           outputs:
//	0     inscription (seller-owned)  0  payment to seller, price satoshis
//	1..n  buyer btc utxos             1  change to buyer, selection surplus
//
// Buyer utxos are selected greedily in the given order until their cumulative
// value covers price + (n+headroom)*60*feeRate. Returns the PSBT in base64
// along with the total input count.
func (b *Builder) BuildBuyNow(opts BuyNowOpts) (string, int, error) {
	if err := opts.validate(); err != nil {
		return "", 0, err
	}

	selected, fee, err := selectUtxos(opts.BuyerUtxos, opts.PriceSats, opts.FeeRate)
	if err != nil {
		return "", 0, err
	}

	tx := wire.NewMsgTx(txVersion)
	if err := addInput(tx, opts.Inscription); err != nil {
		return "", 0, err
	}
	totalIn := uint64(0)
	for _, u := range selected {
		if err := addInput(tx, u); err != nil {
			return "", 0, err
		}
		totalIn += u.Value
	}

	if err := b.addOutput(tx, opts.PriceSats, opts.SellerAddress); err != nil {
		return "", 0, err
	}
	if change := totalIn - opts.PriceSats - fee; change > 0 {
		if err := b.addOutput(tx, change, opts.BuyerAddress); err != nil {
			return "", 0, err
		}
	}

	p, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return "", 0, err
	}
	if err := attachInputInfo(p, 0, opts.Inscription, opts.SellerPubkey); err != nil {
		return "", 0, err
	}
	for i, u := range selected {
		if err := attachInputInfo(p, i+1, u, opts.BuyerPubkey); err != nil {
			return "", 0, err
		}
	}

	encoded, err := p.B64Encode()
	if err != nil {
		return "", 0, err
	}
	return encoded, len(tx.TxIn), nil
}

// SwapOpts is the struct given to the BuildSwap method.
type SwapOpts struct {
	SellerPubkey string
	// SellerAddress receives the buyer's inscriptions and the optional BTC
	// delta.
	SellerAddress string
	BuyerPubkey   string
	// BuyerAddress receives the seller's inscriptions and the BTC change.
	BuyerAddress string
	// SellerInscriptions are the seller-owned inscription utxos entering the
	// swap; each is returned to the buyer at the same value.
	SellerInscriptions []explorer.Utxo
	// BuyerInscriptions are the buyer-owned inscription utxos entering the
	// swap; each is paid to the seller at the same value.
	BuyerInscriptions []explorer.Utxo
	// BuyerUtxos fund the optional BTC delta.
	BuyerUtxos []explorer.Utxo
	// PriceSats is the optional BTC delta paid by the buyer on top of the
	// swapped inscriptions. Zero for a pure swap.
	PriceSats uint64
	FeeRate   uint64
}

func (o SwapOpts) validate() error {
	if len(o.SellerInscriptions) == 0 || len(o.BuyerInscriptions) == 0 {
		return ErrMissingInscriptionUtxo
	}
	if o.SellerAddress == "" || o.BuyerAddress == "" {
		return ErrMissingAddress
	}
	if o.PriceSats > 0 && o.FeeRate == 0 {
		return ErrNullFeeRate
	}
	return nil
}

// BuildSwap constructs the unsigned PSBT for an inscription-for-inscription
// swap with an optional BTC top-up.
//
//	inputs:                             outputs:
//	0..s    seller inscriptions         0..s    same values, to buyer
//	s..s+b  buyer inscriptions          s..s+b  same values, to seller
//	rest    buyer btc utxos (price>0)   price to seller, change to buyer
//
// Returns the PSBT in base64 and the total input count. The first
// len(SellerInscriptions) inputs are the owner-controlled ones.
func (b *Builder) BuildSwap(opts SwapOpts) (string, int, error) {
	if err := opts.validate(); err != nil {
		return "", 0, err
	}

	tx := wire.NewMsgTx(txVersion)
	for _, u := range opts.SellerInscriptions {
		if err := addInput(tx, u); err != nil {
			return "", 0, err
		}
	}
	for _, u := range opts.BuyerInscriptions {
		if err := addInput(tx, u); err != nil {
			return "", 0, err
		}
	}

	var selected []explorer.Utxo
	var fee, totalIn uint64
	if opts.PriceSats > 0 {
		var err error
		selected, fee, err = selectUtxos(opts.BuyerUtxos, opts.PriceSats, opts.FeeRate)
		if err != nil {
			return "", 0, err
		}
		for _, u := range selected {
			if err := addInput(tx, u); err != nil {
				return "", 0, err
			}
			totalIn += u.Value
		}
	}

	for _, u := range opts.SellerInscriptions {
		if err := b.addOutput(tx, u.Value, opts.BuyerAddress); err != nil {
			return "", 0, err
		}
	}
	for _, u := range opts.BuyerInscriptions {
		if err := b.addOutput(tx, u.Value, opts.SellerAddress); err != nil {
			return "", 0, err
		}
	}
	if opts.PriceSats > 0 {
		if err := b.addOutput(tx, opts.PriceSats, opts.SellerAddress); err != nil {
			return "", 0, err
		}
		if change := totalIn - opts.PriceSats - fee; change > 0 {
			if err := b.addOutput(tx, change, opts.BuyerAddress); err != nil {
				return "", 0, err
			}
		}
	}

	p, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return "", 0, err
	}
	idx := 0
	for _, u := range opts.SellerInscriptions {
		if err := attachInputInfo(p, idx, u, opts.SellerPubkey); err != nil {
			return "", 0, err
		}
		idx++
	}
	for _, u := range opts.BuyerInscriptions {
		if err := attachInputInfo(p, idx, u, opts.BuyerPubkey); err != nil {
			return "", 0, err
		}
		idx++
	}
	for _, u := range selected {
		if err := attachInputInfo(p, idx, u, opts.BuyerPubkey); err != nil {
			return "", 0, err
		}
		idx++
	}

	encoded, err := p.B64Encode()
	if err != nil {
		return "", 0, err
	}
	return encoded, len(tx.TxIn), nil
}

// selectUtxos picks utxos greedily in the given order until their cumulative
// value reaches target + (n+headroom)*inputSize*feeRate, where n is the
// number of utxos picked so far. Returns the selection and the fee implied by
// the bound at the stopping point.
func selectUtxos(utxos []explorer.Utxo, target, feeRate uint64) ([]explorer.Utxo, uint64, error) {
	total := uint64(0)
	for i := range utxos {
		total += utxos[i].Value
		fee := (uint64(i+1) + headroomInputs) * inputSizeVBytes * feeRate
		if total >= target+fee {
			return utxos[:i+1], fee, nil
		}
	}
	return nil, 0, ErrInsufficientFunds
}

func addInput(tx *wire.MsgTx, u explorer.Utxo) error {
	utxoHash, err := chainhash.NewHashFromStr(u.Txid)
	if err != nil {
		return err
	}
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(utxoHash, u.Vout), nil, nil))
	return nil
}

// addOutput appends an output paying the given amount to the given address.
func (b *Builder) addOutput(tx *wire.MsgTx, amount uint64, address string) error {
	recipient, err := btcutil.DecodeAddress(address, b.netParams)
	if err != nil {
		return err
	}
	script, err := txscript.PayToAddrScript(recipient)
	if err != nil {
		return err
	}
	tx.AddTxOut(wire.NewTxOut(int64(amount), script))
	return nil
}

// attachInputInfo fills the per-input metadata the signer needs: the witness
// utxo, the sighash type matching the script class, and the taproot internal
// key when the controlling key is x-only.
func attachInputInfo(p *psbt.Packet, idx int, u explorer.Utxo, pubkeyHex string) error {
	p.Inputs[idx].WitnessUtxo = wire.NewTxOut(int64(u.Value), u.Script)

	sighash := txscript.SigHashAll
	if txscript.GetScriptClass(u.Script) == txscript.WitnessV1TaprootTy {
		sighash = txscript.SigHashDefault
	}
	p.Inputs[idx].SighashType = sighash

	if pubkeyHex == "" {
		return nil
	}
	pubkey, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return err
	}
	if len(pubkey) == 32 {
		p.Inputs[idx].TaprootInternalKey = pubkey
	}
	return nil
}
