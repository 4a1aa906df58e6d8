package esplora

import (
	"encoding/hex"

	"github.com/ordex-network/ordex-daemon/pkg/explorer"
)

// indexerResponse is the envelope every ord indexer endpoint replies with.
type indexerResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data indexerUtxoPage `json:"data"`
}

type indexerUtxoPage struct {
	Cursor int           `json:"cursor"`
	Total  int           `json:"total"`
	Utxo   []witnessUtxo `json:"utxo"`
}

type witnessUtxo struct {
	TxHash       string               `json:"txid"`
	Index        uint32               `json:"vout"`
	Satoshi      uint64               `json:"satoshi"`
	ScriptPk     string               `json:"scriptPk"`
	Inscriptions []inscriptionSummary `json:"inscriptions"`
}

type inscriptionSummary struct {
	InscriptionID string `json:"inscriptionId"`
	ContentType   string `json:"contentType"`
}

func (u witnessUtxo) toUtxo() explorer.Utxo {
	script, _ := hex.DecodeString(u.ScriptPk)
	return explorer.Utxo{
		Txid:   u.TxHash,
		Vout:   u.Index,
		Value:  u.Satoshi,
		Script: script,
	}
}

// inscriptionInfo is the body of the single-inscription lookup endpoint.
type inscriptionInfo struct {
	Code int                 `json:"code"`
	Msg  string              `json:"msg"`
	Data inscriptionInfoData `json:"data"`
}

type inscriptionInfoData struct {
	InscriptionID string      `json:"inscriptionId"`
	Address       string      `json:"address"`
	ContentType   string      `json:"contentType"`
	Utxo          witnessUtxo `json:"utxo"`
}

// recommendedFees is the esplora/mempool fee estimation body.
type recommendedFees struct {
	FastestFee  uint64 `json:"fastestFee"`
	HalfHourFee uint64 `json:"halfHourFee"`
	HourFee     uint64 `json:"hourFee"`
	MinimumFee  uint64 `json:"minimumFee"`
}
